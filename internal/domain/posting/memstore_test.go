package posting

import (
	"context"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/partner"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/domain/catalogs/warehouse"
	"tabula/internal/domain/ledger"
	"tabula/internal/domain/registers/stock"
)

// In-memory implementations backing the engine tests. No locking: the
// tests are single-goroutine.

type stubTx struct{}

func (stubTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memDocs struct {
	docs  map[id.ID]entity.Document
	lines map[id.ID][]entity.DocumentLine
}

func newMemDocs() *memDocs {
	return &memDocs{
		docs:  make(map[id.ID]entity.Document),
		lines: make(map[id.ID][]entity.DocumentLine),
	}
}

func (s *memDocs) put(doc *entity.Document) {
	header := *doc
	header.Lines = nil
	s.docs[doc.ID] = header
	s.lines[doc.ID] = append([]entity.DocumentLine(nil), doc.Lines...)
}

func (s *memDocs) GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error) {
	d, ok := s.docs[documentID]
	if !ok {
		return nil, apperror.NewNotFound("document", documentID.String())
	}
	return &d, nil
}

func (s *memDocs) GetLines(ctx context.Context, documentID id.ID) ([]entity.DocumentLine, error) {
	return append([]entity.DocumentLine(nil), s.lines[documentID]...), nil
}

func (s *memDocs) FindByExternalID(ctx context.Context, externalID string) (*entity.Document, error) {
	var match *entity.Document
	for _, d := range s.docs {
		if d.ExternalID != externalID {
			continue
		}
		d := d
		if d.Status != entity.DocStatusDraft {
			return &d, nil
		}
		if match == nil {
			match = &d
		}
	}
	return match, nil
}

func (s *memDocs) Update(ctx context.Context, doc *entity.Document) error {
	if _, ok := s.docs[doc.ID]; !ok {
		return apperror.NewNotFound("document", doc.ID.String())
	}
	header := *doc
	header.Lines = nil
	s.docs[doc.ID] = header
	return nil
}

type memStock struct {
	movements []entity.StockMovement
}

func (s *memStock) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	s.movements = append(s.movements, movements...)
	return nil
}

func (s *memStock) MovementsByDocument(ctx context.Context, documentID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range s.movements {
		if m.DocumentID == documentID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStock) OnHand(ctx context.Context, itemID id.ID, cutoff time.Time) (types.Quantity, error) {
	total := types.Quantity(0)
	for _, m := range s.movements {
		if m.ItemID == itemID && !m.Period.After(cutoff) {
			total += m.Quantity
		}
	}
	return total, nil
}

func (s *memStock) LockItem(ctx context.Context, itemID id.ID) error { return nil }

func (s *memStock) AdjustUnitCost(ctx context.Context, movementLineID id.ID, delta types.Money) error {
	for i := range s.movements {
		if s.movements[i].LineID == movementLineID {
			s.movements[i].UnitCost = s.movements[i].UnitCost.Add(delta)
			return nil
		}
	}
	return apperror.NewNotFound("stock movement", movementLineID.String())
}

func (s *memStock) MovementHistory(ctx context.Context, itemID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range s.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

var _ stock.Repository = (*memStock)(nil)

type memProducts struct {
	items map[id.ID]*product.Product
	boms  map[id.ID][]product.BOMComponent
}

func newMemProducts() *memProducts {
	return &memProducts{
		items: make(map[id.ID]*product.Product),
		boms:  make(map[id.ID][]product.BOMComponent),
	}
}

func (s *memProducts) Create(ctx context.Context, p *product.Product) error {
	s.items[p.ID] = p
	return nil
}

func (s *memProducts) Update(ctx context.Context, p *product.Product) error {
	s.items[p.ID] = p
	return nil
}

func (s *memProducts) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := s.items[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	c := *p
	return &c, nil
}

func (s *memProducts) UpdateCost(ctx context.Context, productID id.ID, cost types.Money) error {
	p, ok := s.items[productID]
	if !ok {
		return apperror.NewNotFound("product", productID.String())
	}
	p.Cost = cost
	return nil
}

func (s *memProducts) IncrementReserved(ctx context.Context, productID id.ID, delta types.Quantity) error {
	p, ok := s.items[productID]
	if !ok {
		return apperror.NewNotFound("product", productID.String())
	}
	p.Reserved += delta
	return nil
}

func (s *memProducts) Components(ctx context.Context, productID id.ID) ([]product.BOMComponent, error) {
	return s.boms[productID], nil
}

func (s *memProducts) SaveComponents(ctx context.Context, productID id.ID, components []product.BOMComponent) error {
	s.boms[productID] = components
	return nil
}

var _ product.Repository = (*memProducts)(nil)

type memPartners struct {
	items map[id.ID]*partner.Partner
}

func newMemPartners() *memPartners {
	return &memPartners{items: make(map[id.ID]*partner.Partner)}
}

func (s *memPartners) Create(ctx context.Context, p *partner.Partner) error {
	s.items[p.ID] = p
	return nil
}

func (s *memPartners) Update(ctx context.Context, p *partner.Partner) error {
	s.items[p.ID] = p
	return nil
}

func (s *memPartners) GetByID(ctx context.Context, partnerID id.ID) (*partner.Partner, error) {
	p, ok := s.items[partnerID]
	if !ok {
		return nil, apperror.NewNotFound("partner", partnerID.String())
	}
	c := *p
	return &c, nil
}

func (s *memPartners) GetByCode(ctx context.Context, code string) (*partner.Partner, error) {
	for _, p := range s.items {
		if p.Code == code {
			c := *p
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("partner", code)
}

var _ partner.Repository = (*memPartners)(nil)

type memWarehouses struct {
	items map[id.ID]*warehouse.Warehouse
}

func newMemWarehouses() *memWarehouses {
	return &memWarehouses{items: make(map[id.ID]*warehouse.Warehouse)}
}

func (s *memWarehouses) Create(ctx context.Context, w *warehouse.Warehouse) error {
	s.items[w.ID] = w
	return nil
}

func (s *memWarehouses) Update(ctx context.Context, w *warehouse.Warehouse) error {
	s.items[w.ID] = w
	return nil
}

func (s *memWarehouses) GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	w, ok := s.items[warehouseID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", warehouseID.String())
	}
	c := *w
	return &c, nil
}

var _ warehouse.Repository = (*memWarehouses)(nil)

type memLedger struct {
	entries     map[id.ID]*entity.LedgerEntry
	order       []id.ID
	allocations map[id.ID]*entity.Allocation
}

func newMemLedger() *memLedger {
	return &memLedger{
		entries:     make(map[id.ID]*entity.LedgerEntry),
		allocations: make(map[id.ID]*entity.Allocation),
	}
}

func (s *memLedger) CreateEntry(ctx context.Context, e *entity.LedgerEntry) error {
	c := *e
	s.entries[e.ID] = &c
	s.order = append(s.order, e.ID)
	return nil
}

func (s *memLedger) GetEntry(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error) {
	e, ok := s.entries[entryID]
	if !ok {
		return nil, apperror.NewNotFound("ledger entry", entryID.String())
	}
	c := *e
	return &c, nil
}

func (s *memLedger) EntriesByDocument(ctx context.Context, documentID id.ID) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for _, entryID := range s.order {
		if s.entries[entryID].DocumentID == documentID {
			out = append(out, *s.entries[entryID])
		}
	}
	return out, nil
}

func (s *memLedger) EntriesByPartner(ctx context.Context, partnerID id.ID, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for _, entryID := range s.order {
		e := s.entries[entryID]
		if e.PartnerID != partnerID {
			continue
		}
		if filter.Side != entity.LedgerSideNone && e.Side() != filter.Side {
			continue
		}
		if filter.OpenOnly && e.Status != entity.EntryStatusOpen {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *memLedger) UpdateEntryStatus(ctx context.Context, entryID id.ID, status entity.EntryStatus) error {
	e, ok := s.entries[entryID]
	if !ok {
		return apperror.NewNotFound("ledger entry", entryID.String())
	}
	e.Status = status
	return nil
}

func (s *memLedger) CreateAllocation(ctx context.Context, a *entity.Allocation) error {
	c := *a
	s.allocations[a.ID] = &c
	return nil
}

func (s *memLedger) GetAllocation(ctx context.Context, allocationID id.ID) (*entity.Allocation, error) {
	a, ok := s.allocations[allocationID]
	if !ok {
		return nil, apperror.NewNotFound("allocation", allocationID.String())
	}
	c := *a
	return &c, nil
}

func (s *memLedger) DeleteAllocation(ctx context.Context, allocationID id.ID) error {
	if _, ok := s.allocations[allocationID]; !ok {
		return apperror.NewNotFound("allocation", allocationID.String())
	}
	delete(s.allocations, allocationID)
	return nil
}

func (s *memLedger) AllocatedAgainst(ctx context.Context, entryID id.ID) (types.Money, error) {
	total := types.Zero()
	for _, a := range s.allocations {
		if a.PaymentEntryID == entryID || a.InvoiceEntryID == entryID {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}

var _ ledger.Repository = (*memLedger)(nil)
