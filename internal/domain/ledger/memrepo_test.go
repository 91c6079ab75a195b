package ledger

import (
	"context"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/partner"
)

type stubTx struct{}

func (stubTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memRepo keeps entries in insertion order, which the tests arrange to
// be date order (the contract EntriesByPartner promises).
type memRepo struct {
	entries     map[id.ID]*entity.LedgerEntry
	order       []id.ID
	allocations map[id.ID]*entity.Allocation
}

func newMemRepo() *memRepo {
	return &memRepo{
		entries:     make(map[id.ID]*entity.LedgerEntry),
		allocations: make(map[id.ID]*entity.Allocation),
	}
}

func (r *memRepo) CreateEntry(ctx context.Context, e *entity.LedgerEntry) error {
	c := *e
	r.entries[e.ID] = &c
	r.order = append(r.order, e.ID)
	return nil
}

func (r *memRepo) GetEntry(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error) {
	e, ok := r.entries[entryID]
	if !ok {
		return nil, apperror.NewNotFound("ledger entry", entryID.String())
	}
	c := *e
	return &c, nil
}

func (r *memRepo) EntriesByDocument(ctx context.Context, documentID id.ID) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for _, entryID := range r.order {
		if r.entries[entryID].DocumentID == documentID {
			out = append(out, *r.entries[entryID])
		}
	}
	return out, nil
}

func (r *memRepo) EntriesByPartner(ctx context.Context, partnerID id.ID, filter EntryFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for _, entryID := range r.order {
		e := r.entries[entryID]
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

func (r *memRepo) UpdateEntryStatus(ctx context.Context, entryID id.ID, status entity.EntryStatus) error {
	e, ok := r.entries[entryID]
	if !ok {
		return apperror.NewNotFound("ledger entry", entryID.String())
	}
	e.Status = status
	return nil
}

func (r *memRepo) CreateAllocation(ctx context.Context, a *entity.Allocation) error {
	c := *a
	r.allocations[a.ID] = &c
	return nil
}

func (r *memRepo) GetAllocation(ctx context.Context, allocationID id.ID) (*entity.Allocation, error) {
	a, ok := r.allocations[allocationID]
	if !ok {
		return nil, apperror.NewNotFound("allocation", allocationID.String())
	}
	c := *a
	return &c, nil
}

func (r *memRepo) DeleteAllocation(ctx context.Context, allocationID id.ID) error {
	if _, ok := r.allocations[allocationID]; !ok {
		return apperror.NewNotFound("allocation", allocationID.String())
	}
	delete(r.allocations, allocationID)
	return nil
}

func (r *memRepo) AllocatedAgainst(ctx context.Context, entryID id.ID) (types.Money, error) {
	total := types.Zero()
	for _, a := range r.allocations {
		if a.PaymentEntryID == entryID || a.InvoiceEntryID == entryID {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}

var _ Repository = (*memRepo)(nil)

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

// writeEntry stores an open entry and returns its id.
func writeEntry(repo *memRepo, partnerID id.ID, side entity.LedgerSide, amount string, date time.Time, due *time.Time) id.ID {
	e := entity.NewLedgerEntry(partnerID, id.New(), date, due, side, types.MustMoney(amount))
	_ = repo.CreateEntry(context.Background(), &e)
	return e.ID
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func ptrTime(t time.Time) *time.Time { return &t }
