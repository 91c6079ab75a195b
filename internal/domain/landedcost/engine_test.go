package landedcost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/domain/registers/stock"
)

type stubTx struct{}

func (stubTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memDocs struct {
	docs  map[id.ID]entity.Document
	lines map[id.ID][]entity.DocumentLine
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
	return nil, nil
}

var _ stock.Repository = (*memStock)(nil)

type memProducts struct {
	items map[id.ID]*product.Product
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
	return nil
}

func (s *memProducts) Components(ctx context.Context, productID id.ID) ([]product.BOMComponent, error) {
	return nil, nil
}

func (s *memProducts) SaveComponents(ctx context.Context, productID id.ID, components []product.BOMComponent) error {
	return nil
}

var _ product.Repository = (*memProducts)(nil)

type fixture struct {
	docs     *memDocs
	stock    *memStock
	products *memProducts
	engine   *Engine
}

func newFixture() *fixture {
	f := &fixture{
		docs:     &memDocs{docs: make(map[id.ID]entity.Document), lines: make(map[id.ID][]entity.DocumentLine)},
		stock:    &memStock{},
		products: &memProducts{items: make(map[id.ID]*product.Product)},
	}
	f.engine = NewEngine(stubTx{}, f.docs, stock.NewService(f.stock, f.products), f.products)
	return f
}

// postedReceipt stores a posted incoming goods document with one line
// and its positive movement carrying the line price.
func (f *fixture) postedReceipt(itemID id.ID, quantity float64, unitPrice string) *entity.Document {
	doc := entity.NewDocument(entity.DocTypeIncomingGoods)
	doc.Status = entity.DocStatusPosted
	doc.AddLine(entity.DocumentLine{
		ItemID:    itemID,
		Quantity:  types.NewQuantityFromFloat64(quantity),
		UnitPrice: types.MustMoney(unitPrice),
	})
	f.docs.put(doc)

	line := &doc.Lines[0]
	m := entity.NewStockMovement(doc, line, line.BaseQuantity())
	m.UnitCost = line.UnitPrice
	f.stock.movements = append(f.stock.movements, m)
	return doc
}

func (f *fixture) costInvoice(amount string) *entity.Document {
	doc := entity.NewDocument(entity.DocTypePurchaseInvoice)
	doc.Status = entity.DocStatusPosted
	doc.TotalLocal = types.MustMoney(amount)
	f.docs.put(doc)
	return doc
}

func TestApply_RedistributesCostOverQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	item := product.New("WIDGET", "Widget", "pcs")
	item.Cost = types.MustMoney("10")
	require.NoError(t, f.products.Create(ctx, item))

	receipt := f.postedReceipt(item.ID, 10, "10")
	freight := f.costInvoice("50")

	require.NoError(t, f.engine.Apply(ctx, freight.ID, []id.ID{receipt.ID}))

	// 50.00 over 10 units adds 5.00 per unit.
	p, _ := f.products.GetByID(ctx, item.ID)
	assert.True(t, types.MustMoney("15").Equal(p.Cost), "got %s", p.Cost)

	movements, _ := f.stock.MovementsByDocument(ctx, receipt.ID)
	require.Len(t, movements, 1)
	assert.True(t, types.MustMoney("15").Equal(movements[0].UnitCost), "got %s", movements[0].UnitCost)
}

func TestApply_SpreadsAcrossMultipleReceipts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	item := product.New("WIDGET", "Widget", "pcs")
	require.NoError(t, f.products.Create(ctx, item))

	first := f.postedReceipt(item.ID, 6, "10")
	second := f.postedReceipt(item.ID, 4, "12")
	freight := f.costInvoice("20")

	require.NoError(t, f.engine.Apply(ctx, freight.ID, []id.ID{first.ID, second.ID}))

	// 20.00 over 10 units total adds 2.00 to every unit regardless of receipt.
	m1, _ := f.stock.MovementsByDocument(ctx, first.ID)
	m2, _ := f.stock.MovementsByDocument(ctx, second.ID)
	assert.True(t, types.MustMoney("12").Equal(m1[0].UnitCost), "got %s", m1[0].UnitCost)
	assert.True(t, types.MustMoney("14").Equal(m2[0].UnitCost), "got %s", m2[0].UnitCost)
}

func TestApply_RequiresTargets(t *testing.T) {
	f := newFixture()

	err := f.engine.Apply(context.Background(), id.New(), nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
}

func TestApply_RejectsUnpostedCostDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	item := product.New("WIDGET", "Widget", "pcs")
	require.NoError(t, f.products.Create(ctx, item))
	receipt := f.postedReceipt(item.ID, 10, "10")

	draft := entity.NewDocument(entity.DocTypePurchaseInvoice)
	draft.TotalLocal = types.MustMoney("50")
	f.docs.put(draft)

	err := f.engine.Apply(ctx, draft.ID, []id.ID{receipt.ID})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
}

func TestApply_RejectsNonReceiptTarget(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	dispatch := entity.NewDocument(entity.DocTypeDispatch)
	dispatch.Status = entity.DocStatusPosted
	f.docs.put(dispatch)

	freight := f.costInvoice("50")

	err := f.engine.Apply(ctx, freight.ID, []id.ID{dispatch.ID})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
}

func TestApply_RejectsZeroQuantityBase(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	empty := entity.NewDocument(entity.DocTypeIncomingGoods)
	empty.Status = entity.DocStatusPosted
	f.docs.put(empty)

	freight := f.costInvoice("50")

	err := f.engine.Apply(ctx, freight.ID, []id.ID{empty.ID})
	assert.True(t, apperror.IsCode(err, apperror.CodeZeroCostBase), "got %v", err)
}
