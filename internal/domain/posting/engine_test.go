package posting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/partner"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/domain/catalogs/warehouse"
	"tabula/internal/domain/ledger"
	"tabula/internal/domain/registers/stock"
	"tabula/pkg/numerator"
)

type fixture struct {
	docs       *memDocs
	stockRepo  *memStock
	stockSvc   *stock.Service
	products   *memProducts
	partners   *memPartners
	warehouses *memWarehouses
	ledgerRepo *memLedger
	engine     *Engine
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		docs:       newMemDocs(),
		stockRepo:  &memStock{},
		products:   newMemProducts(),
		partners:   newMemPartners(),
		warehouses: newMemWarehouses(),
		ledgerRepo: newMemLedger(),
	}
	f.stockSvc = stock.NewService(f.stockRepo, f.products)
	ledgerSvc := ledger.NewService(f.ledgerRepo, stubTx{})
	policy := NewPolicy(cfg, f.stockSvc, f.products)

	f.engine = NewEngine(
		cfg, stubTx{}, f.docs, policy,
		f.stockSvc, ledgerSvc, nil,
		f.products, f.partners, f.warehouses,
		&numerator.MockGenerator{}, nil,
	)
	return f
}

func (f *fixture) addProduct(sku string) *product.Product {
	p := product.New(sku, sku, "pcs")
	_ = f.products.Create(context.Background(), p)
	return p
}

func (f *fixture) addPartner(code string) *partner.Partner {
	p := partner.New(code, code)
	_ = f.partners.Create(context.Background(), p)
	return p
}

func (f *fixture) addWarehouse(code string) *warehouse.Warehouse {
	w := warehouse.New(code, code)
	_ = f.warehouses.Create(context.Background(), w)
	return w
}

// seedStock records a prior receipt so availability checks pass.
func (f *fixture) seedStock(itemID id.ID, qty float64, at time.Time) {
	f.stockRepo.movements = append(f.stockRepo.movements, entity.StockMovement{
		LineID:     id.New(),
		DocumentID: id.New(),
		DocType:    entity.DocTypeIncomingGoods,
		Period:     at,
		ItemID:     itemID,
		Quantity:   types.NewQuantityFromFloat64(qty),
		CreatedAt:  at,
	})
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func TestApprove_SalesOrderReservesStock(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeSalesOrder)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5), UnitPrice: types.MustMoney("10")})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	p, err := f.products.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(5), p.Reserved)
	assert.Empty(t, f.stockRepo.movements, "sales orders must not move stock")

	stored, err := f.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocStatusPosted, stored.Status)
	assert.True(t, strings.HasPrefix(stored.Number, "SO-"))
}

func TestApprove_PostedIsIdempotent(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeSalesOrder)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5)})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))
	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	p, _ := f.products.GetByID(ctx, item.ID)
	assert.Equal(t, qty(5), p.Reserved, "second approve must not re-reserve")
}

func TestApprove_DispatchWritesNegativeMovement(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")
	wh := f.addWarehouse("MAIN")

	doc := entity.NewDocument(entity.DocTypeDispatch)
	doc.SourceWarehouseID = &wh.ID
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(3)})
	f.docs.put(doc)

	f.seedStock(item.ID, 10, doc.Date.Add(-time.Hour))

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	movements, err := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, qty(3).Neg(), movements[0].Quantity)
	assert.Equal(t, item.ID, movements[0].ItemID)
	require.NotNil(t, movements[0].WarehouseID)
	assert.Equal(t, wh.ID, *movements[0].WarehouseID)

	onHand, err := f.stockSvc.OnHand(ctx, item.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, qty(7), onHand)
}

func TestApprove_DispatchInsufficientStock(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeDispatch)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5)})
	f.docs.put(doc)

	f.seedStock(item.ID, 2, doc.Date.Add(-time.Hour))

	err := f.engine.Approve(ctx, doc.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock), "got %v", err)

	stored, _ := f.docs.GetByID(ctx, doc.ID)
	assert.Equal(t, entity.DocStatusDraft, stored.Status, "failed posting must leave the draft untouched")
	assert.Empty(t, f.stockRepo.movements[1:], "no movement beyond the seed")
}

func TestApprove_NegativeStockAllowedByConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowNegativeStock = true
	f := newFixture(cfg)
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeDispatch)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5)})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	onHand, _ := f.stockSvc.OnHand(ctx, item.ID, time.Now().UTC())
	assert.Equal(t, qty(5).Neg(), onHand)
}

func TestApprove_TransferRequiresDistinctWarehouses(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")
	wh := f.addWarehouse("MAIN")

	doc := entity.NewDocument(entity.DocTypeTransfer)
	doc.SourceWarehouseID = &wh.ID
	doc.DestWarehouseID = &wh.ID
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(1)})
	f.docs.put(doc)

	err := f.engine.Approve(ctx, doc.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransfer), "got %v", err)
}

func TestApprove_TransferWritesPairedMovements(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")
	src := f.addWarehouse("SRC")
	dst := f.addWarehouse("DST")

	doc := entity.NewDocument(entity.DocTypeTransfer)
	doc.SourceWarehouseID = &src.ID
	doc.DestWarehouseID = &dst.ID
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(4)})
	f.docs.put(doc)

	f.seedStock(item.ID, 10, doc.Date.Add(-time.Hour))

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	movements, err := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)

	total := types.Quantity(0)
	for _, m := range movements {
		total += m.Quantity
	}
	assert.True(t, total.IsZero(), "transfer must not change total stock")
	assert.Equal(t, src.ID, *movements[0].WarehouseID)
	assert.Equal(t, dst.ID, *movements[1].WarehouseID)
}

func TestApprove_SalesInvoiceWritesDebitEntry(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")
	pt := f.addPartner("ACME")
	pt.PaymentTermDays = 14
	require.NoError(t, f.partners.Update(ctx, pt))

	doc := entity.NewDocument(entity.DocTypeSalesInvoice)
	doc.PartnerID = &pt.ID
	doc.AddLine(entity.DocumentLine{
		ItemID:    item.ID,
		Quantity:  qty(2),
		UnitPrice: types.MustMoney("50"),
		VATRate:   types.MustMoney("18"),
	})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	entries, err := f.ledgerRepo.EntriesByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.LedgerSideDebit, entries[0].Side())
	assert.True(t, types.MustMoney("118").Equal(entries[0].Debit), "got %s", entries[0].Debit)
	assert.Equal(t, entity.EntryStatusOpen, entries[0].Status)

	stored, _ := f.docs.GetByID(ctx, doc.ID)
	assert.True(t, types.MustMoney("118").Equal(stored.TotalLocal))
	require.NotNil(t, stored.DueDate, "due date must derive from the partner's payment term")
	assert.Equal(t, doc.Date.AddDate(0, 0, 14).Unix(), stored.DueDate.Unix())
}

func TestApprove_FinancialRequiresPartner(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeSalesInvoice)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(1), UnitPrice: types.MustMoney("10")})
	f.docs.put(doc)

	err := f.engine.Approve(ctx, doc.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodePartnerRequired), "got %v", err)
}

func TestApprove_ExternalIDProcessedOnce(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	first := entity.NewDocument(entity.DocTypeSalesOrder)
	first.ExternalID = "shop-order-42"
	first.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5)})
	f.docs.put(first)
	require.NoError(t, f.engine.Approve(ctx, first.ID))

	second := entity.NewDocument(entity.DocTypeSalesOrder)
	second.ExternalID = "shop-order-42"
	second.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5)})
	f.docs.put(second)
	require.NoError(t, f.engine.Approve(ctx, second.ID))

	p, _ := f.products.GetByID(ctx, item.ID)
	assert.Equal(t, qty(5), p.Reserved, "duplicate external id must not post twice")

	stored, _ := f.docs.GetByID(ctx, second.ID)
	assert.Equal(t, entity.DocStatusDraft, stored.Status)
}

func TestApprove_IncomingGoodsRollsAverageCost(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")
	require.NoError(t, f.products.UpdateCost(ctx, item.ID, types.MustMoney("10")))

	doc := entity.NewDocument(entity.DocTypeIncomingGoods)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(10), UnitPrice: types.MustMoney("20")})
	f.docs.put(doc)

	f.seedStock(item.ID, 10, doc.Date.Add(-time.Hour))

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	// 10 on hand at 10.00 plus 10 received at 20.00 averages to 15.00.
	p, _ := f.products.GetByID(ctx, item.ID)
	assert.True(t, types.MustMoney("15").Equal(p.Cost), "got %s", p.Cost)

	movements, _ := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	require.Len(t, movements, 1)
	assert.True(t, types.MustMoney("20").Equal(movements[0].UnitCost))
}

func TestApprove_IncomingGoodsFirstReceiptSetsCost(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeIncomingGoods)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5), UnitPrice: types.MustMoney("7.50")})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	p, _ := f.products.GetByID(ctx, item.ID)
	assert.True(t, types.MustMoney("7.50").Equal(p.Cost), "got %s", p.Cost)
}

func TestApprove_ProductionExpandsBOM(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	finished := f.addProduct("TABLE")
	legs := f.addProduct("LEG")
	top := f.addProduct("TOP")
	require.NoError(t, f.products.SaveComponents(ctx, finished.ID, []product.BOMComponent{
		{ProductID: finished.ID, ComponentID: legs.ID, QtyPer: qty(4)},
		{ProductID: finished.ID, ComponentID: top.ID, QtyPer: qty(1)},
	}))

	doc := entity.NewDocument(entity.DocTypeProduction)
	doc.AddLine(entity.DocumentLine{ItemID: finished.ID, Quantity: qty(2)})
	f.docs.put(doc)

	f.seedStock(legs.ID, 100, doc.Date.Add(-time.Hour))
	f.seedStock(top.ID, 100, doc.Date.Add(-time.Hour))

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	movements, _ := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	require.Len(t, movements, 3)
	assert.Equal(t, qty(2), movements[0].Quantity)
	assert.Equal(t, finished.ID, movements[0].ItemID)

	byItem := make(map[id.ID]types.Quantity)
	for _, m := range movements[1:] {
		byItem[m.ItemID] = m.Quantity
	}
	assert.Equal(t, qty(8).Neg(), byItem[legs.ID])
	assert.Equal(t, qty(1).Mul(qty(2)).Neg(), byItem[top.ID])
}

func TestApprove_ProductionShortComponents(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	finished := f.addProduct("TABLE")
	legs := f.addProduct("LEG")
	require.NoError(t, f.products.SaveComponents(ctx, finished.ID, []product.BOMComponent{
		{ProductID: finished.ID, ComponentID: legs.ID, QtyPer: qty(4)},
	}))

	doc := entity.NewDocument(entity.DocTypeProduction)
	doc.AddLine(entity.DocumentLine{ItemID: finished.ID, Quantity: qty(2)})
	f.docs.put(doc)

	f.seedStock(legs.ID, 5, doc.Date.Add(-time.Hour))

	err := f.engine.Approve(ctx, doc.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock), "got %v", err)
}

func TestApprove_QuoteHasNoSideEffects(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeQuote)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(3), UnitPrice: types.MustMoney("10")})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	assert.Empty(t, f.stockRepo.movements)
	p, _ := f.products.GetByID(ctx, item.ID)
	assert.Equal(t, types.Quantity(0), p.Reserved)

	stored, _ := f.docs.GetByID(ctx, doc.ID)
	assert.Equal(t, entity.DocStatusPosted, stored.Status)
	assert.True(t, strings.HasPrefix(stored.Number, "QT-"))
}

func TestApprove_LineCoefficientConvertsToBaseUnits(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	// Two boxes of twelve reserve twenty-four base units.
	doc := entity.NewDocument(entity.DocTypeSalesOrder)
	doc.AddLine(entity.DocumentLine{
		ItemID:      item.ID,
		Quantity:    qty(2),
		Unit:        "box",
		Coefficient: qty(12),
	})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))

	p, _ := f.products.GetByID(ctx, item.ID)
	assert.Equal(t, qty(24), p.Reserved)
}
