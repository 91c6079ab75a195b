package posting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/core/entity"
	"tabula/internal/core/types"
)

func TestCancel_DispatchRestoresStock(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeDispatch)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(3)})
	f.docs.put(doc)
	f.seedStock(item.ID, 10, doc.Date.Add(-time.Hour))

	require.NoError(t, f.engine.Approve(ctx, doc.ID))
	require.NoError(t, f.engine.Cancel(ctx, doc.ID))

	movements, err := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2, "original plus compensating")
	assert.Equal(t, movements[0].Quantity.Neg(), movements[1].Quantity)

	onHand, err := f.stockSvc.OnHand(ctx, item.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, qty(10), onHand)

	stored, _ := f.docs.GetByID(ctx, doc.ID)
	assert.Equal(t, entity.DocStatusCanceled, stored.Status)
}

func TestCancel_SalesOrderReleasesReservation(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeSalesOrder)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(5)})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))
	require.NoError(t, f.engine.Cancel(ctx, doc.ID))

	p, _ := f.products.GetByID(ctx, item.ID)
	assert.Equal(t, types.Quantity(0), p.Reserved)
}

func TestCancel_InvoiceWritesCompensatingEntry(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")
	pt := f.addPartner("ACME")

	doc := entity.NewDocument(entity.DocTypeSalesInvoice)
	doc.PartnerID = &pt.ID
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(1), UnitPrice: types.MustMoney("100")})
	f.docs.put(doc)

	require.NoError(t, f.engine.Approve(ctx, doc.ID))
	require.NoError(t, f.engine.Cancel(ctx, doc.ID))

	entries, err := f.ledgerRepo.EntriesByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	original, compensating := entries[0], entries[1]
	assert.Equal(t, entity.EntryStatusCanceled, original.Status)
	assert.Equal(t, entity.EntryStatusCanceled, compensating.Status)
	assert.Equal(t, original.Side().Opposite(), compensating.Side())
	assert.True(t, original.Amount().Equal(compensating.Amount()))

	// Canceled entries net to zero for aging and exposure.
	total := original.SignedAmount().Add(compensating.SignedAmount())
	assert.True(t, total.IsZero(), "got %s", total)
}

func TestCancel_DraftIsNoOp(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeDispatch)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(3)})
	f.docs.put(doc)

	require.NoError(t, f.engine.Cancel(ctx, doc.ID))

	stored, _ := f.docs.GetByID(ctx, doc.ID)
	assert.Equal(t, entity.DocStatusDraft, stored.Status)
	assert.Empty(t, f.stockRepo.movements)
}

func TestCancel_CanceledIsIdempotent(t *testing.T) {
	f := newFixture(DefaultConfig())
	ctx := context.Background()
	item := f.addProduct("WIDGET")

	doc := entity.NewDocument(entity.DocTypeDispatch)
	doc.AddLine(entity.DocumentLine{ItemID: item.ID, Quantity: qty(3)})
	f.docs.put(doc)
	f.seedStock(item.ID, 10, doc.Date.Add(-time.Hour))

	require.NoError(t, f.engine.Approve(ctx, doc.ID))
	require.NoError(t, f.engine.Cancel(ctx, doc.ID))
	require.NoError(t, f.engine.Cancel(ctx, doc.ID))

	movements, _ := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	assert.Len(t, movements, 2, "second cancel must not compensate again")
}

func TestCancel_TransferCompensatesBothSides(t *testing.T) {
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
	require.NoError(t, f.engine.Cancel(ctx, doc.ID))

	movements, _ := f.stockRepo.MovementsByDocument(ctx, doc.ID)
	require.Len(t, movements, 4)

	total := types.Quantity(0)
	for _, m := range movements {
		total += m.Quantity
	}
	assert.True(t, total.IsZero())
}
