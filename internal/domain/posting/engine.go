package posting

import (
	"context"
	"fmt"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/tx"
	"tabula/internal/core/types"
	"tabula/internal/domain/audit"
	"tabula/internal/domain/catalogs/partner"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/domain/catalogs/warehouse"
	"tabula/internal/domain/ledger"
	"tabula/internal/domain/registers/stock"
	"tabula/pkg/logger"
	"tabula/pkg/numerator"
)

// DocumentStore is the slice of the document repository the engine
// needs. The full repository in internal/domain/documents satisfies it.
type DocumentStore interface {
	GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error)
	GetLines(ctx context.Context, documentID id.ID) ([]entity.DocumentLine, error)

	// FindByExternalID returns the document holding the external id, or
	// nil when none does.
	FindByExternalID(ctx context.Context, externalID string) (*entity.Document, error)

	// Update persists the header with an optimistic version check.
	Update(ctx context.Context, doc *entity.Document) error
}

// handlerFunc produces the side effects of posting one document type.
type handlerFunc func(ctx context.Context, doc *entity.Document, totals Totals) error

// Engine is the posting state machine. It is the only writer of
// quantity movements and ledger entries at document-posting time; one
// Approve or Cancel invocation runs inside one transaction.
type Engine struct {
	cfg Config

	txManager  tx.Manager
	docs       DocumentStore
	policy     *Policy
	stock      *stock.Service
	ledger     *ledger.Service
	credit     *ledger.CreditPolicy
	products   product.Repository
	partners   partner.Repository
	warehouses warehouse.Repository
	numbers    numerator.Generator
	audit      audit.Recorder

	handlers map[entity.DocType]handlerFunc
}

// NewEngine wires the posting engine. credit may be nil to disable the
// credit gate; auditRec may be nil for no audit trail.
func NewEngine(
	cfg Config,
	txManager tx.Manager,
	docs DocumentStore,
	policy *Policy,
	stockSvc *stock.Service,
	ledgerSvc *ledger.Service,
	credit *ledger.CreditPolicy,
	products product.Repository,
	partners partner.Repository,
	warehouses warehouse.Repository,
	numbers numerator.Generator,
	auditRec audit.Recorder,
) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if auditRec == nil {
		auditRec = audit.NopRecorder{}
	}

	e := &Engine{
		cfg:        cfg,
		txManager:  txManager,
		docs:       docs,
		policy:     policy,
		stock:      stockSvc,
		ledger:     ledgerSvc,
		credit:     credit,
		products:   products,
		partners:   partners,
		warehouses: warehouses,
		numbers:    numbers,
		audit:      auditRec,
	}

	// Typed dispatch: document type to posting handler. Unknown types
	// never reach this table (ParseDocType rejects them at the boundary).
	e.handlers = map[entity.DocType]handlerFunc{
		entity.DocTypeQuote:           e.postNothing,
		entity.DocTypeSalesOrder:      e.postSalesOrder,
		entity.DocTypeDispatch:        e.postOutgoing,
		entity.DocTypeCountAdjustOut:  e.postOutgoing,
		entity.DocTypeIncomingGoods:   e.postIncoming,
		entity.DocTypeCountAdjustIn:   e.postIncoming,
		entity.DocTypeTransfer:        e.postTransfer,
		entity.DocTypeProduction:      e.postProduction,
		entity.DocTypeSalesInvoice:    e.postFinancial,
		entity.DocTypePurchaseInvoice: e.postFinancial,
		entity.DocTypeReceipt:         e.postFinancial,
		entity.DocTypePayment:         e.postFinancial,
	}

	return e
}

// Approve posts a draft document: totals, policy, per-type side
// effects and the draft→posted transition, all in one transaction.
// Safe to retry: an already-posted document is a successful no-op.
func (e *Engine) Approve(ctx context.Context, documentID id.ID) error {
	return e.withRetry(ctx, documentID, e.approveOnce)
}

// withRetry re-runs the whole operation on optimistic-token conflicts,
// re-reading fresh entities each attempt, bounded by cfg.MaxRetries.
func (e *Engine) withRetry(ctx context.Context, documentID id.ID, op func(ctx context.Context, documentID id.ID) error) error {
	var err error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		err = e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			return op(ctx, documentID)
		})
		if !apperror.IsConcurrentModification(err) {
			return err
		}

		logger.Warn(ctx, "posting conflict, retrying",
			"document_id", documentID,
			"attempt", attempt,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
	return err
}

func (e *Engine) approveOnce(ctx context.Context, documentID id.ID) error {
	doc, err := e.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	// Idempotent no-op: at-least-once callers retry approve.
	if doc.Status != entity.DocStatusDraft {
		logger.Debug(ctx, "approve skipped, not a draft",
			"document_id", doc.ID, "status", doc.Status)
		return nil
	}

	// Idempotency by external key: another document holding the same
	// external id means this business event was already processed.
	if doc.ExternalID != "" {
		other, err := e.docs.FindByExternalID(ctx, doc.ExternalID)
		if err != nil {
			return err
		}
		if other != nil && other.ID != doc.ID && other.Status != entity.DocStatusDraft {
			logger.Info(ctx, "approve skipped, external id already processed",
				"document_id", doc.ID, "external_id", doc.ExternalID,
				"processed_by", other.ID)
			return nil
		}
	}

	totals := CalculateTotals(doc.Lines)

	if err := e.fillDueDate(ctx, doc); err != nil {
		return err
	}

	if err := e.policy.Check(ctx, doc, totals); err != nil {
		return err
	}

	handler, ok := e.handlers[doc.Type]
	if !ok {
		return apperror.NewValidation("unknown document type").
			WithDetail("type", string(doc.Type))
	}
	if err := handler(ctx, doc, totals); err != nil {
		return err
	}

	doc.TotalLocal = types.RoundLocal(totals.Gross.Mul(doc.FxRate))

	if doc.Number == "" {
		number, err := e.numbers.NextNumber(ctx, NumberPrefix(doc.Type), doc.Date)
		if err != nil {
			return fmt.Errorf("allocate number: %w", err)
		}
		doc.Number = number
	}

	if err := doc.MarkPosted(); err != nil {
		return err
	}
	if err := e.docs.Update(ctx, doc); err != nil {
		return err
	}

	if err := e.audit.Record(ctx, audit.NewEvent(ctx, doc, audit.ActionPosted, map[string]any{
		"number":      doc.Number,
		"total_local": doc.TotalLocal.String(),
		"lines":       len(doc.Lines),
	})); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	logger.Info(ctx, "document posted",
		"document_id", doc.ID, "type", doc.Type, "number", doc.Number)
	return nil
}

func (e *Engine) loadDocument(ctx context.Context, documentID id.ID) (*entity.Document, error) {
	doc, err := e.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	lines, err := e.docs.GetLines(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// fillDueDate derives the due date from the partner's payment term when
// the document leaves it unset.
func (e *Engine) fillDueDate(ctx context.Context, doc *entity.Document) error {
	if doc.DueDate != nil || doc.PartnerID == nil || !doc.Type.IsFinancial() {
		return nil
	}
	pt, err := e.partners.GetByID(ctx, *doc.PartnerID)
	if err != nil {
		return err
	}
	due := doc.Date.AddDate(0, 0, pt.PaymentTermDays)
	doc.DueDate = &due
	return nil
}

// --- per-type handlers ---

// postNothing: quotes post with no quantity or ledger effects.
func (e *Engine) postNothing(ctx context.Context, doc *entity.Document, totals Totals) error {
	return nil
}

// postSalesOrder reserves stock: one atomic increment per line, no
// movements, no ledger entries.
func (e *Engine) postSalesOrder(ctx context.Context, doc *entity.Document, totals Totals) error {
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if err := e.products.IncrementReserved(ctx, line.ItemID, line.BaseQuantity()); err != nil {
			return fmt.Errorf("reserve %s: %w", line.ItemID, err)
		}
	}
	return nil
}

// postOutgoing emits one negative movement per line (dispatch,
// count-adjustment-out).
func (e *Engine) postOutgoing(ctx context.Context, doc *entity.Document, totals Totals) error {
	movements := make([]entity.StockMovement, 0, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		m := entity.NewStockMovement(doc, line, line.BaseQuantity().Neg())
		m.WarehouseID = doc.SourceWarehouseID
		m.LocationID = line.SourceLocationID
		movements = append(movements, m)
	}
	return e.stock.Record(ctx, movements)
}

// postIncoming emits one positive movement per line. Incoming goods
// carry the line price as movement unit cost and fold the receipt into
// the item's moving weighted average.
func (e *Engine) postIncoming(ctx context.Context, doc *entity.Document, totals Totals) error {
	for i := range doc.Lines {
		line := &doc.Lines[i]
		baseQty := line.BaseQuantity()

		m := entity.NewStockMovement(doc, line, baseQty)
		m.WarehouseID = doc.DestWarehouseID
		m.LocationID = line.DestLocationID

		if doc.Type == entity.DocTypeIncomingGoods {
			m.UnitCost = line.UnitPrice

			if err := e.rollAverageCost(ctx, line.ItemID, baseQty, line.UnitPrice); err != nil {
				return err
			}
		}

		if err := e.stock.Record(ctx, []entity.StockMovement{m}); err != nil {
			return err
		}
	}
	return nil
}

// rollAverageCost folds an incoming quantity at price into the item's
// moving weighted average. On-hand is read before the new movement is
// recorded; an unset cost (or empty stock) initializes from the price.
func (e *Engine) rollAverageCost(ctx context.Context, itemID id.ID, qty types.Quantity, price types.Money) error {
	p, err := e.products.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	onHand, err := e.stock.OnHand(ctx, itemID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("on hand: %w", err)
	}

	newCost := price
	if p.Cost.Sign() > 0 && onHand.IsPositive() {
		held := onHand.Decimal().Mul(p.Cost)
		incoming := qty.Decimal().Mul(price)
		newCost = held.Add(incoming).Div(onHand.Decimal().Add(qty.Decimal()))
	}

	return e.products.UpdateCost(ctx, itemID, newCost)
}

// postTransfer emits a negative movement at the source warehouse and a
// positive one at the destination, both referencing the same line.
func (e *Engine) postTransfer(ctx context.Context, doc *entity.Document, totals Totals) error {
	srcLoc, err := e.defaultLocation(ctx, doc.SourceWarehouseID)
	if err != nil {
		return err
	}
	dstLoc, err := e.defaultLocation(ctx, doc.DestWarehouseID)
	if err != nil {
		return err
	}

	movements := make([]entity.StockMovement, 0, 2*len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		baseQty := line.BaseQuantity()

		out := entity.NewStockMovement(doc, line, baseQty.Neg())
		out.WarehouseID = doc.SourceWarehouseID
		out.LocationID = srcLoc

		in := entity.NewStockMovement(doc, line, baseQty)
		in.WarehouseID = doc.DestWarehouseID
		in.LocationID = dstLoc

		movements = append(movements, out, in)
	}
	return e.stock.Record(ctx, movements)
}

func (e *Engine) defaultLocation(ctx context.Context, warehouseID *id.ID) (*id.ID, error) {
	if warehouseID == nil {
		return nil, apperror.NewInvalidTransfer("transfer requires source and destination warehouses")
	}
	wh, err := e.warehouses.GetByID(ctx, *warehouseID)
	if err != nil {
		return nil, err
	}
	return wh.DefaultLocationID, nil
}

// postProduction emits one positive movement for the finished item and
// a negative movement for every bill-of-materials component.
func (e *Engine) postProduction(ctx context.Context, doc *entity.Document, totals Totals) error {
	for i := range doc.Lines {
		line := &doc.Lines[i]
		baseQty := line.BaseQuantity()

		movements := []entity.StockMovement{entity.NewStockMovement(doc, line, baseQty)}
		movements[0].WarehouseID = doc.DestWarehouseID

		components, err := e.products.Components(ctx, line.ItemID)
		if err != nil {
			return fmt.Errorf("components for %s: %w", line.ItemID, err)
		}
		for _, c := range components {
			m := entity.NewStockMovement(doc, line, baseQty.Mul(c.QtyPer).Neg())
			m.ItemID = c.ComponentID
			m.WarehouseID = doc.SourceWarehouseID
			movements = append(movements, m)
		}

		if err := e.stock.Record(ctx, movements); err != nil {
			return err
		}
	}
	return nil
}

// postFinancial writes one partner ledger entry per the type's
// debit/credit mapping, in local currency. A zero amount writes
// nothing.
func (e *Engine) postFinancial(ctx context.Context, doc *entity.Document, totals Totals) error {
	amountLocal := types.RoundLocal(totals.Gross.Mul(doc.FxRate))
	if amountLocal.Sign() == 0 {
		return nil
	}

	side := doc.Type.LedgerSide()

	// Receivable increases are gated by the partner's credit limit.
	if side == entity.LedgerSideDebit && doc.Type == entity.DocTypeSalesInvoice && e.credit != nil {
		if err := e.credit.Check(ctx, *doc.PartnerID, amountLocal); err != nil {
			return err
		}
	}

	entry := entity.NewLedgerEntry(*doc.PartnerID, doc.ID, doc.Date, doc.DueDate, side, amountLocal)
	return e.ledger.WriteEntry(ctx, &entry)
}
