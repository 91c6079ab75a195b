package posting

import (
	"context"
	"fmt"
	"time"

	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/domain/audit"
	"tabula/pkg/logger"
)

// Cancel reverses a posted document: compensating movements for every
// original movement, a compensating ledger entry with debit/credit
// swapped, and the posted→canceled transition. A document that is not
// posted (draft, or already canceled) is a successful no-op.
func (e *Engine) Cancel(ctx context.Context, documentID id.ID) error {
	return e.withRetry(ctx, documentID, e.cancelOnce)
}

func (e *Engine) cancelOnce(ctx context.Context, documentID id.ID) error {
	doc, err := e.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if doc.Status != entity.DocStatusPosted {
		logger.Debug(ctx, "cancel skipped, not posted",
			"document_id", doc.ID, "status", doc.Status)
		return nil
	}

	now := time.Now().UTC()

	switch {
	case doc.Type == entity.DocTypeSalesOrder:
		// Release reservations taken at approve time.
		for i := range doc.Lines {
			line := &doc.Lines[i]
			if err := e.products.IncrementReserved(ctx, line.ItemID, line.BaseQuantity().Neg()); err != nil {
				return fmt.Errorf("release reservation %s: %w", line.ItemID, err)
			}
		}

	case doc.Type == entity.DocTypeQuote:
		// No side effects to compensate.

	default:
		if err := e.reverseMovements(ctx, doc, now); err != nil {
			return err
		}
		if err := e.ledger.ReverseByDocument(ctx, doc.ID, now); err != nil {
			return err
		}
	}

	if err := doc.MarkCanceled(); err != nil {
		return err
	}
	if err := e.docs.Update(ctx, doc); err != nil {
		return err
	}

	if err := e.audit.Record(ctx, audit.NewEvent(ctx, doc, audit.ActionCanceled, map[string]any{
		"number": doc.Number,
	})); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	logger.Info(ctx, "document canceled",
		"document_id", doc.ID, "type", doc.Type, "number", doc.Number)
	return nil
}

// reverseMovements emits one compensating movement per original
// movement, quantity negated, dated at cancellation time.
func (e *Engine) reverseMovements(ctx context.Context, doc *entity.Document, at time.Time) error {
	originals, err := e.stock.MovementsByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("movements by document: %w", err)
	}
	if len(originals) == 0 {
		return nil
	}

	compensating := make([]entity.StockMovement, 0, len(originals))
	for _, m := range originals {
		compensating = append(compensating, m.Compensating(at))
	}
	return e.stock.Record(ctx, compensating)
}
