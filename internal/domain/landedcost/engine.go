// Package landedcost redistributes an ancillary cost document (freight,
// duty) across the quantities of prior goods receipts.
package landedcost

import (
	"context"
	"fmt"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/tx"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/domain/registers/stock"
	"tabula/pkg/logger"
)

// DocumentStore is the slice of the document repository the engine needs.
type DocumentStore interface {
	GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error)
	GetLines(ctx context.Context, documentID id.ID) ([]entity.DocumentLine, error)
}

// Engine applies landed costs to posted goods receipts.
//
// The redistribution adds perUnit = amount / sum(targetBaseQty) to every
// target movement's unit cost and to the item's moving average. This
// assumes the received lots are still fully on hand; it does not
// re-average against quantity already consumed.
type Engine struct {
	txManager tx.Manager
	docs      DocumentStore
	stock     *stock.Service
	products  product.Repository
}

// NewEngine creates a landed-cost engine.
func NewEngine(txManager tx.Manager, docs DocumentStore, stockSvc *stock.Service, products product.Repository) *Engine {
	return &Engine{
		txManager: txManager,
		docs:      docs,
		stock:     stockSvc,
		products:  products,
	}
}

// Apply redistributes the cost document's local amount across the
// target receipts' quantities, proportionally by quantity.
func (e *Engine) Apply(ctx context.Context, costDocumentID id.ID, targetIDs []id.ID) error {
	if len(targetIDs) == 0 {
		return apperror.NewValidation("at least one target receipt is required")
	}

	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		costDoc, err := e.docs.GetByID(ctx, costDocumentID)
		if err != nil {
			return err
		}
		if costDoc.Type != entity.DocTypePurchaseInvoice {
			return apperror.NewValidation("cost document must be a purchase invoice").
				WithDetail("document_id", costDocumentID.String()).
				WithDetail("type", string(costDoc.Type))
		}
		if costDoc.Status != entity.DocStatusPosted {
			return apperror.NewValidation("cost document must be posted").
				WithDetail("document_id", costDocumentID.String())
		}
		if costDoc.TotalLocal.Sign() <= 0 {
			return apperror.NewValidation("cost document amount must be positive").
				WithDetail("amount", costDoc.TotalLocal.String())
		}

		targets := make([]*entity.Document, 0, len(targetIDs))
		totalQty := types.Quantity(0)
		for _, targetID := range targetIDs {
			target, err := e.docs.GetByID(ctx, targetID)
			if err != nil {
				return err
			}
			if target.Type != entity.DocTypeIncomingGoods {
				return apperror.NewValidation("target must be an incoming goods document").
					WithDetail("document_id", targetID.String()).
					WithDetail("type", string(target.Type))
			}
			if target.Status != entity.DocStatusPosted {
				return apperror.NewValidation("target document must be posted").
					WithDetail("document_id", targetID.String())
			}

			lines, err := e.docs.GetLines(ctx, targetID)
			if err != nil {
				return fmt.Errorf("get lines: %w", err)
			}
			target.Lines = lines
			for i := range lines {
				totalQty += lines[i].BaseQuantity()
			}
			targets = append(targets, target)
		}

		if totalQty.IsZero() {
			return apperror.NewBusinessRule(
				apperror.CodeZeroCostBase,
				"Target receipts carry no quantity to distribute over",
			).WithDetail("cost_document_id", costDocumentID.String())
		}

		perUnit := costDoc.TotalLocal.Div(totalQty.Decimal())

		for _, target := range targets {
			movements, err := e.stock.MovementsByDocument(ctx, target.ID)
			if err != nil {
				return fmt.Errorf("movements for %s: %w", target.ID, err)
			}
			byLine := make(map[id.ID]entity.StockMovement, len(movements))
			for _, m := range movements {
				if m.DocLineID != nil && m.Quantity.IsPositive() {
					byLine[*m.DocLineID] = m
				}
			}

			for i := range target.Lines {
				line := &target.Lines[i]
				m, ok := byLine[line.LineID]
				if !ok {
					return apperror.NewNotFound("stock movement", line.LineID.String()).
						WithDetail("document_id", target.ID.String())
				}

				if err := e.stock.AdjustUnitCost(ctx, m.LineID, perUnit); err != nil {
					return fmt.Errorf("adjust unit cost: %w", err)
				}

				p, err := e.products.GetByID(ctx, line.ItemID)
				if err != nil {
					return err
				}
				if err := e.products.UpdateCost(ctx, line.ItemID, p.Cost.Add(perUnit)); err != nil {
					return fmt.Errorf("update product cost: %w", err)
				}
			}
		}

		logger.Info(ctx, "landed cost applied",
			"cost_document_id", costDocumentID,
			"targets", len(targets),
			"per_unit", perUnit.String(),
		)
		return nil
	})
}
