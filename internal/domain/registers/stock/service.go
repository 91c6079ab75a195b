// Package stock provides the stock accumulation register service.
package stock

import (
	"context"
	"fmt"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/product"
	"tabula/pkg/logger"
)

// Service provides business operations for the stock register.
// Transactions are managed by the caller (posting engine).
type Service struct {
	repo     Repository
	products product.Repository
}

// NewService creates a new stock register service.
func NewService(repo Repository, products product.Repository) *Service {
	return &Service{
		repo:     repo,
		products: products,
	}
}

// Record writes stock movements from a document posting.
// Called during posting within a transaction.
func (s *Service) Record(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	for i, m := range movements {
		if m.Quantity.IsZero() {
			return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must not be zero", i))
		}
		if id.IsNil(m.DocumentID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: document_id is required", i))
		}
		if id.IsNil(m.ItemID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: item_id is required", i))
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Debug(ctx, "recorded stock movements",
		"count", len(movements),
		"document_id", movements[0].DocumentID,
	)

	return nil
}

// MovementsByDocument returns the movements a posting recorded.
func (s *Service) MovementsByDocument(ctx context.Context, documentID id.ID) ([]entity.StockMovement, error) {
	return s.repo.MovementsByDocument(ctx, documentID)
}

// OnHand returns the item's on-hand quantity as of the cutoff.
func (s *Service) OnHand(ctx context.Context, itemID id.ID, cutoff time.Time) (types.Quantity, error) {
	return s.repo.OnHand(ctx, itemID, cutoff)
}

// Available returns on-hand minus the quantity reserved by posted
// sales orders.
func (s *Service) Available(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	onHand, err := s.repo.OnHand(ctx, itemID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("on hand: %w", err)
	}

	p, err := s.products.GetByID(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("get product: %w", err)
	}

	return onHand - p.Reserved, nil
}

// CheckAvailability verifies required quantity is on hand as of the
// given date, locking the item row first so concurrent postings for the
// same item serialize. Returns INSUFFICIENT_STOCK on shortage.
func (s *Service) CheckAvailability(ctx context.Context, itemID id.ID, asOf time.Time, required types.Quantity) error {
	if err := s.repo.LockItem(ctx, itemID); err != nil {
		return fmt.Errorf("lock item: %w", err)
	}

	onHand, err := s.repo.OnHand(ctx, itemID, asOf)
	if err != nil {
		return fmt.Errorf("on hand for %s: %w", itemID, err)
	}

	if onHand < required {
		return apperror.NewInsufficientStock(itemID.String(), required.Float64(), onHand.Float64())
	}

	return nil
}

// AdjustUnitCost increases a movement's unit cost (landed cost only).
func (s *Service) AdjustUnitCost(ctx context.Context, movementLineID id.ID, delta types.Money) error {
	return s.repo.AdjustUnitCost(ctx, movementLineID, delta)
}

// MovementHistory returns the item's movement history, oldest first.
func (s *Service) MovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return s.repo.MovementHistory(ctx, itemID, filter)
}
