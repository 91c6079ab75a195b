// Package stock provides the stock accumulation register: immutable
// quantity movements and the on-hand/available projection over them.
package stock

import (
	"context"
	"time"

	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// Repository defines operations for the stock register.
type Repository interface {
	// CreateMovements batch inserts movements (used during posting)
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// MovementsByDocument retrieves all movements recorded by a document
	MovementsByDocument(ctx context.Context, documentID id.ID) ([]entity.StockMovement, error)

	// OnHand sums signed quantities for an item dated on/before cutoff
	OnHand(ctx context.Context, itemID id.ID, cutoff time.Time) (types.Quantity, error)

	// LockItem serializes writers for one item within the current
	// transaction. Keeps the negative-stock check race-free relative to
	// concurrent movement inserts on stores without predicate locking.
	LockItem(ctx context.Context, itemID id.ID) error

	// AdjustUnitCost increases a movement's unit cost by delta.
	// The only after-the-fact mutation movements admit (landed cost).
	AdjustUnitCost(ctx context.Context, movementLineID id.ID, delta types.Money) error

	// MovementHistory returns movements for an item, oldest first.
	MovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]entity.StockMovement, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
