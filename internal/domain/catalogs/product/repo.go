package product

import (
	"context"

	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// Repository defines persistence operations for products.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// UpdateCost sets the moving-average cost.
	UpdateCost(ctx context.Context, productID id.ID, cost types.Money) error

	// IncrementReserved adjusts the reserved quantity by delta as one
	// atomic UPDATE (never read-modify-write): concurrent sales-order
	// approvals for the same item must both be reflected.
	IncrementReserved(ctx context.Context, productID id.ID, delta types.Quantity) error

	// Components returns the bill of materials for a product.
	Components(ctx context.Context, productID id.ID) ([]BOMComponent, error)

	// SaveComponents replaces the bill of materials for a product.
	SaveComponents(ctx context.Context, productID id.ID, components []BOMComponent) error
}
