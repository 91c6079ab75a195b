// Package warehouse provides the warehouse catalog.
package warehouse

import (
	"context"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
)

// Warehouse is a physical stock location group. Each warehouse resolves
// to one default location for transfer postings.
type Warehouse struct {
	entity.BaseCatalog

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	DefaultLocationID *id.ID `db:"default_location_id" json:"defaultLocationId,omitempty"`
}

// New creates a warehouse with generated ID.
func New(code, name string) *Warehouse {
	return &Warehouse{
		BaseCatalog: entity.NewBaseCatalog(),
		Code:        code,
		Name:        name,
	}
}

// Validate implements entity.Validatable.
func (w *Warehouse) Validate(ctx context.Context) error {
	if w.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

// Repository defines persistence operations for warehouses.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error
	Update(ctx context.Context, w *Warehouse) error
	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)
}
