// Package product provides the item master: identity, moving-average
// cost and reserved quantity, plus bill-of-materials composition.
package product

import (
	"context"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// Product is an inventory item.
type Product struct {
	entity.BaseCatalog

	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`

	// BaseUnit is the unit all movements are recorded in.
	BaseUnit string `db:"base_unit" json:"baseUnit"`

	// Cost is the moving weighted average unit cost. Mutated only by
	// incoming-goods postings and the landed-cost engine.
	Cost types.Money `db:"cost" json:"cost"`

	// Reserved is the quantity held by posted sales orders.
	Reserved types.Quantity `db:"reserved" json:"reserved"`
}

// New creates a product with generated ID.
func New(sku, name, baseUnit string) *Product {
	return &Product{
		BaseCatalog: entity.NewBaseCatalog(),
		SKU:         sku,
		Name:        name,
		BaseUnit:    baseUnit,
		Cost:        types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if p.BaseUnit == "" {
		return apperror.NewValidation("base unit is required").
			WithDetail("field", "baseUnit")
	}
	return nil
}

// BOMComponent is one component line of a product's bill of materials.
// Producing one base unit of the parent consumes QtyPer base units of
// the component.
type BOMComponent struct {
	ProductID   id.ID          `db:"product_id" json:"productId"`
	ComponentID id.ID          `db:"component_id" json:"componentId"`
	QtyPer      types.Quantity `db:"qty_per" json:"qtyPer"`
}
