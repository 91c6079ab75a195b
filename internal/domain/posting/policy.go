package posting

import (
	"context"
	"fmt"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/domain/registers/stock"
)

// Config carries posting behavior switches.
type Config struct {
	// AllowNegativeStock permits outgoing postings to drive on-hand
	// negative (back-order flows). Default false.
	AllowNegativeStock bool

	// MaxRetries bounds the optimistic-conflict retry loop.
	MaxRetries int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		AllowNegativeStock: false,
		MaxRetries:         3,
	}
}

// Policy decides whether posting a document may proceed. Pure
// validation: it reads stock and the item master but never writes.
type Policy struct {
	cfg      Config
	stock    *stock.Service
	products product.Repository
}

// NewPolicy creates a posting policy.
func NewPolicy(cfg Config, stockSvc *stock.Service, products product.Repository) *Policy {
	return &Policy{
		cfg:      cfg,
		stock:    stockSvc,
		products: products,
	}
}

// Check runs the posting gate, in order: transfer configuration,
// partner presence for financial types, quantity sign feasibility for
// physical types. Violations carry stable machine-readable codes. The
// debit/credit XOR rule is enforced on the entry itself
// (entity.LedgerEntry.Validate) before any write.
func (p *Policy) Check(ctx context.Context, doc *entity.Document, totals Totals) error {
	if doc.Type == entity.DocTypeTransfer {
		if doc.SourceWarehouseID == nil || doc.DestWarehouseID == nil {
			return apperror.NewInvalidTransfer("transfer requires source and destination warehouses")
		}
		if *doc.SourceWarehouseID == *doc.DestWarehouseID {
			return apperror.NewInvalidTransfer("transfer warehouses must be distinct").
				WithDetail("warehouse_id", doc.SourceWarehouseID.String())
		}
	}

	if doc.Type.IsFinancial() && doc.PartnerID == nil {
		return apperror.NewPartnerRequired(string(doc.Type))
	}

	if doc.Type.IsPhysical() && !p.cfg.AllowNegativeStock {
		demands, err := p.outgoingDemands(ctx, doc)
		if err != nil {
			return err
		}
		for _, d := range demands {
			if err := p.stock.CheckAvailability(ctx, d.itemID, doc.Date, d.quantity); err != nil {
				return err
			}
		}
	}

	return nil
}

type demand struct {
	itemID   id.ID
	quantity types.Quantity
}

// outgoingDemands aggregates the base-unit quantities a posting would
// take out of stock, per item. Production expands the finished item's
// bill of materials into component demand.
func (p *Policy) outgoingDemands(ctx context.Context, doc *entity.Document) ([]demand, error) {
	perItem := make(map[id.ID]types.Quantity)
	var order []id.ID

	add := func(itemID id.ID, qty types.Quantity) {
		if _, seen := perItem[itemID]; !seen {
			order = append(order, itemID)
		}
		perItem[itemID] += qty
	}

	for i := range doc.Lines {
		line := &doc.Lines[i]
		baseQty := line.BaseQuantity()

		switch doc.Type {
		case entity.DocTypeDispatch, entity.DocTypeCountAdjustOut, entity.DocTypeTransfer:
			add(line.ItemID, baseQty)
		case entity.DocTypeProduction:
			components, err := p.products.Components(ctx, line.ItemID)
			if err != nil {
				return nil, fmt.Errorf("components for %s: %w", line.ItemID, err)
			}
			for _, c := range components {
				add(c.ComponentID, baseQty.Mul(c.QtyPer))
			}
		}
	}

	demands := make([]demand, 0, len(order))
	for _, itemID := range order {
		demands = append(demands, demand{itemID: itemID, quantity: perItem[itemID]})
	}
	return demands, nil
}
