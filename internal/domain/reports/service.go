// Package reports builds read-only analytical figures over the registers.
package reports

import (
	"context"
	"time"

	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/product"
	"tabula/pkg/logger"
)

// ItemBalance is an item's on-hand quantity at a cutoff.
type ItemBalance struct {
	ItemID id.ID          `db:"item_id"`
	OnHand types.Quantity `db:"on_hand"`
}

// Repository reads aggregated register state for reporting.
type Repository interface {
	// StockBalances returns per-item on-hand quantities for movements
	// with period <= asOf. Items with a zero balance are omitted.
	StockBalances(ctx context.Context, asOf time.Time) ([]ItemBalance, error)
}

// InventoryValueLine is one item's contribution to the valuation.
type InventoryValueLine struct {
	ItemID   id.ID
	SKU      string
	Name     string
	OnHand   types.Quantity
	UnitCost types.Money
	Value    types.Money
}

// InventoryValue is the stock valuation at a point in time.
type InventoryValue struct {
	AsOf  time.Time
	Lines []InventoryValueLine
	Total types.Money
}

// Service computes reports.
type Service struct {
	repo     Repository
	products product.Repository
}

// NewService creates a report service.
func NewService(repo Repository, products product.Repository) *Service {
	return &Service{repo: repo, products: products}
}

// GetTotalInventoryValue values on-hand stock at asOf using each item's
// current moving-average cost. Costs are not reconstructed historically;
// the quantity is as of the cutoff, the cost is as of now.
func (s *Service) GetTotalInventoryValue(ctx context.Context, asOf time.Time) (*InventoryValue, error) {
	balances, err := s.repo.StockBalances(ctx, asOf)
	if err != nil {
		return nil, err
	}

	report := &InventoryValue{
		AsOf:  asOf,
		Lines: make([]InventoryValueLine, 0, len(balances)),
		Total: types.Zero(),
	}

	for _, b := range balances {
		if b.OnHand.IsZero() {
			continue
		}
		p, err := s.products.GetByID(ctx, b.ItemID)
		if err != nil {
			return nil, err
		}

		value := types.RoundLocal(b.OnHand.Decimal().Mul(p.Cost))
		report.Lines = append(report.Lines, InventoryValueLine{
			ItemID:   b.ItemID,
			SKU:      p.SKU,
			Name:     p.Name,
			OnHand:   b.OnHand,
			UnitCost: p.Cost,
			Value:    value,
		})
		report.Total = report.Total.Add(value)
	}

	logger.Debug(ctx, "inventory valued",
		"as_of", asOf,
		"items", len(report.Lines),
		"total", report.Total.String(),
	)
	return report, nil
}
