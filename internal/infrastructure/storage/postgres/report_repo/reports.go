// Package report_repo provides read-only aggregate queries for reports.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/reports"
	"tabula/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm *postgres.TxManager
}

// NewReportRepo creates a report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txm: txm}
}

// StockBalances returns per-item on-hand quantities at the cutoff.
// Items whose movements net to zero are filtered out.
func (r *ReportRepo) StockBalances(ctx context.Context, asOf time.Time) ([]reports.ItemBalance, error) {
	sql := `
		SELECT item_id, SUM(quantity) AS on_hand
		FROM reg_stock_movements
		WHERE period <= $1
		GROUP BY item_id
		HAVING SUM(quantity) <> 0
		ORDER BY item_id
	`

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, asOf)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var balances []reports.ItemBalance
	for rows.Next() {
		var (
			itemID       id.ID
			onHandScaled int64
		)
		if err := rows.Scan(&itemID, &onHandScaled); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, reports.ItemBalance{
			ItemID: itemID,
			OnHand: types.NewQuantityFromInt64Scaled(onHandScaled),
		})
	}

	return balances, rows.Err()
}

// Ensure interface compliance.
var _ reports.Repository = (*ReportRepo)(nil)
