// Package register_repo provides PostgreSQL implementations for register
// repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/registers/stock"
	"tabula/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "reg_stock_movements"

var movementColumns = postgres.ExtractDBColumns[entity.StockMovement]()

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateMovements batch inserts movements.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementValues(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	// Fallback: non-transactional insert (slower). Prefer calling
	// CreateMovements within tx.
	q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementValues(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

func movementValues(m entity.StockMovement) []any {
	data := postgres.StructToMap(m)
	values := make([]any, 0, len(movementColumns))
	for _, col := range movementColumns {
		values = append(values, data[col])
	}
	return values
}

// MovementsByDocument retrieves movements recorded by a document.
func (r *StockRepo) MovementsByDocument(ctx context.Context, documentID id.ID) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return movements, nil
}

// OnHand sums signed quantities dated on/before cutoff.
func (r *StockRepo) OnHand(ctx context.Context, itemID id.ID, cutoff time.Time) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reg_stock_movements
		WHERE item_id = $1
		  AND period <= $2
	`

	var balanceScaled int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, itemID, cutoff).Scan(&balanceScaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("calculate on-hand: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(balanceScaled), nil
}

// LockItem serializes writers for one item within the current transaction
// using a transaction-scoped advisory lock keyed on the item id.
func (r *StockRepo) LockItem(ctx context.Context, itemID id.ID) error {
	if tx := r.txm.GetTx(ctx); tx == nil {
		return fmt.Errorf("LockItem requires transaction context")
	}

	sql := `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`
	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, itemID); err != nil {
		return fmt.Errorf("lock item: %w", err)
	}

	return nil
}

// AdjustUnitCost increases a movement's unit cost by delta.
func (r *StockRepo) AdjustUnitCost(ctx context.Context, movementLineID id.ID, delta types.Money) error {
	sql := `
		UPDATE reg_stock_movements
		SET unit_cost = unit_cost + $1
		WHERE line_id = $2
	`

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, delta, movementLineID)
	if err != nil {
		return fmt.Errorf("adjust unit cost: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("movement %s not found", movementLineID)
	}

	return nil
}

// MovementHistory returns movements for an item, oldest first.
func (r *StockRepo) MovementHistory(ctx context.Context, itemID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"item_id": itemID})

	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.ToDate})
	}

	q = q.OrderBy("period", "created_at")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	return movements, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
