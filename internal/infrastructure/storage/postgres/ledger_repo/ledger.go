// Package ledger_repo provides the PostgreSQL implementation of the
// partner ledger repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/ledger"
	"tabula/internal/infrastructure/storage/postgres"
)

const (
	entriesTable     = "reg_ledger_entries"
	allocationsTable = "reg_ledger_allocations"
)

var entryColumns = postgres.ExtractDBColumns[entity.LedgerEntry]()

var allocationColumns = postgres.ExtractDBColumns[entity.Allocation]()

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateEntry inserts a ledger entry.
func (r *LedgerRepo) CreateEntry(ctx context.Context, e *entity.LedgerEntry) error {
	data := postgres.StructToMap(e)
	filtered := make(map[string]any, len(entryColumns))
	for _, col := range entryColumns {
		filtered[col] = data[col]
	}

	sql, args, err := r.builder.Insert(entriesTable).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	return nil
}

// GetEntry retrieves one entry.
func (r *LedgerRepo) GetEntry(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"id": entryID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e entity.LedgerEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", entryID.String())
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}

	return &e, nil
}

// EntriesByDocument retrieves entries written by a document.
func (r *LedgerRepo) EntriesByDocument(ctx context.Context, documentID id.ID) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// EntriesByPartner returns a partner's entries oldest first.
func (r *LedgerRepo) EntriesByPartner(ctx context.Context, partnerID id.ID, filter ledger.EntryFilter) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"partner_id": partnerID})

	switch filter.Side {
	case entity.LedgerSideDebit:
		q = q.Where(squirrel.NotEq{"debit": 0})
	case entity.LedgerSideCredit:
		q = q.Where(squirrel.NotEq{"credit": 0})
	}

	if filter.OpenOnly {
		q = q.Where(squirrel.Eq{"status": entity.EntryStatusOpen})
	}

	q = q.OrderBy("date", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// UpdateEntryStatus sets an entry's allocation status.
func (r *LedgerRepo) UpdateEntryStatus(ctx context.Context, entryID id.ID, status entity.EntryStatus) error {
	sql, args, err := r.builder.Update(entriesTable).
		Set("status", status).
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("ledger entry", entryID.String())
	}

	return nil
}

// CreateAllocation inserts an allocation link.
func (r *LedgerRepo) CreateAllocation(ctx context.Context, a *entity.Allocation) error {
	data := postgres.StructToMap(a)
	filtered := make(map[string]any, len(allocationColumns))
	for _, col := range allocationColumns {
		filtered[col] = data[col]
	}

	sql, args, err := r.builder.Insert(allocationsTable).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}

	return nil
}

// GetAllocation retrieves one allocation.
func (r *LedgerRepo) GetAllocation(ctx context.Context, allocationID id.ID) (*entity.Allocation, error) {
	q := r.builder.Select(allocationColumns...).
		From(allocationsTable).
		Where(squirrel.Eq{"id": allocationID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a entity.Allocation
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("allocation", allocationID.String())
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}

	return &a, nil
}

// DeleteAllocation removes an allocation link.
func (r *LedgerRepo) DeleteAllocation(ctx context.Context, allocationID id.ID) error {
	sql, args, err := r.builder.Delete(allocationsTable).
		Where(squirrel.Eq{"id": allocationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("allocation", allocationID.String())
	}

	return nil
}

// AllocatedAgainst sums allocation amounts touching an entry.
func (r *LedgerRepo) AllocatedAgainst(ctx context.Context, entryID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(amount), 0)
		FROM reg_ledger_allocations
		WHERE payment_entry_id = $1 OR invoice_entry_id = $1
	`

	var total types.Money
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, entryID).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum allocations: %w", err)
	}

	return total, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)
