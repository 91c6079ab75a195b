// Package document_repo provides the PostgreSQL implementation of the
// document repository.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/domain"
	"tabula/internal/domain/documents"
	"tabula/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "doc_documents"
	linesTable     = "doc_document_lines"
)

var documentColumns = postgres.ExtractDBColumns[entity.Document]()

var lineColumns = postgres.ExtractDBColumns[entity.DocumentLine]()

// DocumentRepo implements documents.Repository over a single header table
// plus a line table keyed by document id.
type DocumentRepo struct {
	txm *postgres.TxManager
}

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{txm: txm}
}

func (r *DocumentRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new document header.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filtered := make(map[string]any, len(documentColumns))
	for _, col := range documentColumns {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.builder().Insert(documentsTable).SetMap(filtered)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err = querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", documentsTable, err)
	}

	return nil
}

// Update updates a document header with optimistic locking.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	filtered := make(map[string]any, len(documentColumns))
	for _, col := range documentColumns {
		switch col {
		case "id", "created_at", "created_by":
			continue
		case "version", "updated_at":
			continue // managed by repo
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := r.builder().
		Update(documentsTable).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", documentsTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(documentsTable, doc.ID)
	}

	doc.SetVersion(version + 1)
	return nil
}

// Delete soft-deletes a document.
func (r *DocumentRepo) Delete(ctx context.Context, documentID id.ID) error {
	q := r.builder().
		Update(documentsTable).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": documentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", documentsTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(documentsTable, documentID.String())
	}

	return nil
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(documentColumns...).From(documentsTable)
}

// GetByID retrieves a document header by ID.
func (r *DocumentRepo) GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": documentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc entity.Document
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", documentID.String())
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}

	return &doc, nil
}

// GetLines retrieves document lines ordered by line number.
func (r *DocumentRepo) GetLines(ctx context.Context, documentID id.ID) ([]entity.DocumentLine, error) {
	q := r.builder().
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []entity.DocumentLine
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the document's lines.
func (r *DocumentRepo) SaveLines(ctx context.Context, documentID id.ID, lines []entity.DocumentLine) error {
	querier := r.txm.GetQuerier(ctx)

	delSQL, delArgs, err := r.builder().
		Delete(linesTable).
		Where(squirrel.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	cols := append([]string{"document_id"}, lineColumns...)
	q := r.builder().Insert(linesTable).Columns(cols...)
	for _, line := range lines {
		data := postgres.StructToMap(line)
		values := make([]any, 0, len(cols))
		values = append(values, documentID)
		for _, col := range lineColumns {
			values = append(values, data[col])
		}
		q = q.Values(values...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// FindByExternalID returns the document holding the external id, or nil.
func (r *DocumentRepo) FindByExternalID(ctx context.Context, externalID string) (*entity.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"external_id": externalID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc entity.Document
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by external id: %w", err)
	}

	return &doc, nil
}

// List retrieves documents with standard filtering.
func (r *DocumentRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Document], error) {
	result := domain.ListResult[*entity.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"doc_type": *filter.Type})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

func (r *DocumentRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(documentColumns))
	for _, col := range documentColumns {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "date DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// Ensure interface compliance.
var _ documents.Repository = (*DocumentRepo)(nil)
