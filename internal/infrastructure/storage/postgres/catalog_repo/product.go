package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/product"
	"tabula/internal/infrastructure/storage/postgres"
)

const (
	productTable = "cat_products"
	bomTable     = "cat_bom_components"
)

var bomColumns = postgres.ExtractDBColumns[product.BOMComponent]()

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
	txm *postgres.TxManager
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			productTable,
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
		txm: txm,
	}
}

// UpdateCost sets the moving-average cost.
func (r *ProductRepo) UpdateCost(ctx context.Context, productID id.ID, cost types.Money) error {
	sql := `UPDATE cat_products SET cost = $1 WHERE id = $2`

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, cost, productID)
	if err != nil {
		return fmt.Errorf("update cost: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID.String())
	}

	return nil
}

// IncrementReserved adjusts the reserved quantity by delta as one atomic
// UPDATE. Two concurrent sales-order approvals for the same item must
// both be reflected, so this never reads the row first.
func (r *ProductRepo) IncrementReserved(ctx context.Context, productID id.ID, delta types.Quantity) error {
	sql := `UPDATE cat_products SET reserved = reserved + $1 WHERE id = $2`

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, delta, productID)
	if err != nil {
		return fmt.Errorf("increment reserved: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID.String())
	}

	return nil
}

// Components returns the bill of materials for a product.
func (r *ProductRepo) Components(ctx context.Context, productID id.ID) ([]product.BOMComponent, error) {
	q := r.Builder().
		Select(bomColumns...).
		From(bomTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("component_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var components []product.BOMComponent
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &components, sql, args...); err != nil {
		return nil, fmt.Errorf("select components: %w", err)
	}

	return components, nil
}

// SaveComponents replaces the bill of materials for a product.
func (r *ProductRepo) SaveComponents(ctx context.Context, productID id.ID, components []product.BOMComponent) error {
	querier := r.txm.GetQuerier(ctx)

	delSQL, delArgs, err := r.Builder().
		Delete(bomTable).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete components: %w", err)
	}

	if len(components) == 0 {
		return nil
	}

	q := r.Builder().Insert(bomTable).Columns(bomColumns...)
	for _, c := range components {
		q = q.Values(productID, c.ComponentID, c.QtyPer)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert components: %w", err)
	}

	return nil
}

// Ensure interface compliance.
var _ product.Repository = (*ProductRepo)(nil)
