package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"tabula/internal/core/apperror"
	"tabula/internal/domain/catalogs/partner"
	"tabula/internal/infrastructure/storage/postgres"
)

const partnerTable = "cat_partners"

// PartnerRepo implements partner.Repository.
type PartnerRepo struct {
	*BaseCatalogRepo[*partner.Partner]
}

// NewPartnerRepo creates a new partner repository.
func NewPartnerRepo(txm *postgres.TxManager) *PartnerRepo {
	return &PartnerRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			partnerTable,
			postgres.ExtractDBColumns[partner.Partner](),
			func() *partner.Partner { return &partner.Partner{} },
		),
	}
}

// GetByCode retrieves a partner by code.
func (r *PartnerRepo) GetByCode(ctx context.Context, code string) (*partner.Partner, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"code": code}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	p, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("partner", code)
		}
		return nil, err
	}
	return p, nil
}

// Ensure interface compliance.
var _ partner.Repository = (*PartnerRepo)(nil)
