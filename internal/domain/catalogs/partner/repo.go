package partner

import (
	"context"

	"tabula/internal/core/id"
)

// Repository defines persistence operations for partners.
type Repository interface {
	Create(ctx context.Context, p *Partner) error
	Update(ctx context.Context, p *Partner) error
	GetByID(ctx context.Context, partnerID id.ID) (*Partner, error)
	GetByCode(ctx context.Context, code string) (*Partner, error)
}
