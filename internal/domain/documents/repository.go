// Package documents provides draft lifecycle operations for business
// documents and their conversions. Posting itself is the posting
// engine's job.
package documents

import (
	"context"

	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/domain"
)

// Repository defines persistence operations for documents.
// Update applies an optimistic version check and returns
// CONCURRENT_MODIFICATION when the row moved underneath the caller.
type Repository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Update(ctx context.Context, doc *entity.Document) error
	Delete(ctx context.Context, documentID id.ID) error

	GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error)
	GetLines(ctx context.Context, documentID id.ID) ([]entity.DocumentLine, error)
	SaveLines(ctx context.Context, documentID id.ID, lines []entity.DocumentLine) error

	// FindByExternalID returns the document holding the external id,
	// or nil when none does.
	FindByExternalID(ctx context.Context, externalID string) (*entity.Document, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Document], error)
}
