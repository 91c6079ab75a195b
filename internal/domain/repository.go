// Package domain provides core business logic interfaces and types.
package domain

import (
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches against document numbers
	Search string

	// IDs filters by specific IDs
	IDs []id.ID

	// Type filters documents by type
	Type *entity.DocType

	// Status filters documents by lifecycle state
	Status *entity.DocStatus

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// OrderBy specifies sorting (e.g., "date", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-date",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
}
