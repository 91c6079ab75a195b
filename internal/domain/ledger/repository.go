// Package ledger provides the partner sub-ledger: receivable/payable
// entries, payment-to-invoice allocation and receivables aging.
package ledger

import (
	"context"

	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// Repository defines operations on ledger entries and allocations.
type Repository interface {
	// Entries

	CreateEntry(ctx context.Context, e *entity.LedgerEntry) error
	GetEntry(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error)
	EntriesByDocument(ctx context.Context, documentID id.ID) ([]entity.LedgerEntry, error)

	// EntriesByPartner returns a partner's entries oldest first,
	// optionally restricted to one side and/or open status.
	EntriesByPartner(ctx context.Context, partnerID id.ID, filter EntryFilter) ([]entity.LedgerEntry, error)

	UpdateEntryStatus(ctx context.Context, entryID id.ID, status entity.EntryStatus) error

	// Allocations

	CreateAllocation(ctx context.Context, a *entity.Allocation) error
	GetAllocation(ctx context.Context, allocationID id.ID) (*entity.Allocation, error)
	DeleteAllocation(ctx context.Context, allocationID id.ID) error

	// AllocatedAgainst sums allocation amounts touching an entry on
	// either side of the link.
	AllocatedAgainst(ctx context.Context, entryID id.ID) (types.Money, error)
}

// EntryFilter restricts EntriesByPartner.
type EntryFilter struct {
	Side     entity.LedgerSide // zero value: both sides
	OpenOnly bool
}
