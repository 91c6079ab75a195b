// Package audit provides the posting audit trail contract.
// The storage implementation lives in infrastructure/storage/postgres.
package audit

import (
	"context"
	"time"

	appctx "tabula/internal/core/context"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
)

// Action is the audited lifecycle operation.
type Action string

const (
	ActionPosted   Action = "posted"
	ActionCanceled Action = "canceled"
)

// Event is one append-only audit fact about a document.
type Event struct {
	ID         id.ID          `db:"id" json:"id"`
	DocumentID id.ID          `db:"document_id" json:"documentId"`
	DocType    entity.DocType `db:"doc_type" json:"docType"`
	Action     Action         `db:"action" json:"action"`
	UserID     string         `db:"user_id" json:"userId,omitempty"`
	OccurredAt time.Time      `db:"occurred_at" json:"occurredAt"`

	// Payload carries engine context (totals, movement counts, reasons).
	Payload map[string]any `db:"-" json:"payload,omitempty"`
}

// NewEvent builds an event for a document, picking the acting user up
// from the request context.
func NewEvent(ctx context.Context, doc *entity.Document, action Action, payload map[string]any) Event {
	return Event{
		ID:         id.New(),
		DocumentID: doc.ID,
		DocType:    doc.Type,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Recorder appends audit events. Implementations must not fail the
// business transaction on serialization problems alone.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// NopRecorder discards events (tests, CLI tools).
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, event Event) error { return nil }

var _ Recorder = NopRecorder{}
