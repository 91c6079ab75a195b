package entity

import (
	"time"

	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// StockMovement is an immutable signed quantity fact against an item.
// The sum of signed quantities for an item, dated on/before a cutoff, is
// that item's on-hand quantity as of the cutoff.
//
// Movements are never updated in place; corrections are new compensating
// movements. The single exception is UnitCost, which the landed-cost
// engine may adjust after the fact.
type StockMovement struct {
	// LineID is the unique identifier for this movement (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// DocumentID is the document whose posting recorded this movement
	DocumentID id.ID   `db:"document_id" json:"documentId"`
	DocType    DocType `db:"doc_type" json:"docType"`

	// DocLineID back-references the document line that caused the movement.
	// Nil for manual corrections.
	DocLineID *id.ID `db:"doc_line_id" json:"docLineId,omitempty"`

	// Period is the business date of the movement
	Period time.Time `db:"period" json:"period"`

	ItemID id.ID `db:"item_id" json:"itemId"`

	// Quantity is signed and in base units: positive increases stock,
	// negative decreases it.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitCost is set for incoming goods; adjusted by landed cost.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	WarehouseID *id.ID `db:"warehouse_id" json:"warehouseId,omitempty"`
	LocationID  *id.ID `db:"location_id" json:"locationId,omitempty"`

	// CreatedAt is when the movement was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a movement for a document line.
func NewStockMovement(doc *Document, line *DocumentLine, quantity types.Quantity) StockMovement {
	m := StockMovement{
		LineID:     id.New(),
		DocumentID: doc.ID,
		DocType:    doc.Type,
		Period:     doc.Date,
		Quantity:   quantity,
		CreatedAt:  time.Now().UTC(),
	}
	if line != nil {
		lineID := line.LineID
		m.DocLineID = &lineID
		m.ItemID = line.ItemID
	}
	return m
}

// Compensating returns the inverse movement used by the reversal engine:
// same dimensions, quantity negated, recorded against the same document.
func (m StockMovement) Compensating(at time.Time) StockMovement {
	inv := m
	inv.LineID = id.New()
	inv.Quantity = m.Quantity.Neg()
	inv.Period = at
	inv.CreatedAt = time.Now().UTC()
	return inv
}

// IsReceipt reports whether the movement increases stock.
func (m StockMovement) IsReceipt() bool { return m.Quantity.IsPositive() }
