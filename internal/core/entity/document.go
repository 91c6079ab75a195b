package entity

import (
	"context"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// DocType is the closed set of business document types.
// Unknown values are rejected at the boundary (ParseDocType), never
// deep inside the posting engine.
type DocType string

const (
	DocTypeQuote           DocType = "quote"
	DocTypeSalesOrder      DocType = "sales_order"
	DocTypeDispatch        DocType = "dispatch"
	DocTypeSalesInvoice    DocType = "sales_invoice"
	DocTypePurchaseInvoice DocType = "purchase_invoice"
	DocTypeIncomingGoods   DocType = "incoming_goods"
	DocTypeTransfer        DocType = "transfer"
	DocTypeProduction      DocType = "production"
	DocTypeCountAdjustIn   DocType = "count_adjustment_in"
	DocTypeCountAdjustOut  DocType = "count_adjustment_out"
	DocTypeReceipt         DocType = "receipt"
	DocTypePayment         DocType = "payment"
)

var docTypes = map[DocType]struct{}{
	DocTypeQuote:           {},
	DocTypeSalesOrder:      {},
	DocTypeDispatch:        {},
	DocTypeSalesInvoice:    {},
	DocTypePurchaseInvoice: {},
	DocTypeIncomingGoods:   {},
	DocTypeTransfer:        {},
	DocTypeProduction:      {},
	DocTypeCountAdjustIn:   {},
	DocTypeCountAdjustOut:  {},
	DocTypeReceipt:         {},
	DocTypePayment:         {},
}

// ParseDocType validates a raw type string at the boundary.
func ParseDocType(s string) (DocType, error) {
	t := DocType(s)
	if _, ok := docTypes[t]; !ok {
		return "", apperror.NewValidation("unknown document type").
			WithDetail("type", s)
	}
	return t, nil
}

// IsPhysical reports whether posting the type emits quantity movements.
func (t DocType) IsPhysical() bool {
	switch t {
	case DocTypeDispatch, DocTypeIncomingGoods, DocTypeTransfer,
		DocTypeProduction, DocTypeCountAdjustIn, DocTypeCountAdjustOut:
		return true
	}
	return false
}

// IsFinancial reports whether posting the type emits a partner ledger entry.
func (t DocType) IsFinancial() bool {
	switch t {
	case DocTypeSalesInvoice, DocTypePurchaseInvoice, DocTypeReceipt, DocTypePayment:
		return true
	}
	return false
}

// LedgerSide maps a financial document type to the side of the partner
// ledger entry it produces. Sales invoices and payments to suppliers
// debit the partner; purchase invoices and receipts from customers
// credit it.
func (t DocType) LedgerSide() LedgerSide {
	switch t {
	case DocTypeSalesInvoice, DocTypePayment:
		return LedgerSideDebit
	case DocTypePurchaseInvoice, DocTypeReceipt:
		return LedgerSideCredit
	}
	return LedgerSideNone
}

// DocStatus is the document lifecycle state.
type DocStatus string

const (
	DocStatusDraft    DocStatus = "draft"
	DocStatusPosted   DocStatus = "posted"
	DocStatusCanceled DocStatus = "canceled"
)

// CanTransition reports whether the status transition is legal.
// The only legal transitions are draft→posted and posted→canceled;
// canceled is terminal.
func CanTransition(from, to DocStatus) bool {
	switch {
	case from == DocStatusDraft && to == DocStatusPosted:
		return true
	case from == DocStatusPosted && to == DocStatusCanceled:
		return true
	}
	return false
}

// Document is the header of a business transaction.
// Owned by its creator while draft; once posted it is logically immutable
// except for the status transition performed by the reversal engine.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+year)
	Number string `db:"number" json:"number"`

	Type   DocType   `db:"doc_type" json:"type"`
	Status DocStatus `db:"status" json:"status"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// DueDate applies to financial documents; filled from the partner's
	// payment term when left unset.
	DueDate *time.Time `db:"due_date" json:"dueDate,omitempty"`

	// Currency and the fixed FX rate to local currency for this document.
	Currency string      `db:"currency" json:"currency"`
	FxRate   types.Money `db:"fx_rate" json:"fxRate"`

	// PartnerID is nil for warehouse-internal documents.
	PartnerID *id.ID `db:"partner_id" json:"partnerId,omitempty"`

	// Warehouse references. Transfers require both, distinct.
	SourceWarehouseID *id.ID `db:"source_warehouse_id" json:"sourceWarehouseId,omitempty"`
	DestWarehouseID   *id.ID `db:"dest_warehouse_id" json:"destWarehouseId,omitempty"`

	// ExternalID is an optional idempotency key, unique when present.
	ExternalID string `db:"external_id" json:"externalId,omitempty"`

	// TotalLocal is the gross total converted at FxRate, 2 decimals.
	TotalLocal types.Money `db:"total_local" json:"totalLocal"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`

	// Table part
	Lines []DocumentLine `db:"-" json:"lines"`
}

// DocumentLine is a child row of a Document.
// Quantity is in the document's unit; multiply by Coefficient to obtain
// the base-unit quantity all downstream engines operate in.
type DocumentLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemID      id.ID          `db:"item_id" json:"itemId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Unit        string         `db:"unit" json:"unit"`
	Coefficient types.Quantity `db:"coefficient" json:"coefficient"`

	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	VATRate   types.Money `db:"vat_rate" json:"vatRate"`

	SourceLocationID *id.ID `db:"source_location_id" json:"sourceLocationId,omitempty"`
	DestLocationID   *id.ID `db:"dest_location_id" json:"destLocationId,omitempty"`
	LotID            *id.ID `db:"lot_id" json:"lotId,omitempty"`
}

// BaseQuantity returns the line quantity converted to base units.
func (l DocumentLine) BaseQuantity() types.Quantity {
	if l.Coefficient.IsZero() {
		return l.Quantity
	}
	return l.Quantity.Mul(l.Coefficient)
}

// NewDocument creates a new draft document.
func NewDocument(docType DocType) *Document {
	return &Document{
		BaseDocument: NewBaseDocument(),
		Type:         docType,
		Status:       DocStatusDraft,
		Date:         time.Now().UTC(),
		Currency:     "EUR",
		FxRate:       types.MustMoney("1"),
		Lines:        make([]DocumentLine, 0),
	}
}

// AddLine appends a line with the next line number.
func (d *Document) AddLine(line DocumentLine) {
	if id.IsNil(line.LineID) {
		line.LineID = id.New()
	}
	line.LineNo = len(d.Lines) + 1
	if line.Coefficient.IsZero() {
		line.Coefficient = types.NewQuantityFromFloat64(1)
	}
	d.Lines = append(d.Lines, line)
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if _, ok := docTypes[d.Type]; !ok {
		return apperror.NewValidation("unknown document type").
			WithDetail("type", string(d.Type))
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	if d.FxRate.Sign() <= 0 {
		return apperror.NewValidation("fx rate must be positive").
			WithDetail("field", "fxRate")
	}

	for i, line := range d.Lines {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() && d.Type != DocTypeReceipt && d.Type != DocTypePayment {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// CanModify checks if document can be modified.
// Only drafts are mutable.
func (d *Document) CanModify() error {
	if d.Status != DocStatusDraft {
		return apperror.NewBusinessRule(
			apperror.CodeDocumentPosted,
			"Cannot modify a posted or canceled document.",
		).WithDetail("document_id", d.ID.String()).
			WithDetail("status", string(d.Status))
	}
	return nil
}

// MarkPosted transitions the document to posted.
func (d *Document) MarkPosted() error {
	if !CanTransition(d.Status, DocStatusPosted) {
		return apperror.NewInvalidTransition(string(d.Status), string(DocStatusPosted))
	}
	d.Status = DocStatusPosted
	d.Touch()
	return nil
}

// MarkCanceled transitions the document to canceled.
func (d *Document) MarkCanceled() error {
	if !CanTransition(d.Status, DocStatusCanceled) {
		return apperror.NewInvalidTransition(string(d.Status), string(DocStatusCanceled))
	}
	d.Status = DocStatusCanceled
	d.Touch()
	return nil
}
