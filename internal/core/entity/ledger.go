package entity

import (
	"context"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// LedgerSide distinguishes the debit and credit columns of the partner
// sub-ledger.
type LedgerSide string

const (
	LedgerSideNone   LedgerSide = ""
	LedgerSideDebit  LedgerSide = "debit"
	LedgerSideCredit LedgerSide = "credit"
)

// Opposite returns the swapped side (used by compensating entries).
func (s LedgerSide) Opposite() LedgerSide {
	switch s {
	case LedgerSideDebit:
		return LedgerSideCredit
	case LedgerSideCredit:
		return LedgerSideDebit
	}
	return LedgerSideNone
}

// EntryStatus is the allocation lifecycle of a ledger entry.
type EntryStatus string

const (
	EntryStatusOpen     EntryStatus = "open"
	EntryStatusClosed   EntryStatus = "closed"
	EntryStatusCanceled EntryStatus = "canceled"
)

// LedgerEntry is an immutable partner sub-ledger fact (receivable/payable).
// Exactly one of Debit/Credit is non-zero per entry; the storage schema
// backs this with a CHECK constraint.
type LedgerEntry struct {
	ID id.ID `db:"id" json:"id"`

	PartnerID  id.ID `db:"partner_id" json:"partnerId"`
	DocumentID id.ID `db:"document_id" json:"documentId"`

	Date    time.Time  `db:"date" json:"date"`
	DueDate *time.Time `db:"due_date" json:"dueDate,omitempty"`

	Debit  types.Money `db:"debit" json:"debit"`
	Credit types.Money `db:"credit" json:"credit"`

	// AmountLocal is the entry amount in local currency, 2 decimals.
	AmountLocal types.Money `db:"amount_local" json:"amountLocal"`

	Status EntryStatus `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewLedgerEntry creates an open entry on the given side.
func NewLedgerEntry(partnerID, documentID id.ID, date time.Time, dueDate *time.Time, side LedgerSide, amount types.Money) LedgerEntry {
	e := LedgerEntry{
		ID:          id.New(),
		PartnerID:   partnerID,
		DocumentID:  documentID,
		Date:        date,
		DueDate:     dueDate,
		Debit:       types.Zero(),
		Credit:      types.Zero(),
		AmountLocal: amount,
		Status:      EntryStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	switch side {
	case LedgerSideDebit:
		e.Debit = amount
	case LedgerSideCredit:
		e.Credit = amount
	}
	return e
}

// Side returns which column carries the entry amount.
func (e *LedgerEntry) Side() LedgerSide {
	if e.Debit.Sign() != 0 {
		return LedgerSideDebit
	}
	if e.Credit.Sign() != 0 {
		return LedgerSideCredit
	}
	return LedgerSideNone
}

// Amount returns the non-zero column value.
func (e *LedgerEntry) Amount() types.Money {
	if e.Debit.Sign() != 0 {
		return e.Debit
	}
	return e.Credit
}

// SignedAmount returns the amount signed by side: debit positive,
// credit negative. Used by aging and credit exposure.
func (e *LedgerEntry) SignedAmount() types.Money {
	if e.Side() == LedgerSideCredit {
		return e.Credit.Neg()
	}
	return e.Debit
}

// Validate enforces the accounting XOR rule: exactly one of debit/credit
// is non-zero, never both, never neither.
func (e *LedgerEntry) Validate(ctx context.Context) error {
	debitSet := e.Debit.Sign() != 0
	creditSet := e.Credit.Sign() != 0
	if debitSet == creditSet {
		return apperror.NewBusinessRule(
			apperror.CodeDebitCreditExclusive,
			"Exactly one of debit/credit must be non-zero",
		).WithDetail("entry_id", e.ID.String()).
			WithDetail("debit", e.Debit.String()).
			WithDetail("credit", e.Credit.String())
	}
	if e.Debit.Sign() < 0 || e.Credit.Sign() < 0 {
		return apperror.NewBusinessRule(
			apperror.CodeDebitCreditExclusive,
			"Debit and credit amounts must not be negative",
		).WithDetail("entry_id", e.ID.String())
	}
	if id.IsNil(e.PartnerID) {
		return apperror.NewValidation("partner is required").
			WithDetail("field", "partnerId")
	}
	return nil
}

var _ Validatable = (*LedgerEntry)(nil)

// Allocation links one payment-side entry to one invoice-side entry for
// a matched amount. Created and removed by the allocation engine only.
type Allocation struct {
	ID id.ID `db:"id" json:"id"`

	PaymentEntryID id.ID `db:"payment_entry_id" json:"paymentEntryId"`
	InvoiceEntryID id.ID `db:"invoice_entry_id" json:"invoiceEntryId"`

	Amount types.Money `db:"amount" json:"amount"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewAllocation creates an allocation record.
func NewAllocation(paymentEntryID, invoiceEntryID id.ID, amount types.Money) Allocation {
	return Allocation{
		ID:             id.New(),
		PaymentEntryID: paymentEntryID,
		InvoiceEntryID: invoiceEntryID,
		Amount:         amount,
		CreatedAt:      time.Now().UTC(),
	}
}
