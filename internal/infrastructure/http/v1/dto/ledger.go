package dto

import (
	"time"

	"tabula/internal/core/types"
)

// AllocateRequest links a payment entry to an invoice entry.
type AllocateRequest struct {
	PaymentEntryID string      `json:"paymentEntryId" binding:"required"`
	InvoiceEntryID string      `json:"invoiceEntryId" binding:"required"`
	Amount         types.Money `json:"amount" binding:"required"`
}

// AutoAllocateRequest matches a partner's open credits against open
// debits, oldest first.
type AutoAllocateRequest struct {
	PartnerID string       `json:"partnerId" binding:"required"`
	Amount    *types.Money `json:"amount,omitempty"`
}

// AutoAllocateResponse reports how many allocations were created.
type AutoAllocateResponse struct {
	Allocations int `json:"allocations"`
}

// AgingQuery parameterizes the aging report.
type AgingQuery struct {
	AsOf *time.Time `form:"asOf" time_format:"2006-01-02"`
}

// ApplyLandedCostRequest redistributes a cost document over receipts.
type ApplyLandedCostRequest struct {
	CostDocumentID string   `json:"costDocumentId" binding:"required"`
	TargetIDs      []string `json:"targetIds" binding:"required"`
}
