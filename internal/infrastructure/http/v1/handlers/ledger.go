package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/domain/ledger"
	"tabula/internal/infrastructure/http/v1/dto"
)

// LedgerHandler handles allocation and aging requests.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Allocate handles POST /ledger/allocations.
func (h *LedgerHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	paymentID, err := id.Parse(req.PaymentEntryID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "paymentEntryId"))
		return
	}
	invoiceID, err := id.Parse(req.InvoiceEntryID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "invoiceEntryId"))
		return
	}

	allocation, err := h.service.Allocate(c.Request.Context(), paymentID, invoiceID, req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, allocation)
}

// Deallocate handles DELETE /ledger/allocations/:id.
func (h *LedgerHandler) Deallocate(c *gin.Context) {
	allocationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "id"))
		return
	}

	if err := h.service.Deallocate(c.Request.Context(), allocationID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// AutoAllocate handles POST /ledger/allocations/auto.
func (h *LedgerHandler) AutoAllocate(c *gin.Context) {
	var req dto.AutoAllocateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	partnerID, err := id.Parse(req.PartnerID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "partnerId"))
		return
	}

	count, err := h.service.AutoAllocateOldest(c.Request.Context(), partnerID, req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AutoAllocateResponse{Allocations: count})
}

// Aging handles GET /ledger/partners/:id/aging.
func (h *LedgerHandler) Aging(c *gin.Context) {
	partnerID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "id"))
		return
	}

	var q dto.AgingQuery
	if !h.BindQuery(c, &q) {
		return
	}
	asOf := time.Now().UTC()
	if q.AsOf != nil {
		asOf = *q.AsOf
	}

	report, err := h.service.BuildAging(c.Request.Context(), partnerID, asOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}
