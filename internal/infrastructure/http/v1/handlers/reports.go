package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"tabula/internal/core/apperror"
	"tabula/internal/domain/reports"
)

// ReportsHandler handles report requests.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// InventoryValue handles GET /reports/inventory-value.
func (h *ReportsHandler) InventoryValue(c *gin.Context) {
	asOf := time.Now().UTC()
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid asOf date").WithDetail("asOf", raw))
			return
		}
		asOf = parsed
	}

	report, err := h.service.GetTotalInventoryValue(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}
