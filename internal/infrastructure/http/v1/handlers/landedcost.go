package handlers

import (
	"github.com/gin-gonic/gin"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/domain/landedcost"
	"tabula/internal/infrastructure/http/v1/dto"
)

// LandedCostHandler handles landed-cost redistribution requests.
type LandedCostHandler struct {
	*BaseHandler
	engine *landedcost.Engine
}

// NewLandedCostHandler creates a landed-cost handler.
func NewLandedCostHandler(base *BaseHandler, engine *landedcost.Engine) *LandedCostHandler {
	return &LandedCostHandler{
		BaseHandler: base,
		engine:      engine,
	}
}

// Apply handles POST /landed-costs/apply.
func (h *LandedCostHandler) Apply(c *gin.Context) {
	var req dto.ApplyLandedCostRequest
	if !h.BindJSON(c, &req) {
		return
	}

	costDocID, err := id.Parse(req.CostDocumentID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "costDocumentId"))
		return
	}

	targetIDs := make([]id.ID, 0, len(req.TargetIDs))
	for _, raw := range req.TargetIDs {
		targetID, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "targetIds"))
			return
		}
		targetIDs = append(targetIDs, targetID)
	}

	if err := h.engine.Apply(c.Request.Context(), costDocID, targetIDs); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "landed cost applied")
}
