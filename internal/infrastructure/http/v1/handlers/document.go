package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/domain"
	"tabula/internal/domain/documents"
	"tabula/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles HTTP requests for documents.
type DocumentHandler struct {
	*BaseHandler
	service *documents.Service
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, service *documents.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
	}
}

func (h *DocumentHandler) docID(c *gin.Context) (id.ID, bool) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "id"))
		return id.Nil(), false
	}
	return docID, true
}

// Create handles POST /documents - creates a draft.
func (h *DocumentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateDraft(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Update handles PUT /documents/:id - updates a draft.
func (h *DocumentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := req.ApplyTo(doc); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.UpdateDraft(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Delete handles DELETE /documents/:id - soft-deletes a draft.
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteDraft(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Approve handles POST /documents/:id/approve - posts the document.
func (h *DocumentHandler) Approve(c *gin.Context) {
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	if err := h.service.Approve(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Cancel handles POST /documents/:id/cancel - reverses the document.
func (h *DocumentHandler) Cancel(c *gin.Context) {
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// ConvertToDispatch handles POST /documents/:id/convert/dispatch.
func (h *DocumentHandler) ConvertToDispatch(c *gin.Context) {
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	doc, err := h.service.ConvertSalesOrderToDispatch(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// ConvertToInvoice handles POST /documents/:id/convert/invoice.
func (h *DocumentHandler) ConvertToInvoice(c *gin.Context) {
	docID, ok := h.docID(c)
	if !ok {
		return
	}

	doc, err := h.service.ConvertDispatchToInvoice(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// List handles GET /documents - list with filtering.
func (h *DocumentHandler) List(c *gin.Context) {
	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "-date")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	if raw := c.Query("type"); raw != "" {
		docType, err := entity.ParseDocType(raw)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Type = &docType
	}

	if raw := c.Query("status"); raw != "" {
		status := entity.DocStatus(raw)
		switch status {
		case entity.DocStatusDraft, entity.DocStatusPosted, entity.DocStatusCanceled:
			filter.Status = &status
		default:
			h.Error(c, apperror.NewValidation("unknown status").WithDetail("status", raw))
			return
		}
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}
