package dto

import (
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// DocumentLineRequest is one line of a create/update document request.
type DocumentLineRequest struct {
	ItemID      string         `json:"itemId" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
	Unit        string         `json:"unit"`
	Coefficient types.Quantity `json:"coefficient"`
	UnitPrice   types.Money    `json:"unitPrice"`
	VATRate     types.Money    `json:"vatRate"`

	SourceLocationID *string `json:"sourceLocationId,omitempty"`
	DestLocationID   *string `json:"destLocationId,omitempty"`
	LotID            *string `json:"lotId,omitempty"`
}

// CreateDocumentRequest creates a draft document.
type CreateDocumentRequest struct {
	Type     string     `json:"type" binding:"required"`
	Date     *time.Time `json:"date,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	Currency string     `json:"currency,omitempty"`
	FxRate   *types.Money `json:"fxRate,omitempty"`

	PartnerID         *string `json:"partnerId,omitempty"`
	SourceWarehouseID *string `json:"sourceWarehouseId,omitempty"`
	DestWarehouseID   *string `json:"destWarehouseId,omitempty"`

	ExternalID string `json:"externalId,omitempty"`
	Comment    string `json:"comment,omitempty"`

	Lines []DocumentLineRequest `json:"lines"`
}

// UpdateDocumentRequest updates a draft document.
type UpdateDocumentRequest struct {
	Date     *time.Time   `json:"date,omitempty"`
	DueDate  *time.Time   `json:"dueDate,omitempty"`
	Currency *string      `json:"currency,omitempty"`
	FxRate   *types.Money `json:"fxRate,omitempty"`

	PartnerID         *string `json:"partnerId,omitempty"`
	SourceWarehouseID *string `json:"sourceWarehouseId,omitempty"`
	DestWarehouseID   *string `json:"destWarehouseId,omitempty"`

	Comment *string `json:"comment,omitempty"`

	Lines *[]DocumentLineRequest `json:"lines,omitempty"`
}

func parseOptionalID(raw *string, field string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := id.Parse(*raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid id format").WithDetail("field", field)
	}
	return &parsed, nil
}

func (r DocumentLineRequest) toLine() (entity.DocumentLine, error) {
	itemID, err := id.Parse(r.ItemID)
	if err != nil {
		return entity.DocumentLine{}, apperror.NewValidation("invalid id format").WithDetail("field", "itemId")
	}

	line := entity.DocumentLine{
		ItemID:      itemID,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		Coefficient: r.Coefficient,
		UnitPrice:   r.UnitPrice,
		VATRate:     r.VATRate,
	}

	if line.SourceLocationID, err = parseOptionalID(r.SourceLocationID, "sourceLocationId"); err != nil {
		return entity.DocumentLine{}, err
	}
	if line.DestLocationID, err = parseOptionalID(r.DestLocationID, "destLocationId"); err != nil {
		return entity.DocumentLine{}, err
	}
	if line.LotID, err = parseOptionalID(r.LotID, "lotId"); err != nil {
		return entity.DocumentLine{}, err
	}

	return line, nil
}

// ToEntity builds a draft document from the request.
func (r CreateDocumentRequest) ToEntity() (*entity.Document, error) {
	docType, err := entity.ParseDocType(r.Type)
	if err != nil {
		return nil, err
	}

	doc := entity.NewDocument(docType)
	if r.Date != nil {
		doc.Date = *r.Date
	}
	doc.DueDate = r.DueDate
	if r.Currency != "" {
		doc.Currency = r.Currency
	}
	if r.FxRate != nil {
		doc.FxRate = *r.FxRate
	}
	doc.ExternalID = r.ExternalID
	doc.Comment = r.Comment

	if doc.PartnerID, err = parseOptionalID(r.PartnerID, "partnerId"); err != nil {
		return nil, err
	}
	if doc.SourceWarehouseID, err = parseOptionalID(r.SourceWarehouseID, "sourceWarehouseId"); err != nil {
		return nil, err
	}
	if doc.DestWarehouseID, err = parseOptionalID(r.DestWarehouseID, "destWarehouseId"); err != nil {
		return nil, err
	}

	for _, lr := range r.Lines {
		line, err := lr.toLine()
		if err != nil {
			return nil, err
		}
		doc.AddLine(line)
	}

	return doc, nil
}

// ApplyTo overlays the update onto an existing draft.
func (r UpdateDocumentRequest) ApplyTo(doc *entity.Document) error {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.DueDate != nil {
		doc.DueDate = r.DueDate
	}
	if r.Currency != nil {
		doc.Currency = *r.Currency
	}
	if r.FxRate != nil {
		doc.FxRate = *r.FxRate
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	var err error
	if r.PartnerID != nil {
		if doc.PartnerID, err = parseOptionalID(r.PartnerID, "partnerId"); err != nil {
			return err
		}
	}
	if r.SourceWarehouseID != nil {
		if doc.SourceWarehouseID, err = parseOptionalID(r.SourceWarehouseID, "sourceWarehouseId"); err != nil {
			return err
		}
	}
	if r.DestWarehouseID != nil {
		if doc.DestWarehouseID, err = parseOptionalID(r.DestWarehouseID, "destWarehouseId"); err != nil {
			return err
		}
	}

	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, lr := range *r.Lines {
			line, err := lr.toLine()
			if err != nil {
				return err
			}
			doc.AddLine(line)
		}
	}

	return nil
}

// DocumentResponse is the API shape of a document.
type DocumentResponse struct {
	*entity.Document
}

// FromDocument wraps a document for response.
func FromDocument(doc *entity.Document) DocumentResponse {
	return DocumentResponse{Document: doc}
}
