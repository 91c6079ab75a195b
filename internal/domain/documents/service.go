package documents

import (
	"context"
	"fmt"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/tx"
	"tabula/internal/domain"
	"tabula/internal/domain/posting"
	"tabula/pkg/logger"
	"tabula/pkg/numerator"
)

// Service provides business operations for documents.
type Service struct {
	repo      Repository
	engine    *posting.Engine
	numbers   numerator.Generator
	txManager tx.Manager
}

// NewService creates a new document service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	numbers numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		numbers:   numbers,
		txManager: txManager,
	}
}

// CreateDraft creates a new draft document with an allocated number.
func (s *Service) CreateDraft(ctx context.Context, doc *entity.Document) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	doc.Status = entity.DocStatusDraft

	if doc.Number == "" {
		number, err := s.numbers.NextNumber(ctx, posting.NumberPrefix(doc.Type), doc.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "draft created",
		"id", doc.ID, "type", doc.Type, "number", doc.Number)
	return nil
}

// GetByID retrieves a document with lines.
func (s *Service) GetByID(ctx context.Context, documentID id.ID) (*entity.Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// UpdateDraft updates a draft document. Posted and canceled documents
// are immutable.
func (s *Service) UpdateDraft(ctx context.Context, doc *entity.Document) error {
	current, err := s.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	if err := current.CanModify(); err != nil {
		return err
	}

	if err := doc.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
}

// DeleteDraft soft-deletes a draft document.
func (s *Service) DeleteDraft(ctx context.Context, documentID id.ID) error {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := doc.CanModify(); err != nil {
		return err
	}

	return s.repo.Delete(ctx, documentID)
}

// Approve posts the document (delegates to the posting engine).
func (s *Service) Approve(ctx context.Context, documentID id.ID) error {
	return s.engine.Approve(ctx, documentID)
}

// Cancel reverses the document (delegates to the reversal engine).
func (s *Service) Cancel(ctx context.Context, documentID id.ID) error {
	return s.engine.Cancel(ctx, documentID)
}

// ConvertSalesOrderToDispatch creates a draft dispatch from a posted
// sales order, copying partner, warehouse and lines.
func (s *Service) ConvertSalesOrderToDispatch(ctx context.Context, orderID id.ID) (*entity.Document, error) {
	return s.convert(ctx, orderID, entity.DocTypeSalesOrder, entity.DocTypeDispatch)
}

// ConvertDispatchToInvoice creates a draft sales invoice from a posted
// dispatch, copying partner and priced lines.
func (s *Service) ConvertDispatchToInvoice(ctx context.Context, dispatchID id.ID) (*entity.Document, error) {
	return s.convert(ctx, dispatchID, entity.DocTypeDispatch, entity.DocTypeSalesInvoice)
}

func (s *Service) convert(ctx context.Context, sourceID id.ID, wantType, targetType entity.DocType) (*entity.Document, error) {
	source, err := s.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if source.Type != wantType {
		return nil, apperror.NewValidation("wrong source document type").
			WithDetail("expected", string(wantType)).
			WithDetail("actual", string(source.Type))
	}
	if source.Status != entity.DocStatusPosted {
		return nil, apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Only posted documents can be converted",
		).WithDetail("document_id", sourceID.String()).
			WithDetail("status", string(source.Status))
	}

	target := entity.NewDocument(targetType)
	target.PartnerID = source.PartnerID
	target.SourceWarehouseID = source.SourceWarehouseID
	target.DestWarehouseID = source.DestWarehouseID
	target.Currency = source.Currency
	target.FxRate = source.FxRate
	for _, line := range source.Lines {
		target.AddLine(entity.DocumentLine{
			ItemID:      line.ItemID,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			Coefficient: line.Coefficient,
			UnitPrice:   line.UnitPrice,
			VATRate:     line.VATRate,
		})
	}

	if err := s.CreateDraft(ctx, target); err != nil {
		return nil, err
	}

	logger.Info(ctx, "document converted",
		"source_id", sourceID, "target_id", target.ID,
		"from", wantType, "to", targetType)
	return target, nil
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.Document], error) {
	return s.repo.List(ctx, filter)
}
