package ledger

import (
	"context"
	"fmt"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/tx"
	"tabula/internal/core/types"
	"tabula/pkg/logger"
)

// Service provides ledger entry writing and the allocation engine.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new ledger service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// WriteEntry validates and stores a new ledger entry.
// Called by the posting engine inside the posting transaction.
func (s *Service) WriteEntry(ctx context.Context, e *entity.LedgerEntry) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// ReverseByDocument cancels a document's ledger entries and writes
// compensating entries with debit/credit swapped, already canceled.
// Called by the reversal engine inside the cancel transaction.
func (s *Service) ReverseByDocument(ctx context.Context, documentID id.ID, at time.Time) error {
	entries, err := s.repo.EntriesByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("entries by document: %w", err)
	}

	for _, e := range entries {
		if e.Status == entity.EntryStatusCanceled {
			continue
		}

		comp := entity.NewLedgerEntry(
			e.PartnerID, e.DocumentID, at, e.DueDate,
			e.Side().Opposite(), e.Amount(),
		)
		comp.Status = entity.EntryStatusCanceled

		if err := comp.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.CreateEntry(ctx, &comp); err != nil {
			return fmt.Errorf("create compensating entry: %w", err)
		}
		if err := s.repo.UpdateEntryStatus(ctx, e.ID, entity.EntryStatusCanceled); err != nil {
			return fmt.Errorf("cancel entry: %w", err)
		}
	}

	return nil
}

// GetEntry loads one entry.
func (s *Service) GetEntry(ctx context.Context, entryID id.ID) (*entity.LedgerEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// remaining returns the entry amount minus allocations already applied.
func (s *Service) remaining(ctx context.Context, e *entity.LedgerEntry) (types.Money, error) {
	allocated, err := s.repo.AllocatedAgainst(ctx, e.ID)
	if err != nil {
		return types.Zero(), fmt.Errorf("allocated against %s: %w", e.ID, err)
	}
	return e.Amount().Sub(allocated), nil
}

// recomputeStatus closes a fully allocated entry and reopens a closed
// one whose allocations no longer cover it. Canceled entries are left
// alone.
func (s *Service) recomputeStatus(ctx context.Context, entryID id.ID) error {
	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.Status == entity.EntryStatusCanceled {
		return nil
	}

	allocated, err := s.repo.AllocatedAgainst(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("allocated against %s: %w", e.ID, err)
	}

	status := entity.EntryStatusOpen
	if allocated.Cmp(e.Amount()) >= 0 {
		status = entity.EntryStatusClosed
	}
	if status == e.Status {
		return nil
	}
	return s.repo.UpdateEntryStatus(ctx, e.ID, status)
}

// Allocate matches a payment-side (credit) entry against an
// invoice-side (debit) entry of the same partner for amount.
func (s *Service) Allocate(ctx context.Context, paymentEntryID, invoiceEntryID id.ID, amount types.Money) (*entity.Allocation, error) {
	if amount.Sign() <= 0 {
		return nil, apperror.NewValidation("allocation amount must be positive").
			WithDetail("amount", amount.String())
	}

	var allocation *entity.Allocation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.repo.GetEntry(ctx, paymentEntryID)
		if err != nil {
			return err
		}
		invoice, err := s.repo.GetEntry(ctx, invoiceEntryID)
		if err != nil {
			return err
		}

		if payment.PartnerID != invoice.PartnerID {
			return apperror.NewBusinessRule(
				apperror.CodePartnerMismatch,
				"Entries belong to different partners",
			).WithDetail("payment_partner", payment.PartnerID.String()).
				WithDetail("invoice_partner", invoice.PartnerID.String())
		}
		if payment.Side() != entity.LedgerSideCredit {
			return apperror.NewValidation("payment entry must be a credit entry").
				WithDetail("entry_id", paymentEntryID.String())
		}
		if invoice.Side() != entity.LedgerSideDebit {
			return apperror.NewValidation("invoice entry must be a debit entry").
				WithDetail("entry_id", invoiceEntryID.String())
		}
		if payment.Status == entity.EntryStatusCanceled || invoice.Status == entity.EntryStatusCanceled {
			return apperror.NewValidation("cannot allocate against a canceled entry")
		}

		paymentRemaining, err := s.remaining(ctx, payment)
		if err != nil {
			return err
		}
		if amount.Cmp(paymentRemaining) > 0 {
			return apperror.NewBusinessRule(
				apperror.CodeAllocationExceeded,
				"Amount exceeds payment entry's unallocated remainder",
			).WithDetail("entry_id", paymentEntryID.String()).
				WithDetail("remaining", paymentRemaining.String()).
				WithDetail("requested", amount.String())
		}

		invoiceRemaining, err := s.remaining(ctx, invoice)
		if err != nil {
			return err
		}
		if amount.Cmp(invoiceRemaining) > 0 {
			return apperror.NewBusinessRule(
				apperror.CodeAllocationExceeded,
				"Amount exceeds what the invoice entry still needs",
			).WithDetail("entry_id", invoiceEntryID.String()).
				WithDetail("remaining", invoiceRemaining.String()).
				WithDetail("requested", amount.String())
		}

		a := entity.NewAllocation(paymentEntryID, invoiceEntryID, amount)
		if err := s.repo.CreateAllocation(ctx, &a); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}

		if err := s.recomputeStatus(ctx, paymentEntryID); err != nil {
			return err
		}
		if err := s.recomputeStatus(ctx, invoiceEntryID); err != nil {
			return err
		}

		allocation = &a
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "allocation recorded",
		"allocation_id", allocation.ID,
		"payment_entry", paymentEntryID,
		"invoice_entry", invoiceEntryID,
		"amount", amount.String(),
	)
	return allocation, nil
}

// Deallocate removes an allocation and recomputes both entries'
// statuses (may reopen a closed entry).
func (s *Service) Deallocate(ctx context.Context, allocationID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetAllocation(ctx, allocationID)
		if err != nil {
			return err
		}

		if err := s.repo.DeleteAllocation(ctx, allocationID); err != nil {
			return fmt.Errorf("delete allocation: %w", err)
		}

		if err := s.recomputeStatus(ctx, a.PaymentEntryID); err != nil {
			return err
		}
		return s.recomputeStatus(ctx, a.InvoiceEntryID)
	})
}

// AutoAllocateOldest greedily matches a partner's open credit entries
// (oldest first) against open debit entries (oldest first), up to the
// hint amount, or all available credit when hint is nil. Returns the
// number of allocations made. Best-effort convenience: individual
// Allocate/Deallocate calls stay correct without it.
func (s *Service) AutoAllocateOldest(ctx context.Context, partnerID id.ID, amountHint *types.Money) (int, error) {
	count := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		credits, err := s.repo.EntriesByPartner(ctx, partnerID, EntryFilter{
			Side:     entity.LedgerSideCredit,
			OpenOnly: true,
		})
		if err != nil {
			return fmt.Errorf("open credit entries: %w", err)
		}
		debits, err := s.repo.EntriesByPartner(ctx, partnerID, EntryFilter{
			Side:     entity.LedgerSideDebit,
			OpenOnly: true,
		})
		if err != nil {
			return fmt.Errorf("open debit entries: %w", err)
		}

		budget := types.Money{}
		unlimited := amountHint == nil
		if !unlimited {
			budget = *amountHint
		}

		di := 0
		var debitRemaining types.Money
		debitLoaded := false

		for ci := range credits {
			creditRemaining, err := s.remaining(ctx, &credits[ci])
			if err != nil {
				return err
			}

			for creditRemaining.Sign() > 0 && (unlimited || budget.Sign() > 0) {
				if !debitLoaded {
					for di < len(debits) {
						debitRemaining, err = s.remaining(ctx, &debits[di])
						if err != nil {
							return err
						}
						if debitRemaining.Sign() > 0 {
							debitLoaded = true
							break
						}
						di++
					}
					if !debitLoaded {
						return nil // no open debit left
					}
				}

				chunk := decimalMin(creditRemaining, debitRemaining)
				if !unlimited {
					chunk = decimalMin(chunk, budget)
				}
				if chunk.Sign() <= 0 {
					return nil
				}

				a := entity.NewAllocation(credits[ci].ID, debits[di].ID, chunk)
				if err := s.repo.CreateAllocation(ctx, &a); err != nil {
					return fmt.Errorf("create allocation: %w", err)
				}
				count++

				creditRemaining = creditRemaining.Sub(chunk)
				debitRemaining = debitRemaining.Sub(chunk)
				if !unlimited {
					budget = budget.Sub(chunk)
				}

				if err := s.recomputeStatus(ctx, credits[ci].ID); err != nil {
					return err
				}
				if err := s.recomputeStatus(ctx, debits[di].ID); err != nil {
					return err
				}

				if debitRemaining.Sign() <= 0 {
					di++
					debitLoaded = false
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "auto allocation finished", "partner_id", partnerID, "allocations", count)
	return count, nil
}

func decimalMin(a, b types.Money) types.Money {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
