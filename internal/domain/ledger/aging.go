package ledger

import (
	"context"
	"fmt"
	"time"

	"tabula/internal/core/entity"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
)

// AgingReport buckets a partner's open, unallocated balance by age
// relative to due date. Debits contribute positive, credits negative.
type AgingReport struct {
	PartnerID id.ID     `json:"partnerId"`
	AsOf      time.Time `json:"asOf"`

	NotDue    types.Money `json:"notDue"`
	Days0To30 types.Money `json:"days0to30"`
	Days31To60 types.Money `json:"days31to60"`
	Days61To90 types.Money `json:"days61to90"`
	Over90    types.Money `json:"over90"`

	Total types.Money `json:"total"`
}

// BuildAging computes the aging report for a partner as of a date.
// Each open entry contributes its unallocated remainder signed by side;
// zero remainders are discarded and canceled entries are excluded
// entirely.
func (s *Service) BuildAging(ctx context.Context, partnerID id.ID, asOf time.Time) (*AgingReport, error) {
	entries, err := s.repo.EntriesByPartner(ctx, partnerID, EntryFilter{OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open entries: %w", err)
	}

	report := &AgingReport{
		PartnerID:  partnerID,
		AsOf:       asOf,
		NotDue:     types.Zero(),
		Days0To30:  types.Zero(),
		Days31To60: types.Zero(),
		Days61To90: types.Zero(),
		Over90:     types.Zero(),
		Total:      types.Zero(),
	}

	for i := range entries {
		e := &entries[i]
		if e.Status == entity.EntryStatusCanceled {
			continue
		}

		allocated, err := s.repo.AllocatedAgainst(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("allocated against %s: %w", e.ID, err)
		}
		remaining := e.Amount().Sub(allocated)
		if remaining.Sign() == 0 {
			continue
		}
		if e.Side() == entity.LedgerSideCredit {
			remaining = remaining.Neg()
		}

		due := e.Date
		if e.DueDate != nil {
			due = *e.DueDate
		}
		days := daysBetween(due, asOf)

		switch {
		case days < 0:
			report.NotDue = report.NotDue.Add(remaining)
		case days <= 30:
			report.Days0To30 = report.Days0To30.Add(remaining)
		case days <= 60:
			report.Days31To60 = report.Days31To60.Add(remaining)
		case days <= 90:
			report.Days61To90 = report.Days61To90.Add(remaining)
		default:
			report.Over90 = report.Over90.Add(remaining)
		}
		report.Total = report.Total.Add(remaining)
	}

	return report, nil
}

// Exposure returns the partner's current open signed balance (the aging
// grand total as of now). Used by the credit policy.
func (s *Service) Exposure(ctx context.Context, partnerID id.ID) (types.Money, error) {
	report, err := s.BuildAging(ctx, partnerID, time.Now().UTC())
	if err != nil {
		return types.Zero(), err
	}
	return report.Total, nil
}

// daysBetween counts whole calendar days from due to asOf (negative
// when due is in the future).
func daysBetween(due, asOf time.Time) int {
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	asOfDay := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(asOfDay.Sub(dueDay).Hours() / 24)
}
