package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/partner"
)

func creditFixture(t *testing.T, limit string, rule string) (*CreditPolicy, *memRepo, *partner.Partner) {
	t.Helper()
	repo := newMemRepo()
	partners := newMemPartners()
	svc := NewService(repo, stubTx{})

	p := partner.New("ACME", "Acme Ltd")
	p.CreditLimit = types.MustMoney(limit)
	require.NoError(t, partners.Create(context.Background(), p))

	policy, err := NewCreditPolicy(partners, svc, rule)
	require.NoError(t, err)
	return policy, repo, p
}

func TestCreditPolicy_DefaultRule(t *testing.T) {
	policy, repo, p := creditFixture(t, "1000", "")
	ctx := context.Background()

	writeEntry(repo, p.ID, entity.LedgerSideDebit, "800", daysAgo(10), nil)

	assert.NoError(t, policy.Check(ctx, p.ID, types.MustMoney("200")))

	err := policy.Check(ctx, p.ID, types.MustMoney("300"))
	assert.True(t, apperror.IsCode(err, apperror.CodeCreditLimitExceeded), "got %v", err)
}

func TestCreditPolicy_ZeroLimitDisablesCheck(t *testing.T) {
	policy, repo, p := creditFixture(t, "0", "")
	ctx := context.Background()

	writeEntry(repo, p.ID, entity.LedgerSideDebit, "999999", daysAgo(10), nil)

	assert.NoError(t, policy.Check(ctx, p.ID, types.MustMoney("500")))
}

func TestCreditPolicy_PaymentsReduceExposure(t *testing.T) {
	policy, repo, p := creditFixture(t, "1000", "")
	ctx := context.Background()

	writeEntry(repo, p.ID, entity.LedgerSideDebit, "900", daysAgo(10), nil)
	writeEntry(repo, p.ID, entity.LedgerSideCredit, "400", daysAgo(2), nil)

	// Exposure is 500, so another 500 fits exactly.
	assert.NoError(t, policy.Check(ctx, p.ID, types.MustMoney("500")))
}

func TestCreditPolicy_CustomRule(t *testing.T) {
	policy, repo, p := creditFixture(t, "1000", "exposure + delta <= limit * 1.1")
	ctx := context.Background()

	writeEntry(repo, p.ID, entity.LedgerSideDebit, "800", daysAgo(10), nil)

	assert.NoError(t, policy.Check(ctx, p.ID, types.MustMoney("250")))

	err := policy.Check(ctx, p.ID, types.MustMoney("350"))
	assert.True(t, apperror.IsCode(err, apperror.CodeCreditLimitExceeded), "got %v", err)
}

func TestCreditPolicy_CustomRuleAppliesDespiteZeroLimit(t *testing.T) {
	policy, _, p := creditFixture(t, "0", "exposure + delta <= limit")
	ctx := context.Background()

	err := policy.Check(ctx, p.ID, types.MustMoney("1"))
	assert.True(t, apperror.IsCode(err, apperror.CodeCreditLimitExceeded), "got %v", err)
}

func TestNewCreditPolicy_RejectsBadExpression(t *testing.T) {
	_, err := NewCreditPolicy(newMemPartners(), NewService(newMemRepo(), stubTx{}), "exposure +")
	assert.Error(t, err)
}
