package ledger

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"tabula/internal/core/apperror"
	"tabula/internal/core/id"
	"tabula/internal/core/types"
	"tabula/internal/domain/catalogs/partner"
)

// CreditPolicy guards a proposed receivable delta against the partner's
// credit limit, using the aging engine's current exposure figure.
//
// The default rule is exposure + delta <= limit. Deployments can
// override it with a CEL expression over (exposure, limit, delta)
// returning bool, e.g. "exposure + delta <= limit * 1.1".
type CreditPolicy struct {
	partners partner.Repository
	ledger   *Service
	program  cel.Program
}

// NewCreditPolicy creates a credit policy. ruleExpr may be empty for
// the default rule; otherwise it is compiled once here.
func NewCreditPolicy(partners partner.Repository, ledger *Service, ruleExpr string) (*CreditPolicy, error) {
	p := &CreditPolicy{
		partners: partners,
		ledger:   ledger,
	}

	if ruleExpr != "" {
		env, err := cel.NewEnv(
			cel.Variable("exposure", cel.DoubleType),
			cel.Variable("limit", cel.DoubleType),
			cel.Variable("delta", cel.DoubleType),
		)
		if err != nil {
			return nil, fmt.Errorf("cel env: %w", err)
		}
		ast, iss := env.Compile(ruleExpr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile credit rule: %w", iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build credit rule: %w", err)
		}
		p.program = prg
	}

	return p, nil
}

// Check rejects the delta with CREDIT_LIMIT_EXCEEDED when it would
// break the partner's limit. A zero limit disables the check unless a
// custom rule is configured.
func (p *CreditPolicy) Check(ctx context.Context, partnerID id.ID, delta types.Money) error {
	pt, err := p.partners.GetByID(ctx, partnerID)
	if err != nil {
		return err
	}

	if p.program == nil && pt.CreditLimit.Sign() == 0 {
		return nil
	}

	exposure, err := p.ledger.Exposure(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("exposure: %w", err)
	}

	allowed, err := p.evaluate(exposure, pt.CreditLimit, delta)
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.NewCreditLimitExceeded(
			partnerID.String(),
			exposure.String(),
			pt.CreditLimit.String(),
		).WithDetail("delta", delta.String())
	}
	return nil
}

func (p *CreditPolicy) evaluate(exposure, limit, delta types.Money) (bool, error) {
	if p.program == nil {
		return exposure.Add(delta).Cmp(limit) <= 0, nil
	}

	out, _, err := p.program.Eval(map[string]any{
		"exposure": exposure.InexactFloat64(),
		"limit":    limit.InexactFloat64(),
		"delta":    delta.InexactFloat64(),
	})
	if err != nil {
		return false, fmt.Errorf("eval credit rule: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("credit rule must return bool, got %T", out.Value())
	}
	return allowed, nil
}
