// Package partner provides the business partner catalog (customers and
// suppliers share one ledger dimension).
package partner

import (
	"context"

	"tabula/internal/core/apperror"
	"tabula/internal/core/entity"
	"tabula/internal/core/types"
)

// Partner is a customer or supplier the ledger tracks balances against.
type Partner struct {
	entity.BaseCatalog

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// PaymentTermDays is the default term used to derive document due
	// dates. Zero means due immediately.
	PaymentTermDays int `db:"payment_term_days" json:"paymentTermDays"`

	// CreditLimit caps open receivable exposure. Zero disables the check.
	CreditLimit types.Money `db:"credit_limit" json:"creditLimit"`
}

// New creates a partner with generated ID.
func New(code, name string) *Partner {
	return &Partner{
		BaseCatalog: entity.NewBaseCatalog(),
		Code:        code,
		Name:        name,
		CreditLimit: types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (p *Partner) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if p.CreditLimit.Sign() < 0 {
		return apperror.NewValidation("credit limit must not be negative").
			WithDetail("field", "creditLimit")
	}
	return nil
}
