// Package posting implements the document posting state machine: the
// totals calculator, the posting policy, the posting engine and its
// reversal counterpart.
package posting

import (
	"tabula/internal/core/entity"
	"tabula/internal/core/types"
)

// Totals are the computed money totals of a document's lines.
type Totals struct {
	Net   types.Money `json:"net"`
	VAT   types.Money `json:"vat"`
	Gross types.Money `json:"gross"`
}

var hundred = types.MustMoney("100")

// CalculateTotals turns a document's lines into net/VAT/gross totals.
// Pure and total: no side effects, no error cases. Quantities are in
// document units (prices are per document unit).
func CalculateTotals(lines []entity.DocumentLine) Totals {
	net := types.Zero()
	vat := types.Zero()

	for _, line := range lines {
		lineNet := line.Quantity.Decimal().Mul(line.UnitPrice)
		net = net.Add(lineNet)
		vat = vat.Add(lineNet.Mul(line.VATRate).Div(hundred))
	}

	return Totals{
		Net:   net,
		VAT:   vat,
		Gross: net.Add(vat),
	}
}
