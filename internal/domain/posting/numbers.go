package posting

import "tabula/internal/core/entity"

var numberPrefixes = map[entity.DocType]string{
	entity.DocTypeQuote:           "QT",
	entity.DocTypeSalesOrder:      "SO",
	entity.DocTypeDispatch:        "DSP",
	entity.DocTypeSalesInvoice:    "INV",
	entity.DocTypePurchaseInvoice: "PINV",
	entity.DocTypeIncomingGoods:   "GR",
	entity.DocTypeTransfer:        "TRF",
	entity.DocTypeProduction:      "PRD",
	entity.DocTypeCountAdjustIn:   "ADJ",
	entity.DocTypeCountAdjustOut:  "ADJ",
	entity.DocTypeReceipt:         "RCP",
	entity.DocTypePayment:         "PAY",
}

// NumberPrefix maps a document type to its number series prefix.
func NumberPrefix(t entity.DocType) string {
	if p, ok := numberPrefixes[t]; ok {
		return p
	}
	return "DOC"
}
