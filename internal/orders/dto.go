package orders

import (
	"github.com/shopspring/decimal"
)

// LineInput is one submitted line item. Duplicate barcodes across lines are
// legal and stay independent lines; they are not coalesced.
type LineInput struct {
	Barcode   string          `json:"barcode" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateInput is a full order submission.
type CreateInput struct {
	Lines []LineInput `json:"lines" validate:"required,min=1,dive"`
}
