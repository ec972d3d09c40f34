package domain

import (
	"encoding/json"
	"time"
)

// CheckoutLink maps a short public code to a payment session URL.
type CheckoutLink struct {
	ShortCode   string
	CheckoutURL string
	UserID      string
	SessionID   string
	CreatedAt   time.Time
}

// TicketPricing describes the purchasable quota block.
type TicketPricing struct {
	ProductName string `validate:"required"`
	Currency    string `validate:"required,len=3,lowercase"`
	UnitAmount  int64  `validate:"gt=0"`
	MaxQuantity int64  `validate:"gte=1,lte=99"`
}

// DefaultTicketPricing matches the 10,000 character ticket sold for 1,280 JPY.
var DefaultTicketPricing = TicketPricing{
	ProductName: "LINEチャットチケット（10000文字）",
	Currency:    "jpy",
	UnitAmount:  1280,
	MaxQuantity: 10,
}

// Quantity converts a paid total back into a number of blocks. ok is false
// when the amount is not a positive whole multiple of the unit price.
func (t TicketPricing) Quantity(amountTotal int64) (quantity int64, ok bool) {
	if t.UnitAmount <= 0 || amountTotal <= 0 || amountTotal%t.UnitAmount != 0 {
		return 0, false
	}
	return amountTotal / t.UnitAmount, true
}

// CreditParams describes one confirmed payment to apply to a user's ceiling.
type CreditParams struct {
	EventID     string
	UserID      string
	Quantity    int64
	Chars       int64
	AmountTotal int64
	Currency    string
	Metadata    json.RawMessage
}

// CreditResult reports the state after a credit attempt.
type CreditResult struct {
	Usage   UsageRecord
	Applied bool // false when the event id had already been processed
}
