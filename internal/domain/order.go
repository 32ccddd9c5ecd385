package domain

import "github.com/shopspring/decimal"

type OrderStatus string

const (
	OrderOpen   OrderStatus = "OPEN"
	OrderClosed OrderStatus = "CLOSED"
	OrderError  OrderStatus = "ERROR"
)

// OrderBalance compares what the settlement schedule expects for an order
// with what the releases ledger actually credited.
type OrderBalance struct {
	OrderRef                string          `json:"order_ref"`
	SourceID                string          `json:"source_id"`
	PaymentType             PaymentType     `json:"payment_type"`
	ExpectedTotal           decimal.Decimal `json:"expected_total"`
	ReceivedTotal           decimal.Decimal `json:"received_total"`
	Difference              decimal.Decimal `json:"difference"`
	Status                  OrderStatus     `json:"status"`
	RefundedTotal           decimal.Decimal `json:"refunded_total"`
	ChargebackTotal         decimal.Decimal `json:"chargeback_total"`
	ChargebackReversedTotal decimal.Decimal `json:"chargeback_reversed_total"`
	Installments            int             `json:"installments"`
	PaymentEvents           int             `json:"payment_events"`

	// AdjustmentGap is the refund/chargeback amount of an order that could
	// not be attributed to any installment of its schedule.
	AdjustmentGap decimal.Decimal `json:"adjustment_gap"`
}
