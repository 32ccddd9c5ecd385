package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReleaseKind string

const (
	ReleasePayment          ReleaseKind = "PAYMENT"
	ReleaseRefund           ReleaseKind = "REFUND"
	ReleaseChargeback       ReleaseKind = "CHARGEBACK"
	ReleaseChargebackCancel ReleaseKind = "CHARGEBACK_CANCEL"
	ReleaseReserve          ReleaseKind = "RESERVE"
	ReleasePayout           ReleaseKind = "PAYOUT"
	ReleaseAdvanceFee       ReleaseKind = "ADVANCE_FEE"
	ReleaseAdvanceRelease   ReleaseKind = "ADVANCE_RELEASE"
	ReleaseUnclassified     ReleaseKind = "UNCLASSIFIED"
)

// ReleaseEvent is one money movement reported by the processor. Kind is
// assigned by the releases ledger builder from the description token.
type ReleaseEvent struct {
	ID               string          `json:"id"`
	FileID           string          `json:"file_id"`
	Seq              int64           `json:"seq"`
	OrderRef         string          `json:"order_ref"`
	ProcessorTxnID   string          `json:"processor_txn_id"`
	Description      string          `json:"description"`
	RecordType       string          `json:"record_type,omitempty"`
	Kind             ReleaseKind     `json:"kind"`
	NetCreditAmount  decimal.Decimal `json:"net_credit_amount"`
	NetDebitAmount   decimal.Decimal `json:"net_debit_amount"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
	InstallmentLabel string          `json:"installment_label,omitempty"`
	ReleaseDate      *time.Time      `json:"release_date,omitempty"`
	PaymentMethod    string          `json:"payment_method"`

	// InternalTransfer marks payment-token rows excluded by the payment
	// method allow-list.
	InternalTransfer bool `json:"internal_transfer,omitempty"`
}

// IsSaleCredit reports whether the event participates in installment matching.
func (e *ReleaseEvent) IsSaleCredit() bool {
	return e.Kind == ReleasePayment && !e.InternalTransfer
}
