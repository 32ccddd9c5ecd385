package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementKind string

const (
	SettlementTotal            SettlementKind = "SETTLEMENT_TOTAL"
	SettlementInstallmentLine  SettlementKind = "INSTALLMENT_LINE"
	SettlementRefund           SettlementKind = "REFUND"
	SettlementChargeback       SettlementKind = "CHARGEBACK"
	SettlementChargebackCancel SettlementKind = "CHARGEBACK_CANCEL"
)

// PaymentType is the reporting classification of an order's payment.
type PaymentType string

const (
	PaymentPix               PaymentType = "pix"
	PaymentBoleto            PaymentType = "boleto"
	PaymentAccountBalance    PaymentType = "account_balance"
	PaymentPromotionalCredit PaymentType = "promotional_installment_credit"
	PaymentCardInstallments  PaymentType = "credit_card_installments"
	PaymentCardSingle        PaymentType = "credit_card_single"
	PaymentDebitCard         PaymentType = "debit_card"
	PaymentOther             PaymentType = "other"
)

// SettlementLine is one row of the processor's settlement export. Amounts are
// signed: refunds and chargebacks carry negative net amounts.
type SettlementLine struct {
	ID                string          `json:"id"`
	FileID            string          `json:"file_id"`
	Seq               int64           `json:"seq"`
	OrderRef          string          `json:"order_ref"`
	ProcessorTxnID    string          `json:"processor_txn_id"`
	Kind              SettlementKind  `json:"kind"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	InstallmentNumber string          `json:"installment_number,omitempty"`
	InstallmentCount  int             `json:"installment_count"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	ApprovalDate      *time.Time      `json:"approval_date,omitempty"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentMethodType string          `json:"payment_method_type"`
}
