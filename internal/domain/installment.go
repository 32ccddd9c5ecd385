package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	StatusPending         InstallmentStatus = "pending"
	StatusReceived        InstallmentStatus = "received"
	StatusReceivedAdvance InstallmentStatus = "received_advance"
	StatusOverdue         InstallmentStatus = "overdue"
	StatusCancelled       InstallmentStatus = "cancelled"
)

// InstallmentStatuses lists every status in display order.
var InstallmentStatuses = []InstallmentStatus{
	StatusReceived, StatusReceivedAdvance, StatusPending, StatusOverdue, StatusCancelled,
}

func (s InstallmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReceived, StatusReceivedAdvance, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

type CancelReason string

const (
	CancelFullRefund        CancelReason = "full_refund"
	CancelChargeback        CancelReason = "chargeback"
	CancelLowResidualAmount CancelReason = "low_residual_amount"
	CancelUnknown           CancelReason = "unknown"
)

// Installment is one scheduled payment of an order. Status transitions go
// through the methods below so that the derived fields stay consistent:
// received_advance always carries DaysAdvance > 0 and a ReceivedDate before
// DueDate, cancelled always carries a CancelReason.
type Installment struct {
	OrderRef          string      `json:"order_ref"`
	SourceID          string      `json:"source_id"`
	Index             int         `json:"index"`
	TotalInstallments int         `json:"total_installments"`
	Display           string      `json:"display"`
	PaymentMethod     string      `json:"payment_method"`
	PaymentType       PaymentType `json:"payment_type"`

	ExpectedAmountOriginal  decimal.Decimal `json:"expected_amount_original"`
	ExpectedAmountNet       decimal.Decimal `json:"expected_amount_net"`
	RefundApplied           decimal.Decimal `json:"refund_applied"`
	ChargebackApplied       decimal.Decimal `json:"chargeback_applied"`
	ChargebackCancelApplied decimal.Decimal `json:"chargeback_cancel_applied"`

	DueDate      *time.Time `json:"due_date,omitempty"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`

	Status          InstallmentStatus `json:"status"`
	ReceivedAmount  decimal.Decimal   `json:"received_amount"`
	ReceivedDate    *time.Time        `json:"received_date,omitempty"`
	DaysAdvance     int               `json:"days_advance,omitempty"`
	MatchedEventID  string            `json:"matched_event_id,omitempty"`
	MatchedSourceID string            `json:"matched_source_id,omitempty"`
	IsCancelled     bool              `json:"is_cancelled"`
	CancelReason    CancelReason      `json:"cancel_reason,omitempty"`
	OrderStatus     OrderStatus       `json:"order_status,omitempty"`
	Note            string            `json:"note,omitempty"`
}

// Key identifies the installment within the whole data set.
func (i *Installment) Key() string {
	return fmt.Sprintf("%s#%d", i.OrderRef, i.Index)
}

// IsReceived reports whether money has been attributed to the installment.
func (i *Installment) IsReceived() bool {
	return i.Status == StatusReceived || i.Status == StatusReceivedAdvance
}

// Cancel moves the installment to the cancelled state.
func (i *Installment) Cancel(reason CancelReason) {
	if reason == "" {
		reason = CancelUnknown
	}
	i.IsCancelled = true
	i.CancelReason = reason
	i.Status = StatusCancelled
	i.ReceivedAmount = decimal.Zero
	i.ReceivedDate = nil
	i.DaysAdvance = 0
	i.MatchedEventID = ""
	i.MatchedSourceID = ""
}

// Receive attributes a release event to the installment. An event released
// strictly before the due date makes the installment received_advance.
func (i *Installment) Receive(ev *ReleaseEvent) {
	i.ReceivedAmount = ev.NetCreditAmount
	i.ReceivedDate = ev.ReleaseDate
	i.MatchedEventID = ev.ID
	i.MatchedSourceID = ev.ProcessorTxnID
	i.Status = StatusReceived
	i.DaysAdvance = 0

	if ev.ReleaseDate != nil && i.DueDate != nil {
		if days := DaysBetween(*ev.ReleaseDate, *i.DueDate); days > 0 {
			i.Status = StatusReceivedAdvance
			i.DaysAdvance = days
		}
	}
}

// ReceiveUnattributed marks the installment received when the order balance
// proves the money arrived but no single event could be attributed to it.
func (i *Installment) ReceiveUnattributed(note string) {
	i.Status = StatusReceived
	i.DaysAdvance = 0
	i.Note = note
}

// MarkUnpaid sets pending or overdue depending on the due date.
func (i *Installment) MarkUnpaid(today time.Time) {
	i.ReceivedAmount = decimal.Zero
	i.ReceivedDate = nil
	i.DaysAdvance = 0
	if i.DueDate != nil && i.DueDate.Before(Day(today)) {
		i.Status = StatusOverdue
		return
	}
	i.Status = StatusPending
}

// FlowDate is the day the installment's money moves: the received date once
// received, the due date otherwise.
func (i *Installment) FlowDate() *time.Time {
	if i.IsReceived() && i.ReceivedDate != nil {
		return i.ReceivedDate
	}
	return i.DueDate
}

// Value is the received amount when known, else the adjusted expectation.
func (i *Installment) Value() decimal.Decimal {
	if !i.ReceivedAmount.IsZero() {
		return i.ReceivedAmount
	}
	return i.ExpectedAmountNet
}
