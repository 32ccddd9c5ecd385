package reconciliation

import (
	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

// StatusBreakdown is the share of one installment status.
type StatusBreakdown struct {
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

// Check compares two totals within the operational tolerance.
type Check struct {
	Left       decimal.Decimal `json:"left"`
	Right      decimal.Decimal `json:"right"`
	Difference decimal.Decimal `json:"difference"`
	IsValid    bool            `json:"is_valid"`
}

func newCheck(left, right decimal.Decimal) Check {
	diff := money.Round(left.Sub(right))
	return Check{
		Left:       money.Round(left),
		Right:      money.Round(right),
		Difference: diff,
		IsValid:    diff.Abs().LessThan(money.ValidationTolerance),
	}
}

// Adjustments counts the orders touched by refunds and chargebacks.
type Adjustments struct {
	OrdersWithRefund     int             `json:"orders_with_refund"`
	OrdersWithChargeback int             `json:"orders_with_chargeback"`
	Refunded             decimal.Decimal `json:"refunded"`
	Chargeback           decimal.Decimal `json:"chargeback"`
	ChargebackReversed   decimal.Decimal `json:"chargeback_reversed"`
	OrdersWithGap        int             `json:"orders_with_gap"`
	GapTotal             decimal.Decimal `json:"gap_total"`
}

// DetailedStatus is the operator view of a run: where the money of the
// active schedule stands and whether the totals hold together.
type DetailedStatus struct {
	Active         int                                          `json:"active"`
	Cancelled      int                                          `json:"cancelled"`
	Breakdown      map[domain.InstallmentStatus]StatusBreakdown `json:"breakdown"`
	Orders         map[domain.OrderStatus]int                   `json:"orders"`
	AvgDaysAdvance decimal.Decimal                              `json:"avg_days_advance"`

	// ExpectedCheck compares the active expectation with received plus
	// pending plus overdue.
	ExpectedCheck Check `json:"expected_check"`
	// PaymentsCheck compares what installments received with the sale
	// credits that are not orphans.
	PaymentsCheck Check       `json:"payments_check"`
	Adjustments   Adjustments `json:"adjustments"`
}

func buildDetailedStatus(res *Result, totalPayments decimal.Decimal) DetailedStatus {
	ds := DetailedStatus{
		Breakdown:      make(map[domain.InstallmentStatus]StatusBreakdown),
		Orders:         make(map[domain.OrderStatus]int),
		AvgDaysAdvance: decimal.Zero,
		Adjustments: Adjustments{
			Refunded:           decimal.Zero,
			Chargeback:         decimal.Zero,
			ChargebackReversed: decimal.Zero,
			GapTotal:           decimal.Zero,
		},
	}
	for _, s := range domain.InstallmentStatuses {
		if s != domain.StatusCancelled {
			ds.Breakdown[s] = StatusBreakdown{Amount: decimal.Zero, Percent: decimal.Zero}
		}
	}

	expected := decimal.Zero
	received := decimal.Zero
	advanceDays := 0
	advances := 0
	for i := range res.Installments {
		inst := &res.Installments[i]
		if inst.Status == domain.StatusCancelled {
			ds.Cancelled++
			continue
		}
		ds.Active++
		expected = expected.Add(inst.ExpectedAmountNet)

		b := ds.Breakdown[inst.Status]
		b.Count++
		b.Amount = b.Amount.Add(inst.Value())
		ds.Breakdown[inst.Status] = b

		if inst.IsReceived() {
			received = received.Add(inst.ReceivedAmount)
		}
		if inst.Status == domain.StatusReceivedAdvance {
			advances++
			advanceDays += inst.DaysAdvance
		}
	}

	accounted := decimal.Zero
	for status, b := range ds.Breakdown {
		if ds.Active > 0 {
			b.Percent = decimal.NewFromInt(int64(b.Count)).
				Div(decimal.NewFromInt(int64(ds.Active))).
				Mul(decimal.NewFromInt(100)).Round(1)
		}
		b.Amount = money.Round(b.Amount)
		ds.Breakdown[status] = b
		accounted = accounted.Add(b.Amount)
	}
	if advances > 0 {
		ds.AvgDaysAdvance = decimal.NewFromInt(int64(advanceDays)).Div(decimal.NewFromInt(int64(advances))).Round(1)
	}

	orphans := decimal.Zero
	for _, p := range res.Orphans {
		orphans = orphans.Add(p.NetCreditAmount)
	}
	ds.ExpectedCheck = newCheck(expected, accounted)
	ds.PaymentsCheck = newCheck(received, totalPayments.Sub(orphans))

	for _, o := range res.Orders {
		ds.Orders[o.Status]++
		a := &ds.Adjustments
		if !o.RefundedTotal.IsZero() {
			a.OrdersWithRefund++
			a.Refunded = a.Refunded.Add(o.RefundedTotal)
		}
		if !o.ChargebackTotal.IsZero() {
			a.OrdersWithChargeback++
			a.Chargeback = a.Chargeback.Add(o.ChargebackTotal)
			a.ChargebackReversed = a.ChargebackReversed.Add(o.ChargebackReversedTotal)
		}
		if o.AdjustmentGap.IsPositive() {
			a.OrdersWithGap++
			a.GapTotal = a.GapTotal.Add(o.AdjustmentGap)
		}
	}
	return ds
}
