package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

// TypeTotal aggregates the orders of one payment type.
type TypeTotal struct {
	Orders int             `json:"orders"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the settlement section of a reconciliation snapshot.
type Summary struct {
	Orders               int                              `json:"orders"`
	Installments         int                              `json:"installments"`
	CancelledAtBuild     int                              `json:"cancelled_at_build"`
	TotalExpected        decimal.Decimal                  `json:"total_expected"`
	TotalRefunded        decimal.Decimal                  `json:"total_refunded"`
	TotalChargeback      decimal.Decimal                  `json:"total_chargeback"`
	OrdersWithRefund     int                              `json:"orders_with_refund"`
	OrdersWithChargeback int                              `json:"orders_with_chargeback"`
	PaymentTypes         map[domain.PaymentType]TypeTotal `json:"payment_types"`
	Skipped              []SkippedOrder                   `json:"skipped"`
	Drifts               []Drift                          `json:"drifts"`
	Lines                int                              `json:"lines"`
	DroppedLines         int                              `json:"dropped_lines"`
}

// Summary totals the ledger.
func (l *Ledger) Summary() Summary {
	s := Summary{
		Orders:          len(l.Orders),
		Installments:    len(l.Installments),
		TotalExpected:   decimal.Zero,
		TotalRefunded:   decimal.Zero,
		TotalChargeback: decimal.Zero,
		PaymentTypes:    make(map[domain.PaymentType]TypeTotal),
		Skipped:         l.Skipped,
		Drifts:          l.Drifts,
		Lines:           l.Lines,
		DroppedLines:    l.DroppedLines,
	}
	for _, inst := range l.Installments {
		if inst.IsCancelled {
			s.CancelledAtBuild++
			continue
		}
		s.TotalExpected = s.TotalExpected.Add(inst.ExpectedAmountNet)
	}
	for _, o := range l.Orders {
		s.TotalRefunded = s.TotalRefunded.Add(o.Refunded)
		s.TotalChargeback = s.TotalChargeback.Add(o.Chargeback)
		if o.HasRefund {
			s.OrdersWithRefund++
		}
		if o.HasChargeback {
			s.OrdersWithChargeback++
		}
		t := s.PaymentTypes[o.PaymentType]
		t.Orders++
		t.Amount = t.Amount.Add(o.FinalNet)
		s.PaymentTypes[o.PaymentType] = t
	}
	return s
}
