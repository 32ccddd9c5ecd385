// Package settlement turns raw settlement export rows into orders and their
// installment schedule.
package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

// SkipMissingTotal is the reason recorded for orders without a settlement
// total line.
const SkipMissingTotal = "missing_settlement_total"

// Order is the settlement-side view of one order_ref.
type Order struct {
	OrderRef            string             `json:"order_ref"`
	SourceID            string             `json:"source_id"`
	PaymentMethod       string             `json:"payment_method"`
	PaymentType         domain.PaymentType `json:"payment_type"`
	ApprovalDate        *time.Time         `json:"approval_date,omitempty"`
	TotalGross          decimal.Decimal    `json:"total_gross"`
	TotalNet            decimal.Decimal    `json:"total_net"`
	TotalFee            decimal.Decimal    `json:"total_fee"`
	Refunded            decimal.Decimal    `json:"refunded"`
	Chargeback          decimal.Decimal    `json:"chargeback"`
	ChargebackReversed  decimal.Decimal    `json:"chargeback_reversed"`
	FinalNet            decimal.Decimal    `json:"final_net"`
	Installments        int                `json:"installments"`
	HasRefund           bool               `json:"has_refund"`
	HasChargeback       bool               `json:"has_chargeback"`
	HasChargebackCancel bool               `json:"has_chargeback_cancel"`
	FromLines           bool               `json:"from_lines"`
}

// SkippedOrder records an order that produced no installments. OnlyAdjustments
// tells a group made solely of refund/chargeback rows (a total from an earlier
// statement period) apart from one with nothing usable at all.
type SkippedOrder struct {
	OrderRef        string `json:"order_ref"`
	Reason          string `json:"reason"`
	Lines           int    `json:"lines"`
	OnlyAdjustments bool   `json:"only_adjustments"`
}

// Drift is reported when an order's installment lines do not add up to its
// settlement total net amount.
type Drift struct {
	OrderRef   string          `json:"order_ref"`
	TotalNet   decimal.Decimal `json:"total_net"`
	Scheduled  decimal.Decimal `json:"scheduled"`
	Difference decimal.Decimal `json:"difference"`
}

// Ledger is the result of Build. Orders and Installments are sorted by
// order_ref (installments then by index).
type Ledger struct {
	Orders       []*Order             `json:"orders"`
	Installments []domain.Installment `json:"installments"`
	Skipped      []SkippedOrder       `json:"skipped"`
	Drifts       []Drift              `json:"drifts"`
	Lines        int                  `json:"lines"`
	DroppedLines int                  `json:"dropped_lines"`

	byRef map[string]*Order
}

// Order returns the settlement order for ref.
func (l *Ledger) Order(ref string) (*Order, bool) {
	if l.byRef == nil {
		for _, o := range l.Orders {
			if o.OrderRef == ref {
				return o, true
			}
		}
		return nil, false
	}
	o, ok := l.byRef[ref]
	return o, ok
}

func (l *Ledger) index() {
	l.byRef = make(map[string]*Order, len(l.Orders))
	for _, o := range l.Orders {
		l.byRef[o.OrderRef] = o
	}
}

// CloneInstallments returns a private copy of the installment schedule for a
// reconciliation run to mutate.
func (l *Ledger) CloneInstallments() []domain.Installment {
	out := make([]domain.Installment, len(l.Installments))
	copy(out, l.Installments)
	return out
}

type group struct {
	totals            []domain.SettlementLine
	refunds           []domain.SettlementLine
	chargebacks       []domain.SettlementLine
	chargebackCancels []domain.SettlementLine
	installments      []domain.SettlementLine
}

func (g *group) size() int {
	return len(g.totals) + len(g.refunds) + len(g.chargebacks) + len(g.chargebackCancels) + len(g.installments)
}

// Build groups the lines by order_ref and derives the installment schedule.
// The result does not depend on the order of lines.
func Build(lines []domain.SettlementLine) *Ledger {
	logger := logrus.WithField("component", "settlement")
	ledger := &Ledger{Lines: len(lines)}

	sorted := make([]domain.SettlementLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].ID < sorted[j].ID
	})

	groups := make(map[string]*group)
	for _, line := range sorted {
		if line.OrderRef == "" {
			ledger.DroppedLines++
			continue
		}
		g, ok := groups[line.OrderRef]
		if !ok {
			g = &group{}
			groups[line.OrderRef] = g
		}
		switch line.Kind {
		case domain.SettlementTotal:
			g.totals = append(g.totals, line)
		case domain.SettlementRefund:
			g.refunds = append(g.refunds, line)
		case domain.SettlementChargeback:
			g.chargebacks = append(g.chargebacks, line)
		case domain.SettlementChargebackCancel:
			g.chargebackCancels = append(g.chargebackCancels, line)
		case domain.SettlementInstallmentLine:
			g.installments = append(g.installments, line)
		default:
			ledger.DroppedLines++
		}
	}

	refs := make([]string, 0, len(groups))
	for ref := range groups {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	for _, ref := range refs {
		g := groups[ref]
		if len(g.totals) == 0 {
			ledger.Skipped = append(ledger.Skipped, SkippedOrder{
				OrderRef:        ref,
				Reason:          SkipMissingTotal,
				Lines:           g.size(),
				OnlyAdjustments: len(g.installments) == 0,
			})
			logger.WithField("order_ref", ref).Warn("order has no settlement total, skipped")
			continue
		}
		if len(g.totals) > 1 {
			logger.WithField("order_ref", ref).Warnf("order has %d settlement totals, using the first", len(g.totals))
		}

		order := buildOrder(ref, g)
		ledger.Orders = append(ledger.Orders, order)

		if len(g.installments) > 0 {
			insts := installmentsFromLines(order, g.installments)
			ledger.Installments = append(ledger.Installments, insts...)
			if d, drifted := scheduleDrift(order, insts); drifted {
				ledger.Drifts = append(ledger.Drifts, d)
				logger.WithFields(logrus.Fields{
					"order_ref": ref,
					"total_net": d.TotalNet.String(),
					"scheduled": d.Scheduled.String(),
				}).Warn("installment schedule does not add up to settlement total")
			}
		} else {
			ledger.Installments = append(ledger.Installments, singleInstallment(order, g.totals[0]))
		}
	}
	ledger.index()

	logger.Infof("built %d orders, %d installments (%d skipped, %d dropped lines)",
		len(ledger.Orders), len(ledger.Installments), len(ledger.Skipped), ledger.DroppedLines)
	return ledger
}

func netSum(lines []domain.SettlementLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.NetAmount)
	}
	return total
}

func buildOrder(ref string, g *group) *Order {
	total := g.totals[0]
	refunded := netSum(g.refunds)
	chargeback := netSum(g.chargebacks)
	reversed := netSum(g.chargebackCancels)

	installments := total.InstallmentCount
	if installments < 1 {
		installments = 1
	}

	return &Order{
		OrderRef:            ref,
		SourceID:            total.ProcessorTxnID,
		PaymentMethod:       total.PaymentMethod,
		PaymentType:         ClassifyPaymentType(total.PaymentMethod, total.PaymentMethodType, installments),
		ApprovalDate:        total.ApprovalDate,
		TotalGross:          total.GrossAmount,
		TotalNet:            total.NetAmount,
		TotalFee:            total.FeeAmount,
		Refunded:            refunded.Abs(),
		Chargeback:          chargeback.Abs(),
		ChargebackReversed:  reversed.Abs(),
		FinalNet:            money.Sum(total.NetAmount, refunded, chargeback, reversed),
		Installments:        installments,
		HasRefund:           len(g.refunds) > 0,
		HasChargeback:       len(g.chargebacks) > 0,
		HasChargebackCancel: len(g.chargebackCancels) > 0,
		FromLines:           len(g.installments) > 0,
	}
}

// installmentsFromLines keeps each line's own net amount; refund and
// chargeback attribution is left to the reconciliation engine.
func installmentsFromLines(order *Order, lines []domain.SettlementLine) []domain.Installment {
	type numbered struct {
		index int
		line  domain.SettlementLine
	}
	items := make([]numbered, 0, len(lines))
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		idx := domain.NormalizeInstallmentNumber(l.InstallmentNumber)
		if seen[idx] {
			logrus.WithField("component", "settlement").
				WithField("order_ref", order.OrderRef).
				Warnf("duplicate installment line %d ignored", idx)
			continue
		}
		seen[idx] = true
		items = append(items, numbered{index: idx, line: l})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })

	total := len(items)
	out := make([]domain.Installment, 0, total)
	for _, it := range items {
		inst := domain.Installment{
			OrderRef:               order.OrderRef,
			SourceID:               order.SourceID,
			Index:                  it.index,
			TotalInstallments:      total,
			Display:                domain.InstallmentDisplay(it.index, total),
			PaymentMethod:          order.PaymentMethod,
			PaymentType:            order.PaymentType,
			ExpectedAmountOriginal: it.line.NetAmount,
			ExpectedAmountNet:      it.line.NetAmount,
			DueDate:                it.line.DueDate,
			ApprovalDate:           order.ApprovalDate,
			Status:                 domain.StatusPending,
		}
		if !inst.ExpectedAmountNet.IsPositive() {
			inst.Cancel(domain.CancelUnknown)
		}
		out = append(out, inst)
	}
	return out
}

// singleInstallment synthesizes the 1/1 installment of an order without
// installment lines. Its net amount carries every adjustment of the order.
func singleInstallment(order *Order, total domain.SettlementLine) domain.Installment {
	inst := domain.Installment{
		OrderRef:                order.OrderRef,
		SourceID:                order.SourceID,
		Index:                   1,
		TotalInstallments:       1,
		Display:                 domain.InstallmentDisplay(1, 1),
		PaymentMethod:           order.PaymentMethod,
		PaymentType:             order.PaymentType,
		ExpectedAmountOriginal:  order.TotalNet,
		ExpectedAmountNet:       order.FinalNet,
		RefundApplied:           order.Refunded,
		ChargebackApplied:       order.Chargeback,
		ChargebackCancelApplied: order.ChargebackReversed,
		DueDate:                 total.DueDate,
		ApprovalDate:            order.ApprovalDate,
		Status:                  domain.StatusPending,
	}
	if !inst.ExpectedAmountNet.IsPositive() {
		inst.Cancel(cancelReason(inst))
	}
	return inst
}

func cancelReason(inst domain.Installment) domain.CancelReason {
	original := inst.ExpectedAmountOriginal.Abs()
	switch {
	case inst.RefundApplied.IsPositive() && inst.RefundApplied.GreaterThanOrEqual(original):
		return domain.CancelFullRefund
	case inst.ChargebackApplied.IsPositive() && inst.ChargebackApplied.GreaterThanOrEqual(original):
		return domain.CancelChargeback
	case inst.ChargebackApplied.GreaterThan(inst.RefundApplied):
		return domain.CancelChargeback
	}
	return domain.CancelUnknown
}

func scheduleDrift(order *Order, insts []domain.Installment) (Drift, bool) {
	scheduled := decimal.Zero
	for _, i := range insts {
		scheduled = scheduled.Add(i.ExpectedAmountOriginal)
	}
	tol := money.Tolerance.Mul(decimal.NewFromInt(int64(len(insts))))
	if money.Within(scheduled, order.TotalNet, tol) {
		return Drift{}, false
	}
	return Drift{
		OrderRef:   order.OrderRef,
		TotalNet:   order.TotalNet,
		Scheduled:  scheduled,
		Difference: money.Round(scheduled.Sub(order.TotalNet)),
	}, true
}
