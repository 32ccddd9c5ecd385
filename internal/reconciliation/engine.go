// Package reconciliation matches the settlement installment schedule against
// the processor's release events, classifies orders and installments, and
// publishes the outcome of each run as an immutable snapshot.
package reconciliation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
	"github.com/payrecon/reconciler/internal/releases"
	"github.com/payrecon/reconciler/internal/settlement"
)

const (
	noteClosedWithoutEvent = "order balance closed; no release event left to attribute"
	noteAdjustmentGap      = "order has refunds or chargebacks not attributed to its installments"
)

// Result is the outcome of the order-balance reconciliation.
type Result struct {
	Installments []domain.Installment  `json:"installments"`
	Orders       []domain.OrderBalance `json:"orders"`
	Advances     []AdvanceBatch        `json:"advances"`
	Orphans      []domain.ReleaseEvent `json:"orphans"`
}

// Engine runs the order-balance reconciliation for a given day.
type Engine struct {
	today  time.Time
	logger *logrus.Entry
}

// NewEngine returns an engine evaluating due dates against today.
func NewEngine(today time.Time) *Engine {
	return &Engine{
		today:  domain.Day(today),
		logger: logrus.WithField("component", "reconciliation"),
	}
}

// Reconcile classifies every order of the settlement ledger against the sale
// credits of the releases ledger. The ledgers are not modified: installments
// are copied before their states are set.
func (e *Engine) Reconcile(sett *settlement.Ledger, rel *releases.Ledger) *Result {
	installments := sett.CloneInstallments()
	payments := rel.PaymentsByOrder()

	byOrder := make(map[string][]int)
	var refs []string
	for i := range installments {
		ref := installments[i].OrderRef
		if _, ok := byOrder[ref]; !ok {
			refs = append(refs, ref)
		}
		byOrder[ref] = append(byOrder[ref], i)
	}
	sort.Strings(refs)

	res := &Result{}
	for _, ref := range refs {
		idx := byOrder[ref]
		sort.SliceStable(idx, func(a, b int) bool {
			return installments[idx[a]].Index < installments[idx[b]].Index
		})
		insts := make([]*domain.Installment, len(idx))
		for k, i := range idx {
			insts[k] = &installments[i]
		}

		order, _ := sett.Order(ref)
		balance := e.reconcileOrder(order, insts, payments[ref])
		res.Orders = append(res.Orders, balance)
	}

	res.Installments = installments
	res.Advances = DetectAdvances(rel.PaymentsOnly())
	res.Orphans = DetectOrphans(installments, sett, rel.PaymentsOnly())

	e.logger.Infof("reconciled %d orders, %d installments, %d orphan payments, %d advance batches",
		len(res.Orders), len(res.Installments), len(res.Orphans), len(res.Advances))
	return res
}

func (e *Engine) reconcileOrder(order *settlement.Order, insts []*domain.Installment, events []domain.ReleaseEvent) domain.OrderBalance {
	balance := domain.OrderBalance{
		OrderRef:      insts[0].OrderRef,
		SourceID:      insts[0].SourceID,
		PaymentType:   insts[0].PaymentType,
		ExpectedTotal: decimal.Zero,
		ReceivedTotal: decimal.Zero,
		Installments:  len(insts),
		PaymentEvents: len(events),
	}
	if order != nil {
		balance.RefundedTotal = order.Refunded
		balance.ChargebackTotal = order.Chargeback
		balance.ChargebackReversedTotal = order.ChargebackReversed
	}

	for _, inst := range insts {
		if !inst.IsCancelled {
			balance.ExpectedTotal = balance.ExpectedTotal.Add(inst.ExpectedAmountOriginal)
		}
	}
	for _, ev := range events {
		balance.ReceivedTotal = balance.ReceivedTotal.Add(ev.NetCreditAmount)
	}
	balance.Difference = money.Round(balance.ReceivedTotal.Sub(balance.ExpectedTotal))

	switch {
	case money.Within(balance.ReceivedTotal, balance.ExpectedTotal, money.Tolerance):
		balance.Status = domain.OrderClosed
		e.markClosed(insts, newPool(events))
	case balance.ReceivedTotal.GreaterThan(balance.ExpectedTotal):
		balance.Status = domain.OrderError
		e.markError(insts, newPool(events), balance.Difference)
		e.logger.WithFields(logrus.Fields{
			"order_ref": balance.OrderRef,
			"excess":    balance.Difference.String(),
		}).Warn("order received more than expected")
	default:
		balance.Status = domain.OrderOpen
		e.markOpen(insts, newPool(events))
		if gap := adjustmentGap(order); gap.IsPositive() {
			balance.AdjustmentGap = gap
			for _, inst := range insts {
				if inst.Note == "" && !inst.IsCancelled {
					inst.Note = noteAdjustmentGap
				}
			}
		}
	}

	for _, inst := range insts {
		inst.OrderStatus = balance.Status
	}
	return balance
}

// markClosed attributes events by installment label first, then falls back to
// the earliest remaining event. The balance already proves the money arrived,
// so an installment left without an event is still received.
func (e *Engine) markClosed(insts []*domain.Installment, p *pool) {
	assigned := make([]bool, len(insts))
	for k, inst := range insts {
		if inst.IsCancelled {
			continue
		}
		if ev := p.byLabel(inst.Index); ev != nil {
			inst.Receive(ev)
			assigned[k] = true
		}
	}
	for k, inst := range insts {
		if inst.IsCancelled || assigned[k] {
			continue
		}
		if ev := p.any(); ev != nil {
			inst.Receive(ev)
			continue
		}
		inst.ReceiveUnattributed(noteClosedWithoutEvent)
	}
}

func (e *Engine) markOpen(insts []*domain.Installment, p *pool) {
	for _, inst := range insts {
		if inst.IsCancelled {
			continue
		}
		if inst.ExpectedAmountNet.LessThan(minResidual) {
			inst.Cancel(domain.CancelLowResidualAmount)
			continue
		}
		if ev := p.match(inst); ev != nil {
			inst.Receive(ev)
			continue
		}
		inst.MarkUnpaid(e.today)
	}
}

// markError keeps whatever attribution is possible for amounts and dates but
// reports every active installment as plainly received with a note naming the
// excess.
func (e *Engine) markError(insts []*domain.Installment, p *pool, excess decimal.Decimal) {
	e.markClosed(insts, p)
	note := fmt.Sprintf("order received %s more than expected", money.Format(excess))
	for _, inst := range insts {
		if inst.IsCancelled {
			continue
		}
		inst.Status = domain.StatusReceived
		inst.DaysAdvance = 0
		inst.Note = note
	}
}

// adjustmentGap is the refund and chargeback amount of an order whose
// schedule came from installment lines. Such adjustments are never spread
// over the installments, so the order cannot close on its original schedule.
func adjustmentGap(order *settlement.Order) decimal.Decimal {
	if order == nil || !order.FromLines {
		return decimal.Zero
	}
	return order.Refunded.Add(order.Chargeback).Sub(order.ChargebackReversed)
}
