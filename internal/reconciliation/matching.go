package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

var (
	// wideBandAbs and wideBandPct define the relaxed amount match used when
	// fee rounding moves a release away from its scheduled value.
	wideBandAbs = decimal.NewFromInt(10)
	wideBandPct = decimal.NewFromInt(5)

	// minResidual is the net amount under which an open installment is
	// considered consumed by adjustments.
	minResidual = decimal.NewFromInt(1)
)

// amountMatches reports whether a release amount fits an expected value:
// within R$0.02, or within R$10 and 5%.
func amountMatches(got, expected decimal.Decimal) bool {
	diff := got.Sub(expected).Abs()
	if diff.LessThanOrEqual(money.Tolerance) {
		return true
	}
	pct := money.PercentOf(diff, expected)
	return diff.LessThanOrEqual(wideBandAbs) && pct.LessThanOrEqual(wideBandPct)
}

// pool holds the sale credits of one order that are still available for
// attribution. Taking an event removes it, so an event is never assigned to
// two installments.
type pool struct {
	events []domain.ReleaseEvent
	labels []int
	used   []bool
}

func newPool(events []domain.ReleaseEvent) *pool {
	p := &pool{
		events: make([]domain.ReleaseEvent, len(events)),
		labels: make([]int, len(events)),
		used:   make([]bool, len(events)),
	}
	copy(p.events, events)
	sort.SliceStable(p.events, func(i, j int) bool {
		a, b := p.events[i].ReleaseDate, p.events[j].ReleaseDate
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return p.events[i].Seq < p.events[j].Seq
	})
	for i, ev := range p.events {
		p.labels[i] = domain.ParseInstallmentLabel(ev.InstallmentLabel)
	}
	return p
}

func (p *pool) take(i int) *domain.ReleaseEvent {
	p.used[i] = true
	return &p.events[i]
}

// find returns the first available event accepted by match.
func (p *pool) find(match func(label int, ev *domain.ReleaseEvent) bool) *domain.ReleaseEvent {
	for i := range p.events {
		if p.used[i] {
			continue
		}
		if match(p.labels[i], &p.events[i]) {
			return p.take(i)
		}
	}
	return nil
}

func (p *pool) byLabel(index int) *domain.ReleaseEvent {
	return p.find(func(label int, _ *domain.ReleaseEvent) bool { return label == index })
}

func (p *pool) any() *domain.ReleaseEvent {
	return p.find(func(int, *domain.ReleaseEvent) bool { return true })
}

// match runs the three-phase search for an installment of an open order.
func (p *pool) match(inst *domain.Installment) *domain.ReleaseEvent {
	expected := inst.ExpectedAmountNet

	if ev := p.find(func(label int, ev *domain.ReleaseEvent) bool {
		return label == inst.Index && amountMatches(ev.NetCreditAmount, expected)
	}); ev != nil {
		return ev
	}
	if ev := p.byLabel(inst.Index); ev != nil {
		return ev
	}
	if inst.TotalInstallments == 1 {
		return p.find(func(_ int, ev *domain.ReleaseEvent) bool {
			return amountMatches(ev.NetCreditAmount, expected)
		})
	}
	return nil
}
