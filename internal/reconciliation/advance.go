package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

// AdvanceBatch is a group of sale credits released for the same order on
// the same day whose installment labels arrived out of numeric order.
type AdvanceBatch struct {
	OrderRef     string          `json:"order_ref"`
	Date         string          `json:"date"`
	Events       int             `json:"events"`
	Installments []int           `json:"installments"`
	OutOfOrder   bool            `json:"out_of_order"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// DetectAdvances groups payments by (order_ref, release day) and flags the
// groups of two or more events whose labelled indices are not ascending in
// release sequence. It is a report only; installment states are untouched.
func DetectAdvances(payments []domain.ReleaseEvent) []AdvanceBatch {
	type key struct{ ref, day string }
	groups := make(map[key][]domain.ReleaseEvent)
	var keys []key

	for _, ev := range payments {
		if ev.OrderRef == "" || ev.ReleaseDate == nil {
			continue
		}
		k := key{ev.OrderRef, ev.ReleaseDate.Format(domain.DateLayout)}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], ev)
	}

	var out []AdvanceBatch
	for _, k := range keys {
		events := groups[k]
		if len(events) < 2 {
			continue
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })

		var indices []int
		total := decimal.Zero
		for _, ev := range events {
			total = total.Add(ev.NetCreditAmount)
			if n := domain.ParseInstallmentLabel(ev.InstallmentLabel); n > 0 {
				indices = append(indices, n)
			}
		}
		if len(indices) == 0 || sort.IntsAreSorted(indices) {
			continue
		}
		out = append(out, AdvanceBatch{
			OrderRef:     k.ref,
			Date:         k.day,
			Events:       len(events),
			Installments: indices,
			OutOfOrder:   true,
			TotalAmount:  total.Round(2),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].OrderRef < out[j].OrderRef
	})
	return out
}
