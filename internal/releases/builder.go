// Package releases classifies the processor's money movements and exposes the
// sale credits used by the reconciliation engine separately from internal
// movements.
package releases

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
)

// Ledger holds every classified release event, sorted by ingestion sequence.
type Ledger struct {
	Events       []domain.ReleaseEvent `json:"events"`
	Dropped      int                   `json:"dropped"`
	Unclassified int                   `json:"unclassified"`

	byOrder  map[string][]int
	bySource map[string][]int
}

// Build classifies rows. allowedMethods gates which payment methods count as
// sale credits; a payment row with an empty method is always accepted. Rows
// missing both join keys are dropped and counted.
func Build(rows []domain.ReleaseEvent, allowedMethods []string) *Ledger {
	logger := logrus.WithField("component", "releases")

	allowed := make(map[string]bool, len(allowedMethods))
	for _, m := range allowedMethods {
		allowed[strings.ToLower(strings.TrimSpace(m))] = true
	}

	sorted := make([]domain.ReleaseEvent, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].ID < sorted[j].ID
	})

	ledger := &Ledger{Events: make([]domain.ReleaseEvent, 0, len(sorted))}
	unknown := make(map[string]int)
	for _, ev := range sorted {
		if ev.OrderRef == "" && ev.ProcessorTxnID == "" {
			ledger.Dropped++
			continue
		}
		if ev.ID == "" {
			ev.ID = fmt.Sprintf("release-%d", len(ledger.Events)+1)
		}

		kind, ok := Classify(ev.Description)
		ev.Kind = kind
		ev.InternalTransfer = false
		if !ok {
			ledger.Unclassified++
			unknown[strings.ToLower(strings.TrimSpace(ev.Description))]++
		}
		if kind == domain.ReleasePayment {
			method := strings.ToLower(strings.TrimSpace(ev.PaymentMethod))
			ev.InternalTransfer = method != "" && !allowed[method]
		}
		ledger.Events = append(ledger.Events, ev)
	}
	ledger.index()

	for desc, n := range unknown {
		logger.WithField("description", desc).Warnf("%d release rows with unknown description routed to movements", n)
	}
	if ledger.Dropped > 0 {
		logger.Warnf("%d release rows dropped without order_ref and source id", ledger.Dropped)
	}
	logger.Infof("classified %d release events (%d unclassified)", len(ledger.Events), ledger.Unclassified)
	return ledger
}

func (l *Ledger) index() {
	l.byOrder = make(map[string][]int)
	l.bySource = make(map[string][]int)
	for i, ev := range l.Events {
		if ev.OrderRef != "" {
			l.byOrder[ev.OrderRef] = append(l.byOrder[ev.OrderRef], i)
		}
		if ev.ProcessorTxnID != "" {
			l.bySource[ev.ProcessorTxnID] = append(l.bySource[ev.ProcessorTxnID], i)
		}
	}
}

// Reindex rebuilds the lookup indexes after the ledger was decoded.
func (l *Ledger) Reindex() {
	l.index()
}

// PaymentsOnly returns the sale-credit events fed to the reconciliation
// engine.
func (l *Ledger) PaymentsOnly() []domain.ReleaseEvent {
	var out []domain.ReleaseEvent
	for _, ev := range l.Events {
		if ev.IsSaleCredit() {
			out = append(out, ev)
		}
	}
	return out
}

// Movements returns everything that is not a sale credit, including
// unclassified rows and payment rows excluded by the method allow-list.
func (l *Ledger) Movements() []domain.ReleaseEvent {
	var out []domain.ReleaseEvent
	for _, ev := range l.Events {
		if !ev.IsSaleCredit() {
			out = append(out, ev)
		}
	}
	return out
}

// UnclassifiedEvents returns the rows whose description was not recognised.
func (l *Ledger) UnclassifiedEvents() []domain.ReleaseEvent {
	var out []domain.ReleaseEvent
	for _, ev := range l.Events {
		if ev.Kind == domain.ReleaseUnclassified {
			out = append(out, ev)
		}
	}
	return out
}

// ByOrder returns every event of an order_ref.
func (l *Ledger) ByOrder(ref string) []domain.ReleaseEvent {
	return l.pick(l.byOrder[ref])
}

// BySource returns every event carrying the processor transaction id.
func (l *Ledger) BySource(id string) []domain.ReleaseEvent {
	return l.pick(l.bySource[id])
}

// SourceIDs lists the distinct processor transaction ids, sorted.
func (l *Ledger) SourceIDs() []string {
	ids := make([]string, 0, len(l.bySource))
	for id := range l.bySource {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PaymentsByOrder groups the sale credits by order_ref, keeping sequence
// order within each group.
func (l *Ledger) PaymentsByOrder() map[string][]domain.ReleaseEvent {
	out := make(map[string][]domain.ReleaseEvent)
	for _, ev := range l.Events {
		if ev.IsSaleCredit() && ev.OrderRef != "" {
			out[ev.OrderRef] = append(out[ev.OrderRef], ev)
		}
	}
	return out
}

func (l *Ledger) pick(idx []int) []domain.ReleaseEvent {
	out := make([]domain.ReleaseEvent, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.Events[i])
	}
	return out
}

// MovementTotal aggregates the movements sharing one description.
type MovementTotal struct {
	Count  int             `json:"count"`
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
}

// Summary is the releases section of a reconciliation snapshot.
type Summary struct {
	Releases          int                      `json:"releases"`
	Payments          int                      `json:"payments"`
	TotalReceived     decimal.Decimal          `json:"total_received"`
	Movements         int                      `json:"movements"`
	InternalTransfers int                      `json:"internal_transfers"`
	Unclassified      int                      `json:"unclassified"`
	Dropped           int                      `json:"dropped"`
	ByDescription     map[string]MovementTotal `json:"by_description"`
}

// Summary totals the ledger.
func (l *Ledger) Summary() Summary {
	s := Summary{
		Releases:      len(l.Events),
		TotalReceived: decimal.Zero,
		Unclassified:  l.Unclassified,
		Dropped:       l.Dropped,
		ByDescription: make(map[string]MovementTotal),
	}
	for _, ev := range l.Events {
		if ev.IsSaleCredit() {
			s.Payments++
			s.TotalReceived = s.TotalReceived.Add(ev.NetCreditAmount)
			continue
		}
		s.Movements++
		if ev.InternalTransfer {
			s.InternalTransfers++
		}
		desc := strings.ToLower(strings.TrimSpace(ev.Description))
		t := s.ByDescription[desc]
		t.Count++
		t.Credit = t.Credit.Add(ev.NetCreditAmount)
		t.Debit = t.Debit.Add(ev.NetDebitAmount)
		s.ByDescription[desc] = t
	}
	return s
}
