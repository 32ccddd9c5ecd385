package reconciliation

import (
	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/settlement"
)

// DetectOrphans returns the sale credits that belong to no settlement order:
// neither their source id was attributed to a received installment nor their
// order_ref is a known settlement order. These usually settle orders from an
// earlier statement period.
func DetectOrphans(installments []domain.Installment, sett *settlement.Ledger, payments []domain.ReleaseEvent) []domain.ReleaseEvent {
	matched := make(map[string]bool)
	for _, inst := range installments {
		if inst.IsReceived() && inst.MatchedSourceID != "" {
			matched[inst.MatchedSourceID] = true
		}
	}

	var orphans []domain.ReleaseEvent
	for _, p := range payments {
		if p.ProcessorTxnID != "" && matched[p.ProcessorTxnID] {
			continue
		}
		if _, known := sett.Order(p.OrderRef); known && p.OrderRef != "" {
			continue
		}
		orphans = append(orphans, p)
	}
	return orphans
}
