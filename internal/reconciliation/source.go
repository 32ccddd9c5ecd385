package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
	"github.com/payrecon/reconciler/internal/releases"
)

// TransactionClass is the outcome of reconciling one processor transaction
// id across both ledgers.
type TransactionClass string

const (
	ClassMatched            TransactionClass = "matched"
	ClassRefunded           TransactionClass = "refunded"
	ClassChargebackPending  TransactionClass = "chargeback_pending"
	ClassChargebackReversed TransactionClass = "chargeback_reversed"
	ClassPending            TransactionClass = "pending"
	ClassMismatch           TransactionClass = "mismatch"
	ClassOrphanSettlement   TransactionClass = "orphan_settlement"
	ClassOrphanReleases     TransactionClass = "orphan_releases"
)

// TransactionClasses lists every class in report order.
var TransactionClasses = []TransactionClass{
	ClassMatched, ClassRefunded, ClassChargebackPending, ClassChargebackReversed,
	ClassPending, ClassMismatch, ClassOrphanSettlement, ClassOrphanReleases,
}

// Transaction is the whole-transaction balance of one source id.
type Transaction struct {
	SourceID      string           `json:"source_id"`
	OrderRef      string           `json:"order_ref,omitempty"`
	Class         TransactionClass `json:"class"`
	SettlementNet decimal.Decimal  `json:"settlement_net"`
	ReleasesNet   decimal.Decimal  `json:"releases_net"`
	Difference    decimal.Decimal  `json:"difference"`
	Installments  int              `json:"installments"`
	Payments      int              `json:"payments"`
	Refunds       int              `json:"refunds"`
	Chargebacks   int              `json:"chargebacks"`
	Reversals     int              `json:"reversals"`
}

type settlementSide struct {
	orderRef          string
	total             *domain.SettlementLine
	installments      int
	refunds           int
	chargebacks       int
	chargebackCancels int
	net               decimal.Decimal
}

type releasesSide struct {
	orderRef          string
	payments          int
	refunds           int
	chargebacks       int
	chargebackCancels int
	net               decimal.Decimal
}

// ReconcileBySource balances each processor transaction id as a whole:
// settlement total plus its refunds and chargebacks against release credits
// minus refund and chargeback debits. Installment lines do not count towards
// the settlement side; the total already covers them.
func ReconcileBySource(lines []domain.SettlementLine, rel *releases.Ledger) []Transaction {
	sett := make(map[string]*settlementSide)
	for i := range lines {
		l := &lines[i]
		if l.ProcessorTxnID == "" {
			continue
		}
		s, ok := sett[l.ProcessorTxnID]
		if !ok {
			s = &settlementSide{net: decimal.Zero}
			sett[l.ProcessorTxnID] = s
		}
		if s.orderRef == "" {
			s.orderRef = l.OrderRef
		}
		switch l.Kind {
		case domain.SettlementTotal:
			if s.total == nil {
				s.total = l
				s.net = s.net.Add(l.NetAmount)
			}
		case domain.SettlementInstallmentLine:
			s.installments++
		case domain.SettlementRefund:
			s.refunds++
			s.net = s.net.Add(l.NetAmount)
		case domain.SettlementChargeback:
			s.chargebacks++
			s.net = s.net.Add(l.NetAmount)
		case domain.SettlementChargebackCancel:
			s.chargebackCancels++
			s.net = s.net.Add(l.NetAmount)
		}
	}

	rels := make(map[string]*releasesSide)
	for _, id := range rel.SourceIDs() {
		r := &releasesSide{net: decimal.Zero}
		for _, ev := range rel.BySource(id) {
			if r.orderRef == "" {
				r.orderRef = ev.OrderRef
			}
			switch {
			case ev.IsSaleCredit():
				r.payments++
				r.net = r.net.Add(ev.NetCreditAmount)
			case ev.Kind == domain.ReleaseRefund:
				r.refunds++
				r.net = r.net.Sub(ev.NetDebitAmount)
			case ev.Kind == domain.ReleaseChargeback:
				r.chargebacks++
				r.net = r.net.Sub(ev.NetDebitAmount)
			case ev.Kind == domain.ReleaseChargebackCancel:
				r.chargebackCancels++
				r.net = r.net.Add(ev.NetCreditAmount)
			}
		}
		rels[id] = r
	}

	ids := make([]string, 0, len(sett)+len(rels))
	for id := range sett {
		ids = append(ids, id)
	}
	for id := range rels {
		if _, ok := sett[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, classifySource(id, sett[id], rels[id]))
	}
	return out
}

func classifySource(id string, s *settlementSide, r *releasesSide) Transaction {
	t := Transaction{SourceID: id, SettlementNet: decimal.Zero, ReleasesNet: decimal.Zero, Difference: decimal.Zero}

	if s != nil {
		t.OrderRef = s.orderRef
		t.SettlementNet = money.Round(s.net)
		t.Installments = s.installments
		t.Refunds += s.refunds
		t.Chargebacks += s.chargebacks
		t.Reversals += s.chargebackCancels
	}
	if r != nil {
		if t.OrderRef == "" {
			t.OrderRef = r.orderRef
		}
		t.ReleasesNet = money.Round(r.net)
		t.Payments = r.payments
		t.Refunds += r.refunds
		t.Chargebacks += r.chargebacks
		t.Reversals += r.chargebackCancels
	}
	t.Difference = t.SettlementNet.Sub(t.ReleasesNet).Abs()

	switch {
	case r == nil:
		t.Class = ClassOrphanSettlement
		return t
	case s == nil:
		t.Class = ClassOrphanReleases
		return t
	}

	balanced := money.Within(t.SettlementNet, t.ReleasesNet, money.Tolerance)
	refundEvidence := s.refunds > 0 || r.refunds > 0

	// Nothing released as a sale and no dispute movement: the transaction is
	// either refunded before release or still waiting for its first release.
	if r.payments == 0 && r.chargebacks == 0 && r.chargebackCancels == 0 {
		switch {
		case t.SettlementNet.IsZero() && refundEvidence:
			t.Class = ClassRefunded
		case r.refunds == 0 && s.total != nil && t.SettlementNet.IsPositive():
			t.Class = ClassPending
		default:
			t.Class = ClassMismatch
		}
		return t
	}

	switch {
	case !balanced:
		t.Class = ClassMismatch
	case r.chargebackCancels > 0:
		t.Class = ClassChargebackReversed
	case r.chargebacks > 0:
		t.Class = ClassChargebackPending
	case refundEvidence:
		t.Class = ClassRefunded
	default:
		t.Class = ClassMatched
	}
	return t
}
