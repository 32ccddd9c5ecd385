package reconciliation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/payrecon/reconciler/internal/domain"
)

func TestScenarioBRefundedBeforeRelease(t *testing.T) {
	lines, events := sequenced(
		[]domain.SettlementLine{
			total("Y", "src-y", "500.00", 1, "2025-02-01"),
			adjustment("Y", "src-y", domain.SettlementRefund, "-500.00"),
		},
		[]domain.ReleaseEvent{movement("Y", "src-y", "refund", "0", "500.00", "2025-01-20")},
	)
	res, txns := reconcile(lines, events, "2025-03-01")

	tx := findTransaction(txns, "src-y")
	assert.Equal(t, ClassRefunded, tx.Class)
	assert.True(t, tx.SettlementNet.IsZero())

	inst := findInstallment(res, "Y", 1)
	assert.Equal(t, domain.StatusCancelled, inst.Status)
	assert.Equal(t, domain.CancelFullRefund, inst.CancelReason)
}

func TestScenarioCChargebackReversed(t *testing.T) {
	lines, events := sequenced(
		[]domain.SettlementLine{
			total("Z", "src-z", "800.00", 1, "2025-02-01"),
			adjustment("Z", "src-z", domain.SettlementChargeback, "-800.00"),
			adjustment("Z", "src-z", domain.SettlementChargebackCancel, "800.00"),
		},
		[]domain.ReleaseEvent{
			payment("Z", "src-z", "400.00", "", "2025-02-01"),
			payment("Z", "src-z", "400.00", "", "2025-02-01"),
			movement("Z", "src-z", "chargeback", "0", "800.00", "2025-02-10"),
			movement("Z", "src-z", "chargeback_cancel", "800.00", "0", "2025-02-20"),
		},
	)
	res, txns := reconcile(lines, events, "2025-03-01")

	tx := findTransaction(txns, "src-z")
	assert.Equal(t, ClassChargebackReversed, tx.Class)
	assert.Equal(t, "800", tx.SettlementNet.String())
	assert.Equal(t, "800", tx.ReleasesNet.String())
	assert.True(t, tx.Difference.IsZero())
	assert.Equal(t, 2, tx.Chargebacks)
	assert.Equal(t, 2, tx.Reversals)

	assert.Equal(t, domain.OrderClosed, findOrder(res, "Z").Status)
}

func TestScenarioFMismatch(t *testing.T) {
	lines, events := sequenced(
		[]domain.SettlementLine{total("F", "src-f", "500.00", 1, "2025-02-01")},
		[]domain.ReleaseEvent{payment("F", "src-f", "400.00", "", "2025-02-01")},
	)
	_, txns := reconcile(lines, events, "2025-03-01")

	tx := findTransaction(txns, "src-f")
	assert.Equal(t, ClassMismatch, tx.Class)
	assert.Equal(t, "100", tx.Difference.String())
}

func TestSourceClasses(t *testing.T) {
	lines, events := sequenced(
		[]domain.SettlementLine{
			total("M1", "src-matched", "100.00", 1, "2025-02-01"),
			total("R1", "src-refund", "100.00", 1, "2025-02-01"),
			adjustment("R1", "src-refund", domain.SettlementRefund, "-40.00"),
			total("C1", "src-cb", "100.00", 1, "2025-02-01"),
			adjustment("C1", "src-cb", domain.SettlementChargeback, "-100.00"),
			total("P1", "src-pending", "100.00", 1, "2025-05-01"),
			total("S1", "src-settlement-only", "75.00", 1, "2025-05-01"),
		},
		[]domain.ReleaseEvent{
			payment("M1", "src-matched", "100.00", "", "2025-02-01"),
			payment("R1", "src-refund", "100.00", "", "2025-02-01"),
			movement("R1", "src-refund", "refund", "0", "40.00", "2025-02-05"),
			payment("C1", "src-cb", "100.00", "", "2025-02-01"),
			movement("C1", "src-cb", "chargeback", "0", "100.00", "2025-02-05"),
			movement("P1", "src-pending", "reserve_for_dispute", "0", "0", "2025-02-05"),
			payment("Q1", "src-releases-only", "30.00", "", "2025-02-01"),
		},
	)
	_, txns := reconcile(lines, events, "2025-03-01")

	want := map[string]TransactionClass{
		"src-matched":         ClassMatched,
		"src-refund":          ClassRefunded,
		"src-cb":              ClassChargebackPending,
		"src-pending":         ClassPending,
		"src-settlement-only": ClassOrphanSettlement,
		"src-releases-only":   ClassOrphanReleases,
	}
	assert.Len(t, txns, len(want))
	for src, class := range want {
		assert.Equal(t, class, findTransaction(txns, src).Class, src)
	}
	assert.Equal(t, "Q1", findTransaction(txns, "src-releases-only").OrderRef)
}

func TestSourceInstallmentLinesDoNotDoubleCount(t *testing.T) {
	lines, events := scenarioA()
	_, txns := reconcile(lines, events, "2025-05-01")

	tx := findTransaction(txns, "src-x")
	assert.Equal(t, ClassMatched, tx.Class)
	assert.Equal(t, "250", tx.SettlementNet.String())
	assert.Equal(t, 4, tx.Installments)
	assert.Equal(t, 4, tx.Payments)
}
