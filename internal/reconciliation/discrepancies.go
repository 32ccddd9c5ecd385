package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
	"github.com/payrecon/reconciler/internal/movements"
	"github.com/payrecon/reconciler/internal/releases"
	"github.com/payrecon/reconciler/internal/settlement"
)

var (
	highAmount   = decimal.NewFromInt(500)
	mediumAmount = decimal.NewFromInt(100)
	highPct      = decimal.NewFromInt(2)
)

// findings carries everything a run computed that can yield a discrepancy.
type findings struct {
	runID        string
	at           time.Time
	settlement   *settlement.Ledger
	releases     *releases.Ledger
	result       *Result
	transactions []Transaction
	validation   movements.Validation
}

// detectDiscrepancies turns the data-quality outcomes of a run into
// discrepancy records, one per finding, in a stable order.
func detectDiscrepancies(f findings) []domain.Discrepancy {
	var out []domain.Discrepancy
	add := func(d domain.Discrepancy) {
		d.RunID = f.runID
		d.DetectedAt = f.at
		d.Expected = money.Round(d.Expected)
		d.Actual = money.Round(d.Actual)
		d.Difference = money.Round(d.Difference)
		out = append(out, d)
	}

	for _, o := range f.result.Orders {
		if o.Status != domain.OrderError {
			continue
		}
		add(domain.Discrepancy{
			ID:             "DISC-OE-" + o.OrderRef,
			Type:           domain.DiscrepancyOrderError,
			OrderRef:       o.OrderRef,
			ProcessorTxnID: o.SourceID,
			Expected:       o.ExpectedTotal,
			Actual:         o.ReceivedTotal,
			Difference:     o.Difference,
			Severity:       severityByAmount(o.Difference.Abs()),
			Description: fmt.Sprintf("Order %s received %s against %s expected",
				o.OrderRef, money.Format(o.ReceivedTotal), money.Format(o.ExpectedTotal)),
		})
	}

	for _, t := range f.transactions {
		switch t.Class {
		case ClassMismatch:
			add(domain.Discrepancy{
				ID:             "DISC-TM-" + t.SourceID,
				Type:           domain.DiscrepancyTransactionMismatch,
				OrderRef:       t.OrderRef,
				ProcessorTxnID: t.SourceID,
				Expected:       t.SettlementNet,
				Actual:         t.ReleasesNet,
				Difference:     t.Difference,
				Severity:       mismatchSeverity(t.Difference, t.SettlementNet),
				Description: fmt.Sprintf("Transaction %s: settlement net %s, releases net %s",
					t.SourceID, money.Format(t.SettlementNet), money.Format(t.ReleasesNet)),
			})
		case ClassOrphanSettlement:
			add(domain.Discrepancy{
				ID:             "DISC-OS-" + t.SourceID,
				Type:           domain.DiscrepancyOrphanSettlement,
				OrderRef:       t.OrderRef,
				ProcessorTxnID: t.SourceID,
				Expected:       t.SettlementNet,
				Actual:         decimal.Zero,
				Difference:     t.SettlementNet.Abs(),
				Severity:       severityByAmount(t.SettlementNet.Abs()),
				Description:    fmt.Sprintf("Transaction %s has settlement lines but no releases", t.SourceID),
			})
		case ClassOrphanReleases:
			add(domain.Discrepancy{
				ID:             "DISC-OR-" + t.SourceID,
				Type:           domain.DiscrepancyOrphanReleases,
				OrderRef:       t.OrderRef,
				ProcessorTxnID: t.SourceID,
				Expected:       decimal.Zero,
				Actual:         t.ReleasesNet,
				Difference:     t.ReleasesNet.Abs(),
				Severity:       severityByAmount(t.ReleasesNet.Abs()),
				Description:    fmt.Sprintf("Transaction %s has releases but no settlement lines", t.SourceID),
			})
		}
	}

	for _, p := range f.result.Orphans {
		add(domain.Discrepancy{
			ID:             "DISC-OP-" + p.ID,
			Type:           domain.DiscrepancyOrphanPayment,
			OrderRef:       p.OrderRef,
			ProcessorTxnID: p.ProcessorTxnID,
			Expected:       decimal.Zero,
			Actual:         p.NetCreditAmount,
			Difference:     p.NetCreditAmount,
			Severity:       severityByAmount(p.NetCreditAmount),
			Description: fmt.Sprintf("Payment of %s on %s for order %q matches no settlement order",
				money.Format(p.NetCreditAmount), domain.FormatDate(p.ReleaseDate), p.OrderRef),
		})
	}

	for _, s := range f.settlement.Skipped {
		if s.Reason != settlement.SkipMissingTotal {
			continue
		}
		desc := fmt.Sprintf("Order %s has %d settlement lines but no settlement total", s.OrderRef, s.Lines)
		if s.OnlyAdjustments {
			desc += "; only refunds or chargebacks, total likely in an earlier statement"
		}
		add(domain.Discrepancy{
			ID:          "DISC-MT-" + s.OrderRef,
			Type:        domain.DiscrepancyMissingSettlementTotal,
			OrderRef:    s.OrderRef,
			Expected:    decimal.Zero,
			Actual:      decimal.Zero,
			Difference:  decimal.Zero,
			Severity:    domain.SeverityMedium,
			Description: desc,
		})
	}

	for _, d := range f.settlement.Drifts {
		add(domain.Discrepancy{
			ID:          "DISC-SD-" + d.OrderRef,
			Type:        domain.DiscrepancyScheduleDrift,
			OrderRef:    d.OrderRef,
			Expected:    d.TotalNet,
			Actual:      d.Scheduled,
			Difference:  d.Difference,
			Severity:    severityByAmount(d.Difference.Abs()),
			Description: fmt.Sprintf("Installment lines of %s add up to %s, settlement total is %s", d.OrderRef, money.Format(d.Scheduled), money.Format(d.TotalNet)),
		})
	}

	for _, ev := range f.releases.UnclassifiedEvents() {
		amount := ev.NetCreditAmount.Sub(ev.NetDebitAmount)
		add(domain.Discrepancy{
			ID:             "DISC-UR-" + ev.ID,
			Type:           domain.DiscrepancyUnclassifiedRelease,
			OrderRef:       ev.OrderRef,
			ProcessorTxnID: ev.ProcessorTxnID,
			Expected:       decimal.Zero,
			Actual:         amount,
			Difference:     amount.Abs(),
			Severity:       domain.SeverityLow,
			Description:    fmt.Sprintf("Release description %q could not be classified", ev.Description),
		})
	}

	if !f.validation.IsValid {
		add(domain.Discrepancy{
			ID:          "DISC-BV-" + f.runID,
			Type:        domain.DiscrepancyBalanceValidation,
			Expected:    decimal.Zero,
			Actual:      f.validation.ExpectedBalance,
			Difference:  f.validation.ExpectedBalance.Abs(),
			Severity:    severityByAmount(f.validation.ExpectedBalance.Abs()),
			Description: fmt.Sprintf("Processor balance implied by movements is %s", money.Format(f.validation.ExpectedBalance)),
		})
	}

	return out
}

func severityByAmount(amount decimal.Decimal) domain.Severity {
	switch {
	case amount.GreaterThan(highAmount):
		return domain.SeverityHigh
	case amount.GreaterThan(mediumAmount):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func mismatchSeverity(diff, base decimal.Decimal) domain.Severity {
	if diff.GreaterThan(highAmount) {
		return domain.SeverityCritical
	}
	if money.PercentOf(diff, base.Abs()).GreaterThan(highPct) {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}
