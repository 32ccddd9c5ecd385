// Package report renders a reconciliation snapshot as JSON section files and
// as a plain-text summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
	"github.com/payrecon/reconciler/internal/reconciliation"
)

// maxUpcoming bounds the upcoming releases listed in the text summary.
const maxUpcoming = 10

// WriteJSON writes one indented <section>.json file per snapshot section
// into dir and returns the paths written.
func WriteJSON(dir string, snap *reconciliation.Snapshot) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	sections := snap.Sections()
	paths := make([]string, 0, len(sections))
	for _, name := range reconciliation.SectionNames {
		b, err := json.MarshalIndent(sections[name], "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode %s: %w", name, err)
		}
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	logrus.WithField("component", "report").WithFields(logrus.Fields{
		"dir":    dir,
		"run_id": snap.Metadata.RunID,
	}).Infof("wrote %d report sections", len(paths))
	return paths, nil
}

// WriteText renders the headline tables of a snapshot.
func WriteText(w io.Writer, snap *reconciliation.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := &printer{w: tw}

	p.line("RECONCILIATION %s", snap.Metadata.RunID)
	p.line("processed at\t%s", snap.Metadata.ProcessedAt.Format("2006-01-02 15:04:05"))
	p.line("reference day\t%s", snap.Metadata.Today.Format(domain.DateLayout))
	p.line("settlement orders\t%d", snap.Settlement.Orders)
	p.line("expected total\t%s", money.Format(snap.Settlement.TotalExpected))
	p.line("received total\t%s", money.Format(snap.Releases.TotalReceived))

	detailed := snap.DetailedStatus()
	p.section("ORDERS")
	p.line("status\torders")
	for _, st := range []domain.OrderStatus{domain.OrderClosed, domain.OrderOpen, domain.OrderError} {
		p.line("%s\t%d", st, detailed.Orders[st])
	}

	p.section("INSTALLMENTS")
	p.line("status\tcount\tamount")
	byStatus := snap.StatusSummary()
	for _, st := range domain.InstallmentStatuses {
		t := byStatus[st]
		p.line("%s\t%d\t%s", st, t.Count, money.Format(t.Amount))
	}
	p.line("expected check\t%s\t%s", validity(detailed.ExpectedCheck.IsValid), money.Format(detailed.ExpectedCheck.Difference))
	p.line("payments check\t%s\t%s", validity(detailed.PaymentsCheck.IsValid), money.Format(detailed.PaymentsCheck.Difference))

	p.section("TRANSACTIONS")
	p.line("class\tcount")
	counts := snap.TransactionCounts()
	for _, c := range reconciliation.TransactionClasses {
		p.line("%s\t%d", c, counts[c])
	}

	errored := snap.Orders(domain.OrderError)
	mismatched := snap.Transactions(reconciliation.ClassMismatch)
	if len(errored) > 0 || len(mismatched) > 0 {
		p.section("MISMATCHES")
		p.line("order\tsource\texpected\treceived\tdifference")
		for _, o := range errored {
			p.line("%s\t%s\t%s\t%s\t%s", o.OrderRef, o.SourceID,
				money.Format(o.ExpectedTotal), money.Format(o.ReceivedTotal), money.Format(o.Difference))
		}
		for _, t := range mismatched {
			p.line("%s\t%s\t%s\t%s\t%s", t.OrderRef, t.SourceID,
				money.Format(t.SettlementNet), money.Format(t.ReleasesNet), money.Format(t.Difference))
		}
	}

	orphans := snap.OrphanPayments()
	if len(orphans) > 0 {
		p.section("ORPHAN PAYMENTS")
		p.line("order\tsource\tdate\tamount")
		total := decimal.Zero
		for _, ev := range orphans {
			total = total.Add(ev.NetCreditAmount)
			p.line("%s\t%s\t%s\t%s", ev.OrderRef, ev.ProcessorTxnID, domain.FormatDate(ev.ReleaseDate), money.Format(ev.NetCreditAmount))
		}
		p.line("total\t\t\t%s", money.Format(total))
	}

	v := snap.BalanceValidation()
	p.section("MOVEMENTS")
	p.line("received\t%s", money.Format(v.TotalReceived))
	p.line("advance fees\t%s", money.Format(v.TotalFees))
	p.line("withdrawn\t%s", money.Format(v.TotalWithdrawn))
	p.line("net chargeback\t%s", money.Format(v.NetChargeback))
	p.line("expected balance\t%s\t%s", money.Format(v.ExpectedBalance), validity(v.IsValid))
	if rate := snap.Movements.FeeRate; rate.AdvanceAmount.IsPositive() {
		p.line("advance fee rate\t%s%%", rate.RatePercent.StringFixed(2))
	}

	upcoming := snap.Upcoming(0)
	p.section(fmt.Sprintf("UPCOMING (%d days)", snap.Metadata.UpcomingDays))
	if len(upcoming) == 0 {
		p.line("none")
	} else {
		p.line("due\torder\tinstallment\tamount")
		for i, inst := range upcoming {
			if i == maxUpcoming {
				p.line("...\t%d more", len(upcoming)-maxUpcoming)
				break
			}
			p.line("%s\t%s\t%d/%d\t%s", domain.FormatDate(inst.DueDate), inst.OrderRef, inst.Index, inst.TotalInstallments, money.Format(inst.ExpectedAmountNet))
		}
	}

	if p.err != nil {
		return p.err
	}
	return tw.Flush()
}

// printer keeps the first write error so the tables read linearly.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) section(title string) {
	p.line("")
	p.line("%s", title)
}

func validity(ok bool) string {
	if ok {
		return "ok"
	}
	return "INVALID"
}
