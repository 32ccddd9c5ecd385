package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/releases"
	"github.com/payrecon/reconciler/internal/settlement"
)

var testMethods = []string{"visa", "master", "pix"}

func day(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func total(ref, src, net string, count int, due string) domain.SettlementLine {
	return domain.SettlementLine{
		OrderRef:          ref,
		ProcessorTxnID:    src,
		Kind:              domain.SettlementTotal,
		GrossAmount:       dec(net),
		NetAmount:         dec(net),
		FeeAmount:         decimal.Zero,
		InstallmentCount:  count,
		DueDate:           day(due),
		ApprovalDate:      day("2025-01-02"),
		PaymentMethod:     "visa",
		PaymentMethodType: "credit_card",
	}
}

func installmentLine(ref, src, number, net, due string) domain.SettlementLine {
	return domain.SettlementLine{
		OrderRef:          ref,
		ProcessorTxnID:    src,
		Kind:              domain.SettlementInstallmentLine,
		NetAmount:         dec(net),
		InstallmentNumber: number,
		DueDate:           day(due),
		PaymentMethod:     "visa",
		PaymentMethodType: "credit_card",
	}
}

func adjustment(ref, src string, kind domain.SettlementKind, net string) domain.SettlementLine {
	return domain.SettlementLine{
		OrderRef:       ref,
		ProcessorTxnID: src,
		Kind:           kind,
		NetAmount:      dec(net),
	}
}

func payment(ref, src, amount, label, date string) domain.ReleaseEvent {
	return domain.ReleaseEvent{
		OrderRef:         ref,
		ProcessorTxnID:   src,
		Description:      "payment",
		NetCreditAmount:  dec(amount),
		NetDebitAmount:   decimal.Zero,
		InstallmentLabel: label,
		ReleaseDate:      day(date),
		PaymentMethod:    "visa",
	}
}

func movement(ref, src, desc, credit, debit, date string) domain.ReleaseEvent {
	return domain.ReleaseEvent{
		OrderRef:        ref,
		ProcessorTxnID:  src,
		Description:     desc,
		NetCreditAmount: dec(credit),
		NetDebitAmount:  dec(debit),
		ReleaseDate:     day(date),
	}
}

// sequenced numbers rows in slice order, as ingestion does.
func sequenced(lines []domain.SettlementLine, events []domain.ReleaseEvent) ([]domain.SettlementLine, []domain.ReleaseEvent) {
	for i := range lines {
		lines[i].Seq = int64(i + 1)
		if lines[i].ID == "" {
			lines[i].ID = fmt.Sprintf("line-%03d", i+1)
		}
	}
	for i := range events {
		events[i].Seq = int64(i + 1)
		if events[i].ID == "" {
			events[i].ID = fmt.Sprintf("ev-%03d", i+1)
		}
	}
	return lines, events
}

func reconcile(lines []domain.SettlementLine, events []domain.ReleaseEvent, today string) (*Result, []Transaction) {
	sett := settlement.Build(lines)
	rel := releases.Build(events, testMethods)
	return NewEngine(*day(today)).Reconcile(sett, rel), ReconcileBySource(lines, rel)
}

func findInstallment(res *Result, ref string, index int) domain.Installment {
	for _, inst := range res.Installments {
		if inst.OrderRef == ref && inst.Index == index {
			return inst
		}
	}
	panic(fmt.Sprintf("installment %s#%d not found", ref, index))
}

func findOrder(res *Result, ref string) domain.OrderBalance {
	for _, o := range res.Orders {
		if o.OrderRef == ref {
			return o
		}
	}
	panic("order not found: " + ref)
}

func findTransaction(txns []Transaction, src string) Transaction {
	for _, t := range txns {
		if t.SourceID == src {
			return t
		}
	}
	panic("transaction not found: " + src)
}
