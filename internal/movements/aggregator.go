// Package movements summarises the non-sale release events and checks them
// against the sale credits.
package movements

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

// Item is one movement listed in a summary.
type Item struct {
	Date     string          `json:"date"`
	SourceID string          `json:"source_id"`
	OrderRef string          `json:"order_ref,omitempty"`
	Type     string          `json:"type,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

// Total is a list of movements with its count and sum.
type Total struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
	Items  []Item          `json:"items"`
}

func (t *Total) add(it Item) {
	t.Count++
	t.Amount = t.Amount.Add(it.Amount)
	t.Items = append(t.Items, it)
}

// Reserve aggregates one reserve sub-type.
type Reserve struct {
	Count  int             `json:"count"`
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
	Net    decimal.Decimal `json:"net"`
}

// Chargebacks separates chargebacks applied from those reversed.
type Chargebacks struct {
	Count    int             `json:"count"`
	Applied  decimal.Decimal `json:"applied"`
	Reversed decimal.Decimal `json:"reversed"`
	Net      decimal.Decimal `json:"net"`
	Items    []Item          `json:"items"`
}

// Summary is the movements section of a reconciliation snapshot.
type Summary struct {
	Movements       int                `json:"movements"`
	AdvanceFees     Total              `json:"advance_fees"`
	AdvanceReleases Total              `json:"advance_releases"`
	Payouts         Total              `json:"payouts"`
	Reserves        map[string]Reserve `json:"reserves"`
	Chargebacks     Chargebacks        `json:"chargebacks"`
	Other           Total              `json:"other"`
}

// Aggregate categorises the movements view of the releases ledger.
func Aggregate(events []domain.ReleaseEvent) Summary {
	s := Summary{
		Movements:       len(events),
		AdvanceFees:     Total{Amount: decimal.Zero},
		AdvanceReleases: Total{Amount: decimal.Zero},
		Payouts:         Total{Amount: decimal.Zero},
		Reserves:        make(map[string]Reserve),
		Chargebacks:     Chargebacks{Applied: decimal.Zero, Reversed: decimal.Zero, Net: decimal.Zero},
		Other:           Total{Amount: decimal.Zero},
	}

	for _, ev := range events {
		it := Item{
			Date:     domain.FormatDate(ev.ReleaseDate),
			SourceID: ev.ProcessorTxnID,
			OrderRef: ev.OrderRef,
		}
		switch ev.Kind {
		case domain.ReleaseAdvanceFee:
			it.Amount = ev.NetDebitAmount.Abs()
			s.AdvanceFees.add(it)
		case domain.ReleaseAdvanceRelease:
			it.Amount = ev.NetCreditAmount.Sub(ev.NetDebitAmount.Abs())
			s.AdvanceReleases.add(it)
		case domain.ReleasePayout:
			it.Amount = ev.NetDebitAmount.Abs()
			s.Payouts.add(it)
		case domain.ReleaseReserve:
			desc := strings.ToLower(strings.TrimSpace(ev.Description))
			r := s.Reserves[desc]
			r.Count++
			r.Credit = r.Credit.Add(ev.NetCreditAmount)
			r.Debit = r.Debit.Add(ev.NetDebitAmount)
			r.Net = r.Credit.Sub(r.Debit.Abs())
			s.Reserves[desc] = r
		case domain.ReleaseChargeback:
			it.Type = "applied"
			it.Amount = ev.NetDebitAmount.Abs()
			s.Chargebacks.Count++
			s.Chargebacks.Applied = s.Chargebacks.Applied.Add(it.Amount)
			s.Chargebacks.Items = append(s.Chargebacks.Items, it)
		case domain.ReleaseChargebackCancel:
			it.Type = "reversed"
			it.Amount = ev.NetCreditAmount
			s.Chargebacks.Count++
			s.Chargebacks.Reversed = s.Chargebacks.Reversed.Add(it.Amount)
			s.Chargebacks.Items = append(s.Chargebacks.Items, it)
		default:
			it.Type = string(ev.Kind)
			it.Amount = ev.NetCreditAmount.Sub(ev.NetDebitAmount)
			s.Other.add(it)
		}
	}
	s.Chargebacks.Net = s.Chargebacks.Applied.Sub(s.Chargebacks.Reversed)

	for _, items := range [][]Item{s.AdvanceFees.Items, s.AdvanceReleases.Items, s.Payouts.Items, s.Chargebacks.Items, s.Other.Items} {
		sortNewestFirst(items)
	}
	return s
}

func sortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date > items[j].Date })
}

// Validation checks the processor balance implied by the movements.
type Validation struct {
	TotalReceived   decimal.Decimal `json:"total_received"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	TotalWithdrawn  decimal.Decimal `json:"total_withdrawn"`
	NetChargeback   decimal.Decimal `json:"net_chargeback"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	IsValid         bool            `json:"is_valid"`
}

// Validate computes sale credits minus payouts, advance fees and net
// chargebacks. A balance below -R$1 is flagged; statement timing skew can
// legitimately push it slightly negative.
func (s Summary) Validate(totalSaleCredits decimal.Decimal) Validation {
	balance := totalSaleCredits.
		Sub(s.Payouts.Amount).
		Sub(s.AdvanceFees.Amount).
		Sub(s.Chargebacks.Net)
	return Validation{
		TotalReceived:   totalSaleCredits,
		TotalFees:       s.AdvanceFees.Amount,
		TotalWithdrawn:  s.Payouts.Amount,
		NetChargeback:   s.Chargebacks.Net,
		ExpectedBalance: money.Round(balance),
		IsValid:         balance.GreaterThanOrEqual(money.ValidationTolerance.Neg()),
	}
}

// FeeRate is the effective cost of receiving installments in advance.
type FeeRate struct {
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
	RatePercent   decimal.Decimal `json:"rate_percent"`
}

// AdvanceFeeRate relates the advance fees to the amount received in advance.
func (s Summary) AdvanceFeeRate(advancedAmount decimal.Decimal) FeeRate {
	if !advancedAmount.IsPositive() || !s.AdvanceFees.Amount.IsPositive() {
		return FeeRate{AdvanceAmount: decimal.Zero, FeeAmount: decimal.Zero, RatePercent: decimal.Zero}
	}
	return FeeRate{
		AdvanceAmount: advancedAmount,
		FeeAmount:     s.AdvanceFees.Amount,
		RatePercent:   money.Round(money.PercentOf(s.AdvanceFees.Amount, advancedAmount)),
	}
}
