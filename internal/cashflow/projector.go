// Package cashflow projects the reconciled installments onto calendar
// buckets and short-horizon views.
package cashflow

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

// Bucket accumulates the installments flowing on one day or month. Amounts
// use the received value once known and the adjusted expectation otherwise.
type Bucket struct {
	Key                  string          `json:"key"`
	Expected             decimal.Decimal `json:"expected"`
	Received             decimal.Decimal `json:"received"`
	ReceivedAdvance      decimal.Decimal `json:"received_advance"`
	Pending              decimal.Decimal `json:"pending"`
	Overdue              decimal.Decimal `json:"overdue"`
	CountExpected        int             `json:"count_expected"`
	CountReceived        int             `json:"count_received"`
	CountReceivedAdvance int             `json:"count_received_advance"`
	CountPending         int             `json:"count_pending"`
	CountOverdue         int             `json:"count_overdue"`
}

func (b *Bucket) add(inst *domain.Installment) {
	v := inst.Value()
	b.Expected = b.Expected.Add(v)
	b.CountExpected++
	switch inst.Status {
	case domain.StatusReceived:
		b.Received = b.Received.Add(v)
		b.CountReceived++
	case domain.StatusReceivedAdvance:
		b.ReceivedAdvance = b.ReceivedAdvance.Add(v)
		b.CountReceivedAdvance++
	case domain.StatusPending:
		b.Pending = b.Pending.Add(v)
		b.CountPending++
	case domain.StatusOverdue:
		b.Overdue = b.Overdue.Add(v)
		b.CountOverdue++
	}
}

// Window bounds a projection by flow date, both ends inclusive. A nil end is
// open.
type Window struct {
	From *time.Time
	To   *time.Time
}

func (w Window) contains(t time.Time) bool {
	d := domain.Day(t)
	if w.From != nil && d.Before(domain.Day(*w.From)) {
		return false
	}
	if w.To != nil && d.After(domain.Day(*w.To)) {
		return false
	}
	return true
}

// Daily buckets the active installments by flow date (YYYY-MM-DD).
func Daily(insts []domain.Installment, w Window) []Bucket {
	return bucket(insts, w, domain.DateLayout)
}

// Monthly buckets the active installments by flow month (YYYY-MM).
func Monthly(insts []domain.Installment, w Window) []Bucket {
	return bucket(insts, w, "2006-01")
}

func bucket(insts []domain.Installment, w Window, layout string) []Bucket {
	byKey := make(map[string]*Bucket)
	for i := range insts {
		inst := &insts[i]
		if inst.IsCancelled || inst.Status == domain.StatusCancelled {
			continue
		}
		at := inst.FlowDate()
		if at == nil || !w.contains(*at) {
			continue
		}
		key := at.Format(layout)
		b, ok := byKey[key]
		if !ok {
			b = &Bucket{Key: key}
			byKey[key] = b
		}
		b.add(inst)
	}

	out := make([]Bucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Upcoming returns the pending installments due within [today, today+days],
// sorted by due date.
func Upcoming(insts []domain.Installment, today time.Time, days int) []domain.Installment {
	from := domain.Day(today)
	to := from.AddDate(0, 0, days)

	var out []domain.Installment
	for _, inst := range insts {
		if inst.Status != domain.StatusPending || inst.DueDate == nil {
			continue
		}
		due := domain.Day(*inst.DueDate)
		if due.Before(from) || due.After(to) {
			continue
		}
		out = append(out, inst)
	}
	sortByDue(out)
	return out
}

// Overdue returns the overdue installments sorted by due date.
func Overdue(insts []domain.Installment) []domain.Installment {
	var out []domain.Installment
	for _, inst := range insts {
		if inst.Status == domain.StatusOverdue {
			out = append(out, inst)
		}
	}
	sortByDue(out)
	return out
}

func sortByDue(insts []domain.Installment) {
	sort.SliceStable(insts, func(i, j int) bool {
		a, b := insts[i].DueDate, insts[j].DueDate
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		if (a == nil) != (b == nil) {
			return b == nil
		}
		if insts[i].OrderRef != insts[j].OrderRef {
			return insts[i].OrderRef < insts[j].OrderRef
		}
		return insts[i].Index < insts[j].Index
	})
}

// StatusTotal counts and sums the installments of one status.
type StatusTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ByStatus totals every installment, cancelled included, by status.
func ByStatus(insts []domain.Installment) map[domain.InstallmentStatus]StatusTotal {
	out := make(map[domain.InstallmentStatus]StatusTotal, len(domain.InstallmentStatuses))
	for _, s := range domain.InstallmentStatuses {
		out[s] = StatusTotal{Amount: decimal.Zero}
	}
	for _, inst := range insts {
		t := out[inst.Status]
		t.Count++
		if inst.Status != domain.StatusCancelled {
			t.Amount = t.Amount.Add(inst.Value())
		}
		out[inst.Status] = t
	}
	return out
}

// AdvanceSummary describes the installments received before their due date.
type AdvanceSummary struct {
	Count          int             `json:"count"`
	Amount         decimal.Decimal `json:"amount"`
	AvgDaysAdvance decimal.Decimal `json:"avg_days_advance"`
}

// Advance summarises the received_advance installments.
func Advance(insts []domain.Installment) AdvanceSummary {
	s := AdvanceSummary{Amount: decimal.Zero, AvgDaysAdvance: decimal.Zero}
	days := 0
	for _, inst := range insts {
		if inst.Status != domain.StatusReceivedAdvance {
			continue
		}
		s.Count++
		s.Amount = s.Amount.Add(inst.ReceivedAmount)
		days += inst.DaysAdvance
	}
	if s.Count > 0 {
		s.AvgDaysAdvance = decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(s.Count))).Round(1)
	}
	return s
}

// Summary is the cashflow section of a reconciliation snapshot.
type Summary struct {
	Today        string                                   `json:"today"`
	UpcomingDays int                                      `json:"upcoming_days"`
	Daily        []Bucket                                 `json:"daily"`
	Monthly      []Bucket                                 `json:"monthly"`
	ByStatus     map[domain.InstallmentStatus]StatusTotal `json:"by_status"`
	Upcoming     []domain.Installment                     `json:"upcoming"`
	Overdue      []domain.Installment                     `json:"overdue"`
	Advance      AdvanceSummary                           `json:"advance"`
}

// Project computes every view over the whole schedule.
func Project(insts []domain.Installment, today time.Time, upcomingDays int) Summary {
	return Summary{
		Today:        domain.Day(today).Format(domain.DateLayout),
		UpcomingDays: upcomingDays,
		Daily:        Daily(insts, Window{}),
		Monthly:      Monthly(insts, Window{}),
		ByStatus:     ByStatus(insts),
		Upcoming:     Upcoming(insts, today, upcomingDays),
		Overdue:      Overdue(insts),
		Advance:      Advance(insts),
	}
}
