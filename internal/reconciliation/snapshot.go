package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/payrecon/reconciler/internal/cashflow"
	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/movements"
	"github.com/payrecon/reconciler/internal/releases"
	"github.com/payrecon/reconciler/internal/settlement"
)

// SnapshotVersion tags the layout of the persisted sections.
const SnapshotVersion = "1"

// Section names of a persisted snapshot.
const (
	SectionSettlement     = "settlement"
	SectionReleases       = "releases"
	SectionReconciliation = "reconciliation"
	SectionMovements      = "movements"
	SectionCashflow       = "cashflow"
	SectionMetadata       = "metadata"
)

// SnapshotStore persists named sections. cache.Store implements it.
type SnapshotStore interface {
	Save(ctx context.Context, name string, v interface{}) error
	Load(ctx context.Context, name string, dst interface{}) (bool, error)
	ClearAll(ctx context.Context) error
}

type Metadata struct {
	ProcessedAt  time.Time `json:"processed_at"`
	Version      string    `json:"version"`
	RunID        string    `json:"run_id"`
	Today        time.Time `json:"today"`
	UpcomingDays int       `json:"upcoming_days"`
}

// ReconciliationSection is the reconciliation part of a snapshot.
type ReconciliationSection struct {
	Installments  []domain.Installment  `json:"installments"`
	Orders        []domain.OrderBalance `json:"orders"`
	Transactions  []Transaction         `json:"transactions"`
	Advances      []AdvanceBatch        `json:"advances"`
	Orphans       []domain.ReleaseEvent `json:"orphans"`
	Detailed      DetailedStatus        `json:"detailed"`
	Discrepancies []domain.Discrepancy  `json:"discrepancies"`
}

// MovementsSection is the movements part of a snapshot.
type MovementsSection struct {
	Summary    movements.Summary    `json:"summary"`
	Validation movements.Validation `json:"validation"`
	FeeRate    movements.FeeRate    `json:"fee_rate"`
}

// Snapshot is the immutable outcome of one run. Readers get it by pointer
// from the Service and must not modify it; accessors return copies.
type Snapshot struct {
	Metadata       Metadata
	Settlement     settlement.Summary
	Releases       releases.Summary
	Reconciliation ReconciliationSection
	Movements      MovementsSection
	Cashflow       cashflow.Summary
}

// SectionNames lists the sections in write order, metadata last.
var SectionNames = []string{SectionSettlement, SectionReleases, SectionReconciliation, SectionMovements, SectionCashflow, SectionMetadata}

// Sections maps every section name to its value.
func (s *Snapshot) Sections() map[string]interface{} {
	return map[string]interface{}{
		SectionSettlement:     s.Settlement,
		SectionReleases:       s.Releases,
		SectionReconciliation: s.Reconciliation,
		SectionMovements:      s.Movements,
		SectionCashflow:       s.Cashflow,
		SectionMetadata:       s.Metadata,
	}
}

// saveSnapshot writes every section. Metadata goes last so that a partially
// written snapshot is never restored as complete.
func saveSnapshot(ctx context.Context, store SnapshotStore, s *Snapshot) error {
	sections := s.Sections()
	for _, name := range SectionNames {
		if err := store.Save(ctx, name, sections[name]); err != nil {
			return fmt.Errorf("save section %s: %w", name, err)
		}
	}
	return nil
}

// loadSnapshot rebuilds a snapshot from its sections. It reports false when
// any section is missing.
func loadSnapshot(ctx context.Context, store SnapshotStore) (*Snapshot, bool, error) {
	s := &Snapshot{}
	targets := []struct {
		name string
		dst  interface{}
	}{
		{SectionMetadata, &s.Metadata},
		{SectionSettlement, &s.Settlement},
		{SectionReleases, &s.Releases},
		{SectionReconciliation, &s.Reconciliation},
		{SectionMovements, &s.Movements},
		{SectionCashflow, &s.Cashflow},
	}
	for _, t := range targets {
		ok, err := store.Load(ctx, t.name, t.dst)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
	}
	if s.Metadata.Version != SnapshotVersion {
		return nil, false, fmt.Errorf("snapshot version %q, want %q", s.Metadata.Version, SnapshotVersion)
	}
	return s, true, nil
}

// Installments returns the installments in one of the given statuses, or all
// of them when none is given.
func (s *Snapshot) Installments(statuses ...domain.InstallmentStatus) []domain.Installment {
	want := make(map[domain.InstallmentStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := make([]domain.Installment, 0, len(s.Reconciliation.Installments))
	for _, inst := range s.Reconciliation.Installments {
		if len(want) == 0 || want[inst.Status] {
			out = append(out, inst)
		}
	}
	return out
}

// Orders returns the order balances with the given status; "" returns all.
func (s *Snapshot) Orders(status domain.OrderStatus) []domain.OrderBalance {
	out := make([]domain.OrderBalance, 0, len(s.Reconciliation.Orders))
	for _, o := range s.Reconciliation.Orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// OrderReport is everything known about one order.
type OrderReport struct {
	Balance      domain.OrderBalance  `json:"balance"`
	Installments []domain.Installment `json:"installments"`
	Transactions []Transaction        `json:"transactions"`
}

func (s *Snapshot) Order(ref string) (OrderReport, bool) {
	var r OrderReport
	found := false
	for _, o := range s.Reconciliation.Orders {
		if o.OrderRef == ref {
			r.Balance = o
			found = true
			break
		}
	}
	if !found {
		return r, false
	}
	for _, inst := range s.Reconciliation.Installments {
		if inst.OrderRef == ref {
			r.Installments = append(r.Installments, inst)
		}
	}
	for _, t := range s.Reconciliation.Transactions {
		if t.OrderRef == ref {
			r.Transactions = append(r.Transactions, t)
		}
	}
	return r, true
}

// Transactions returns the SOURCE_ID classification, filtered by class when
// one is given.
func (s *Snapshot) Transactions(class TransactionClass) []Transaction {
	out := make([]Transaction, 0, len(s.Reconciliation.Transactions))
	for _, t := range s.Reconciliation.Transactions {
		if class == "" || t.Class == class {
			out = append(out, t)
		}
	}
	return out
}

// TransactionCounts counts the transactions of every class.
func (s *Snapshot) TransactionCounts() map[TransactionClass]int {
	out := make(map[TransactionClass]int, len(TransactionClasses))
	for _, c := range TransactionClasses {
		out[c] = 0
	}
	for _, t := range s.Reconciliation.Transactions {
		out[t.Class]++
	}
	return out
}

func (s *Snapshot) OrphanPayments() []domain.ReleaseEvent {
	return append([]domain.ReleaseEvent(nil), s.Reconciliation.Orphans...)
}

func (s *Snapshot) AdvanceBatches() []AdvanceBatch {
	return append([]AdvanceBatch(nil), s.Reconciliation.Advances...)
}

func (s *Snapshot) Discrepancies() []domain.Discrepancy {
	return append([]domain.Discrepancy(nil), s.Reconciliation.Discrepancies...)
}

func (s *Snapshot) MovementSummary() MovementsSection {
	return s.Movements
}

func (s *Snapshot) BalanceValidation() movements.Validation {
	return s.Movements.Validation
}

// DailyCashflow buckets the schedule by day within [from, to]; nil bounds are open.
func (s *Snapshot) DailyCashflow(from, to *time.Time) []cashflow.Bucket {
	return cashflow.Daily(s.Reconciliation.Installments, cashflow.Window{From: from, To: to})
}

func (s *Snapshot) MonthlyCashflow(from, to *time.Time) []cashflow.Bucket {
	return cashflow.Monthly(s.Reconciliation.Installments, cashflow.Window{From: from, To: to})
}

// Upcoming lists pending installments due within days of the run's today. A
// non-positive horizon uses the configured default.
func (s *Snapshot) Upcoming(days int) []domain.Installment {
	if days <= 0 {
		days = s.Metadata.UpcomingDays
	}
	return cashflow.Upcoming(s.Reconciliation.Installments, s.Metadata.Today, days)
}

func (s *Snapshot) Overdue() []domain.Installment {
	return cashflow.Overdue(s.Reconciliation.Installments)
}

func (s *Snapshot) AdvanceSummary() cashflow.AdvanceSummary {
	return cashflow.Advance(s.Reconciliation.Installments)
}

func (s *Snapshot) StatusSummary() map[domain.InstallmentStatus]cashflow.StatusTotal {
	return cashflow.ByStatus(s.Reconciliation.Installments)
}

func (s *Snapshot) DetailedStatus() DetailedStatus {
	return s.Reconciliation.Detailed
}

// Overview is the headline of a run.
type Overview struct {
	Metadata     Metadata                   `json:"metadata"`
	Settlement   settlement.Summary         `json:"settlement"`
	Releases     releases.Summary           `json:"releases"`
	Orders       map[domain.OrderStatus]int `json:"orders"`
	Transactions map[TransactionClass]int   `json:"transactions"`
	Orphans      int                        `json:"orphans"`
	Advances     int                        `json:"advances"`
	Validation   movements.Validation       `json:"validation"`
	Detailed     DetailedStatus             `json:"detailed"`
}

func (s *Snapshot) Overview() Overview {
	return Overview{
		Metadata:     s.Metadata,
		Settlement:   s.Settlement,
		Releases:     s.Releases,
		Orders:       s.Reconciliation.Detailed.Orders,
		Transactions: s.TransactionCounts(),
		Orphans:      len(s.Reconciliation.Orphans),
		Advances:     len(s.Reconciliation.Advances),
		Validation:   s.Movements.Validation,
		Detailed:     s.Reconciliation.Detailed,
	}
}
