package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/cashflow"
	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/movements"
	"github.com/payrecon/reconciler/internal/releases"
	"github.com/payrecon/reconciler/internal/repository"
	"github.com/payrecon/reconciler/internal/settlement"
)

var (
	ErrRunInProgress = errors.New("a reconciliation run is already in progress")
	ErrNoSourceData  = errors.New("no settlement or releases data ingested")
	ErrNoSnapshot    = errors.New("no reconciliation has been run yet")
)

// Options tune a run.
type Options struct {
	AllowedMethods []string
	UpcomingDays   int
	Location       *time.Location
}

// Service runs reconciliations over the ingested ledgers and publishes the
// latest snapshot. At most one run is in flight at a time.
type Service struct {
	fileRepo *repository.FileRepo
	settRepo *repository.SettlementRepo
	relRepo  *repository.ReleaseRepo
	discRepo *repository.DiscrepancyRepo
	store    SnapshotStore
	opts     Options
	now      func() time.Time
	logger   *logrus.Entry

	mu      sync.Mutex
	running atomic.Bool
	current atomic.Pointer[Snapshot]
}

// NewService creates a new reconciliation service. store may be nil, in which
// case snapshots are kept in memory only.
func NewService(
	fileRepo *repository.FileRepo,
	settRepo *repository.SettlementRepo,
	relRepo *repository.ReleaseRepo,
	discRepo *repository.DiscrepancyRepo,
	store SnapshotStore,
	opts Options,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.UpcomingDays <= 0 {
		opts.UpcomingDays = 7
	}
	return &Service{
		fileRepo: fileRepo,
		settRepo: settRepo,
		relRepo:  relRepo,
		discRepo: discRepo,
		store:    store,
		opts:     opts,
		now:      time.Now,
		logger:   logrus.WithField("component", "reconciliation"),
	}
}

// Running reports whether a run or reset is in flight.
func (s *Service) Running() bool {
	return s.running.Load()
}

func (s *Service) acquire() bool {
	if !s.mu.TryLock() {
		return false
	}
	s.running.Store(true)
	return true
}

func (s *Service) release() {
	s.running.Store(false)
	s.mu.Unlock()
}

// Snapshot returns the last published snapshot.
func (s *Service) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Run rebuilds both ledgers from storage, reconciles them and publishes the
// result. Unmatched or mismatched orders are data, not failures.
func (s *Service) Run(ctx context.Context) (*Snapshot, error) {
	if !s.acquire() {
		return nil, ErrRunInProgress
	}
	defer s.release()

	started := s.now()
	lines, err := s.settRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("load settlement lines: %w", err)
	}
	events, err := s.relRepo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("load release events: %w", err)
	}
	if len(lines) == 0 && len(events) == 0 {
		return nil, ErrNoSourceData
	}

	snap, discs := s.compute(lines, events, started)

	if _, err := s.discRepo.ReplaceAll(discs); err != nil {
		return nil, fmt.Errorf("store discrepancies: %w", err)
	}

	s.current.Store(snap)

	if s.store != nil {
		if err := saveSnapshot(ctx, s.store, snap); err != nil {
			s.logger.WithError(err).Warn("snapshot not persisted")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":        snap.Metadata.RunID,
		"orders":        len(snap.Reconciliation.Orders),
		"installments":  len(snap.Reconciliation.Installments),
		"transactions":  len(snap.Reconciliation.Transactions),
		"discrepancies": len(discs),
		"elapsed":       s.now().Sub(started).String(),
	}).Info("reconciliation run complete")
	return snap, nil
}

// compute is the pure part of a run: ledgers in, snapshot out.
func (s *Service) compute(lines []domain.SettlementLine, events []domain.ReleaseEvent, at time.Time) (*Snapshot, []domain.Discrepancy) {
	today := domain.Day(at.In(s.opts.Location))

	sett := settlement.Build(lines)
	rel := releases.Build(events, s.opts.AllowedMethods)

	res := NewEngine(today).Reconcile(sett, rel)
	txns := ReconcileBySource(lines, rel)

	relSummary := rel.Summary()
	mv := movements.Aggregate(rel.Movements())
	validation := mv.Validate(relSummary.TotalReceived)
	if !validation.IsValid {
		s.logger.Warnf("implied processor balance is negative: %s", validation.ExpectedBalance)
	}

	advanced := decimal.Zero
	for _, inst := range res.Installments {
		if inst.Status == domain.StatusReceivedAdvance {
			advanced = advanced.Add(inst.ReceivedAmount)
		}
	}

	runID := uuid.NewString()
	discs := detectDiscrepancies(findings{
		runID:        runID,
		at:           at.UTC(),
		settlement:   sett,
		releases:     rel,
		result:       res,
		transactions: txns,
		validation:   validation,
	})

	snap := &Snapshot{
		Metadata: Metadata{
			ProcessedAt:  at.UTC(),
			Version:      SnapshotVersion,
			RunID:        runID,
			Today:        today,
			UpcomingDays: s.opts.UpcomingDays,
		},
		Settlement: sett.Summary(),
		Releases:   relSummary,
		Reconciliation: ReconciliationSection{
			Installments:  res.Installments,
			Orders:        res.Orders,
			Transactions:  txns,
			Advances:      res.Advances,
			Orphans:       res.Orphans,
			Detailed:      buildDetailedStatus(res, relSummary.TotalReceived),
			Discrepancies: discs,
		},
		Movements: MovementsSection{
			Summary:    mv,
			Validation: validation,
			FeeRate:    mv.AdvanceFeeRate(advanced),
		},
		Cashflow: cashflow.Project(res.Installments, today, s.opts.UpcomingDays),
	}
	return snap, discs
}

// Restore publishes the snapshot persisted by an earlier process, if any.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	snap, ok, err := loadSnapshot(ctx, s.store)
	if err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}
	s.current.Store(snap)
	s.logger.Infof("restored snapshot %s processed at %s", snap.Metadata.RunID, snap.Metadata.ProcessedAt.Format(time.RFC3339))
	return true, nil
}

// Reset drops every ingested row, the stored discrepancies, the persisted
// snapshot and the published one.
func (s *Service) Reset(ctx context.Context) error {
	if !s.acquire() {
		return ErrRunInProgress
	}
	defer s.release()

	if err := s.discRepo.ClearAll(); err != nil {
		return fmt.Errorf("clear discrepancies: %w", err)
	}
	if err := s.settRepo.ClearAll(); err != nil {
		return fmt.Errorf("clear settlement lines: %w", err)
	}
	if err := s.relRepo.ClearAll(); err != nil {
		return fmt.Errorf("clear release events: %w", err)
	}
	if err := s.fileRepo.ClearAll(); err != nil {
		return fmt.Errorf("clear ingested files: %w", err)
	}
	if s.store != nil {
		if err := s.store.ClearAll(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	s.current.Store(nil)
	s.logger.Info("reconciliation data reset")
	return nil
}
