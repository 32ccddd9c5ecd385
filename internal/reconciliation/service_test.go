package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/cache"
	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/repository"
)

type testEnv struct {
	files *repository.FileRepo
	sett  *repository.SettlementRepo
	rel   *repository.ReleaseRepo
	discs *repository.DiscrepancyRepo
	store *cache.FileStore
	svc   *Service
}

var runAt = time.Date(2025, 4, 1, 13, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		files: repository.NewFileRepo(db),
		sett:  repository.NewSettlementRepo(db),
		rel:   repository.NewReleaseRepo(db),
		discs: repository.NewDiscrepancyRepo(db),
		store: store,
	}
	env.svc = env.newService()
	return env
}

func (e *testEnv) newService() *Service {
	svc := NewService(e.files, e.sett, e.rel, e.discs, e.store, Options{
		AllowedMethods: testMethods,
		UpcomingDays:   90,
		Location:       time.UTC,
	})
	svc.now = func() time.Time { return runAt }
	return svc
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	lines, events := mixedData()
	_, err := e.sett.InsertFile(&domain.IngestedFile{
		ID: "f-sett", Ledger: domain.LedgerSettlement, Filename: "settlement.csv",
		Hash: "h1", Ordinal: 1, Rows: len(lines), IngestedAt: runAt,
	}, lines)
	require.NoError(t, err)
	_, err = e.rel.InsertFile(&domain.IngestedFile{
		ID: "f-rel", Ledger: domain.LedgerReleases, Filename: "releases.csv",
		Hash: "h2", Ordinal: 2, Rows: len(events), IngestedAt: runAt,
	}, events)
	require.NoError(t, err)
}

func TestRunWithoutDataFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSourceData)

	_, err = env.svc.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRunPublishesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	snap, err := env.svc.Run(context.Background())
	require.NoError(t, err)

	current, err := env.svc.Snapshot()
	require.NoError(t, err)
	assert.Same(t, snap, current)
	assert.False(t, env.svc.Running())

	assert.Equal(t, SnapshotVersion, snap.Metadata.Version)
	assert.NotEmpty(t, snap.Metadata.RunID)
	assert.Equal(t, "2025-04-01", snap.Metadata.Today.Format(domain.DateLayout))

	assert.Len(t, snap.Installments(), 9)
	assert.Len(t, snap.Installments(domain.StatusReceived, domain.StatusReceivedAdvance), 8)
	assert.Len(t, snap.Orders(domain.OrderClosed), 3)
	assert.Len(t, snap.OrphanPayments(), 1)
	assert.Len(t, snap.AdvanceBatches(), 1)
	assert.Len(t, snap.Upcoming(0), 1)
	assert.Empty(t, snap.Overdue())
	assert.Equal(t, 3, snap.AdvanceSummary().Count)

	report, ok := snap.Order("U")
	require.True(t, ok)
	assert.Len(t, report.Installments, 3)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, ClassMatched, report.Transactions[0].Class)
	_, ok = snap.Order("missing")
	assert.False(t, ok)

	from := day("2025-02-01")
	to := day("2025-02-28")
	daily := snap.DailyCashflow(from, to)
	require.Len(t, daily, 2)
	assert.Equal(t, "2025-02-10", daily[0].Key)
	assert.Equal(t, "2025-02-20", daily[1].Key)

	stored, total, err := env.discs.List(repository.DiscrepancyFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, len(snap.Discrepancies()), total)
	for _, d := range stored {
		assert.Equal(t, snap.Metadata.RunID, d.RunID)
	}
}

func TestRestoreFromCache(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)
	snap, err := env.svc.Run(context.Background())
	require.NoError(t, err)

	restarted := env.newService()
	ok, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	restored, err := restarted.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.Metadata.RunID, restored.Metadata.RunID)
	assert.True(t, snap.Metadata.ProcessedAt.Equal(restored.Metadata.ProcessedAt))
	assert.Equal(t, len(snap.Installments()), len(restored.Installments()))
	assert.Equal(t, snap.TransactionCounts(), restored.TransactionCounts())
	assert.Equal(t, snap.Overview().Orders, restored.Overview().Orders)
	assert.Len(t, restored.Upcoming(0), 1)
}

func TestRestoreWithEmptyCache(t *testing.T) {
	env := newTestEnv(t)
	ok, err := env.svc.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunRejectedWhileInFlight(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	require.True(t, env.svc.acquire())
	assert.True(t, env.svc.Running())

	_, err := env.svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.ErrorIs(t, env.svc.Reset(context.Background()), ErrRunInProgress)

	env.svc.release()
	_, err = env.svc.Run(context.Background())
	assert.NoError(t, err)
}

func TestRerunIsStable(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	first, err := env.svc.Run(context.Background())
	require.NoError(t, err)
	second, err := env.svc.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)
	assert.Equal(t, first.Reconciliation.Installments, second.Reconciliation.Installments)
	assert.Equal(t, first.Reconciliation.Orders, second.Reconciliation.Orders)
	assert.Equal(t, len(first.Discrepancies()), len(second.Discrepancies()))
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)
	_, err := env.svc.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, env.svc.Reset(context.Background()))

	_, err = env.svc.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	n, err := env.sett.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = env.rel.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := env.newService().Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSourceData)
}
