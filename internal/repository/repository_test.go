package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testFile(id string, ledger domain.Ledger, ordinal int64) *domain.IngestedFile {
	return &domain.IngestedFile{
		ID:         id,
		Ledger:     ledger,
		Filename:   id + ".csv",
		Hash:       "hash-" + id,
		Ordinal:    ordinal,
		IngestedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSettlementRoundTrip(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	repo := NewSettlementRepo(db)

	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	lines := []domain.SettlementLine{
		{ID: "l2", Seq: domain.RowSeq(1, 2), OrderRef: "X", ProcessorTxnID: "s1", Kind: domain.SettlementInstallmentLine,
			NetAmount: decimal.RequireFromString("62.50"), InstallmentNumber: "1/4/4", InstallmentCount: 4, DueDate: &due},
		{ID: "l1", Seq: domain.RowSeq(1, 1), OrderRef: "X", ProcessorTxnID: "s1", Kind: domain.SettlementTotal,
			GrossAmount: decimal.RequireFromString("260"), NetAmount: decimal.RequireFromString("250"),
			FeeAmount: decimal.RequireFromString("-10"), InstallmentCount: 4, PaymentMethod: "visa", PaymentMethodType: "credit_card"},
	}

	n, err := repo.InsertFile(testFile("f1", domain.LedgerSettlement, 1), lines)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "l1", got[0].ID)
	assert.Equal(t, domain.SettlementTotal, got[0].Kind)
	assert.True(t, decimal.RequireFromString("250").Equal(got[0].NetAmount))
	assert.Nil(t, got[0].DueDate)
	assert.Equal(t, "2025-03-10", domain.FormatDate(got[1].DueDate))
	assert.Equal(t, "1/4/4", got[1].InstallmentNumber)
	assert.Equal(t, "f1", got[1].FileID)

	exists, err := files.ExistsByHash("hash-f1")
	require.NoError(t, err)
	assert.True(t, exists)

	next, err := files.NextOrdinal()
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestDuplicateHashRejected(t *testing.T) {
	db := newTestDB(t)
	repo := NewReleaseRepo(db)

	_, err := repo.InsertFile(testFile("f1", domain.LedgerReleases, 1), nil)
	require.NoError(t, err)

	dup := testFile("f2", domain.LedgerReleases, 2)
	dup.Hash = "hash-f1"
	_, err = repo.InsertFile(dup, []domain.ReleaseEvent{{ID: "e1", OrderRef: "X"}})
	assert.Error(t, err)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReleaseRoundTripAndClear(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	repo := NewReleaseRepo(db)

	released := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	events := []domain.ReleaseEvent{{
		ID: "e1", Seq: 1, OrderRef: "X", ProcessorTxnID: "s1", Description: "payment",
		NetCreditAmount: decimal.RequireFromString("62.5"), InstallmentLabel: "2/4",
		ReleaseDate: &released, PaymentMethod: "visa",
	}}
	_, err := repo.InsertFile(testFile("f1", domain.LedgerReleases, 1), events)
	require.NoError(t, err)

	got, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2/4", got[0].InstallmentLabel)
	assert.Equal(t, "2025-02-20", domain.FormatDate(got[0].ReleaseDate))
	assert.Empty(t, got[0].Kind)

	listed, err := files.List(domain.LedgerReleases)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "f1.csv", listed[0].Filename)

	require.NoError(t, files.ClearAll())
	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDiscrepancyReplaceListSummary(t *testing.T) {
	db := newTestDB(t)
	repo := NewDiscrepancyRepo(db)
	now := time.Now()

	_, err := repo.ReplaceAll([]domain.Discrepancy{{ID: "old", RunID: "r1", Type: domain.DiscrepancyOrphanPayment,
		Severity: domain.SeverityLow, DetectedAt: now}})
	require.NoError(t, err)

	discs := []domain.Discrepancy{
		{ID: "d1", RunID: "r2", Type: domain.DiscrepancyTransactionMismatch, OrderRef: "F", ProcessorTxnID: "s-f",
			Expected: decimal.NewFromInt(500), Actual: decimal.NewFromInt(400), Difference: decimal.NewFromInt(100),
			Severity: domain.SeverityMedium, Description: "mismatch", DetectedAt: now},
		{ID: "d2", RunID: "r2", Type: domain.DiscrepancyOrderError, OrderRef: "E",
			Difference: decimal.NewFromInt(-600), Severity: domain.SeverityCritical, DetectedAt: now},
	}
	n, err := repo.ReplaceAll(discs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, total, err := repo.List(DiscrepancyFilter{Type: string(domain.DiscrepancyTransactionMismatch)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "F", list[0].OrderRef)
	assert.Equal(t, "s-f", list[0].ProcessorTxnID)
	assert.True(t, decimal.NewFromInt(100).Equal(list[0].Difference))

	summary, err := repo.GetSummary()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCount)
	assert.Equal(t, "r2", summary.RunID)
	assert.Equal(t, "700", summary.TotalImpact.String())
	assert.Equal(t, 1, summary.BySeverity[string(domain.SeverityCritical)])

	require.NoError(t, repo.ClearAll())
	_, total, err = repo.List(DiscrepancyFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
