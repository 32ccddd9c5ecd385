package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/repository"
)

const settlementCSV = "\xef\xbb\xbfEXTERNAL_REFERENCE;SOURCE_ID;TRANSACTION_TYPE;DESCRIPTION;PAYMENT_METHOD;TRANSACTION_AMOUNT;FEE_AMOUNT;SETTLEMENT_NET_AMOUNT;INSTALLMENTS;INSTALLMENT_NUMBER;INSTALLMENT_NET_AMOUNT;APPROVAL_DATE;MONEY_RELEASE_DATE\n" +
	"A;src-1;SETTLEMENT;;Visa;310,00;10,00;300,00;3.0;;;2025-01-10T10:00:00.000-03:00;\n" +
	"A;src-1;SETTLEMENT;INSTALLMENT;visa;;;;3;1/3;100,00;;2025-02-10\n" +
	"A;src-1;SETTLEMENT;INSTALLMENT;visa;;;;3;2/3;100,00;;2025-03-10\n" +
	";;SETTLEMENT;;visa;50;0;50;1;;;;\n" +
	"B;src-2;PAYOUT;;;100;0;100;;;;;\n" +
	";;;;;;;;;;;;\n"

const releasesCSV = "RELEASE_DATE,SOURCE_ID,EXTERNAL_REFERENCE,RECORD_TYPE,DESCRIPTION,NET_CREDIT_AMOUNT,NET_DEBIT_AMOUNT,GROSS_AMOUNT,MP_FEE_AMOUNT,INSTALLMENTS,PAYMENT_METHOD\n" +
	"2025-02-10,src-1,A,release,Payment,100.00,0,103.33,3.33,1/3,VISA\n" +
	"2025-02-11,payout-1,,release,Payout,0,250.00,,,,\n" +
	"2025-02-12,,,release,fee,1,0,,,,\n"

type testEnv struct {
	svc  *Service
	sett *repository.SettlementRepo
	rel  *repository.ReleaseRepo
	file *repository.FileRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		sett: repository.NewSettlementRepo(db),
		rel:  repository.NewReleaseRepo(db),
		file: repository.NewFileRepo(db),
	}
	env.svc = NewService(env.file, env.sett, env.rel)
	return env
}

func TestIngestSettlementCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.IngestFile(ctx, domain.LedgerSettlement, "dir/settlement.csv", []byte(settlementCSV))
	require.NoError(t, err)

	assert.Equal(t, StatusIngested, res.Status)
	assert.Equal(t, "settlement.csv", res.Filename)
	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, 3, res.Stored)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Skipped)

	lines, err := env.sett.ListAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)

	total := lines[0]
	assert.Equal(t, domain.SettlementTotal, total.Kind)
	assert.Equal(t, "A", total.OrderRef)
	assert.Equal(t, "src-1", total.ProcessorTxnID)
	assert.Equal(t, "300.00", total.NetAmount.StringFixed(2))
	assert.Equal(t, "310.00", total.GrossAmount.StringFixed(2))
	assert.Equal(t, 3, total.InstallmentCount)
	assert.Equal(t, "visa", total.PaymentMethod)
	require.NotNil(t, total.ApprovalDate)
	assert.Equal(t, "2025-01-10", domain.FormatDate(total.ApprovalDate))
	assert.Nil(t, total.DueDate)

	first := lines[1]
	assert.Equal(t, domain.SettlementInstallmentLine, first.Kind)
	assert.Equal(t, "1/3", first.InstallmentNumber)
	assert.Equal(t, "100.00", first.NetAmount.StringFixed(2))
	assert.Equal(t, "2025-02-10", domain.FormatDate(first.DueDate))
	assert.Less(t, total.Seq, first.Seq)
	assert.Less(t, first.Seq, lines[2].Seq)

	files, err := env.file.List(domain.LedgerSettlement)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 1, files[0].Dropped)
	assert.Equal(t, 1, files[0].Skipped)
}

func TestIngestReleasesCSV(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.IngestFile(context.Background(), domain.LedgerReleases, "releases.csv", []byte(releasesCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, 1, res.Dropped)

	events, err := env.rel.ListAll()
	require.NoError(t, err)
	require.Len(t, events, 2)

	pay := events[0]
	assert.Equal(t, "payment", pay.Description)
	assert.Equal(t, "visa", pay.PaymentMethod)
	assert.Equal(t, "1/3", pay.InstallmentLabel)
	assert.Equal(t, "100.00", pay.NetCreditAmount.StringFixed(2))
	assert.Equal(t, "3.33", pay.FeeAmount.StringFixed(2))
	assert.Equal(t, "2025-02-10", domain.FormatDate(pay.ReleaseDate))

	payout := events[1]
	assert.Equal(t, "payout-1", payout.ProcessorTxnID)
	assert.Empty(t, payout.OrderRef)
	assert.Equal(t, "250.00", payout.NetDebitAmount.StringFixed(2))
}

func TestIngestIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.IngestFile(ctx, domain.LedgerReleases, "releases.csv", []byte(releasesCSV))
	require.NoError(t, err)

	res, err := env.svc.IngestFile(ctx, domain.LedgerReleases, "copy.csv", []byte(releasesCSV))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyIngested, res.Status)
	assert.Empty(t, res.FileID)

	n, err := env.rel.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngestXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"external_reference", "source_id", "transaction_type", "description", "settlement_net_amount", "installments", "money_release_date"},
		{"X", "src-9", "SETTLEMENT", "", "97.00", "1", ""},
		{"X", "src-9", "REFUND", "", "-20.00", "", ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	env := newTestEnv(t)
	res, err := env.svc.IngestFile(context.Background(), domain.LedgerSettlement, "settlement.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)

	lines, err := env.sett.ListAll()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, domain.SettlementTotal, lines[0].Kind)
	assert.Equal(t, "97.00", lines[0].NetAmount.StringFixed(2))
	assert.Equal(t, domain.SettlementRefund, lines[1].Kind)
	assert.Equal(t, "-20.00", lines[1].NetAmount.StringFixed(2))
}

func TestIngestRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.IngestFile(ctx, domain.LedgerSettlement, "settlement.json", []byte("{}"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = env.svc.IngestFile(ctx, domain.Ledger("ledger"), "settlement.csv", []byte(settlementCSV))
	assert.True(t, errors.Is(err, ErrUnknownLedger))

	_, err = env.svc.IngestFile(ctx, domain.LedgerReleases, "releases.csv", []byte("SOURCE_ID,AMOUNT\nsrc-1,10\n"))
	assert.Error(t, err)

	n, err := env.rel.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte(settlementCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("EXTERNAL_REFERENCE\nA\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	env := newTestEnv(t)
	results, err := env.svc.IngestDir(context.Background(), domain.LedgerSettlement, dir)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a.csv", results[0].Filename)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)

	assert.Equal(t, "b.csv", results[1].Filename)
	assert.Equal(t, StatusIngested, results[1].Status)
}

func TestIngestDirStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte(releasesCSV), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newTestEnv(t).svc.IngestDir(ctx, domain.LedgerReleases, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestParseDateAndCount(t *testing.T) {
	assert.Equal(t, "2025-03-10", domain.FormatDate(parseDate("2025-03-10T23:59:00.000-04:00")))
	assert.Equal(t, "2025-03-10", domain.FormatDate(parseDate("10/03/2025")))
	assert.Nil(t, parseDate("soon"))
	assert.Equal(t, 3, parseCount("3.0"))
	assert.Equal(t, 0, parseCount("x"))
}
