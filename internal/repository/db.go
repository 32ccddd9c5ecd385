package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/payrecon/reconciler/internal/domain"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to ":memory:" is a distinct database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingested_files (
			id TEXT PRIMARY KEY,
			ledger TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			ordinal INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			stored_count INTEGER NOT NULL,
			dropped_count INTEGER NOT NULL,
			skipped_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingested_files_ledger ON ingested_files(ledger)`,

		`CREATE TABLE IF NOT EXISTS settlement_lines (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			order_ref TEXT NOT NULL,
			processor_txn_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			gross_amount TEXT NOT NULL,
			net_amount TEXT NOT NULL,
			fee_amount TEXT NOT NULL,
			installment_number TEXT NOT NULL,
			installment_count INTEGER NOT NULL,
			due_date TEXT,
			approval_date TEXT,
			payment_method TEXT NOT NULL,
			payment_method_type TEXT NOT NULL,
			FOREIGN KEY (file_id) REFERENCES ingested_files(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlement_lines_order ON settlement_lines(order_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_settlement_lines_txn ON settlement_lines(processor_txn_id)`,
		`CREATE INDEX IF NOT EXISTS idx_settlement_lines_seq ON settlement_lines(seq)`,

		`CREATE TABLE IF NOT EXISTS release_events (
			id TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			order_ref TEXT NOT NULL,
			processor_txn_id TEXT NOT NULL,
			description TEXT NOT NULL,
			record_type TEXT NOT NULL,
			net_credit_amount TEXT NOT NULL,
			net_debit_amount TEXT NOT NULL,
			gross_amount TEXT NOT NULL,
			fee_amount TEXT NOT NULL,
			installment_label TEXT NOT NULL,
			release_date TEXT,
			payment_method TEXT NOT NULL,
			FOREIGN KEY (file_id) REFERENCES ingested_files(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_release_events_order ON release_events(order_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_release_events_txn ON release_events(processor_txn_id)`,
		`CREATE INDEX IF NOT EXISTS idx_release_events_seq ON release_events(seq)`,

		`CREATE TABLE IF NOT EXISTS discrepancies (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			type TEXT NOT NULL,
			order_ref TEXT,
			processor_txn_id TEXT,
			expected TEXT NOT NULL,
			actual TEXT NOT NULL,
			difference TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			detected_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_discrepancies_type ON discrepancies(type)`,
		`CREATE INDEX IF NOT EXISTS idx_discrepancies_severity ON discrepancies(severity)`,
		`CREATE INDEX IF NOT EXISTS idx_discrepancies_order ON discrepancies(order_ref)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}

// --- helpers ---

func insertFile(tx *sql.Tx, f *domain.IngestedFile) error {
	_, err := tx.Exec(
		`INSERT INTO ingested_files
		(id, ledger, filename, file_hash, ordinal, row_count, stored_count,
		 dropped_count, skipped_count, ingested_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		f.ID, string(f.Ledger), f.Filename, f.Hash, f.Ordinal, f.Rows, f.Stored,
		f.Dropped, f.Skipped, f.IngestedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(domain.DateLayout)
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
