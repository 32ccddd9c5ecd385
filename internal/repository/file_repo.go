package repository

import (
	"database/sql"
	"time"

	"github.com/payrecon/reconciler/internal/domain"
)

type FileRepo struct {
	db *sql.DB
}

func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

// ExistsByHash checks whether a file with the given content hash has already
// been ingested (idempotency check).
func (r *FileRepo) ExistsByHash(hash string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM ingested_files WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

// NextOrdinal returns the ordinal for the next ingested file.
func (r *FileRepo) NextOrdinal() (int64, error) {
	var last int64
	err := r.db.QueryRow("SELECT COALESCE(MAX(ordinal), 0) FROM ingested_files").Scan(&last)
	return last + 1, err
}

// List returns the ingested files, optionally restricted to one ledger.
func (r *FileRepo) List(ledger domain.Ledger) ([]domain.IngestedFile, error) {
	q := `SELECT id, ledger, filename, file_hash, ordinal, row_count, stored_count,
		dropped_count, skipped_count, ingested_at FROM ingested_files`
	var args []any
	if ledger != "" {
		q += " WHERE ledger = ?"
		args = append(args, string(ledger))
	}
	q += " ORDER BY ordinal"

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []domain.IngestedFile
	for rows.Next() {
		var f domain.IngestedFile
		var ledgerName, ingestedAt string
		if err := rows.Scan(&f.ID, &ledgerName, &f.Filename, &f.Hash, &f.Ordinal,
			&f.Rows, &f.Stored, &f.Dropped, &f.Skipped, &ingestedAt); err != nil {
			return nil, err
		}
		f.Ledger = domain.Ledger(ledgerName)
		f.IngestedAt, _ = time.Parse(time.RFC3339, ingestedAt)
		files = append(files, f)
	}
	return files, rows.Err()
}

// ClearAll removes every ingested file and, by cascade, its rows.
func (r *FileRepo) ClearAll() error {
	_, err := r.db.Exec("DELETE FROM ingested_files")
	return err
}
