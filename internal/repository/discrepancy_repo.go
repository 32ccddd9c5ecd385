package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
)

type DiscrepancyRepo struct {
	db *sql.DB
}

func NewDiscrepancyRepo(db *sql.DB) *DiscrepancyRepo {
	return &DiscrepancyRepo{db: db}
}

// ReplaceAll swaps the stored discrepancies for those of a new run in one
// transaction, so readers never see a mix of two runs.
func (r *DiscrepancyRepo) ReplaceAll(discs []domain.Discrepancy) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM discrepancies"); err != nil {
		return 0, fmt.Errorf("clear: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO discrepancies
		(id, run_id, type, order_ref, processor_txn_id, expected, actual,
		 difference, severity, description, detected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range discs {
		d := &discs[i]
		res, err := stmt.Exec(
			d.ID, d.RunID, string(d.Type), nullString(d.OrderRef), nullString(d.ProcessorTxnID),
			d.Expected.String(), d.Actual.String(), d.Difference.String(),
			string(d.Severity), d.Description, d.DetectedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

type DiscrepancyFilter struct {
	Type     string
	Severity string
	OrderRef string
	Page     int
	Limit    int
}

func (r *DiscrepancyRepo) List(f DiscrepancyFilter) ([]domain.Discrepancy, int, error) {
	where, args := buildDiscrepancyWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM discrepancies"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := `SELECT id, run_id, type, order_ref, processor_txn_id, expected, actual,
		difference, severity, description, detected_at FROM discrepancies` +
		where + " ORDER BY type, id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	discs, err := scanDiscrepancies(rows)
	return discs, total, err
}

type DiscrepancySummary struct {
	TotalCount  int                        `json:"total_count"`
	TotalImpact decimal.Decimal            `json:"total_impact"`
	RunID       string                     `json:"run_id"`
	ByType      map[string]int             `json:"by_type"`
	BySeverity  map[string]int             `json:"by_severity"`
	ImpactType  map[string]decimal.Decimal `json:"impact_by_type"`
}

// GetSummary aggregates the stored discrepancies. Amounts are stored as
// decimal text, so the impact is summed here rather than in SQL.
func (r *DiscrepancyRepo) GetSummary() (*DiscrepancySummary, error) {
	s := &DiscrepancySummary{
		TotalImpact: decimal.Zero,
		ByType:      make(map[string]int),
		BySeverity:  make(map[string]int),
		ImpactType:  make(map[string]decimal.Decimal),
	}

	rows, err := r.db.Query("SELECT run_id, type, severity, difference FROM discrepancies")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var runID, dtype, sev string
		var diff decimal.Decimal
		if err := rows.Scan(&runID, &dtype, &sev, &diff); err != nil {
			return nil, err
		}
		s.RunID = runID
		s.TotalCount++
		s.TotalImpact = s.TotalImpact.Add(diff.Abs())
		s.ByType[dtype]++
		s.BySeverity[sev]++
		s.ImpactType[dtype] = s.ImpactType[dtype].Add(diff.Abs())
	}
	return s, rows.Err()
}

// ClearAll removes all discrepancies.
func (r *DiscrepancyRepo) ClearAll() error {
	_, err := r.db.Exec("DELETE FROM discrepancies")
	return err
}

// --- helpers ---

func buildDiscrepancyWhere(f DiscrepancyFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, f.Type)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.OrderRef != "" {
		clauses = append(clauses, "order_ref = ?")
		args = append(args, f.OrderRef)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanDiscrepancies(rows *sql.Rows) ([]domain.Discrepancy, error) {
	var discs []domain.Discrepancy
	for rows.Next() {
		var d domain.Discrepancy
		var dtype, sev, detectedAt string
		var orderRef, txnID sql.NullString

		err := rows.Scan(
			&d.ID, &d.RunID, &dtype, &orderRef, &txnID,
			&d.Expected, &d.Actual, &d.Difference,
			&sev, &d.Description, &detectedAt,
		)
		if err != nil {
			return nil, err
		}

		d.Type = domain.DiscrepancyType(dtype)
		d.Severity = domain.Severity(sev)
		d.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
		d.OrderRef = orderRef.String
		d.ProcessorTxnID = txnID.String

		discs = append(discs, d)
	}
	return discs, rows.Err()
}
