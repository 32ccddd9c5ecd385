package repository

import (
	"database/sql"
	"fmt"

	"github.com/payrecon/reconciler/internal/domain"
)

type SettlementRepo struct {
	db *sql.DB
}

func NewSettlementRepo(db *sql.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

// InsertFile stores the file record and its lines in one transaction.
func (r *SettlementRepo) InsertFile(f *domain.IngestedFile, lines []domain.SettlementLine) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertFile(tx, f); err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO settlement_lines
		(id, file_id, seq, order_ref, processor_txn_id, kind, gross_amount, net_amount,
		 fee_amount, installment_number, installment_count, due_date, approval_date,
		 payment_method, payment_method_type)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range lines {
		l := &lines[i]
		res, err := stmt.Exec(
			l.ID, f.ID, l.Seq, l.OrderRef, l.ProcessorTxnID, string(l.Kind),
			l.GrossAmount.String(), l.NetAmount.String(), l.FeeAmount.String(),
			l.InstallmentNumber, l.InstallmentCount, nullDate(l.DueDate), nullDate(l.ApprovalDate),
			l.PaymentMethod, l.PaymentMethodType,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert line %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ListAll returns every stored settlement line in sequence order.
func (r *SettlementRepo) ListAll() ([]domain.SettlementLine, error) {
	rows, err := r.db.Query(
		`SELECT id, file_id, seq, order_ref, processor_txn_id, kind, gross_amount, net_amount,
		 fee_amount, installment_number, installment_count, due_date, approval_date,
		 payment_method, payment_method_type
		 FROM settlement_lines ORDER BY seq, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.SettlementLine
	for rows.Next() {
		var l domain.SettlementLine
		var kind string
		var due, approval sql.NullString
		if err := rows.Scan(
			&l.ID, &l.FileID, &l.Seq, &l.OrderRef, &l.ProcessorTxnID, &kind,
			&l.GrossAmount, &l.NetAmount, &l.FeeAmount, &l.InstallmentNumber, &l.InstallmentCount,
			&due, &approval, &l.PaymentMethod, &l.PaymentMethodType,
		); err != nil {
			return nil, err
		}
		l.Kind = domain.SettlementKind(kind)
		l.DueDate = parseNullDate(due)
		l.ApprovalDate = parseNullDate(approval)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *SettlementRepo) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM settlement_lines").Scan(&n)
	return n, err
}

// ClearAll removes all settlement lines.
func (r *SettlementRepo) ClearAll() error {
	_, err := r.db.Exec("DELETE FROM settlement_lines")
	return err
}
