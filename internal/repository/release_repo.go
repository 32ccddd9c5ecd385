package repository

import (
	"database/sql"
	"fmt"

	"github.com/payrecon/reconciler/internal/domain"
)

type ReleaseRepo struct {
	db *sql.DB
}

func NewReleaseRepo(db *sql.DB) *ReleaseRepo {
	return &ReleaseRepo{db: db}
}

// InsertFile stores the file record and its release events in one
// transaction.
func (r *ReleaseRepo) InsertFile(f *domain.IngestedFile, events []domain.ReleaseEvent) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertFile(tx, f); err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO release_events
		(id, file_id, seq, order_ref, processor_txn_id, description, record_type,
		 net_credit_amount, net_debit_amount, gross_amount, fee_amount,
		 installment_label, release_date, payment_method)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range events {
		ev := &events[i]
		res, err := stmt.Exec(
			ev.ID, f.ID, ev.Seq, ev.OrderRef, ev.ProcessorTxnID, ev.Description, ev.RecordType,
			ev.NetCreditAmount.String(), ev.NetDebitAmount.String(),
			ev.GrossAmount.String(), ev.FeeAmount.String(),
			ev.InstallmentLabel, nullDate(ev.ReleaseDate), ev.PaymentMethod,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert event %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ListAll returns every stored release event in sequence order. Kind is
// left empty; classification belongs to the releases ledger builder.
func (r *ReleaseRepo) ListAll() ([]domain.ReleaseEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, file_id, seq, order_ref, processor_txn_id, description, record_type,
		 net_credit_amount, net_debit_amount, gross_amount, fee_amount,
		 installment_label, release_date, payment_method
		 FROM release_events ORDER BY seq, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.ReleaseEvent
	for rows.Next() {
		var ev domain.ReleaseEvent
		var released sql.NullString
		if err := rows.Scan(
			&ev.ID, &ev.FileID, &ev.Seq, &ev.OrderRef, &ev.ProcessorTxnID, &ev.Description, &ev.RecordType,
			&ev.NetCreditAmount, &ev.NetDebitAmount, &ev.GrossAmount, &ev.FeeAmount,
			&ev.InstallmentLabel, &released, &ev.PaymentMethod,
		); err != nil {
			return nil, err
		}
		ev.ReleaseDate = parseNullDate(released)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *ReleaseRepo) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM release_events").Scan(&n)
	return n, err
}

// ClearAll removes all release events.
func (r *ReleaseRepo) ClearAll() error {
	_, err := r.db.Exec("DELETE FROM release_events")
	return err
}
