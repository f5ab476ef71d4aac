package repository

import (
	"context"
	"database/sql"
)

// DepositRepo handles the durable half of the pending-deposit store.
// It is a crash-recovery aid, not the consistency source of truth: callers
// treat write failures as loggable, never fatal.
type DepositRepo struct{ db *sql.DB }

func NewDepositRepo(db *sql.DB) *DepositRepo { return &DepositRepo{db: db} }

func (r *DepositRepo) Insert(ctx context.Context, d DepositRow) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO pending_deposits(
	 unique_code, user_id, amount, original_amount, timestamp, status, qr_message_id, deposit_id)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, d.UniqueCode, d.UserID, d.Amount, d.OriginalAmount, d.Timestamp, d.Status, d.QRMessageID, d.DepositID)
	return err
}

func (r *DepositRepo) Delete(ctx context.Context, uniqueCode string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_deposits WHERE unique_code = ?`, uniqueCode)
	return err
}

// ListAll returns every persisted row; used at startup to rebuild the
// in-memory map, and by depositwatch to display the live queue.
func (r *DepositRepo) ListAll(ctx context.Context) ([]DepositRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT unique_code, user_id, amount, original_amount, timestamp, status, qr_message_id, deposit_id FROM pending_deposits ORDER BY timestamp ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DepositRow
	for rows.Next() {
		var d DepositRow
		if err := rows.Scan(&d.UniqueCode, &d.UserID, &d.Amount, &d.OriginalAmount, &d.Timestamp, &d.Status, &d.QRMessageID, &d.DepositID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
