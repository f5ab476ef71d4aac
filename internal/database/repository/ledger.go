package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/kangnaum/qrisbot/internal/database"
)

// LedgerRepo handles balances and their append-only ledger.
type LedgerRepo struct{ db *sql.DB }

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// Credit adds amount to the user's balance and records a ledger entry in the
// same transaction.
func (r *LedgerRepo) Credit(ctx context.Context, userID, amount int64, reason string) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO balances(user_id, amount) VALUES(?, ?)
		ON CONFLICT(user_id) DO UPDATE SET amount = amount + excluded.amount, updated_at = CURRENT_TIMESTAMP
		`, userID, amount)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO balance_ledger(id, user_id, amount, reason, created_at)
		VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, uuid.NewString(), userID, amount, reason)
		return err
	})
}

// Balance returns the user's current balance; zero for unknown users.
func (r *LedgerRepo) Balance(ctx context.Context, userID int64) (int64, error) {
	var amount int64
	err := r.db.QueryRowContext(ctx, `SELECT amount FROM balances WHERE user_id = ?`, userID).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return amount, err
}

// Entries lists the user's ledger rows, newest first.
func (r *LedgerRepo) Entries(ctx context.Context, userID int64) ([]LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, amount, reason, created_at FROM balance_ledger WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
