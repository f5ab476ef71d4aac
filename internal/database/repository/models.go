package repository

import "time"

// DepositRow represents a pending_deposits row.
type DepositRow struct {
	UniqueCode     string
	UserID         int64
	Amount         int64 // expected amount, matched against the feed
	OriginalAmount int64 // amount the user asked for
	Timestamp      int64 // epoch millis
	Status         string
	QRMessageID    *int64
	DepositID      *string
}

// LedgerEntry represents a balance_ledger row.
type LedgerEntry struct {
	ID        string
	UserID    int64
	Amount    int64
	Reason    string
	CreatedAt time.Time
}
