// Package reconcile drives the periodic sweep over pending deposits: expire
// the stale ones, match the rest against the provider feed by exact amount,
// credit and notify on a hit.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kangnaum/qrisbot/internal/deposit"
	"github.com/kangnaum/qrisbot/internal/feed"
)

// FeedSource supplies the provider's recent incoming transactions.
type FeedSource interface {
	RecentIncoming(ctx context.Context) ([]feed.Transaction, error)
}

// Notifier is the narrow contract into the chat layer. All calls are
// fire-and-forget from the engine's perspective; failures are logged and
// never block a transition.
type Notifier interface {
	SendMessage(chatID int64, text string) error
	DeleteMessage(chatID int64, messageID int64) error
}

// CreditService adds funds to a user's balance. Invoked exactly once per
// successful match, with the requested (pre-surcharge) amount.
type CreditService interface {
	Credit(ctx context.Context, userID, amount int64) error
}

const (
	// DefaultInterval is the sweep cadence.
	DefaultInterval = 20 * time.Second
	// DefaultExpiry is how long a QR invoice stays payable.
	DefaultExpiry = 5 * time.Minute
)

// Reconciler owns the sweep. A single goroutine runs ticks sequentially, so
// ticks never overlap and per-deposit processing needs no locking beyond the
// store's own.
type Reconciler struct {
	Store    *deposit.Store
	Feed     FeedSource
	Notify   Notifier
	Balance  CreditService
	Log      *zap.Logger
	Interval time.Duration
	Expiry   time.Duration

	now func() time.Time // test hook
}

func New(store *deposit.Store, src FeedSource, notify Notifier, bal CreditService, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		Store:    store,
		Feed:     src,
		Notify:   notify,
		Balance:  bal,
		Log:      log,
		Interval: DefaultInterval,
		Expiry:   DefaultExpiry,
		now:      time.Now,
	}
}

// Run sweeps on a fixed ticker until ctx is cancelled. Sweeps are sequential;
// a slow sweep delays the next tick instead of overlapping it.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.Log.Info("reconciler started", zap.Duration("interval", r.Interval), zap.Duration("expiry", r.Expiry))
	for {
		select {
		case <-ctx.Done():
			r.Log.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one tick over a snapshot of all pending deposits. The feed is
// fetched at most once per tick and the parsed list reused across deposits;
// first-exact-amount-hit semantics per deposit are unchanged by that. A
// failure on one deposit never aborts the others.
func (r *Reconciler) Sweep(ctx context.Context) {
	pending := r.Store.AllPending()
	if len(pending) == 0 {
		return
	}

	now := r.now()
	var (
		txs     []feed.Transaction
		feedErr error
		fetched bool
	)

	for _, d := range pending {
		if d.Age(now) > r.Expiry {
			r.expire(ctx, d)
			continue
		}

		if !fetched {
			txs, feedErr = r.Feed.RecentIncoming(ctx)
			fetched = true
			if feedErr != nil {
				r.Log.Warn("feed fetch failed, deposits stay pending until next tick", zap.Error(feedErr))
			}
		}
		if feedErr != nil {
			continue
		}

		if tx, ok := firstMatch(txs, d.ExpectedAmount); ok {
			r.settle(ctx, d, tx)
		}
	}
}

// firstMatch scans feed order for the first record with exactly the expected
// amount. Matched records are not reserved: two concurrently pending deposits
// that drew the same expected amount (~1/300 per pair) would both settle
// against one transaction. That is a known limitation of amount-only
// matching, not a bug to fix here.
func firstMatch(txs []feed.Transaction, expected int64) (feed.Transaction, bool) {
	for _, tx := range txs {
		if tx.Amount == expected {
			return tx, true
		}
	}
	return feed.Transaction{}, false
}

// expire moves a stale deposit to its terminal state and tells the user.
func (r *Reconciler) expire(ctx context.Context, d deposit.PendingDeposit) {
	claimed, err := r.Store.Transition(ctx, d.UniqueCode, deposit.StatusExpired)
	if err != nil {
		r.Log.Error("expire transition failed", zap.String("unique_code", d.UniqueCode), zap.Error(err))
		return
	}

	r.deleteQRMessage(claimed)
	text := "❌ *Pembayaran Expired*\n\nWaktu pembayaran telah habis. Silakan klik Top Up lagi untuk mendapatkan QR baru."
	if err := r.Notify.SendMessage(claimed.UserID, text); err != nil {
		r.Log.Warn("expiry notification failed", zap.String("unique_code", claimed.UniqueCode), zap.Error(err))
	}
	r.Log.Info("deposit expired",
		zap.String("unique_code", claimed.UniqueCode),
		zap.Int64("user_id", claimed.UserID),
		zap.Int64("expected", claimed.ExpectedAmount))
}

// settle processes a matched deposit. The credit runs first: if it fails the
// deposit stays pending and the next tick retries with no money moved. Only
// after the credit lands does the terminal transition remove the deposit, so
// it cannot be matched twice.
func (r *Reconciler) settle(ctx context.Context, d deposit.PendingDeposit, tx feed.Transaction) {
	if err := r.Balance.Credit(ctx, d.UserID, d.RequestedAmount); err != nil {
		r.Log.Error("balance credit failed, deposit stays pending",
			zap.String("unique_code", d.UniqueCode), zap.Error(err))
		return
	}

	claimed, err := r.Store.Transition(ctx, d.UniqueCode, deposit.StatusMatched)
	if err != nil {
		// credit landed but the deposit vanished; needs operator attention
		r.Log.Error("match transition failed after credit",
			zap.String("unique_code", d.UniqueCode), zap.Error(err))
		return
	}

	text := fmt.Sprintf(
		"✅ *Pembayaran Terdeteksi*\n\nJumlah: Rp %s\nBrand: %s\nTanggal: %s\n\nSaldo sebesar Rp %s telah ditambahkan.",
		deposit.Rupiah(claimed.ExpectedAmount), tx.Counterparty, tx.Label, deposit.Rupiah(claimed.RequestedAmount))
	if err := r.Notify.SendMessage(claimed.UserID, text); err != nil {
		r.Log.Warn("match notification failed", zap.String("unique_code", claimed.UniqueCode), zap.Error(err))
	}
	r.deleteQRMessage(claimed)

	r.Log.Info("deposit matched",
		zap.String("unique_code", claimed.UniqueCode),
		zap.Int64("user_id", claimed.UserID),
		zap.Int64("expected", claimed.ExpectedAmount),
		zap.String("brand", tx.Counterparty))
}

func (r *Reconciler) deleteQRMessage(d deposit.PendingDeposit) {
	if d.QRMessageID == 0 {
		return
	}
	if err := r.Notify.DeleteMessage(d.UserID, d.QRMessageID); err != nil {
		r.Log.Warn("qr message delete failed", zap.String("unique_code", d.UniqueCode), zap.Error(err))
	}
}
