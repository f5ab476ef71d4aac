package deposit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kangnaum/qrisbot/internal/database/repository"
)

// Store is the authoritative record of deposits awaiting settlement. The
// in-memory map serves the hot path; every mutation is mirrored to sqlite so
// pending deposits survive restarts. Durable writes are best-effort: a failed
// write is logged and the in-memory state still reflects the attempted
// mutation.
type Store struct {
	mu  sync.Mutex
	m   map[string]PendingDeposit
	db  *repository.DepositRepo
	log *zap.Logger
}

func NewStore(db *repository.DepositRepo, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		m:   make(map[string]PendingDeposit),
		db:  db,
		log: log,
	}
}

// Insert adds a new pending record. Fails with ErrDuplicateCode if the code
// is already present.
func (s *Store) Insert(ctx context.Context, d PendingDeposit) error {
	s.mu.Lock()
	if _, ok := s.m[d.UniqueCode]; ok {
		s.mu.Unlock()
		return ErrDuplicateCode
	}
	d.Status = StatusPending
	s.m[d.UniqueCode] = d
	s.mu.Unlock()

	if err := s.db.Insert(ctx, toRow(d)); err != nil {
		s.log.Error("durable insert failed, continuing on memory",
			zap.String("unique_code", d.UniqueCode), zap.Error(err))
	}
	return nil
}

// AllPending returns a snapshot of every deposit still in pending status.
// The returned slice is a copy: a sweep iterating it never observes inserts
// or removals made while the sweep runs.
func (s *Store) AllPending() []PendingDeposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingDeposit, 0, len(s.m))
	for _, d := range s.m {
		if d.Status == StatusPending {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the deposit under code, if present.
func (s *Store) Get(code string) (PendingDeposit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.m[code]
	return d, ok
}

// Len reports the number of tracked deposits.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Transition moves a record to a terminal status and removes it from both
// stores. No terminal-state history is retained. Fails with ErrNotFound if
// the code is absent and ErrTerminalStatus if the record already left
// pending; a durable delete failure is logged, not returned.
func (s *Store) Transition(ctx context.Context, code string, to Status) (PendingDeposit, error) {
	if !to.Terminal() {
		return PendingDeposit{}, ErrTerminalStatus
	}

	s.mu.Lock()
	d, ok := s.m[code]
	if !ok {
		s.mu.Unlock()
		return PendingDeposit{}, ErrNotFound
	}
	if d.Status.Terminal() {
		s.mu.Unlock()
		return PendingDeposit{}, ErrTerminalStatus
	}
	d.Status = to
	delete(s.m, code)
	s.mu.Unlock()

	if err := s.db.Delete(ctx, code); err != nil {
		s.log.Error("durable delete failed, continuing on memory",
			zap.String("unique_code", code), zap.Error(err))
	}
	return d, nil
}

// LoadAll rebuilds the in-memory map from sqlite. Called once at process
// start to recover pending deposits across restarts.
func (s *Store) LoadAll(ctx context.Context) (int, error) {
	rows, err := s.db.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range rows {
		if Status(r.Status) != StatusPending {
			continue
		}
		s.m[r.UniqueCode] = fromRow(r)
		n++
	}
	return n, nil
}

func toRow(d PendingDeposit) repository.DepositRow {
	row := repository.DepositRow{
		UniqueCode:     d.UniqueCode,
		UserID:         d.UserID,
		Amount:         d.ExpectedAmount,
		OriginalAmount: d.RequestedAmount,
		Timestamp:      d.CreatedAtMillis,
		Status:         string(d.Status),
	}
	if d.QRMessageID != 0 {
		id := d.QRMessageID
		row.QRMessageID = &id
	}
	if d.ProviderDepositID != "" {
		pid := d.ProviderDepositID
		row.DepositID = &pid
	}
	return row
}

func fromRow(r repository.DepositRow) PendingDeposit {
	d := PendingDeposit{
		UniqueCode:      r.UniqueCode,
		UserID:          r.UserID,
		RequestedAmount: r.OriginalAmount,
		ExpectedAmount:  r.Amount,
		CreatedAtMillis: r.Timestamp,
		Status:          Status(r.Status),
	}
	if r.QRMessageID != nil {
		d.QRMessageID = *r.QRMessageID
	}
	if r.DepositID != nil {
		d.ProviderDepositID = *r.DepositID
	}
	return d
}
