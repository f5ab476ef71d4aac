// Package balance is the crediting collaborator the reconciliation engine
// calls once per successful match.
package balance

import (
	"context"

	"go.uber.org/zap"

	"github.com/kangnaum/qrisbot/internal/database/repository"
)

// Service maintains user balances over the ledger repo.
type Service struct {
	Ledger *repository.LedgerRepo
	Log    *zap.Logger
}

func NewService(ledger *repository.LedgerRepo, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Ledger: ledger, Log: log}
}

// Credit adds amount to userID's balance. Callers invoke this exactly once
// per matched deposit, with the requested (pre-surcharge) amount.
func (s *Service) Credit(ctx context.Context, userID, amount int64) error {
	if err := s.Ledger.Credit(ctx, userID, amount, "qris-topup"); err != nil {
		return err
	}
	s.Log.Info("balance credited", zap.Int64("user_id", userID), zap.Int64("amount", amount))
	return nil
}

// Balance returns userID's current balance.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.Ledger.Balance(ctx, userID)
}
