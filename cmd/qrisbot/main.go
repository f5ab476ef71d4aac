package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kangnaum/qrisbot/internal/balance"
	"github.com/kangnaum/qrisbot/internal/bot"
	"github.com/kangnaum/qrisbot/internal/config"
	"github.com/kangnaum/qrisbot/internal/database"
	"github.com/kangnaum/qrisbot/internal/database/repository"
	"github.com/kangnaum/qrisbot/internal/deposit"
	"github.com/kangnaum/qrisbot/internal/feed"
	"github.com/kangnaum/qrisbot/internal/reconcile"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if err := cfg.ValidateBot(); err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal("mkdir db dir", zap.Error(err))
	}
	if err := database.RunMigrations(cfg.Database.Path, "internal/database/migrations"); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// repositories and the dual pending store
	depositRepo := repository.NewDepositRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	store := deposit.NewStore(depositRepo, logger)
	n, err := store.LoadAll(ctx)
	if err != nil {
		logger.Fatal("load pending deposits", zap.Error(err))
	}
	logger.Info("recovered pending deposits", zap.Int("count", n))

	balanceSvc := balance.NewService(ledgerRepo, logger)
	provider := feed.NewClient(feed.Config{
		APIURL:    cfg.Provider.APIURL,
		CreateURL: cfg.Provider.CreateURL,
		Username:  cfg.Provider.Username,
		Token:     cfg.Provider.Token,
	}, logger)

	disamb := deposit.Disambiguator{
		MinAmount:    cfg.Deposit.MinAmount,
		MaxSurcharge: cfg.Deposit.MaxSurcharge,
	}
	tg, err := bot.New(cfg.Telegram.Token, store, provider, balanceSvc, disamb, logger)
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}

	rec := reconcile.New(store, provider, tg, balanceSvc, logger)
	rec.Interval = time.Duration(cfg.Reconcile.IntervalSeconds) * time.Second
	rec.Expiry = time.Duration(cfg.Reconcile.ExpirySeconds) * time.Second
	go rec.Run(ctx)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	tg.Run(ctx)
}
