// Package bot is the Telegram front-end: menu glue around the reconciliation
// engine plus the engine's notification contract. Everything here is thin
// presentation; the deposit lifecycle lives in internal/deposit and
// internal/reconcile.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kangnaum/qrisbot/internal/balance"
	"github.com/kangnaum/qrisbot/internal/deposit"
	"github.com/kangnaum/qrisbot/internal/feed"
)

// Bot routes Telegram updates into the top-up and status-check flows.
type Bot struct {
	api      *tgbotapi.BotAPI
	store    *deposit.Store
	provider *feed.Client
	balance  *balance.Service
	disamb   deposit.Disambiguator
	sessions *sessions
	log      *zap.Logger
}

func New(token string, store *deposit.Store, provider *feed.Client, bal *balance.Service, disamb deposit.Disambiguator, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		api:      api,
		store:    store,
		provider: provider,
		balance:  bal,
		disamb:   disamb,
		sessions: newSessions(),
		log:      log,
	}, nil
}

// Run consumes the long-polling update stream until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("bot started", zap.String("username", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

// SendMessage implements the reconciler's notification contract.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := b.api.Send(msg)
	return err
}

// DeleteMessage implements the reconciler's notification contract.
func (b *Bot) DeleteMessage(chatID int64, messageID int64) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, int(messageID)))
	return err
}

// EditMessageText replaces a previously sent message's text.
func (b *Bot) EditMessageText(chatID int64, messageID int64, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, int(messageID), text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	_, err := b.api.Send(edit)
	return err
}
