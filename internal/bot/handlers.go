package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/kangnaum/qrisbot/internal/deposit"
	"github.com/kangnaum/qrisbot/internal/feed"
)

const (
	cbTopupMenu    = "topup_menu"
	cbTopupAuto    = "topup_auto"
	cbCheckDeposit = "check_deposit"
	cbBackMain     = "menu_back_main"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMainMenu(msg.Chat.ID)
	}
}

func (b *Bot) sendMainMenu(chatID int64) {
	bal, err := b.balance.Balance(context.Background(), chatID)
	if err != nil {
		b.log.Warn("balance lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	text := fmt.Sprintf("Saldo Aplikasi Anda saat ini: *Rp %s*\n\nSilakan pilih menu di bawah ini:", deposit.Rupiah(bal))
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	m.ReplyMarkup = mainMenuKeyboard()
	if _, err := b.api.Send(m); err != nil {
		b.log.Warn("main menu send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Top Up Saldo", cbTopupMenu),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔎 Cek Status Deposit", cbCheckDeposit),
		),
	)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Telegram omits Message when the originating message is too old or
	// inaccessible; a stale button press must not take the process down
	if cq.Message == nil {
		b.log.Debug("callback without message, ignoring", zap.String("data", cq.Data))
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Debug("callback ack failed", zap.Error(err))
	}
	chatID := cq.Message.Chat.ID

	switch cq.Data {
	case cbTopupMenu:
		bal, _ := b.balance.Balance(ctx, chatID)
		text := fmt.Sprintf("Saldo Aplikasi Anda saat ini: *Rp %s*\n\nSilakan pilih metode Top Up di bawah ini:", deposit.Rupiah(bal))
		edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🤖 Top Up Otomatis (QRIS INSTANT)", cbTopupAuto),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("« Kembali ke Menu Utama", cbBackMain),
			),
		)
		edit.ReplyMarkup = &kb
		_, _ = b.api.Send(edit)

	case cbTopupAuto:
		edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID,
			"Silakan masukkan jumlah saldo yang ingin Anda top up via QRIS INSTANT (contoh: 50000).")
		_, _ = b.api.Send(edit)
		b.sessions.set(chatID, stateEnterTopupAmount)

	case cbCheckDeposit:
		_ = b.SendMessage(chatID, "Silakan masukkan ID Deposit (Transaction ID) yang ingin Anda cek:")
		b.sessions.set(chatID, stateEnterDepositID)

	case cbBackMain:
		_, _ = b.api.Request(tgbotapi.NewDeleteMessage(chatID, cq.Message.MessageID))
		b.sendMainMenu(chatID)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	switch b.sessions.get(msg.Chat.ID) {
	case stateEnterTopupAmount:
		b.handleTopupAmount(ctx, msg)
	case stateEnterDepositID:
		b.handleDepositID(ctx, msg)
	}
}

// handleTopupAmount runs the deposit-creation flow: validate the amount,
// disambiguate it, ask the provider for a QR invoice, show it and insert the
// pending record the reconciler will sweep.
func (b *Bot) handleTopupAmount(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	requested, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil {
		_ = b.SendMessage(chatID, "Input tidak valid. Harap masukkan angka saja.")
		return
	}
	expected, err := b.disamb.Disambiguate(requested)
	if err != nil {
		_ = b.SendMessage(chatID, fmt.Sprintf("Jumlah top up minimal adalah Rp %s.", deposit.Rupiah(b.disamb.MinAmount)))
		return
	}
	b.sessions.clear(chatID)

	progress, perr := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Membuat invoice QRIS dan memproses pembayaran..."))

	code := deposit.NewUniqueCode(chatID)
	order, err := b.provider.CreateDeposit(ctx, expected, "", "", code)
	if err != nil {
		b.log.Error("deposit creation failed", zap.String("unique_code", code), zap.Error(err))
		b.failProgress(chatID, progress, perr, "❌ Gagal membuat QRIS. Silakan coba lagi nanti.")
		return
	}

	png, err := b.qrImage(ctx, order)
	if err != nil {
		b.log.Error("qr image unavailable", zap.String("unique_code", code), zap.Error(err))
		b.failProgress(chatID, progress, perr, "❌ Gagal mengirim QRIS. Silakan coba lagi nanti.")
		return
	}

	caption := fmt.Sprintf(
		"📝 *Detail Pembayaran:*\n\n"+
			"💰 Jumlah: Rp %s\n"+
			"- Nominal Top Up: Rp %s\n"+
			"- Admin Fee : Rp %s\n\n"+
			"⚠️ *Penting:* Mohon transfer sesuai nominal\n"+
			"⏱️ Waktu: 5 menit\n\n"+
			"⚠️ *Catatan:*\n"+
			"- Pembayaran akan otomatis terverifikasi\n"+
			"- Jika pembayaran berhasil, saldo akan otomatis ditambahkan",
		deposit.Rupiah(order.Nominal), deposit.Rupiah(requested), deposit.Rupiah(order.Nominal-requested))

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "qris.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	qrMsg, err := b.api.Send(photo)
	if err != nil {
		b.log.Error("qr send failed", zap.String("unique_code", code), zap.Error(err))
		b.failProgress(chatID, progress, perr, "❌ Gagal mengirim QRIS. Silakan coba lagi nanti.")
		return
	}

	// tidy up the chat; neither delete matters for correctness
	if perr == nil {
		_, _ = b.api.Request(tgbotapi.NewDeleteMessage(chatID, progress.MessageID))
	}
	_, _ = b.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID))

	d := deposit.PendingDeposit{
		UniqueCode:        code,
		UserID:            chatID,
		RequestedAmount:   requested,
		ExpectedAmount:    order.Nominal,
		CreatedAtMillis:   time.Now().UnixMilli(),
		Status:            deposit.StatusPending,
		QRMessageID:       int64(qrMsg.MessageID),
		ProviderDepositID: order.ID,
	}
	if err := b.store.Insert(ctx, d); err != nil {
		b.log.Error("pending insert failed", zap.String("unique_code", code), zap.Error(err))
		return
	}
	b.log.Info("created pending deposit",
		zap.String("unique_code", code),
		zap.Int64("user_id", chatID),
		zap.Int64("expected", order.Nominal))
}

// qrImage yields PNG bytes for the invoice: the provider-hosted image when
// one exists, otherwise a locally rendered code from the raw QR payload.
func (b *Bot) qrImage(ctx context.Context, order feed.DepositOrder) ([]byte, error) {
	if order.ImageURL != "" {
		return b.provider.FetchImage(ctx, order.ImageURL)
	}
	return qrcode.Encode(order.QRString, qrcode.Medium, 512)
}

func (b *Bot) failProgress(chatID int64, progress tgbotapi.Message, perr error, text string) {
	if perr == nil {
		_ = b.EditMessageText(chatID, int64(progress.MessageID), text)
		return
	}
	_ = b.SendMessage(chatID, text)
}

// handleDepositID answers the manual status-check flow with whatever the
// provider reports for that transaction id.
func (b *Bot) handleDepositID(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id := strings.TrimSpace(msg.Text)
	b.sessions.clear(chatID)

	wait, werr := b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔎 Mengecek status untuk ID: %s...", id)))

	raw, err := b.provider.Fetch(ctx, id)
	if err != nil {
		b.failProgress(chatID, wait, werr, "❌ ID Deposit tidak ditemukan atau terjadi kesalahan saat pengecekan.")
		return
	}

	text := formatStatus(id, raw)
	if werr == nil {
		_ = b.EditMessageText(chatID, int64(wait.MessageID), text)
	} else {
		_ = b.SendMessage(chatID, text)
	}
}

func formatStatus(id string, raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		// unknown format, show it as-is
		return "Hasil pengecekan (raw):\n" + string(raw)
	}
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := body[k]; ok && v != nil {
				return fmt.Sprintf("%v", v)
			}
		}
		return "N/A"
	}
	depositID := get("id")
	if depositID == "N/A" {
		depositID = id
	}
	return fmt.Sprintf(
		"Berikut adalah status transaksi Anda:\n\n"+
			"ID Deposit: %s\n"+
			"Reff ID Anda: %s\n"+
			"Metode: %s\n"+
			"Nominal: Rp %s\n"+
			"Dibuat Pada: %s\n"+
			"Status: %s",
		depositID, get("reff_id"), get("metode"), get("nominal", "amount"), get("created_at"), get("status"))
}
