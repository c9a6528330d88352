package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"
)

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	var chatID int64
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	} else {
		chatID = query.From.ID
	}
	if chatID == 0 {
		return nil
	}
	ctx = logging.WithChatID(ctx, chatID)
	metrics.IncTelegramUpdate("callback")

	// Every query is answered exactly once, or the client keeps spinning.
	toast := ""
	defer func() {
		if _, err := r.api.Request(tgbotapi.NewCallback(query.ID, toast)); err != nil {
			logging.With(ctx, r.log).Warn().Err(err).Msg("answer callback failed")
		}
	}()

	if !r.allow(ctx, chatID, "callback") {
		metrics.IncRateLimitTriggered()
		toast = r.tr.T("rate_limited")
		return nil
	}

	res, err := r.handler.HandleCallback(ctx, chatID, query.Data)
	if err != nil {
		toast = r.tr.T("error_generic", err.Error())
		return err
	}
	toast = res.Toast

	if res.Text == "" || query.Message == nil {
		return nil
	}
	edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, res.Text)
	_, err = r.api.Send(edit)
	return err
}
