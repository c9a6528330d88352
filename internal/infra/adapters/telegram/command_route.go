package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    r.handleStartCommand,
		"help":     r.handleStartCommand,
		"settings": r.handleSettingsCommand,
	}
}

func (r *RealTelegramBotAdapter) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.Chat == nil || message.Text == "" {
		return nil
	}
	chatID := message.Chat.ID
	ctx = logging.WithChatID(ctx, chatID)
	metrics.IncTelegramUpdate("message")

	if !r.allow(ctx, chatID, "message") {
		metrics.IncRateLimitTriggered()
		return r.SendMessage(ctx, chatID, r.tr.T("rate_limited"))
	}

	if message.IsCommand() {
		if fn, ok := r.commandRoutes()[message.Command()]; ok {
			return fn(ctx, message)
		}
		return r.handleStartCommand(ctx, message)
	}
	return r.handler.HandleText(ctx, chatID, message.Text)
}

// handleStartCommand shows the usage hint with the main menu keyboard.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendKeyboard(ctx, message.Chat.ID, r.tr.T("help"), r.handler.MainMenu())
}

func (r *RealTelegramBotAdapter) handleSettingsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.handler.HandleText(ctx, message.Chat.ID, r.tr.T("menu_show_settings"))
}
