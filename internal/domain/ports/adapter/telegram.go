// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"

	"telegram-tts-bot/internal/domain/model"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// TelegramBotAdapter is the delivery sink: plain text, keyboards and
// voice/document artifacts.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendKeyboard sends text with a persistent reply keyboard, one label per key.
	SendKeyboard(ctx context.Context, chatID int64, text string, keys [][]string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	SendArtifact(ctx context.Context, chatID int64, artifact model.Artifact) error
}
