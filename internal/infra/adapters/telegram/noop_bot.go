package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/infra/logging"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outgoing messages instead of sending them. It backs
// dev runs without a bot token.
type NoopBotAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logging.Component(logger, "NoopBot"), delay: 100 * time.Millisecond}
}

func (b *NoopBotAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("message")
	return nil
}

func (b *NoopBotAdapter) SendKeyboard(ctx context.Context, chatID int64, text string, keys [][]string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Interface("keys", keys).Msg("keyboard")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Interface("buttons", rows).Msg("buttons")
	return nil
}

func (b *NoopBotAdapter) SendArtifact(ctx context.Context, chatID int64, a model.Artifact) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).
		Str("kind", string(a.Kind)).
		Str("filename", a.Filename).
		Int("bytes", len(a.Data)).
		Msg("artifact")
	return nil
}
