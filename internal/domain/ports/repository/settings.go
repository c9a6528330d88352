package repository

import (
	"context"

	"telegram-tts-bot/internal/domain/model"
)

type SettingsRepository interface {
	// Get returns domain.ErrNotFound for chats without saved settings.
	Get(ctx context.Context, chatID int64) (*model.UserSettings, error)
	Save(ctx context.Context, s *model.UserSettings) error
}
