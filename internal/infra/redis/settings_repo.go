package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo stores UserSettings as JSON under settings:<chatID>. The TTL
// is refreshed on every save, so active chats keep their preferences.
type SettingsRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSettingsRepo(client RedisClient, ttl time.Duration) *SettingsRepo {
	return &SettingsRepo{client: client, ttl: ttl}
}

func settingsKey(chatID int64) string { return fmt.Sprintf("settings:%d", chatID) }

func (r *SettingsRepo) Get(ctx context.Context, chatID int64) (*model.UserSettings, error) {
	data, err := r.client.Get(ctx, settingsKey(chatID))
	if isNil(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s model.UserSettings
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decode settings for chat %d: %w", chatID, err)
	}
	return &s, nil
}

func (r *SettingsRepo) Save(ctx context.Context, s *model.UserSettings) error {
	if s == nil || s.ChatID == 0 {
		return domain.ErrInvalidArgument
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, settingsKey(s.ChatID), data, r.ttl)
}
