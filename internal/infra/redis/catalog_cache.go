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

var _ repository.CatalogCache = (*CatalogCache)(nil)

type CatalogCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewCatalogCache(client RedisClient, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

func catalogKey(chatID int64) string { return fmt.Sprintf("catalog:%d", chatID) }

func (c *CatalogCache) Get(ctx context.Context, chatID int64) (*model.ModelCatalog, error) {
	data, err := c.client.Get(ctx, catalogKey(chatID))
	if isNil(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cat model.ModelCatalog
	if err := json.Unmarshal([]byte(data), &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *CatalogCache) Store(ctx context.Context, chatID int64, cat *model.ModelCatalog) error {
	data, err := json.Marshal(cat)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, catalogKey(chatID), data, c.ttl)
}
