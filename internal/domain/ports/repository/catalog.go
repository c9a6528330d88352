package repository

import (
	"context"

	"telegram-tts-bot/internal/domain/model"
)

// CatalogCache keeps the model lists a chat's menus were rendered from, so
// callback indexes resolve against the same list the user saw.
type CatalogCache interface {
	// Get returns domain.ErrNotFound on a miss.
	Get(ctx context.Context, chatID int64) (*model.ModelCatalog, error)
	Store(ctx context.Context, chatID int64, catalog *model.ModelCatalog) error
}
