package repository

import (
	"context"

	"telegram-tts-bot/internal/domain/model"
)

// PendingJobRepository stores one crash-recovery record per job being polled.
// Implementations must allow concurrent Upsert calls for different job ids.
type PendingJobRepository interface {
	// Upsert creates the record or updates its status. CreatedAt is set only
	// on insert; UpdatedAt is refreshed on every call.
	Upsert(ctx context.Context, jobID string, chatID int64, status model.JobStatus) error
	Delete(ctx context.Context, jobID string) error
	// Get returns domain.ErrNotFound when no record exists.
	Get(ctx context.Context, jobID string) (*model.PendingJob, error)
	List(ctx context.Context) ([]*model.PendingJob, error)
}
