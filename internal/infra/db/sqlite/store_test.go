package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_UpsertKeepsCreatedAt(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 10, 0, 0, 123, time.UTC)
	s.now = func() time.Time { return t0 }
	require.NoError(t, s.Upsert(ctx, "job-1", -1001, model.JobStatusQueued))

	t1 := t0.Add(time.Minute)
	s.now = func() time.Time { return t1 }
	require.NoError(t, s.Upsert(ctx, "job-1", -1001, model.JobStatusRunning))

	p, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001), p.ChatID)
	assert.Equal(t, model.JobStatusRunning, p.Status)
	assert.True(t, p.CreatedAt.Equal(t0))
	assert.True(t, p.UpdatedAt.Equal(t1))
}

func TestStore_GetDeleteList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Upsert(ctx, "a", 1, model.JobStatusQueued))
	require.NoError(t, s.Upsert(ctx, "b", 2, model.JobStatusRunning))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].JobID)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, fmt.Sprintf("job-%d", i), int64(i), model.JobStatusQueued))
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 20)
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot.db")
	ctx := context.Background()

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "job-1", 5, model.JobStatusRunning))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ChatID)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_pending_jobs.sql"))
	assert.Equal(t, 12, migrationVersion("12_x.sql"))
	assert.Equal(t, 0, migrationVersion("readme.sql"))
}
