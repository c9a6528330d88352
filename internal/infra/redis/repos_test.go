//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/repository"
)

func TestSettingsRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("should return ErrNotFound for an unknown chat", func(t *testing.T) {
		repo := NewSettingsRepo(newMemRedis(), time.Hour)

		_, err := repo.Get(ctx, 42)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("should save and load settings with ttl", func(t *testing.T) {
		mem := newMemRedis()
		repo := NewSettingsRepo(mem, time.Hour)
		in := &model.UserSettings{ChatID: 42, TTSModel: "kokoro", Voice: "af_heart", Speed: 1.2}

		require.NoError(t, repo.Save(ctx, in))
		got, err := repo.Get(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, "kokoro", got.TTSModel)
		assert.Equal(t, 1.2, got.Speed)
		assert.False(t, got.UpdatedAt.IsZero())
		assert.Equal(t, time.Hour, mem.ttls["settings:42"])
	})

	t.Run("should reject settings without a chat", func(t *testing.T) {
		repo := NewSettingsRepo(newMemRedis(), time.Hour)
		assert.ErrorIs(t, repo.Save(ctx, &model.UserSettings{}), domain.ErrInvalidArgument)
	})

	t.Run("should surface backend errors", func(t *testing.T) {
		mem := newMemRedis()
		mem.failAll = errBoom
		_, err := NewSettingsRepo(mem, time.Hour).Get(ctx, 1)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestStateRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepo(newMemRedis())

	st, err := repo.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, repo.SetState(ctx, 5, &repository.ConversationState{Step: repository.StepAwaitingCustomVoice}))
	st, err = repo.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, repository.StepAwaitingCustomVoice, st.Step)

	require.NoError(t, repo.ClearState(ctx, 5))
	st, err = repo.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestCatalogCache(t *testing.T) {
	ctx := context.Background()
	cache := NewCatalogCache(newMemRedis(), time.Minute)

	_, err := cache.Get(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in := &model.ModelCatalog{TTS: []model.TTSModel{{ID: "kokoro", Label: "Kokoro"}}, LM: []string{"qwen"}}
	require.NoError(t, cache.Store(ctx, 3, in))
	got, err := cache.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestDeliveryLedger(t *testing.T) {
	ctx := context.Background()
	mem := newMemRedis()
	ledger := NewDeliveryLedger(mem, 24*time.Hour)

	ids, err := ledger.Delivered(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, ledger.MarkDelivered(ctx, "job-1", "a"))
	require.NoError(t, ledger.MarkDelivered(ctx, "job-1", "b"))
	require.NoError(t, ledger.MarkDelivered(ctx, "job-1", "a"))

	ids, err = ledger.Delivered(ctx, "job-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.Equal(t, 24*time.Hour, mem.ttls["delivered:job-1"])

	require.NoError(t, ledger.Clear(ctx, "job-1"))
	ids, _ = ledger.Delivered(ctx, "job-1")
	assert.Empty(t, ids)
}

func TestChatLimiter(t *testing.T) {
	ctx := context.Background()
	mem := newMemRedis()
	l := NewChatLimiter(mem, 3, time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, 9, "message")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i)
	}
	ok, err := l.Allow(ctx, 9, "message")
	require.NoError(t, err)
	assert.False(t, ok, "fourth update in the window")

	ok, err = l.Allow(ctx, 9, "callback")
	require.NoError(t, err)
	assert.True(t, ok, "kinds are limited separately")

	key := chatWindowKey(9, "message", now.UnixNano()/int64(time.Minute))
	assert.Equal(t, 2*time.Minute, mem.ttls[key])

	now = now.Add(time.Minute)
	ok, err = l.Allow(ctx, 9, "message")
	require.NoError(t, err)
	assert.True(t, ok, "next window starts fresh")
}

func TestChatLimiter_Disabled(t *testing.T) {
	mem := newMemRedis()
	mem.failAll = errors.New("down")
	l := NewChatLimiter(mem, 0, time.Minute)

	ok, err := l.Allow(context.Background(), 1, "message")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChatLimiter_BackendDown(t *testing.T) {
	mem := newMemRedis()
	mem.failAll = errors.New("down")
	l := NewChatLimiter(mem, 3, time.Minute)

	_, err := l.Allow(context.Background(), 1, "message")

	require.Error(t, err)
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	mem := newMemRedis()
	l := NewLocker(mem)
	l.wait = time.Millisecond

	token, err := l.TryLock(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "lock:sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, l.Unlock(ctx, "lock:sweep", "someone-else"))
	_, err = l.TryLock(ctx, "lock:sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld, "a foreign token must not release the lock")

	require.NoError(t, l.Unlock(ctx, "lock:sweep", token))
	_, err = l.TryLock(ctx, "lock:sweep", time.Minute)
	assert.NoError(t, err)
}
