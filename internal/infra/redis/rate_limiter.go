package redis

import (
	"context"
	"fmt"
	"time"
)

// ChatLimiter caps Telegram updates per chat and update kind. Windows are
// aligned to the clock and each has its own key, so a lost EXPIRE only
// leaks a key instead of pinning the chat at its limit.
type ChatLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewChatLimiter allows limit updates per window. A limit of zero or less
// disables limiting.
func NewChatLimiter(client RedisClient, limit int, window time.Duration) *ChatLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &ChatLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *ChatLimiter) Allow(ctx context.Context, chatID int64, kind string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	key := chatWindowKey(chatID, kind, l.now().UnixNano()/int64(l.window))
	count, err := l.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, 2*l.window); err != nil {
			return false, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count <= int64(l.limit), nil
}

func chatWindowKey(chatID int64, kind string, window int64) string {
	return fmt.Sprintf("rate_limit:%d:%s:%d", chatID, kind, window)
}
