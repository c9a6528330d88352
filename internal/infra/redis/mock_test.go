//go:build !integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var errBoom = errors.New("boom")

// memRedis is a single-process stand-in for the Redis commands the
// repositories use. Expirations are recorded, not enforced.
type memRedis struct {
	mu      sync.Mutex
	strs    map[string]string
	sets    map[string]map[string]struct{}
	ttls    map[string]time.Duration
	failAll error
}

var _ RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis {
	return &memRedis{
		strs: map[string]string{},
		sets: map[string]map[string]struct{}{},
		ttls: map[string]time.Duration{},
	}
}

func (m *memRedis) Ping(ctx context.Context) error { return m.failAll }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.strs[key] = toString(value)
	m.ttls[key] = exp
	return nil
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	if _, ok := m.strs[key]; ok {
		return false, nil
	}
	m.strs[key] = toString(value)
	m.ttls[key] = exp
	return true, nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return "", m.failAll
	}
	v, ok := m.strs[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, m.failAll
	}
	var n int64
	fmt.Sscan(m.strs[key], &n)
	n++
	m.strs[key] = fmt.Sprint(n)
	return n, nil
}

func (m *memRedis) Expire(ctx context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.ttls[key] = exp
	return nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	for _, k := range keys {
		delete(m.strs, k)
		delete(m.sets, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memRedis) SAdd(ctx context.Context, key string, members ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	s, ok := m.sets[key]
	if !ok {
		s = map[string]struct{}{}
		m.sets[key] = s
	}
	for _, v := range members {
		s[toString(v)] = struct{}{}
	}
	return nil
}

func (m *memRedis) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := make([]string, 0, len(m.sets[key]))
	for v := range m.sets[key] {
		out = append(out, v)
	}
	return out, nil
}

func (m *memRedis) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	if m.strs[key] != value {
		return false, nil
	}
	delete(m.strs, key)
	return true, nil
}

func (m *memRedis) Close() error { return nil }

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
