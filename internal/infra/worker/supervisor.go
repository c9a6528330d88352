// File: internal/infra/worker/supervisor.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/usecase"
)

var ErrStopped = errors.New("supervisor stopped")

var _ usecase.SessionRunner = (*Supervisor)(nil)

type Task func(ctx context.Context) error

// Supervisor runs one goroutine per key and refuses a second task for a
// key that is still running. All tasks share a root context that Stop
// cancels.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zerolog.Logger

	mu      sync.Mutex
	running map[string]string // key -> session id
	stopped bool
	wg      sync.WaitGroup
}

func NewSupervisor(logger *zerolog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.Component(logger, "Supervisor"),
		running: make(map[string]string),
	}
}

func (s *Supervisor) Go(key string, task func(ctx context.Context) error) error {
	if task == nil {
		return errors.New("nil task")
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if _, ok := s.running[key]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", key, domain.ErrSessionRunning)
	}
	id := ulid.Make().String()
	s.running[key] = id
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(key, id, task)
	return nil
}

func (s *Supervisor) run(key, id string, task Task) {
	ctx := logging.WithSessID(s.ctx, id)
	l := logging.With(ctx, s.log)

	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, key)
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			l.Error().Str("key", key).Interface("panic", r).Msg("task panicked")
		}
	}()

	l.Debug().Str("key", key).Msg("task started")
	if err := task(ctx); err != nil {
		l.Warn().Err(err).Str("key", key).Msg("task finished with error")
		return
	}
	l.Debug().Str("key", key).Msg("task finished")
}

func (s *Supervisor) Running(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[key]
	return ok
}

// Keys returns the running keys in sorted order.
func (s *Supervisor) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.running))
	for k := range s.running {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Stop cancels every task and waits for them until ctx expires.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	n := len(s.running)
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Int("sessions", n).Msg("all sessions stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d sessions: %w", len(s.Keys()), ctx.Err())
	}
}
