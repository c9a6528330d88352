package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"
	red "telegram-tts-bot/internal/infra/redis"
)

const sweepLockKey = "lock:orphan_sweep"

// Resumer restarts polling for job records that have not been touched for
// staleAfter and have no running session.
type Resumer interface {
	ResumeStale(ctx context.Context, staleAfter time.Duration) (int, error)
	// Resume uses the shorter grace a live session stays within.
	Resume(ctx context.Context) (int, error)
}

// OrphanSweeper periodically resumes job records whose session died
// without cleaning up. With several replicas sharing a store, the Redis
// lock keeps sweeps from overlapping.
type OrphanSweeper struct {
	spec       string
	staleAfter time.Duration
	uc         Resumer
	locker     red.Locker
	lockTTL    time.Duration
	timeout    time.Duration
	log        *zerolog.Logger
}

func NewOrphanSweeper(spec string, staleAfter time.Duration, uc Resumer, locker red.Locker, logger *zerolog.Logger) (*OrphanSweeper, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("sweeper schedule %q: %w", spec, err)
	}
	return &OrphanSweeper{
		spec:       spec,
		staleAfter: staleAfter,
		uc:         uc,
		locker:     locker,
		lockTTL:    2 * time.Minute,
		timeout:    time.Minute,
		log:        logging.Component(logger, "OrphanSweeper"),
	}, nil
}

// Sweep runs one pass. A lock held elsewhere skips the pass.
func (w *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	return w.locked(ctx, "sweep", func(ctx context.Context) (int, error) {
		return w.uc.ResumeStale(ctx, w.staleAfter)
	})
}

// Recover is the startup pass. It resumes records idle past the grace, then
// once more after grace has elapsed, so records a stopped process touched in
// its last moments do not wait for the next scheduled sweep.
func (w *OrphanSweeper) Recover(ctx context.Context, grace time.Duration) error {
	for pass := 0; pass < 2; pass++ {
		if pass > 0 {
			t := time.NewTimer(grace)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		if _, err := w.locked(ctx, "startup", w.uc.Resume); err != nil {
			w.log.Error().Err(err).Int("pass", pass+1).Msg("startup recovery failed")
		}
	}
	return nil
}

func (w *OrphanSweeper) locked(ctx context.Context, kind string, fn func(ctx context.Context) (int, error)) (int, error) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.lockTTL)
		if errors.Is(err, red.ErrLockHeld) {
			metrics.ObserveOrphanSweep("skipped", 0)
			w.log.Debug().Msg("sweep already running elsewhere")
			return 0, nil
		}
		if err != nil {
			metrics.ObserveOrphanSweep("error", 0)
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("release sweep lock")
			}
		}()
	}

	n, err := fn(ctx)
	if err != nil {
		metrics.ObserveOrphanSweep("error", n)
		return n, err
	}
	metrics.ObserveOrphanSweep("ok", n)
	if n > 0 {
		w.log.Info().Str("kind", kind).Int("resumed", n).Msg("orphaned jobs resumed")
	}
	return n, nil
}

func (w *OrphanSweeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.spec, func() {
		sctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		if _, err := w.Sweep(sctx); err != nil {
			w.log.Error().Err(err).Msg("orphan sweep failed")
		}
	}); err != nil {
		return err
	}

	w.log.Info().Str("schedule", w.spec).Dur("stale_after", w.staleAfter).Msg("Starting orphan sweeper")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("Stopping orphan sweeper")
	return ctx.Err()
}
