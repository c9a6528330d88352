package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/domain/ports/repository"
	"telegram-tts-bot/internal/infra/i18n"
	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ DeliveryUseCase = (*deliveryUC)(nil)

// Outcome is how a polling session ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailedItems Outcome = "failed_items"
	OutcomeFinished    Outcome = "finished" // terminal, not completed, nothing failed
	OutcomeTimeout     Outcome = "timeout"
	OutcomeError       Outcome = "error"
	OutcomeInterrupted Outcome = "interrupted"
)

// DeliveryConfig tunes the polling loop.
type DeliveryConfig struct {
	PollInterval     time.Duration
	MaxRounds        int
	CaptionLimit     int
	FailedLinesLimit int
	MaxBackoff       time.Duration
	StatusRetries    int
}

func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		PollInterval:     3 * time.Second,
		MaxRounds:        240,
		CaptionLimit:     1024,
		FailedLinesLimit: 5,
	}
}

const reportTimeout = 30 * time.Second

// SessionRunner runs at most one task per key.
type SessionRunner interface {
	// Go starts task under key, or returns domain.ErrSessionRunning.
	Go(key string, task func(ctx context.Context) error) error
	Running(key string) bool
}

// DeliveryUseCase drives submitted jobs from creation to a terminal report.
type DeliveryUseCase interface {
	// SubmitAndTrack creates the job, records it and starts its polling
	// session in the background. It returns as soon as the job id is known.
	SubmitAndTrack(ctx context.Context, chatID int64, urls []string, settings *model.UserSettings) (string, error)
	// PollAndDeliver runs one polling session in the calling goroutine.
	PollAndDeliver(ctx context.Context, chatID int64, jobID string) (Outcome, error)

	// Resume starts a session for every recorded job idle longer than
	// ResumeGrace and without a running session.
	Resume(ctx context.Context) (int, error)
	// ResumeGrace is how long a live session can leave its record untouched.
	ResumeGrace() time.Duration
	// ResumeStale starts sessions for recorded jobs untouched for at least
	// staleAfter that have no running session. Zero resumes all of them.
	ResumeStale(ctx context.Context, staleAfter time.Duration) (int, error)
	ResumeJob(ctx context.Context, jobID string) error
	Discard(ctx context.Context, jobID string) error
	Pending(ctx context.Context) ([]*model.PendingJob, error)
	Get(ctx context.Context, jobID string) (*model.PendingJob, error)
	Running(jobID string) bool
}

type deliveryUC struct {
	tts      adapter.TTSService
	bot      adapter.TelegramBotAdapter
	jobs     repository.PendingJobRepository
	ledger   repository.DeliveryLedger
	sessions SessionRunner
	tr       *i18n.Translator
	cfg      DeliveryConfig
	log      *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewDeliveryUseCase wires the engine. ledger may be nil.
func NewDeliveryUseCase(
	tts adapter.TTSService,
	bot adapter.TelegramBotAdapter,
	jobs repository.PendingJobRepository,
	ledger repository.DeliveryLedger,
	sessions SessionRunner,
	tr *i18n.Translator,
	cfg DeliveryConfig,
	logger *zerolog.Logger,
) *deliveryUC {
	def := DefaultDeliveryConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.CaptionLimit <= 0 {
		cfg.CaptionLimit = def.CaptionLimit
	}
	if cfg.FailedLinesLimit <= 0 {
		cfg.FailedLinesLimit = def.FailedLinesLimit
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	if tr == nil {
		tr = i18n.MustDefault()
	}
	return &deliveryUC{
		tts:      tts,
		bot:      bot,
		jobs:     jobs,
		ledger:   ledger,
		sessions: sessions,
		tr:       tr,
		cfg:      cfg,
		log:      logging.Component(logger, "DeliveryUC"),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func (d *deliveryUC) SubmitAndTrack(ctx context.Context, chatID int64, urls []string, settings *model.UserSettings) (string, error) {
	defer logging.TraceDuration(d.log, "DeliveryUC.SubmitAndTrack")()

	if len(urls) == 0 {
		return "", domain.ErrNoURLs
	}
	if settings == nil {
		return "", domain.ErrInvalidArgument
	}

	jobID, err := d.tts.CreateJob(ctx, adapter.CreateJobRequest{
		ChatID: chatID,
		URLs:   urls,
		TTS: adapter.TTSSelection{
			ModelID: settings.TTSModel,
			Voice:   settings.Voice,
			Speed:   settings.Speed,
		},
		LM: adapter.LMSelection{
			SummaryModelID:  settings.LMSummaryModel,
			FilenameModelID: settings.LMFilenameModel,
		},
	})
	metrics.IncJobSubmitted(err)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if err := d.jobs.Upsert(ctx, jobID, chatID, model.JobStatusQueued); err != nil {
		return "", fmt.Errorf("record job %s: %w", jobID, err)
	}
	if err := d.track(chatID, jobID); err != nil {
		return "", err
	}

	d.log.Info().Str("job_id", jobID).Int64("chat_id", chatID).Int("urls", len(urls)).Msg("job submitted")
	return jobID, nil
}

func (d *deliveryUC) track(chatID int64, jobID string) error {
	return d.sessions.Go(jobID, func(ctx context.Context) error {
		return d.runSession(ctx, chatID, jobID)
	})
}

// runSession is the per-job wrapper: any error from the loop deletes the
// record and reports a generic failure, unless the process is shutting
// down, in which case the record is kept for the next start.
func (d *deliveryUC) runSession(ctx context.Context, chatID int64, jobID string) (err error) {
	ctx = logging.WithJobID(logging.WithChatID(ctx, chatID), jobID)
	l := logging.With(ctx, d.log)

	metrics.SessionStarted()
	defer metrics.SessionFinished()

	var outcome Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				outcome, err = OutcomeError, fmt.Errorf("session panic: %v", r)
			}
		}()
		outcome, err = d.PollAndDeliver(ctx, chatID, jobID)
	}()

	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = OutcomeInterrupted
		l.Warn().Err(err).Msg("polling session interrupted; job record kept for resume")
	default:
		outcome = OutcomeError
		l.Error().Err(err).Msg("polling session failed")
		d.abort(ctx, chatID, jobID, err)
	}

	metrics.IncDeliverySession(string(outcome))
	l.Info().Str("outcome", string(outcome)).Msg("polling session ended")
	return err
}

func (d *deliveryUC) abort(ctx context.Context, chatID int64, jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err := d.removeRecord(ctx, jobID); err != nil {
		d.log.Error().Err(err).Str("job_id", jobID).Msg("could not delete job record")
	}
	if err := d.bot.SendMessage(ctx, chatID, d.tr.T("job_failed", cause.Error())); err != nil {
		d.log.Error().Err(err).Str("job_id", jobID).Msg("could not report job failure")
	}
}

func (d *deliveryUC) PollAndDeliver(ctx context.Context, chatID int64, jobID string) (Outcome, error) {
	l := logging.With(ctx, d.log)

	tracker := NewDeliveryTracker(jobID, d.ledger, d.log)
	if err := tracker.Seed(ctx); err != nil {
		l.Warn().Err(err).Msg("could not load delivered items; starting empty")
	}

	delay := d.cfg.PollInterval
	var last model.JobStatus
	for round := 0; round < d.cfg.MaxRounds; {
		snap, err := d.observe(ctx, jobID)
		if err != nil {
			return OutcomeError, err
		}
		if err := d.jobs.Upsert(ctx, jobID, chatID, snap.Status); err != nil {
			return OutcomeError, fmt.Errorf("update job record: %w", err)
		}

		sent, err := d.deliverCompleted(ctx, chatID, jobID, snap, tracker)
		if err != nil {
			return OutcomeError, err
		}

		if snap.Status.IsTerminal() {
			metrics.ObservePollRounds(round + 1)
			return d.finish(ctx, chatID, jobID, snap)
		}

		round++
		delay = d.nextDelay(delay, snap.Status != last || sent > 0)
		last = snap.Status
		l.Debug().Int("round", round).Str("status", string(snap.Status)).Dur("delay", delay).Msg("job not finished yet")
		if err := d.sleep(ctx, delay); err != nil {
			return OutcomeError, err
		}
	}

	metrics.ObservePollRounds(d.cfg.MaxRounds)
	if err := d.removeRecord(ctx, jobID); err != nil {
		return OutcomeError, fmt.Errorf("delete job record: %w", err)
	}
	d.report(ctx, chatID, d.tr.T("job_timed_out"))
	return OutcomeTimeout, nil
}

// observe queries the job status, retrying up to StatusRetries times.
// A missing job is never retried.
func (d *deliveryUC) observe(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.StatusRetries; attempt++ {
		if attempt > 0 {
			d.log.Warn().Err(lastErr).Str("job_id", jobID).Int("attempt", attempt).Msg("retrying job status")
			if err := d.sleep(ctx, d.cfg.PollInterval); err != nil {
				return nil, err
			}
		}
		snap, err := d.tts.GetJob(ctx, jobID)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrNotFound) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// deliverCompleted sends every completed item not yet in the tracker.
// Each item is sent, then acknowledged, then marked.
func (d *deliveryUC) deliverCompleted(ctx context.Context, chatID int64, jobID string, snap *model.JobSnapshot, tracker *DeliveryTracker) (int, error) {
	sent := 0
	for i := range snap.Items {
		item := &snap.Items[i]
		if !item.Deliverable() || tracker.HasDelivered(item.ItemID) {
			continue
		}
		if err := d.deliverItem(ctx, chatID, jobID, item); err != nil {
			return sent, fmt.Errorf("deliver item %s: %w", item.ItemID, err)
		}
		tracker.MarkDelivered(ctx, item.ItemID)
		sent++
	}
	return sent, nil
}

func (d *deliveryUC) deliverItem(ctx context.Context, chatID int64, jobID string, item *model.JobItem) error {
	data, contentType, err := d.tts.DownloadArtifact(ctx, jobID, item.ItemID)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	artifact := model.Artifact{
		Kind:        item.Artifact.Kind,
		Filename:    item.DeliveryFilename(),
		ContentType: contentType,
		Caption:     truncateRunes(item.Summary, d.cfg.CaptionLimit),
		Data:        data,
	}
	if err := d.bot.SendArtifact(ctx, chatID, artifact); err != nil {
		return fmt.Errorf("send artifact: %w", err)
	}
	if err := d.tts.AcknowledgeSent(ctx, jobID, item.ItemID); err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}

	metrics.ObserveArtifactDelivered(string(artifact.Kind), len(data))
	d.log.Info().Str("job_id", jobID).Str("item_id", item.ItemID).Str("kind", string(artifact.Kind)).
		Int("bytes", len(data)).Msg("artifact delivered")
	return nil
}

// finish reports the terminal outcome and removes the job record.
func (d *deliveryUC) finish(ctx context.Context, chatID int64, jobID string, snap *model.JobSnapshot) (Outcome, error) {
	var (
		outcome Outcome
		msg     string
	)
	failed := snap.FailedItems()
	switch {
	case len(failed) > 0:
		outcome, msg = OutcomeFailedItems, d.failureSummary(failed)
	case snap.Status == model.JobStatusCompleted:
		outcome, msg = OutcomeCompleted, d.tr.T("job_all_sent")
	default:
		outcome, msg = OutcomeFinished, d.tr.T("job_finished_status", string(snap.Status))
	}

	if err := d.removeRecord(ctx, jobID); err != nil {
		return OutcomeError, fmt.Errorf("delete job record: %w", err)
	}
	d.report(ctx, chatID, msg)
	return outcome, nil
}

func (d *deliveryUC) failureSummary(failed []model.JobItem) string {
	n := len(failed)
	if n > d.cfg.FailedLinesLimit {
		n = d.cfg.FailedLinesLimit
	}
	lines := make([]string, 0, n)
	for _, it := range failed[:n] {
		reason := it.Error
		if reason == "" {
			reason = d.tr.T("job_item_default_error")
		}
		lines = append(lines, d.tr.T("job_failed_line", it.URL, reason))
	}
	return d.tr.T("job_some_failed", strings.Join(lines, "\n"))
}

// report sends a terminal message. The record is already gone, so it must
// go out even when shutdown cancels ctx, and a send failure is logged rather
// than turned into a second report.
func (d *deliveryUC) report(ctx context.Context, chatID int64, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := d.bot.SendMessage(ctx, chatID, text); err != nil {
		logging.With(ctx, d.log).Error().Err(err).Msg("could not send job report")
	}
}

func (d *deliveryUC) removeRecord(ctx context.Context, jobID string) error {
	if err := d.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	if d.ledger != nil {
		if err := d.ledger.Clear(ctx, jobID); err != nil {
			d.log.Warn().Err(err).Str("job_id", jobID).Msg("could not clear delivery ledger")
		}
	}
	return nil
}

// nextDelay keeps the base interval unless backoff is enabled and the last
// round made no progress, in which case the delay doubles up to MaxBackoff.
func (d *deliveryUC) nextDelay(cur time.Duration, progressed bool) time.Duration {
	base := d.cfg.PollInterval
	if progressed || d.cfg.MaxBackoff <= base {
		return base
	}
	next := cur * 2
	if next > d.cfg.MaxBackoff {
		next = d.cfg.MaxBackoff
	}
	return next
}

func (d *deliveryUC) Resume(ctx context.Context) (int, error) {
	return d.ResumeStale(ctx, d.ResumeGrace())
}

// ResumeGrace covers the longest gap between two record updates of a live
// session: a backed-off delay or a full run of status retries. Records
// touched more recently may belong to a session in another process.
func (d *deliveryUC) ResumeGrace() time.Duration {
	grace := 10 * d.cfg.PollInterval
	if b := 2 * d.cfg.MaxBackoff; b > grace {
		grace = b
	}
	if r := 2 * time.Duration(d.cfg.StatusRetries+1) * d.cfg.PollInterval; r > grace {
		grace = r
	}
	return grace
}

func (d *deliveryUC) ResumeStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	defer logging.TraceDuration(d.log, "DeliveryUC.ResumeStale")()

	jobs, err := d.jobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list job records: %w", err)
	}
	cutoff := d.now().Add(-staleAfter)
	resumed := 0
	for _, j := range jobs {
		if staleAfter > 0 && j.UpdatedAt.After(cutoff) {
			continue
		}
		if d.sessions.Running(j.JobID) {
			continue
		}
		if err := d.track(j.ChatID, j.JobID); err != nil {
			if errors.Is(err, domain.ErrSessionRunning) {
				continue
			}
			return resumed, fmt.Errorf("resume job %s: %w", j.JobID, err)
		}
		resumed++
		d.log.Info().Str("job_id", j.JobID).Int64("chat_id", j.ChatID).Str("status", string(j.Status)).Msg("job resumed")
	}
	return resumed, nil
}

func (d *deliveryUC) ResumeJob(ctx context.Context, jobID string) error {
	j, err := d.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return d.track(j.ChatID, j.JobID)
}

// Discard removes a record that has no running session.
func (d *deliveryUC) Discard(ctx context.Context, jobID string) error {
	if d.sessions.Running(jobID) {
		return domain.ErrSessionRunning
	}
	if _, err := d.jobs.Get(ctx, jobID); err != nil {
		return err
	}
	return d.removeRecord(ctx, jobID)
}

func (d *deliveryUC) Pending(ctx context.Context) ([]*model.PendingJob, error) {
	return d.jobs.List(ctx)
}

func (d *deliveryUC) Get(ctx context.Context, jobID string) (*model.PendingJob, error) {
	return d.jobs.Get(ctx, jobID)
}

func (d *deliveryUC) Running(jobID string) bool {
	return d.sessions.Running(jobID)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
