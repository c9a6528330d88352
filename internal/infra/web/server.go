package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"
)

// JobsAPI is the recovery surface of the delivery engine.
type JobsAPI interface {
	Pending(ctx context.Context) ([]*model.PendingJob, error)
	Get(ctx context.Context, jobID string) (*model.PendingJob, error)
	ResumeJob(ctx context.Context, jobID string) error
	Discard(ctx context.Context, jobID string) error
	Running(jobID string) bool
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Server struct {
	jobs   JobsAPI
	auth   *AuthManager
	checks map[string]Pinger
	log    *zerolog.Logger
}

func NewServer(jobs JobsAPI, auth *AuthManager, checks map[string]Pinger, logger *zerolog.Logger) *Server {
	return &Server{
		jobs:   jobs,
		auth:   auth,
		checks: checks,
		log:    logging.Component(logger, "AdminAPI"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(s.auth.Require, Timeout(15*time.Second))
		r.Get("/", s.listJobs)
		r.Get("/{jobID}", s.getJob)
		r.Post("/{jobID}/resume", s.resumeJob)
		r.Delete("/{jobID}", s.discardJob)
	})
	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("admin api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

type jobView struct {
	JobID     string          `json:"job_id"`
	ChatID    int64           `json:"chat_id"`
	Status    model.JobStatus `json:"status"`
	Running   bool            `json:"running"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Server) view(p *model.PendingJob) jobView {
	return jobView{
		JobID:     p.JobID,
		ChatID:    p.ChatID,
		Status:    p.Status,
		Running:   s.jobs.Running(p.JobID),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobs.Pending(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]jobView, 0, len(list))
	for _, p := range list {
		out = append(out, s.view(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	p, err := s.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(p))
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.jobs.ResumeJob(r.Context(), jobID); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("job_id", jobID).Msg("job resumed by admin")
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "resumed"})
}

func (s *Server) discardJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.jobs.Discard(r.Context(), jobID); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("job_id", jobID).Msg("job record discarded by admin")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrSessionRunning):
		writeError(w, http.StatusConflict, "a polling session is running for this job")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
