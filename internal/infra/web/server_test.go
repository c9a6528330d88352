//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/infra/logging"
)

type MockJobsAPI struct {
	records map[string]*model.PendingJob
	running map[string]bool
	resumed []string
	listErr error
}

func newMockJobsAPI() *MockJobsAPI {
	return &MockJobsAPI{records: map[string]*model.PendingJob{}, running: map[string]bool{}}
}

func (m *MockJobsAPI) Pending(ctx context.Context) ([]*model.PendingJob, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.PendingJob
	for _, id := range []string{"job-a", "job-b"} {
		if p, ok := m.records[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockJobsAPI) Get(ctx context.Context, jobID string) (*model.PendingJob, error) {
	p, ok := m.records[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockJobsAPI) ResumeJob(ctx context.Context, jobID string) error {
	if _, ok := m.records[jobID]; !ok {
		return domain.ErrNotFound
	}
	if m.running[jobID] {
		return fmt.Errorf("%s: %w", jobID, domain.ErrSessionRunning)
	}
	m.resumed = append(m.resumed, jobID)
	return nil
}

func (m *MockJobsAPI) Discard(ctx context.Context, jobID string) error {
	if m.running[jobID] {
		return domain.ErrSessionRunning
	}
	if _, ok := m.records[jobID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, jobID)
	return nil
}

func (m *MockJobsAPI) Running(jobID string) bool { return m.running[jobID] }

func newTestServer(t *testing.T, jobs *MockJobsAPI, checks map[string]Pinger) (*httptest.Server, string) {
	t.Helper()
	auth := NewAuthManager("test-secret", time.Hour)
	token, err := auth.Mint("tester")
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(jobs, auth, checks, logging.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv, token
}

func do(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("should report ok without auth", func(t *testing.T) {
		srv, _ := newTestServer(t, newMockJobsAPI(), map[string]Pinger{
			"redis": PingFunc(func(ctx context.Context) error { return nil }),
		})

		resp := do(t, http.MethodGet, srv.URL+"/health", "")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(traceHeader))
		var body healthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "ok", body.Checks["redis"])
	})

	t.Run("should degrade when a dependency fails", func(t *testing.T) {
		srv, _ := newTestServer(t, newMockJobsAPI(), map[string]Pinger{
			"tts": PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
		})

		resp := do(t, http.MethodGet, srv.URL+"/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var body healthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "connection refused", body.Checks["tts"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, newMockJobsAPI(), nil)

	resp := do(t, http.MethodGet, srv.URL+"/metrics", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJobsAPI(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seed := func() *MockJobsAPI {
		m := newMockJobsAPI()
		m.records["job-a"] = &model.PendingJob{JobID: "job-a", ChatID: 1, Status: model.JobStatusRunning, CreatedAt: ts, UpdatedAt: ts}
		m.records["job-b"] = &model.PendingJob{JobID: "job-b", ChatID: 2, Status: model.JobStatusQueued, CreatedAt: ts, UpdatedAt: ts}
		m.running["job-a"] = true
		return m
	}

	t.Run("should require a token", func(t *testing.T) {
		srv, _ := newTestServer(t, seed(), nil)

		assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/v1/jobs", "").StatusCode)
		assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/v1/jobs", "garbage").StatusCode)
	})

	t.Run("should list records with their running flag", func(t *testing.T) {
		srv, token := newTestServer(t, seed(), nil)

		resp := do(t, http.MethodGet, srv.URL+"/api/v1/jobs", token)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Jobs []jobView `json:"jobs"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Jobs, 2)
		assert.True(t, body.Jobs[0].Running)
		assert.False(t, body.Jobs[1].Running)
		assert.Equal(t, int64(2), body.Jobs[1].ChatID)
	})

	t.Run("should return one record or 404", func(t *testing.T) {
		srv, token := newTestServer(t, seed(), nil)

		assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/v1/jobs/job-b", token).StatusCode)
		assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/v1/jobs/nope", token).StatusCode)
	})

	t.Run("should resume idle records and refuse running ones", func(t *testing.T) {
		jobs := seed()
		srv, token := newTestServer(t, jobs, nil)

		assert.Equal(t, http.StatusAccepted, do(t, http.MethodPost, srv.URL+"/api/v1/jobs/job-b/resume", token).StatusCode)
		assert.Equal(t, http.StatusConflict, do(t, http.MethodPost, srv.URL+"/api/v1/jobs/job-a/resume", token).StatusCode)
		assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, srv.URL+"/api/v1/jobs/nope/resume", token).StatusCode)
		assert.Equal(t, []string{"job-b"}, jobs.resumed)
	})

	t.Run("should discard idle records", func(t *testing.T) {
		jobs := seed()
		srv, token := newTestServer(t, jobs, nil)

		assert.Equal(t, http.StatusConflict, do(t, http.MethodDelete, srv.URL+"/api/v1/jobs/job-a", token).StatusCode)
		assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/v1/jobs/job-b", token).StatusCode)
		assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, srv.URL+"/api/v1/jobs/job-b", token).StatusCode)
	})

	t.Run("should hide internal errors", func(t *testing.T) {
		jobs := seed()
		jobs.listErr = errors.New("disk on fire")
		srv, token := newTestServer(t, jobs, nil)

		resp := do(t, http.MethodGet, srv.URL+"/api/v1/jobs", token)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "internal error", body["error"])
	})
}
