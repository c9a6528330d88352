package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.TTSService = (*HTTPClient)(nil)

// HTTPClient talks to the TTS service REST API under /v1.
type HTTPClient struct {
	base     string
	client   *http.Client
	maxBytes int64
}

const defaultMaxArtifactBytes = 50 << 20

// NewHTTPClient builds the client. Artifacts larger than maxArtifactBytes
// are refused; zero uses the Telegram upload limit.
func NewHTTPClient(baseURL string, timeout time.Duration, maxArtifactBytes int64) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("tts base url empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("tts base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxArtifactBytes <= 0 {
		maxArtifactBytes = defaultMaxArtifactBytes
	}
	return &HTTPClient{
		base:     strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxArtifactBytes,
	}, nil
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (c *HTTPClient) ListTTSModels(ctx context.Context) ([]model.TTSModel, error) {
	var out listResponse[model.TTSModel]
	err := c.doJSON(ctx, http.MethodGet, "/v1/tts/models", nil, &out)
	metrics.IncTTSRequest("list_tts_models", err)
	if err != nil {
		return nil, fmt.Errorf("list tts models: %w", err)
	}
	return out.Data, nil
}

func (c *HTTPClient) ListLMModels(ctx context.Context) ([]model.LMModel, error) {
	var out listResponse[model.LMModel]
	err := c.doJSON(ctx, http.MethodGet, "/v1/lm/models", nil, &out)
	metrics.IncTTSRequest("list_lm_models", err)
	if err != nil {
		return nil, fmt.Errorf("list lm models: %w", err)
	}
	return out.Data, nil
}

func (c *HTTPClient) ValidateLMModel(ctx context.Context, modelID string) (adapter.ModelValidation, error) {
	var out adapter.ModelValidation
	body := map[string]string{"model_id": modelID}
	err := c.doJSON(ctx, http.MethodPost, "/v1/lm/models/validate", body, &out)
	metrics.IncTTSRequest("validate_lm_model", err)
	if err != nil {
		return adapter.ModelValidation{}, fmt.Errorf("validate lm model %s: %w", modelID, err)
	}
	return out, nil
}

type createJobBody struct {
	ChatID   string               `json:"chat_id"`
	URLs     []string             `json:"urls"`
	TTS      adapter.TTSSelection `json:"tts"`
	LM       adapter.LMSelection  `json:"lm"`
	Delivery struct {
		Prefer   string `json:"prefer"`
		Fallback string `json:"fallback"`
	} `json:"delivery"`
}

func (c *HTTPClient) CreateJob(ctx context.Context, req adapter.CreateJobRequest) (string, error) {
	body := createJobBody{
		ChatID: fmt.Sprint(req.ChatID),
		URLs:   req.URLs,
		TTS:    req.TTS,
		LM:     req.LM,
	}
	body.Delivery.Prefer = string(model.ArtifactKindVoice)
	body.Delivery.Fallback = string(model.ArtifactKindDocument)

	var out struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", body, &out)
	metrics.IncTTSRequest("create_job", err)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusBadRequest || se.code == http.StatusUnprocessableEntity) {
			return "", fmt.Errorf("%s: %w", se.Error(), domain.ErrUnknownModel)
		}
		return "", err
	}
	if out.JobID == "" {
		return "", errors.New("tts service returned an empty job id")
	}
	return out.JobID, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	var out model.JobSnapshot
	err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &out)
	metrics.IncTTSRequest("get_job", err)
	if err != nil {
		return nil, err
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return &out, nil
}

func (c *HTTPClient) DownloadArtifact(ctx context.Context, jobID, itemID string) ([]byte, string, error) {
	path := "/v1/jobs/" + url.PathEscape(jobID) + "/items/" + url.PathEscape(itemID) + "/artifact"
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	metrics.IncTTSRequest("download_artifact", err)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.ContentLength > c.maxBytes {
		return nil, "", fmt.Errorf("artifact %s/%s is %d bytes: %w", jobID, itemID, resp.ContentLength, domain.ErrArtifactTooLarge)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", fmt.Errorf("artifact %s/%s over %d bytes: %w", jobID, itemID, c.maxBytes, domain.ErrArtifactTooLarge)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, ct, nil
}

func (c *HTTPClient) AcknowledgeSent(ctx context.Context, jobID, itemID string) error {
	path := "/v1/jobs/" + url.PathEscape(jobID) + "/items/" + url.PathEscape(itemID) + "/ack-sent"
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &out)
	metrics.IncTTSRequest("ack_sent", err)
	return err
}

// Ping checks the service health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type statusError struct {
	method string
	path   string
	code   int
	detail string
}

func (e *statusError) Error() string {
	msg := fmt.Sprintf("tts %s %s: http %d", e.method, e.path, e.code)
	if e.detail != "" {
		msg += ": " + e.detail
	}
	return msg
}

func (e *statusError) Unwrap() error {
	switch {
	case e.code == http.StatusNotFound:
		return domain.ErrNotFound
	case e.code >= 500:
		return domain.ErrRemoteUnavailable
	}
	return nil
}

// do sends the request and returns the response for 2xx codes only.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tts %s %s: %w: %v", method, path, domain.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{method: method, path: path, code: resp.StatusCode, detail: errorDetail(detail)}
	}
	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tts %s %s: decode: %w", method, path, err)
	}
	return nil
}

// errorDetail pulls "detail" out of a JSON error body, or returns the
// trimmed body.
func errorDetail(b []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		j, _ := json.Marshal(payload.Detail)
		return string(j)
	}
	return strings.TrimSpace(string(b))
}
