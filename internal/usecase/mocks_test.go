// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/domain/ports/repository"
)

// -----------------------------
// TTS service
// -----------------------------

type MockTTSService struct {
	mu sync.Mutex

	ListTTSModelsFunc    func(ctx context.Context) ([]model.TTSModel, error)
	ListLMModelsFunc     func(ctx context.Context) ([]model.LMModel, error)
	ValidateLMModelFunc  func(ctx context.Context, modelID string) (adapter.ModelValidation, error)
	CreateJobFunc        func(ctx context.Context, req adapter.CreateJobRequest) (string, error)
	GetJobFunc           func(ctx context.Context, jobID string) (*model.JobSnapshot, error)
	DownloadArtifactFunc func(ctx context.Context, jobID, itemID string) ([]byte, string, error)
	AcknowledgeSentFunc  func(ctx context.Context, jobID, itemID string) error

	Created    []adapter.CreateJobRequest
	StatusHits int
	Downloads  []string
	Acks       []string
	ListCalls  int
}

func (m *MockTTSService) ListTTSModels(ctx context.Context) ([]model.TTSModel, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListTTSModelsFunc != nil {
		return m.ListTTSModelsFunc(ctx)
	}
	return []model.TTSModel{
		{ID: "kokoro", Label: "Kokoro", Languages: []string{"en"}, VoicePresets: []string{"af_heart", "am_adam"}, DefaultVoice: "af_heart"},
		{ID: "xtts", Label: "XTTS", Languages: []string{"en", "ja"}, VoicePresets: []string{"narrator"}, DefaultVoice: "narrator"},
	}, nil
}

func (m *MockTTSService) ListLMModels(ctx context.Context) ([]model.LMModel, error) {
	if m.ListLMModelsFunc != nil {
		return m.ListLMModelsFunc(ctx)
	}
	return []model.LMModel{{ID: "qwen"}, {ID: "llama"}}, nil
}

func (m *MockTTSService) ValidateLMModel(ctx context.Context, modelID string) (adapter.ModelValidation, error) {
	if m.ValidateLMModelFunc != nil {
		return m.ValidateLMModelFunc(ctx, modelID)
	}
	return adapter.ModelValidation{Valid: true}, nil
}

func (m *MockTTSService) CreateJob(ctx context.Context, req adapter.CreateJobRequest) (string, error) {
	m.mu.Lock()
	m.Created = append(m.Created, req)
	m.mu.Unlock()
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, req)
	}
	return "job-1", nil
}

func (m *MockTTSService) GetJob(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	m.mu.Lock()
	m.StatusHits++
	m.mu.Unlock()
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockTTSService) DownloadArtifact(ctx context.Context, jobID, itemID string) ([]byte, string, error) {
	m.mu.Lock()
	m.Downloads = append(m.Downloads, itemID)
	m.mu.Unlock()
	if m.DownloadArtifactFunc != nil {
		return m.DownloadArtifactFunc(ctx, jobID, itemID)
	}
	return []byte("audio-" + itemID), "audio/ogg", nil
}

func (m *MockTTSService) AcknowledgeSent(ctx context.Context, jobID, itemID string) error {
	m.mu.Lock()
	m.Acks = append(m.Acks, itemID)
	m.mu.Unlock()
	if m.AcknowledgeSentFunc != nil {
		return m.AcknowledgeSentFunc(ctx, jobID, itemID)
	}
	return nil
}

// scriptedStatus returns the snapshots in order and repeats the last one.
func scriptedStatus(snaps ...*model.JobSnapshot) func(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		s := snaps[i]
		if i < len(snaps)-1 {
			i++
		}
		cp := *s
		cp.Items = append([]model.JobItem(nil), s.Items...)
		return &cp, nil
	}
}

// -----------------------------
// Telegram
// -----------------------------

type MockTelegramBot struct {
	mu sync.Mutex

	SendMessageFunc  func(ctx context.Context, chatID int64, text string) error
	SendArtifactFunc func(ctx context.Context, chatID int64, a model.Artifact) error

	Messages  []string
	Artifacts []model.Artifact
	Buttons   [][][]adapter.InlineButton
}

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
	return nil
}

func (m *MockTelegramBot) SendKeyboard(ctx context.Context, chatID int64, text string, keys [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
	return nil
}

func (m *MockTelegramBot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
	m.Buttons = append(m.Buttons, rows)
	return nil
}

func (m *MockTelegramBot) SendArtifact(ctx context.Context, chatID int64, a model.Artifact) error {
	if m.SendArtifactFunc != nil {
		if err := m.SendArtifactFunc(ctx, chatID, a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Artifacts = append(m.Artifacts, a)
	return nil
}

func (m *MockTelegramBot) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Messages...)
}

// -----------------------------
// Repositories
// -----------------------------

type memJobRepo struct {
	mu        sync.Mutex
	store     map[string]*model.PendingJob
	history   []model.JobStatus
	upsertErr error
	deleteErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.PendingJob)}
}

func (m *memJobRepo) Upsert(ctx context.Context, jobID string, chatID int64, status model.JobStatus) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.history = append(m.history, status)
	if j, ok := m.store[jobID]; ok {
		j.Status = status
		j.UpdatedAt = now
		return nil
	}
	m.store[jobID] = &model.PendingJob{JobID: jobID, ChatID: chatID, Status: status, CreatedAt: now, UpdatedAt: now}
	return nil
}

// touch backdates a record's last update.
func (m *memJobRepo) touch(jobID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.store[jobID]; ok {
		j.UpdatedAt = at
	}
}

func (m *memJobRepo) Delete(ctx context.Context, jobID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, jobID)
	return nil
}

func (m *memJobRepo) Get(ctx context.Context, jobID string) (*model.PendingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) List(ctx context.Context) ([]*model.PendingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PendingJob, 0, len(m.store))
	for _, j := range m.store {
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memJobRepo) has(jobID string) bool {
	_, err := m.Get(context.Background(), jobID)
	return err == nil
}

type memLedger struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	markErr error
	cleared []string
	readErr error
}

func newMemLedger() *memLedger {
	return &memLedger{sets: make(map[string]map[string]struct{})}
}

func (m *memLedger) Delivered(ctx context.Context, jobID string) ([]string, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.sets[jobID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memLedger) MarkDelivered(ctx context.Context, jobID, itemID string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[jobID] == nil {
		m.sets[jobID] = make(map[string]struct{})
	}
	m.sets[jobID][itemID] = struct{}{}
	return nil
}

func (m *memLedger) Clear(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, jobID)
	m.cleared = append(m.cleared, jobID)
	return nil
}

type memSettingsRepo struct {
	mu    sync.Mutex
	store map[int64]*model.UserSettings
	saves int
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{store: make(map[int64]*model.UserSettings)}
}

func (m *memSettingsRepo) Get(ctx context.Context, chatID int64) (*model.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSettingsRepo) Save(ctx context.Context, s *model.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ChatID] = &cp
	m.saves++
	return nil
}

type memStateRepo struct {
	mu    sync.Mutex
	store map[int64]*repository.ConversationState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{store: make(map[int64]*repository.ConversationState)}
}

func (m *memStateRepo) SetState(ctx context.Context, chatID int64, st *repository.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[chatID] = st
	return nil
}

func (m *memStateRepo) GetState(ctx context.Context, chatID int64) (*repository.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[chatID], nil
}

func (m *memStateRepo) ClearState(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, chatID)
	return nil
}

type memCatalogCache struct {
	mu    sync.Mutex
	store map[int64]*model.ModelCatalog
}

func newMemCatalogCache() *memCatalogCache {
	return &memCatalogCache{store: make(map[int64]*model.ModelCatalog)}
}

func (m *memCatalogCache) Get(ctx context.Context, chatID int64) (*model.ModelCatalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *memCatalogCache) Store(ctx context.Context, chatID int64, c *model.ModelCatalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[chatID] = c
	return nil
}

// -----------------------------
// Session runner
// -----------------------------

// goRunner runs each task on its own goroutine, one per key.
type goRunner struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	running map[string]bool
	errs    map[string]error
}

func newGoRunner(ctx context.Context) *goRunner {
	return &goRunner{ctx: ctx, running: make(map[string]bool), errs: make(map[string]error)}
}

func (r *goRunner) Go(key string, task func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.running[key] {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", key, domain.ErrSessionRunning)
	}
	r.running[key] = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := task(r.ctx)
		r.mu.Lock()
		delete(r.running, key)
		r.errs[key] = err
		r.mu.Unlock()
	}()
	return nil
}

func (r *goRunner) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[key]
}

func (r *goRunner) wait() { r.wg.Wait() }

func (r *goRunner) err(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[key]
}
