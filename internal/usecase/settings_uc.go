package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/domain/ports/repository"
	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

// LMRole is which job step an LM model is used for.
type LMRole string

const (
	LMRoleSummary  LMRole = "summary"
	LMRoleFilename LMRole = "filename"
)

type SettingsUseCase interface {
	// Ensure returns the chat's settings, creating defaults on first use.
	Ensure(ctx context.Context, chatID int64) (*model.UserSettings, error)
	// Catalog returns the model lists the chat's menus are rendered from.
	Catalog(ctx context.Context, chatID int64) (*model.ModelCatalog, error)

	SelectTTSModel(ctx context.Context, chatID int64, index int) (model.TTSModel, error)
	SetVoice(ctx context.Context, chatID int64, voice string) error
	BeginCustomVoice(ctx context.Context, chatID int64) error
	AwaitingCustomVoice(ctx context.Context, chatID int64) (bool, error)
	// SetCustomVoice fails with domain.ErrInvalidArgument for values outside
	// 1..MaxCustomVoiceLen and keeps the chat waiting in that case.
	SetCustomVoice(ctx context.Context, chatID int64, text string) (string, error)
	SetSpeed(ctx context.Context, chatID int64, speed float64) error
	// SelectLMModel validates the chosen model with the service before
	// saving. A rejected model is reported through the returned validation.
	SelectLMModel(ctx context.Context, chatID int64, role LMRole, index int) (string, adapter.ModelValidation, error)
}

type settingsUC struct {
	repo    repository.SettingsRepository
	states  repository.StateRepository
	catalog repository.CatalogCache
	tts     adapter.TTSService
	group   singleflight.Group
	log     *zerolog.Logger
}

func NewSettingsUseCase(
	repo repository.SettingsRepository,
	states repository.StateRepository,
	catalog repository.CatalogCache,
	tts adapter.TTSService,
	logger *zerolog.Logger,
) *settingsUC {
	return &settingsUC{
		repo:    repo,
		states:  states,
		catalog: catalog,
		tts:     tts,
		log:     logging.Component(logger, "SettingsUC"),
	}
}

type modelLists struct {
	tts []model.TTSModel
	lm  []model.LMModel
}

// fetchModels loads both model lists; concurrent callers share one fetch.
func (s *settingsUC) fetchModels(ctx context.Context) (*modelLists, error) {
	v, err, shared := s.group.Do("models", func() (interface{}, error) {
		var lists modelLists
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			m, err := s.tts.ListTTSModels(gctx)
			lists.tts = m
			return err
		})
		g.Go(func() error {
			m, err := s.tts.ListLMModels(gctx)
			lists.lm = m
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return &lists, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if shared {
		metrics.IncModelListLookup("shared")
	} else {
		metrics.IncModelListLookup("fetched")
	}
	return v.(*modelLists), nil
}

func (s *settingsUC) Ensure(ctx context.Context, chatID int64) (*model.UserSettings, error) {
	existing, err := s.repo.Get(ctx, chatID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	lists, err := s.fetchModels(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := model.DefaultSettings(chatID, lists.tts, lists.lm)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, err
	}
	logging.With(logging.WithChatID(ctx, chatID), s.log).Info().
		Str("tts_model", settings.TTSModel).Str("lm_model", settings.LMSummaryModel).Msg("default settings created")
	return settings, nil
}

func (s *settingsUC) Catalog(ctx context.Context, chatID int64) (*model.ModelCatalog, error) {
	c, err := s.catalog.Get(ctx, chatID)
	if err == nil {
		metrics.IncModelListLookup("cache")
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("catalog cache read failed")
	}

	lists, err := s.fetchModels(ctx)
	if err != nil {
		return nil, err
	}
	c = &model.ModelCatalog{TTS: lists.tts, LM: make([]string, 0, len(lists.lm))}
	for _, m := range lists.lm {
		c.LM = append(c.LM, m.ID)
	}
	if err := s.catalog.Store(ctx, chatID, c); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("catalog cache write failed")
	}
	return c, nil
}

// update loads settings, applies fn and saves the result.
func (s *settingsUC) update(ctx context.Context, chatID int64, fn func(*model.UserSettings)) error {
	settings, err := s.Ensure(ctx, chatID)
	if err != nil {
		return err
	}
	fn(settings)
	settings.UpdatedAt = time.Now()
	return s.repo.Save(ctx, settings)
}

func (s *settingsUC) SelectTTSModel(ctx context.Context, chatID int64, index int) (model.TTSModel, error) {
	c, err := s.Catalog(ctx, chatID)
	if err != nil {
		return model.TTSModel{}, err
	}
	if index < 0 || index >= len(c.TTS) {
		return model.TTSModel{}, domain.ErrNotFound
	}
	chosen := c.TTS[index]
	err = s.update(ctx, chatID, func(u *model.UserSettings) {
		u.TTSModel = chosen.ID
		u.Voice = chosen.DefaultVoice
	})
	return chosen, err
}

func (s *settingsUC) SetVoice(ctx context.Context, chatID int64, voice string) error {
	if err := s.update(ctx, chatID, func(u *model.UserSettings) { u.Voice = voice }); err != nil {
		return err
	}
	return s.states.ClearState(ctx, chatID)
}

func (s *settingsUC) BeginCustomVoice(ctx context.Context, chatID int64) error {
	return s.states.SetState(ctx, chatID, &repository.ConversationState{Step: repository.StepAwaitingCustomVoice})
}

func (s *settingsUC) AwaitingCustomVoice(ctx context.Context, chatID int64) (bool, error) {
	st, err := s.states.GetState(ctx, chatID)
	if err != nil {
		return false, err
	}
	return st != nil && st.Step == repository.StepAwaitingCustomVoice, nil
}

func (s *settingsUC) SetCustomVoice(ctx context.Context, chatID int64, text string) (string, error) {
	voice, err := model.ValidateCustomVoice(text)
	if err != nil {
		return "", err
	}
	if err := s.SetVoice(ctx, chatID, voice); err != nil {
		return "", err
	}
	return voice, nil
}

func (s *settingsUC) SetSpeed(ctx context.Context, chatID int64, speed float64) error {
	if !model.IsSpeedPreset(speed) {
		return domain.ErrInvalidArgument
	}
	return s.update(ctx, chatID, func(u *model.UserSettings) { u.Speed = speed })
}

func (s *settingsUC) SelectLMModel(ctx context.Context, chatID int64, role LMRole, index int) (string, adapter.ModelValidation, error) {
	c, err := s.Catalog(ctx, chatID)
	if err != nil {
		return "", adapter.ModelValidation{}, err
	}
	if index < 0 || index >= len(c.LM) {
		return "", adapter.ModelValidation{}, domain.ErrNotFound
	}
	modelID := c.LM[index]

	v, err := s.tts.ValidateLMModel(ctx, modelID)
	if err != nil {
		return modelID, v, err
	}
	if !v.Valid {
		return modelID, v, nil
	}

	err = s.update(ctx, chatID, func(u *model.UserSettings) {
		switch role {
		case LMRoleFilename:
			u.LMFilenameModel = modelID
		default:
			u.LMSummaryModel = modelID
		}
	})
	return modelID, v, err
}
