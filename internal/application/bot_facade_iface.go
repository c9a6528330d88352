package application

import (
	"context"

	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs.

type DeliveryUseCaseIface interface {
	SubmitAndTrack(ctx context.Context, chatID int64, urls []string, settings *model.UserSettings) (string, error)
}

type SettingsUseCaseIface interface {
	Ensure(ctx context.Context, chatID int64) (*model.UserSettings, error)
	Catalog(ctx context.Context, chatID int64) (*model.ModelCatalog, error)
	SelectTTSModel(ctx context.Context, chatID int64, index int) (model.TTSModel, error)
	SetVoice(ctx context.Context, chatID int64, voice string) error
	BeginCustomVoice(ctx context.Context, chatID int64) error
	AwaitingCustomVoice(ctx context.Context, chatID int64) (bool, error)
	SetCustomVoice(ctx context.Context, chatID int64, text string) (string, error)
	SetSpeed(ctx context.Context, chatID int64, speed float64) error
	SelectLMModel(ctx context.Context, chatID int64, role usecase.LMRole, index int) (string, adapter.ModelValidation, error)
}

// Compile-time checks
var (
	_ DeliveryUseCaseIface = (usecase.DeliveryUseCase)(nil)
	_ SettingsUseCaseIface = (usecase.SettingsUseCase)(nil)
)
