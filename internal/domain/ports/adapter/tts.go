package adapter

import (
	"context"

	"telegram-tts-bot/internal/domain/model"
)

// TTSSelection is the speech part of a job request.
type TTSSelection struct {
	ModelID string  `json:"model_id"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed"`
}

// LMSelection picks the models used for summaries and filenames.
type LMSelection struct {
	SummaryModelID  string `json:"summary_model_id"`
	FilenameModelID string `json:"filename_model_id"`
}

// CreateJobRequest is everything the TTS service needs to start a job.
type CreateJobRequest struct {
	ChatID int64
	URLs   []string
	TTS    TTSSelection
	LM     LMSelection
}

// ModelValidation is the service's verdict on an LM model id.
type ModelValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// TTSService is the port to the remote TTS service. The service owns the
// job state machine; callers only observe it.
type TTSService interface {
	ListTTSModels(ctx context.Context) ([]model.TTSModel, error)
	ListLMModels(ctx context.Context) ([]model.LMModel, error)
	ValidateLMModel(ctx context.Context, modelID string) (ModelValidation, error)

	// CreateJob fails with domain.ErrUnknownModel if the selections reference
	// a model the service does not know.
	CreateJob(ctx context.Context, req CreateJobRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*model.JobSnapshot, error)
	DownloadArtifact(ctx context.Context, jobID, itemID string) ([]byte, string, error)
	AcknowledgeSent(ctx context.Context, jobID, itemID string) error
}
