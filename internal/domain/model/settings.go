package model

import (
	"fmt"
	"strings"
	"time"

	"telegram-tts-bot/internal/domain"
)

// SpeedPresets are the speeds offered in the chat menu.
var SpeedPresets = []float64{0.8, 1.0, 1.2, 1.4}

const MaxCustomVoiceLen = 120

// UserSettings is the per-chat generation preference snapshot.
type UserSettings struct {
	ChatID          int64     `json:"chat_id"`
	TTSModel        string    `json:"tts_model"`
	Voice           string    `json:"voice"`
	Speed           float64   `json:"speed"`
	LMSummaryModel  string    `json:"lm_summary_model"`
	LMFilenameModel string    `json:"lm_filename_model"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultSettings picks the first TTS model with its default voice and the
// first LM model for both LM roles.
func DefaultSettings(chatID int64, tts []TTSModel, lm []LMModel) (*UserSettings, error) {
	if len(tts) == 0 {
		return nil, fmt.Errorf("tts models: %w", domain.ErrNoModels)
	}
	if len(lm) == 0 {
		return nil, fmt.Errorf("lm models: %w", domain.ErrNoModels)
	}
	return &UserSettings{
		ChatID:          chatID,
		TTSModel:        tts[0].ID,
		Voice:           tts[0].DefaultVoice,
		Speed:           1.0,
		LMSummaryModel:  lm[0].ID,
		LMFilenameModel: lm[0].ID,
		UpdatedAt:       time.Now(),
	}, nil
}

// ValidateCustomVoice trims and bounds a free-text voice value.
func ValidateCustomVoice(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) < 1 || len(v) > MaxCustomVoiceLen {
		return "", domain.ErrInvalidArgument
	}
	return v, nil
}

// IsSpeedPreset reports whether s is one of the offered speeds.
func IsSpeedPreset(s float64) bool {
	for _, p := range SpeedPresets {
		if p == s {
			return true
		}
	}
	return false
}

// TTSModel describes a speech model offered by the TTS service.
type TTSModel struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Languages    []string  `json:"languages"`
	VoicePresets []string  `json:"voice_presets"`
	DefaultVoice string    `json:"default_voice"`
	SpeedPresets []float64 `json:"speed_presets"`
}

// DisplayName is "<label> [<lang,lang>]".
func (m TTSModel) DisplayName() string {
	return fmt.Sprintf("%s [%s]", m.Label, strings.Join(m.Languages, ","))
}

// LMModel is a language model id usable for summaries and filenames.
type LMModel struct {
	ID string `json:"id"`
}

// ModelCatalog is the set of models shown in a chat's menus.
type ModelCatalog struct {
	TTS []TTSModel `json:"tts"`
	LM  []string   `json:"lm"`
}

// FindTTS returns the model with the given id, or the first model.
func (c *ModelCatalog) FindTTS(id string) (TTSModel, bool) {
	for _, m := range c.TTS {
		if m.ID == id {
			return m, true
		}
	}
	if len(c.TTS) > 0 {
		return c.TTS[0], true
	}
	return TTSModel{}, false
}
