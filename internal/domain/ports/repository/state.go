package repository

import (
	"context"
)

const StepAwaitingCustomVoice = "awaiting_custom_voice"

// ConversationState holds the chat's progress in a multi-step flow.
type ConversationState struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data,omitempty"`
}

// StateRepository is the port for managing a chat's conversational state.
type StateRepository interface {
	SetState(ctx context.Context, chatID int64, state *ConversationState) error
	// GetState returns (nil, nil) when the chat has no state.
	GetState(ctx context.Context, chatID int64) (*ConversationState, error)
	ClearState(ctx context.Context, chatID int64) error
}
