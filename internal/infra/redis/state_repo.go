package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-tts-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo manages a chat's conversational state in Redis.
type StateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewStateRepo(client RedisClient) *StateRepo {
	return &StateRepo{
		client: client,
		ttl:    15 * time.Minute, // a pending custom voice prompt expires quietly
	}
}

func (s *StateRepo) stateKey(chatID int64) string {
	return fmt.Sprintf("conv_state:%d", chatID)
}

func (s *StateRepo) SetState(ctx context.Context, chatID int64, state *repository.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(chatID), data, s.ttl)
}

func (s *StateRepo) GetState(ctx context.Context, chatID int64) (*repository.ConversationState, error) {
	data, err := s.client.Get(ctx, s.stateKey(chatID))
	if isNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state repository.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.stateKey(chatID))
}
