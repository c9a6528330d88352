package redis

import (
	"context"
	"time"

	"telegram-tts-bot/internal/domain/ports/repository"
)

var _ repository.DeliveryLedger = (*DeliveryLedger)(nil)

// DeliveryLedger keeps delivered item ids in the set delivered:<jobID>.
// The set expires after ttl so abandoned jobs do not accumulate.
type DeliveryLedger struct {
	client RedisClient
	ttl    time.Duration
}

func NewDeliveryLedger(client RedisClient, ttl time.Duration) *DeliveryLedger {
	return &DeliveryLedger{client: client, ttl: ttl}
}

func ledgerKey(jobID string) string { return "delivered:" + jobID }

func (l *DeliveryLedger) Delivered(ctx context.Context, jobID string) ([]string, error) {
	ids, err := l.client.SMembers(ctx, ledgerKey(jobID))
	if isNil(err) {
		return nil, nil
	}
	return ids, err
}

func (l *DeliveryLedger) MarkDelivered(ctx context.Context, jobID, itemID string) error {
	key := ledgerKey(jobID)
	if err := l.client.SAdd(ctx, key, itemID); err != nil {
		return err
	}
	if l.ttl > 0 {
		return l.client.Expire(ctx, key, l.ttl)
	}
	return nil
}

func (l *DeliveryLedger) Clear(ctx context.Context, jobID string) error {
	return l.client.Del(ctx, ledgerKey(jobID))
}
