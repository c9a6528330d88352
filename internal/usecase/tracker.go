package usecase

import (
	"context"

	"telegram-tts-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// DeliveryTracker is the set of item ids one polling session has already
// sent and acknowledged. It is owned by a single session goroutine.
//
// When a ledger is configured the set is seeded from it and every mark is
// written through, so a resumed session skips items sent before a restart.
type DeliveryTracker struct {
	jobID     string
	delivered map[string]struct{}
	ledger    repository.DeliveryLedger
	log       *zerolog.Logger
}

func NewDeliveryTracker(jobID string, ledger repository.DeliveryLedger, log *zerolog.Logger) *DeliveryTracker {
	return &DeliveryTracker{
		jobID:     jobID,
		delivered: make(map[string]struct{}),
		ledger:    ledger,
		log:       log,
	}
}

// Seed loads previously delivered ids from the ledger.
func (t *DeliveryTracker) Seed(ctx context.Context) error {
	if t.ledger == nil {
		return nil
	}
	ids, err := t.ledger.Delivered(ctx, t.jobID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.delivered[id] = struct{}{}
	}
	return nil
}

func (t *DeliveryTracker) HasDelivered(itemID string) bool {
	_, ok := t.delivered[itemID]
	return ok
}

// MarkDelivered records itemID. A ledger failure is logged only; the
// in-memory set still keeps this session idempotent.
func (t *DeliveryTracker) MarkDelivered(ctx context.Context, itemID string) {
	t.delivered[itemID] = struct{}{}
	if t.ledger == nil {
		return
	}
	if err := t.ledger.MarkDelivered(ctx, t.jobID, itemID); err != nil {
		t.log.Warn().Err(err).Str("job_id", t.jobID).Str("item_id", itemID).Msg("could not persist delivered item")
	}
}

func (t *DeliveryTracker) Len() int { return len(t.delivered) }
