package repository

import "context"

// DeliveryLedger remembers which items of a job were already sent, so a
// resumed session does not send them again.
type DeliveryLedger interface {
	Delivered(ctx context.Context, jobID string) ([]string, error)
	MarkDelivered(ctx context.Context, jobID, itemID string) error
	Clear(ctx context.Context, jobID string) error
}
