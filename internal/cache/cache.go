package cache

import (
	"context"
	"time"
)

// ReceiptCache records which photos have been delivered for an order, so a
// crashed process can skip re-sending on recovery.
type ReceiptCache interface {
	StoreDelivered(ctx context.Context, orderID, photoRef string, deliveredAt time.Time) error
	Delivered(ctx context.Context, orderID string) ([]string, error)
}
