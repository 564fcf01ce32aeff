package repo

import (
	"context"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// OrderRepository persists orders for audit and recovery. The engine's
// in-memory state stays authoritative while an order is live; the repository
// is never consulted mid-transaction.
type OrderRepository interface {
	UpsertOrder(ctx context.Context, order model.Order) error
	GetOrder(ctx context.Context, orderID string) (model.Order, error)
	ListByUser(ctx context.Context, workerID int64, limit, offset int) ([]model.Order, error)
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.Order, error)
}
