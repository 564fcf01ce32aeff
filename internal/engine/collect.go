package engine

import (
	"context"
	"log/slog"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// CollectWorkerPhotos merges the reply's photos into the order under the
// order's exclusive lock. Replies to the same order are fully serialized;
// replies to different orders never block each other. When the reply carries
// no photos yet the loop re-checks the follow-up buffer (see AttachPhotos)
// up to MaxRetries times with RetryDelay between attempts, all bounded by
// the collector Timeout. A panic while
// collecting is converted into a failure result so one bad reply cannot take
// the coordinator down for other orders.
func (m *Manager) CollectWorkerPhotos(ctx context.Context, orderID string, reply model.WorkerReply) (success bool, added []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while collecting photos", "order_id", orderID, "panic", r)
			success, added = false, nil
		}
	}()

	m.mu.Lock()
	order, exists := m.orders[orderID]
	hadPhotos := exists && len(order.Photos) > 0
	m.mu.Unlock()
	if !exists {
		slog.Error("collect failed: order not found", "order_id", orderID)
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Collector.Timeout)
	defer cancel()

	lock := m.lockFor(orderID)
	if err := lock.acquire(ctx); err != nil {
		slog.Error("collect failed: lock wait exceeded", "order_id", orderID, "err", err)
		return hadPhotos, nil
	}
	defer lock.release()

	// Marking the message processed inside the lock makes the accept
	// decision and dedup atomic with respect to concurrent replies.
	m.markProcessed(reply.MessageID)

	incoming := append(append([]string(nil), reply.Photos...), m.takePending(reply.MessageID)...)
	for attempt := 0; len(incoming) == 0 && attempt < m.cfg.Collector.MaxRetries-1; attempt++ {
		slog.Debug("no photos yet, waiting for follow-up",
			"order_id", orderID,
			"attempt", attempt+1,
			"max_retries", m.cfg.Collector.MaxRetries)
		if err := m.clock.Sleep(ctx, m.cfg.Collector.RetryDelay); err != nil {
			slog.Warn("collect timed out waiting for photos", "order_id", orderID)
			break
		}
		incoming = m.takePending(reply.MessageID)
	}

	if len(incoming) == 0 {
		slog.Warn("no photos collected", "order_id", orderID, "message_id", reply.MessageID)
		return hadPhotos, nil
	}

	m.mu.Lock()
	existing := make(map[string]struct{}, len(order.Photos))
	for _, p := range order.Photos {
		existing[p] = struct{}{}
	}
	for _, p := range incoming {
		if _, dup := existing[p]; dup {
			continue
		}
		existing[p] = struct{}{}
		order.Photos = append(order.Photos, p)
		added = append(added, p)
	}
	total := len(order.Photos)
	m.mu.Unlock()

	if len(added) > 0 {
		slog.Info("photos collected", "order_id", orderID, "new", len(added), "total", total)
	} else {
		slog.Debug("all photos already present", "order_id", orderID)
	}

	return len(added) > 0 || hadPhotos, added
}
