package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// SendFunc is the injected transport primitive: one attempt to push a single
// photo reference to a destination chat. The engine owns retries.
type SendFunc func(ctx context.Context, destination int64, photoRef string) error

// DeliveryResult counts the outcome of one delivery pass.
type DeliveryResult struct {
	Delivered int
	Failed    int
}

// Success reports whether anything reached the destination. Partial delivery
// counts as success; the failed photos stay on the order for a later pass.
func (r DeliveryResult) Success() bool { return r.Delivered > 0 }

// Complete reports whether every photo reached the destination. Only a
// complete delivery may finish the order.
func (r DeliveryResult) Complete() bool { return r.Delivered > 0 && r.Failed == 0 }

// DeliverPhotos pushes the order's collected photos to the destination.
// Each photo gets up to MaxRetries attempts with capped exponential backoff;
// a failed photo never aborts delivery of the remaining ones. Partial
// delivery still reports success with a message enumerating both counts.
func (m *Manager) DeliverPhotos(ctx context.Context, orderID string, destination int64, send SendFunc) (DeliveryResult, string) {
	m.mu.Lock()
	order, exists := m.orders[orderID]
	m.mu.Unlock()
	if !exists {
		slog.Error("deliver failed: order not found", "order_id", orderID)
		return DeliveryResult{}, fmt.Sprintf("order %s not found", orderID)
	}

	// Serialize against concurrent collection for the same order.
	lock := m.lockFor(orderID)
	if err := lock.acquire(ctx); err != nil {
		slog.Error("deliver failed: lock wait exceeded", "order_id", orderID, "err", err)
		return DeliveryResult{}, fmt.Sprintf("delivery aborted: %v", err)
	}
	defer lock.release()

	m.mu.Lock()
	photos := append([]string(nil), order.Photos...)
	m.mu.Unlock()

	if len(photos) == 0 {
		slog.Warn("nothing to deliver", "order_id", orderID)
		return DeliveryResult{}, "no photos to deliver"
	}

	var res DeliveryResult
	for idx, photo := range photos {
		if m.sendWithRetry(ctx, send, destination, photo, idx+1, len(photos)) {
			res.Delivered++
			if m.onDelivered != nil {
				if err := m.onDelivered(ctx, orderID, photo); err != nil {
					slog.Warn("delivery receipt hook failed", "order_id", orderID, "err", err)
				}
			}
		} else {
			res.Failed++
		}
	}

	switch {
	case res.Complete():
		slog.Info("all photos delivered", "order_id", orderID, "count", res.Delivered)
		return res, fmt.Sprintf("delivered all %d photos", res.Delivered)
	case res.Delivered > 0:
		slog.Warn("partial delivery", "order_id", orderID, "delivered", res.Delivered, "failed", res.Failed)
		return res, fmt.Sprintf("delivered %d/%d photos (%d failed)", res.Delivered, len(photos), res.Failed)
	default:
		slog.Error("delivery failed for every photo", "order_id", orderID, "count", len(photos))
		return res, fmt.Sprintf("failed to deliver photos (0/%d successful)", len(photos))
	}
}

func (m *Manager) sendWithRetry(ctx context.Context, send SendFunc, destination int64, photoRef string, idx, total int) bool {
	cfg := m.cfg.Delivery

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.NetworkTimeout)
		err := send(attemptCtx, destination, photoRef)
		cancel()

		if err == nil {
			slog.Info("photo delivered", "photo", idx, "of", total, "attempt", attempt+1)
			return true
		}

		slog.Warn("photo send failed",
			"photo", idx, "of", total,
			"attempt", attempt+1, "max_retries", cfg.MaxRetries,
			"err", err)

		if !cfg.RetryOnFailure || attempt == cfg.MaxRetries-1 {
			break
		}

		delay := cfg.BackoffBase << attempt
		if cfg.BackoffCap > 0 && delay > cfg.BackoffCap {
			delay = cfg.BackoffCap
		}
		if err := m.clock.Sleep(ctx, delay); err != nil {
			slog.Warn("backoff interrupted", "err", err)
			break
		}
	}
	return false
}
