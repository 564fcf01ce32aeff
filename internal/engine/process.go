package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// ProcessWorkerReply is the single entry point per inbound reply. It
// validates, assigns the worker on the first valid reply, records the audit
// entry and collects photos, as one logical unit. Invalid replies return a
// reason without mutating any state.
func (m *Manager) ProcessWorkerReply(ctx context.Context, orderID string, reply model.WorkerReply) (bool, string) {
	m.mu.Lock()
	order, exists := m.orders[orderID]
	var snap model.Order
	if exists {
		snap = snapshot(order)
	}
	m.mu.Unlock()

	if !exists {
		slog.Error("reply dropped: order not found", "order_id", orderID)
		return false, fmt.Sprintf("order %s not found", orderID)
	}

	if !m.isValidWorkerReply(reply, snap) {
		slog.Warn("invalid worker reply", "order_id", orderID, "message_id", reply.MessageID)
		return false, "invalid or unrelated reply"
	}

	var assigned bool
	m.mu.Lock()
	if order.WorkerID == 0 {
		order.WorkerID = reply.UserID
		if order.Status.CanTransition(model.Assigned) {
			order.Status = model.Assigned
		}
		assigned = true
	}
	m.history[orderID] = append(m.history[orderID], ReplyRecord{
		ID:         uuid.NewString(),
		Reply:      reply,
		ReceivedAt: m.clock.Now(),
	})
	needsPhotos := len(order.Photos) == 0
	snap = snapshot(order)
	m.mu.Unlock()

	if assigned {
		slog.Info("worker assigned", "order_id", orderID, "worker_id", reply.UserID)
		m.notifyStatusChange(ctx, snap)
	}

	if len(reply.Photos) > 0 || needsPhotos {
		ok, photos := m.CollectWorkerPhotos(ctx, orderID, reply)
		if !ok {
			return false, "failed to collect photos"
		}
		return true, fmt.Sprintf("collected %d photos", len(photos))
	}

	// The collector marks messages it handles; a reply that skips it must be
	// marked here or a transport redelivery would be accepted again.
	m.markProcessed(reply.MessageID)
	return true, "reply processed"
}

// History returns the audit trail of accepted replies for an order.
func (m *Manager) History(orderID string) []ReplyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReplyRecord(nil), m.history[orderID]...)
}

// StatusInfo is a point-in-time summary of an order.
type StatusInfo struct {
	OrderID    string          `json:"orderId"`
	Status     model.Status    `json:"status"`
	CPAmount   int             `json:"cpAmount"`
	OrderType  model.OrderType `json:"orderType"`
	WorkerID   int64           `json:"workerId,omitempty"`
	PhotoCount int             `json:"photoCount"`
	ReplyCount int             `json:"replyCount"`
	CreatedAt  string          `json:"createdAt"`
}

// OrderStatus reports the current state of an order.
func (m *Manager) OrderStatus(orderID string) (StatusInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return StatusInfo{}, false
	}
	return StatusInfo{
		OrderID:    o.OrderID,
		Status:     o.Status,
		CPAmount:   o.CPAmount,
		OrderType:  o.OrderType,
		WorkerID:   o.WorkerID,
		PhotoCount: len(o.Photos),
		ReplyCount: len(m.history[orderID]),
		CreatedAt:  o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, true
}

// CompleteOrder marks an order completed. Transitions are monotonic: a
// terminal order never moves again.
func (m *Manager) CompleteOrder(ctx context.Context, orderID string) error {
	return m.transition(ctx, orderID, model.Completed)
}

// FailOrder marks an order failed after the caller has exhausted recovery.
func (m *Manager) FailOrder(ctx context.Context, orderID string) error {
	return m.transition(ctx, orderID, model.Failed)
}

func (m *Manager) transition(ctx context.Context, orderID string, to model.Status) error {
	m.mu.Lock()
	o, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("order %s not found", orderID)
	}
	if !o.Status.CanTransition(to) {
		from := o.Status
		m.mu.Unlock()
		return fmt.Errorf("order %s: illegal transition %s -> %s", orderID, from, to)
	}
	o.Status = to
	snap := snapshot(o)

	// The per-order lock may only be dropped once the order is terminal;
	// removing it earlier would race in-flight collectors.
	if to == model.Completed || to == model.Failed {
		delete(m.locks, orderID)
	}
	m.mu.Unlock()

	slog.Info("order status changed", "order_id", orderID, "status", to)
	m.notifyStatusChange(ctx, snap)
	return nil
}

func (m *Manager) notifyStatusChange(ctx context.Context, order model.Order) {
	if m.onStatusChange == nil {
		return
	}
	if err := m.onStatusChange(ctx, order); err != nil {
		slog.Warn("status change hook failed", "order_id", order.OrderID, "err", err)
	}
}
