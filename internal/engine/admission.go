package engine

import (
	"fmt"
	"log/slog"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
	"github.com/heididzukai26/telegram-bot-manager/internal/ordertext"
)

// HandleOrder admits a new order. Checks run in a fixed order and
// short-circuit at the first failure: duplicate ID, CP amount, order type,
// then the optional structural format check. The order becomes visible to
// other operations only after every check has passed.
func (m *Manager) HandleOrder(orderID, text string, validate bool) (bool, string, *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[orderID]; exists {
		slog.Warn("order rejected: duplicate order id", "order_id", orderID)
		return false, "duplicate order id", nil
	}

	cpAmount := ordertext.ExtractCPAmount(text)
	if cpAmount == 0 {
		slog.Warn("order rejected: missing CP value", "order_id", orderID)
		return false, "missing CP value", nil
	}

	orderType, ok := ordertext.ExtractOrderType(text)
	if !ok {
		// Fallback heuristic before giving up.
		orderType, ok = m.detector.Detect(text)
		if !ok {
			slog.Warn("order rejected: missing order type", "order_id", orderID)
			return false, "missing order type", nil
		}
		slog.Info("order type detected via fallback", "order_id", orderID, "type", orderType)
	}

	if validate && !ordertext.IsValidOrder(text) {
		slog.Warn("order rejected: invalid order format", "order_id", orderID)
		return false, "invalid order format", nil
	}

	order := &model.Order{
		OrderID:   orderID,
		Text:      text,
		CPAmount:  cpAmount,
		OrderType: orderType,
		CreatedAt: m.clock.Now(),
		Status:    model.Pending,
	}
	m.orders[orderID] = order

	slog.Info("order created", "order_id", orderID, "cp_amount", cpAmount, "type", orderType)
	msg := fmt.Sprintf("order %s accepted: %d CP, type %s", orderID, cpAmount, orderType)
	out := snapshot(order)
	return true, msg, &out
}
