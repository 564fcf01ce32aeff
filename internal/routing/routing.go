// Package routing maps order types to the worker source groups that can
// fulfill them and picks a destination for each new order.
package routing

import (
	"log/slog"
	"sync"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// Table holds the source groups registered per order type. All methods are
// safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	sources map[model.OrderType][]int64
	next    map[model.OrderType]int
}

func NewTable() *Table {
	return &Table{
		sources: make(map[model.OrderType][]int64),
		next:    make(map[model.OrderType]int),
	}
}

// AddSource registers a source group for an order type. Duplicate and
// invalid entries are rejected.
func (t *Table) AddSource(orderType model.OrderType, sourceID int64) bool {
	if !orderType.Valid() {
		slog.Warn("add source rejected: invalid order type", "type", orderType)
		return false
	}
	if sourceID == 0 {
		slog.Warn("add source rejected: zero source id", "type", orderType)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.sources[orderType] {
		if id == sourceID {
			slog.Warn("add source rejected: duplicate", "type", orderType, "source_id", sourceID)
			return false
		}
	}

	t.sources[orderType] = append(t.sources[orderType], sourceID)
	slog.Info("source added", "type", orderType, "source_id", sourceID, "total", len(t.sources[orderType]))
	return true
}

// RemoveSource unregisters a source group. Removing an unknown source is a
// no-op reported as false.
func (t *Table) RemoveSource(orderType model.OrderType, sourceID int64) bool {
	if !orderType.Valid() || sourceID == 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ids := t.sources[orderType]
	for i, id := range ids {
		if id == sourceID {
			t.sources[orderType] = append(ids[:i], ids[i+1:]...)
			if t.next[orderType] >= len(t.sources[orderType]) {
				t.next[orderType] = 0
			}
			slog.Info("source removed", "type", orderType, "source_id", sourceID)
			return true
		}
	}

	slog.Warn("remove source: not registered", "type", orderType, "source_id", sourceID)
	return false
}

// Sources returns a copy of the source list for an order type.
func (t *Table) Sources(orderType model.OrderType) []int64 {
	if !orderType.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.sources[orderType]...)
}

// SourceFor picks the next source group for an order, rotating round-robin
// through the registered sources of that type. Returns false when the type
// is invalid, the amount is negative, or no sources are registered.
func (t *Table) SourceFor(orderType model.OrderType, amount int) (int64, bool) {
	if !orderType.Valid() {
		slog.Warn("routing failed: invalid order type", "type", orderType)
		return 0, false
	}
	if amount < 0 {
		slog.Warn("routing failed: negative amount", "type", orderType, "amount", amount)
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ids := t.sources[orderType]
	if len(ids) == 0 {
		slog.Warn("routing failed: no sources registered", "type", orderType)
		return 0, false
	}

	i := t.next[orderType] % len(ids)
	t.next[orderType] = (i + 1) % len(ids)

	selected := ids[i]
	slog.Info("order routed", "type", orderType, "amount", amount, "source_id", selected)
	return selected, true
}

// Clear drops all sources for one order type, or for every type when the
// empty string is passed.
func (t *Table) Clear(orderType model.OrderType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if orderType == "" {
		t.sources = make(map[model.OrderType][]int64)
		t.next = make(map[model.OrderType]int)
		return
	}
	delete(t.sources, orderType)
	delete(t.next, orderType)
}

// Stats reports the number of registered sources per order type.
func (t *Table) Stats() map[model.OrderType]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := make(map[model.OrderType]int, len(model.ValidOrderTypes))
	for _, ot := range model.ValidOrderTypes {
		stats[ot] = len(t.sources[ot])
	}
	return stats
}
