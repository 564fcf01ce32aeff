// Package engine implements the order-coordination core: admission,
// reply validation, race-free photo collection and retrying delivery.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
	"github.com/heididzukai26/telegram-bot-manager/internal/ordertext"
)

// Clock abstracts time so retry/backoff loops are testable without real
// waits. Sleep returns early with the context error on cancellation.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type CollectorConfig struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	MaxRetries int
}

type DeliveryConfig struct {
	NetworkTimeout time.Duration
	RetryOnFailure bool
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

type ValidatorConfig struct {
	StalenessWindow time.Duration
	MinReplyLength  int
}

type Config struct {
	Collector CollectorConfig
	Delivery  DeliveryConfig
	Validator ValidatorConfig
}

func DefaultConfig() Config {
	return Config{
		Collector: CollectorConfig{
			Timeout:    30 * time.Second,
			RetryDelay: 2 * time.Second,
			MaxRetries: 3,
		},
		Delivery: DeliveryConfig{
			NetworkTimeout: 60 * time.Second,
			RetryOnFailure: true,
			MaxRetries:     3,
			BackoffBase:    2 * time.Second,
			BackoffCap:     30 * time.Second,
		},
		Validator: ValidatorConfig{
			StalenessWindow: 24 * time.Hour,
			MinReplyLength:  3,
		},
	}
}

// ReplyRecord is one audit-trail entry for a processed worker reply.
type ReplyRecord struct {
	ID         string
	Reply      model.WorkerReply
	ReceivedAt time.Time
}

// orderLock serializes collection and delivery per order. A channel-based
// lock lets waiters give up when their context expires, which a sync.Mutex
// cannot do.
type orderLock chan struct{}

func newOrderLock() orderLock { return make(orderLock, 1) }

func (l orderLock) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l orderLock) release() { <-l }

// Manager owns the authoritative in-memory order state. mu guards the maps
// and every Order field; the per-order locks serialize whole collect/deliver
// operations against one order without blocking other orders.
type Manager struct {
	mu      sync.Mutex
	orders  map[string]*model.Order
	locks   map[string]orderLock
	history map[string][]ReplyRecord

	procMu    sync.Mutex
	processed map[int64]struct{}
	pending   map[int64][]string

	cfg      Config
	clock    Clock
	detector ordertext.TypeDetector

	onStatusChange func(ctx context.Context, order model.Order) error
	onDelivered    func(ctx context.Context, orderID, photoRef string) error
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		orders:    make(map[string]*model.Order),
		locks:     make(map[string]orderLock),
		history:   make(map[string][]ReplyRecord),
		processed: make(map[int64]struct{}),
		pending:   make(map[int64][]string),
		cfg:       cfg,
		clock:     systemClock{},
		detector:  ordertext.KeywordDetector{},
	}
}

// WithClock swaps the clock, mainly for tests with fake time.
func (m *Manager) WithClock(c Clock) *Manager {
	m.clock = c
	return m
}

// WithDetector swaps the fallback order-type detection strategy.
func (m *Manager) WithDetector(d ordertext.TypeDetector) *Manager {
	m.detector = d
	return m
}

// WithHooks registers side-effect callbacks: onStatusChange fires after any
// status transition (persistence), onDelivered after each successful photo
// send (receipt cache). Hook errors are logged by callers, never fatal.
func (m *Manager) WithHooks(
	onStatusChange func(ctx context.Context, order model.Order) error,
	onDelivered func(ctx context.Context, orderID, photoRef string) error,
) *Manager {
	m.onStatusChange = onStatusChange
	m.onDelivered = onDelivered
	return m
}

func (m *Manager) lockFor(orderID string) orderLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[orderID]
	if !ok {
		l = newOrderLock()
		m.locks[orderID] = l
	}
	return l
}

func (m *Manager) markProcessed(messageID int64) {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	m.processed[messageID] = struct{}{}
}

func (m *Manager) isProcessed(messageID int64) bool {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	_, ok := m.processed[messageID]
	return ok
}

// AttachPhotos records photos that arrive in a follow-up transport event for
// a reply that is still being collected. Media groups on most transports
// deliver the text and the photos as separate events.
func (m *Manager) AttachPhotos(messageID int64, photoRefs ...string) {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	m.pending[messageID] = append(m.pending[messageID], photoRefs...)
}

func (m *Manager) takePending(messageID int64) []string {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	p := m.pending[messageID]
	delete(m.pending, messageID)
	return p
}

// Order returns a snapshot copy of an order.
func (m *Manager) Order(orderID string) (model.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	return snapshot(o), true
}

// OrdersByStatus returns snapshot copies of all orders in the given status,
// used by the delivery sweep.
func (m *Manager) OrdersByStatus(status model.Status) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, snapshot(o))
		}
	}
	return out
}

// SetReplyMessageID records the broadcast message workers must reply to.
func (m *Manager) SetReplyMessageID(orderID string, messageID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false
	}
	o.ReplyMessageID = messageID
	return true
}

func snapshot(o *model.Order) model.Order {
	c := *o
	c.Photos = append([]string(nil), o.Photos...)
	return c
}
