package engine

import (
	"context"
	"sync"
	"time"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// fakeClock advances instantly on Sleep so retry loops run without real
// waits.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func newTestManager() (*Manager, *fakeClock) {
	clock := newFakeClock()
	m := NewManager(DefaultConfig()).WithClock(clock)
	return m, clock
}

const validOrderText = "user@x.com\n100 unsafe\ndetails"

func makeOrder(m *Manager, orderID string, replyMessageID int64) {
	ok, msg, _ := m.HandleOrder(orderID, validOrderText, true)
	if !ok {
		panic("test order rejected: " + msg)
	}
	m.SetReplyMessageID(orderID, replyMessageID)
}

func makeReply(clock *fakeClock, messageID, replyTo int64, text string, photos ...string) model.WorkerReply {
	return model.WorkerReply{
		UserID:           777,
		MessageID:        messageID,
		ReplyToMessageID: replyTo,
		Text:             text,
		Timestamp:        clock.Now(),
		Photos:           photos,
	}
}
