package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/heididzukai26/telegram-bot-manager/internal/engine"
	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

func TestSweep_CompletesOnlyFullyDeliveredOrders(t *testing.T) {
	mgr := engine.NewManager(engine.Config{
		Collector: engine.CollectorConfig{Timeout: time.Second, RetryDelay: time.Millisecond, MaxRetries: 1},
		Delivery:  engine.DeliveryConfig{NetworkTimeout: time.Second, RetryOnFailure: false, MaxRetries: 1},
		Validator: engine.ValidatorConfig{StalenessWindow: time.Hour, MinReplyLength: 3},
	})

	ok, msg, _ := mgr.HandleOrder("O1", "user@x.com\n100 unsafe\ndetails", true)
	if !ok {
		t.Fatalf("HandleOrder rejected: %s", msg)
	}
	accepted, msg := mgr.ProcessWorkerReply(context.Background(), "O1", model.WorkerReply{
		UserID:    777,
		MessageID: 1,
		Text:      "taking this one",
		Timestamp: time.Now(),
		Photos:    []string{"p1", "p2", "p3"},
	})
	if !accepted {
		t.Fatalf("reply rejected: %s", msg)
	}

	broken := true
	send := func(_ context.Context, _ int64, photoRef string) error {
		if broken && photoRef == "p2" {
			return errors.New("network down")
		}
		return nil
	}
	sweep := newSweep(mgr, 10, -100, send)

	sweep(context.Background())
	if order, _ := mgr.Order("O1"); order.Status != model.Assigned {
		t.Fatalf("partial delivery must leave the order assigned, got %s", order.Status)
	}

	broken = false
	sweep(context.Background())
	if order, _ := mgr.Order("O1"); order.Status != model.Completed {
		t.Fatalf("full delivery must complete the order, got %s", order.Status)
	}
}

func TestSweep_RespectsBatchSize(t *testing.T) {
	mgr := engine.NewManager(engine.Config{
		Collector: engine.CollectorConfig{Timeout: time.Second, RetryDelay: time.Millisecond, MaxRetries: 1},
		Delivery:  engine.DeliveryConfig{NetworkTimeout: time.Second, RetryOnFailure: false, MaxRetries: 1},
		Validator: engine.ValidatorConfig{StalenessWindow: time.Hour, MinReplyLength: 3},
	})

	for i, id := range []string{"A", "B", "C"} {
		if ok, msg, _ := mgr.HandleOrder(id, "user@x.com\n100 unsafe\ndetails", true); !ok {
			t.Fatalf("HandleOrder %s rejected: %s", id, msg)
		}
		if ok, msg := mgr.ProcessWorkerReply(context.Background(), id, model.WorkerReply{
			UserID:    777,
			MessageID: int64(i + 1),
			Text:      "taking this one",
			Timestamp: time.Now(),
			Photos:    []string{"photo-" + id},
		}); !ok {
			t.Fatalf("reply for %s rejected: %s", id, msg)
		}
	}

	send := func(context.Context, int64, string) error { return nil }
	newSweep(mgr, 2, -100, send)(context.Background())

	if got := len(mgr.OrdersByStatus(model.Completed)); got != 2 {
		t.Fatalf("expected 2 completed orders for batch size 2, got %d", got)
	}
	if got := len(mgr.OrdersByStatus(model.Assigned)); got != 1 {
		t.Fatalf("expected 1 order left for the next sweep, got %d", got)
	}
}

func TestLoggingMiddleware_PassesThroughAndCapturesStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}

	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestLoggingMiddleware_DefaultStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No explicit WriteHeader.
		_, _ = w.Write([]byte("implicit"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/implicit", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}
