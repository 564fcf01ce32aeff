package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heididzukai26/telegram-bot-manager/internal/engine"
	"github.com/heididzukai26/telegram-bot-manager/internal/model"
	"github.com/heididzukai26/telegram-bot-manager/internal/routing"
	"github.com/heididzukai26/telegram-bot-manager/internal/scheduler"
)

// BroadcastFunc announces an order's text in a source group and returns the
// ID of the posted message.
type BroadcastFunc func(ctx context.Context, chatID int64, text string) (int64, error)

type Handler struct {
	mgr       *engine.Manager
	sched     *scheduler.Scheduler
	routes    *routing.Table
	broadcast BroadcastFunc
}

func NewHandler(m *engine.Manager, s *scheduler.Scheduler, r *routing.Table, b BroadcastFunc) *Handler {
	return &Handler{mgr: m, sched: s, routes: r, broadcast: b}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createOrderRequest struct {
	OrderID  string `json:"orderId"`
	Text     string `json:"text"`
	Validate *bool  `json:"validate,omitempty"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}

	validate := true
	if req.Validate != nil {
		validate = *req.Validate
	}

	ok, msg, order := h.mgr.HandleOrder(req.OrderID, req.Text, validate)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"ok": false, "message": msg})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": msg,
		"order": map[string]any{
			"orderId":   order.OrderID,
			"cpAmount":  order.CPAmount,
			"orderType": order.OrderType,
			"status":    order.Status,
		},
	})
}

// BroadcastOrder routes an admitted order to a source group and posts its
// text there. The posted message becomes the reply target workers must
// answer: without this step no inbound reply can match the order.
func (h *Handler) BroadcastOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	order, ok := h.mgr.Order(orderID)
	if !ok {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	sourceID, ok := h.routes.SourceFor(order.OrderType, order.CPAmount)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"ok":      false,
			"message": fmt.Sprintf("no source registered for type %s", order.OrderType),
		})
		return
	}

	messageID, err := h.broadcast(r.Context(), sourceID, order.Text)
	if err != nil {
		slog.Error("broadcast failed", "order_id", orderID, "source_id", sourceID, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"ok":      false,
			"message": "failed to broadcast order",
		})
		return
	}

	h.mgr.SetReplyMessageID(orderID, messageID)
	slog.Info("order broadcast", "order_id", orderID, "source_id", sourceID, "message_id", messageID)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"sourceId":  sourceID,
		"messageId": messageID,
	})
}

type workerReplyRequest struct {
	UserID           int64    `json:"userId"`
	MessageID        int64    `json:"messageId"`
	ReplyToMessageID int64    `json:"replyToMessageId"`
	Text             string   `json:"text"`
	Timestamp        string   `json:"timestamp,omitempty"`
	Photos           []string `json:"photos,omitempty"`
}

func (h *Handler) SubmitReply(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req workerReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ts := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			http.Error(w, "invalid timestamp, expected RFC3339", http.StatusBadRequest)
			return
		}
		ts = parsed
	}

	reply := model.WorkerReply{
		UserID:           req.UserID,
		MessageID:        req.MessageID,
		ReplyToMessageID: req.ReplyToMessageID,
		Text:             req.Text,
		Timestamp:        ts,
		Photos:           req.Photos,
	}

	ok, msg := h.mgr.ProcessWorkerReply(r.Context(), orderID, reply)
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{"ok": ok, "message": msg})
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	info, ok := h.mgr.OrderStatus(r.PathValue("id"))
	if !ok {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

type sourceRequest struct {
	OrderType string `json:"orderType"`
	SourceID  int64  `json:"sourceId"`
}

func (h *Handler) AddSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ok := h.routes.AddSource(model.OrderType(req.OrderType), req.SourceID)
	status := http.StatusCreated
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{"ok": ok})
}

func (h *Handler) RemoveSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ok := h.routes.RemoveSource(model.OrderType(req.OrderType), req.SourceID)
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]any{"ok": ok})
}

func (h *Handler) RoutingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": h.routes.Stats()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
