package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("POST /v1/orders", h.CreateOrder)
	mux.HandleFunc("GET /v1/orders/{id}", h.OrderStatus)
	mux.HandleFunc("POST /v1/orders/{id}/broadcast", h.BroadcastOrder)
	mux.HandleFunc("POST /v1/orders/{id}/replies", h.SubmitReply)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	mux.HandleFunc("GET /v1/routing/sources", h.RoutingStats)
	mux.HandleFunc("POST /v1/routing/sources", h.AddSource)
	mux.HandleFunc("DELETE /v1/routing/sources", h.RemoveSource)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("telegram-bot-manager"))
	})

	return mux
}
