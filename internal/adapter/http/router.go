package http

import (
	"net/http"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

// NewRouter wires the order service API. Recovery runs inside logging so a
// recovered panic is still logged with its request ID.
func NewRouter(
	checkout interfaces.CheckoutService,
	lifecycle interfaces.LifecycleService,
	tracking interfaces.TrackingService,
	logger logger.Logger,
) http.Handler {
	orders := NewOrderHandler(checkout, logger)
	transitions := NewTransitionHandler(lifecycle, logger)
	track := NewTrackingHandler(tracking, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /slots", orders.ListSlots)
	mux.HandleFunc("POST /orders", orders.CreateOrder)
	mux.HandleFunc("GET /orders/{id}", track.GetOrder)
	mux.HandleFunc("GET /orders/{id}/history", track.GetHistory)
	mux.HandleFunc("GET /orders/{id}/transitions", transitions.AllowedTransitions)
	mux.HandleFunc("POST /orders/{id}/transitions", transitions.Transition)

	var handler http.Handler = mux
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)
	return handler
}
