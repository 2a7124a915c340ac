package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ST10104037/hippocampus-site/internal/subscription"
)

// HealthSource reports what /health shows
type HealthSource interface {
	Ping(ctx context.Context) error
	SessionState() string
	ActivePurposes() []subscription.Purpose
}

type healthResponse struct {
	Status        string   `json:"status"`
	Session       string   `json:"session"`
	Subscriptions []string `json:"subscriptions"`
	Error         string   `json:"error,omitempty"`
}

// NewRouter serves /health and /metrics
func NewRouter(health HealthSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:        "ok",
			Session:       health.SessionState(),
			Subscriptions: make([]string, 0),
		}
		for _, p := range health.ActivePurposes() {
			resp.Subscriptions = append(resp.Subscriptions, string(p))
		}

		status := http.StatusOK
		if err := health.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
