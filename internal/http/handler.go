// Package httpapp serves the operator and diagnostics routes used by `mmc serve`.
package httpapp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/app"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/http/dto"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

// BatchRunner drains one batch of the push queue.
type BatchRunner interface {
	RunBatch(ctx context.Context) (*app.PushResult, error)
}

type Handler struct {
	Queue    *app.PushService
	Push     BatchRunner
	DB       *store.DB
	State    state.Store
	Username string
	Logger   *logger.Logger
}

func NewHandler(a *app.App) *Handler {
	return &Handler{
		Queue:    a.Queue,
		Push:     a.Push,
		DB:       a.DB,
		State:    a.State,
		Username: a.Config.Username,
		Logger:   a.Logger.WithComponent("http"),
	}
}

// NewRouter builds the chi router with middleware and every route mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/breaker/reset", h.ResetBreaker)
		r.Delete("/cache", h.ClearCache)
		r.Get("/releases/{id}", h.GetRelease)

		r.Get("/push/jobs", h.ListPushJobs)
		r.Post("/push/jobs", h.EnqueuePushJob)
		r.Post("/push/jobs/{id}/retry", h.RetryPushJob)
		r.Delete("/push/jobs/done", h.ClearDonePushJobs)
		r.Post("/push/run", h.RunPushBatch)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
