package httpapp

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/app"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/http/dto"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
)

const defaultJobListLimit = 100

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		resp dto.StatusResponse
		err  error
	)

	if resp.Breaker, err = pipeline.ReadBreaker(ctx, h.State); err != nil {
		h.Logger.Error("Failed to read breaker", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Push, err = h.Queue.Stats(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Releases, err = h.DB.GetReleaseStats(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Images, err = h.DB.GetImageStats(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if cursor, ok, err := h.State.Get(ctx, constants.KeyRefreshLastAdded); err == nil && ok {
		resp.Refresh.Cursor = cursor
	}
	if at, ok, err := state.GetTime(ctx, h.State, constants.KeyRefreshLastRunAt); err == nil && ok {
		resp.Refresh.LastRunAt = at.UTC().Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	if err := pipeline.ResetBreaker(r.Context(), h.State); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Logger.Info("Breaker reset by operator")
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ClearCache drops cached remote lookups such as the collection field list.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.ClearCache(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Logger.Info("Cache cleared by operator")
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) GetRelease(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}

	rel, err := h.DB.GetRelease(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rel == nil {
		h.writeError(w, http.StatusNotFound, "release not found")
		return
	}
	images, err := h.DB.ListReleaseImages(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewReleaseResponse(rel, images))
}

func (h *Handler) ListPushJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.PushStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.PushStatusPending, domain.PushStatusRunning, domain.PushStatusDone, domain.PushStatusFailed:
	default:
		h.writeError(w, http.StatusBadRequest, "status must be pending, running, done or failed")
		return
	}

	limit := defaultJobListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs, err := h.Queue.ListJobs(r.Context(), status, limit)
	if err != nil {
		h.Logger.Error("Failed to list push jobs", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewPushJobList(jobs))
}

func (h *Handler) EnqueuePushJob(w http.ResponseWriter, r *http.Request) {
	var req dto.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: dto.ToResponse(errs), Fields: dto.ToMap(errs)})
		return
	}

	job, err := h.Queue.Enqueue(r.Context(), req.ToPushJob(h.Username))
	if err != nil {
		if errors.Is(err, app.ErrInvalidJob) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, dto.NewPushJobResponse(job))
}

func (h *Handler) RetryPushJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.Queue.Retry(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, app.ErrJobNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrJobNotFailed), errors.Is(err, app.ErrJobConflict):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	job, err := h.Queue.GetJob(r.Context(), id)
	if err != nil || job == nil {
		h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewPushJobResponse(job))
}

func (h *Handler) ClearDonePushJobs(w http.ResponseWriter, r *http.Request) {
	n, err := h.Queue.ClearDone(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

func (h *Handler) RunPushBatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.Push.RunBatch(r.Context())
	if errors.Is(err, pipeline.ErrSyncDisabled) {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("Push batch failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
