package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
)

// ErrSyncDisabled is returned without touching the network while the
// breaker flag is set.
var ErrSyncDisabled = errors.New("sync disabled after an authorization failure; reset the breaker to resume")

// HealthCheck is the circuit breaker. An auth failure (401/403) sets a
// persisted flag that refuses all further requests until an operator clears
// it. Other failures only feed an informational counter.
type HealthCheck struct {
	state  state.Store
	logger *logger.Logger
}

func NewHealthCheck(st state.Store, log *logger.Logger) *HealthCheck {
	if log == nil {
		log = logger.Default()
	}
	return &HealthCheck{
		state:  st,
		logger: log.WithComponent("breaker"),
	}
}

func (h *HealthCheck) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	disabled, err := state.IsSet(ctx, h.state, constants.KeySyncDisabled)
	if err != nil {
		return nil, err
	}
	if disabled {
		metrics.BreakerRejections.Inc()
		return nil, ErrSyncDisabled
	}

	resp, err := next(ctx, req)
	if err != nil {
		if _, incErr := h.state.Increment(ctx, constants.KeySyncConsecutive); incErr != nil {
			h.logger.Warn("Failed to record transport failure", "error", incErr)
		}
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := fmt.Sprintf("HTTP %d on %s %s: %s", resp.StatusCode, req.Method, req.Path,
			strings.TrimSpace(string(resp.Body)))
		msg = domain.Truncate(msg, constants.FatalErrorMaxLength)
		if err := h.state.Set(ctx, constants.KeySyncDisabled, "1"); err != nil {
			return nil, err
		}
		if err := h.state.Set(ctx, constants.KeySyncFatalError, msg); err != nil {
			return nil, err
		}
		metrics.BreakerTrips.Inc()
		h.logger.Error("Authorization failed, sync disabled", "status", resp.StatusCode, "path", req.Path)
	case resp.OK():
		if err := h.state.Set(ctx, constants.KeySyncConsecutive, "0"); err != nil {
			return nil, err
		}
	default:
		if _, err := h.state.Increment(ctx, constants.KeySyncConsecutive); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// BreakerStatus is the operator view of the breaker.
type BreakerStatus struct {
	Disabled            bool   `json:"disabled"`
	LastFatalError      string `json:"last_fatal_error,omitempty"`
	ConsecutiveFailures int64  `json:"consecutive_failures"`
}

// ReadBreaker reports the breaker flag and its diagnostics.
func ReadBreaker(ctx context.Context, st state.Store) (*BreakerStatus, error) {
	disabled, err := state.IsSet(ctx, st, constants.KeySyncDisabled)
	if err != nil {
		return nil, err
	}
	msg, _, err := st.Get(ctx, constants.KeySyncFatalError)
	if err != nil {
		return nil, err
	}
	failures, _, err := state.GetInt(ctx, st, constants.KeySyncConsecutive)
	if err != nil {
		return nil, err
	}
	return &BreakerStatus{
		Disabled:            disabled,
		LastFatalError:      msg,
		ConsecutiveFailures: failures,
	}, nil
}

// ResetBreaker clears the flag and its diagnostics so sync can resume.
func ResetBreaker(ctx context.Context, st state.Store) error {
	for _, key := range []string{constants.KeySyncDisabled, constants.KeySyncFatalError, constants.KeySyncConsecutive} {
		if err := st.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset breaker: %w", err)
		}
	}
	return nil
}
