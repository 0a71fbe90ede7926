package pipeline

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
)

// Retry re-issues requests answered with 429 or 5xx. Once the attempt budget
// is spent the last response is returned as-is, whatever its status.
type Retry struct {
	max    int
	clock  Clock
	logger *logger.Logger
	// backoff picks the sleep before retry number attempt+1 when the
	// response carries no usable Retry-After.
	backoff func(attempt int) time.Duration
}

func NewRetry(maxRetries int, clock Clock, log *logger.Logger) *Retry {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Retry{
		max:     maxRetries,
		clock:   clock,
		logger:  log.WithComponent("retry"),
		backoff: jitteredBackoff,
	}
}

func (r *Retry) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || attempt >= r.max {
			return resp, nil
		}

		delay, ok := parseRetryAfter(resp.Header, r.clock.Now())
		if !ok {
			delay = r.backoff(attempt)
		}

		r.logger.Info("Retrying request",
			"method", req.Method,
			"path", req.Path,
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"delay", delay,
		)
		metrics.RetriesTotal.Inc()
		metrics.RecordThrottle("backoff", delay)

		if err := r.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoffBase is min(60s, 2^attempt seconds).
func backoffBase(attempt int) time.Duration {
	if attempt >= 6 {
		return constants.MaxBackoff
	}
	base := time.Duration(1<<attempt) * time.Second
	if base > constants.MaxBackoff {
		base = constants.MaxBackoff
	}
	return base
}

// jitteredBackoff returns a uniform duration in [1s, backoffBase(attempt)].
func jitteredBackoff(attempt int) time.Duration {
	base := backoffBase(attempt)
	spread := base - time.Second
	if spread <= 0 {
		return time.Second
	}
	return time.Second + time.Duration(rand.Int64N(int64(spread)+1))
}
