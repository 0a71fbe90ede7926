package pipeline

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
)

// Header spellings for the rate budget; the first non-empty numeric one wins.
var (
	bucketHeaders    = []string{"X-Discogs-Ratelimit", "X-RateLimit", "X-RateLimit-Limit"}
	remainingHeaders = []string{"X-Discogs-Ratelimit-Remaining", "X-RateLimit-Remaining"}
)

// RateLimiter keeps requests inside the remote per-minute budget using the
// counters the server reports, persisted in the state store so cooperating
// processes share them.
type RateLimiter struct {
	state  state.Store
	clock  Clock
	logger *logger.Logger
	jitter func(max time.Duration) time.Duration
}

func NewRateLimiter(st state.Store, clock Clock, log *logger.Logger) *RateLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RateLimiter{
		state:  st,
		clock:  clock,
		logger: log.WithComponent("ratelimit"),
		jitter: randomJitter,
	}
}

func (r *RateLimiter) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if err := r.before(ctx); err != nil {
		return nil, err
	}

	resp, err := next(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := r.after(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RateLimiter) before(ctx context.Context) error {
	lastSeen, ok, err := state.GetTime(ctx, r.state, constants.KeyRateLastSeenAt)
	if err != nil {
		return err
	}
	now := r.clock.Now()
	elapsed := now.Sub(lastSeen)
	if !ok || elapsed > constants.RateStaleAfter {
		return nil
	}

	remaining, ok, err := state.GetInt(ctx, r.state, constants.KeyRateRemaining)
	if err != nil {
		return err
	}
	if !ok || remaining > 0 {
		return nil
	}

	wait := constants.RateWindow - elapsed
	if wait < constants.MinThrottleSleep {
		wait = constants.MinThrottleSleep
	}
	r.logger.Info("Rate budget exhausted, waiting for window", "wait", wait)
	metrics.RecordThrottle("budget", wait)
	if err := r.clock.Sleep(ctx, wait); err != nil {
		return err
	}

	bucket, ok, err := state.GetInt(ctx, r.state, constants.KeyRateBucket)
	if err != nil {
		return err
	}
	if !ok || bucket <= 0 {
		bucket = constants.DefaultRateBucket
	}
	if err := state.SetInt(ctx, r.state, constants.KeyRateRemaining, bucket-1); err != nil {
		return err
	}
	return state.SetTime(ctx, r.state, constants.KeyRateLastSeenAt, r.clock.Now())
}

func (r *RateLimiter) after(ctx context.Context, resp *Response) error {
	if bucket, ok := headerInt(resp.Header, bucketHeaders); ok {
		if err := state.SetInt(ctx, r.state, constants.KeyRateBucket, bucket); err != nil {
			return err
		}
	}
	if remaining, ok := headerInt(resp.Header, remainingHeaders); ok {
		if err := state.SetInt(ctx, r.state, constants.KeyRateRemaining, remaining); err != nil {
			return err
		}
		metrics.RateLimitRemaining.Set(float64(remaining))
	}
	if err := state.SetTime(ctx, r.state, constants.KeyRateLastSeenAt, r.clock.Now()); err != nil {
		return err
	}

	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	wait, ok := parseRetryAfter(resp.Header, r.clock.Now())
	if !ok {
		wait = constants.DefaultRetryAfter
	}
	wait += r.jitter(constants.MaxRetryAfterJitter)
	r.logger.Warn("Rate limited by remote, backing off", "wait", wait)
	metrics.RecordThrottle("429", wait)
	return r.clock.Sleep(ctx, wait)
}

func headerInt(h http.Header, names []string) (int64, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(h.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// randomJitter returns a uniform duration in [0, max].
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}
