// Package pipeline wraps the raw HTTP transport in an ordered chain of
// interceptors: rate limiting, retry with backoff and the auth circuit breaker.
//
// A non-2xx status is never an error at this level. Interceptors inspect the
// status and callers decide what a failed response means.
package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
)

// Request describes one call against the remote API.
type Request struct {
	Method string
	// Path is relative to the transport's base URL unless it is absolute.
	Path  string
	Query url.Values
	// JSON, when non-nil, is encoded as the request body.
	JSON interface{}
	// Timeout bounds this single call. Zero uses the transport default.
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Handler sends a request and returns the response. Transport failures are
// returned as errors; HTTP statuses are not.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Interceptor sees every request on its way to next and the response on its way back.
type Interceptor interface {
	Process(ctx context.Context, req *Request, next Handler) (*Response, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, req *Request, next Handler) (*Response, error)

func (f InterceptorFunc) Process(ctx context.Context, req *Request, next Handler) (*Response, error) {
	return f(ctx, req, next)
}

// Chain folds interceptors around base. The first interceptor is the
// outermost: it runs first on the way out and last on the way back.
func Chain(base Handler, interceptors ...Interceptor) Handler {
	h := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		ic := interceptors[i]
		next := h
		h = func(ctx context.Context, req *Request) (*Response, error) {
			return ic.Process(ctx, req, next)
		}
	}
	return h
}

// New assembles the standard chain around transport: rate limiter, then
// retry, then the breaker closest to the network.
func New(transport Handler, st state.Store, retryMax int, clock Clock, log *logger.Logger) Handler {
	return Chain(transport,
		NewRateLimiter(st, clock, log),
		NewRetry(retryMax, clock, log),
		NewHealthCheck(st, log),
	)
}

// Clock abstracts time so throttling and backoff can be tested without waiting.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock uses the wall clock and blocking timers.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header given either as seconds or as an
// HTTP date. ok is false when the header is absent or unparseable.
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	ra := h.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if t, err := http.ParseTime(ra); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
