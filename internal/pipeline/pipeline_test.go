package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/testutil"
)

// scripted is a transport that answers with a fixed sequence of statuses.
type scripted struct {
	statuses []int
	headers  []http.Header
	calls    int
	onCall   func()
}

func (s *scripted) handler() Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if s.onCall != nil {
			s.onCall()
		}
		i := s.calls
		s.calls++
		if i >= len(s.statuses) {
			i = len(s.statuses) - 1
		}
		h := http.Header{}
		if i < len(s.headers) && s.headers[i] != nil {
			h = s.headers[i]
		}
		return &Response{StatusCode: s.statuses[i], Header: h}, nil
	}
}

func testRequest() *Request {
	return &Request{Method: http.MethodGet, Path: "/users/collector/collection/folders/0/releases"}
}

func TestChain_Order(t *testing.T) {
	var trace []string
	mark := func(name string) Interceptor {
		return InterceptorFunc(func(ctx context.Context, req *Request, next Handler) (*Response, error) {
			trace = append(trace, name+":before")
			resp, err := next(ctx, req)
			trace = append(trace, name+":after")
			return resp, err
		})
	}
	base := func(ctx context.Context, req *Request) (*Response, error) {
		trace = append(trace, "transport")
		return &Response{StatusCode: 200}, nil
	}

	h := Chain(base, mark("a"), mark("b"), mark("c"))
	_, err := h(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a:before", "b:before", "c:before", "transport", "c:after", "b:after", "a:after",
	}, trace)
}

func TestChain_Empty(t *testing.T) {
	base := func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: 204}, nil
	}
	resp, err := Chain(base)(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestResponse_OK(t *testing.T) {
	assert.True(t, (&Response{StatusCode: 200}).OK())
	assert.True(t, (&Response{StatusCode: 299}).OK())
	assert.False(t, (&Response{StatusCode: 199}).OK())
	assert.False(t, (&Response{StatusCode: 301}).OK())
	assert.False(t, (&Response{StatusCode: 404}).OK())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"absent", "", 0, false},
		{"seconds", "7", 7 * time.Second, true},
		{"zero", "0", 0, true},
		{"http date", now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second, true},
		{"date in the past", now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"garbage", "soon", 0, false},
		{"negative", "-3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			got, ok := parseRetryAfter(h, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRealClock_SleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RealClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_AuthFailureDisablesFollowingRequests(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()

	transport := &scripted{statuses: []int{http.StatusUnauthorized, http.StatusOK}}
	h := New(transport.handler(), st, 5, clock, logger.Discard())

	resp, err := h(ctx, testRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "401 is returned to the caller, not retried")
	assert.Equal(t, 1, transport.calls)

	_, err = h(ctx, testRequest())
	assert.ErrorIs(t, err, ErrSyncDisabled)
	assert.Equal(t, 1, transport.calls, "no network call while disabled")
}

func TestNew_RecordsRateHeadersOnce(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()

	transport := &scripted{
		statuses: []int{http.StatusOK},
		headers: []http.Header{{
			"X-Discogs-Ratelimit":           []string{"60"},
			"X-Discogs-Ratelimit-Remaining": []string{"42"},
		}},
	}
	h := New(transport.handler(), st, 5, clock, logger.Discard())

	_, err := h(ctx, testRequest())
	require.NoError(t, err)

	remaining, ok, err := state.GetInt(ctx, st, constants.KeyRateRemaining)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), remaining)

	raw, _, _ := st.Get(ctx, constants.KeyRateLastSeenAt)
	assert.Equal(t, strconv.FormatInt(clock.Now().Unix(), 10), raw)
}

func TestNew_TransportErrorPropagates(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	boom := errors.New("dial tcp: connection refused")

	transport := func(ctx context.Context, req *Request) (*Response, error) {
		return nil, boom
	}
	h := New(transport, st, 5, testutil.FixedClock(), logger.Discard())

	_, err := h(ctx, testRequest())
	assert.ErrorIs(t, err, boom)

	failures, _, _ := state.GetInt(ctx, st, constants.KeySyncConsecutive)
	assert.Equal(t, int64(1), failures)
}
