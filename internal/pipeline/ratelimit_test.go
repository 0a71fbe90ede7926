package pipeline

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/testutil"
)

func newTestLimiter(st state.Store, clock Clock) *RateLimiter {
	rl := NewRateLimiter(st, clock, logger.Discard())
	rl.jitter = func(time.Duration) time.Duration { return 0 }
	return rl
}

func seedRate(t *testing.T, st state.Store, remaining int64, lastSeen time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, state.SetInt(ctx, st, constants.KeyRateRemaining, remaining))
	require.NoError(t, state.SetTime(ctx, st, constants.KeyRateLastSeenAt, lastSeen))
}

func TestRateLimiter_DelaysWhenBudgetExhausted(t *testing.T) {
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()
	seedRate(t, st, 0, clock.Now())

	var sleptBeforeCall time.Duration
	transport := &scripted{statuses: []int{200}}
	transport.onCall = func() { sleptBeforeCall = clock.TotalSlept() }

	_, err := newTestLimiter(st, clock).Process(context.Background(), testRequest(), transport.handler())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sleptBeforeCall, time.Second, "delay happens before the transport call")
	assert.Equal(t, constants.RateWindow, sleptBeforeCall)

	remaining, ok, _ := state.GetInt(context.Background(), st, constants.KeyRateRemaining)
	assert.True(t, ok)
	assert.Equal(t, int64(constants.DefaultRateBucket-1), remaining, "optimistic reset to bucket-1")
}

func TestRateLimiter_WaitsRestOfWindow(t *testing.T) {
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()
	seedRate(t, st, 0, clock.Now().Add(-45*time.Second))
	require.NoError(t, state.SetInt(context.Background(), st, constants.KeyRateBucket, 25))

	_, err := newTestLimiter(st, clock).Process(context.Background(), testRequest(), (&scripted{statuses: []int{200}}).handler())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{15 * time.Second}, clock.Sleeps())
	remaining, _, _ := state.GetInt(context.Background(), st, constants.KeyRateRemaining)
	assert.Equal(t, int64(24), remaining)
}

func TestRateLimiter_MinimumSleep(t *testing.T) {
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()
	seedRate(t, st, 0, clock.Now().Add(-90*time.Second))

	_, err := newTestLimiter(st, clock).Process(context.Background(), testRequest(), (&scripted{statuses: []int{200}}).handler())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second}, clock.Sleeps())
}

func TestRateLimiter_NoThrottle(t *testing.T) {
	tests := []struct {
		name  string
		setup func(st state.Store, now time.Time)
	}{
		{"nothing recorded", func(st state.Store, now time.Time) {}},
		{"stale last seen", func(st state.Store, now time.Time) {
			_ = state.SetInt(context.Background(), st, constants.KeyRateRemaining, 0)
			_ = state.SetTime(context.Background(), st, constants.KeyRateLastSeenAt, now.Add(-121*time.Second))
		}},
		{"budget left", func(st state.Store, now time.Time) {
			_ = state.SetInt(context.Background(), st, constants.KeyRateRemaining, 3)
			_ = state.SetTime(context.Background(), st, constants.KeyRateLastSeenAt, now)
		}},
		{"remaining unknown", func(st state.Store, now time.Time) {
			_ = state.SetTime(context.Background(), st, constants.KeyRateLastSeenAt, now)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.NewMemoryStore()
			clock := testutil.FixedClock()
			tt.setup(st, clock.Now())

			_, err := newTestLimiter(st, clock).Process(context.Background(), testRequest(), (&scripted{statuses: []int{200}}).handler())
			require.NoError(t, err)
			assert.Empty(t, clock.Sleeps())
		})
	}
}

func TestRateLimiter_RecordsHeaders(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()
	require.NoError(t, state.SetInt(ctx, st, constants.KeyRateRemaining, 30))

	tests := []struct {
		name          string
		header        http.Header
		wantBucket    int64
		wantBucketSet bool
		wantRemaining int64
	}{
		{
			name:          "discogs spelling",
			header:        http.Header{"X-Discogs-Ratelimit": {"60"}, "X-Discogs-Ratelimit-Remaining": {"57"}},
			wantBucket:    60,
			wantBucketSet: true,
			wantRemaining: 57,
		},
		{
			name:          "generic spelling",
			header:        http.Header{"X-Ratelimit": {"25"}, "X-Ratelimit-Remaining": {"20"}},
			wantBucket:    25,
			wantBucketSet: true,
			wantRemaining: 20,
		},
		{
			name:          "non-numeric ignored",
			header:        http.Header{"X-Discogs-Ratelimit-Remaining": {"lots"}, "X-Discogs-Ratelimit": {""}},
			wantBucket:    25,
			wantBucketSet: true,
			wantRemaining: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &scripted{statuses: []int{200}, headers: []http.Header{tt.header}}
			_, err := newTestLimiter(st, clock).Process(ctx, testRequest(), transport.handler())
			require.NoError(t, err)

			bucket, ok, _ := state.GetInt(ctx, st, constants.KeyRateBucket)
			assert.Equal(t, tt.wantBucketSet, ok)
			assert.Equal(t, tt.wantBucket, bucket)

			remaining, _, _ := state.GetInt(ctx, st, constants.KeyRateRemaining)
			assert.Equal(t, tt.wantRemaining, remaining)

			lastSeen, ok, _ := state.GetTime(ctx, st, constants.KeyRateLastSeenAt)
			assert.True(t, ok, "last seen is always stamped")
			assert.Equal(t, clock.Now().Unix(), lastSeen.Unix())
		})
	}
}

func TestRateLimiter_429Sleep(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   time.Duration
	}{
		{"retry-after seconds", http.Header{"Retry-After": {"3"}}, 3 * time.Second},
		{"missing header", http.Header{}, constants.DefaultRetryAfter},
		{"unparseable header", http.Header{"Retry-After": {"later"}}, constants.DefaultRetryAfter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.NewMemoryStore()
			clock := testutil.FixedClock()
			transport := &scripted{statuses: []int{429}, headers: []http.Header{tt.header}}

			resp, err := newTestLimiter(st, clock).Process(context.Background(), testRequest(), transport.handler())
			require.NoError(t, err)
			assert.Equal(t, 429, resp.StatusCode)
			assert.Equal(t, []time.Duration{tt.want}, clock.Sleeps())
		})
	}
}

func TestRateLimiter_429JitterBounded(t *testing.T) {
	st := state.NewMemoryStore()
	clock := testutil.FixedClock()
	rl := NewRateLimiter(st, clock, logger.Discard())
	transport := &scripted{statuses: []int{429}}

	for i := 0; i < 20; i++ {
		_, err := rl.Process(context.Background(), testRequest(), transport.handler())
		require.NoError(t, err)
	}
	for _, d := range clock.Sleeps() {
		assert.GreaterOrEqual(t, d, constants.DefaultRetryAfter)
		assert.LessOrEqual(t, d, constants.DefaultRetryAfter+constants.MaxRetryAfterJitter)
	}
}
