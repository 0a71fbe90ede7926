package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/state"
)

func TestHealthCheck_FailsFastWhenDisabled(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	require.NoError(t, st.Set(ctx, constants.KeySyncDisabled, "1"))

	transport := &scripted{statuses: []int{200}}
	_, err := NewHealthCheck(st, logger.Discard()).Process(ctx, testRequest(), transport.handler())

	assert.ErrorIs(t, err, ErrSyncDisabled)
	assert.Equal(t, 0, transport.calls)
}

func TestHealthCheck_AuthFailureTrips(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		ctx := context.Background()
		st := state.NewMemoryStore()
		hc := NewHealthCheck(st, logger.Discard())

		transport := func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{StatusCode: status, Body: []byte(`{"message": "You must authenticate to access this resource."}`)}, nil
		}

		resp, err := hc.Process(ctx, testRequest(), transport)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode)

		bs, err := ReadBreaker(ctx, st)
		require.NoError(t, err)
		assert.True(t, bs.Disabled)
		assert.Contains(t, bs.LastFatalError, "You must authenticate")
	}
}

func TestHealthCheck_FatalMessageTruncated(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	body := []byte(strings.Repeat("x", 5000))

	_, err := NewHealthCheck(st, logger.Discard()).Process(ctx, testRequest(), func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: 403, Body: body}, nil
	})
	require.NoError(t, err)

	msg, _, _ := st.Get(ctx, constants.KeySyncFatalError)
	assert.LessOrEqual(t, len(msg), constants.FatalErrorMaxLength)
}

func TestHealthCheck_ConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	hc := NewHealthCheck(st, logger.Discard())
	transport := &scripted{statuses: []int{500, 404, 429, 200, 502}}

	wants := []int64{1, 2, 3, 0, 1}
	for i, want := range wants {
		_, err := hc.Process(ctx, testRequest(), transport.handler())
		require.NoError(t, err)
		got, _, _ := state.GetInt(ctx, st, constants.KeySyncConsecutive)
		assert.Equal(t, want, got, "after call %d", i+1)
	}

	disabled, _ := state.IsSet(ctx, st, constants.KeySyncDisabled)
	assert.False(t, disabled, "non-auth failures never disable sync")
}

func TestHealthCheck_TransportError(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	boom := errors.New("no route to host")

	_, err := NewHealthCheck(st, logger.Discard()).Process(ctx, testRequest(), func(ctx context.Context, req *Request) (*Response, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	got, _, _ := state.GetInt(ctx, st, constants.KeySyncConsecutive)
	assert.Equal(t, int64(1), got)
}

func TestResetBreaker(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemoryStore()
	require.NoError(t, st.Set(ctx, constants.KeySyncDisabled, "1"))
	require.NoError(t, st.Set(ctx, constants.KeySyncFatalError, "HTTP 401"))
	require.NoError(t, st.Set(ctx, constants.KeySyncConsecutive, "4"))

	require.NoError(t, ResetBreaker(ctx, st))

	status, err := ReadBreaker(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, &BreakerStatus{}, status)

	transport := &scripted{statuses: []int{200}}
	_, err = NewHealthCheck(st, logger.Discard()).Process(ctx, testRequest(), transport.handler())
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)
}
