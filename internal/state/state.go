// Package state holds the small string-keyed store shared by the sync engines:
// rate-limiter counters, daily quotas, cursors and the circuit-breaker flag.
package state

import (
	"context"
	"strconv"
	"time"
)

// Store is a persistent string map with atomic increment. Implementations
// must tolerate concurrent use from several goroutines and processes.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Increment adds one to the integer at key (missing counts as 0) and returns the new value.
	Increment(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// GetInt reads key as an integer. Missing or non-numeric values report ok=false.
func GetInt(ctx context.Context, s Store, key string) (int64, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetInt stores n at key.
func SetInt(ctx context.Context, s Store, key string, n int64) error {
	return s.Set(ctx, key, strconv.FormatInt(n, 10))
}

// GetTime reads key as unix epoch seconds.
func GetTime(ctx context.Context, s Store, key string) (time.Time, bool, error) {
	n, ok, err := GetInt(ctx, s, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.Unix(n, 0), true, nil
}

// SetTime stores t at key as unix epoch seconds.
func SetTime(ctx context.Context, s Store, key string, t time.Time) error {
	return SetInt(ctx, s, key, t.Unix())
}

// IsSet reports whether a flag key holds a truthy value.
func IsSet(ctx context.Context, s Store, key string) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	switch raw {
	case "", "0", "false":
		return false, nil
	}
	return true, nil
}
