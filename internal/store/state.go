package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StateRepo is the kv_state table backend of state.Store.
type StateRepo struct {
	db *DB
}

func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

func (r *StateRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, "SELECT value FROM kv_state WHERE key = ?", key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *StateRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Increment is a single statement, so concurrent writers never lose an update.
func (r *StateRepo) Increment(ctx context.Context, key string) (int64, error) {
	var n int64
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO kv_state (key, value, updated_at)
		VALUES (?, '1', ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(CAST(kv_state.value AS INTEGER) + 1 AS TEXT),
			updated_at = excluded.updated_at
		RETURNING CAST(value AS INTEGER)
	`, key, time.Now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return n, nil
}

func (r *StateRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM kv_state WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
