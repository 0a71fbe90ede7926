package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
)

// ErrJobNotClaimed is returned when a job is completed by a run that no
// longer holds it.
var ErrJobNotClaimed = errors.New("push job is not running")

const pushColumns = `id, instance_id, release_id, username, action, rating, notes, media_condition,
	sleeve_condition, status, attempts, last_error, created_at, updated_at`

func (db *DB) CreatePushJob(ctx context.Context, job *domain.PushJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = domain.PushStatusPending
	}

	query := `INSERT INTO push_queue (instance_id, release_id, username, action, rating, notes,
			media_condition, sleeve_condition, status, attempts, last_error, created_at, updated_at)
		VALUES (:instance_id, :release_id, :username, :action, :rating, :notes,
			:media_condition, :sleeve_condition, :status, :attempts, :last_error, :created_at, :updated_at)`

	res, err := db.NamedExecContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("failed to create push job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read push job id: %w", err)
	}
	job.ID = id
	return nil
}

func (db *DB) GetPushJob(ctx context.Context, id int64) (*domain.PushJob, error) {
	query := `SELECT ` + pushColumns + ` FROM push_queue WHERE id = ?`

	job := &domain.PushJob{}
	err := db.GetContext(ctx, job, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetPendingPushJob finds the pending job a new save with the same target
// would coalesce into: keyed by (instance id, action), or by
// (username, release id, action) for jobs without an instance.
func (db *DB) GetPendingPushJob(ctx context.Context, job *domain.PushJob) (*domain.PushJob, error) {
	var (
		query string
		args  []interface{}
	)
	if job.InstanceID != nil {
		query = `SELECT ` + pushColumns + ` FROM push_queue
			WHERE instance_id = ? AND action = ? AND status = 'pending' LIMIT 1`
		args = []interface{}{*job.InstanceID, job.Action}
	} else {
		query = `SELECT ` + pushColumns + ` FROM push_queue
			WHERE instance_id IS NULL AND username = ? AND release_id = ? AND action = ? AND status = 'pending' LIMIT 1`
		args = []interface{}{job.Username, job.ReleaseID, job.Action}
	}

	existing := &domain.PushJob{}
	err := db.GetContext(ctx, existing, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// UpdatePushJobPayload overwrites the payload of a pending job with a newer
// save. It reports false when the job is no longer pending, e.g. because a
// push run claimed it in the meantime.
func (db *DB) UpdatePushJobPayload(ctx context.Context, id int64, job *domain.PushJob) (bool, error) {
	query := `UPDATE push_queue SET release_id = ?, rating = ?, notes = ?, media_condition = ?,
		sleeve_condition = ?, updated_at = ? WHERE id = ? AND status = 'pending'`
	res, err := db.ExecContext(ctx, query, job.ReleaseID, job.Rating, job.Notes, job.MediaCondition,
		job.SleeveCondition, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClaimPushJobs atomically moves up to limit pending jobs to running and
// returns them oldest first. A claimed job is never handed to a second run.
func (db *DB) ClaimPushJobs(ctx context.Context, limit int) ([]*domain.PushJob, error) {
	query := `UPDATE push_queue SET status = 'running', updated_at = ?
		WHERE id IN (
			SELECT id FROM push_queue WHERE status = 'pending' ORDER BY created_at ASC, id ASC LIMIT ?
		)
		RETURNING ` + pushColumns

	var jobs []*domain.PushJob
	if err := db.SelectContext(ctx, &jobs, query, time.Now().UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to claim push jobs: %w", err)
	}
	// RETURNING order is unspecified.
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// ListPushJobs lists jobs newest first, optionally filtered by status.
func (db *DB) ListPushJobs(ctx context.Context, status domain.PushStatus, limit int) ([]*domain.PushJob, error) {
	var jobs []*domain.PushJob
	if status == "" {
		query := `SELECT ` + pushColumns + ` FROM push_queue ORDER BY created_at DESC, id DESC LIMIT ?`
		err := db.SelectContext(ctx, &jobs, query, limit)
		return jobs, err
	}

	query := `SELECT ` + pushColumns + ` FROM push_queue WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	err := db.SelectContext(ctx, &jobs, query, status, limit)
	return jobs, err
}

// MarkPushJobDone completes a claimed job. Jobs that are not running are left
// untouched and ErrJobNotClaimed is returned.
func (db *DB) MarkPushJobDone(ctx context.Context, id int64) error {
	query := `UPDATE push_queue SET status = 'done', attempts = attempts + 1, last_error = NULL, updated_at = ?
		WHERE id = ? AND status = 'running'`
	res, err := db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %d: %w", id, ErrJobNotClaimed)
	}
	return nil
}

// supersededBy matches a pending job with the same coalescing target as the
// push_queue row being updated.
const supersededBy = `EXISTS (
	SELECT 1 FROM push_queue p
	WHERE p.status = 'pending' AND p.id != push_queue.id AND p.action = push_queue.action
		AND ((push_queue.instance_id IS NOT NULL AND p.instance_id = push_queue.instance_id)
			OR (push_queue.instance_id IS NULL AND p.instance_id IS NULL
				AND p.username = push_queue.username AND p.release_id = push_queue.release_id))
)`

// MarkPushJobFailed records a failed attempt on a claimed job. The job turns
// failed once its attempts reach maxAttempts and goes back to pending
// otherwise. When a newer save for the same target is already pending, the
// claimed job is dropped in its favor instead of being requeued. The
// resulting status is returned.
func (db *DB) MarkPushJobFailed(ctx context.Context, id int64, msg string, maxAttempts int) (domain.PushStatus, error) {
	drop := `DELETE FROM push_queue WHERE id = ? AND status = 'running' AND attempts + 1 < ? AND ` + supersededBy
	res, err := db.ExecContext(ctx, drop, id, maxAttempts)
	if err != nil {
		return "", fmt.Errorf("failed to record push failure for job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return domain.PushStatusPending, nil
	}

	query := `UPDATE push_queue SET
			attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
			updated_at = ?
		WHERE id = ? AND status = 'running'
		RETURNING status`

	var status domain.PushStatus
	err = db.QueryRowxContext(ctx, query, msg, maxAttempts, time.Now().UTC(), id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("job %d: %w", id, ErrJobNotClaimed)
	}
	if err != nil {
		return "", fmt.Errorf("failed to record push failure for job %d: %w", id, err)
	}
	return status, nil
}

// ReleasePushJob hands a claimed job back to the queue without charging an
// attempt. It reports whether the job was running.
func (db *DB) ReleasePushJob(ctx context.Context, id int64) (bool, error) {
	drop := `DELETE FROM push_queue WHERE id = ? AND status = 'running' AND ` + supersededBy
	res, err := db.ExecContext(ctx, drop, id)
	if err != nil {
		return false, fmt.Errorf("failed to release push job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	query := `UPDATE push_queue SET status = 'pending', updated_at = ? WHERE id = ? AND status = 'running'`
	res, err = db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to release push job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecoverStalePushJobs releases running jobs claimed before cutoff, left
// behind by a run that died mid-batch.
func (db *DB) RecoverStalePushJobs(ctx context.Context, cutoff time.Time) (int, error) {
	var running []*domain.PushJob
	query := `SELECT ` + pushColumns + ` FROM push_queue WHERE status = 'running'`
	if err := db.SelectContext(ctx, &running, query); err != nil {
		return 0, err
	}

	recovered := 0
	for _, job := range running {
		if !job.UpdatedAt.Before(cutoff) {
			continue
		}
		ok, err := db.ReleasePushJob(ctx, job.ID)
		if err != nil {
			return recovered, err
		}
		if ok {
			recovered++
		}
	}
	return recovered, nil
}

// ResetPushJob moves a failed job back to pending with a fresh attempt budget.
func (db *DB) ResetPushJob(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE push_queue SET status = 'pending', attempts = 0, last_error = NULL, updated_at = ?
		WHERE id = ? AND status = 'failed'`
	res, err := db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) ClearDonePushJobs(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM push_queue WHERE status = 'done'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type PushStats struct {
	Pending int `db:"pending" json:"pending"`
	Running int `db:"running" json:"running"`
	Done    int `db:"done" json:"done"`
	Failed  int `db:"failed" json:"failed"`
}

func (db *DB) GetPushStats(ctx context.Context) (*PushStats, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) as pending,
		COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0) as running,
		COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0) as done,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed
	FROM push_queue`

	stats := &PushStats{}
	err := db.GetContext(ctx, stats, query)
	return stats, err
}
