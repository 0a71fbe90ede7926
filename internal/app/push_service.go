package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

var (
	ErrJobNotFound  = errors.New("push job not found")
	ErrJobNotFailed = errors.New("only failed push jobs can be retried")
	// ErrJobConflict means a pending job already covers the same target.
	ErrJobConflict = errors.New("a pending push job for the same target already exists")
	ErrInvalidJob  = errors.New("invalid push job")
)

// PushService is the queue-facing API used by the CLI and the operator routes.
type PushService struct {
	Repo   *store.DB
	Logger *logger.Logger
}

func NewPushService(repo *store.DB, log *logger.Logger) *PushService {
	return &PushService{Repo: repo, Logger: log.WithComponent("push_service")}
}

// Enqueue stores a pending job. A pending job for the same target (instance
// and action, or username, release and action when there is no instance)
// absorbs the new payload instead of a second row being added. Jobs already
// claimed by a push run are never modified, so a save made mid-push gets a
// job of its own.
func (s *PushService) Enqueue(ctx context.Context, job *domain.PushJob) (*domain.PushJob, error) {
	if err := validatePushJob(job); err != nil {
		return nil, err
	}

	var out *domain.PushJob
	err := s.Repo.RunInTx(ctx, func(tx *store.DB) error {
		existing, err := tx.GetPendingPushJob(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to check for pending job: %w", err)
		}

		if existing != nil {
			updated, err := tx.UpdatePushJobPayload(ctx, existing.ID, job)
			if err != nil {
				return err
			}
			if updated {
				out, err = tx.GetPushJob(ctx, existing.ID)
				if err == nil {
					s.Logger.Info("Push job coalesced", "job_id", existing.ID, "action", job.Action, "release_id", job.ReleaseID)
				}
				return err
			}
		}

		job.Status = domain.PushStatusPending
		job.Attempts = 0
		job.LastError = nil
		if err := tx.CreatePushJob(ctx, job); err != nil {
			return err
		}
		out = job
		s.Logger.Info("Push job enqueued", "job_id", job.ID, "action", job.Action, "release_id", job.ReleaseID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validatePushJob(job *domain.PushJob) error {
	if !job.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidJob, job.Action)
	}
	if job.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidJob)
	}
	if job.ReleaseID <= 0 {
		return fmt.Errorf("%w: %s needs a release id", ErrInvalidJob, job.Action)
	}
	if job.Action == domain.PushUpdateCollection && job.InstanceID == nil {
		return fmt.Errorf("%w: update_collection needs an instance id", ErrInvalidJob)
	}
	if job.Rating != nil && (*job.Rating < 0 || *job.Rating > 5) {
		return fmt.Errorf("%w: rating %d out of range 0-5", ErrInvalidJob, *job.Rating)
	}
	return nil
}

// ListJobs lists jobs newest first. An empty status lists all of them.
func (s *PushService) ListJobs(ctx context.Context, status domain.PushStatus, limit int) ([]*domain.PushJob, error) {
	return s.Repo.ListPushJobs(ctx, status, limit)
}

func (s *PushService) GetJob(ctx context.Context, id int64) (*domain.PushJob, error) {
	return s.Repo.GetPushJob(ctx, id)
}

// Retry moves a failed job back to pending with a fresh attempt budget.
func (s *PushService) Retry(ctx context.Context, id int64) error {
	err := s.Repo.RunInTx(ctx, func(tx *store.DB) error {
		job, err := tx.GetPushJob(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}
		if job == nil {
			return ErrJobNotFound
		}
		if job.Status != domain.PushStatusFailed {
			return ErrJobNotFailed
		}

		pending, err := tx.GetPendingPushJob(ctx, job)
		if err != nil {
			return err
		}
		if pending != nil {
			return fmt.Errorf("%w (job %d)", ErrJobConflict, pending.ID)
		}

		reset, err := tx.ResetPushJob(ctx, id)
		if err != nil {
			return err
		}
		if !reset {
			return ErrJobNotFailed
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.Info("Push job retried", "job_id", id)
	return nil
}

func (s *PushService) Stats(ctx context.Context) (*store.PushStats, error) {
	return s.Repo.GetPushStats(ctx)
}

func (s *PushService) ClearDone(ctx context.Context) (int64, error) {
	n, err := s.Repo.ClearDonePushJobs(ctx)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("Cleared finished push jobs", "count", n)
	return n, nil
}
