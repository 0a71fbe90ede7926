package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/discogs"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/domain"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/metrics"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/store"
)

const fieldCacheTTL = 24 * time.Hour

// PushResult summarizes one batch: Processed jobs succeeded, Failed jobs had
// a failed attempt (whether or not they are now permanently failed).
type PushResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type PushOptions struct {
	// PushNotes enables writing the free-text notes field.
	PushNotes   bool
	BatchSize   int
	MaxAttempts int
}

// PushProcessor drains pending push jobs against the remote API.
type PushProcessor struct {
	db     *store.DB
	api    CatalogAPI
	fields *discogs.FieldResolver
	opts   PushOptions
	logger *logger.Logger
}

func NewPushProcessor(db *store.DB, api CatalogAPI, opts PushOptions, log *logger.Logger) *PushProcessor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = constants.PushBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = constants.PushMaxAttempts
	}
	return &PushProcessor{
		db:     db,
		api:    api,
		fields: discogs.NewFieldResolver(api, db, fieldCacheTTL),
		opts:   opts,
		logger: log.WithComponent("push"),
	}
}

// RunBatch claims up to one batch of pending jobs and processes them oldest
// first. Claimed jobs belong to this run alone, so concurrent batches never
// push the same job twice. An open circuit breaker ends the batch and hands
// the unprocessed jobs back without charging them an attempt.
func (p *PushProcessor) RunBatch(ctx context.Context) (*PushResult, error) {
	cutoff := time.Now().UTC().Add(-constants.PushClaimTimeout)
	if n, err := p.db.RecoverStalePushJobs(ctx, cutoff); err != nil {
		return nil, fmt.Errorf("recover stale push jobs: %w", err)
	} else if n > 0 {
		p.logger.Warn("Recovered stale push jobs", "count", n)
	}

	jobs, err := p.db.ClaimPushJobs(ctx, p.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim push jobs: %w", err)
	}
	result := &PushResult{}
	if len(jobs) == 0 {
		return result, nil
	}

	log := p.logger.WithRun(uuid.New().String(), "push")
	start := time.Now()
	log.Info("Push batch started", "jobs", len(jobs))

	b := &pushBatch{p: p, log: log, fieldIDs: map[string]discogs.FieldIDs{}}
	var runErr error
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			runErr = err
			p.release(ctx, log, jobs[i:])
			break
		}

		err := b.dispatch(ctx, job)
		if errors.Is(err, pipeline.ErrSyncDisabled) {
			log.Warn("Sync disabled, stopping push batch", "job_id", job.ID)
			runErr = err
			p.release(ctx, log, jobs[i:])
			break
		}
		if err == nil {
			if err := p.db.MarkPushJobDone(ctx, job.ID); err != nil {
				runErr = fmt.Errorf("mark push job %d done: %w", job.ID, err)
				p.release(ctx, log, jobs[i+1:])
				break
			}
			result.Processed++
			metrics.RecordPushJob(string(job.Action), "done")
			log.Info("Push job done", "job_id", job.ID, "action", job.Action, "release_id", job.ReleaseID)
			continue
		}

		result.Failed++
		msg := domain.Truncate(err.Error(), constants.LastErrorMaxLength)
		status, markErr := p.db.MarkPushJobFailed(ctx, job.ID, msg, p.opts.MaxAttempts)
		if markErr != nil {
			runErr = markErr
			p.release(ctx, log, jobs[i+1:])
			break
		}
		outcome := "retry"
		if status == domain.PushStatusFailed {
			outcome = "failed"
		}
		metrics.RecordPushJob(string(job.Action), outcome)
		log.Warn("Push job failed", "job_id", job.ID, "action", job.Action, "attempts", job.Attempts+1, "status", status, "error", err)
	}

	metrics.RecordSyncRun("push", time.Since(start), result.Processed, runErr)
	log.Info("Push batch finished", "processed", result.Processed, "failed", result.Failed)
	return result, runErr
}

// release hands claimed jobs back to the queue. It runs even when ctx is
// already cancelled.
func (p *PushProcessor) release(ctx context.Context, log *logger.Logger, jobs []*domain.PushJob) {
	ctx = context.WithoutCancel(ctx)
	for _, job := range jobs {
		if _, err := p.db.ReleasePushJob(ctx, job.ID); err != nil {
			log.Error("Failed to release push job", "job_id", job.ID, "error", err)
		}
	}
}

// pushBatch carries per-batch state, such as resolved field ids per user.
type pushBatch struct {
	p        *PushProcessor
	log      *logger.Logger
	fieldIDs map[string]discogs.FieldIDs
}

func (b *pushBatch) dispatch(ctx context.Context, job *domain.PushJob) error {
	api := b.p.api
	switch job.Action {
	case domain.PushUpdateCollection:
		return b.updateCollection(ctx, job)
	case domain.PushAddWant:
		return api.AddWant(ctx, job.Username, job.ReleaseID, job.Notes, job.Rating)
	case domain.PushRemoveWant:
		return api.RemoveWant(ctx, job.Username, job.ReleaseID)
	case domain.PushAddCollection:
		_, err := api.AddToCollection(ctx, job.Username, constants.DefaultFolderID, job.ReleaseID)
		return err
	case domain.PushWantToCollection:
		if _, err := api.AddToCollection(ctx, job.Username, constants.DefaultFolderID, job.ReleaseID); err != nil {
			return fmt.Errorf("add to collection: %w", err)
		}
		// No compensation: if this fails the release stays on the wantlist
		// while already being in the remote collection.
		if err := api.RemoveWant(ctx, job.Username, job.ReleaseID); err != nil {
			return fmt.Errorf("remove from wantlist after collection add: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown push action %q", job.Action)
	}
}

func (b *pushBatch) updateCollection(ctx context.Context, job *domain.PushJob) error {
	if job.InstanceID == nil {
		return errors.New("update_collection job has no instance id")
	}

	folderID := int64(constants.DefaultFolderID)
	releaseID := job.ReleaseID
	item, err := b.p.db.GetCollectionItem(ctx, *job.InstanceID)
	if err != nil {
		return fmt.Errorf("load collection item %d: %w", *job.InstanceID, err)
	}
	if item != nil {
		if item.FolderID > 0 {
			folderID = item.FolderID
		}
		if releaseID == 0 {
			releaseID = item.ReleaseID
		}
	}

	ids := b.resolveFields(ctx, job.Username)
	fields := map[int]string{}
	if job.MediaCondition != nil {
		fields[ids.MediaCondition] = *job.MediaCondition
	}
	if job.SleeveCondition != nil {
		fields[ids.SleeveCondition] = *job.SleeveCondition
	}
	if job.Notes != nil && b.p.opts.PushNotes {
		fields[ids.Notes] = *job.Notes
	}

	return b.p.api.UpdateInstance(ctx, discogs.InstanceUpdate{
		Username:   job.Username,
		FolderID:   folderID,
		ReleaseID:  releaseID,
		InstanceID: *job.InstanceID,
		Rating:     job.Rating,
		Fields:     fields,
	})
}

// resolveFields looks the user's field ids up once per batch. Lookup
// failures fall back to the default ids.
func (b *pushBatch) resolveFields(ctx context.Context, username string) discogs.FieldIDs {
	if ids, ok := b.fieldIDs[username]; ok {
		return ids
	}

	fallback := discogs.FieldIDs{
		MediaCondition:  constants.FieldMediaCondition,
		SleeveCondition: constants.FieldSleeveCondition,
		Notes:           constants.FieldNotes,
	}
	ids := fallback
	fields, err := b.p.fields.Fields(ctx, username)
	if err != nil {
		b.log.Warn("Could not resolve collection fields, using defaults", "username", username, "error", err)
	} else {
		ids = discogs.ResolveFieldIDs(fields, fallback)
	}
	b.fieldIDs[username] = ids
	return ids
}
