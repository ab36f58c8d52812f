package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stylize/internal/domain"
	"stylize/internal/infra"
	"stylize/internal/sqlinline"
)

const successHashConstraint = "generation_jobs_success_hash_key"

// JobRepositoryPG implements domain.JobStore on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new pending job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.UserID,
		job.UploadRef,
		job.Prompt,
		job.PromptHash,
		job.Style,
		job.Size,
		job.Seed,
		job.LockSeed,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert job: %w", err)
	}
	return nil
}

// Get fetches a job by its identifier. Ids that are not uuids cannot exist
// and report ErrNotFound without a query.
func (r *JobRepositoryPG) Get(ctx context.Context, id string) (*domain.GenerationJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJobByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get job: %w", err)
	}
	return job, nil
}

// FindSuccessByPromptHash returns the successful job for hash, if any.
func (r *JobRepositoryPG) FindSuccessByPromptHash(ctx context.Context, hash string) (*domain.GenerationJob, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectSuccessJobByPromptHash, hash))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: find by hash: %w", err)
	}
	return job, nil
}

func (r *JobRepositoryPG) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountJobsCreatedSince, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo: count recent jobs: %w", err)
	}
	return n, nil
}

func (r *JobRepositoryPG) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountActiveJobs, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo: count active jobs: %w", err)
	}
	return n, nil
}

// ListStalePending returns ids of pending jobs created before the cutoff, oldest first.
func (r *JobRepositoryPG) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStalePendingJobs, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list stale pending: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo: scan stale pending: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *JobRepositoryPG) Claim(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QClaimGenerationJob, id, startedAt)
	if err != nil {
		return false, fmt.Errorf("repo: claim job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, id string, progress int) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationJobProgress, id, progress)
	if err != nil {
		return fmt.Errorf("repo: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

// MarkSucceeded records the result. A concurrent success with the same
// prompt hash surfaces as domain.ErrDuplicateResult.
func (r *JobRepositoryPG) MarkSucceeded(ctx context.Context, id string, result domain.JobResult, finishedAt time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationJobSucceeded,
		id,
		result.URL,
		result.Payload,
		result.Model,
		result.Seed,
		result.DurationMs,
		finishedAt,
	)
	if err != nil {
		if infra.IsUniqueViolation(err, successHashConstraint) {
			return domain.ErrDuplicateResult
		}
		return fmt.Errorf("repo: mark succeeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

func (r *JobRepositoryPG) MarkFailed(ctx context.Context, id string, failure domain.JobFailure, finishedAt time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationJobFailed, id, failure.Message, failure.Code, finishedAt)
	if err != nil {
		return fmt.Errorf("repo: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job   domain.GenerationJob
		state string
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.UploadRef,
		&job.Prompt,
		&job.PromptHash,
		&job.Style,
		&job.Size,
		&job.Seed,
		&job.LockSeed,
		&state,
		&job.Progress,
		&job.ResultURL,
		&job.ResultPayload,
		&job.Model,
		&job.DurationMs,
		&job.ErrorMessage,
		&job.ErrorCode,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	); err != nil {
		return nil, err
	}
	job.State = domain.JobState(state)
	return &job, nil
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
