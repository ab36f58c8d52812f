package domain

import (
	"context"
	"time"
)

// JobStore persists generation jobs. Transition methods are conditional on
// the job's current state and return ErrStaleTransition when it does not match.
type JobStore interface {
	Create(ctx context.Context, job *GenerationJob) error
	Get(ctx context.Context, id string) (*GenerationJob, error)
	FindSuccessByPromptHash(ctx context.Context, hash string) (*GenerationJob, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountActive(ctx context.Context, userID string) (int, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)

	// Claim moves a pending job to running. It reports false when the job
	// was not pending.
	Claim(ctx context.Context, id string, startedAt time.Time) (bool, error)
	UpdateProgress(ctx context.Context, id string, progress int) error
	MarkSucceeded(ctx context.Context, id string, result JobResult, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, failure JobFailure, finishedAt time.Time) error
}
