package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"stylize/internal/domain"
)

// MemoryJobRepository is a process-local domain.JobStore. It applies the
// same conditional transitions and success-hash uniqueness as the
// PostgreSQL schema.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.GenerationJob
	// successByHash indexes success rows by prompt hash.
	successByHash map[string]string
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs:          map[string]*domain.GenerationJob{},
		successByHash: map[string]string{},
	}
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return domain.NewError(domain.KindInvalidState, "job "+job.ID+" already exists")
	}
	stored := clone(job)
	stored.State = domain.JobStatePending
	stored.Progress = domain.ProgressQueued
	r.jobs[job.ID] = stored
	return nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, id string) (*domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(job), nil
}

func (r *MemoryJobRepository) FindSuccessByPromptHash(ctx context.Context, hash string) (*domain.GenerationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.successByHash[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(r.jobs[id]), nil
}

func (r *MemoryJobRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, job := range r.jobs {
		if job.UserID == userID && !job.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryJobRepository) CountActive(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, job := range r.jobs {
		if job.UserID == userID && job.State.Active() {
			n++
		}
	}
	return n, nil
}

func (r *MemoryJobRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	var stale []*domain.GenerationJob
	for _, job := range r.jobs {
		if job.State == domain.JobStatePending && job.CreatedAt.Before(createdBefore) {
			stale = append(stale, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]string, len(stale))
	for i, job := range stale {
		ids[i] = job.ID
	}
	return ids, nil
}

func (r *MemoryJobRepository) Claim(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.State != domain.JobStatePending {
		return false, nil
	}
	job.State = domain.JobStateRunning
	job.Progress = domain.ProgressPreprocessed
	job.StartedAt = &startedAt
	return true, nil
}

func (r *MemoryJobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.State != domain.JobStateRunning {
		return domain.ErrStaleTransition
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (r *MemoryJobRepository) MarkSucceeded(ctx context.Context, id string, result domain.JobResult, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.State != domain.JobStateRunning {
		return domain.ErrStaleTransition
	}
	if winner, taken := r.successByHash[job.PromptHash]; taken && winner != id {
		return domain.ErrDuplicateResult
	}
	seed := result.Seed
	dur := result.DurationMs
	job.State = domain.JobStateSuccess
	job.Progress = domain.ProgressDone
	job.ResultURL = result.URL
	job.ResultPayload = result.Payload
	job.Model = result.Model
	job.Seed = &seed
	job.DurationMs = &dur
	job.ErrorMessage = ""
	job.ErrorCode = ""
	job.FinishedAt = &finishedAt
	r.successByHash[job.PromptHash] = id
	return nil
}

func (r *MemoryJobRepository) MarkFailed(ctx context.Context, id string, failure domain.JobFailure, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || !job.State.Active() {
		return domain.ErrStaleTransition
	}
	job.State = domain.JobStateFailed
	job.ErrorMessage = failure.Message
	job.ErrorCode = failure.Code
	job.FinishedAt = &finishedAt
	return nil
}

func clone(job *domain.GenerationJob) *domain.GenerationJob {
	cp := *job
	if job.Seed != nil {
		v := *job.Seed
		cp.Seed = &v
	}
	if job.DurationMs != nil {
		v := *job.DurationMs
		cp.DurationMs = &v
	}
	if job.StartedAt != nil {
		v := *job.StartedAt
		cp.StartedAt = &v
	}
	if job.FinishedAt != nil {
		v := *job.FinishedAt
		cp.FinishedAt = &v
	}
	return &cp
}

var _ domain.JobStore = (*MemoryJobRepository)(nil)
