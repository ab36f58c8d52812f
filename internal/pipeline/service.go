package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"stylize/internal/domain"
	"stylize/internal/infra"
	"stylize/internal/prompt"
)

// Dispatcher hands a created job to background processing. It reports false
// when the job could not be queued; the job then stays pending.
type Dispatcher interface {
	Dispatch(jobID string) bool
}

// StatusCache stores terminal job statuses.
type StatusCache interface {
	Get(ctx context.Context, jobID string) (*domain.JobStatus, bool)
	Set(ctx context.Context, status domain.JobStatus)
}

// GenerationRequest is a new image generation submission.
type GenerationRequest struct {
	UserID    string
	Prompt    string
	Style     string
	Size      string
	UploadRef string
}

// RegenerationRequest derives a new job from a successful one.
type RegenerationRequest struct {
	UserID        string
	OriginalJobID string
	PromptDelta   string
	LockSeed      bool
}

type ServiceOptions struct {
	Store      domain.JobStore
	Admission  *Admission
	Assembler  *prompt.Assembler
	Dispatcher Dispatcher
	// Cache is optional.
	Cache  StatusCache
	Logger *infra.Logger
	Now    func() time.Time
	NewID  func() string
}

// Service admits generation requests and answers status queries.
type Service struct {
	store      domain.JobStore
	admission  *Admission
	assembler  *prompt.Assembler
	dispatcher Dispatcher
	cache      StatusCache
	logger     *infra.Logger
	now        func() time.Time
	newID      func() string
	locks      userLocks
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: job store is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("pipeline: dispatcher is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	admission := opts.Admission
	if admission == nil {
		admission = NewAdmission(opts.Store, DefaultLimits(), now)
	}
	assembler := opts.Assembler
	if assembler == nil {
		assembler = prompt.NewAssembler(nil, nil)
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Service{
		store:      opts.Store,
		admission:  admission,
		assembler:  assembler,
		dispatcher: opts.Dispatcher,
		cache:      opts.Cache,
		logger:     logger,
		now:        now,
		newID:      newID,
	}, nil
}

// SubmitGeneration validates and admits req and returns the id of the job
// that will hold the result. An identical prompt that already succeeded
// returns the existing job id.
func (s *Service) SubmitGeneration(ctx context.Context, req GenerationRequest) (string, error) {
	ctx, span := infra.StartSpan(ctx, "pipeline.submit_generation", attribute.String("user.id", req.UserID))
	defer span.End()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return "", domain.NewError(domain.KindAccessDenied, "missing user id")
	}
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = domain.DefaultStyle
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = domain.DefaultSize
	}
	if err := prompt.Validate(req.Prompt); err != nil {
		return "", err
	}
	if _, ok := prompt.ParseSize(size); !ok {
		return "", domain.NewError(domain.KindInvalidPrompt, fmt.Sprintf("invalid size %q", size))
	}
	final, err := s.assembler.Assemble(req.Prompt, style, true)
	if err != nil {
		return "", err
	}

	return s.admit(ctx, &domain.GenerationJob{
		UserID:    userID,
		UploadRef: strings.TrimSpace(req.UploadRef),
		Prompt:    final,
		Style:     style,
		Size:      size,
	})
}

// SubmitRegeneration creates a job whose prompt is the original's prompt with
// req.PromptDelta applied. The original must belong to the caller and have
// succeeded.
func (s *Service) SubmitRegeneration(ctx context.Context, req RegenerationRequest) (string, error) {
	ctx, span := infra.StartSpan(ctx, "pipeline.submit_regeneration",
		attribute.String("user.id", req.UserID),
		attribute.String("job.original_id", req.OriginalJobID),
	)
	defer span.End()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return "", domain.NewError(domain.KindAccessDenied, "missing user id")
	}
	original, err := s.store.Get(ctx, req.OriginalJobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.NewError(domain.KindNotFound, "original job not found")
		}
		return "", fmt.Errorf("load original job: %w", err)
	}
	if original.UserID != userID {
		return "", domain.NewError(domain.KindAccessDenied, "access denied")
	}
	if original.State != domain.JobStateSuccess {
		return "", domain.NewError(domain.KindInvalidState, "can only regenerate successful jobs")
	}

	derived := prompt.ApplyDelta(original.Prompt, req.PromptDelta)
	if err := prompt.Validate(derived); err != nil {
		return "", err
	}
	if safe, reason := s.assembler.Filter().Check(derived); !safe {
		return "", domain.NewError(domain.KindSafetyViolation, reason)
	}

	job := &domain.GenerationJob{
		UserID:    userID,
		UploadRef: original.UploadRef,
		Prompt:    derived,
		Style:     original.Style,
		Size:      original.Size,
		LockSeed:  req.LockSeed,
	}
	if req.LockSeed {
		seed := prompt.LockedSeed(original.Prompt)
		if original.Seed != nil {
			seed = *original.Seed
		}
		job.Seed = &seed
	}
	return s.admit(ctx, job)
}

// admit applies the per-user limits, short-circuits on an existing success
// with the same prompt hash, then creates and dispatches job.
func (s *Service) admit(ctx context.Context, job *domain.GenerationJob) (string, error) {
	unlock := s.locks.lock(job.UserID)
	defer unlock()

	if err := s.admission.Admit(ctx, job.UserID); err != nil {
		return "", err
	}

	job.PromptHash = prompt.Hash(job.Prompt)
	existing, err := s.store.FindSuccessByPromptHash(ctx, job.PromptHash)
	switch {
	case err == nil:
		s.logger.Info().
			Str("job_id", existing.ID).
			Str("user_id", job.UserID).
			Msg("pipeline: reusing successful job")
		return existing.ID, nil
	case !errors.Is(err, domain.ErrNotFound):
		return "", fmt.Errorf("dedup lookup: %w", err)
	}

	job.ID = s.newID()
	job.State = domain.JobStatePending
	job.Progress = domain.ProgressQueued
	job.CreatedAt = s.now().UTC()
	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	log := s.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()
	if !s.dispatcher.Dispatch(job.ID) {
		log.Warn().Msg("pipeline: queue full, job left pending")
	} else {
		log.Info().Str("style", job.Style).Str("size", job.Size).Msg("pipeline: job queued")
	}
	return job.ID, nil
}

// GetStatus returns the caller-facing status of a job. Any caller may read
// any job.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	if s.cache != nil {
		if st, ok := s.cache.Get(ctx, jobID); ok {
			return st, nil
		}
	}
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "job not found")
		}
		return nil, fmt.Errorf("load job: %w", err)
	}
	st := job.Status()
	if s.cache != nil && st.State.Terminal() {
		s.cache.Set(ctx, st)
	}
	return &st, nil
}
