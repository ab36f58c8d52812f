package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"stylize/internal/domain"
	"stylize/internal/infra"
	"stylize/internal/prompt"
	"stylize/internal/providers/image"
	"stylize/internal/storage"
)

const failureWriteTimeout = 5 * time.Second

type ProcessorOptions struct {
	Store          domain.JobStore
	Generator      image.Generator
	Results        storage.ResultStore
	NegativePrompt string
	// KeepPayload stores the base64 image on the job row in addition to the
	// result URL.
	KeepPayload bool
	Logger      *infra.Logger
	Now         func() time.Time
}

// Processor drives one job from pending to a terminal state.
type Processor struct {
	store       domain.JobStore
	generator   image.Generator
	results     storage.ResultStore
	negative    string
	keepPayload bool
	logger      *infra.Logger
	now         func() time.Time
}

func NewProcessor(opts ProcessorOptions) (*Processor, error) {
	if opts.Store == nil || opts.Generator == nil || opts.Results == nil {
		return nil, errors.New("pipeline: processor requires store, generator and result storage")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Processor{
		store:       opts.Store,
		generator:   opts.Generator,
		results:     opts.Results,
		negative:    opts.NegativePrompt,
		keepPayload: opts.KeepPayload,
		logger:      logger,
		now:         now,
	}, nil
}

// Run processes jobID. A job that is no longer pending is left untouched and
// Run returns nil. Failures after the claim are recorded on the job and also
// returned.
func (p *Processor) Run(ctx context.Context, jobID string) error {
	ctx, span := infra.StartSpan(ctx, "pipeline.process", attribute.String("job.id", jobID))
	defer span.End()

	startedAt := p.now().UTC()
	claimed, err := p.store.Claim(ctx, jobID, startedAt)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		p.logger.Debug().Str("job_id", jobID).Msg("pipeline: job not pending, skipping")
		return nil
	}

	job, err := p.store.Get(ctx, jobID)
	if err != nil {
		p.fail(ctx, jobID, err)
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if err := p.execute(ctx, job, startedAt); err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			p.logger.Warn().Str("job_id", jobID).Msg("pipeline: job changed state during processing")
			return err
		}
		p.fail(ctx, jobID, err)
		span.RecordError(err)
		return err
	}
	return nil
}

func (p *Processor) execute(ctx context.Context, job *domain.GenerationJob, startedAt time.Time) error {
	size, ok := prompt.ParseSize(job.Size)
	if !ok {
		return domain.NewError(domain.KindInvalidPrompt, fmt.Sprintf("invalid size %q", job.Size))
	}
	if err := p.store.UpdateProgress(ctx, job.ID, domain.ProgressDispatched); err != nil {
		return err
	}

	res, err := p.generator.Generate(ctx, image.Request{
		JobID:          job.ID,
		Prompt:         job.Prompt,
		NegativePrompt: p.negative,
		Style:          job.Style,
		Width:          size.Width,
		Height:         size.Height,
		Seed:           job.Seed,
		UploadRef:      job.UploadRef,
	})
	if err != nil {
		return err
	}
	if err := p.store.UpdateProgress(ctx, job.ID, domain.ProgressGenerated); err != nil {
		return err
	}
	if err := p.store.UpdateProgress(ctx, job.ID, domain.ProgressUploading); err != nil {
		return err
	}

	url, err := p.results.Save(ctx, job.ID, res.Data, res.MIME)
	if err != nil {
		return domain.WrapError(domain.KindStorage, domain.CodeUploadError, fmt.Errorf("store result: %w", err))
	}

	result := domain.JobResult{
		URL:        url,
		Model:      res.Model,
		Seed:       resolveSeed(res, job),
		DurationMs: res.DurationMs,
	}
	if result.DurationMs <= 0 {
		result.DurationMs = p.now().Sub(startedAt).Milliseconds()
	}
	if p.keepPayload {
		result.Payload = base64.StdEncoding.EncodeToString(res.Data)
	}

	if err := p.store.MarkSucceeded(ctx, job.ID, result, p.now().UTC()); err != nil {
		if errors.Is(err, domain.ErrDuplicateResult) {
			return p.duplicateError(ctx, job)
		}
		return err
	}
	p.logger.Info().
		Str("job_id", job.ID).
		Str("model", result.Model).
		Int64("seed", result.Seed).
		Int64("duration_ms", result.DurationMs).
		Msg("pipeline: job succeeded")
	return nil
}

func (p *Processor) duplicateError(ctx context.Context, job *domain.GenerationJob) error {
	winner, err := p.store.FindSuccessByPromptHash(ctx, job.PromptHash)
	if err != nil {
		return domain.ErrDuplicateResult
	}
	return fmt.Errorf("%w: job %s already succeeded with this prompt", domain.ErrDuplicateResult, winner.ID)
}

// fail records err on the job. The write uses a context detached from ctx so
// a cancelled run still reaches a terminal state.
func (p *Processor) fail(ctx context.Context, jobID string, cause error) {
	failure := domain.JobFailure{Code: domain.CodeOf(cause), Message: cause.Error()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		failure = domain.JobFailure{
			Code:    domain.CodeTimeout,
			Message: "generation interrupted: " + ctxErr.Error(),
		}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := p.store.MarkFailed(writeCtx, jobID, failure, p.now().UTC()); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: record failure failed")
		return
	}
	p.logger.Warn().
		Str("job_id", jobID).
		Str("error_code", failure.Code).
		Str("error", failure.Message).
		Msg("pipeline: job failed")
}

// resolveSeed prefers the provider-reported seed, then the requested one,
// then a seed derived from the prompt.
func resolveSeed(res *image.Result, job *domain.GenerationJob) int64 {
	if res.Seed != nil {
		return *res.Seed
	}
	if job.Seed != nil {
		return *job.Seed
	}
	return prompt.LockedSeed(job.Prompt)
}
