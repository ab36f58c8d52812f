package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"stylize/internal/infra"
)

// JobRunner processes a single job.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Pool runs queued jobs on a fixed number of workers. An id stays tracked
// from dispatch until its run returns, so repeated dispatches of the same
// job take no queue slots.
type Pool struct {
	runner  JobRunner
	workers int
	queue   chan string
	logger  *infra.Logger
	wg      sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewPool(runner JobRunner, workers, queueSize int, logger *infra.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Pool{
		runner:   runner,
		workers:  workers,
		queue:    make(chan string, queueSize),
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Start launches the workers. They exit when ctx is done; jobs still queued
// at that point stay pending in the store.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("pipeline: worker pool started")
}

// Dispatch queues jobID without blocking. It reports false when the queue is
// full. A job already queued or running is accepted without queueing it again.
func (p *Pool) Dispatch(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[jobID]; ok {
		return true
	}
	select {
	case p.queue <- jobID:
		p.inFlight[jobID] = struct{}{}
		return true
	default:
		return false
	}
}

func (p *Pool) done(jobID string) {
	p.mu.Lock()
	delete(p.inFlight, jobID)
	p.mu.Unlock()
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-p.queue:
			if err := p.runner.Run(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error().Err(err).Str("job_id", jobID).Int("worker", worker).Msg("pipeline: job run failed")
			}
			p.done(jobID)
		}
	}
}
