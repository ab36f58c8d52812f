package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"stylize/internal/domain"
	"stylize/internal/infra"
)

const sweepBatch = 100

// Sweeper re-dispatches jobs that have been pending longer than staleAfter.
// Those are jobs dropped by a full queue or left behind by a restart.
type Sweeper struct {
	store      domain.JobStore
	dispatcher Dispatcher
	interval   time.Duration
	staleAfter time.Duration
	logger     *infra.Logger
	now        func() time.Time
}

func NewSweeper(store domain.JobStore, dispatcher Dispatcher, interval, staleAfter time.Duration, logger *infra.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Run sweeps once immediately and then on every interval until ctx is done.
//
// TODO: fail jobs stuck in running after a crash; the store has no query for
// them yet.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if n, err := s.SweepOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Msg("pipeline: sweep failed")
		} else if n > 0 {
			s.logger.Info().Int("jobs", n).Msg("pipeline: re-dispatched stale jobs")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce dispatches one batch of stale pending jobs and returns how many
// were queued. It stops early when the dispatcher is full.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.store.ListStalePending(ctx, s.now().Add(-s.staleAfter), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}
	queued := 0
	for _, id := range ids {
		if !s.dispatcher.Dispatch(id) {
			break
		}
		queued++
	}
	return queued, nil
}
