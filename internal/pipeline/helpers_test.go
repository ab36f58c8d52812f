package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stylize/internal/adapter/repo"
	"stylize/internal/domain"
	"stylize/internal/providers/image"
)

var testNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type stubGenerator struct {
	result *image.Result
	err    error
	calls  atomic.Int32
	last   image.Request
	// block makes Generate wait for ctx cancellation.
	block bool
}

func (g *stubGenerator) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	g.calls.Add(1)
	g.last = req
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	res := *g.result
	return &res, nil
}

type memResults struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (m *memResults) Save(ctx context.Context, jobID string, data []byte, mime string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[jobID] = data
	return "mem://" + jobID, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	ids  []string
	full bool
	max  int
}

func (d *recordingDispatcher) Dispatch(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.full || (d.max > 0 && len(d.ids) >= d.max) {
		return false
	}
	d.ids = append(d.ids, jobID)
	return true
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

// progressStore records every progress checkpoint written.
type progressStore struct {
	*repo.MemoryJobRepository
	mu       sync.Mutex
	progress []int
}

func (s *progressStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
	return s.MemoryJobRepository.UpdateProgress(ctx, id, progress)
}

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("job-%d", n.Add(1)) }
}

func newTestService(t *testing.T, store domain.JobStore, limits Limits, d Dispatcher, cache StatusCache) *Service {
	t.Helper()
	svc, err := NewService(ServiceOptions{
		Store:      store,
		Admission:  NewAdmission(store, limits, fixedNow),
		Dispatcher: d,
		Cache:      cache,
		Now:        fixedNow,
		NewID:      sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func newTestProcessor(t *testing.T, store domain.JobStore, gen image.Generator, results *memResults) *Processor {
	t.Helper()
	p, err := NewProcessor(ProcessorOptions{
		Store:          store,
		Generator:      gen,
		Results:        results,
		NegativePrompt: "blurry",
		Now:            fixedNow,
	})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func seedPtr(v int64) *int64 { return &v }

func okGenerator() *stubGenerator {
	return &stubGenerator{result: &image.Result{
		Data:       []byte("png"),
		MIME:       "image/png",
		Seed:       seedPtr(4242),
		Model:      "test-model",
		DurationMs: 1500,
	}}
}

func mustGet(t *testing.T, store domain.JobStore, id string) *domain.GenerationJob {
	t.Helper()
	job, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return job
}

func wantKind(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want kind of %v", err, target)
	}
}
