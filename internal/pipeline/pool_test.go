package pipeline

import (
	"context"
	"testing"
	"time"

	"stylize/internal/adapter/repo"
	"stylize/internal/domain"
)

type chanRunner struct {
	ran chan string
}

func (r *chanRunner) Run(ctx context.Context, jobID string) error {
	r.ran <- jobID
	return nil
}

func TestPoolDispatchDoesNotBlockWhenFull(t *testing.T) {
	p := NewPool(&chanRunner{ran: make(chan string, 4)}, 1, 1, nil)
	if !p.Dispatch("a") {
		t.Fatalf("first dispatch rejected")
	}
	if p.Dispatch("b") {
		t.Fatalf("dispatch into full queue accepted")
	}
}

func TestPoolRunsQueuedJobs(t *testing.T) {
	runner := &chanRunner{ran: make(chan string, 4)}
	p := NewPool(runner, 2, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		if !p.Dispatch(id) {
			t.Fatalf("dispatch %s rejected", id)
		}
	}
	seen := map[string]bool{}
	for len(seen) < 3 {
		select {
		case id := <-runner.ran:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("jobs not processed, seen %v", seen)
		}
	}

	cancel()
	stopped := make(chan struct{})
	go func() { p.Wait(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("workers did not exit")
	}
}

func TestPoolWithProcessorEndToEnd(t *testing.T) {
	store := repo.NewMemoryJobRepository()
	proc := newTestProcessor(t, store, okGenerator(), &memResults{})
	p := NewPool(proc, 2, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	svc := newTestService(t, store, DefaultLimits(), p, nil)
	id, err := svc.SubmitGeneration(ctx, GenerationRequest{UserID: "u1", Prompt: "a cat in a garden"})
	if err != nil {
		t.Fatalf("SubmitGeneration: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		st, err := svc.GetStatus(ctx, id)
		if err != nil {
			t.Fatalf("GetStatus: %v", err)
		}
		if st.State == domain.JobStateSuccess {
			break
		}
		if st.State == domain.JobStateFailed {
			t.Fatalf("job failed: %s", st.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck in %s", st.State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPoolDispatchSkipsQueuedJob(t *testing.T) {
	p := NewPool(&chanRunner{ran: make(chan string, 4)}, 1, 2, nil)
	for i := 0; i < 3; i++ {
		if !p.Dispatch("a") {
			t.Fatalf("dispatch %d of queued job rejected", i)
		}
	}
	if got := len(p.queue); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
	if !p.Dispatch("b") {
		t.Fatalf("second job rejected while queue has room")
	}
}

func TestPoolReleasesJobAfterRun(t *testing.T) {
	runner := &chanRunner{ran: make(chan string, 4)}
	p := NewPool(runner, 1, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	if !p.Dispatch("a") {
		t.Fatalf("dispatch rejected")
	}
	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job not processed")
	}

	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		_, tracked := p.inFlight["a"]
		p.mu.Unlock()
		if !tracked {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job still tracked after run")
		case <-time.After(time.Millisecond):
		}
	}

	if !p.Dispatch("a") {
		t.Fatalf("redispatch rejected")
	}
	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("redispatched job not processed")
	}
}
