package image

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limited caps the number of concurrent calls into a Generator.
type Limited struct {
	next Generator
	sem  *semaphore.Weighted
}

// NewLimited wraps next so at most max calls run at once. A non-positive max
// returns next unchanged.
func NewLimited(next Generator, max int) Generator {
	if max <= 0 {
		return next
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(max))}
}

func (l *Limited) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.Generate(ctx, req)
}

// Name forwards the wrapped provider's name when it has one.
func (l *Limited) Name() string {
	if n, ok := l.next.(Named); ok {
		return n.Name()
	}
	return ""
}
