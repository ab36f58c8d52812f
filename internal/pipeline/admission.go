package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stylize/internal/domain"
)

// Limits bounds how many jobs a single user may create.
type Limits struct {
	// MaxRequests jobs may be created per user within Window. Zero disables
	// the rate limit.
	MaxRequests int
	Window      time.Duration
	// MaxActive caps pending plus running jobs per user. Zero disables it.
	MaxActive int
}

// DefaultLimits returns 10 requests per minute and 3 active jobs.
func DefaultLimits() Limits {
	return Limits{MaxRequests: 10, Window: time.Minute, MaxActive: 3}
}

// Admission enforces per-user limits by counting rows in the job store.
type Admission struct {
	store  domain.JobStore
	limits Limits
	now    func() time.Time
}

func NewAdmission(store domain.JobStore, limits Limits, now func() time.Time) *Admission {
	if now == nil {
		now = time.Now
	}
	return &Admission{store: store, limits: limits, now: now}
}

// Limits returns the configured limits.
func (a *Admission) Limits() Limits { return a.limits }

// Admit returns a RateLimited or TooManyActive error when userID may not
// create another job right now.
func (a *Admission) Admit(ctx context.Context, userID string) error {
	if a.limits.MaxRequests > 0 {
		since := a.now().Add(-a.limits.Window)
		recent, err := a.store.CountCreatedSince(ctx, userID, since)
		if err != nil {
			return fmt.Errorf("count recent jobs: %w", err)
		}
		if recent >= a.limits.MaxRequests {
			return domain.NewError(domain.KindRateLimited, "rate limit exceeded, try again later")
		}
	}
	if a.limits.MaxActive > 0 {
		active, err := a.store.CountActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("count active jobs: %w", err)
		}
		if active >= a.limits.MaxActive {
			return domain.NewError(domain.KindTooManyActive, fmt.Sprintf("too many active jobs (max %d)", a.limits.MaxActive))
		}
	}
	return nil
}

// userLocks serializes admission and creation per user so concurrent
// requests cannot both pass the same count check.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*userLock{}
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
