package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker keeps failure timestamps per email in process memory.
// Suitable for demo mode and single-instance deployments; state does not
// survive a restart.
type MemoryTracker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewMemoryTracker builds an in-process tracker.
func NewMemoryTracker(cfg Config) *MemoryTracker {
	cfg.applyDefaults()
	return &MemoryTracker{
		cfg:      cfg,
		now:      time.Now,
		failures: make(map[string][]time.Time),
	}
}

// Locked reports whether email has reached the failure budget inside the
// window.
func (t *MemoryTracker) Locked(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pruneLocked(email)) >= t.cfg.MaxFailures, nil
}

// RecordFailure appends a failure timestamp for email.
func (t *MemoryTracker) RecordFailure(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[email] = append(t.pruneLocked(email), t.now())
	return nil
}

// RecordSuccess clears all recorded failures for email.
func (t *MemoryTracker) RecordSuccess(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.failures, email)
	t.mu.Unlock()
	return nil
}

// FailureCount reports the in-window failure count for email.
func (t *MemoryTracker) FailureCount(ctx context.Context, email string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pruneLocked(email)), nil
}

// pruneLocked drops timestamps older than the window and returns the
// surviving slice. Callers hold t.mu.
func (t *MemoryTracker) pruneLocked(email string) []time.Time {
	cutoff := t.now().Add(-t.cfg.Window)
	entries := t.failures[email]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(t.failures, email)
		return nil
	}
	t.failures[email] = kept
	return kept
}
