package limiter

import (
	"context"
	"sync"
)

// Scope wraps an Acquire/Release pair with a single-release guarantee on
// any exit path, including a panic in the caller's critical section and a
// caller that calls Close twice. spec.md §4.2: "a Scope abstraction wraps
// acquire+release with a single-release guarantee on any exit path."
type Scope struct {
	limiter Limiter
	once    sync.Once
}

// Acquire blocks on lim.Acquire and returns a Scope whose Close releases
// exactly once. Callers must defer scope.Close() immediately on success.
func Acquire(ctx context.Context, lim Limiter) (*Scope, error) {
	if err := lim.Acquire(ctx); err != nil {
		return nil, err
	}
	return &Scope{limiter: lim}, nil
}

// Close releases the permit held by this scope. Safe to call more than
// once or on a nil Scope.
func (s *Scope) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.limiter.Release)
}
