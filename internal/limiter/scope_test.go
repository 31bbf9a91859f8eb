package limiter

import (
	"context"
	"testing"
)

func TestScopeDoubleCloseReleasesOnce(t *testing.T) {
	l := New(1)
	scope, err := Acquire(context.Background(), l)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	scope.Close()
	scope.Close() // must not panic or double-release

	if got := l.AvailableCount(); got != 1 {
		t.Errorf("AvailableCount = %d, want 1 after single effective release", got)
	}
}

func TestScopeNilCloseIsNoop(t *testing.T) {
	var s *Scope
	s.Close() // must not panic
}

func TestScopeAcquireFailurePropagatesError(t *testing.T) {
	l := New(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Acquire(ctx, l); err == nil {
		t.Error("expected Acquire on canceled context to fail")
	}
}
