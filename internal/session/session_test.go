package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sqldeploy/sqldeploy/internal/target"
)

type fakeSource struct{ server, database string }

func (s fakeSource) ConnectionString() string            { return "dsn" }
func (s fakeSource) Credential() (string, string, bool)  { return "", "", false }
func (s fakeSource) ServerDisplayName() string           { return s.server }
func (s fakeSource) DatabaseDisplayName() string         { return s.database }

func newTarget(name string) *target.Target {
	return target.New(fakeSource{server: name, database: "db"})
}

type funcApplicator struct {
	fn    func(ctx context.Context, t *target.Target, parallelism int) error
	calls int32
}

func (f *funcApplicator) ApplyCore(ctx context.Context, t *target.Target, parallelism int) error {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, t, parallelism)
}

func TestBeginApplyingSucceedsWithNoErrors(t *testing.T) {
	s := New(context.Background(), Options{MaxParallelism: 2, MaxParallelismPerTarget: 2, MaxErrorCount: 0})
	app := &funcApplicator{fn: func(ctx context.Context, t *target.Target, p int) error { return nil }}

	s.BeginApplying(newTarget("a"), app, 0)
	s.BeginApplying(newTarget("b"), app, 0)

	if err := s.CompleteApplying(); err != nil {
		t.Fatalf("CompleteApplying: %v", err)
	}
	if atomic.LoadInt32(&app.calls) != 2 {
		t.Errorf("calls = %d, want 2", app.calls)
	}
}

func TestBeginApplyingReturnsSingleTargetError(t *testing.T) {
	s := New(context.Background(), Options{MaxParallelism: 2, MaxParallelismPerTarget: 2, MaxErrorCount: 1})
	boom := errors.New("boom")
	app := &funcApplicator{fn: func(ctx context.Context, t *target.Target, p int) error { return boom }}

	s.BeginApplying(newTarget("a"), app, 0)

	err := s.CompleteApplying()
	var tErr *TargetError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected a *TargetError, got %T: %v", err, err)
	}
	if tErr.Target != "a.db" {
		t.Errorf("Target = %q, want a.db", tErr.Target)
	}
}

func TestBeginApplyingAggregatesMultipleErrors(t *testing.T) {
	s := New(context.Background(), Options{MaxParallelism: 2, MaxParallelismPerTarget: 2, MaxErrorCount: 10})
	app := &funcApplicator{fn: func(ctx context.Context, t *target.Target, p int) error { return errors.New("boom") }}

	s.BeginApplying(newTarget("a"), app, 0)
	s.BeginApplying(newTarget("b"), app, 0)

	err := s.CompleteApplying()
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected an *AggregateError, got %T: %v", err, err)
	}
	if len(agg.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries", agg.Errors)
	}
}

func TestMaxErrorCountThresholdCancelsSession(t *testing.T) {
	s := New(context.Background(), Options{MaxParallelism: 1, MaxParallelismPerTarget: 1, MaxErrorCount: 0})
	app := &funcApplicator{fn: func(ctx context.Context, t *target.Target, p int) error { return errors.New("boom") }}

	s.BeginApplying(newTarget("a"), app, 0)
	s.BeginApplying(newTarget("b"), app, 0)

	_ = s.CompleteApplying()
	if !s.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
}

// groupFuncApplicator implements GroupApplicator, tracking the peak number
// of concurrently in-flight ApplyCore calls.
type groupFuncApplicator struct {
	maxParallelTargets int
	calls              int32

	mu      sync.Mutex
	current int
	peak    int
}

func (f *groupFuncApplicator) ApplyCore(ctx context.Context, t *target.Target, p int) error {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.current++
	if f.current > f.peak {
		f.peak = f.current
	}
	f.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	f.current--
	f.mu.Unlock()
	return nil
}

func (f *groupFuncApplicator) MaxParallelTargets(g *target.Group) int { return f.maxParallelTargets }

func TestBeginApplyingGroupHonorsApplicatorMaxParallelTargets(t *testing.T) {
	g, err := target.NewGroup("g", []*target.Target{newTarget("a"), newTarget("b"), newTarget("c")}, 2, 2)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}

	app := &groupFuncApplicator{maxParallelTargets: 1}
	s := New(context.Background(), Options{MaxParallelism: 4, MaxParallelismPerTarget: 4})

	s.BeginApplyingGroup(g, app)
	if err := s.CompleteApplying(); err != nil {
		t.Fatalf("CompleteApplying: %v", err)
	}
	if atomic.LoadInt32(&app.calls) != 3 {
		t.Errorf("calls = %d, want 3", app.calls)
	}
	if app.peak > 1 {
		t.Errorf("peak concurrent ApplyCore calls = %d, want at most 1: the group's own EffectiveMaxParallelism is 2, but MaxParallelTargets should narrow the fan-out to 1", app.peak)
	}
}

func TestBeginApplyingGroupFansOutToEveryTarget(t *testing.T) {
	g, err := target.NewGroup("g", []*target.Target{newTarget("a"), newTarget("b"), newTarget("c")}, 2, 1)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}

	s := New(context.Background(), Options{MaxParallelism: 4, MaxParallelismPerTarget: 4, MaxErrorCount: 0})
	app := &funcApplicator{fn: func(ctx context.Context, t *target.Target, p int) error { return nil }}

	s.BeginApplyingGroup(g, app)

	if err := s.CompleteApplying(); err != nil {
		t.Fatalf("CompleteApplying: %v", err)
	}
	if atomic.LoadInt32(&app.calls) != 3 {
		t.Errorf("calls = %d, want 3", app.calls)
	}
}
