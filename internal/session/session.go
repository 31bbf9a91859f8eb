// Package session implements the fleet-wide scheduler that applies work to
// one or more targets in parallel: layered parallelism limits, cancellation
// propagation, and tolerated-error accounting (spec.md §4.1).
package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sqldeploy/sqldeploy/internal/limiter"
	"github.com/sqldeploy/sqldeploy/internal/target"
)

// TargetApplicator is the per-target work a caller registers with a
// Session. The session wires parallelism and error handling around it; the
// applicator only knows how to do one target's unit of work (spec.md §4.1:
// "Per-target action construction is delegated to a subclass / interface
// contract").
type TargetApplicator interface {
	ApplyCore(ctx context.Context, t *target.Target, parallelism int) error
}

// GroupApplicator additionally knows how wide to fan a group apply out.
type GroupApplicator interface {
	TargetApplicator
	MaxParallelTargets(g *target.Group) int
}

// Options configures a Session (spec.md §4.1).
type Options struct {
	MaxParallelism          int
	MaxParallelismPerTarget int
	MaxErrorCount           int
	IsWhatIfMode            bool
}

// TargetError annotates an error with the target whose apply produced it
// (spec.md §4.1: "a set of captured per-target exceptions, each annotated
// with the target's FullDisplayName").
type TargetError struct {
	Target string
	Err    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Target, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// AggregateError collects more than one TargetError, ordered by arrival
// (spec.md §6.4).
type AggregateError struct {
	Errors []*TargetError
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d target(s) failed; first: %v", len(e.Errors), e.Errors[0])
}

// Session manages the lifecycle of a fleet-wide apply operation (spec.md
// §4.1).
type Session struct {
	opts Options

	global limiter.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu         sync.Mutex
	errorCount int
	errors     []*TargetError
	toClose    []limiter.Limiter
}

// New constructs a Session bound to parentCtx; canceling parentCtx
// (the "externalCancel" of spec.md §4.1) cancels every registered apply.
func New(parentCtx context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(parentCtx)
	g := new(errgroup.Group)

	s := &Session{
		opts:   opts,
		global: limiter.New(opts.MaxParallelism),
		ctx:    ctx,
		cancel: cancel,
		group:  g,
	}
	return s
}

// HasErrors reports whether any target apply has failed so far.
func (s *Session) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount > 0
}

// BeginApplying registers a single-target apply. maxParallelism, if
// positive, further bounds that target's own per-action concurrency beyond
// the session-wide per-target limit.
func (s *Session) BeginApplying(t *target.Target, applicator TargetApplicator, maxParallelism int) {
	targetLimit := s.opts.MaxParallelismPerTarget
	if maxParallelism > 0 && (targetLimit <= 0 || maxParallelism < targetLimit) {
		targetLimit = maxParallelism
	}
	targetLimiter := limiter.New(targetLimit)
	composed := limiter.Compose(s.global, targetLimiter)

	s.group.Go(func() error {
		defer targetLimiter.Close()
		return s.runTarget(t, applicator, composed)
	})
}

// BeginApplyingGroup registers a group apply: one logical unit of work per
// target in the group, fanned out up to the group's own
// EffectiveMaxParallelism, further narrowed by applicator's
// MaxParallelTargets if applicator implements GroupApplicator and reports a
// tighter width.
func (s *Session) BeginApplyingGroup(g *target.Group, applicator TargetApplicator) {
	groupParallelism := g.EffectiveMaxParallelism()
	if ga, ok := applicator.(GroupApplicator); ok {
		if w := ga.MaxParallelTargets(g); w > 0 && (groupParallelism <= 0 || w < groupParallelism) {
			groupParallelism = w
		}
	}

	groupLimiter := limiter.New(groupParallelism)
	composedGroup := limiter.Compose(s.global, groupLimiter)

	s.mu.Lock()
	s.toClose = append(s.toClose, groupLimiter)
	s.mu.Unlock()

	for _, t := range g.Targets {
		t := t
		targetLimiter := limiter.New(g.EffectiveMaxParallelismPerTarget())
		composed := limiter.Compose(composedGroup, targetLimiter)

		s.group.Go(func() error {
			defer targetLimiter.Close()
			return s.runTarget(t, applicator, composed)
		})
	}
}

func (s *Session) runTarget(t *target.Target, applicator TargetApplicator, lim limiter.Limiter) error {
	if err := lim.Acquire(s.ctx); err != nil {
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		return &TargetError{Target: t.FullDisplayName(), Err: err}
	}
	defer lim.Release()

	err := applicator.ApplyCore(s.ctx, t, lim.EffectiveLimit())
	if err == nil {
		return nil
	}
	if s.ctx.Err() != nil && err == s.ctx.Err() {
		return err
	}

	tagged := &TargetError{Target: t.FullDisplayName(), Err: err}
	s.recordError(tagged)
	return nil // swallow: aggregated via CompleteApplying, not via errgroup's first-error-wins
}

func (s *Session) recordError(err *TargetError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	s.errors = append(s.errors, err)
	if s.errorCount > s.opts.MaxErrorCount {
		s.cancel()
	}
}

// CompleteApplying awaits completion of all registered work (spec.md
// §4.1). It returns nil on full success, the single TargetError if exactly
// one target failed, an AggregateError if more than one failed, and
// context.Canceled / context.DeadlineExceeded if the session was canceled
// while no target had failed. A cancellation caused by crossing
// MaxErrorCount therefore surfaces as the recorded target errors.
func (s *Session) CompleteApplying() error {
	_ = s.group.Wait() // runTarget never returns a non-cancellation error itself

	s.mu.Lock()
	errs := s.errors
	toClose := s.toClose
	s.mu.Unlock()
	for _, l := range toClose {
		l.Close()
	}
	s.global.Close()

	if s.ctx.Err() != nil && len(errs) == 0 {
		return s.ctx.Err()
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &AggregateError{Errors: errs}
	}
}

// Cancel triggers external cancellation of every in-flight and future
// registered apply.
func (s *Session) Cancel() { s.cancel() }
