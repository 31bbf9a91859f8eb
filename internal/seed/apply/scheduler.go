package apply

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/seed"
)

func newRunID() uuid.UUID { return uuid.New() }

// scheduler hands out modules whose dependencies have all completed,
// one at a time, to any number of concurrent workers (spec.md §4.6 step 4:
// "dequeue a module whose requirements are all satisfied").
type scheduler struct {
	g *graph

	mu        sync.Mutex
	cond      *sync.Cond
	done      map[int]struct{}
	inFlight  map[int]struct{}
	pending   []int // indices into g.modules still to be scheduled
	failedErr error
}

// newScheduler prepares the pooled work queue. allWorkers modules are
// marked done up front, not scheduled: every worker runs every all-workers
// module before ever touching the pool (see Apply), so by the time any
// worker reaches readyLocked, the topics those modules provide are already
// satisfied for that worker. Without this, a pooled module requiring a
// topic only an all-workers module provides could never become ready.
func newScheduler(g *graph, pooled, allWorkers []*seed.Module) *scheduler {
	byModule := make(map[*seed.Module]int, len(g.modules))
	for i, m := range g.modules {
		byModule[m] = i
	}

	indices := make([]int, 0, len(pooled))
	for _, m := range pooled {
		indices = append(indices, byModule[m])
	}

	done := make(map[int]struct{}, len(allWorkers))
	for _, m := range allWorkers {
		done[byModule[m]] = struct{}{}
	}

	s := &scheduler{
		g:        g,
		done:     done,
		inFlight: make(map[int]struct{}),
		pending:  indices,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// next blocks until a module is ready to run, the schedule is exhausted, a
// prior module failed, or ctx is canceled.
func (s *scheduler) next(ctx context.Context) (*seed.Module, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.failedErr != nil || ctx.Err() != nil {
			return nil, false
		}
		if len(s.pending) == 0 {
			return nil, false
		}

		ready := s.readyLocked()
		if len(ready) > 0 {
			idx := ready[0]
			s.inFlight[idx] = struct{}{}
			s.removePendingLocked(idx)
			return s.g.modules[idx], true
		}

		if len(s.inFlight) == 0 {
			// Nothing ready and nothing running, yet pending is non-empty:
			// an unsatisfiable dependency slipped past graph validation.
			// This must surface as a failure, not a quiet empty return,
			// or Apply would report Succeeded having skipped modules.
			if s.failedErr == nil {
				s.failedErr = fmt.Errorf("seed apply deadlocked: %d module(s) pending with no satisfiable dependency", len(s.pending))
				s.cond.Broadcast()
			}
			return nil, false
		}

		s.waitLocked(ctx)
	}
}

// waitLocked blocks on the condition variable, waking promptly if ctx is
// canceled by running a watcher goroutine once per call.
func (s *scheduler) waitLocked(ctx context.Context) {
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
		close(done)
	}()
	s.cond.Wait()
	close(stop)
	<-done
}

func (s *scheduler) readyLocked() []int {
	var ready []int
	for _, i := range s.pending {
		satisfied := true
		for _, dep := range s.g.edges[i] {
			if _, ok := s.done[dep]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, i)
		}
	}
	return ready
}

func (s *scheduler) removePendingLocked(idx int) {
	for i, p := range s.pending {
		if p == idx {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// complete marks m finished (successfully or not), releasing any dependents
// whose last remaining dependency was m.
func (s *scheduler) complete(m *seed.Module, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, candidate := range s.g.modules {
		if candidate == m {
			idx = i
			break
		}
	}
	delete(s.inFlight, idx)

	if err != nil && s.failedErr == nil {
		s.failedErr = err
	} else {
		s.done[idx] = struct{}{}
	}
	s.cond.Broadcast()
}

func (s *scheduler) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedErr
}
