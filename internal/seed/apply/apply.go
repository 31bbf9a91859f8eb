package apply

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/console"
	"github.com/sqldeploy/sqldeploy/internal/limiter"
	"github.com/sqldeploy/sqldeploy/internal/seed"
)

// SeedException wraps the validation error that failed a seed apply before
// any module ran (spec.md §4.6 step 2).
type SeedException struct {
	SeedName string
	Err      error
}

func (e *SeedException) Error() string {
	return fmt.Sprintf("seed %q: %v", e.SeedName, e.Err)
}

func (e *SeedException) Unwrap() error { return e.Err }

// Connection is the subset of the target connection contract the seed
// applicator needs (spec.md §4.7).
type Connection interface {
	Prepare(ctx context.Context, runID uuid.UUID, workerID int) error
	ExecuteSeedBatch(ctx context.Context, sql string) error
}

// Disposition is the outcome of applying one seed to one target (spec.md
// §4.6, §8 scenario S4).
type Disposition int

const (
	Succeeded Disposition = iota
	Failed
)

// Result summarizes one seed-on-target apply.
type Result struct {
	Disposition   Disposition
	ModulesApplied int
	RunID         uuid.UUID
	Err           error
}

// Options configures a seed apply (spec.md §4.1, §4.6).
type Options struct {
	// MaxWorkers is the effective per-target worker pool size (spec.md §4.6
	// step 4: "effective max per-target actions"). Non-positive means 1.
	MaxWorkers int

	// ActionLimiter bounds global concurrently in-flight batch executions
	// (spec.md §4.2); runModule acquires and releases it around each
	// Connection.ExecuteSeedBatch call. Nil means limiter.Null().
	ActionLimiter limiter.Limiter
}

// Apply runs loaded's modules against conn, following spec.md §4.6.
func Apply(ctx context.Context, conn Connection, log console.Log, loaded *seed.Loaded, opts Options) *Result {
	if opts.ActionLimiter == nil {
		opts.ActionLimiter = limiter.Null()
	}
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	if len(loaded.Modules) == 0 {
		return &Result{Disposition: Succeeded}
	}

	g, err := buildGraph(loaded.Modules)
	if err != nil {
		wrapped := &SeedException{SeedName: loaded.Seed.Name, Err: err}
		log.Problem(wrapped.Error())
		return &Result{Disposition: Failed, Err: wrapped}
	}

	runID := newRunID()

	allWorkerModules, pooled := partitionByWorkerID(loaded.Modules)

	sched := newScheduler(g, pooled, allWorkerModules)

	var (
		mu        sync.Mutex
		applied   int
		firstErr  error
		cancelCtx context.Context
		cancel    context.CancelFunc
	)
	cancelCtx, cancel = context.WithCancel(ctx)
	defer cancel()

	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		workerID := w
		go func() {
			defer wg.Done()

			if err := conn.Prepare(cancelCtx, runID, workerID); err != nil {
				recordErr(fmt.Errorf("prepare worker %d: %w", workerID, err))
				return
			}

			for _, m := range allWorkerModules {
				if cancelCtx.Err() != nil {
					return
				}
				if err := runModule(cancelCtx, conn, log, opts.ActionLimiter, m, workerID); err != nil {
					recordErr(err)
					return
				}
				mu.Lock()
				applied++
				mu.Unlock()
			}

			for {
				m, ok := sched.next(cancelCtx)
				if !ok {
					return
				}
				err := runModule(cancelCtx, conn, log, opts.ActionLimiter, m, workerID)
				sched.complete(m, err)
				if err != nil {
					recordErr(err)
					return
				}
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if firstErr != nil {
		log.Problem(firstErr.Error())
		return &Result{Disposition: Failed, ModulesApplied: applied, RunID: runID, Err: firstErr}
	}
	if err := sched.err(); err != nil {
		log.Problem(err.Error())
		return &Result{Disposition: Failed, ModulesApplied: applied, RunID: runID, Err: err}
	}

	log.Summary(fmt.Sprintf("Applied %d module(s)", applied))
	return &Result{Disposition: Succeeded, ModulesApplied: applied, RunID: runID}
}

func runModule(ctx context.Context, conn Connection, log console.Log, lim limiter.Limiter, m *seed.Module, workerID int) error {
	log.ApplyingModule(m.Name, workerID)
	for _, batch := range m.Batches {
		if err := lim.Acquire(ctx); err != nil {
			return fmt.Errorf("module %q: %w", m.Name, err)
		}
		err := conn.ExecuteSeedBatch(ctx, batch)
		lim.Release()
		if err != nil {
			return fmt.Errorf("module %q: execute batch: %w", m.Name, err)
		}
	}
	log.AppliedModule(m.Name, workerID)
	return nil
}

func partitionByWorkerID(modules []*seed.Module) (allWorkers, pooled []*seed.Module) {
	for _, m := range modules {
		if m.WorkerID == seed.AllWorkers {
			allWorkers = append(allWorkers, m)
		} else {
			pooled = append(pooled, m)
		}
	}
	return allWorkers, pooled
}
