package agent

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// Result pairs one work unit with its outcome. Output is nil when Err
// is set.
type Result struct {
	Unit   model.WorkUnit
	Output any
	Err    error
}

// Pool runs one phase's agent over many work units with bounded
// concurrency. Results are index-aligned with inputs regardless of
// completion order, and one unit's failure never cancels its siblings.
type Pool struct {
	instances []*Harness
	bound     int64
}

// NewPool creates a pool over the given harness instances. instances
// must be non-empty. A non-positive maxParallel defaults to the
// instance count.
func NewPool(instances []*Harness, maxParallel int) *Pool {
	if maxParallel <= 0 {
		maxParallel = len(instances)
	}
	return &Pool{instances: instances, bound: int64(maxParallel)}
}

// RunBatch executes every unit and returns one result per unit, with
// results[i] corresponding to units[i]. Per-unit failures land in their
// slot; the batch itself never fails. Cancelling ctx marks unstarted
// units with the context error, while in-flight units observe
// cancellation at their own suspension points.
func (p *Pool) RunBatch(ctx context.Context, units []model.WorkUnit) []Result {
	results := make([]Result, len(units))
	sem := semaphore.NewWeighted(p.bound)
	var wg sync.WaitGroup

	for i, unit := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Unit: unit, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, unit model.WorkUnit) {
			defer wg.Done()
			defer sem.Release(1)
			out, err := p.instances[i%len(p.instances)].Run(ctx, unit)
			results[i] = Result{Unit: unit, Output: out, Err: err}
		}(i, unit)
	}

	wg.Wait()
	return results
}
