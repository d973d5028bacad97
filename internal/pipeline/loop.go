package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/etlgrid/internal/ctxlog"
)

// Loop execution-metadata keys.
const (
	MetaTotalIterations   = "total_iterations"
	MetaMeanIterationTime = "mean_iteration_time"
	MetaMeanStageTime     = "mean_stage_time"
)

// loopSpec holds the composite-specific configuration of a loop stage.
type loopSpec struct {
	cond Deferred[Condition]
	// resolved caches the loop condition after its first evaluation.
	resolved Condition
	// maxIterations caps the loop; zero means unbounded.
	maxIterations int
}

// NewLoopStage builds a composite stage that repeatedly executes children in
// order while the condition holds. The loop is zero-or-more: the condition
// is re-evaluated before every iteration, including the first.
// maxIterations zero means unbounded; a negative value is a configuration
// error, as is an empty child list or an unset condition.
func NewLoopStage(name string, cond Deferred[Condition], children []*Stage, maxIterations int, opts ...Option) (*Stage, error) {
	if len(children) == 0 {
		return nil, configErrorf("loop stage %q: at least one child stage is required", name)
	}
	if !cond.IsSet() {
		return nil, configErrorf("loop stage %q: a loop condition is required", name)
	}
	if maxIterations < 0 {
		return nil, configErrorf("loop stage %q: max iterations must be positive, got %d", name, maxIterations)
	}

	st := &Stage{
		name:     name,
		status:   StatusPending,
		meta:     make(map[string]any),
		children: children,
		loop: &loopSpec{
			cond:          cond,
			maxIterations: maxIterations,
		},
	}
	st.recipe = st.runLoop
	for _, opt := range opts {
		opt(st)
	}
	if st.description == "" {
		st.description = fmt.Sprintf("loop executing %d stages", len(children))
	}
	return st, nil
}

// shouldContinue resolves (once) and evaluates the loop condition.
func (st *Stage) shouldContinue() (bool, error) {
	if st.loop.resolved == nil {
		c, err := st.loop.cond.Resolve(st)
		if err != nil {
			return false, err
		}
		if c == nil {
			return false, configErrorf("loop stage %q: condition resolved to nil", st.name)
		}
		st.loop.resolved = c
	}
	return st.loop.resolved.ShouldExecute(st.pctx, st.name)
}

// runLoop is the composite's recipe: iterate the children while the loop
// condition holds, bounded by the optional iteration cap. A child failure
// aborts the iteration, the loop, and the loop stage immediately.
func (st *Stage) runLoop(ctx context.Context, _ *Stage) error {
	logger := ctxlog.FromContext(ctx)

	childTimes := make(map[string][]time.Duration, len(st.children))
	for _, child := range st.children {
		childTimes[child.name] = nil
	}
	var iterationTimes []time.Duration

	iterations := 0
	for st.loop.maxIterations == 0 || iterations < st.loop.maxIterations {
		ok, err := st.shouldContinue()
		if err != nil {
			return fmt.Errorf("evaluating loop condition for %q: %w", st.name, err)
		}
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		iterations++
		iterationStart := time.Now()
		logger.Debug("Starting loop iteration.", "loop", st.name, "iteration", iterations)

		for _, child := range st.children {
			child.resetForIteration()
			if _, err := child.Execute(ctx); err != nil {
				return err
			}
			childTimes[child.name] = append(childTimes[child.name], child.Duration())
		}

		iterationTimes = append(iterationTimes, time.Since(iterationStart))
	}

	meanChild := make(map[string]time.Duration, len(childTimes))
	for name, times := range childTimes {
		meanChild[name] = meanDuration(times)
	}
	st.meta[MetaTotalIterations] = iterations
	st.meta[MetaMeanIterationTime] = meanDuration(iterationTimes)
	st.meta[MetaMeanStageTime] = meanChild

	logger.Debug("Loop finished.",
		"loop", st.name,
		"total_iterations", iterations,
		"mean_iteration_time", meanDuration(iterationTimes),
	)
	return nil
}

func meanDuration(times []time.Duration) time.Duration {
	if len(times) == 0 {
		return 0
	}
	var total time.Duration
	for _, t := range times {
		total += t
	}
	return total / time.Duration(len(times))
}
