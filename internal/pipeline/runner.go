package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/dag"
)

// Runner drives the sequential execution of a pipeline definition. One
// runner can serve many runs; each run gets its own context and metadata.
type Runner struct {
	memCfg MemoryConfig
}

// NewRunner returns a runner with the default memory configuration.
func NewRunner() *Runner {
	return &Runner{memCfg: DefaultMemoryConfig()}
}

// NewRunnerWithMemory returns a runner with an explicit memory
// configuration, applied when the caller does not supply a context.
func NewRunnerWithMemory(cfg MemoryConfig) *Runner {
	return &Runner{memCfg: cfg}
}

// RunWithConfig builds a fresh context from a plain key-value configuration
// and runs the pipeline with it.
func (r *Runner) RunWithConfig(ctx context.Context, def *Definition, config map[string]any) Result {
	return r.Run(ctx, def, NewContext(config, r.memCfg))
}

// Run executes the pipeline: validate, bind the context into every stage,
// then execute top-level stages in declaration order, reclaiming memory
// after each one finishes or is skipped. A stage failure stops the run
// immediately. Run never panics or raises past this boundary; every failure
// is captured into the returned Result.
func (r *Runner) Run(ctx context.Context, def *Definition, pctx *Context) (result Result) {
	logger := ctxlog.FromContext(ctx)

	if pctx == nil {
		pctx = NewContext(nil, r.memCfg)
	}

	var meta *PipelineExecutionMetadata
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("recipe panic: %v", rec)
			finalize(meta, StatusFailed, err)
			logger.Error("Pipeline run panicked.", "pipeline", def.Name(), "panic", rec)
			result = Result{Success: false, Metadata: meta, Err: err}
		}
	}()

	if err := def.Validate(); err != nil {
		logger.Error("Pipeline validation failed.", "pipeline", def.Name(), "error", err)
		return Result{Success: false, Err: err}
	}

	meta = &PipelineExecutionMetadata{
		PipelineName: def.Name(),
		StartTime:    time.Now(),
		Status:       StatusRunning,
	}
	logger.Info("Starting pipeline execution.", "pipeline", def.Name(), "stages", len(def.stages))

	def.bindContext(pctx)

	completed := make(dag.Set)
	for _, st := range def.stages {
		// External cancellation terminates the run immediately; it is not
		// recorded as a failed stage.
		if err := ctx.Err(); err != nil {
			logger.Warn("Pipeline run canceled.", "pipeline", def.Name())
			finalize(meta, StatusFailed, err)
			return Result{Success: false, Metadata: meta, Err: err}
		}

		ran, err := st.Execute(ctx)
		if err != nil {
			meta.StagesExecuted = append(meta.StagesExecuted, newStageMetadata(st, StatusFailed, err))
			logger.Error("Stage failed.", "stage", st.Name(), "error", err)
			finalize(meta, StatusFailed, err)
			return Result{Success: false, Metadata: meta, Err: err}
		}

		if ran {
			meta.StagesExecuted = append(meta.StagesExecuted, newStageMetadata(st, StatusCompleted, nil))
			logger.Info("Stage completed.", "stage", st.Name(), "duration", st.Duration())
		} else {
			meta.StagesExecuted = append(meta.StagesExecuted, newStageMetadata(st, StatusSkipped, nil))
			logger.Info("Skipping stage.", "stage", st.Name(), "reason", st.SkipReason())
		}

		// A skipped composite's children will never run; for dependency and
		// memory purposes they count as completed along with their parent.
		for _, s := range st.CollectAllStages() {
			completed.Add(s.Name())
		}

		cleared := pctx.AutoClearUnusedVariables(ctx, def.InvertedDependencyMap(), completed)
		if len(cleared) > 0 {
			logger.Info("Auto-cleared unused variables.", "count", len(cleared), "variables", cleared)
		}
	}

	if cfg := pctx.Memory().Config(); cfg.Enabled && cfg.LogUsage {
		pctx.LogMemorySummary(ctx)
	}

	finalize(meta, StatusCompleted, nil)
	logger.Info("Pipeline completed.", "pipeline", def.Name(), "duration", meta.Duration)
	return Result{Success: true, Metadata: meta}
}

func finalize(meta *PipelineExecutionMetadata, status Status, err error) {
	if meta == nil {
		return
	}
	meta.EndTime = time.Now()
	meta.Duration = meta.EndTime.Sub(meta.StartTime)
	meta.Status = status
	if err != nil {
		meta.Error = err.Error()
	}
}
