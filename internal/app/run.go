package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/etlgrid/internal/builder"
	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/pipeline"
)

// Run executes the selected pipeline end to end and writes the execution
// metadata report to the application's output writer. A failed run returns a
// non-nil error after the report is written.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	p, err := a.model.Pipeline(a.cfg.PipelineName)
	if err != nil {
		return err
	}

	memCfg := pipeline.MemoryConfig{
		Enabled:  a.cfg.AutoClear,
		LogUsage: a.cfg.MemoryReport,
	}
	def, pctx, err := builder.Build(ctx, p, a.registry, memCfg)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}
	defer pctx.Close()

	a.logger.Info("Starting pipeline run.", "pipeline", def.Name())
	result := pipeline.NewRunnerWithMemory(memCfg).Run(ctx, def, pctx)

	if result.Metadata != nil {
		report, err := json.MarshalIndent(result.Metadata, "", "  ")
		if err != nil {
			a.logger.Error("Failed to encode execution report.", "error", err)
		} else {
			fmt.Fprintln(a.outW, string(report))
		}
	}

	if !result.Success {
		return fmt.Errorf("pipeline run failed: %w", result.Err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
