package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/etlgrid/internal/app"
	"github.com/vk/etlgrid/internal/registry"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Dir is the temporary root the definition files were written under, for
	// tests that need to inspect files a pipeline wrote.
	Dir string
}

// RunPipeline writes the given files into a temporary directory, boots the
// app against it, and runs the selected pipeline. File paths are relative to
// the temporary root, so a test can lay out data files next to definitions.
func RunPipeline(t *testing.T, files map[string]string, pipelineName string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunPipelineWithContext(context.Background(), t, files, pipelineName, modules...)
}

// RunPipelineWithContext is RunPipeline with a caller-controlled context.
func RunPipelineWithContext(ctx context.Context, t *testing.T, files map[string]string, pipelineName string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	appConfig := &app.Config{
		PipelinePath: tmpDir,
		PipelineName: pipelineName,
		LogLevel:     "debug",
		LogFormat:    "text",
		AutoClear:    true,
		MemoryReport: true,
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			Dir:       tmpDir,
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("ETLGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Dir:       tmpDir,
	}
}
