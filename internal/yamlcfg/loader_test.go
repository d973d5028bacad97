package yamlcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/etlgrid/internal/config"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func loadOne(t *testing.T, content string) *config.Pipeline {
	t.Helper()
	path := writeDefinition(t, content)
	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	p, err := model.Pipeline("")
	require.NoError(t, err)
	return p
}

func TestLoad_FullPipeline(t *testing.T) {
	p := loadOne(t, `
pipeline:
  name: report
  description: A report pipeline.
  config:
    publish: true
    retries: 3
  variables:
    - name: raw
      description: Raw input.
      source:
        format: csv
        path: data/raw.csv
        mode: r
  stages:
    - name: clean
      recipe: table.drop_empty
      consumes: [raw]
      produces: [clean]
      params:
        column: amount
    - name: publish
      recipe: table.head
      consumes: [clean]
      produces: [report]
      params:
        n: 10
      condition:
        config_flag: publish
`)

	assert.Equal(t, "report", p.Name)
	assert.Equal(t, "A report pipeline.", p.Description)
	assert.Equal(t, map[string]any{"publish": true, "retries": 3}, p.Config)

	require.Len(t, p.Variables, 1)
	require.NotNil(t, p.Variables[0].Source)
	assert.Equal(t, "csv", p.Variables[0].Source.Format)

	require.Len(t, p.Stages, 2)
	assert.Equal(t, map[string]any{"column": "amount"}, p.Stages[0].Params)
	require.NotNil(t, p.Stages[1].Condition)
	assert.Equal(t, "publish", p.Stages[1].Condition.ConfigFlag)
}

func TestLoad_LoopStage(t *testing.T) {
	p := loadOne(t, `
pipeline:
  name: looped
  stages:
    - name: drain
      loop:
        max_iterations: 10
        condition:
          input_not_empty: queue
        stages:
          - name: take
            consumes: [queue_seed]
          - name: process
`)

	require.Len(t, p.Stages, 1)
	loop := p.Stages[0]
	require.True(t, loop.IsLoop())
	assert.Equal(t, 10, loop.MaxIterations)
	require.NotNil(t, loop.Condition)
	assert.Equal(t, "queue", loop.Condition.InputNotEmpty)
	require.Len(t, loop.Stages, 2)
	assert.Equal(t, "take", loop.Stages[0].Name)
}

func TestLoad_LoopWithRecipeRejected(t *testing.T) {
	path := writeDefinition(t, `
pipeline:
  name: bad
  stages:
    - name: confused
      recipe: table.copy
      loop:
        condition:
          always: true
        stages:
          - name: child
`)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "loop stages cannot name a recipe")
}

func TestLoad_EmptyLoopRejected(t *testing.T) {
	path := writeDefinition(t, `
pipeline:
  name: bad
  stages:
    - name: hollow
      loop:
        condition:
          always: true
`)
	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorContains(t, err, "declares no child stages")
}

func TestLoad_MultiplePipelinesInOneFile(t *testing.T) {
	path := writeDefinition(t, `
pipelines:
  - name: first
    stages:
      - name: a
  - name: second
    stages:
      - name: b
`)
	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, model.Pipelines, 2)

	_, err = model.Pipeline("")
	assert.Error(t, err, "ambiguous selection must be refused")

	p, err := model.Pipeline("second")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Stages[0].Name)
}

func TestLoad_MissingNamesRejected(t *testing.T) {
	path := writeDefinition(t, `
pipeline:
  stages:
    - name: s
`)
	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorContains(t, err, "missing a name")

	path = writeDefinition(t, `
pipeline:
  name: ok
  stages:
    - recipe: table.copy
`)
	_, err = NewLoader().Load(context.Background(), path)
	assert.ErrorContains(t, err, "stage is missing a name")
}

func TestLoad_ConditionAny(t *testing.T) {
	p := loadOne(t, `
pipeline:
  name: alt
  stages:
    - name: guarded
      condition:
        any:
          - config_flag: force
          - variable_truthy: cache
`)

	cond := p.Stages[0].Condition
	require.NotNil(t, cond)
	require.Len(t, cond.Any, 2)
	assert.Equal(t, "force", cond.Any[0].ConfigFlag)
	assert.Equal(t, "cache", cond.Any[1].VariableTruthy)
}
