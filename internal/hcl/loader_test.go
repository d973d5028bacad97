package hcl

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
	path := filepath.Join(t.TempDir(), "pipeline.hcl")
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
pipeline "report" {
  description = "A report pipeline."

  config {
    publish = true
    retries = 3
  }

  variable "raw" {
    description = "Raw input."
    source {
      format = "csv"
      path   = "data/raw.csv"
      mode   = "r"
    }
  }

  stage "clean" {
    recipe   = "table.drop_empty"
    consumes = ["raw"]
    produces = ["clean"]
    params = {
      column = "amount"
    }
  }

  stage "publish" {
    recipe   = "table.head"
    consumes = ["clean"]
    produces = ["report"]
    params = {
      n = 10
    }
    condition {
      config_flag = "publish"
    }
  }
}
`)

	assert.Equal(t, "report", p.Name)
	assert.Equal(t, "A report pipeline.", p.Description)
	assert.Equal(t, map[string]any{"publish": true, "retries": int64(3)}, p.Config)

	require.Len(t, p.Variables, 1)
	v := p.Variables[0]
	assert.Equal(t, "raw", v.Name)
	require.NotNil(t, v.Source)
	assert.Equal(t, "csv", v.Source.Format)
	assert.Equal(t, "r", v.Source.Mode)

	require.Len(t, p.Stages, 2)
	clean := p.Stages[0]
	assert.Equal(t, "clean", clean.Name)
	assert.Equal(t, "table.drop_empty", clean.Recipe)
	assert.Equal(t, []string{"raw"}, clean.Consumes)
	assert.Equal(t, map[string]any{"column": "amount"}, clean.Params)
	assert.Nil(t, clean.Condition)

	publish := p.Stages[1]
	assert.Equal(t, map[string]any{"n": int64(10)}, publish.Params)
	require.NotNil(t, publish.Condition)
	assert.Equal(t, "publish", publish.Condition.ConfigFlag)
}

// Interleaved stage and loop blocks must keep their source order, since
// declaration order is execution order.
func TestLoad_PreservesBlockOrder(t *testing.T) {
	p := loadOne(t, `
pipeline "ordered" {
  stage "first" {}

  loop "second" {
    condition {
      always = false
    }
    stage "child" {}
  }

  stage "third" {}
}
`)

	require.Len(t, p.Stages, 3)
	assert.Equal(t, "first", p.Stages[0].Name)
	assert.Equal(t, "second", p.Stages[1].Name)
	assert.Equal(t, "third", p.Stages[2].Name)
	assert.True(t, p.Stages[1].IsLoop())
}

func TestLoad_NestedLoop(t *testing.T) {
	p := loadOne(t, `
pipeline "nested" {
  loop "outer" {
    max_iterations = 5
    condition {
      variable_truthy = "keep_going"
    }

    stage "inner-stage" {}

    loop "inner-loop" {
      condition {
        always = true
      }
      stage "leaf" {}
    }
  }
}
`)

	require.Len(t, p.Stages, 1)
	outer := p.Stages[0]
	require.True(t, outer.IsLoop())
	assert.Equal(t, 5, outer.MaxIterations)
	require.NotNil(t, outer.Condition)
	assert.Equal(t, "keep_going", outer.Condition.VariableTruthy)

	require.Len(t, outer.Stages, 2)
	assert.Equal(t, "inner-stage", outer.Stages[0].Name)
	inner := outer.Stages[1]
	require.True(t, inner.IsLoop())
	assert.Equal(t, "leaf", inner.Stages[0].Name)
}

func TestLoad_ConditionDisjunction(t *testing.T) {
	p := loadOne(t, `
pipeline "alt" {
  stage "guarded" {
    condition {
      any {
        config_flag = "force"
      }
      any {
        variable_exists = "cache"
        input_not_empty = "cache"
      }
    }
  }
}
`)

	cond := p.Stages[0].Condition
	require.NotNil(t, cond)
	require.Len(t, cond.Any, 2)
	assert.Equal(t, "force", cond.Any[0].ConfigFlag)
	assert.Equal(t, "cache", cond.Any[1].VariableExists)
	assert.Equal(t, "cache", cond.Any[1].InputNotEmpty)
}

func TestLoad_EmptyLoopRejected(t *testing.T) {
	path := writeDefinition(t, `
pipeline "bad" {
  loop "hollow" {
    condition {
      always = true
    }
  }
}
`)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "declares no child stages")
}

func TestLoad_VariableReferencesRejectedInParams(t *testing.T) {
	path := writeDefinition(t, `
pipeline "bad" {
  stage "s" {
    params = {
      n = some.reference
    }
  }
}
`)
	_, err := NewLoader().Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoad_NoPipelineBlocks(t *testing.T) {
	path := writeDefinition(t, `# just a comment`)
	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorContains(t, err, "no pipeline blocks")
}

func TestLoad_DuplicatePipelineNamesRejected(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.hcl", "b.hcl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name),
			[]byte(`pipeline "same" {
  stage "s" {}
}
`), 0644))
	}

	_, err := NewLoader().Load(context.Background(),
		filepath.Join(dir, "a.hcl"), filepath.Join(dir, "b.hcl"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "defined more than once")
}
