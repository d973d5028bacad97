// Package builtin registers the generic recipes and predicates that ship
// with the engine: small table transforms and value setters that cover the
// common ETL plumbing between custom stages.
package builtin

import (
	"context"
	"fmt"

	"github.com/vk/etlgrid/internal/pipeline"
	"github.com/vk/etlgrid/internal/registry"
)

// Module registers the built-in handlers.
type Module struct{}

// Register wires every built-in recipe and predicate into the registry.
func (Module) Register(r *registry.Registry) {
	r.RegisterRecipe("noop", &registry.RegisteredRecipe{
		Description: "Does nothing. Useful as a placeholder while sketching a pipeline.",
		Fn: func(ctx context.Context, st *pipeline.Stage) error {
			return nil
		},
	})
	r.RegisterRecipe("set_value", &registry.RegisteredRecipe{
		Description: "Assigns the static 'value' param to every declared output.",
		Fn:          setValue,
	})
	r.RegisterRecipe("table.copy", &registry.RegisteredRecipe{
		Description: "Copies the input table to the output unchanged.",
		Fn:          tableCopy,
	})
	r.RegisterRecipe("table.head", &registry.RegisteredRecipe{
		Description: "Keeps the first 'n' rows of the input table.",
		Fn:          tableHead,
	})
	r.RegisterRecipe("table.drop_empty", &registry.RegisteredRecipe{
		Description: "Drops rows whose 'column' cell is empty.",
		Fn:          tableDropEmpty,
	})
	r.RegisterRecipe("table.count", &registry.RegisteredRecipe{
		Description: "Produces the input table's row count.",
		Fn:          tableCount,
	})

	r.RegisterPredicate("never", &registry.RegisteredPredicate{
		Description: "never execute",
		Fn: func(pctx *pipeline.Context, stageName string) (bool, error) {
			return false, nil
		},
	})
}

func setValue(ctx context.Context, st *pipeline.Stage) error {
	value, ok := st.Param("value")
	if !ok {
		return fmt.Errorf("stage %q: set_value requires a 'value' param", st.Name())
	}
	outputs := st.Outputs()
	if len(outputs) == 0 {
		return fmt.Errorf("stage %q: set_value requires at least one output", st.Name())
	}
	for _, name := range outputs {
		if err := st.SetOutput(name, value); err != nil {
			return err
		}
	}
	return nil
}

// singleIn returns the stage's sole declared input name.
func singleIn(st *pipeline.Stage) (string, error) {
	inputs := st.Inputs()
	if len(inputs) != 1 {
		return "", fmt.Errorf("stage %q: expected exactly one input, got %d", st.Name(), len(inputs))
	}
	return inputs[0], nil
}

// singleOut returns the stage's sole declared output name.
func singleOut(st *pipeline.Stage) (string, error) {
	outputs := st.Outputs()
	if len(outputs) != 1 {
		return "", fmt.Errorf("stage %q: expected exactly one output, got %d", st.Name(), len(outputs))
	}
	return outputs[0], nil
}

// intParam reads an integer param, accepting the numeric types the definition
// loaders produce.
func intParam(st *pipeline.Stage, key string) (int, error) {
	v, ok := st.Param(key)
	if !ok {
		return 0, fmt.Errorf("stage %q: missing %q param", st.Name(), key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("stage %q: param %q must be a number, got %T", st.Name(), key, v)
	}
}

func stringParam(st *pipeline.Stage, key string) (string, error) {
	v, ok := st.Param(key)
	if !ok {
		return "", fmt.Errorf("stage %q: missing %q param", st.Name(), key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("stage %q: param %q must be a string, got %T", st.Name(), key, v)
	}
	return s, nil
}
