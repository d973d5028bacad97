package pipeline

import (
	"fmt"

	"github.com/vk/etlgrid/internal/dag"
)

// Definition is an ordered list of top-level stages plus the dependency map
// derived from their variable bindings. Execution order is the declaration
// order; the dependency map exists for memory safety, not scheduling.
type Definition struct {
	name        string
	description string
	stages      []*Stage

	depMap    dag.Map
	validated bool
}

// NewDefinition builds a pipeline definition from top-level stages.
func NewDefinition(name string, stages []*Stage, opts ...DefinitionOption) *Definition {
	d := &Definition{name: name, stages: stages}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DefinitionOption configures a definition at construction.
type DefinitionOption func(*Definition)

// WithPipelineDescription sets the pipeline's description.
func WithPipelineDescription(desc string) DefinitionOption {
	return func(d *Definition) { d.description = desc }
}

// Name returns the pipeline name.
func (d *Definition) Name() string { return d.name }

// Description returns the pipeline description.
func (d *Definition) Description() string { return d.description }

// Stages returns the top-level stages in declaration order.
func (d *Definition) Stages() []*Stage {
	out := make([]*Stage, len(d.stages))
	copy(out, d.stages)
	return out
}

// CollectAllStages flattens the top-level stages and all transitively
// nested sub-stages, each exactly once.
func (d *Definition) CollectAllStages() []*Stage {
	var all []*Stage
	for _, st := range d.stages {
		all = append(all, st.CollectAllStages()...)
	}
	return all
}

// Validate derives the dependency map and fails fast on structural faults:
// duplicate stage names, a variable produced by more than one stage, a
// consumed variable with neither a producer nor a data source, or a cycle.
// It must succeed before the runner executes anything; afterwards the
// definition is immutable by convention.
func (d *Definition) Validate() error {
	if d.validated {
		return nil
	}
	if len(d.stages) == 0 {
		return configErrorf("pipeline %q has no stages", d.name)
	}

	all := d.CollectAllStages()

	seen := make(map[string]bool, len(all))
	for _, st := range all {
		if seen[st.Name()] {
			return configErrorf("pipeline %q: duplicate stage name %q", d.name, st.Name())
		}
		seen[st.Name()] = true
	}

	// Producer uniqueness: each variable is written by at most one stage.
	producers := make(map[string]string)
	for _, st := range all {
		for _, name := range st.Outputs() {
			if prev, ok := producers[name]; ok {
				return configErrorf("pipeline %q: variable %q is produced by both %q and %q", d.name, name, prev, st.Name())
			}
			producers[name] = st.Name()
		}
	}

	graph := dag.New()
	for _, st := range all {
		graph.AddNode(st.Name())
	}
	for _, st := range all {
		for _, b := range st.Bindings() {
			if b.Role != RoleConsume {
				continue
			}
			producer, ok := producers[b.Name]
			if !ok {
				if b.Source != nil {
					// Loaded from an external source; no stage dependency.
					continue
				}
				return configErrorf("pipeline %q: stage %q consumes variable %q which no stage produces", d.name, st.Name(), b.Name)
			}
			if err := graph.AddEdge(producer, st.Name()); err != nil {
				return configErrorf("pipeline %q: %v", d.name, err)
			}
		}
	}
	if err := graph.DetectCycles(); err != nil {
		return configErrorf("pipeline %q: dependency validation failed: %v", d.name, err)
	}

	d.depMap = graph.DependencyMap()
	d.validated = true
	return nil
}

// DependencyMap returns a copy of stage → stages it depends on.
func (d *Definition) DependencyMap() dag.Map {
	out := make(dag.Map, len(d.depMap))
	for id, deps := range d.depMap {
		set := make(dag.Set, len(deps))
		for dep := range deps {
			set.Add(dep)
		}
		out[id] = set
	}
	return out
}

// InvertedDependencyMap derives stage → stages that depend on it. It is
// recomputed from the dependency map at each point of use, per the rule that
// the inversion is a pure function of the map, not separately mutable state.
func (d *Definition) InvertedDependencyMap() dag.Map {
	return dag.Invert(d.depMap)
}

// bindContext injects the run context into every stage and registers every
// declared variable with its producer and consumer sets.
func (d *Definition) bindContext(pctx *Context) {
	for _, st := range d.stages {
		st.bindContext(pctx)
	}
	for _, st := range d.CollectAllStages() {
		for _, b := range st.Bindings() {
			v := pctx.declare(b.Name)
			switch b.Role {
			case RoleProduce:
				v.Producer = st.Name()
			case RoleConsume:
				v.Consumers.Add(st.Name())
			}
		}
	}
}

// String summarizes the definition for logs.
func (d *Definition) String() string {
	return fmt.Sprintf("pipeline %q (%d stages)", d.name, len(d.stages))
}
