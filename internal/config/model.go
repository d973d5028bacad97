package config

import "fmt"

// Model is the unified representation of everything the loaders found:
// one or more pipeline definitions.
type Model struct {
	Pipelines []*Pipeline
}

// Pipeline returns the named pipeline, or the only one when name is empty.
func (m *Model) Pipeline(name string) (*Pipeline, error) {
	if name == "" {
		if len(m.Pipelines) == 1 {
			return m.Pipelines[0], nil
		}
		return nil, fmt.Errorf("definition contains %d pipelines; select one by name", len(m.Pipelines))
	}
	for _, p := range m.Pipelines {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no pipeline named %q in definition", name)
}

// Merge folds another model's pipelines into this one, rejecting duplicates.
func (m *Model) Merge(other *Model) error {
	for _, p := range other.Pipelines {
		for _, existing := range m.Pipelines {
			if existing.Name == p.Name {
				return fmt.Errorf("pipeline %q defined more than once", p.Name)
			}
		}
		m.Pipelines = append(m.Pipelines, p)
	}
	return nil
}

// Pipeline is one declared pipeline: run configuration, variable
// declarations, and the ordered stage list.
type Pipeline struct {
	Name        string
	Description string
	// Config seeds the run context; ConfigFlag conditions read it.
	Config map[string]any
	// Variables declare external bindings and descriptions; variables that
	// only flow between stages need no entry here.
	Variables []*VariableSpec
	// Stages is the ordered top-level stage list. Order is execution order.
	Stages []*StageSpec
}

// Variable returns the declaration for a name, if present.
func (p *Pipeline) Variable(name string) (*VariableSpec, bool) {
	for _, v := range p.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// VariableSpec declares a named variable, optionally bound to an external
// data source.
type VariableSpec struct {
	Name        string
	Description string
	Source      *SourceSpec
}

// SourceSpec locates an external data source.
type SourceSpec struct {
	Format string
	Path   string
	Mode   string
}

// StageSpec declares a stage. A spec with child stages is a loop composite;
// leaves name a registered recipe instead.
type StageSpec struct {
	Name        string
	Description string
	// Recipe names a registered recipe handler. Empty means a no-op body.
	Recipe   string
	Consumes []string
	Produces []string
	// Params are static arguments passed to the recipe.
	Params    map[string]any
	Condition *ConditionSpec

	// Loop composite fields. Stages non-empty marks the spec as a loop.
	Stages        []*StageSpec
	MaxIterations int
}

// IsLoop reports whether the spec declares a composite loop stage.
func (s *StageSpec) IsLoop() bool {
	return len(s.Stages) > 0
}

// ConditionSpec declares an execution condition. All set fields are
// conjoined; each entry under Any contributes a disjunct. An empty spec
// means always-execute.
type ConditionSpec struct {
	// Always forces the result regardless of run state.
	Always *bool
	// ConfigFlag is true iff the named run-configuration flag is truthy.
	ConfigFlag string
	// VariableExists is true iff the named variable is assigned.
	VariableExists string
	// VariableTruthy is true iff the named variable is assigned and truthy.
	VariableTruthy string
	// InputNotEmpty is true iff the named variable holds a non-empty
	// collection.
	InputNotEmpty string
	// Custom names a registered predicate handler.
	Custom string
	// Any holds disjuncts: the condition passes when any of them passes.
	Any []*ConditionSpec
}

// IsEmpty reports whether no constraint is declared at all.
func (c *ConditionSpec) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.Always == nil && c.ConfigFlag == "" && c.VariableExists == "" &&
		c.VariableTruthy == "" && c.InputNotEmpty == "" && c.Custom == "" && len(c.Any) == 0
}
