package builder

import (
	"context"
	"fmt"

	"github.com/vk/etlgrid/internal/config"
	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/pipeline"
	"github.com/vk/etlgrid/internal/registry"
	"github.com/vk/etlgrid/internal/source"
)

// Build turns a declared pipeline into an executable definition plus the run
// context it executes against. The config must already have passed registry
// validation; Build still reports missing handlers rather than panic.
func Build(ctx context.Context, p *config.Pipeline, reg *registry.Registry, memCfg pipeline.MemoryConfig) (*pipeline.Definition, *pipeline.Context, error) {
	logger := ctxlog.FromContext(ctx)

	b := &builder{
		reg:     reg,
		sources: make(map[string]*config.SourceSpec, len(p.Variables)),
	}
	for _, v := range p.Variables {
		if v.Source != nil {
			b.sources[v.Name] = v.Source
		}
	}

	var stages []*pipeline.Stage
	for _, spec := range p.Stages {
		st, err := b.buildStage(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline %q: %w", p.Name, err)
		}
		stages = append(stages, st)
	}

	def := pipeline.NewDefinition(p.Name, stages,
		pipeline.WithPipelineDescription(p.Description))
	pctx := pipeline.NewContext(p.Config, memCfg)

	logger.Debug("Pipeline assembled.", "pipeline", p.Name, "stages", len(stages))
	return def, pctx, nil
}

type builder struct {
	reg     *registry.Registry
	sources map[string]*config.SourceSpec
}

func (b *builder) buildStage(spec *config.StageSpec) (*pipeline.Stage, error) {
	if spec.IsLoop() {
		return b.buildLoop(spec)
	}

	opts, err := b.bindingOptions(spec)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", spec.Name, err)
	}
	if spec.Description != "" {
		opts = append(opts, pipeline.WithDescription(spec.Description))
	}
	if spec.Params != nil {
		opts = append(opts, pipeline.WithParams(spec.Params))
	}
	if spec.Condition != nil {
		cond, err := b.buildCondition(spec.Condition)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", spec.Name, err)
		}
		opts = append(opts, pipeline.WithCondition(cond))
	}

	var recipe pipeline.Recipe
	if spec.Recipe != "" {
		reg, ok := b.reg.Recipe(spec.Recipe)
		if !ok {
			return nil, fmt.Errorf("stage %q: recipe %q is not registered", spec.Name, spec.Recipe)
		}
		recipe = reg.Fn
	}

	return pipeline.NewStage(spec.Name, recipe, opts...), nil
}

func (b *builder) buildLoop(spec *config.StageSpec) (*pipeline.Stage, error) {
	var children []*pipeline.Stage
	for _, child := range spec.Stages {
		cs, err := b.buildStage(child)
		if err != nil {
			return nil, fmt.Errorf("loop %q: %w", spec.Name, err)
		}
		children = append(children, cs)
	}

	if spec.Condition == nil {
		return nil, fmt.Errorf("loop %q: a loop condition is required", spec.Name)
	}
	cond, err := b.buildCondition(spec.Condition)
	if err != nil {
		return nil, fmt.Errorf("loop %q: %w", spec.Name, err)
	}

	var opts []pipeline.Option
	if spec.Description != "" {
		opts = append(opts, pipeline.WithDescription(spec.Description))
	}
	return pipeline.NewLoopStage(spec.Name, pipeline.Cond(cond), children, spec.MaxIterations, opts...)
}

// bindingOptions wires consume and produce declarations, attaching a data
// source where the pipeline declares one for the variable in the matching
// mode: read sources feed inputs, write sources persist outputs.
func (b *builder) bindingOptions(spec *config.StageSpec) ([]pipeline.Option, error) {
	var opts []pipeline.Option
	for _, name := range spec.Consumes {
		src, err := b.sourceFor(name, source.ModeRead)
		if err != nil {
			return nil, err
		}
		if src != nil {
			opts = append(opts, pipeline.ConsumesFrom(src, name))
		} else {
			opts = append(opts, pipeline.Consumes(name))
		}
	}
	for _, name := range spec.Produces {
		src, err := b.sourceFor(name, source.ModeWrite)
		if err != nil {
			return nil, err
		}
		if src != nil {
			opts = append(opts, pipeline.ProducesTo(src, name))
		} else {
			opts = append(opts, pipeline.Produces(name))
		}
	}
	return opts, nil
}

func (b *builder) sourceFor(name string, want source.Mode) (source.Source, error) {
	ss, ok := b.sources[name]
	if !ok {
		return nil, nil
	}
	mode, err := source.ParseMode(ss.Mode)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	if mode != want {
		return nil, nil
	}
	src, err := source.New(ss.Format, ss.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	return src, nil
}

// buildCondition translates a condition spec into a runtime condition. Fields
// set together combine as a conjunction; the "any" list combines as a
// disjunction folded over Or.
func (b *builder) buildCondition(cs *config.ConditionSpec) (pipeline.Condition, error) {
	var parts []pipeline.Condition

	if cs.Always != nil {
		if *cs.Always {
			parts = append(parts, pipeline.Always())
		} else {
			parts = append(parts, pipeline.Never())
		}
	}
	if cs.ConfigFlag != "" {
		parts = append(parts, pipeline.ConfigFlag(cs.ConfigFlag))
	}
	if cs.VariableExists != "" {
		parts = append(parts, pipeline.VariableExists(cs.VariableExists))
	}
	if cs.VariableTruthy != "" {
		parts = append(parts, pipeline.VariableTruthy(cs.VariableTruthy))
	}
	if cs.InputNotEmpty != "" {
		parts = append(parts, pipeline.InputNotEmpty(cs.InputNotEmpty))
	}
	if cs.Custom != "" {
		pred, ok := b.reg.Predicate(cs.Custom)
		if !ok {
			return nil, fmt.Errorf("predicate %q is not registered", cs.Custom)
		}
		desc := pred.Description
		if desc == "" {
			desc = fmt.Sprintf("custom predicate %q", cs.Custom)
		}
		parts = append(parts, pipeline.Custom(desc, pred.Fn))
	}
	if len(cs.Any) > 0 {
		var alt pipeline.Condition
		for _, acs := range cs.Any {
			c, err := b.buildCondition(acs)
			if err != nil {
				return nil, err
			}
			if alt == nil {
				alt = c
			} else {
				alt = pipeline.Or(alt, c)
			}
		}
		parts = append(parts, alt)
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("condition block is empty")
	}
	cond := parts[0]
	for _, c := range parts[1:] {
		cond = pipeline.And(cond, c)
	}
	return cond, nil
}
