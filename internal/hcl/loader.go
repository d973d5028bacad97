package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/etlgrid/internal/config"
	"github.com/vk/etlgrid/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every given file and merges all pipeline blocks into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{}
	parser := hclparse.NewParser()

	for _, path := range paths {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", path, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", path, diags)
		}

		for _, pb := range root.Pipelines {
			p, err := l.translatePipeline(pb)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", path, err)
			}
			if err := model.Merge(&config.Model{Pipelines: []*config.Pipeline{p}}); err != nil {
				return nil, err
			}
			logger.Debug("Loaded pipeline definition.", "pipeline", p.Name, "stages", len(p.Stages))
		}
	}

	if len(model.Pipelines) == 0 {
		return nil, fmt.Errorf("no pipeline blocks found in definition files")
	}
	return model, nil
}

// translatePipeline walks a pipeline body in source order so interleaved
// stage and loop blocks keep their declared execution sequence.
func (l *Loader) translatePipeline(pb *pipelineBlock) (*config.Pipeline, error) {
	p := &config.Pipeline{Name: pb.Name}

	content, diags := pb.Body.Content(pipelineSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("pipeline %q: %w", pb.Name, diags)
	}

	if attr, ok := content.Attributes["description"]; ok {
		val, err := evalLiteral(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q description: %w", pb.Name, err)
		}
		if val.Type() != cty.String {
			return nil, fmt.Errorf("pipeline %q: description must be a string", pb.Name)
		}
		p.Description = val.AsString()
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "config":
			cfg, err := attrsToGoMap(block.Body)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q config: %w", pb.Name, err)
			}
			p.Config = cfg
		case "variable":
			v, err := l.translateVariable(block)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", pb.Name, err)
			}
			p.Variables = append(p.Variables, v)
		case "stage":
			s, err := l.translateStage(block)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", pb.Name, err)
			}
			p.Stages = append(p.Stages, s)
		case "loop":
			s, err := l.translateLoop(block)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", pb.Name, err)
			}
			p.Stages = append(p.Stages, s)
		}
	}

	return p, nil
}

func (l *Loader) translateVariable(block *hcl.Block) (*config.VariableSpec, error) {
	var body variableBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, fmt.Errorf("variable %q: %w", block.Labels[0], diags)
	}
	v := &config.VariableSpec{
		Name:        block.Labels[0],
		Description: body.Description,
	}
	if body.Source != nil {
		v.Source = &config.SourceSpec{
			Format: body.Source.Format,
			Path:   body.Source.Path,
			Mode:   body.Source.Mode,
		}
	}
	return v, nil
}

func (l *Loader) translateStage(block *hcl.Block) (*config.StageSpec, error) {
	var body stageBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, fmt.Errorf("stage %q: %w", block.Labels[0], diags)
	}

	s := &config.StageSpec{
		Name:        block.Labels[0],
		Description: body.Description,
		Recipe:      body.Recipe,
		Consumes:    body.Consumes,
		Produces:    body.Produces,
		Condition:   translateCondition(body.Condition),
	}

	if body.Params != nil {
		val, err := evalLiteral(body.Params)
		if err != nil {
			return nil, fmt.Errorf("stage %q params: %w", s.Name, err)
		}
		if !val.IsNull() {
			gv, err := ctyToGo(val)
			if err != nil {
				return nil, fmt.Errorf("stage %q params: %w", s.Name, err)
			}
			params, ok := gv.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("stage %q: params must be an object", s.Name)
			}
			s.Params = params
		}
	}

	return s, nil
}

func (l *Loader) translateLoop(block *hcl.Block) (*config.StageSpec, error) {
	var body loopBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, fmt.Errorf("loop %q: %w", block.Labels[0], diags)
	}

	s := &config.StageSpec{
		Name:          block.Labels[0],
		Description:   body.Description,
		MaxIterations: body.MaxIterations,
		Condition:     translateCondition(body.Condition),
	}

	content, diags := body.Remain.Content(loopSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("loop %q: %w", s.Name, diags)
	}
	for _, child := range content.Blocks {
		switch child.Type {
		case "stage":
			cs, err := l.translateStage(child)
			if err != nil {
				return nil, fmt.Errorf("loop %q: %w", s.Name, err)
			}
			s.Stages = append(s.Stages, cs)
		case "loop":
			cs, err := l.translateLoop(child)
			if err != nil {
				return nil, fmt.Errorf("loop %q: %w", s.Name, err)
			}
			s.Stages = append(s.Stages, cs)
		}
	}
	if len(s.Stages) == 0 {
		return nil, fmt.Errorf("loop %q declares no child stages", s.Name)
	}

	return s, nil
}

func translateCondition(cb *conditionBlock) *config.ConditionSpec {
	if cb == nil {
		return nil
	}
	cs := &config.ConditionSpec{
		Always:         cb.Always,
		ConfigFlag:     cb.ConfigFlag,
		VariableExists: cb.VariableExists,
		VariableTruthy: cb.VariableTruthy,
		InputNotEmpty:  cb.InputNotEmpty,
		Custom:         cb.Custom,
	}
	for _, alt := range cb.Any {
		cs.Any = append(cs.Any, translateCondition(alt))
	}
	return cs
}
