// Package yamlcfg loads pipeline definitions written in YAML and translates
// them into the same format-agnostic config model the HCL loader produces.
package yamlcfg

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/etlgrid/internal/config"
	"github.com/vk/etlgrid/internal/ctxlog"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileDoc accepts either a single pipeline or a list of them.
type fileDoc struct {
	Pipeline  *pipelineDoc   `yaml:"pipeline"`
	Pipelines []*pipelineDoc `yaml:"pipelines"`
}

type pipelineDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Config      map[string]any `yaml:"config"`
	Variables   []*variableDoc `yaml:"variables"`
	Stages      []*stageDoc    `yaml:"stages"`
}

type variableDoc struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Source      *sourceDoc `yaml:"source"`
}

type sourceDoc struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
	Mode   string `yaml:"mode"`
}

// stageDoc declares either a leaf stage or, when Loop is set, a composite.
type stageDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Recipe      string         `yaml:"recipe"`
	Consumes    []string       `yaml:"consumes"`
	Produces    []string       `yaml:"produces"`
	Params      map[string]any `yaml:"params"`
	Condition   *conditionDoc  `yaml:"condition"`
	Loop        *loopDoc       `yaml:"loop"`
}

type loopDoc struct {
	MaxIterations int           `yaml:"max_iterations"`
	Condition     *conditionDoc `yaml:"condition"`
	Stages        []*stageDoc   `yaml:"stages"`
}

type conditionDoc struct {
	Always         *bool           `yaml:"always"`
	ConfigFlag     string          `yaml:"config_flag"`
	VariableExists string          `yaml:"variable_exists"`
	VariableTruthy string          `yaml:"variable_truthy"`
	InputNotEmpty  string          `yaml:"input_not_empty"`
	Custom         string          `yaml:"custom"`
	Any            []*conditionDoc `yaml:"any"`
}

// Load parses every given file and merges all pipelines into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	model := &config.Model{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var doc fileDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		docs := doc.Pipelines
		if doc.Pipeline != nil {
			docs = append(docs, doc.Pipeline)
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("%s: no pipeline found", path)
		}

		for _, pd := range docs {
			p, err := translatePipeline(pd)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", path, err)
			}
			if err := model.Merge(&config.Model{Pipelines: []*config.Pipeline{p}}); err != nil {
				return nil, err
			}
			logger.Debug("Loaded pipeline definition.", "pipeline", p.Name, "stages", len(p.Stages))
		}
	}
	return model, nil
}

func translatePipeline(pd *pipelineDoc) (*config.Pipeline, error) {
	if pd.Name == "" {
		return nil, fmt.Errorf("pipeline is missing a name")
	}
	p := &config.Pipeline{
		Name:        pd.Name,
		Description: pd.Description,
		Config:      pd.Config,
	}
	for _, vd := range pd.Variables {
		if vd.Name == "" {
			return nil, fmt.Errorf("pipeline %q: variable is missing a name", pd.Name)
		}
		v := &config.VariableSpec{Name: vd.Name, Description: vd.Description}
		if vd.Source != nil {
			v.Source = &config.SourceSpec{
				Format: vd.Source.Format,
				Path:   vd.Source.Path,
				Mode:   vd.Source.Mode,
			}
		}
		p.Variables = append(p.Variables, v)
	}
	for _, sd := range pd.Stages {
		s, err := translateStage(sd)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", pd.Name, err)
		}
		p.Stages = append(p.Stages, s)
	}
	return p, nil
}

func translateStage(sd *stageDoc) (*config.StageSpec, error) {
	if sd.Name == "" {
		return nil, fmt.Errorf("stage is missing a name")
	}
	s := &config.StageSpec{
		Name:        sd.Name,
		Description: sd.Description,
		Recipe:      sd.Recipe,
		Consumes:    sd.Consumes,
		Produces:    sd.Produces,
		Params:      sd.Params,
		Condition:   translateCondition(sd.Condition),
	}

	if sd.Loop != nil {
		if sd.Recipe != "" {
			return nil, fmt.Errorf("stage %q: loop stages cannot name a recipe", sd.Name)
		}
		s.MaxIterations = sd.Loop.MaxIterations
		// The loop block owns the condition for composites.
		s.Condition = translateCondition(sd.Loop.Condition)
		for _, cd := range sd.Loop.Stages {
			cs, err := translateStage(cd)
			if err != nil {
				return nil, fmt.Errorf("loop %q: %w", sd.Name, err)
			}
			s.Stages = append(s.Stages, cs)
		}
		if len(s.Stages) == 0 {
			return nil, fmt.Errorf("loop %q declares no child stages", sd.Name)
		}
	}

	return s, nil
}

func translateCondition(cd *conditionDoc) *config.ConditionSpec {
	if cd == nil {
		return nil
	}
	cs := &config.ConditionSpec{
		Always:         cd.Always,
		ConfigFlag:     cd.ConfigFlag,
		VariableExists: cd.VariableExists,
		VariableTruthy: cd.VariableTruthy,
		InputNotEmpty:  cd.InputNotEmpty,
		Custom:         cd.Custom,
	}
	for _, alt := range cd.Any {
		cs.Any = append(cs.Any, translateCondition(alt))
	}
	return cs
}
