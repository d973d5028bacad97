package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/etlgrid/internal/config"
	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/source"
)

// ValidateModel checks a loaded definition against the registered handlers:
// every recipe and custom predicate a stage references must exist, loop
// parameters must be sane, and source formats must be known. It collects
// all problems instead of stopping at the first.
func (r *Registry) ValidateModel(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, p := range model.Pipelines {
		for _, v := range p.Variables {
			if v.Source == nil {
				continue
			}
			if !source.KnownFormat(v.Source.Format) {
				errs = append(errs, fmt.Sprintf("pipeline %q: variable %q uses unknown source format %q", p.Name, v.Name, v.Source.Format))
			}
			if _, err := source.ParseMode(v.Source.Mode); err != nil {
				errs = append(errs, fmt.Sprintf("pipeline %q: variable %q: %v", p.Name, v.Name, err))
			}
		}
		for _, s := range p.Stages {
			r.validateStage(p, s, &errs)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("definition validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Definition validated against registry.", "pipelines", len(model.Pipelines))
	return nil
}

func (r *Registry) validateStage(p *config.Pipeline, s *config.StageSpec, errs *[]string) {
	if s.IsLoop() {
		if s.Condition.IsEmpty() {
			*errs = append(*errs, fmt.Sprintf("pipeline %q: loop %q has no condition", p.Name, s.Name))
		}
		if s.MaxIterations < 0 {
			*errs = append(*errs, fmt.Sprintf("pipeline %q: loop %q: max_iterations must be positive", p.Name, s.Name))
		}
		for _, child := range s.Stages {
			r.validateStage(p, child, errs)
		}
	} else if s.Recipe != "" {
		if _, ok := r.Recipe(s.Recipe); !ok {
			*errs = append(*errs, fmt.Sprintf("pipeline %q: stage %q references unregistered recipe %q", p.Name, s.Name, s.Recipe))
		}
	}

	r.validateCondition(p, s.Name, s.Condition, errs)
}

func (r *Registry) validateCondition(p *config.Pipeline, stageName string, c *config.ConditionSpec, errs *[]string) {
	if c == nil {
		return
	}
	if c.Custom != "" {
		if _, ok := r.Predicate(c.Custom); !ok {
			*errs = append(*errs, fmt.Sprintf("pipeline %q: stage %q references unregistered predicate %q", p.Name, stageName, c.Custom))
		}
	}
	for _, alt := range c.Any {
		r.validateCondition(p, stageName, alt, errs)
	}
}
