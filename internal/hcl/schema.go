package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes the top-level blocks of any definition file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

// pipelineBlock keeps the pipeline body raw so stage and loop blocks can be
// walked in source order rather than grouped by type.
type pipelineBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// pipelineSchema lists what a pipeline body may contain.
var pipelineSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "config"},
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "stage", LabelNames: []string{"name"}},
		{Type: "loop", LabelNames: []string{"name"}},
	},
}

// loopSchema lists what may nest inside a loop body besides its own
// attributes and condition block.
var loopSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "stage", LabelNames: []string{"name"}},
		{Type: "loop", LabelNames: []string{"name"}},
	},
}

// stageBody decodes a leaf stage block.
type stageBody struct {
	Description string          `hcl:"description,optional"`
	Recipe      string          `hcl:"recipe,optional"`
	Consumes    []string        `hcl:"consumes,optional"`
	Produces    []string        `hcl:"produces,optional"`
	Params      hcl.Expression  `hcl:"params,optional"`
	Condition   *conditionBlock `hcl:"condition,block"`
}

// loopBody decodes a loop block's own fields; nested stages stay in Remain.
type loopBody struct {
	Description   string          `hcl:"description,optional"`
	MaxIterations int             `hcl:"max_iterations,optional"`
	Condition     *conditionBlock `hcl:"condition,block"`
	Remain        hcl.Body        `hcl:",remain"`
}

// variableBody decodes a variable declaration.
type variableBody struct {
	Description string       `hcl:"description,optional"`
	Source      *sourceBlock `hcl:"source,block"`
}

// sourceBlock decodes an external data-source binding.
type sourceBlock struct {
	Format string `hcl:"format"`
	Path   string `hcl:"path"`
	Mode   string `hcl:"mode,optional"`
}

// conditionBlock decodes an execution condition. Set attributes are
// conjoined; each `any` block contributes a disjunct.
type conditionBlock struct {
	Always         *bool             `hcl:"always,optional"`
	ConfigFlag     string            `hcl:"config_flag,optional"`
	VariableExists string            `hcl:"variable_exists,optional"`
	VariableTruthy string            `hcl:"variable_truthy,optional"`
	InputNotEmpty  string            `hcl:"input_not_empty,optional"`
	Custom         string            `hcl:"custom,optional"`
	Any            []*conditionBlock `hcl:"any,block"`
}
