package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/etlgrid/internal/source"
)

// Recipe is the body of a stage: the work performed when the stage runs.
// It reads inputs and writes outputs through the stage handle.
type Recipe func(ctx context.Context, st *Stage) error

// Role tags a binding as an input or an output of its stage.
type Role int

const (
	RoleConsume Role = iota
	RoleProduce
)

// Binding declares one variable a stage reads or writes, with an optional
// external data source. Bindings are fixed at construction time; the
// dependency graph is derived from them whether or not the recipe ever runs.
type Binding struct {
	Role   Role
	Name   string
	Source source.Source
}

// Stage is a named unit of pipeline work: a condition, a recipe, declared
// variable bindings, and (for composites) an ordered child list. Leaf and
// loop stages share this one type; a loop is a stage whose recipe iterates
// its children.
type Stage struct {
	name        string
	description string
	recipe      Recipe
	bindings    []Binding
	params      map[string]any

	cond         Deferred[Condition]
	resolvedCond Condition

	children []*Stage
	loop     *loopSpec

	pctx       *Context
	status     Status
	start, end time.Time
	skipReason string
	execErr    error
	meta       map[string]any
}

// Option configures a stage at construction.
type Option func(*Stage)

// WithDescription sets the human-readable description.
func WithDescription(desc string) Option {
	return func(st *Stage) { st.description = desc }
}

// WithCondition sets the execution condition.
func WithCondition(c Condition) Option {
	return func(st *Stage) { st.cond = Cond(c) }
}

// WithConditionVar is the string shorthand: execute iff the named variable
// is truthy.
func WithConditionVar(name string) Option {
	return func(st *Stage) { st.cond = CondVar(name) }
}

// WithConditionFunc is the callable shorthand for a custom predicate.
func WithConditionFunc(fn Predicate) Option {
	return func(st *Stage) { st.cond = CondFunc(fn) }
}

// WithDeferredCondition supplies the condition in deferred form; it is
// resolved once, lazily, the first time the stage evaluates it.
func WithDeferredCondition(d Deferred[Condition]) Option {
	return func(st *Stage) { st.cond = d }
}

// Consumes declares input variables with no external source.
func Consumes(names ...string) Option {
	return func(st *Stage) {
		for _, n := range names {
			st.bindings = append(st.bindings, Binding{Role: RoleConsume, Name: n})
		}
	}
}

// Produces declares output variables with no external source.
func Produces(names ...string) Option {
	return func(st *Stage) {
		for _, n := range names {
			st.bindings = append(st.bindings, Binding{Role: RoleProduce, Name: n})
		}
	}
}

// ConsumesFrom declares an input variable loaded from a data source before
// the recipe runs (when no producer stage has already assigned it).
func ConsumesFrom(src source.Source, name string) Option {
	return func(st *Stage) {
		st.bindings = append(st.bindings, Binding{Role: RoleConsume, Name: name, Source: src})
	}
}

// ProducesTo declares an output variable persisted to a data source after
// the recipe assigns it.
func ProducesTo(src source.Source, name string) Option {
	return func(st *Stage) {
		st.bindings = append(st.bindings, Binding{Role: RoleProduce, Name: name, Source: src})
	}
}

// WithParams attaches static recipe parameters.
func WithParams(params map[string]any) Option {
	return func(st *Stage) { st.params = params }
}

// NewStage builds a leaf stage. A nil recipe is a no-op body, useful for
// stages that exist only for their bindings.
func NewStage(name string, recipe Recipe, opts ...Option) *Stage {
	st := &Stage{
		name:   name,
		recipe: recipe,
		status: StatusPending,
		meta:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Name returns the stage name, unique within its pipeline.
func (st *Stage) Name() string { return st.name }

// Description returns the human-readable description.
func (st *Stage) Description() string { return st.description }

// Status returns the current lifecycle status.
func (st *Stage) Status() Status { return st.status }

// SkipReason returns why the stage was skipped, if it was.
func (st *Stage) SkipReason() string { return st.skipReason }

// Err returns the error that failed the stage, if any.
func (st *Stage) Err() error { return st.execErr }

// StartTime returns when the recipe started, zero if it never ran.
func (st *Stage) StartTime() time.Time { return st.start }

// EndTime returns when the recipe finished, zero if it never finished.
func (st *Stage) EndTime() time.Time { return st.end }

// Duration returns the recipe's elapsed time, zero for skipped stages.
func (st *Stage) Duration() time.Duration {
	if st.start.IsZero() || st.end.IsZero() {
		return 0
	}
	return st.end.Sub(st.start)
}

// Children returns the composite's sub-stages, nil for leaves.
func (st *Stage) Children() []*Stage { return st.children }

// IsLoop reports whether the stage is a composite loop.
func (st *Stage) IsLoop() bool { return st.loop != nil }

// Context returns the bound run context.
func (st *Stage) Context() *Context { return st.pctx }

// Meta returns the free-form execution metadata populated by the recipe.
func (st *Stage) Meta() map[string]any { return st.meta }

// SetMeta records an execution-metadata entry.
func (st *Stage) SetMeta(key string, value any) {
	st.meta[key] = value
}

// Param returns a static recipe parameter.
func (st *Stage) Param(key string) (any, bool) {
	v, ok := st.params[key]
	return v, ok
}

// Bindings returns the declared bindings in declaration order.
func (st *Stage) Bindings() []Binding {
	out := make([]Binding, len(st.bindings))
	copy(out, st.bindings)
	return out
}

// Inputs returns the declared consumed-variable names.
func (st *Stage) Inputs() []string {
	var names []string
	for _, b := range st.bindings {
		if b.Role == RoleConsume {
			names = append(names, b.Name)
		}
	}
	return names
}

// Outputs returns the declared produced-variable names.
func (st *Stage) Outputs() []string {
	var names []string
	for _, b := range st.bindings {
		if b.Role == RoleProduce {
			names = append(names, b.Name)
		}
	}
	return names
}

// Input reads a consumed variable from the run context.
func (st *Stage) Input(name string) (any, error) {
	if st.pctx == nil {
		return nil, configErrorf("stage %q has no bound context", st.name)
	}
	return st.pctx.Get(name)
}

// SetOutput writes a produced variable into the run context. Writing a
// variable the stage did not declare is a configuration error; the
// dependency graph would not know about it.
func (st *Stage) SetOutput(name string, value any) error {
	if st.pctx == nil {
		return configErrorf("stage %q has no bound context", st.name)
	}
	for _, b := range st.bindings {
		if b.Role == RoleProduce && b.Name == name {
			st.pctx.Set(name, value)
			return nil
		}
	}
	return configErrorf("stage %q writes undeclared variable %q", st.name, name)
}

// CollectAllStages returns this stage plus all transitively nested
// sub-stages, each exactly once. The runner and memory manager use it to
// treat composites uniformly with leaves.
func (st *Stage) CollectAllStages() []*Stage {
	stages := []*Stage{st}
	for _, child := range st.children {
		stages = append(stages, child.CollectAllStages()...)
	}
	return stages
}

// bindContext attaches the run context to this stage and its children.
func (st *Stage) bindContext(pctx *Context) {
	st.pctx = pctx
	for _, child := range st.children {
		child.bindContext(pctx)
	}
}

// condition resolves the stage's condition, once, and caches it for the
// remainder of the run. An unset condition means always-execute.
func (st *Stage) condition() (Condition, error) {
	if st.resolvedCond != nil {
		return st.resolvedCond, nil
	}
	if !st.cond.IsSet() {
		st.resolvedCond = Always()
		return st.resolvedCond, nil
	}
	c, err := st.cond.Resolve(st)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, configErrorf("stage %q: condition resolved to nil", st.name)
	}
	st.resolvedCond = c
	return c, nil
}

// Execute runs the stage once: evaluate the condition, and either skip or
// run the recipe. It returns (false, nil) for a skip, (true, nil) for
// success, and a non-nil error for a failure; failures are never swallowed
// here — the runner converts them into a failed run.
func (st *Stage) Execute(ctx context.Context) (bool, error) {
	if st.pctx == nil {
		return false, configErrorf("stage %q has no bound context", st.name)
	}
	if st.status != StatusPending {
		return false, fmt.Errorf("stage %q: %w", st.name, ErrAlreadyExecuted)
	}

	cond, err := st.condition()
	if err != nil {
		return false, st.fail(err)
	}
	ok, err := cond.ShouldExecute(st.pctx, st.name)
	if err != nil {
		return false, st.fail(fmt.Errorf("evaluating condition for stage %q: %w", st.name, err))
	}
	if !ok {
		st.status = StatusSkipped
		st.skipReason = fmt.Sprintf("condition not met: %s", cond.Describe())
		return false, nil
	}

	st.status = StatusRunning
	st.start = time.Now()

	if err := st.loadInputs(ctx); err != nil {
		return true, st.fail(err)
	}
	if st.recipe != nil {
		if err := st.recipe(ctx, st); err != nil {
			return true, st.fail(err)
		}
	}
	if err := st.saveOutputs(ctx); err != nil {
		return true, st.fail(err)
	}

	st.status = StatusCompleted
	st.end = time.Now()
	return true, nil
}

func (st *Stage) fail(err error) error {
	st.status = StatusFailed
	st.end = time.Now()
	st.execErr = err
	return err
}

// loadInputs fills source-backed consumed variables that no earlier stage
// has assigned.
func (st *Stage) loadInputs(ctx context.Context) error {
	for _, b := range st.bindings {
		if b.Role != RoleConsume || b.Source == nil {
			continue
		}
		if st.pctx.Has(b.Name) {
			continue
		}
		if v, ok := st.pctx.Variable(b.Name); ok && v.IsCleared() {
			return &ClearedVariableError{Name: b.Name}
		}
		value, err := b.Source.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading input %q for stage %q: %w", b.Name, st.name, err)
		}
		st.pctx.Set(b.Name, value)
	}
	return nil
}

// saveOutputs checks that the recipe assigned every declared output and
// persists the source-backed ones.
func (st *Stage) saveOutputs(ctx context.Context) error {
	for _, b := range st.bindings {
		if b.Role != RoleProduce {
			continue
		}
		value, err := st.pctx.Get(b.Name)
		if err != nil {
			return fmt.Errorf("stage %q did not assign declared output %q: %w", st.name, b.Name, err)
		}
		if b.Source == nil {
			continue
		}
		if err := b.Source.Save(ctx, value); err != nil {
			return fmt.Errorf("saving output %q of stage %q: %w", b.Name, st.name, err)
		}
	}
	return nil
}

// resetForIteration rewinds a loop child so the next iteration can run it
// again. Only the owning loop calls this; top-level stages stay single-use.
func (st *Stage) resetForIteration() {
	st.status = StatusPending
	st.skipReason = ""
	st.execErr = nil
	st.start = time.Time{}
	st.end = time.Time{}
	for _, child := range st.children {
		child.resetForIteration()
	}
}
