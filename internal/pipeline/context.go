package pipeline

import (
	"context"
	"sort"

	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/dag"
)

// Context is the per-run state: the variable registry, the run
// configuration, and the memory manager. It is created fresh for each run
// (or supplied by the caller) and holds no cross-run state.
type Context struct {
	config map[string]any
	vars   map[string]*Variable
	// order preserves declaration order for deterministic summaries.
	order  []string
	memory *MemoryManager
	closed bool
}

// NewContext builds a run context from a plain configuration map and a
// memory configuration.
func NewContext(config map[string]any, memCfg MemoryConfig) *Context {
	if config == nil {
		config = make(map[string]any)
	}
	return &Context{
		config: config,
		vars:   make(map[string]*Variable),
		memory: NewMemoryManager(memCfg),
	}
}

// Memory returns the run's memory manager.
func (c *Context) Memory() *MemoryManager {
	return c.memory
}

// ConfigValue returns a raw run-configuration entry.
func (c *Context) ConfigValue(key string) (any, bool) {
	v, ok := c.config[key]
	return v, ok
}

// ConfigFlag reports whether a run-configuration entry is present and truthy.
func (c *Context) ConfigFlag(key string) bool {
	v, ok := c.config[key]
	return ok && truthy(v)
}

// declare registers a variable slot, idempotently.
func (c *Context) declare(name string) *Variable {
	if v, ok := c.vars[name]; ok {
		return v
	}
	v := &Variable{Name: name, Consumers: make(dag.Set)}
	c.vars[name] = v
	c.order = append(c.order, name)
	return v
}

// Variable returns the registry entry for a name.
func (c *Context) Variable(name string) (*Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Set assigns a variable's value, declaring the slot if needed. A producer
// re-running inside a loop overwrites its previous value; the cleared flag
// is not resurrected by design — clearing only ever happens after all
// consumers finished, so a legal rewrite can only come from the producer
// before that point.
func (c *Context) Set(name string, value any) {
	v := c.declare(name)
	v.value = value
	v.set = true
	v.cleared = false
	v.size = c.memory.estimate(value)
}

// Get returns a variable's value. Reading an unset variable or one the
// memory manager already cleared is an error; the latter signals a
// dependency-map defect and is never softened into an empty value.
func (c *Context) Get(name string) (any, error) {
	v, ok := c.vars[name]
	if !ok {
		return nil, &UnsetVariableError{Name: name}
	}
	if v.cleared {
		return nil, &ClearedVariableError{Name: name}
	}
	if !v.set {
		return nil, &UnsetVariableError{Name: name}
	}
	return v.value, nil
}

// Lookup returns a variable's value if it is assigned and not cleared.
// Conditions use it: absence is "not met", not a fault.
func (c *Context) Lookup(name string) (any, bool) {
	v, ok := c.vars[name]
	if !ok || !v.IsSet() {
		return nil, false
	}
	return v.value, true
}

// Has reports whether a variable is present, assigned, and not cleared.
func (c *Context) Has(name string) bool {
	v, ok := c.vars[name]
	return ok && v.IsSet()
}

// AutoClearUnusedVariables releases every variable whose producer and full
// consumer set are in the completed set. It returns the cleared names,
// sorted.
func (c *Context) AutoClearUnusedVariables(ctx context.Context, inverted dag.Map, completed dag.Set) []string {
	return c.memory.AutoClearUnusedVariables(ctx, c, inverted, completed)
}

// VariableNames returns all declared names in declaration order.
func (c *Context) VariableNames() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Close releases every remaining value, including run outputs that were
// deliberately held until teardown. The context is unusable afterwards.
func (c *Context) Close() {
	if c.closed {
		return
	}
	for _, v := range c.vars {
		v.clear()
	}
	c.closed = true
}

// LogMemorySummary emits a per-variable usage report at info level.
func (c *Context) LogMemorySummary(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	var total int64
	var held []string
	for _, name := range c.order {
		v := c.vars[name]
		if v.IsSet() {
			total += v.size
			held = append(held, name)
		}
	}
	sort.Strings(held)
	logger.Info("Memory usage summary.",
		"variables_declared", len(c.vars),
		"variables_held", held,
		"bytes_held", total,
	)
	for _, name := range c.order {
		v := c.vars[name]
		logger.Debug("Variable usage.",
			"variable", name,
			"set", v.set,
			"cleared", v.cleared,
			"bytes", v.size,
			"producer", v.Producer,
			"consumer_count", len(v.Consumers),
		)
	}
}
