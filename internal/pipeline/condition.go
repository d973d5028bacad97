package pipeline

import (
	"fmt"
	"reflect"
)

// Condition is a boolean predicate evaluated against run-time state to
// decide whether a stage executes. A false result is an expected outcome
// (the stage is skipped), never a fault.
type Condition interface {
	ShouldExecute(pctx *Context, stageName string) (bool, error)
	// Describe returns a short human-readable form used in skip reasons.
	Describe() string
}

// Predicate is the signature for custom conditions.
type Predicate func(pctx *Context, stageName string) (bool, error)

// Cond wraps a fully-built condition as a deferred, for APIs that accept the
// deferred form.
func Cond(c Condition) Deferred[Condition] {
	return Constant(c)
}

// CondVar is the bare-string shorthand: the named variable's truthiness.
func CondVar(name string) Deferred[Condition] {
	return Constant[Condition](VariableTruthy(name))
}

// CondFunc is the bare-callable shorthand: an arbitrary predicate.
func CondFunc(fn Predicate) Deferred[Condition] {
	return Constant[Condition](Custom("custom predicate", fn))
}

type alwaysCondition struct {
	result bool
}

// Always returns a condition that is constantly true. It is the default for
// stages constructed without a condition.
func Always() Condition { return alwaysCondition{result: true} }

// Never returns a condition that is constantly false.
func Never() Condition { return alwaysCondition{result: false} }

func (c alwaysCondition) ShouldExecute(*Context, string) (bool, error) {
	return c.result, nil
}

func (c alwaysCondition) Describe() string {
	if c.result {
		return "always execute"
	}
	return "never execute"
}

type variableExistsCondition struct {
	name string
}

// VariableExists is true iff the named variable is present, assigned, and
// not cleared in the run's registry.
func VariableExists(name string) Condition {
	return variableExistsCondition{name: name}
}

func (c variableExistsCondition) ShouldExecute(pctx *Context, _ string) (bool, error) {
	return pctx.Has(c.name), nil
}

func (c variableExistsCondition) Describe() string {
	return fmt.Sprintf("variable %q exists", c.name)
}

type variableTruthyCondition struct {
	name string
}

// VariableTruthy is true iff the named variable is assigned and truthy.
func VariableTruthy(name string) Condition {
	return variableTruthyCondition{name: name}
}

func (c variableTruthyCondition) ShouldExecute(pctx *Context, _ string) (bool, error) {
	v, ok := pctx.Lookup(c.name)
	if !ok {
		return false, nil
	}
	return truthy(v), nil
}

func (c variableTruthyCondition) Describe() string {
	return fmt.Sprintf("variable %q is truthy", c.name)
}

type variableCheckCondition struct {
	name string
	pred func(any) bool
}

// VariableCheck is true iff the named variable is assigned and the predicate
// holds for its value. An absent variable means "condition not met", never
// an error.
func VariableCheck(name string, pred func(any) bool) Condition {
	return variableCheckCondition{name: name, pred: pred}
}

func (c variableCheckCondition) ShouldExecute(pctx *Context, _ string) (bool, error) {
	v, ok := pctx.Lookup(c.name)
	if !ok {
		return false, nil
	}
	return c.pred(v), nil
}

func (c variableCheckCondition) Describe() string {
	return fmt.Sprintf("predicate on variable %q holds", c.name)
}

type configFlagCondition struct {
	key string
}

// ConfigFlag is true iff the named run-configuration entry is truthy.
func ConfigFlag(key string) Condition {
	return configFlagCondition{key: key}
}

func (c configFlagCondition) ShouldExecute(pctx *Context, _ string) (bool, error) {
	v, ok := pctx.ConfigValue(c.key)
	if !ok {
		return false, nil
	}
	return truthy(v), nil
}

func (c configFlagCondition) Describe() string {
	return fmt.Sprintf("config flag %q is set", c.key)
}

type inputNotEmptyCondition struct {
	name string
}

// InputNotEmpty is true iff the named variable holds a non-empty collection
// or table.
func InputNotEmpty(name string) Condition {
	return inputNotEmptyCondition{name: name}
}

func (c inputNotEmptyCondition) ShouldExecute(pctx *Context, _ string) (bool, error) {
	v, ok := pctx.Lookup(c.name)
	if !ok {
		return false, nil
	}
	return length(v) > 0, nil
}

func (c inputNotEmptyCondition) Describe() string {
	return fmt.Sprintf("variable %q is not empty", c.name)
}

type andCondition struct {
	a, b Condition
}

// And composes two conditions; evaluation stops at the first false.
func And(a, b Condition) Condition { return andCondition{a: a, b: b} }

func (c andCondition) ShouldExecute(pctx *Context, stageName string) (bool, error) {
	ok, err := c.a.ShouldExecute(pctx, stageName)
	if err != nil || !ok {
		return false, err
	}
	return c.b.ShouldExecute(pctx, stageName)
}

func (c andCondition) Describe() string {
	return fmt.Sprintf("(%s and %s)", c.a.Describe(), c.b.Describe())
}

type orCondition struct {
	a, b Condition
}

// Or composes two conditions; evaluation stops at the first true.
func Or(a, b Condition) Condition { return orCondition{a: a, b: b} }

func (c orCondition) ShouldExecute(pctx *Context, stageName string) (bool, error) {
	ok, err := c.a.ShouldExecute(pctx, stageName)
	if err != nil || ok {
		return ok, err
	}
	return c.b.ShouldExecute(pctx, stageName)
}

func (c orCondition) Describe() string {
	return fmt.Sprintf("(%s or %s)", c.a.Describe(), c.b.Describe())
}

type notCondition struct {
	inner Condition
}

// Not negates a condition.
func Not(inner Condition) Condition { return notCondition{inner: inner} }

func (c notCondition) ShouldExecute(pctx *Context, stageName string) (bool, error) {
	ok, err := c.inner.ShouldExecute(pctx, stageName)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (c notCondition) Describe() string {
	return fmt.Sprintf("not (%s)", c.inner.Describe())
}

type customCondition struct {
	desc string
	fn   Predicate
}

// Custom wraps an arbitrary predicate over the run context.
func Custom(desc string, fn Predicate) Condition {
	return customCondition{desc: desc, fn: fn}
}

func (c customCondition) ShouldExecute(pctx *Context, stageName string) (bool, error) {
	return c.fn(pctx, stageName)
}

func (c customCondition) Describe() string {
	return c.desc
}

// truthy reports whether a value counts as "set" for condition purposes:
// non-nil, non-zero, non-empty.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false
		}
	}
	if n, ok := v.(interface{ Len() int }); ok {
		return n.Len() > 0
	}
	return true
}

// length reports the element count of a collection-like value, or -1 when
// the value has no meaningful length.
func length(v any) int {
	if v == nil {
		return 0
	}
	if n, ok := v.(interface{ Len() int }); ok {
		return n.Len()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String, reflect.Chan:
		return rv.Len()
	case reflect.Ptr:
		if rv.IsNil() {
			return 0
		}
	}
	return -1
}
