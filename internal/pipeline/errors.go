package pipeline

import (
	"errors"
	"fmt"
)

// ErrAlreadyExecuted is returned when a stage is executed a second time in
// the same run outside of a loop iteration.
var ErrAlreadyExecuted = errors.New("stage has already executed in this run")

// ConfigError marks a fault in the pipeline's construction: an unresolved or
// cyclic dependency graph, invalid loop parameters, a deferred value that
// cannot be resolved. Configuration errors surface during validation, before
// any stage runs, and always fail the run.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// ClearedVariableError is returned when a stage reads a variable whose value
// the memory manager has already released. This is a programming-defect
// class fault: it means the dependency map did not list the reader as a
// consumer. It is never downgraded to an empty value.
type ClearedVariableError struct {
	Name string
}

func (e *ClearedVariableError) Error() string {
	return fmt.Sprintf("variable %q has been cleared from memory; reader is missing from its declared consumer set", e.Name)
}

// UnsetVariableError is returned when a stage reads a variable that no stage
// or source has assigned yet.
type UnsetVariableError struct {
	Name string
}

func (e *UnsetVariableError) Error() string {
	return fmt.Sprintf("variable %q has not been set", e.Name)
}
