package pipeline

import "github.com/vk/etlgrid/internal/dag"

// Variable is a single named slot in the run's registry. The producer and
// consumer sets are fixed when the definition binds its context; they never
// change mid-run.
type Variable struct {
	Name        string
	Description string

	// Producer is the stage that declares this variable as an output.
	// Variables loaded purely from an external source have no producer.
	Producer string
	// Consumers are the stages that declare this variable as an input.
	Consumers dag.Set

	value   any
	set     bool
	cleared bool
	size    int64
}

// IsSet reports whether the variable currently holds a value.
func (v *Variable) IsSet() bool {
	return v.set && !v.cleared
}

// IsCleared reports whether the memory manager has released the value.
func (v *Variable) IsCleared() bool {
	return v.cleared
}

// Size returns the advisory byte-size estimate of the current value.
func (v *Variable) Size() int64 {
	return v.size
}

// clear drops the value reference. Once cleared a variable stays cleared;
// reads fail loudly via Context.Get.
func (v *Variable) clear() {
	v.value = nil
	v.size = 0
	v.cleared = true
}
