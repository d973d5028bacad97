// Package pipeline implements the execution core: stages and their
// lifecycle, composite loop stages, execution conditions, the per-run
// variable registry, the dependency-driven memory manager, and the
// sequential runner that ties them together.
//
// A pipeline is an ordered list of stages. Each stage declares the variables
// it consumes and produces; the runner derives a dependency graph from those
// declarations and uses its inversion to release a variable's value as soon
// as every declared consumer has finished. Execution order is always the
// declaration order, never a graph-derived schedule.
package pipeline
