// Package builder assembles executable pipeline definitions from the
// declarative config model: it resolves recipe and predicate names against
// the registry, attaches data sources to variable bindings, and constructs
// the run context.
package builder
