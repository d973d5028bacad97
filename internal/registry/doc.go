// Package registry holds the named Go handlers a declarative pipeline can
// reference: recipes (stage bodies) and predicates (custom conditions).
// Modules register handlers at startup; validation checks every name a
// definition references before anything runs.
package registry
