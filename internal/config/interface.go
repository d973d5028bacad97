package config

import "context"

// Loader is the interface for a format-specific definition loader. A loader
// reads one or more files and translates them into the format-agnostic
// model; it performs syntactic validation only. Semantic validation (recipe
// names, dependency structure) happens later, against the registry and the
// built pipeline.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}
