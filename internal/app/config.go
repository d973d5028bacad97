package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // .hcl/.yaml files, or a directory of them
	PipelineName string // which pipeline to run; empty picks the only one

	LogFormat string
	LogLevel  string

	// AutoClear enables eager memory reclamation between stages.
	AutoClear bool
	// MemoryReport emits a per-variable usage summary after the run.
	MemoryReport bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
