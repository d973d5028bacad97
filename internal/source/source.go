// Package source implements the external data connectors that pipeline
// bindings use to load a variable before a stage runs and to persist one
// after a stage produces it. The execution core treats loaded values as
// opaque; only the connectors here know about concrete file formats.
package source

import (
	"context"
	"fmt"
)

// Mode declares how a source may be opened.
type Mode string

const (
	// ModeRead marks a source that supplies a variable's initial value.
	ModeRead Mode = "r"
	// ModeWrite marks a source that persists a variable after it is produced.
	ModeWrite Mode = "w"
)

// ParseMode converts the textual mode from a definition file into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	default:
		return "", fmt.Errorf("invalid source mode %q: must be 'r' or 'w'", s)
	}
}

// Source is a location a variable can be loaded from or saved to.
type Source interface {
	// Load reads the value from the underlying location. It fails if the
	// source was opened for writing.
	Load(ctx context.Context) (any, error)
	// Save persists the value to the underlying location. It fails if the
	// source was opened for reading.
	Save(ctx context.Context, v any) error
	// String describes the source for logs and error messages.
	String() string
}

// New constructs a source for the given format. Formats are the ones the
// declarative definition layer understands: "csv" and "json".
func New(format, path string, mode Mode) (Source, error) {
	switch format {
	case "csv":
		return &CSVSource{Path: path, Mode: mode}, nil
	case "json":
		return &JSONSource{Path: path, Mode: mode}, nil
	default:
		return nil, fmt.Errorf("unknown source format %q", format)
	}
}

// KnownFormat reports whether New accepts the given format.
func KnownFormat(format string) bool {
	switch format {
	case "csv", "json":
		return true
	}
	return false
}
