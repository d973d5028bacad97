package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONSource loads and saves arbitrary values as JSON documents.
type JSONSource struct {
	Path string
	Mode Mode
}

// NewJSON returns a JSON source for the given path.
func NewJSON(path string, mode Mode) *JSONSource {
	return &JSONSource{Path: path, Mode: mode}
}

func (s *JSONSource) String() string {
	return fmt.Sprintf("json(%s)", s.Path)
}

// Load decodes the whole document. A JSON object becomes map[string]any, an
// array becomes []any; recipes downcast as needed.
func (s *JSONSource) Load(ctx context.Context) (any, error) {
	if s.Mode != ModeRead {
		return nil, fmt.Errorf("source %s is not opened for reading", s)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s, err)
	}
	return v, nil
}

// Save encodes the value as an indented JSON document.
func (s *JSONSource) Save(ctx context.Context, v any) error {
	if s.Mode != ModeWrite {
		return fmt.Errorf("source %s is not opened for writing", s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding for %s: %w", s, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("saving to %s: %w", s, err)
	}
	return os.WriteFile(s.Path, append(data, '\n'), 0o644)
}
