package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSVSource loads and saves tables as CSV files with a header row.
type CSVSource struct {
	Path string
	Mode Mode
}

// NewCSV returns a CSV source for the given path.
func NewCSV(path string, mode Mode) *CSVSource {
	return &CSVSource{Path: path, Mode: mode}
}

func (s *CSVSource) String() string {
	return fmt.Sprintf("csv(%s)", s.Path)
}

// Load reads the file into a Table. The first record is the header.
func (s *CSVSource) Load(ctx context.Context) (any, error) {
	if s.Mode != ModeRead {
		return nil, fmt.Errorf("source %s is not opened for reading", s)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading %s: missing header row", s)
	}

	table := NewTable(records[0]...)
	for _, row := range records[1:] {
		if err := table.Append(row); err != nil {
			return nil, fmt.Errorf("reading %s: %w", s, err)
		}
	}
	return table, nil
}

// Save writes a *Table to the file, creating parent directories as needed.
func (s *CSVSource) Save(ctx context.Context, v any) error {
	if s.Mode != ModeWrite {
		return fmt.Errorf("source %s is not opened for writing", s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	table, ok := v.(*Table)
	if !ok {
		return fmt.Errorf("saving to %s: expected *Table, got %T", s, v)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("saving to %s: %w", s, err)
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("saving to %s: %w", s, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("saving to %s: %w", s, err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("saving to %s: %w", s, err)
	}
	w.Flush()
	return w.Error()
}
