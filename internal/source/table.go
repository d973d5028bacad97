package source

import "fmt"

// Table is the tabular value shuttled between stages by the file connectors:
// an ordered header plus string-typed rows. It deliberately carries no type
// information; interpreting cells is a recipe concern.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable returns an empty table with the given header.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows. It also makes Table satisfy the
// length-probing done by emptiness conditions.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("table has no column %q", name)
}

// Append adds a row. The row must match the header width.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// EstimatedSize reports the approximate in-memory footprint in bytes. It is
// advisory only; the memory manager uses it for reporting, not for deciding
// when to reclaim.
func (t *Table) EstimatedSize() int64 {
	if t == nil {
		return 0
	}
	var total int64
	for _, c := range t.Columns {
		total += int64(len(c))
	}
	for _, row := range t.Rows {
		for _, cell := range row {
			total += int64(len(cell))
		}
	}
	return total
}
