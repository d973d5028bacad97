package builtin

import (
	"context"
	"fmt"

	"github.com/vk/etlgrid/internal/pipeline"
	"github.com/vk/etlgrid/internal/source"
)

// tableInput reads the stage's sole input and asserts it is a table.
func tableInput(st *pipeline.Stage) (*source.Table, error) {
	name, err := singleIn(st)
	if err != nil {
		return nil, err
	}
	v, err := st.Input(name)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*source.Table)
	if !ok {
		return nil, fmt.Errorf("stage %q: input %q is %T, want a table", st.Name(), name, v)
	}
	return t, nil
}

func tableCopy(ctx context.Context, st *pipeline.Stage) error {
	t, err := tableInput(st)
	if err != nil {
		return err
	}
	out, err := singleOut(st)
	if err != nil {
		return err
	}
	dup := source.NewTable(t.Columns...)
	dup.Rows = append(dup.Rows, t.Rows...)
	return st.SetOutput(out, dup)
}

func tableHead(ctx context.Context, st *pipeline.Stage) error {
	t, err := tableInput(st)
	if err != nil {
		return err
	}
	n, err := intParam(st, "n")
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("stage %q: param \"n\" must not be negative", st.Name())
	}
	out, err := singleOut(st)
	if err != nil {
		return err
	}

	head := source.NewTable(t.Columns...)
	if n > t.Len() {
		n = t.Len()
	}
	head.Rows = append(head.Rows, t.Rows[:n]...)
	st.SetMeta("rows_kept", head.Len())
	return st.SetOutput(out, head)
}

func tableDropEmpty(ctx context.Context, st *pipeline.Stage) error {
	t, err := tableInput(st)
	if err != nil {
		return err
	}
	column, err := stringParam(st, "column")
	if err != nil {
		return err
	}
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return fmt.Errorf("stage %q: %w", st.Name(), err)
	}
	out, err := singleOut(st)
	if err != nil {
		return err
	}

	kept := source.NewTable(t.Columns...)
	dropped := 0
	for _, row := range t.Rows {
		if row[idx] == "" {
			dropped++
			continue
		}
		kept.Rows = append(kept.Rows, row)
	}
	st.SetMeta("rows_dropped", dropped)
	return st.SetOutput(out, kept)
}

func tableCount(ctx context.Context, st *pipeline.Stage) error {
	t, err := tableInput(st)
	if err != nil {
		return err
	}
	out, err := singleOut(st)
	if err != nil {
		return err
	}
	return st.SetOutput(out, t.Len())
}
