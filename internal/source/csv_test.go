package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,alpha\n2,beta\n"), 0644))

	src := NewCSV(path, ModeRead)
	v, err := src.Load(context.Background())
	require.NoError(t, err)

	table, ok := v.(*Table)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, table.Columns)
	assert.Equal(t, [][]string{{"1", "alpha"}, {"2", "beta"}}, table.Rows)
}

func TestCSVSource_Load_MissingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	src := NewCSV(path, ModeRead)
	_, err := src.Load(context.Background())
	assert.ErrorContains(t, err, "missing header row")
}

func TestCSVSource_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	table := NewTable("id", "name")
	require.NoError(t, table.Append([]string{"1", "alpha"}))
	require.NoError(t, table.Append([]string{"2", "beta"}))

	require.NoError(t, NewCSV(path, ModeWrite).Save(context.Background(), table))

	loaded, err := NewCSV(path, ModeRead).Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(table, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVSource_ModeEnforced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	err := NewCSV(path, ModeRead).Save(context.Background(), NewTable("id"))
	assert.ErrorContains(t, err, "not opened for writing")

	_, err = NewCSV(path, ModeWrite).Load(context.Background())
	assert.ErrorContains(t, err, "not opened for reading")
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "", want: ModeRead},
		{input: "r", want: ModeRead},
		{input: "w", want: ModeWrite},
		{input: "rw", wantErr: true},
		{input: "a", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run("mode_"+tc.input, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, mode)
		})
	}
}

func TestTable_ColumnIndex(t *testing.T) {
	table := NewTable("id", "amount")

	idx, err := table.ColumnIndex("amount")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = table.ColumnIndex("missing")
	assert.Error(t, err)
}

func TestTable_AppendRejectsRaggedRow(t *testing.T) {
	table := NewTable("id", "amount")
	assert.Error(t, table.Append([]string{"1"}))
}
