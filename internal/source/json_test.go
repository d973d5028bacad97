package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSource_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "doc.json")

	doc := map[string]any{"rows": []any{"a", "b"}, "count": float64(2)}
	require.NoError(t, NewJSON(path, ModeWrite).Save(context.Background(), doc))

	loaded, err := NewJSON(path, ModeRead).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestJSONSource_LoadMissingFile(t *testing.T) {
	src := NewJSON(filepath.Join(t.TempDir(), "absent.json"), ModeRead)
	_, err := src.Load(context.Background())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	src, err := New("csv", "x.csv", ModeRead)
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	src, err = New("json", "x.json", ModeWrite)
	require.NoError(t, err)
	assert.IsType(t, &JSONSource{}, src)

	_, err = New("parquet", "x.parquet", ModeRead)
	assert.Error(t, err)
	assert.False(t, KnownFormat("parquet"))
	assert.True(t, KnownFormat("csv"))
}
