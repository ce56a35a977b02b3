package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	b := NewFileBackend(path)

	cursors, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursors)

	want := map[string]Cursor{"house": {LastID: 42, Events: sampleEvents()}}
	require.NoError(t, b.Save(ctx, want))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "house")
	assert.Equal(t, int64(42), got["house"].LastID)
	require.Len(t, got["house"].Events, 3)
	assert.True(t, sampleEvents()[0].Date.Equal(got["house"].Events[0].Date))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBackend_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileBackend(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileBackend_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cursors, err := NewFileBackend(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cursors)
}
