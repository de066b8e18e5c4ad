package secondary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDocument_MissingFileReadsEmpty(t *testing.T) {
	doc := NewDocument[int](filepath.Join(t.TempDir(), "missing.json"), zap.NewNop())

	var size int
	doc.View(func(records map[string]int) { size = len(records) })

	assert.Zero(t, size)
}

func TestDocument_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	doc := NewDocument[int](path, zap.NewNop())

	var size int
	doc.View(func(records map[string]int) { size = len(records) })
	assert.Zero(t, size)

	require.NoError(t, doc.Update(func(records map[string]int) bool {
		records["a"] = 1
		return true
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestDocument_UpdateWithoutChangeDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc := NewDocument[int](path, zap.NewNop())

	require.NoError(t, doc.Update(func(records map[string]int) bool { return false }))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDocument_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	doc := NewDocument[string](filepath.Join(dir, "doc.json"), zap.NewNop())

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, doc.Update(func(records map[string]string) bool {
			records[v] = v
			return true
		}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestDocument_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "doc.json")
	doc := NewDocument[int](path, zap.NewNop())

	require.NoError(t, doc.Update(func(records map[string]int) bool {
		records["x"] = 7
		return true
	}))

	var got int
	doc.View(func(records map[string]int) { got = records["x"] })
	assert.Equal(t, 7, got)
}
