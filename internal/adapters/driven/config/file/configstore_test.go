package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("index.top_k", 12))
	require.NoError(t, store.Set("watch.enabled", true))
	require.NoError(t, store.Set("ingest.extensions", []string{".json", ".jsonl"}))

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 12, store.GetInt("index.top_k"))
	assert.True(t, store.GetBool("watch.enabled"))
	assert.Equal(t, []string{".json", ".jsonl"}, store.GetStringSlice("ingest.extensions"))

	// Missing keys and wrong types fall back to zero values.
	assert.Equal(t, "", store.GetString("index.top_k"))
	assert.Equal(t, 0, store.GetInt("embedding.provider"))
	assert.False(t, store.GetBool("nonexistent"))
	assert.Nil(t, store.GetStringSlice("nonexistent"))
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("index.top_k", 20))
	require.NoError(t, store.Set("index.dir", "/srv/index"))
	require.NoError(t, store.Set("embedding.requests_per_second", 2.5))
	require.NoError(t, store.Set("lines.missing_ratio_policy", "exclude"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, toml.Unmarshal(data, &raw))
	index, ok := raw["index"].(map[string]any)
	require.True(t, ok, "dot keys are written as tables")
	assert.Equal(t, int64(20), index["top_k"])

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.GetInt("index.top_k"))
	assert.Equal(t, "/srv/index", reloaded.GetString("index.dir"))
	rate, ok := reloaded.Get("embedding.requests_per_second")
	require.True(t, ok)
	assert.Equal(t, 2.5, rate)
	assert.Equal(t, []string{
		"embedding.requests_per_second",
		"index.dir",
		"index.top_k",
		"lines.missing_ratio_policy",
	}, reloaded.Keys())
}

func TestConfigStore_LoadHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte(`
[data]
dir = "/var/lib/cogniprof"

[profile]
confidence_model = "wilson"
top_topics = 5
`)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), content, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/cogniprof", store.GetString("data.dir"))
	assert.Equal(t, "wilson", store.GetString("profile.confidence_model"))
	assert.Equal(t, 5, store.GetInt("profile.top_topics"))
}

func TestConfigStore_SetConflictingKey(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("index", "flat"))
	assert.Error(t, store.Set("index.top_k", 3))
	_, ok := store.Get("index.top_k")
	assert.False(t, ok, "failed set is not kept in memory")
}

func TestConfigStore_OverwriteValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("embedding.model", "nomic-embed-text"))
	require.NoError(t, store.Set("embedding.model", "all-minilm"))
	assert.Equal(t, "all-minilm", store.GetString("embedding.model"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", 2))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", 2))

	// Replace the file with a directory to cause a write error.
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("batch.workers", 3))
}

func TestConfigStore_Load_InvalidTOML(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("batch.workers", 2))

	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid toml syntax ][}{"), 0600))

	assert.Error(t, store.Load())
}

func TestNestMap(t *testing.T) {
	nested, err := nestMap(map[string]any{"a.b.c": 1, "a.d": "x", "e": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": "x"},
		"e": true,
	}, nested)

	_, err = nestMap(map[string]any{"a": 1, "a.b": 2})
	assert.Error(t, err)
}

func TestFlattenMap(t *testing.T) {
	flat := flattenMap(map[string]any{"a": map[string]any{"b": 1}, "c": "x"}, "")
	assert.Equal(t, map[string]any{"a.b": 1, "c": "x"}, flat)
}
