package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLoadResultFiles(t *testing.T) {
	dir := t.TempDir()
	b := stats.NewResultBundle(stats.BundleParts{
		RunID:       core.NewRunID(),
		CreatedAt:   core.Now(),
		Fingerprint: core.Fingerprint(42),
		Params:      stats.Parameters{Levels: []string{"A", "B"}, NPerm: 99},
	})
	data, err := json.Marshal(b)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "plots.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"fingerprint":"0"}`), 0o644))

	files, err := findResultFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	loaded, err := loadBundle(filepath.Join(dir, "nested", "plots.json"))
	require.NoError(t, err)
	assert.Equal(t, b.RunID(), loaded.RunID())
	assert.Equal(t, 99, loaded.Params().NPerm)

	_, err = loadBundle(filepath.Join(dir, "empty.json"))
	assert.Error(t, err)
}
