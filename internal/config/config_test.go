package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "REQ-", cfg.DefaultPrefix)
	assert.Equal(t, string(graph.HashNormalized), cfg.HashMode)
	assert.False(t, cfg.StrictMode)
	assert.Contains(t, cfg.ExcludedStatuses, "deprecated")
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := `default_prefix: SPEC-
strict_mode: true
excluded_statuses: [deprecated, rejected]
hash_mode: full-text
spec_globs: ["requirements/**/*.md"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "SPEC-", cfg.DefaultPrefix)
	assert.True(t, cfg.StrictMode)
	assert.Equal(t, []string{"deprecated", "rejected"}, cfg.ExcludedStatuses)
	assert.Equal(t, "full-text", cfg.HashMode)
	assert.Equal(t, []string{"requirements/**/*.md"}, cfg.SpecGlobs)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, []string{"**/*.results.json"}, cfg.ResultsGlobs)
}

func TestLoad_BadHashMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("hash_mode: sha1\n"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "hash_mode")
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(":\t:"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default()
	cfg.DefaultPrefix = "RT-"
	require.NoError(t, cfg.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_Conversions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.StrictMode = true

	bc := cfg.BuildConfig()
	assert.Equal(t, "REQ-", bc.DefaultPrefix)
	assert.Equal(t, graph.HashNormalized, bc.HashMode)

	ro := cfg.RollupOptions()
	assert.True(t, ro.StrictMode)
	assert.Equal(t, cfg.ExcludedStatuses, ro.ExcludedStatuses)

	assert.Equal(t, filepath.Join("/p", DataDirName), cfg.DataDir("/p"))
}
