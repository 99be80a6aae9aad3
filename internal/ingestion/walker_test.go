package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrace/reqtrace-go/internal/config"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const specDoc = `## REQ-p00001: Authentication

Level: PRD
Status: active

Users need accounts.

- A. Users can log in with valid credentials.
`

const codeDoc = `package auth

// Implements: REQ-p00001-A
func Login() {}
`

func projectFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "specs/auth.md", specDoc)
	writeFile(t, root, "src/auth.go", codeDoc)
	writeFile(t, root, "reports/unit.results.json",
		`[{"test": "TestLogin", "status": "passed"}]`)
	return root
}

func relPaths(entries []FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, filepath.ToSlash(e.RelPath))
	}
	return out
}

func TestWalkProject(t *testing.T) {
	t.Parallel()

	t.Run("selects spec, source, and results files", func(t *testing.T) {
		t.Parallel()
		root := projectFixture(t)

		entries, err := WalkProject(root, config.Default())
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{
			"specs/auth.md",
			"src/auth.go",
			"reports/unit.results.json",
		}, relPaths(entries))
	})

	t.Run("reads content and hash", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "specs/a.md", specDoc)

		entries, err := WalkProject(root, config.Default())
		require.NoError(t, err)
		require.Len(t, entries, 1)

		assert.Equal(t, specDoc, string(entries[0].Content))
		assert.Len(t, entries[0].SHA256, 64)
		assert.Equal(t, filepath.Join(root, "specs", "a.md"), entries[0].Path)
	})

	t.Run("markdown outside spec globs is skipped", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "README.md", "# Readme")
		writeFile(t, root, "specs/a.md", specDoc)

		entries, err := WalkProject(root, config.Default())
		require.NoError(t, err)

		assert.Equal(t, []string{"specs/a.md"}, relPaths(entries))
	})

	t.Run("custom spec globs", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "requirements/core.md", specDoc)
		writeFile(t, root, "specs/a.md", specDoc)

		cfg := config.Default()
		cfg.SpecGlobs = []string{"requirements/**/*.md"}

		entries, err := WalkProject(root, cfg)
		require.NoError(t, err)

		assert.Equal(t, []string{"requirements/core.md"}, relPaths(entries))
	})

	t.Run("default ignore directories", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "node_modules/pkg/index.js", "// Implements: REQ-x")
		writeFile(t, root, ".reqtrace/cache.go", "package cache")
		writeFile(t, root, "src/ok.go", codeDoc)

		entries, err := WalkProject(root, config.Default())
		require.NoError(t, err)

		assert.Equal(t, []string{"src/ok.go"}, relPaths(entries))
	})

	t.Run("gitignore patterns are honored", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, ".gitignore", "generated/\n*.tmp.go\n")
		writeFile(t, root, "generated/gen.go", codeDoc)
		writeFile(t, root, "src/scratch.tmp.go", codeDoc)
		writeFile(t, root, "src/ok.go", codeDoc)

		entries, err := WalkProject(root, config.Default())
		require.NoError(t, err)

		assert.Equal(t, []string{"src/ok.go"}, relPaths(entries))
	})

	t.Run("unrecognized files are skipped", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "assets/logo.png", "binary")
		writeFile(t, root, "data/fixture.json", "{}")

		entries, err := WalkProject(root, config.Default())
		require.NoError(t, err)

		assert.Empty(t, entries)
	})

	t.Run("empty project", func(t *testing.T) {
		t.Parallel()
		entries, err := WalkProject(t.TempDir(), config.Default())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
