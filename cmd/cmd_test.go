package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrace/reqtrace-go/internal/config"
)

const specDoc = `## REQ-p00001: Authentication

Level: PRD
Status: active

Users sign in with credentials.

- A. Users can log in with valid credentials.
- B. Failed logins are throttled.
`

const codeDoc = `package auth

// Implements: REQ-p00001-A
func Login() {}
`

const testDoc = `package auth

// Validates: REQ-p00001-A
func TestLogin(t *testing.T) {}
`

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// projectDir creates a small project and chdirs into it.
func projectDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "specs/auth.md", specDoc)
	writeFile(t, root, "src/auth.go", codeDoc)
	writeFile(t, root, "src/auth_test.go", testDoc)
	writeFile(t, root, "reports/unit.results.json",
		`[{"test": "TestLogin", "status": "passed"}]`)
	t.Chdir(root)
	return root
}

func runBuild(t *testing.T) {
	t.Helper()
	require.NoError(t, (&BuildCmd{Path: "."}).Run())
}

func TestBuildCmd(t *testing.T) {
	root := projectDir(t)
	runBuild(t)

	metaBytes, err := os.ReadFile(filepath.Join(root, config.DataDirName, "meta.json"))
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(metaBytes, &meta))
	assert.Equal(t, filepath.Base(root), meta["name"])

	stats, ok := meta["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["Requirements"])
	assert.Equal(t, float64(2), stats["Assertions"])
	assert.Equal(t, float64(1), stats["CodeRefs"])

	assert.DirExists(t, filepath.Join(root, config.DataDirName, "badger"))
}

func TestBuildCmdRejectsFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "plain.txt", "not a directory")

	err := (&BuildCmd{Path: filepath.Join(root, "plain.txt")}).Run()
	assert.ErrorContains(t, err, "not a directory")
}

func TestCommandsRequireBuild(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.ErrorContains(t, (&SearchCmd{Query: "auth"}).Run(), "no build found")
	assert.ErrorContains(t, (&CoverageCmd{}).Run(), "no build found")
	assert.ErrorContains(t, (&StatusCmd{}).Run(), "no build found")
	assert.ErrorContains(t, (&BrokenRefsCmd{}).Run(), "no build found")
}

func TestSearchCmd(t *testing.T) {
	projectDir(t)
	runBuild(t)

	assert.NoError(t, (&SearchCmd{Query: "auth", Limit: 20}).Run())
	assert.NoError(t, (&SearchCmd{Query: "no such requirement anywhere"}).Run())
	assert.Error(t, (&SearchCmd{Query: "(", Regex: true}).Run())
	assert.Error(t, (&SearchCmd{Query: "auth", Scope: "REQ-missing"}).Run())
}

func TestCoverageCmd(t *testing.T) {
	projectDir(t)
	runBuild(t)

	assert.NoError(t, (&CoverageCmd{}).Run())
	assert.NoError(t, (&CoverageCmd{ID: "REQ-p00001"}).Run())
	assert.ErrorContains(t, (&CoverageCmd{ID: "REQ-missing"}).Run(), "not found")
}

func TestSubtreeCmd(t *testing.T) {
	projectDir(t)
	runBuild(t)

	assert.NoError(t, (&SubtreeCmd{Root: "REQ-p00001"}).Run())
	assert.NoError(t, (&SubtreeCmd{Root: "REQ-p00001", JSON: true}).Run())
	assert.Error(t, (&SubtreeCmd{Root: "REQ-missing"}).Run())
}

func TestMinimizeCmd(t *testing.T) {
	projectDir(t)
	runBuild(t)

	assert.NoError(t, (&MinimizeCmd{IDs: []string{"REQ-p00001"}}).Run())
	assert.Error(t, (&MinimizeCmd{IDs: []string{"REQ-missing"}}).Run())
}

func TestValidateCmdReportsIssues(t *testing.T) {
	root := projectDir(t)
	// An unresolvable parent link becomes a broken reference.
	writeFile(t, root, "specs/bad.md", `## REQ-d00009: Dangling

Implements: REQ-nope

- A. Something.
`)
	runBuild(t)

	assert.NoError(t, (&BrokenRefsCmd{}).Run())
	assert.ErrorContains(t, (&ValidateCmd{}).Run(), "validation found")
}

func TestValidateCmdCleanGraph(t *testing.T) {
	projectDir(t)
	runBuild(t)

	assert.NoError(t, (&ValidateCmd{}).Run())
}

func TestStatusCmd(t *testing.T) {
	projectDir(t)
	runBuild(t)

	assert.NoError(t, (&StatusCmd{}).Run())
}

func TestCleanCmd(t *testing.T) {
	root := projectDir(t)
	runBuild(t)

	require.NoError(t, (&CleanCmd{Force: true}).Run())
	assert.NoDirExists(t, filepath.Join(root, config.DataDirName))

	assert.ErrorContains(t, (&CleanCmd{Force: true}).Run(), "Nothing to clean")
}
