// Package ingestion discovers project artifacts and runs the build
// pipeline that turns them into a traceability graph.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/reqtrace/reqtrace-go/internal/config"
	"github.com/reqtrace/reqtrace-go/internal/parsers"
)

// FileEntry represents one artifact file selected for parsing.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the project root.
	RelPath string

	// Content is the file content.
	Content []byte

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	"vendor/",
	".reqtrace/",
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".pytest_cache/",
	".mypy_cache/",
	"coverage/",
	"htmlcov/",
	"dist/",
	"build/",
	".DS_Store",
	"Thumbs.db",
}

// selector decides which discovered files enter the pipeline.
type selector struct {
	ignore  gitignore.Matcher
	specs   gitignore.Matcher
	results gitignore.Matcher
}

func newSelector(root string, cfg *config.Config) *selector {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	patterns = append(patterns, loadGitignore(root)...)

	return &selector{
		ignore:  gitignore.NewMatcher(patterns),
		specs:   globMatcher(cfg.SpecGlobs),
		results: globMatcher(cfg.ResultsGlobs),
	}
}

// globMatcher reuses gitignore pattern syntax for inclusion globs.
func globMatcher(globs []string) gitignore.Matcher {
	patterns := make([]gitignore.Pattern, 0, len(globs))
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(g, nil))
	}
	return gitignore.NewMatcher(patterns)
}

// wants reports whether the file at relPath participates in the build.
// Markdown files must match a spec glob and report files a results
// glob; source files only need a recognized extension.
func (s *selector) wants(relPath string) bool {
	parts := splitPath(relPath)
	if s.ignore.Match(parts, false) {
		return false
	}
	parser := parsers.ForFile(relPath)
	if parser == nil {
		return false
	}
	switch parser.Format() {
	case "markdown":
		return s.specs.Match(parts, false)
	case "results":
		return s.results.Match(parts, false)
	default:
		return true
	}
}

func (s *selector) skipDir(name, path, root string) bool {
	if name == ".git" {
		return true
	}
	relPath, err := filepath.Rel(root, path)
	if err != nil || relPath == "." {
		return false
	}
	return s.ignore.Match(splitPath(relPath), true)
}

// WalkProject walks the project tree and returns every artifact file
// the configured globs and parsers select.
func WalkProject(root string, cfg *config.Config) ([]FileEntry, error) {
	sel := newSelector(root, cfg)

	var entries []FileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if sel.skipDir(d.Name(), path, root) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if !sel.wants(relPath) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		hash := sha256.Sum256(content)
		entries = append(entries, FileEntry{
			Path:    path,
			RelPath: relPath,
			Content: content,
			SHA256:  hex.EncodeToString(hash[:]),
		})

		return nil
	})

	return entries, err
}

// loadGitignore loads .gitignore patterns from the project root.
func loadGitignore(root string) []gitignore.Pattern {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
