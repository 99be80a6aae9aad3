// Package parsers extracts traceability records from spec markdown,
// source code markers and test-run reports.
package parsers

import (
	"path/filepath"
	"strings"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// Parser defines the interface for format-specific parsers.
type Parser interface {
	// Parse extracts traceability records from one file.
	Parse(filePath string, content []byte) ([]graph.ParsedContent, error)

	// Format returns the format this parser handles.
	Format() string
}

// sourceExtensions lists the source file extensions scanned for
// traceability markers.
var sourceExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".ts":   true,
	".tsx":  true,
	".js":   true,
	".jsx":  true,
	".rs":   true,
	".java": true,
	".c":    true,
	".cc":   true,
	".cpp":  true,
	".h":    true,
	".rb":   true,
	".sh":   true,
	".sql":  true,
}

// ForFile returns the parser responsible for a file, or nil when the
// file carries no traceability content.
func ForFile(path string) Parser {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".results.json") {
		return NewResultsParser()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdownParser()
	}
	if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
		return NewCodeRefParser()
	}
	return nil
}
