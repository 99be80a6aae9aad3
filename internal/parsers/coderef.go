package parsers

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// CodeRefParser scans source files for traceability markers in comments
// using a regex-based approach shared across languages. A marker binds
// to the next function declaration; markers with no following
// declaration attach to the file itself.
type CodeRefParser struct {
	markerRegex *regexp.Regexp
	funcRegexes []*regexp.Regexp
	classRegex  *regexp.Regexp
}

// NewCodeRefParser creates a new source marker parser.
func NewCodeRefParser() *CodeRefParser {
	return &CodeRefParser{
		markerRegex: regexp.MustCompile(`(?:Implements|Validates)\s*:\s*((?:REQ|UJ)-[\w.-]+(?:\s*,\s*(?:REQ|UJ)-[\w.-]+)*)`),
		funcRegexes: []*regexp.Regexp{
			regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`),          // Go
			regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`),              // Python
			regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+(\w+)`), // JS/TS
			regexp.MustCompile(`^(?:pub\s+)?fn\s+(\w+)`),                      // Rust
			regexp.MustCompile(`^(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?\(`),
		},
		classRegex: regexp.MustCompile(`^(?:export\s+)?class\s+(\w+)`),
	}
}

// Format returns the format this parser handles.
func (p *CodeRefParser) Format() string {
	return "coderef"
}

// commentPrefixes are stripped before marker matching so the marker
// regex sees comment text regardless of language.
var commentPrefixes = []string{"//", "#", "/*", "*", "--", "\"\"\""}

// Parse scans for markers and the declarations they annotate.
func (p *CodeRefParser) Parse(filePath string, content []byte) ([]graph.ParsedContent, error) {
	contentType := graph.ContentCodeRef
	if isTestFile(filePath) {
		contentType = graph.ContentTestRef
	}
	src := graph.SourceContext{File: filePath}
	lines := strings.Split(string(content), "\n")

	var records []graph.ParsedContent
	var pendingTargets []string
	pendingLine := 0
	currentClass := ""

	flush := func(funcName string, line int) {
		if len(pendingTargets) == 0 {
			return
		}
		records = append(records, graph.ParsedContent{
			Type:      contentType,
			StartLine: pendingLine,
			EndLine:   line,
			Source:    src,
			Ref: &graph.RefData{
				FuncName:  funcName,
				ClassName: currentClass,
				Targets:   pendingTargets,
			},
		})
		pendingTargets = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if comment, ok := commentText(trimmed); ok {
			if m := p.markerRegex.FindStringSubmatch(comment); m != nil {
				if len(pendingTargets) == 0 {
					pendingLine = lineNum
				}
				pendingTargets = append(pendingTargets, splitRefList(m[1])...)
			}
			continue
		}

		if m := p.classRegex.FindStringSubmatch(trimmed); m != nil {
			currentClass = m[1]
		}
		if name := p.funcName(trimmed); name != "" {
			flush(name, lineNum)
		}
	}
	// Markers with no declaration after them describe the whole file.
	currentClass = ""
	flush("", len(lines))

	return records, nil
}

// funcName extracts a declared function name, or empty.
func (p *CodeRefParser) funcName(line string) string {
	for _, re := range p.funcRegexes {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// commentText strips a recognized comment prefix, reporting whether the
// line was a comment at all.
func commentText(line string) (string, bool) {
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

// isTestFile classifies a path as test code by naming convention.
func isTestFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(name, "_test") || strings.HasSuffix(name, ".test") ||
		strings.HasSuffix(name, ".spec") || strings.HasPrefix(name, "test_") {
		return true
	}
	dir := strings.ToLower(filepath.ToSlash(filepath.Dir(path)))
	return strings.HasSuffix(dir, "/tests") || strings.Contains(dir, "/tests/") ||
		strings.HasSuffix(dir, "/test") || strings.Contains(dir, "/test/")
}
