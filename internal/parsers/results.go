package parsers

import (
	"encoding/json"
	"fmt"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// ResultsParser parses test-run reports: a JSON array of result objects.
type ResultsParser struct{}

// NewResultsParser creates a new test results parser.
func NewResultsParser() *ResultsParser {
	return &ResultsParser{}
}

// Format returns the format this parser handles.
func (p *ResultsParser) Format() string {
	return "results"
}

// resultEntry is the wire shape of one test result.
type resultEntry struct {
	Test       string  `json:"test"`
	Status     string  `json:"status"`
	DurationMS float64 `json:"duration_ms"`
	Message    string  `json:"message"`
}

// Parse decodes a results report into test result records. Entries with
// no test name or an unrecognized status are skipped, not fatal.
func (p *ResultsParser) Parse(filePath string, content []byte) ([]graph.ParsedContent, error) {
	var entries []resultEntry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("parsing results report %s: %w", filePath, err)
	}

	src := graph.SourceContext{File: filePath}
	var records []graph.ParsedContent
	for _, e := range entries {
		status, ok := normalizeStatus(e.Status)
		if e.Test == "" || !ok {
			continue
		}
		records = append(records, graph.ParsedContent{
			Type:   graph.ContentTestResult,
			Source: src,
			Result: &graph.TestResultData{
				TestID:     e.Test,
				Status:     status,
				DurationMS: e.DurationMS,
				Message:    e.Message,
			},
		})
	}
	return records, nil
}

// normalizeStatus maps report status spellings onto the three outcomes.
func normalizeStatus(s string) (graph.ResultStatus, bool) {
	switch s {
	case "passed", "pass", "ok":
		return graph.ResultPassed, true
	case "failed", "fail", "error":
		return graph.ResultFailed, true
	case "skipped", "skip", "pending":
		return graph.ResultSkipped, true
	}
	return "", false
}
