package parsers

import (
	"regexp"
	"strings"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// MarkdownParser parses spec markdown into requirement and journey
// records using a line-based approach.
type MarkdownParser struct {
	headingRegex   *regexp.Regexp
	assertionRegex *regexp.Regexp
	metadataRegex  *regexp.Regexp
}

// NewMarkdownParser creates a new spec markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		headingRegex:   regexp.MustCompile(`^#{1,6}\s+((?:REQ|UJ)-[\w.-]+)\s*:\s*(.+?)\s*$`),
		assertionRegex: regexp.MustCompile(`^-\s+([A-Z]{1,2})\.\s+(.+?)\s*$`),
		metadataRegex:  regexp.MustCompile(`^(Level|Status|Implements|Refines|Addresses|Keywords)\s*:\s*(.*?)\s*$`),
	}
}

// Format returns the format this parser handles.
func (p *MarkdownParser) Format() string {
	return "markdown"
}

// markdownBlock accumulates the lines of one heading-delimited section.
type markdownBlock struct {
	id        string
	title     string
	startLine int
	endLine   int
	lines     []string
}

// Parse parses spec markdown and extracts requirement, journey and
// remainder records.
func (p *MarkdownParser) Parse(filePath string, content []byte) ([]graph.ParsedContent, error) {
	src := graph.SourceContext{File: filePath}
	lines := strings.Split(string(content), "\n")

	var records []graph.ParsedContent
	var block *markdownBlock
	var remainder []string
	remainderStart := 1

	flushRemainder := func(endLine int) {
		text := strings.TrimSpace(strings.Join(remainder, "\n"))
		if text != "" {
			records = append(records, graph.ParsedContent{
				Type:      graph.ContentRemainder,
				StartLine: remainderStart,
				EndLine:   endLine,
				Raw:       text,
				Source:    src,
			})
		}
		remainder = nil
	}

	flushBlock := func() {
		if block == nil {
			return
		}
		records = append(records, p.buildRecord(block, src))
		block = nil
	}

	for i, line := range lines {
		lineNum := i + 1
		if m := p.headingRegex.FindStringSubmatch(line); m != nil {
			flushBlock()
			flushRemainder(lineNum - 1)
			block = &markdownBlock{id: m[1], title: m[2], startLine: lineNum, endLine: lineNum}
			continue
		}
		if block != nil {
			// A new unrelated heading ends the block.
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				flushBlock()
				remainderStart = lineNum
				remainder = append(remainder, line)
				continue
			}
			block.lines = append(block.lines, line)
			block.endLine = lineNum
			continue
		}
		if len(remainder) == 0 {
			remainderStart = lineNum
		}
		remainder = append(remainder, line)
	}
	flushBlock()
	flushRemainder(len(lines))

	return records, nil
}

// buildRecord classifies a block as requirement or journey and parses
// its metadata, assertions and body.
func (p *MarkdownParser) buildRecord(b *markdownBlock, src graph.SourceContext) graph.ParsedContent {
	rec := graph.ParsedContent{
		StartLine: b.startLine,
		EndLine:   b.endLine,
		Raw:       strings.Join(b.lines, "\n"),
		Source:    src,
	}

	if strings.HasPrefix(b.id, "UJ-") {
		rec.Type = graph.ContentJourney
		rec.Journey = &graph.JourneyData{
			ID:    b.id,
			Title: b.title,
			Body:  strings.TrimSpace(rec.Raw),
		}
		return rec
	}

	req := &graph.RequirementData{ID: b.id, Title: b.title}
	var body []string
	for _, line := range b.lines {
		trimmed := strings.TrimSpace(line)

		if m := p.metadataRegex.FindStringSubmatch(trimmed); m != nil {
			switch m[1] {
			case "Level":
				req.Level = m[2]
			case "Status":
				req.Status = m[2]
			case "Keywords":
				req.Keywords = splitRefList(m[2])
			case "Implements":
				appendLinks(req, m[2], graph.EdgeImplements)
			case "Refines":
				appendLinks(req, m[2], graph.EdgeRefines)
			case "Addresses":
				appendLinks(req, m[2], graph.EdgeAddresses)
			}
			continue
		}
		if m := p.assertionRegex.FindStringSubmatch(trimmed); m != nil {
			req.Assertions = append(req.Assertions, graph.AssertionData{Label: m[1], Text: m[2]})
			continue
		}
		body = append(body, line)
	}
	req.Body = strings.TrimSpace(strings.Join(body, "\n"))

	rec.Type = graph.ContentRequirement
	rec.Requirement = req
	return rec
}

func appendLinks(req *graph.RequirementData, refs string, kind graph.EdgeKind) {
	for _, ref := range splitRefList(refs) {
		req.Links = append(req.Links, graph.LinkData{TargetRef: ref, Kind: kind})
	}
}

// splitRefList splits a comma-separated reference list, dropping empties.
func splitRefList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
