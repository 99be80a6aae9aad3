package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reqtrace/reqtrace-go/internal/config"
	"github.com/reqtrace/reqtrace-go/internal/graph"
	"github.com/reqtrace/reqtrace-go/internal/parsers"
	"github.com/reqtrace/reqtrace-go/internal/storage"
)

// ParseData holds the parsed records of every ingested file.
type ParseData struct {
	mu    sync.RWMutex
	Files map[string][]graph.ParsedContent
}

// NewParseData creates an empty ParseData instance.
func NewParseData() *ParseData {
	return &ParseData{Files: make(map[string][]graph.ParsedContent)}
}

// AddFile stores the records parsed from one file.
func (p *ParseData) AddFile(relPath string, records []graph.ParsedContent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Files[relPath] = records
}

// Records flattens all per-file records into one build input slice.
func (p *ParseData) Records() []graph.ParsedContent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []graph.ParsedContent
	for _, recs := range p.Files {
		out = append(out, recs...)
	}
	return out
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Files        int
	Requirements int
	Assertions   int
	Journeys     int
	CodeRefs     int
	TestRefs     int
	TestResults  int
	BrokenRefs   int
	DurationSecs float64
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// RunPipeline walks the project, parses every selected artifact,
// links the graph, computes coverage, and persists a snapshot when a
// store is supplied. The returned graph already carries rollups.
func RunPipeline(
	ctx context.Context,
	root string,
	cfg *config.Config,
	store storage.Backend,
	progress ProgressCallback,
) (*graph.Graph, *PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{}

	report := func(phase string, p float64) {
		if progress != nil {
			progress(phase, p)
		}
	}

	// Phase 1: File walking
	report("Walking files", 0.0)
	entries, err := WalkProject(root, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("walking project: %w", err)
	}
	result.Files = len(entries)
	report("Walking files", 1.0)

	// Phase 2: Parsing
	report("Parsing artifacts", 0.0)
	parseData, err := ParseEntries(ctx, entries)
	if err != nil {
		return nil, nil, err
	}
	report("Parsing artifacts", 1.0)

	// Phase 3: Linking
	report("Linking graph", 0.0)
	g := graph.NewBuilder(cfg.BuildConfig()).Build(parseData.Records())
	report("Linking graph", 1.0)

	// Phase 4: Coverage
	report("Computing coverage", 0.0)
	graph.ComputeRollup(g, cfg.RollupOptions())
	report("Computing coverage", 1.0)

	countNodes(g, result)
	result.BrokenRefs = len(g.BrokenRefs())

	// Phase 5: Snapshot
	if store != nil {
		report("Saving snapshot", 0.0)
		if err := store.SaveSnapshot(ctx, g); err != nil {
			return nil, nil, fmt.Errorf("saving snapshot: %w", err)
		}
		report("Saving snapshot", 1.0)
	}

	result.DurationSecs = time.Since(start).Seconds()
	return g, result, nil
}

// ParseEntries runs every entry through its parser. Files no parser
// recognizes are skipped; a parse failure aborts the run because it
// means a selected artifact is unreadable, not merely unlinked.
func ParseEntries(ctx context.Context, entries []FileEntry) (*ParseData, error) {
	parseData := NewParseData()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parser := parsers.ForFile(entry.RelPath)
		if parser == nil {
			continue
		}
		records, err := parser.Parse(entry.RelPath, entry.Content)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.RelPath, err)
		}
		parseData.AddFile(entry.RelPath, records)
	}
	return parseData, nil
}

func countNodes(g *graph.Graph, result *PipelineResult) {
	result.Requirements = len(g.FindByKind(graph.KindRequirement))
	result.Assertions = len(g.FindByKind(graph.KindAssertion))
	result.Journeys = len(g.FindByKind(graph.KindUserJourney))
	result.CodeRefs = len(g.FindByKind(graph.KindCode))
	result.TestRefs = len(g.FindByKind(graph.KindTest))
	result.TestResults = len(g.FindByKind(graph.KindTestResult))
}
