// Package cmd provides CLI command implementations for reqtrace.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/reqtrace/reqtrace-go/internal/config"
	"github.com/reqtrace/reqtrace-go/internal/graph"
	"github.com/reqtrace/reqtrace-go/internal/ingestion"
	"github.com/reqtrace/reqtrace-go/internal/storage"
	"github.com/reqtrace/reqtrace-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// BuildCmd ingests the project's artifacts into a traceability graph.
type BuildCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to project root"`
}

// Run executes the build command.
func (c *BuildCmd) Run() error {
	ctx := context.Background()
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	color.Green("Building traceability graph for %s", root)

	dataDir := cfg.DataDir(root)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", config.DataDirName, err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(filepath.Join(dataDir, "badger"), false); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	progress := func(phase string, pct float64) {
		fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
	}

	g, result, err := ingestion.RunPipeline(ctx, root, cfg, store, progress)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	fmt.Println() // Newline after progress

	meta := map[string]any{
		"version":  Version,
		"name":     filepath.Base(root),
		"path":     root,
		"stats":    result,
		"built_at": time.Now().UTC().Format(time.RFC3339),
	}
	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(dataDir, "meta.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}

	color.Green("\n✓ Build complete")
	fmt.Printf("  Files:        %d\n", result.Files)
	fmt.Printf("  Requirements: %d\n", result.Requirements)
	fmt.Printf("  Assertions:   %d\n", result.Assertions)
	fmt.Printf("  Journeys:     %d\n", result.Journeys)
	fmt.Printf("  Code refs:    %d\n", result.CodeRefs)
	fmt.Printf("  Test refs:    %d\n", result.TestRefs)
	fmt.Printf("  Duration:     %.2fs\n", result.DurationSecs)

	if result.BrokenRefs > 0 {
		color.Yellow("  Broken refs:  %d (run 'reqtrace broken-refs')", result.BrokenRefs)
	}
	if orphans := g.Orphans(); len(orphans) > 0 {
		color.Yellow("  Orphans:      %d (run 'reqtrace validate')", len(orphans))
	}

	return nil
}

// SearchCmd searches requirements.
type SearchCmd struct {
	Query     string `arg:"" help:"Search text"`
	Field     string `help:"Restrict to one field" enum:"id,title,body,keywords," default:""`
	Regex     bool   `help:"Treat query as a regular expression"`
	Scope     string `help:"Restrict to subtree or ancestry of this node"`
	Direction string `help:"Scope direction" enum:"descendants,ancestors," default:""`
	Limit     int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run() error {
	g, _, err := loadProject()
	if err != nil {
		return err
	}

	opts := graph.SearchOptions{
		Query: c.Query,
		Field: graph.SearchField(c.Field),
		Regex: c.Regex,
		Limit: c.Limit,
	}

	var matches []graph.SearchMatch
	if c.Scope != "" {
		matches, err = graph.ScopedSearch(g, opts, c.Scope, graph.ScopeDirection(c.Direction))
	} else {
		matches, err = graph.Search(g, opts)
	}
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No results found")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("\n%d. %s: %s\n", i+1, color.CyanString(m.Node.ID), m.Node.Label)
		if m.Field != "" {
			fmt.Printf("   Matched on %s", m.Field)
			if m.Snippet != "" {
				fmt.Printf(": %s", m.Snippet)
			}
			fmt.Println()
		}
	}

	return nil
}

// CoverageCmd reports assertion coverage.
type CoverageCmd struct {
	ID string `arg:"" optional:"" help:"Requirement to inspect; omit for a summary of all roots"`
}

// Run executes the coverage command.
func (c *CoverageCmd) Run() error {
	g, cfg, err := loadProject()
	if err != nil {
		return err
	}

	result := graph.ComputeRollupDetailed(g, cfg.RollupOptions())

	if c.ID == "" {
		return printCoverageSummary(g, result)
	}
	return printRequirementCoverage(g, result, c.ID)
}

func printCoverageSummary(g *graph.Graph, result *graph.RollupResult) error {
	roots := g.Roots()
	sort.Strings(roots)

	printed := 0
	for _, id := range roots {
		n := g.GetNode(id)
		if n == nil || n.Kind != graph.KindRequirement {
			continue
		}
		m := result.Metrics[id]
		if m == nil {
			continue
		}
		line := fmt.Sprintf("%-20s %5.1f%%  (%d/%d assertions)", id, m.CoveragePct, m.CoveredAssertions, m.TotalAssertions)
		switch {
		case m.HasFailures:
			color.Red("%s  FAILING", line)
		case m.Validated:
			color.Green("%s  validated", line)
		default:
			fmt.Println(line)
		}
		printed++
	}
	if printed == 0 {
		fmt.Println("No root requirements found")
	}
	return nil
}

func printRequirementCoverage(g *graph.Graph, result *graph.RollupResult, id string) error {
	req := g.GetNode(id)
	if req == nil || req.Kind != graph.KindRequirement {
		return fmt.Errorf("requirement %q not found", id)
	}
	m := result.Metrics[id]
	if m == nil {
		return fmt.Errorf("no coverage computed for %q", id)
	}

	fmt.Printf("%s: %s\n\n", color.CyanString(id), req.Label)
	fmt.Printf("Coverage:       %.1f%% (%d/%d assertions)\n", m.CoveragePct, m.CoveredAssertions, m.TotalAssertions)
	fmt.Printf("With indirect:  %.1f%%\n", m.IndirectCoveragePct)
	fmt.Printf("Tests:          %d (%d passed, %d failed, %d skipped)\n",
		m.TotalTests, m.PassedTests, m.FailedTests, m.SkippedTests)
	fmt.Printf("Code refs:      %d\n", m.TotalCodeRefs)

	switch {
	case m.HasFailures:
		color.Red("Validated:      no (failing tests)")
	case m.Validated:
		color.Green("Validated:      yes")
	case m.ValidatedWithIndirect:
		color.Yellow("Validated:      indirect evidence only")
	default:
		fmt.Println("Validated:      no")
	}

	assertions := g.AssertionsOf(id)
	if len(assertions) > 0 {
		fmt.Println("\nAssertions:")
		for _, a := range assertions {
			contribs := result.Contributions(a.ID)
			marker := "[ ]"
			if len(contribs) > 0 {
				marker = "[x]"
			}
			fmt.Printf("  %s %s. %s\n", marker, a.Assertion.Label, a.Assertion.Text)
			for _, contrib := range contribs {
				fmt.Printf("        %-8s %s\n", contrib.Source, contrib.SourceID)
			}
		}
	}
	return nil
}

// SubtreeCmd prints the subtree under a node.
type SubtreeCmd struct {
	Root  string   `arg:"" help:"Root node ID"`
	Depth int      `short:"d" default:"0" help:"Maximum depth (0 = unlimited)"`
	Kinds []string `help:"Node kinds to include"`
	JSON  bool     `help:"Emit the subtree as JSON"`
}

// Run executes the subtree command.
func (c *SubtreeCmd) Run() error {
	g, _, err := loadProject()
	if err != nil {
		return err
	}

	kinds := make([]graph.Kind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		kinds = append(kinds, graph.Kind(k))
	}

	sub, err := graph.ExtractSubtree(g, graph.SubtreeOptions{
		RootID: c.Root,
		Depth:  c.Depth,
		Kinds:  kinds,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		out, err := json.MarshalIndent(sub, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Print(sub.Outline)
	fmt.Println()
	keys := make([]string, 0, len(sub.Stats))
	for k := range sub.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %d\n", k, sub.Stats[k])
	}
	return nil
}

// MinimizeCmd reduces a requirement set to its most specific members.
type MinimizeCmd struct {
	IDs []string `arg:"" help:"Requirement IDs to minimize"`
}

// Run executes the minimize command.
func (c *MinimizeCmd) Run() error {
	g, _, err := loadProject()
	if err != nil {
		return err
	}

	result, err := graph.MinimizeSet(g, c.IDs)
	if err != nil {
		return err
	}

	fmt.Printf("Kept %d of %d:\n", len(result.Kept), len(c.IDs))
	for _, id := range result.Kept {
		fmt.Printf("  %s\n", color.CyanString(id))
	}
	if len(result.Pruned) > 0 {
		fmt.Println("\nPruned:")
		for _, p := range result.Pruned {
			fmt.Printf("  %s (superseded by %s)\n", p.ID, strings.Join(p.SupersededBy, ", "))
		}
	}
	return nil
}

// BrokenRefsCmd lists unresolved references.
type BrokenRefsCmd struct{}

// Run executes the broken-refs command.
func (c *BrokenRefsCmd) Run() error {
	g, _, err := loadProject()
	if err != nil {
		return err
	}

	refs := g.BrokenRefs()
	if len(refs) == 0 {
		color.Green("No broken references")
		return nil
	}

	color.Yellow("Found %d broken references:", len(refs))
	for _, r := range refs {
		fmt.Printf("  %s declared %s -> %s\n", r.SourceID, r.Kind, r.TargetRef)
	}
	return nil
}

// ValidateCmd checks the graph for structural problems.
type ValidateCmd struct{}

// Run executes the validate command.
func (c *ValidateCmd) Run() error {
	g, _, err := loadProject()
	if err != nil {
		return err
	}

	report := graph.Validate(g)
	if report.OK() {
		color.Green("Graph is clean: no cycles, orphans, broken references, or warnings")
		return nil
	}

	if len(report.Cycles) > 0 {
		color.Red("Cycles (%d):", len(report.Cycles))
		for _, cy := range report.Cycles {
			fmt.Printf("  %s\n", strings.Join(cy.NodeIDs, " -> "))
		}
	}
	if len(report.BrokenRefs) > 0 {
		color.Yellow("Broken references (%d):", len(report.BrokenRefs))
		for _, r := range report.BrokenRefs {
			fmt.Printf("  %s -> %s (%s)\n", r.SourceID, r.TargetRef, r.Kind)
		}
	}
	if len(report.Orphans) > 0 {
		color.Yellow("Orphans (%d):", len(report.Orphans))
		for _, id := range report.Orphans {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(report.Warnings) > 0 {
		color.Yellow("Warnings (%d):", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  %s\n", w.Message)
		}
	}

	issues := len(report.Cycles) + len(report.BrokenRefs) + len(report.Orphans) + len(report.Warnings)
	return fmt.Errorf("validation found %d issues", issues)
}

// WatchCmd rebuilds the graph whenever artifacts change.
type WatchCmd struct{}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	root, cfg, err := projectRoot()
	if err != nil {
		return err
	}

	store, err := openStore(root, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	onRebuild := func(changed []string, _ *graph.Graph, result *ingestion.PipelineResult) {
		fmt.Printf("Rebuilt after %d changed file(s): %d requirements, %d broken refs (%.2fs)\n",
			len(changed), result.Requirements, result.BrokenRefs, result.DurationSecs)
	}

	err = ingestion.WatchProject(ctx, root, cfg, store, onRebuild)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	g, cfg, err := loadProject()
	if err != nil {
		return err
	}

	server := mcp.NewServer(g, graph.HashMode(cfg.HashMode), cfg.RollupOptions())

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(context.Background(), os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Watch bool `short:"w" help:"Rebuild and reload the graph on artifact changes"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	root, cfg, err := projectRoot()
	if err != nil {
		return err
	}

	g, err := loadSnapshot(root, cfg)
	if err != nil {
		return err
	}

	server := mcp.NewServer(g, graph.HashMode(cfg.HashMode), cfg.RollupOptions())
	ctx := context.Background()

	if c.Watch {
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		store, err := openStore(root, cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		onRebuild := func(_ []string, rebuilt *graph.Graph, _ *ingestion.PipelineResult) {
			server.Reload(rebuilt)
		}

		go func() {
			err := ingestion.WatchProject(watchCtx, root, cfg, store, onRebuild)
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()

		fmt.Fprintln(os.Stderr, "File watching enabled")
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// StatusCmd shows build status for the current project.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	root, cfg, err := projectRoot()
	if err != nil {
		return err
	}

	metaPath := filepath.Join(cfg.DataDir(root), "meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no build found at %s. Run 'reqtrace build' first", root)
		}
		return fmt.Errorf("reading meta.json: %w", err)
	}

	var meta map[string]any
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parsing meta.json: %w", err)
	}

	fmt.Printf("Build status for %s\n", root)
	if version, ok := meta["version"].(string); ok {
		fmt.Printf("  Version:       %s\n", version)
	}
	if builtAt, ok := meta["built_at"].(string); ok {
		fmt.Printf("  Last built:    %s\n", builtAt)
	}
	if stats, ok := meta["stats"].(map[string]any); ok {
		printStat := func(label, key string) {
			if v, ok := stats[key].(float64); ok {
				fmt.Printf("  %-14s %.0f\n", label+":", v)
			}
		}
		printStat("Files", "Files")
		printStat("Requirements", "Requirements")
		printStat("Assertions", "Assertions")
		printStat("Broken refs", "BrokenRefs")
	}

	info, err := ingestion.InspectGit(root, cfg)
	if err == nil && info != nil {
		fmt.Printf("  Branch:        %s\n", info.Branch)
		if len(info.ChangedArtifacts) > 0 {
			color.Yellow("  Stale:         %d artifact(s) changed since last commit", len(info.ChangedArtifacts))
			for _, f := range info.ChangedArtifacts {
				fmt.Printf("    %s\n", f)
			}
		} else if info.Dirty {
			fmt.Println("  Worktree:      dirty (no artifact changes)")
		}
	}

	return nil
}

// CleanCmd deletes the build data for the current project.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	root, cfg, err := projectRoot()
	if err != nil {
		return err
	}

	dataDir := cfg.DataDir(root)
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return fmt.Errorf("no build data found at %s. Nothing to clean", root)
	}

	if !c.Force {
		fmt.Printf("Delete build data at %s? [y/N] ", dataDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("deleting build data: %w", err)
	}

	color.Green("Deleted %s", dataDir)
	return nil
}

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Custom file path for configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	if !c.Qwen && !c.Claude && !c.Cursor {
		return c.outputDefaultConfig()
	}

	if !c.Local && !c.Global {
		c.Local = true
	}

	clients := []struct {
		enabled  bool
		name     string
		fileName string
	}{
		{c.Qwen, "qwen", "mcp.json"},
		{c.Claude, "claude", "settings.json"},
		{c.Cursor, "cursor", "mcp.json"},
	}

	for _, client := range clients {
		if !client.enabled {
			continue
		}
		if err := c.setupClient(client.name, client.fileName); err != nil {
			return err
		}
	}

	return nil
}

func (c *SetupCmd) outputDefaultConfig() error {
	cfg := generateMCPConfig()

	if c.Format == "json" {
		jsonBytes, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Println("# Add this to your MCP client configuration:")
	fmt.Println()
	for key, value := range cfg {
		fmt.Printf("%s: %s\n", key, toJSON(value))
	}
	return nil
}

func (c *SetupCmd) setupClient(name, fileName string) error {
	cfg := generateMCPConfig()

	if c.Global {
		globalPath := getGlobalConfigPath(name)
		if err := writeConfig(globalPath, cfg, c.Format); err != nil {
			return err
		}
		color.Green("✓ Created global %s MCP config at %s", name, globalPath)
	}

	if c.Local {
		var localPath string
		if c.FilePath != "" {
			localPath = filepath.Join(c.FilePath, fileName)
		} else {
			localPath = filepath.Join(".", getClientConfigDir(name), "mcp.json")
		}
		if err := writeConfig(localPath, cfg, c.Format); err != nil {
			return err
		}
		color.Green("✓ Created local %s MCP config at %s", name, localPath)
	}

	return nil
}

func generateMCPConfig() map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"reqtrace": map[string]any{
				"command": "reqtrace",
				"args":    []string{"serve", "--watch"},
			},
		},
	}
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return filepath.Join(homeDir, getClientConfigDir(client), "global", "mcp.json")
}

func getClientConfigDir(client string) string {
	switch client {
	case "qwen":
		return ".qwen"
	case "claude":
		return ".claude"
	case "cursor":
		return ".cursor"
	default:
		return ".qwen"
	}
}

func writeConfig(configPath string, cfg map[string]any, format string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	var content []byte
	if format == "json" {
		jsonBytes, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		content = append(jsonBytes, '\n')
	} else {
		var sb strings.Builder
		sb.WriteString("# MCP configuration for reqtrace\n")
		sb.WriteString("# Generated by reqtrace setup\n\n")
		for key, value := range cfg {
			sb.WriteString(fmt.Sprintf("%s: %s\n", key, toJSON(value)))
		}
		content = []byte(sb.String())
	}

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

func projectRoot() (string, *config.Config, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

func openStore(root string, cfg *config.Config, readOnly bool) (*storage.BadgerBackend, error) {
	dbPath := filepath.Join(cfg.DataDir(root), "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no build found at %s. Run 'reqtrace build' first", root)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// loadSnapshot restores the last built graph and recomputes rollups,
// which are never persisted.
func loadSnapshot(root string, cfg *config.Config) (*graph.Graph, error) {
	store, err := openStore(root, cfg, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	g, err := store.LoadSnapshot(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	graph.ComputeRollup(g, cfg.RollupOptions())
	return g, nil
}

func loadProject() (*graph.Graph, *config.Config, error) {
	root, cfg, err := projectRoot()
	if err != nil {
		return nil, nil, err
	}
	g, err := loadSnapshot(root, cfg)
	if err != nil {
		return nil, nil, err
	}
	return g, cfg, nil
}

func toJSON(v any) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Build      BuildCmd      `cmd:"" help:"Build the traceability graph from project artifacts"`
	Search     SearchCmd     `cmd:"" help:"Search requirements"`
	Coverage   CoverageCmd   `cmd:"" help:"Report assertion coverage"`
	Subtree    SubtreeCmd    `cmd:"" help:"Print the subtree under a node"`
	Minimize   MinimizeCmd   `cmd:"" help:"Reduce a requirement set to its most specific members"`
	BrokenRefs BrokenRefsCmd `cmd:"" name:"broken-refs" help:"List unresolved references"`
	Validate   ValidateCmd   `cmd:"" help:"Check the graph for cycles, orphans, and schema issues"`
	Watch      WatchCmd      `cmd:"" help:"Rebuild automatically on artifact changes"`
	MCP        MCPCmd        `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve      ServeCmd      `cmd:"" help:"Start MCP server with optional watch mode"`
	Status     StatusCmd     `cmd:"" help:"Show build status for the current project"`
	Clean      CleanCmd      `cmd:"" help:"Delete build data for the current project"`
	Setup      SetupCmd      `cmd:"" help:"Configure MCP for Claude Code / Cursor / Qwen"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("reqtrace"),
		kong.Description("Requirements traceability graph engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}
