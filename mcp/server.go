// Package mcp provides the MCP (Model Context Protocol) server for
// reqtrace.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// Server exposes the traceability graph over MCP.
type Server struct {
	mu       sync.Mutex
	g        *graph.Graph
	opts     graph.RollupOptions
	hashMode graph.HashMode
	mutator  *graph.Mutator
	session  *graph.Session
	server   *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates an MCP server over a built graph. Mutations apply
// to the graph in memory; callers own persistence.
func NewServer(g *graph.Graph, hashMode graph.HashMode, opts graph.RollupOptions) *Server {
	s := &Server{
		g:        g,
		opts:     opts,
		hashMode: hashMode,
		mutator:  graph.NewMutator(g, hashMode),
		session:  graph.NewSession(),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "reqtrace",
		Version: "0.1.0",
	}, nil)

	return s
}

// Reload swaps in a rebuilt graph. Open cursors and the mutation
// journal are discarded: they refer to nodes of the old graph.
func (s *Server) Reload(g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.g = g
	s.mutator = graph.NewMutator(g, s.hashMode)
	s.session = graph.NewSession()
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "trace_search",
			Description: "Search requirements by id, title, body, or keywords. Opens a cursor over the full match set and returns the first page.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query":     {Type: "string", Description: "Search text or regular expression"},
					"field":     {Type: "string", Description: "Restrict to one field: id, title, body, keywords"},
					"regex":     {Type: "boolean", Description: "Treat the query as a regular expression"},
					"scope":     {Type: "string", Description: "Restrict to the subtree or ancestry of this node ID"},
					"direction": {Type: "string", Description: "Scope direction: descendants (default) or ancestors"},
					"page_size": {Type: "integer", Description: "Results per page"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "trace_cursor_next",
			Description: "Fetch the next page of the open search cursor.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"count": {Type: "integer", Description: "Results to fetch"},
				},
			},
		},
		{
			Name:        "trace_cursor_info",
			Description: "Describe the open search cursor without advancing it.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "trace_coverage",
			Description: "Coverage rollup for one requirement: per-assertion sources, validation, and aggregate percentages.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"id": {Type: "string", Description: "Requirement ID"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "trace_subtree",
			Description: "Extract the subtree under a node as an outline with node and edge listings.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"root":  {Type: "string", Description: "Root node ID"},
					"depth": {Type: "integer", Description: "Maximum depth, 0 for unlimited"},
					"kinds": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Node kinds to include",
					},
				},
				Required: []string{"root"},
			},
		},
		{
			Name:        "trace_minimize",
			Description: "Minimize a requirement set: drop members subsumed by more specific members along implements/refines edges.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"ids": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Requirement IDs to minimize",
					},
				},
				Required: []string{"ids"},
			},
		},
		{
			Name:        "trace_discover",
			Description: "Search and minimize in one step: find the most specific requirements matching a query.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query":     {Type: "string", Description: "Search text"},
					"scope":     {Type: "string", Description: "Restrict to the subtree or ancestry of this node ID"},
					"direction": {Type: "string", Description: "Scope direction: descendants (default) or ancestors"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "trace_broken_refs",
			Description: "List declared references that did not resolve to any node.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "trace_validate",
			Description: "Validate the graph: cycles, orphans, broken references, and schema warnings.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "trace_mutate",
			Description: "Apply one mutation to the graph. Every mutation is journaled and undoable via trace_undo.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"op":         {Type: "string", Description: "One of: rename_node, update_title, change_status, add_requirement, delete_requirement, add_assertion, update_assertion, delete_assertion, rename_assertion, add_edge, change_edge_kind, delete_edge, fix_broken_reference"},
					"id":         {Type: "string", Description: "Target node ID"},
					"new_id":     {Type: "string", Description: "New ID for rename_node"},
					"title":      {Type: "string", Description: "Title for update_title and add_requirement"},
					"status":     {Type: "string", Description: "Status for change_status and add_requirement"},
					"level":      {Type: "string", Description: "Level for add_requirement"},
					"body":       {Type: "string", Description: "Body for add_requirement"},
					"parent":     {Type: "string", Description: "Parent requirement ID for add_requirement"},
					"text":       {Type: "string", Description: "Assertion text"},
					"label":      {Type: "string", Description: "New label for rename_assertion"},
					"compact":    {Type: "boolean", Description: "Shift sibling labels down on delete_assertion (default true)"},
					"from":       {Type: "string", Description: "Edge source node ID"},
					"to":         {Type: "string", Description: "Edge target node ID"},
					"kind":       {Type: "string", Description: "Edge kind; disambiguates fix_broken_reference when a pair is recorded with several kinds"},
					"new_kind":   {Type: "string", Description: "New edge kind for change_edge_kind"},
					"targets":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Assertion labels the edge addresses"},
					"target_ref": {Type: "string", Description: "Broken reference text for fix_broken_reference"},
					"new_target": {Type: "string", Description: "Resolved node ID for fix_broken_reference"},
				},
				Required: []string{"op"},
			},
		},
		{
			Name:        "trace_undo",
			Description: "Undo mutations. Without entry_id the most recent mutation is reverted; with it, everything back to and including that entry.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entry_id": {Type: "string", Description: "Journal entry to revert back to"},
				},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "reqtrace://overview",
			Name:        "Graph Overview",
			Description: "High-level statistics about the traceability graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "reqtrace://coverage",
			Name:        "Coverage Report",
			Description: "Coverage rollup for every root requirement",
			MimeType:    "text/plain",
		},
		{
			URI:         "reqtrace://schema",
			Name:        "Graph Schema",
			Description: "Description of the traceability graph schema",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "trace_search":
		return s.handleSearch(args)
	case "trace_cursor_next":
		count, _ := args["count"].(float64)
		return s.handleCursorNext(int(count))
	case "trace_cursor_info":
		return s.handleCursorInfo()
	case "trace_coverage":
		id, _ := args["id"].(string)
		return s.handleCoverage(id)
	case "trace_subtree":
		return s.handleSubtree(args)
	case "trace_minimize":
		return s.handleMinimize(stringSlice(args["ids"]))
	case "trace_discover":
		return s.handleDiscover(args)
	case "trace_broken_refs":
		return s.handleBrokenRefs()
	case "trace_validate":
		return s.handleValidate()
	case "trace_mutate":
		return s.handleMutate(args)
	case "trace_undo":
		entryID, _ := args["entry_id"].(string)
		return s.handleUndo(entryID)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "reqtrace://overview":
		return s.getOverview(), nil
	case "reqtrace://coverage":
		return s.getCoverageReport(), nil
	case "reqtrace://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		s.mu.Lock()
		resp := s.handleRequest(ctx, req)
		s.mu.Unlock()
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "reqtrace",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) handleSearch(args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "No query provided", nil
	}
	field, _ := args["field"].(string)
	regex, _ := args["regex"].(bool)
	scope, _ := args["scope"].(string)
	direction, _ := args["direction"].(string)
	pageSize, _ := args["page_size"].(float64)

	opts := graph.SearchOptions{
		Query: query,
		Field: graph.SearchField(field),
		Regex: regex,
	}

	var matches []graph.SearchMatch
	var err error
	if scope != "" {
		matches, err = graph.ScopedSearch(s.g, opts, scope, graph.ScopeDirection(direction))
	} else {
		matches, err = graph.Search(s.g, opts)
	}
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		s.session.Close()
		return fmt.Sprintf("No requirements match '%s'.", query), nil
	}

	info := s.session.Open(query, matches)
	page, err := s.session.Next(int(pageSize))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d requirements for '%s' (cursor %s):\n\n", info.Total, query, info.ID)
	writeMatches(&sb, page.Items, page.Offset)
	writePageFooter(&sb, page)
	return sb.String(), nil
}

func (s *Server) handleCursorNext(count int) (string, error) {
	page, err := s.session.Next(count)
	if err != nil {
		return "", err
	}
	if len(page.Items) == 0 {
		return "Cursor exhausted.", nil
	}

	var sb strings.Builder
	writeMatches(&sb, page.Items, page.Offset)
	writePageFooter(&sb, page)
	return sb.String(), nil
}

func (s *Server) handleCursorInfo() (string, error) {
	info := s.session.Info()
	if info == nil {
		return "No cursor open.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Cursor %s\n", info.ID)
	fmt.Fprintf(&sb, "Query: %s\n", info.Query)
	fmt.Fprintf(&sb, "Position: %d of %d\n", info.Position, info.Total)
	fmt.Fprintf(&sb, "Exhausted: %v\n", info.Exhausted)
	return sb.String(), nil
}

func (s *Server) handleCoverage(id string) (string, error) {
	req := s.g.GetNode(id)
	if req == nil || req.Kind != graph.KindRequirement {
		return fmt.Sprintf("Requirement '%s' not found.", id), nil
	}

	result := graph.ComputeRollupDetailed(s.g, s.opts)
	m := result.Metrics[id]
	if m == nil {
		return fmt.Sprintf("No coverage computed for '%s'.", id), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Coverage for %s: %s\n\n", id, req.Label)
	fmt.Fprintf(&sb, "Coverage: %.1f%% (%d of %d assertions)\n", m.CoveragePct, m.CoveredAssertions, m.TotalAssertions)
	fmt.Fprintf(&sb, "With indirect: %.1f%%\n", m.IndirectCoveragePct)
	fmt.Fprintf(&sb, "Validated: %v", m.Validated)
	if !m.Validated && m.ValidatedWithIndirect {
		sb.WriteString(" (validated with indirect evidence)")
	}
	sb.WriteString("\n")
	if m.HasFailures {
		sb.WriteString("Failing tests are present under this requirement.\n")
	}
	fmt.Fprintf(&sb, "Tests: %d (%d passed, %d failed, %d skipped), code refs: %d\n\n",
		m.TotalTests, m.PassedTests, m.FailedTests, m.SkippedTests, m.TotalCodeRefs)

	assertions := s.g.AssertionsOf(id)
	if len(assertions) > 0 {
		sb.WriteString("## Assertions\n\n")
		for _, a := range assertions {
			contribs := result.Contributions(a.ID)
			marker := " "
			if len(contribs) > 0 {
				marker = "x"
			}
			fmt.Fprintf(&sb, "- [%s] %s. %s\n", marker, a.Assertion.Label, a.Assertion.Text)
			for _, c := range contribs {
				fmt.Fprintf(&sb, "      %s: %s\n", c.Source, c.SourceID)
			}
		}
	}
	return sb.String(), nil
}

func (s *Server) handleSubtree(args map[string]any) (string, error) {
	root, _ := args["root"].(string)
	depth, _ := args["depth"].(float64)

	var kinds []graph.Kind
	for _, k := range stringSlice(args["kinds"]) {
		kinds = append(kinds, graph.Kind(k))
	}

	sub, err := graph.ExtractSubtree(s.g, graph.SubtreeOptions{
		RootID: root,
		Depth:  int(depth),
		Kinds:  kinds,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Subtree of %s\n\n", root)
	sb.WriteString(sub.Outline)
	sb.WriteString("\n")

	keys := make([]string, 0, len(sub.Stats))
	for k := range sub.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %d\n", k, sub.Stats[k])
	}
	return sb.String(), nil
}

func (s *Server) handleMinimize(ids []string) (string, error) {
	if len(ids) == 0 {
		return "No requirement IDs provided.", nil
	}

	result, err := graph.MinimizeSet(s.g, ids)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Minimized %d requirements to %d:\n\n", len(ids), len(result.Kept))
	for _, id := range result.Kept {
		fmt.Fprintf(&sb, "- %s\n", id)
	}
	if len(result.Pruned) > 0 {
		sb.WriteString("\nPruned (subsumed by more specific members):\n\n")
		for _, p := range result.Pruned {
			fmt.Fprintf(&sb, "- %s (superseded by %s)\n", p.ID, strings.Join(p.SupersededBy, ", "))
		}
	}
	return sb.String(), nil
}

func (s *Server) handleDiscover(args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "No query provided", nil
	}
	scope, _ := args["scope"].(string)
	direction, _ := args["direction"].(string)

	result, err := graph.DiscoverRequirements(s.g,
		graph.SearchOptions{Query: query}, scope, graph.ScopeDirection(direction))
	if err != nil {
		return "", err
	}
	if len(result.Matches) == 0 {
		return fmt.Sprintf("No requirements match '%s'.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Most specific requirements for '%s':\n\n", query)
	writeMatches(&sb, result.Matches, 0)
	if len(result.Pruned) > 0 {
		fmt.Fprintf(&sb, "\n%d broader matches pruned.\n", len(result.Pruned))
	}
	return sb.String(), nil
}

func (s *Server) handleBrokenRefs() (string, error) {
	refs := s.g.BrokenRefs()
	if len(refs) == 0 {
		return "No broken references.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d broken references:\n\n", len(refs))
	for _, r := range refs {
		fmt.Fprintf(&sb, "- %s declared %s -> %s (unresolved)\n", r.SourceID, r.Kind, r.TargetRef)
	}
	sb.WriteString("\nUse trace_mutate with op=fix_broken_reference to repair one.")
	return sb.String(), nil
}

func (s *Server) handleValidate() (string, error) {
	report := graph.Validate(s.g)

	var sb strings.Builder
	sb.WriteString("# Validation Report\n\n")
	if report.OK() {
		sb.WriteString("Graph is clean: no cycles, orphans, broken references, or warnings.\n")
		return sb.String(), nil
	}

	if len(report.Cycles) > 0 {
		fmt.Fprintf(&sb, "## Cycles (%d)\n\n", len(report.Cycles))
		for _, c := range report.Cycles {
			fmt.Fprintf(&sb, "- %s\n", strings.Join(c.NodeIDs, " -> "))
		}
		sb.WriteString("\n")
	}
	if len(report.BrokenRefs) > 0 {
		fmt.Fprintf(&sb, "## Broken References (%d)\n\n", len(report.BrokenRefs))
		for _, r := range report.BrokenRefs {
			fmt.Fprintf(&sb, "- %s -> %s (%s)\n", r.SourceID, r.TargetRef, r.Kind)
		}
		sb.WriteString("\n")
	}
	if len(report.Orphans) > 0 {
		fmt.Fprintf(&sb, "## Orphans (%d)\n\n", len(report.Orphans))
		for _, id := range report.Orphans {
			fmt.Fprintf(&sb, "- %s\n", id)
		}
		sb.WriteString("\n")
	}
	if len(report.Warnings) > 0 {
		fmt.Fprintf(&sb, "## Warnings (%d)\n\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w.Message)
		}
	}
	return sb.String(), nil
}

func (s *Server) handleMutate(args map[string]any) (string, error) {
	op, _ := args["op"].(string)
	id, _ := args["id"].(string)

	var entry *graph.MutationEntry
	var err error

	switch graph.Op(op) {
	case graph.OpRenameNode:
		newID, _ := args["new_id"].(string)
		entry, err = s.mutator.RenameNode(id, newID)
	case graph.OpUpdateTitle:
		title, _ := args["title"].(string)
		entry, err = s.mutator.UpdateTitle(id, title)
	case graph.OpChangeStatus:
		status, _ := args["status"].(string)
		entry, err = s.mutator.ChangeStatus(id, status)
	case graph.OpAddRequirement:
		title, _ := args["title"].(string)
		level, _ := args["level"].(string)
		status, _ := args["status"].(string)
		body, _ := args["body"].(string)
		parent, _ := args["parent"].(string)
		entry, err = s.mutator.AddRequirement(graph.RequirementSpec{
			ID:       id,
			Title:    title,
			Level:    level,
			Status:   status,
			Body:     body,
			ParentID: parent,
		})
	case graph.OpDeleteRequirement:
		entry, err = s.mutator.DeleteRequirement(id)
	case graph.OpAddAssertion:
		text, _ := args["text"].(string)
		entry, err = s.mutator.AddAssertion(id, text)
	case graph.OpUpdateAssertion:
		text, _ := args["text"].(string)
		entry, err = s.mutator.UpdateAssertion(id, text)
	case graph.OpDeleteAssertion:
		compact := true
		if v, ok := args["compact"].(bool); ok {
			compact = v
		}
		entry, err = s.mutator.DeleteAssertion(id, compact)
	case graph.OpRenameAssertion:
		label, _ := args["label"].(string)
		entry, err = s.mutator.RenameAssertion(id, label)
	case graph.OpAddEdge:
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		kind, _ := args["kind"].(string)
		entry, err = s.mutator.AddEdge(from, to, graph.EdgeKind(kind), stringSlice(args["targets"]))
	case graph.OpChangeEdgeKind:
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		kind, _ := args["kind"].(string)
		newKind, _ := args["new_kind"].(string)
		entry, err = s.mutator.ChangeEdgeKind(from, to, graph.EdgeKind(kind), graph.EdgeKind(newKind))
	case graph.OpDeleteEdge:
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		kind, _ := args["kind"].(string)
		entry, err = s.mutator.DeleteEdge(from, to, graph.EdgeKind(kind))
	case graph.OpFixBrokenReference:
		targetRef, _ := args["target_ref"].(string)
		kind, _ := args["kind"].(string)
		newTarget, _ := args["new_target"].(string)
		entry, err = s.mutator.FixBrokenReference(id, targetRef, graph.EdgeKind(kind), newTarget)
	default:
		return "", fmt.Errorf("unknown mutation op: %s", op)
	}

	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Applied %s to %s.\n", entry.Op, entry.TargetID)
	fmt.Fprintf(&sb, "Journal entry: %s\n", entry.ID)
	if entry.AffectsHash {
		sb.WriteString("Requirement content hash was recomputed.\n")
	}
	return sb.String(), nil
}

func (s *Server) handleUndo(entryID string) (string, error) {
	if entryID == "" {
		entry, err := s.mutator.UndoLast()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Reverted %s on %s.", entry.Op, entry.TargetID), nil
	}

	reverted, err := s.mutator.UndoTo(entryID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reverted %d mutations:\n\n", len(reverted))
	for _, e := range reverted {
		fmt.Fprintf(&sb, "- %s on %s\n", e.Op, e.TargetID)
	}
	return sb.String(), nil
}

// Resource Handlers

func (s *Server) getOverview() string {
	stats := s.g.Stats()

	var sb strings.Builder
	sb.WriteString("# Traceability Graph Overview\n\n")
	fmt.Fprintf(&sb, "**Nodes:** %d\n", stats["nodes"])
	fmt.Fprintf(&sb, "**Edges:** %d\n", stats["edges"])
	fmt.Fprintf(&sb, "**Broken references:** %d\n", stats["broken_refs"])

	sb.WriteString("\n## Nodes by Kind\n\n")
	kinds := []graph.Kind{
		graph.KindRequirement,
		graph.KindAssertion,
		graph.KindUserJourney,
		graph.KindCode,
		graph.KindTest,
		graph.KindTestResult,
	}
	for _, k := range kinds {
		fmt.Fprintf(&sb, "- %s: %d\n", k, len(s.g.FindByKind(k)))
	}

	fmt.Fprintf(&sb, "\n**Roots:** %d, **orphans:** %d\n", len(s.g.Roots()), len(s.g.Orphans()))
	return sb.String()
}

func (s *Server) getCoverageReport() string {
	metrics := graph.ComputeRollup(s.g, s.opts)

	var sb strings.Builder
	sb.WriteString("# Coverage Report\n\n")

	roots := s.g.Roots()
	sort.Strings(roots)
	wrote := false
	for _, id := range roots {
		n := s.g.GetNode(id)
		if n == nil || n.Kind != graph.KindRequirement {
			continue
		}
		m := metrics[id]
		if m == nil {
			continue
		}
		status := ""
		if m.Validated {
			status = " validated"
		} else if m.HasFailures {
			status = " failing"
		}
		fmt.Fprintf(&sb, "- %s: %.1f%% (%d/%d)%s\n", id, m.CoveragePct, m.CoveredAssertions, m.TotalAssertions, status)
		wrote = true
	}
	if !wrote {
		sb.WriteString("No root requirements in the graph.\n")
	}
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Traceability Graph Schema\n\n")
	sb.WriteString("## Node Kinds\n\n")
	sb.WriteString("| Kind | Description | Key Properties |\n")
	sb.WriteString("|------|-------------|----------------|\n")
	sb.WriteString("| `requirement` | Requirement block | id, title, level, status, hash |\n")
	sb.WriteString("| `assertion` | Testable clause of a requirement | label, text |\n")
	sb.WriteString("| `user_journey` | User journey narrative | id, title |\n")
	sb.WriteString("| `code` | Code traceability marker | func_name, targets |\n")
	sb.WriteString("| `test` | Test traceability marker | func_name, targets |\n")
	sb.WriteString("| `test_result` | One recorded test run | status, duration_ms |\n")
	sb.WriteString("| `remainder` | Unstructured spec text | raw |\n")
	sb.WriteString("\n## Edge Kinds\n\n")
	sb.WriteString("| Kind | Source -> Target | Direction |\n")
	sb.WriteString("|------|------------------|----------|\n")
	sb.WriteString("| `implements` | Child requirement or code -> requirement | up |\n")
	sb.WriteString("| `refines` | Child requirement -> requirement | up |\n")
	sb.WriteString("| `validates` | Test -> requirement | up |\n")
	sb.WriteString("| `addresses` | Requirement -> user journey | up |\n")
	sb.WriteString("| `contains` | Requirement -> assertion, test -> result | down |\n")
	sb.WriteString("\nEdges may carry assertion labels narrowing them to specific\n")
	sb.WriteString("assertions of the target requirement; an empty label set means\n")
	sb.WriteString("the edge addresses the whole requirement.\n")
	return sb.String()
}

// Helper functions

func writeMatches(sb *strings.Builder, matches []graph.SearchMatch, offset int) {
	for i, m := range matches {
		fmt.Fprintf(sb, "%d. **%s**: %s\n", offset+i+1, m.Node.ID, m.Node.Label)
		if m.Field != "" {
			fmt.Fprintf(sb, "   Matched on %s", m.Field)
			if m.Snippet != "" {
				fmt.Fprintf(sb, ": %s", m.Snippet)
			}
			sb.WriteString("\n")
		}
	}
}

func writePageFooter(sb *strings.Builder, page *graph.CursorPage) {
	if page.Exhausted {
		sb.WriteString("\nEnd of results.")
	} else {
		fmt.Fprintf(sb, "\n%d more results. Use trace_cursor_next to continue.", page.Remaining)
	}
}

func stringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
