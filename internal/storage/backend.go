// Package storage persists graph snapshots so rebuilt projects start
// warm. The snapshot is a cache: the spec files remain the source of
// truth and a fresh build always wins over a stale snapshot.
package storage

import (
	"context"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// Backend defines the interface for snapshot storage implementations.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Initialize opens or creates the store at the given path. If
	// readOnly is true, the store is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// SaveSnapshot replaces the stored snapshot with the graph.
	SaveSnapshot(ctx context.Context, g *graph.Graph) error

	// LoadSnapshot rebuilds a graph from the stored snapshot. An empty
	// store yields an empty graph, not an error.
	LoadSnapshot(ctx context.Context) (*graph.Graph, error)

	// Stats returns store-level counters.
	Stats(ctx context.Context) (map[string]int, error)
}

// storedNode is the wire shape of one node.
type storedNode struct {
	ID          string                   `json:"id"`
	Kind        graph.Kind               `json:"kind"`
	Label       string                   `json:"label,omitempty"`
	Source      *graph.SourceRef         `json:"source,omitempty"`
	Requirement *graph.RequirementFields `json:"requirement,omitempty"`
	Assertion   *graph.AssertionFields   `json:"assertion,omitempty"`
	TestResult  *graph.TestResultFields  `json:"test_result,omitempty"`
	Ref         *graph.RefFields         `json:"ref,omitempty"`
}

// storedEdge is the wire shape of one edge.
type storedEdge struct {
	From             string         `json:"from"`
	To               string         `json:"to"`
	Kind             graph.EdgeKind `json:"kind"`
	AssertionTargets []string       `json:"assertion_targets,omitempty"`
}

func encodeNode(n *graph.Node) storedNode {
	return storedNode{
		ID:          n.ID,
		Kind:        n.Kind,
		Label:       n.Label,
		Source:      n.Source,
		Requirement: n.Requirement,
		Assertion:   n.Assertion,
		TestResult:  n.TestResult,
		Ref:         n.Ref,
	}
}

// decodeNode rebuilds a node. Computed metrics are not persisted;
// callers recompute rollups after loading.
func decodeNode(s storedNode) *graph.Node {
	return &graph.Node{
		ID:          s.ID,
		Kind:        s.Kind,
		Label:       s.Label,
		Source:      s.Source,
		Requirement: s.Requirement,
		Assertion:   s.Assertion,
		TestResult:  s.TestResult,
		Ref:         s.Ref,
	}
}

func encodeEdge(e *graph.Edge) storedEdge {
	return storedEdge{From: e.From, To: e.To, Kind: e.Kind, AssertionTargets: e.AssertionTargets}
}

func decodeEdge(s storedEdge) *graph.Edge {
	return &graph.Edge{From: s.From, To: s.To, Kind: s.Kind, AssertionTargets: s.AssertionTargets}
}
