package storage

import (
	"context"
	"sync"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// MemoryBackend is an in-memory snapshot store used in tests and for
// ephemeral runs where nothing should touch disk.
type MemoryBackend struct {
	mu     sync.RWMutex
	nodes  []storedNode
	edges  []storedEdge
	broken []graph.BrokenReference
	open   bool
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Initialize marks the backend open. The path is ignored.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close discards nothing; the snapshot survives until the value is
// garbage collected.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// SaveSnapshot replaces the stored snapshot with the graph.
func (m *MemoryBackend) SaveSnapshot(ctx context.Context, g *graph.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nodes = nil
	m.edges = nil
	for _, n := range g.Find(func(*graph.Node) bool { return true }) {
		m.nodes = append(m.nodes, encodeNode(n.Clone()))
	}
	for _, e := range g.Edges() {
		m.edges = append(m.edges, encodeEdge(e.Clone()))
	}
	m.broken = g.BrokenRefs()
	return nil
}

// LoadSnapshot rebuilds a graph from the stored snapshot.
func (m *MemoryBackend) LoadSnapshot(ctx context.Context) (*graph.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := graph.NewGraph()
	for _, s := range m.nodes {
		g.AddNode(decodeNode(s))
	}
	for _, s := range m.edges {
		g.AddEdge(decodeEdge(s))
	}
	for _, ref := range m.broken {
		g.RecordBrokenRef(ref)
	}
	g.ComputeRootsOrphans()
	return g, nil
}

// Stats returns store-level counters.
func (m *MemoryBackend) Stats(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"nodes":       len(m.nodes),
		"edges":       len(m.edges),
		"broken_refs": len(m.broken),
	}, nil
}
