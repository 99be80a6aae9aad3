package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// Key prefixes for different data types
const (
	prefixNode   = "n:" // node data
	prefixEdge   = "e:" // edge data
	prefixBroken = "b:" // broken reference data
)

// BadgerBackend is a BadgerDB-backed snapshot store.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
	nodeCount   int
	edgeCount   int
	brokenCount int
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.initialized = true
	b.recount()
	return nil
}

// recount rebuilds the counters from the database.
func (b *BadgerBackend) recount() {
	b.nodeCount, b.edgeCount, b.brokenCount = 0, 0, 0

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	count := func(prefix string) int {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return n
	}
	b.nodeCount = count(prefixNode)
	b.edgeCount = count(prefixEdge)
	b.brokenCount = count(prefixBroken)
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// SaveSnapshot replaces the stored snapshot with the graph.
func (b *BadgerBackend) SaveSnapshot(ctx context.Context, g *graph.Graph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return fmt.Errorf("backend not initialized")
	}
	if err := b.dropAll(); err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	nodes := g.Find(func(*graph.Node) bool { return true })
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(encodeNode(n))
		if err != nil {
			return fmt.Errorf("marshaling node %s: %w", n.ID, err)
		}
		if err := wb.Set([]byte(prefixNode+n.ID), data); err != nil {
			return fmt.Errorf("writing node %s: %w", n.ID, err)
		}
	}

	edges := g.Edges()
	for _, e := range edges {
		data, err := json.Marshal(encodeEdge(e))
		if err != nil {
			return fmt.Errorf("marshaling edge %s: %w", e.Key(), err)
		}
		if err := wb.Set([]byte(prefixEdge+e.Key()), data); err != nil {
			return fmt.Errorf("writing edge %s: %w", e.Key(), err)
		}
	}

	broken := g.BrokenRefs()
	for i, ref := range broken {
		data, err := json.Marshal(ref)
		if err != nil {
			return fmt.Errorf("marshaling broken ref: %w", err)
		}
		if err := wb.Set([]byte(fmt.Sprintf("%s%06d", prefixBroken, i)), data); err != nil {
			return fmt.Errorf("writing broken ref: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	b.nodeCount = len(nodes)
	b.edgeCount = len(edges)
	b.brokenCount = len(broken)
	return nil
}

func (b *BadgerBackend) dropAll() error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds a graph from the stored snapshot.
func (b *BadgerBackend) LoadSnapshot(ctx context.Context) (*graph.Graph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	g := graph.NewGraph()

	err := b.db.View(func(txn *badger.Txn) error {
		if err := iterate(txn, prefixNode, func(val []byte) error {
			var s storedNode
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			g.AddNode(decodeNode(s))
			return nil
		}); err != nil {
			return err
		}
		if err := iterate(txn, prefixEdge, func(val []byte) error {
			var s storedEdge
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			g.AddEdge(decodeEdge(s))
			return nil
		}); err != nil {
			return err
		}
		return iterate(txn, prefixBroken, func(val []byte) error {
			var ref graph.BrokenReference
			if err := json.Unmarshal(val, &ref); err != nil {
				return err
			}
			g.RecordBrokenRef(ref)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.ComputeRootsOrphans()
	return g, nil
}

func iterate(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns store-level counters.
func (b *BadgerBackend) Stats(ctx context.Context) (map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return map[string]int{
		"nodes":       b.nodeCount,
		"edges":       b.edgeCount,
		"broken_refs": b.brokenCount,
	}, nil
}
