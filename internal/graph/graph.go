// Package graph provides the in-memory traceability graph for ReqTrace.
//
// The Graph is the arena that owns every node and edge. Nodes are keyed
// by ID; edges are stored as relations keyed by (from, kind, to), never
// as raw owning references, so cyclic structures stay representable and
// inspectable.
//
// The graph is owned by a single calling context at a time; there is no
// internal locking. All traversals are finite and cycle-safe via visited
// sets.
package graph

import (
	"iter"
	"sort"
)

// WalkOrder selects the traversal order for Graph.Walk.
type WalkOrder string

const (
	WalkPre   WalkOrder = "pre"
	WalkPost  WalkOrder = "post"
	WalkLevel WalkOrder = "level"
)

// Graph is an in-memory directed graph of specification entities and the
// evidence attached to them.
type Graph struct {
	nodes map[string]*Node
	edges map[string]*Edge

	// Secondary indexes, kept in sync by add/remove helpers.
	byKind   map[Kind]map[string]*Node
	outgoing map[string]map[string]*Edge
	incoming map[string]map[string]*Edge

	brokenRefs []BrokenReference

	// deletedNodes retains removed nodes for the lifetime of the graph
	// so delta reporting and undo stay possible.
	deletedNodes []*Node

	roots   []string
	orphans []string
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		byKind:   make(map[Kind]map[string]*Node),
		outgoing: make(map[string]map[string]*Edge),
		incoming: make(map[string]map[string]*Edge),
	}
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddNode adds a node, replacing any existing node with the same ID.
func (g *Graph) AddNode(n *Node) {
	if old, ok := g.nodes[n.ID]; ok && old.Kind != n.Kind {
		delete(g.byKind[old.Kind], n.ID)
	}
	g.nodes[n.ID] = n
	if g.byKind[n.Kind] == nil {
		g.byKind[n.Kind] = make(map[string]*Node)
	}
	g.byKind[n.Kind][n.ID] = n
}

// GetNode returns the node with the given ID, or nil.
func (g *Graph) GetNode(id string) *Node { return g.nodes[id] }

// FindByKind returns all nodes of the given kind, sorted by ID.
func (g *Graph) FindByKind(kind Kind) []*Node {
	byID := g.byKind[kind]
	result := make([]*Node, 0, len(byID))
	for _, n := range byID {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Find returns all nodes matching the predicate, sorted by ID.
func (g *Graph) Find(pred func(*Node) bool) []*Node {
	var result []*Node
	for _, n := range g.nodes {
		if pred(n) {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AddEdge adds an edge, replacing any edge with the same (from, kind, to).
func (g *Graph) AddEdge(e *Edge) {
	key := e.Key()
	if old, ok := g.edges[key]; ok {
		delete(g.outgoing[old.From], key)
		delete(g.incoming[old.To], key)
	}
	g.edges[key] = e
	if g.outgoing[e.From] == nil {
		g.outgoing[e.From] = make(map[string]*Edge)
	}
	g.outgoing[e.From][key] = e
	if g.incoming[e.To] == nil {
		g.incoming[e.To] = make(map[string]*Edge)
	}
	g.incoming[e.To][key] = e
}

// GetEdge returns the edge with the given identity, or nil.
func (g *Graph) GetEdge(from, to string, kind EdgeKind) *Edge {
	return g.edges[EdgeKey(from, to, kind)]
}

// RemoveEdge removes the edge with the given identity.
// Returns the removed edge, or nil if it did not exist.
func (g *Graph) RemoveEdge(from, to string, kind EdgeKind) *Edge {
	key := EdgeKey(from, to, kind)
	e, ok := g.edges[key]
	if !ok {
		return nil
	}
	delete(g.edges, key)
	delete(g.outgoing[e.From], key)
	delete(g.incoming[e.To], key)
	return e
}

// Outgoing returns edges originating from the given node, optionally
// filtered by kind, sorted by target ID.
func (g *Graph) Outgoing(id string, kinds ...EdgeKind) []*Edge {
	return filterEdges(g.outgoing[id], kinds)
}

// Incoming returns edges targeting the given node, optionally filtered
// by kind, sorted by source ID.
func (g *Graph) Incoming(id string, kinds ...EdgeKind) []*Edge {
	return filterEdges(g.incoming[id], kinds)
}

func filterEdges(edges map[string]*Edge, kinds []EdgeKind) []*Edge {
	result := make([]*Edge, 0, len(edges))
	for _, e := range edges {
		if len(kinds) == 0 {
			result = append(result, e)
			continue
		}
		for _, k := range kinds {
			if e.Kind == k {
				result = append(result, e)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].From != result[j].From {
			return result[i].From < result[j].From
		}
		if result[i].To != result[j].To {
			return result[i].To < result[j].To
		}
		return result[i].Kind < result[j].Kind
	})
	return result
}

// Edges returns all edges, sorted by key.
func (g *Graph) Edges() []*Edge {
	return filterEdges(g.edges, nil)
}

// Parents returns the semantic parents of a node: targets of its "up"
// edges plus sources of Contains edges pointing at it. Sorted by ID.
func (g *Graph) Parents(id string) []*Node {
	seen := make(map[string]bool)
	var result []*Node
	for _, e := range g.outgoing[id] {
		if upKinds[e.Kind] {
			if p := g.nodes[e.To]; p != nil && !seen[p.ID] {
				seen[p.ID] = true
				result = append(result, p)
			}
		}
	}
	for _, e := range g.incoming[id] {
		if e.Kind == EdgeContains {
			if p := g.nodes[e.From]; p != nil && !seen[p.ID] {
				seen[p.ID] = true
				result = append(result, p)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Children returns the semantic children of a node: sources of "up"
// edges pointing at it plus targets of its Contains edges. Sorted by ID.
func (g *Graph) Children(id string) []*Node {
	seen := make(map[string]bool)
	var result []*Node
	for _, e := range g.incoming[id] {
		if upKinds[e.Kind] {
			if c := g.nodes[e.From]; c != nil && !seen[c.ID] {
				seen[c.ID] = true
				result = append(result, c)
			}
		}
	}
	for _, e := range g.outgoing[id] {
		if e.Kind == EdgeContains {
			if c := g.nodes[e.To]; c != nil && !seen[c.ID] {
				seen[c.ID] = true
				result = append(result, c)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AddChild links a child under a parent with a Contains edge.
// Idempotent: adding an existing link is a no-op.
func (g *Graph) AddChild(parentID, childID string) {
	if g.nodes[parentID] == nil || g.nodes[childID] == nil {
		return
	}
	if g.GetEdge(parentID, childID, EdgeContains) != nil {
		return
	}
	g.AddEdge(&Edge{From: parentID, To: childID, Kind: EdgeContains})
}

// RemoveChild removes the Contains link between parent and child.
// Idempotent: removing a missing link is a no-op.
func (g *Graph) RemoveChild(parentID, childID string) {
	g.RemoveEdge(parentID, childID, EdgeContains)
}

// Walk traverses the subtree rooted at the given node in the requested
// order. The sequence is lazy, finite (cycle-safe via a visited set) and
// restartable. An unknown root yields an empty sequence.
func (g *Graph) Walk(rootID string, order WalkOrder) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		root := g.nodes[rootID]
		if root == nil {
			return
		}
		visited := map[string]bool{rootID: true}
		switch order {
		case WalkPost:
			g.walkPost(root, visited, yield)
		case WalkLevel:
			queue := []*Node{root}
			for len(queue) > 0 {
				n := queue[0]
				queue = queue[1:]
				if !yield(n) {
					return
				}
				for _, c := range g.Children(n.ID) {
					if !visited[c.ID] {
						visited[c.ID] = true
						queue = append(queue, c)
					}
				}
			}
		default: // pre-order
			g.walkPre(root, visited, yield)
		}
	}
}

func (g *Graph) walkPre(n *Node, visited map[string]bool, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range g.Children(n.ID) {
		if visited[c.ID] {
			continue
		}
		visited[c.ID] = true
		if !g.walkPre(c, visited, yield) {
			return false
		}
	}
	return true
}

func (g *Graph) walkPost(n *Node, visited map[string]bool, yield func(*Node) bool) bool {
	for _, c := range g.Children(n.ID) {
		if visited[c.ID] {
			continue
		}
		visited[c.ID] = true
		if !g.walkPost(c, visited, yield) {
			return false
		}
	}
	return yield(n)
}

// Ancestors yields the transitive parents of a node, breadth-first,
// excluding the node itself. Lazy, finite and restartable.
func (g *Graph) Ancestors(id string) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		visited := map[string]bool{id: true}
		queue := g.Parents(id)
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true
			if !yield(n) {
				return
			}
			queue = append(queue, g.Parents(n.ID)...)
		}
	}
}

// AssertionsOf returns a requirement's assertion children in declared
// index order.
func (g *Graph) AssertionsOf(reqID string) []*Node {
	var result []*Node
	for _, c := range g.Children(reqID) {
		if c.Kind == KindAssertion && c.Assertion != nil {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Assertion.Index < result[j].Assertion.Index
	})
	return result
}

// DeleteNode removes a node and every edge touching it. The node is
// moved to the retained deleted list, never hard-erased. Returns the
// removed edges so callers can record them for undo.
func (g *Graph) DeleteNode(id string) []*Edge {
	return g.removeNode(id, true)
}

// removeNode removes a node and its edges. When retain is false the node
// is dropped outright (used when undoing an add, which is not a
// semantic deletion).
func (g *Graph) removeNode(id string, retain bool) []*Edge {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var removed []*Edge
	for key, e := range g.outgoing[id] {
		delete(g.edges, key)
		delete(g.incoming[e.To], key)
		removed = append(removed, e)
	}
	delete(g.outgoing, id)
	for key, e := range g.incoming[id] {
		delete(g.edges, key)
		delete(g.outgoing[e.From], key)
		removed = append(removed, e)
	}
	delete(g.incoming, id)

	delete(g.nodes, id)
	delete(g.byKind[n.Kind], id)
	if retain {
		g.deletedNodes = append(g.deletedNodes, n)
	}

	sort.Slice(removed, func(i, j int) bool { return removed[i].Key() < removed[j].Key() })
	return removed
}

// RestoreNode brings a previously deleted node back into the live set.
func (g *Graph) RestoreNode(n *Node) {
	for i, d := range g.deletedNodes {
		if d.ID == n.ID {
			g.deletedNodes = append(g.deletedNodes[:i], g.deletedNodes[i+1:]...)
			break
		}
	}
	g.AddNode(n)
}

// DeletedNodes returns the retained deleted nodes in deletion order.
func (g *Graph) DeletedNodes() []*Node {
	return append([]*Node(nil), g.deletedNodes...)
}

// RekeyNode renames a node's ID and re-keys every index and edge that
// references it. The caller is responsible for cascading to dependent
// IDs (e.g. assertion children).
func (g *Graph) RekeyNode(oldID, newID string) {
	n, ok := g.nodes[oldID]
	if !ok || oldID == newID {
		return
	}
	delete(g.nodes, oldID)
	delete(g.byKind[n.Kind], oldID)
	n.ID = newID
	g.AddNode(n)

	for _, e := range edgeList(g.outgoing[oldID]) {
		g.RemoveEdge(e.From, e.To, e.Kind)
		e.From = newID
		g.AddEdge(e)
	}
	delete(g.outgoing, oldID)
	for _, e := range edgeList(g.incoming[oldID]) {
		g.RemoveEdge(e.From, e.To, e.Kind)
		e.To = newID
		g.AddEdge(e)
	}
	delete(g.incoming, oldID)

	for i := range g.brokenRefs {
		if g.brokenRefs[i].SourceID == oldID {
			g.brokenRefs[i].SourceID = newID
		}
	}
}

func edgeList(m map[string]*Edge) []*Edge {
	result := make([]*Edge, 0, len(m))
	for _, e := range m {
		result = append(result, e)
	}
	return result
}

// RecordBrokenRef records an unresolvable relationship.
func (g *Graph) RecordBrokenRef(ref BrokenReference) {
	g.brokenRefs = append(g.brokenRefs, ref)
}

// RemoveBrokenRef removes a recorded broken reference.
// Returns true if the record existed.
func (g *Graph) RemoveBrokenRef(ref BrokenReference) bool {
	for i, b := range g.brokenRefs {
		if b == ref {
			g.brokenRefs = append(g.brokenRefs[:i], g.brokenRefs[i+1:]...)
			return true
		}
	}
	return false
}

// BrokenRefs returns the recorded broken references.
func (g *Graph) BrokenRefs() []BrokenReference {
	return append([]BrokenReference(nil), g.brokenRefs...)
}

// hasHierarchyParent reports whether a node has a parent that removes
// it from the root set. Addressing a user journey does not: the
// requirement still roots its own requirement tree.
func (g *Graph) hasHierarchyParent(id string, n *Node) bool {
	for _, p := range g.Parents(id) {
		if n.Kind == KindRequirement && p.Kind == KindUserJourney {
			continue
		}
		return true
	}
	return false
}

// rootEligible reports whether a parentless node counts as a root.
// Requirements with no declared parent are roots; user journeys always.
func rootEligible(n *Node) bool {
	return n.Kind == KindRequirement || n.Kind == KindUserJourney
}

// ComputeRootsOrphans recomputes the root and orphan sets from the final
// parent count of each node. Called once after all links resolve, and
// again by mutations that change parentage.
func (g *Graph) ComputeRootsOrphans() {
	g.roots = g.roots[:0]
	g.orphans = g.orphans[:0]
	for id, n := range g.nodes {
		if g.hasHierarchyParent(id, n) {
			continue
		}
		if rootEligible(n) {
			g.roots = append(g.roots, id)
		} else {
			g.orphans = append(g.orphans, id)
		}
	}
	sort.Strings(g.roots)
	sort.Strings(g.orphans)
}

// Roots returns the IDs of root nodes.
func (g *Graph) Roots() []string { return append([]string(nil), g.roots...) }

// Orphans returns the IDs of orphan nodes.
func (g *Graph) Orphans() []string { return append([]string(nil), g.orphans...) }

// Stats returns a summary of graph size.
func (g *Graph) Stats() map[string]int {
	return map[string]int{
		"nodes":       len(g.nodes),
		"edges":       len(g.edges),
		"broken_refs": len(g.brokenRefs),
	}
}
