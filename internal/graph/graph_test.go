package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	t.Parallel()

	g := NewGraph()

	assert.NotNil(t, g)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestGraph_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("AddSingle", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		n := &Node{ID: "REQ-p00001", Kind: KindRequirement, Label: "Auth"}

		g.AddNode(n)

		assert.Equal(t, 1, g.NodeCount())
		assert.Equal(t, n, g.GetNode("REQ-p00001"))
	})

	t.Run("ReplaceExisting", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(&Node{ID: "REQ-p00001", Kind: KindRequirement, Label: "Old"})
		g.AddNode(&Node{ID: "REQ-p00001", Kind: KindRequirement, Label: "New"})

		assert.Equal(t, 1, g.NodeCount())
		assert.Equal(t, "New", g.GetNode("REQ-p00001").Label)
	})

	t.Run("KindChangeRekeysIndex", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(&Node{ID: "x", Kind: KindCode})
		g.AddNode(&Node{ID: "x", Kind: KindTest})

		assert.Empty(t, g.FindByKind(KindCode))
		assert.Len(t, g.FindByKind(KindTest), 1)
	})
}

func TestGraph_Edges(t *testing.T) {
	t.Parallel()

	newPair := func() *Graph {
		g := NewGraph()
		g.AddNode(&Node{ID: "REQ-a", Kind: KindRequirement})
		g.AddNode(&Node{ID: "REQ-b", Kind: KindRequirement})
		return g
	}

	t.Run("AddAndGet", func(t *testing.T) {
		t.Parallel()
		g := newPair()
		g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})

		assert.Equal(t, 1, g.EdgeCount())
		assert.NotNil(t, g.GetEdge("REQ-b", "REQ-a", EdgeImplements))
		assert.Nil(t, g.GetEdge("REQ-a", "REQ-b", EdgeImplements))
	})

	t.Run("Remove", func(t *testing.T) {
		t.Parallel()
		g := newPair()
		g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})

		removed := g.RemoveEdge("REQ-b", "REQ-a", EdgeImplements)

		require.NotNil(t, removed)
		assert.Equal(t, 0, g.EdgeCount())
		assert.Nil(t, g.RemoveEdge("REQ-b", "REQ-a", EdgeImplements))
	})

	t.Run("KindFilter", func(t *testing.T) {
		t.Parallel()
		g := newPair()
		g.AddNode(&Node{ID: "UJ-x", Kind: KindUserJourney})
		g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})
		g.AddEdge(&Edge{From: "REQ-b", To: "UJ-x", Kind: EdgeAddresses})

		assert.Len(t, g.Outgoing("REQ-b"), 2)
		assert.Len(t, g.Outgoing("REQ-b", EdgeImplements), 1)
		assert.Len(t, g.Incoming("REQ-a", EdgeRefines), 0)
	})
}

func TestGraph_ParentsChildren(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode(&Node{ID: "REQ-a", Kind: KindRequirement})
	g.AddNode(&Node{ID: "REQ-b", Kind: KindRequirement})
	g.AddNode(&Node{ID: "REQ-a-A", Kind: KindAssertion, Assertion: &AssertionFields{Label: "A"}})
	// Up edge: b is the child of a.
	g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})
	// Down edge: a owns its assertion.
	g.AddChild("REQ-a", "REQ-a-A")

	parents := g.Parents("REQ-b")
	require.Len(t, parents, 1)
	assert.Equal(t, "REQ-a", parents[0].ID)

	children := g.Children("REQ-a")
	require.Len(t, children, 2)
	assert.Equal(t, "REQ-a-A", children[0].ID)
	assert.Equal(t, "REQ-b", children[1].ID)

	parents = g.Parents("REQ-a-A")
	require.Len(t, parents, 1)
	assert.Equal(t, "REQ-a", parents[0].ID)
}

func TestGraph_Walk(t *testing.T) {
	t.Parallel()

	// a -> {b, c}; b -> d
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(&Node{ID: id, Kind: KindRequirement})
	}
	g.AddEdge(&Edge{From: "b", To: "a", Kind: EdgeImplements})
	g.AddEdge(&Edge{From: "c", To: "a", Kind: EdgeImplements})
	g.AddEdge(&Edge{From: "d", To: "b", Kind: EdgeImplements})

	collect := func(order WalkOrder) []string {
		var ids []string
		for n := range g.Walk("a", order) {
			ids = append(ids, n.ID)
		}
		return ids
	}

	assert.Equal(t, []string{"a", "b", "d", "c"}, collect(WalkPre))
	assert.Equal(t, []string{"d", "b", "c", "a"}, collect(WalkPost))
	assert.Equal(t, []string{"a", "b", "c", "d"}, collect(WalkLevel))

	t.Run("Restartable", func(t *testing.T) {
		seq := g.Walk("a", WalkPre)
		first := 0
		for range seq {
			first++
		}
		second := 0
		for range seq {
			second++
		}
		assert.Equal(t, 4, first)
		assert.Equal(t, 4, second)
	})

	t.Run("EarlyStop", func(t *testing.T) {
		var ids []string
		for n := range g.Walk("a", WalkLevel) {
			ids = append(ids, n.ID)
			if len(ids) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("UnknownRoot", func(t *testing.T) {
		count := 0
		for range g.Walk("missing", WalkPre) {
			count++
		}
		assert.Equal(t, 0, count)
	})
}

func TestGraph_WalkCycleTerminates(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode(&Node{ID: "a", Kind: KindRequirement})
	g.AddNode(&Node{ID: "b", Kind: KindRequirement})
	g.AddEdge(&Edge{From: "b", To: "a", Kind: EdgeImplements})
	g.AddEdge(&Edge{From: "a", To: "b", Kind: EdgeImplements})

	var ids []string
	for n := range g.Walk("a", WalkPre) {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestGraph_Ancestors(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(&Node{ID: id, Kind: KindRequirement})
	}
	g.AddEdge(&Edge{From: "c", To: "b", Kind: EdgeImplements})
	g.AddEdge(&Edge{From: "b", To: "a", Kind: EdgeRefines})

	var ids []string
	for n := range g.Ancestors("c") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestGraph_DeleteAndRestore(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode(&Node{ID: "REQ-a", Kind: KindRequirement})
	g.AddNode(&Node{ID: "REQ-b", Kind: KindRequirement})
	g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})

	removed := g.DeleteNode("REQ-a")

	require.Len(t, removed, 1)
	assert.Equal(t, "REQ-b|implements|REQ-a", removed[0].Key())
	assert.Nil(t, g.GetNode("REQ-a"))
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.Outgoing("REQ-b"))

	deleted := g.DeletedNodes()
	require.Len(t, deleted, 1)
	assert.Equal(t, "REQ-a", deleted[0].ID)

	g.RestoreNode(deleted[0])
	assert.NotNil(t, g.GetNode("REQ-a"))
	assert.Empty(t, g.DeletedNodes())
}

func TestGraph_RekeyNode(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode(&Node{ID: "REQ-a", Kind: KindRequirement})
	g.AddNode(&Node{ID: "REQ-b", Kind: KindRequirement})
	g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})
	g.RecordBrokenRef(BrokenReference{SourceID: "REQ-a", TargetRef: "REQ-gone", Kind: EdgeRefines})

	g.RekeyNode("REQ-a", "REQ-z")

	assert.Nil(t, g.GetNode("REQ-a"))
	require.NotNil(t, g.GetNode("REQ-z"))
	assert.Equal(t, "REQ-z", g.GetNode("REQ-z").ID)
	assert.NotNil(t, g.GetEdge("REQ-b", "REQ-z", EdgeImplements))
	assert.Nil(t, g.GetEdge("REQ-b", "REQ-a", EdgeImplements))
	refs := g.BrokenRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "REQ-z", refs[0].SourceID)
}

func TestGraph_RootsOrphans(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode(&Node{ID: "REQ-root", Kind: KindRequirement})
	g.AddNode(&Node{ID: "REQ-child", Kind: KindRequirement})
	g.AddNode(&Node{ID: "UJ-j", Kind: KindUserJourney})
	g.AddNode(&Node{ID: "code:x.go:F", Kind: KindCode})
	g.AddEdge(&Edge{From: "REQ-child", To: "REQ-root", Kind: EdgeImplements})

	g.ComputeRootsOrphans()

	assert.Equal(t, []string{"REQ-root", "UJ-j"}, g.Roots())
	// The dangling code ref is parentless but not root-eligible.
	assert.Equal(t, []string{"code:x.go:F"}, g.Orphans())
}

func TestNode_Clone(t *testing.T) {
	t.Parallel()

	n := &Node{
		ID:          "REQ-a",
		Kind:        KindRequirement,
		Label:       "Auth",
		Source:      &SourceRef{File: "a.md", Line: 1},
		Requirement: &RequirementFields{Status: "active", Keywords: []string{"auth"}},
	}
	n.SetMetric("rollup", &RollupMetrics{TotalAssertions: 2})

	c := n.Clone()
	c.Requirement.Status = "deprecated"
	c.Requirement.Keywords[0] = "changed"
	c.Source.Line = 99

	assert.Equal(t, "active", n.Requirement.Status)
	assert.Equal(t, "auth", n.Requirement.Keywords[0])
	assert.Equal(t, 1, n.Source.Line)
}
