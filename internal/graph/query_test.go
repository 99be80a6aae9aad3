package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainGraph builds REQ-a <- REQ-b <- REQ-c (each implements its
// predecessor), all titled around the same theme.
func chainGraph() *Graph {
	g := NewGraph()
	add := func(id, title string) {
		g.AddNode(&Node{ID: id, Kind: KindRequirement, Label: title,
			Requirement: &RequirementFields{Status: "active", BodyText: title + " body"}})
	}
	add("REQ-a", "Billing overview")
	add("REQ-b", "Billing invoices")
	add("REQ-c", "Billing invoice totals")
	g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})
	g.AddEdge(&Edge{From: "REQ-c", To: "REQ-b", Kind: EdgeImplements})
	g.ComputeRootsOrphans()
	return g
}

func TestSearch(t *testing.T) {
	t.Parallel()

	g := buildFixture(t)

	t.Run("ByTitle", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: "authentication", Field: FieldTitle})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "REQ-p00001", matches[0].Node.ID)
		assert.Equal(t, FieldTitle, matches[0].Field)
	})

	t.Run("ByKeywords", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: "login", Field: FieldKeywords})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "REQ-p00001", matches[0].Node.ID)
	})

	t.Run("AnyField", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: "credentials"})
		require.NoError(t, err)
		// The root matches on its body text with no field given.
		require.Len(t, matches, 1)
		assert.Equal(t, "REQ-p00001", matches[0].Node.ID)
		assert.Equal(t, FieldBody, matches[0].Field)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: "LOGIN ENDPOINT"})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "REQ-d00002", matches[0].Node.ID)
	})

	t.Run("Regex", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: `^REQ-d\d+$`, Field: FieldID, Regex: true})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("BadRegex", func(t *testing.T) {
		t.Parallel()
		_, err := Search(g, SearchOptions{Query: "[", Regex: true})
		assert.True(t, IsKind(err, ErrInvalidState))
	})

	t.Run("Limit", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: "REQ-", Field: FieldID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("NoMatch", func(t *testing.T) {
		t.Parallel()
		matches, err := Search(g, SearchOptions{Query: "zzz-nothing"})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestScopedSearch(t *testing.T) {
	t.Parallel()

	g := chainGraph()

	t.Run("Descendants", func(t *testing.T) {
		t.Parallel()
		matches, err := ScopedSearch(g, SearchOptions{Query: "billing"}, "REQ-a", ScopeDescendants)
		require.NoError(t, err)
		// The scope node itself is excluded.
		require.Len(t, matches, 2)
		assert.Equal(t, "REQ-b", matches[0].Node.ID)
		assert.Equal(t, "REQ-c", matches[1].Node.ID)
	})

	t.Run("Ancestors", func(t *testing.T) {
		t.Parallel()
		matches, err := ScopedSearch(g, SearchOptions{Query: "billing"}, "REQ-c", ScopeAncestors)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "REQ-a", matches[0].Node.ID)
		assert.Equal(t, "REQ-b", matches[1].Node.ID)
	})

	t.Run("UnknownScope", func(t *testing.T) {
		t.Parallel()
		_, err := ScopedSearch(g, SearchOptions{Query: "billing"}, "REQ-missing", ScopeDescendants)
		assert.True(t, IsKind(err, ErrNotFound))
	})

	t.Run("UnknownDirection", func(t *testing.T) {
		t.Parallel()
		_, err := ScopedSearch(g, SearchOptions{Query: "billing"}, "REQ-a", ScopeDirection("sideways"))
		assert.True(t, IsKind(err, ErrInvalidState))
	})
}

func TestMinimizeSet(t *testing.T) {
	t.Parallel()

	t.Run("KeepsMostSpecific", func(t *testing.T) {
		t.Parallel()
		g := chainGraph()

		res, err := MinimizeSet(g, []string{"REQ-a", "REQ-b", "REQ-c"})

		require.NoError(t, err)
		assert.Equal(t, []string{"REQ-c"}, res.Kept)
		require.Len(t, res.Pruned, 2)
		assert.Equal(t, "REQ-a", res.Pruned[0].ID)
		assert.Equal(t, []string{"REQ-c"}, res.Pruned[0].SupersededBy)
		assert.Equal(t, "REQ-b", res.Pruned[1].ID)
		assert.Equal(t, []string{"REQ-c"}, res.Pruned[1].SupersededBy)
	})

	t.Run("UnrelatedSurvive", func(t *testing.T) {
		t.Parallel()
		g := chainGraph()
		g.AddNode(&Node{ID: "REQ-z", Kind: KindRequirement,
			Requirement: &RequirementFields{Status: "active"}})

		res, err := MinimizeSet(g, []string{"REQ-b", "REQ-z"})

		require.NoError(t, err)
		assert.Equal(t, []string{"REQ-b", "REQ-z"}, res.Kept)
		assert.Empty(t, res.Pruned)
	})

	t.Run("UnknownID", func(t *testing.T) {
		t.Parallel()
		_, err := MinimizeSet(chainGraph(), []string{"REQ-a", "REQ-missing"})
		assert.True(t, IsKind(err, ErrNotFound))
	})

	t.Run("CycleKeepsBoth", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode(&Node{ID: "REQ-a", Kind: KindRequirement, Requirement: &RequirementFields{}})
		g.AddNode(&Node{ID: "REQ-b", Kind: KindRequirement, Requirement: &RequirementFields{}})
		g.AddEdge(&Edge{From: "REQ-a", To: "REQ-b", Kind: EdgeImplements})
		g.AddEdge(&Edge{From: "REQ-b", To: "REQ-a", Kind: EdgeImplements})

		res, err := MinimizeSet(g, []string{"REQ-a", "REQ-b"})

		require.NoError(t, err)
		assert.Equal(t, []string{"REQ-a", "REQ-b"}, res.Kept)
		assert.Empty(t, res.Pruned)
	})

	t.Run("EdgeKindFilter", func(t *testing.T) {
		t.Parallel()
		g := chainGraph()

		// Along refines edges only, nothing subsumes anything.
		res, err := MinimizeSet(g, []string{"REQ-a", "REQ-c"}, EdgeRefines)

		require.NoError(t, err)
		assert.Equal(t, []string{"REQ-a", "REQ-c"}, res.Kept)
	})

	t.Run("Deduplicates", func(t *testing.T) {
		t.Parallel()
		res, err := MinimizeSet(chainGraph(), []string{"REQ-c", "REQ-c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"REQ-c"}, res.Kept)
	})
}

func TestDiscoverRequirements(t *testing.T) {
	t.Parallel()

	g := chainGraph()

	res, err := DiscoverRequirements(g, SearchOptions{Query: "billing"}, "", ScopeDescendants)

	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "REQ-c", res.Matches[0].Node.ID)
	assert.Equal(t, FieldTitle, res.Matches[0].Field)
	assert.Len(t, res.Pruned, 2)

	t.Run("Scoped", func(t *testing.T) {
		res, err := DiscoverRequirements(g, SearchOptions{Query: "invoice"}, "REQ-a", ScopeDescendants)
		require.NoError(t, err)
		require.Len(t, res.Matches, 1)
		assert.Equal(t, "REQ-c", res.Matches[0].Node.ID)
	})

	t.Run("Empty", func(t *testing.T) {
		res, err := DiscoverRequirements(g, SearchOptions{Query: "nothing-here"}, "", ScopeDescendants)
		require.NoError(t, err)
		assert.Empty(t, res.Matches)
		assert.Empty(t, res.Pruned)
	})
}

func TestExtractSubtree(t *testing.T) {
	t.Parallel()

	g := buildFixture(t)

	t.Run("DefaultKinds", func(t *testing.T) {
		t.Parallel()
		sub, err := ExtractSubtree(g, SubtreeOptions{RootID: "REQ-p00001"})

		require.NoError(t, err)
		// Root, 2 assertions, 2 child requirements, 2 grandchild... the
		// dev children carry one assertion each.
		assert.Equal(t, 3, sub.Stats["requirement"])
		assert.Equal(t, 4, sub.Stats["assertion"])
		assert.Zero(t, sub.Stats["test"])
		assert.Len(t, sub.Nodes, 7)
		assert.Equal(t, "REQ-p00001", sub.Root.Node.ID)
		assert.Equal(t, 0, sub.Root.Depth)

		// All three shapes agree on the node set.
		lines := strings.Count(strings.TrimRight(sub.Outline, "\n"), "\n") + 1
		assert.Equal(t, len(sub.Nodes), lines)
	})

	t.Run("DepthLimit", func(t *testing.T) {
		t.Parallel()
		sub, err := ExtractSubtree(g, SubtreeOptions{RootID: "REQ-p00001", Depth: 1})

		require.NoError(t, err)
		// Root plus its direct children only.
		assert.Len(t, sub.Nodes, 5)
		for _, c := range sub.Root.Children {
			assert.Empty(t, c.Children)
			assert.Equal(t, 1, c.Depth)
		}
	})

	t.Run("KindFilter", func(t *testing.T) {
		t.Parallel()
		sub, err := ExtractSubtree(g, SubtreeOptions{
			RootID: "REQ-p00001",
			Kinds:  []Kind{KindRequirement},
		})

		require.NoError(t, err)
		assert.Len(t, sub.Nodes, 3)
		assert.Zero(t, sub.Stats["assertion"])
	})

	t.Run("EdgesStayInside", func(t *testing.T) {
		t.Parallel()
		sub, err := ExtractSubtree(g, SubtreeOptions{RootID: "REQ-p00001"})
		require.NoError(t, err)

		included := make(map[string]bool)
		for _, n := range sub.Nodes {
			included[n.ID] = true
		}
		for _, e := range sub.Edges {
			assert.True(t, included[e.From], "edge from outside: %s", e.Key())
			assert.True(t, included[e.To], "edge to outside: %s", e.Key())
		}
		assert.Equal(t, len(sub.Edges), sub.Stats["edges"])
	})

	t.Run("Outline", func(t *testing.T) {
		t.Parallel()
		sub, err := ExtractSubtree(g, SubtreeOptions{RootID: "REQ-p00001"})
		require.NoError(t, err)

		assert.Contains(t, sub.Outline, "REQ-p00001: Authentication (active)")
		assert.Contains(t, sub.Outline, "  - A. Users can log in with valid credentials")
		assert.Contains(t, sub.Outline, "  REQ-d00002: Login endpoint")
	})

	t.Run("UnknownRoot", func(t *testing.T) {
		t.Parallel()
		_, err := ExtractSubtree(g, SubtreeOptions{RootID: "REQ-missing"})
		assert.True(t, IsKind(err, ErrNotFound))
	})
}
