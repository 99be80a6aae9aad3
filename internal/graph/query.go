package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SearchField names a searchable requirement field.
type SearchField string

const (
	FieldID       SearchField = "id"
	FieldTitle    SearchField = "title"
	FieldBody     SearchField = "body"
	FieldKeywords SearchField = "keywords"
)

// SearchOptions control a requirement search. An empty Field matches
// against every field. Limit zero means unbounded.
type SearchOptions struct {
	Query string
	Field SearchField
	Regex bool
	Limit int
}

// SearchMatch is one requirement that matched, with the field it
// matched on.
type SearchMatch struct {
	Node    *Node
	Field   SearchField
	Snippet string
}

// matcher is a compiled predicate over field text.
type matcher func(text string) bool

func compileMatcher(opts SearchOptions) (matcher, error) {
	if opts.Regex {
		re, err := regexp.Compile("(?i)" + opts.Query)
		if err != nil {
			return nil, InvalidStatef("bad search pattern %q: %v", opts.Query, err)
		}
		return re.MatchString, nil
	}
	needle := strings.ToLower(opts.Query)
	return func(text string) bool {
		return strings.Contains(strings.ToLower(text), needle)
	}, nil
}

// Search scans requirements linearly, case-insensitive, stopping once
// the limit is reached. Results are in ID order.
func Search(g *Graph, opts SearchOptions) ([]SearchMatch, error) {
	match, err := compileMatcher(opts)
	if err != nil {
		return nil, err
	}
	var results []SearchMatch
	for _, n := range g.FindByKind(KindRequirement) {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
		if m, ok := matchNode(n, opts.Field, match); ok {
			results = append(results, m)
		}
	}
	return results, nil
}

func matchNode(n *Node, field SearchField, match matcher) (SearchMatch, bool) {
	try := func(f SearchField, text string) (SearchMatch, bool) {
		if (field == "" || field == f) && text != "" && match(text) {
			return SearchMatch{Node: n, Field: f, Snippet: snippet(text)}, true
		}
		return SearchMatch{}, false
	}
	if m, ok := try(FieldID, n.ID); ok {
		return m, true
	}
	if m, ok := try(FieldTitle, n.Label); ok {
		return m, true
	}
	if n.Requirement != nil {
		if m, ok := try(FieldBody, n.Requirement.BodyText); ok {
			return m, true
		}
		if m, ok := try(FieldKeywords, strings.Join(n.Requirement.Keywords, " ")); ok {
			return m, true
		}
	}
	return SearchMatch{}, false
}

func snippet(text string) string {
	const max = 160
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

// ScopeDirection selects which side of a scope node to search.
type ScopeDirection string

const (
	ScopeDescendants ScopeDirection = "descendants"
	ScopeAncestors   ScopeDirection = "ancestors"
)

// ScopedSearch restricts a search to the descendants or ancestors of a
// scope node. An unresolvable scope is an error, not an empty result.
func ScopedSearch(g *Graph, opts SearchOptions, scopeID string, dir ScopeDirection) ([]SearchMatch, error) {
	if g.GetNode(scopeID) == nil {
		return nil, NotFoundf("scope node %q not found", scopeID)
	}
	match, err := compileMatcher(opts)
	if err != nil {
		return nil, err
	}

	var results []SearchMatch
	consider := func(n *Node) bool {
		if n.Kind != KindRequirement {
			return true
		}
		if m, ok := matchNode(n, opts.Field, match); ok {
			results = append(results, m)
			if opts.Limit > 0 && len(results) >= opts.Limit {
				return false
			}
		}
		return true
	}

	switch dir {
	case ScopeAncestors:
		for n := range g.Ancestors(scopeID) {
			if !consider(n) {
				break
			}
		}
	case ScopeDescendants, "":
		for n := range g.Walk(scopeID, WalkLevel) {
			if n.ID == scopeID {
				continue
			}
			if !consider(n) {
				break
			}
		}
	default:
		return nil, InvalidStatef("unknown scope direction %q", dir)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Node.ID < results[j].Node.ID })
	return results, nil
}

// PrunedID records a set member removed by minimization and the
// surviving members that subsume it.
type PrunedID struct {
	ID           string
	SupersededBy []string
}

// MinimizeResult is the outcome of set minimization.
type MinimizeResult struct {
	Kept   []string
	Pruned []PrunedID
}

// MinimizeSet removes every member that is an ancestor of another
// member along the given hierarchy edge kinds, leaving the most
// specific requirements. Kinds default to implements and refines.
// Unknown IDs are an error. A member whose only subsumers were
// themselves pruned is kept, which can happen under reference cycles.
func MinimizeSet(g *Graph, ids []string, kinds ...EdgeKind) (*MinimizeResult, error) {
	if len(kinds) == 0 {
		kinds = []EdgeKind{EdgeImplements, EdgeRefines}
	}
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.GetNode(id) == nil {
			return nil, NotFoundf("node %q not found", id)
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	ancestors := make(map[string]map[string]bool, len(unique))
	for _, id := range unique {
		ancestors[id] = ancestorSet(g, id, kinds)
	}

	pruned := make(map[string]bool)
	for _, id := range unique {
		for _, other := range unique {
			if other != id && ancestors[other][id] {
				pruned[id] = true
				break
			}
		}
	}

	result := &MinimizeResult{}
	for _, id := range unique {
		if !pruned[id] {
			result.Kept = append(result.Kept, id)
			continue
		}
		var by []string
		for _, other := range unique {
			if other != id && !pruned[other] && ancestors[other][id] {
				by = append(by, other)
			}
		}
		if len(by) == 0 {
			// Cycle: everything subsuming this member was pruned too.
			result.Kept = append(result.Kept, id)
			continue
		}
		result.Pruned = append(result.Pruned, PrunedID{ID: id, SupersededBy: by})
	}
	return result, nil
}

// ancestorSet collects the transitive parents of id along up edges of
// the given kinds.
func ancestorSet(g *Graph, id string, kinds []EdgeKind) map[string]bool {
	set := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Outgoing(cur, kinds...) {
			if !set[e.To] {
				set[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return set
}

// DiscoverResult pairs the minimized match set with what was pruned.
type DiscoverResult struct {
	Matches []SearchMatch
	Pruned  []PrunedID
}

// DiscoverRequirements runs a scoped search and minimizes the match
// set, keeping the match metadata of the survivors.
func DiscoverRequirements(g *Graph, opts SearchOptions, scopeID string, dir ScopeDirection) (*DiscoverResult, error) {
	var matches []SearchMatch
	var err error
	if scopeID != "" {
		matches, err = ScopedSearch(g, opts, scopeID, dir)
	} else {
		matches, err = Search(g, opts)
	}
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &DiscoverResult{}, nil
	}

	ids := make([]string, len(matches))
	byID := make(map[string]SearchMatch, len(matches))
	for i, m := range matches {
		ids[i] = m.Node.ID
		byID[m.Node.ID] = m
	}
	min, err := MinimizeSet(g, ids)
	if err != nil {
		return nil, err
	}

	result := &DiscoverResult{Pruned: min.Pruned}
	for _, id := range min.Kept {
		result.Matches = append(result.Matches, byID[id])
	}
	return result, nil
}

// SubtreeOptions control subtree extraction. Depth zero means
// unlimited. An empty kind list defaults to requirements, assertions
// and user journeys.
type SubtreeOptions struct {
	RootID string
	Depth  int
	Kinds  []Kind
}

// SubtreeNode is one node in the nested subtree shape.
type SubtreeNode struct {
	Node     *Node          `json:"node"`
	Depth    int            `json:"depth"`
	Children []*SubtreeNode `json:"children,omitempty"`
}

// Subtree is a subtree rendered three ways from one traversal: a
// nested tree, a flat node/edge listing, and a text outline. All three
// describe the same node set.
type Subtree struct {
	Root    *SubtreeNode   `json:"root"`
	Outline string         `json:"outline"`
	Nodes   []*Node        `json:"nodes"`
	Edges   []*Edge        `json:"edges"`
	Stats   map[string]int `json:"stats"`
}

// ExtractSubtree walks the containment hierarchy under a root and
// returns the included nodes in every output shape.
func ExtractSubtree(g *Graph, opts SubtreeOptions) (*Subtree, error) {
	root := g.GetNode(opts.RootID)
	if root == nil {
		return nil, NotFoundf("node %q not found", opts.RootID)
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []Kind{KindRequirement, KindAssertion, KindUserJourney}
	}
	allowed := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	visited := map[string]bool{root.ID: true}
	var build func(n *Node, depth int) *SubtreeNode
	build = func(n *Node, depth int) *SubtreeNode {
		sn := &SubtreeNode{Node: n, Depth: depth}
		if opts.Depth > 0 && depth >= opts.Depth {
			return sn
		}
		for _, c := range g.Children(n.ID) {
			if visited[c.ID] || !allowed[c.Kind] {
				continue
			}
			visited[c.ID] = true
			sn.Children = append(sn.Children, build(c, depth+1))
		}
		return sn
	}
	tree := build(root, 0)

	result := &Subtree{Root: tree, Stats: map[string]int{}}
	var outline strings.Builder
	var flatten func(sn *SubtreeNode)
	flatten = func(sn *SubtreeNode) {
		result.Nodes = append(result.Nodes, sn.Node)
		result.Stats[string(sn.Node.Kind)]++
		outline.WriteString(strings.Repeat("  ", sn.Depth))
		outline.WriteString(outlineLine(sn.Node))
		outline.WriteByte('\n')
		for _, c := range sn.Children {
			flatten(c)
		}
	}
	flatten(tree)

	for _, id := range sortedKeys(visited) {
		for _, e := range g.Outgoing(id) {
			if visited[e.To] {
				result.Edges = append(result.Edges, e)
			}
		}
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		return result.Edges[i].Key() < result.Edges[j].Key()
	})
	result.Stats["edges"] = len(result.Edges)
	result.Outline = outline.String()
	return result, nil
}

func outlineLine(n *Node) string {
	switch n.Kind {
	case KindAssertion:
		if n.Assertion != nil {
			return fmt.Sprintf("- %s. %s", n.Assertion.Label, n.Assertion.Text)
		}
	case KindRequirement:
		line := fmt.Sprintf("%s: %s", n.ID, n.Label)
		if n.Requirement != nil && n.Requirement.Status != "" {
			line += fmt.Sprintf(" (%s)", n.Requirement.Status)
		}
		return line
	}
	return fmt.Sprintf("%s: %s", n.ID, n.Label)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
