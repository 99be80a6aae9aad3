package graph

import (
	"fmt"
	"sort"
)

// ValidationWarning records a non-fatal schema violation found during
// validation. Warnings are collected, never raised.
type ValidationWarning struct {
	Edge    *Edge
	Message string
}

// Cycle is one detected dependency loop, listed in traversal order.
type Cycle struct {
	NodeIDs []string
}

// ValidationReport accumulates every build/validate-time issue so one
// pass surfaces every problem at once. None of these are errors: the
// graph remains usable.
type ValidationReport struct {
	Cycles     []Cycle
	Orphans    []string
	BrokenRefs []BrokenReference
	Warnings   []ValidationWarning
}

// OK reports whether the graph validated cleanly.
func (r *ValidationReport) OK() bool {
	return len(r.Cycles) == 0 && len(r.Orphans) == 0 &&
		len(r.BrokenRefs) == 0 && len(r.Warnings) == 0
}

// edgeSchema maps each edge kind to its allowed (from, to) node kinds.
var edgeSchema = map[EdgeKind]struct {
	from map[Kind]bool
	to   map[Kind]bool
}{
	EdgeImplements: {
		from: map[Kind]bool{KindRequirement: true},
		to:   map[Kind]bool{KindRequirement: true},
	},
	EdgeRefines: {
		from: map[Kind]bool{KindRequirement: true},
		to:   map[Kind]bool{KindRequirement: true},
	},
	EdgeValidates: {
		from: map[Kind]bool{KindTest: true, KindCode: true},
		to:   map[Kind]bool{KindRequirement: true},
	},
	EdgeAddresses: {
		from: map[Kind]bool{KindRequirement: true},
		to:   map[Kind]bool{KindUserJourney: true},
	},
	EdgeContains: {
		from: map[Kind]bool{KindRequirement: true, KindTest: true},
		to:   map[Kind]bool{KindAssertion: true, KindTestResult: true},
	},
}

// Validate checks the graph against the relationship schema and reports
// cycles, orphans, broken references and kind mismatches in one pass.
func Validate(g *Graph) *ValidationReport {
	report := &ValidationReport{
		Orphans:    g.Orphans(),
		BrokenRefs: g.BrokenRefs(),
	}

	for _, e := range g.Edges() {
		schema, ok := edgeSchema[e.Kind]
		if !ok {
			report.Warnings = append(report.Warnings, ValidationWarning{
				Edge:    e,
				Message: fmt.Sprintf("unknown edge kind %q", e.Kind),
			})
			continue
		}
		from := g.GetNode(e.From)
		to := g.GetNode(e.To)
		if from != nil && !schema.from[from.Kind] {
			report.Warnings = append(report.Warnings, ValidationWarning{
				Edge:    e,
				Message: fmt.Sprintf("%s edge from %s node %s", e.Kind, from.Kind, from.ID),
			})
		}
		if to != nil && !schema.to[to.Kind] {
			report.Warnings = append(report.Warnings, ValidationWarning{
				Edge:    e,
				Message: fmt.Sprintf("%s edge to %s node %s", e.Kind, to.Kind, to.ID),
			})
		}
	}

	report.Cycles = detectCycles(g)
	return report
}

// detectCycles finds dependency loops in the requirement hierarchy
// (implements/refines edges) using a color-map DFS.
func detectCycles(g *Graph) []Cycle {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	onPath := make(map[string]int) // id -> index in path
	var path []string
	var cycles []Cycle
	seen := make(map[string]bool) // dedup by canonical cycle key

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		onPath[id] = len(path)
		path = append(path, id)
		for _, e := range g.Outgoing(id, EdgeImplements, EdgeRefines) {
			next := e.To
			switch color[next] {
			case white:
				dfs(next)
			case gray:
				start := onPath[next]
				cycle := append([]string(nil), path[start:]...)
				key := canonicalCycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, Cycle{NodeIDs: cycle})
				}
			}
		}
		path = path[:len(path)-1]
		delete(onPath, id)
		color[id] = black
	}

	for _, req := range g.FindByKind(KindRequirement) {
		if color[req.ID] == white {
			dfs(req.ID)
		}
	}
	return cycles
}

// canonicalCycleKey builds an order-independent identity for a cycle.
func canonicalCycleKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	key := ""
	for _, id := range sorted {
		key += id + "|"
	}
	return key
}
