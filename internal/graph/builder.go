package graph

import (
	"fmt"
	"sort"
	"strings"
)

// BuildConfig controls linking behavior.
type BuildConfig struct {
	// DefaultPrefix is prepended to references that do not resolve as
	// written (e.g. "p00001" -> "REQ-p00001").
	DefaultPrefix string

	// HashMode selects how requirement content hashes are computed.
	HashMode HashMode
}

// pendingLink is a queued relationship awaiting pass-2 resolution.
type pendingLink struct {
	fromID    string
	targetRef string
	kind      EdgeKind
}

// Builder turns parsed artifact records into a validated graph using
// two-pass linking: pass 1 creates all nodes without resolving any
// relationship; pass 2 resolves every queued link.
type Builder struct {
	cfg     BuildConfig
	g       *Graph
	pending []pendingLink
	results []*TestResultData
}

// NewBuilder creates a builder with the given configuration.
func NewBuilder(cfg BuildConfig) *Builder {
	if cfg.DefaultPrefix == "" {
		cfg.DefaultPrefix = "REQ-"
	}
	if cfg.HashMode == "" {
		cfg.HashMode = HashNormalized
	}
	return &Builder{cfg: cfg, g: NewGraph()}
}

// Build consumes the parsed records and returns the linked graph.
// Unresolvable targets become broken references, never errors.
func (b *Builder) Build(records []ParsedContent) *Graph {
	for i := range records {
		b.addRecord(&records[i])
	}
	b.resolveResults()
	b.resolveLinks()
	b.g.ComputeRootsOrphans()
	return b.g
}

// addRecord is pass 1: node creation and link queueing.
func (b *Builder) addRecord(rec *ParsedContent) {
	src := &SourceRef{File: rec.Source.File, Line: rec.StartLine, EndLine: rec.EndLine}

	switch rec.Type {
	case ContentRequirement:
		b.addRequirement(rec.Requirement, src)
	case ContentJourney:
		d := rec.Journey
		b.g.AddNode(&Node{ID: d.ID, Kind: KindUserJourney, Label: d.Title, Source: src})
	case ContentCodeRef:
		b.addRef(KindCode, rec.Ref, src)
	case ContentTestRef:
		b.addRef(KindTest, rec.Ref, src)
	case ContentTestResult:
		// Resolution deferred so ingestion order across file types
		// does not matter.
		b.results = append(b.results, rec.Result)
	case ContentRemainder:
		id := fmt.Sprintf("remainder:%s:%d", rec.Source.File, rec.StartLine)
		label := strings.TrimSpace(rec.Raw)
		if len(label) > 80 {
			label = label[:80]
		}
		b.g.AddNode(&Node{ID: id, Kind: KindRemainder, Label: label, Source: src})
	}
}

func (b *Builder) addRequirement(d *RequirementData, src *SourceRef) {
	req := &Node{
		ID:     d.ID,
		Kind:   KindRequirement,
		Label:  d.Title,
		Source: src,
		Requirement: &RequirementFields{
			Level:    d.Level,
			Status:   d.Status,
			BodyText: d.Body,
			Keywords: append([]string(nil), d.Keywords...),
		},
	}
	b.g.AddNode(req)

	assertions := make([]*Node, 0, len(d.Assertions))
	for i, a := range d.Assertions {
		an := &Node{
			ID:     AssertionID(d.ID, a.Label),
			Kind:   KindAssertion,
			Label:  a.Text,
			Source: src,
			Assertion: &AssertionFields{
				Label: a.Label,
				Index: i,
				Text:  a.Text,
			},
		}
		b.g.AddNode(an)
		b.g.AddChild(d.ID, an.ID)
		assertions = append(assertions, an)
	}
	req.Requirement.Hash = RequirementHash(b.cfg.HashMode, d.Body, assertions)

	for _, l := range d.Links {
		b.pending = append(b.pending, pendingLink{fromID: d.ID, targetRef: l.TargetRef, kind: l.Kind})
	}
}

func (b *Builder) addRef(kind Kind, d *RefData, src *SourceRef) {
	id := RefID(kind, src.File, d.FuncName)
	b.g.AddNode(&Node{
		ID:     id,
		Kind:   kind,
		Label:  d.FuncName,
		Source: src,
		Ref:    &RefFields{FuncName: d.FuncName, ClassName: d.ClassName},
	})
	for _, t := range d.Targets {
		b.pending = append(b.pending, pendingLink{fromID: id, targetRef: t, kind: EdgeValidates})
	}
}

// resolveResults attaches test results to their tests, auto-creating a
// minimal Test node when a report names a test no parsed file declared.
func (b *Builder) resolveResults() {
	seq := make(map[string]int)
	for _, r := range b.results {
		test := b.findTest(r.TestID)
		if test == nil {
			test = &Node{
				ID:    RefID(KindTest, "", r.TestID),
				Kind:  KindTest,
				Label: r.TestID,
				Ref:   &RefFields{FuncName: r.TestID, FromResults: true},
			}
			b.g.AddNode(test)
		}
		seq[test.ID]++
		rn := &Node{
			ID:    fmt.Sprintf("%s:result:%d", test.ID, seq[test.ID]),
			Kind:  KindTestResult,
			Label: fmt.Sprintf("%s [%s]", r.TestID, r.Status),
			TestResult: &TestResultFields{
				Status:     r.Status,
				DurationMS: r.DurationMS,
				Message:    r.Message,
			},
		}
		b.g.AddNode(rn)
		b.g.AddChild(test.ID, rn.ID)
	}
}

// findTest locates a Test node by exact ID or declared function name.
func (b *Builder) findTest(testID string) *Node {
	if n := b.g.GetNode(testID); n != nil && n.Kind == KindTest {
		return n
	}
	var found *Node
	for _, n := range b.g.FindByKind(KindTest) {
		if n.Ref != nil && n.Ref.FuncName == testID {
			found = n
			break
		}
	}
	return found
}

// resolveLinks is pass 2: every queued (from, target, kind) is resolved
// against the node index. Edges targeting an assertion are redirected to
// the assertion's parent requirement with the assertion's label recorded
// on the edge, so one logical child never appears once per targeted
// assertion. Unresolvable targets are recorded as broken references.
func (b *Builder) resolveLinks() {
	for _, p := range b.pending {
		target := b.resolveRef(p.targetRef)
		if target == nil {
			b.g.RecordBrokenRef(BrokenReference{SourceID: p.fromID, TargetRef: p.targetRef, Kind: p.kind})
			continue
		}
		b.linkTo(p.fromID, target, p.kind)
	}
}

// linkTo creates or merges the edge from fromID to the resolved target.
func (b *Builder) linkTo(fromID string, target *Node, kind EdgeKind) {
	toID := target.ID
	var label string
	if target.Kind == KindAssertion {
		if parent := assertionParent(b.g, target); parent != nil {
			toID = parent.ID
			label = target.Assertion.Label
		}
	}
	if existing := b.g.GetEdge(fromID, toID, kind); existing != nil {
		if label != "" && !existing.HasAssertionTarget(label) {
			existing.AssertionTargets = append(existing.AssertionTargets, label)
			sort.Strings(existing.AssertionTargets)
		}
		return
	}
	e := &Edge{From: fromID, To: toID, Kind: kind}
	if label != "" {
		e.AssertionTargets = []string{label}
	}
	b.g.AddEdge(e)
}

// resolveRef resolves a raw reference using exact match, then the
// default prefix, then a suffix match restricted to requirement and
// assertion nodes. The suffix fallback is deliberate best-effort; shared
// suffixes between unrelated IDs can mismatch.
func (b *Builder) resolveRef(ref string) *Node {
	if n := b.g.GetNode(ref); n != nil {
		return n
	}
	if n := b.g.GetNode(b.cfg.DefaultPrefix + ref); n != nil {
		return n
	}
	var candidates []*Node
	for _, kind := range []Kind{KindRequirement, KindAssertion} {
		for _, n := range b.g.FindByKind(kind) {
			if strings.HasSuffix(n.ID, ref) {
				candidates = append(candidates, n)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0]
}

// assertionParent returns the requirement owning an assertion node.
func assertionParent(g *Graph, a *Node) *Node {
	for _, p := range g.Parents(a.ID) {
		if p.Kind == KindRequirement {
			return p
		}
	}
	return nil
}
