package graph

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Op identifies a mutation operation. Operation names are stable so a
// persisted log replays across versions; unknown names are skipped on
// undo rather than treated as corruption.
type Op string

const (
	OpRenameNode         Op = "rename_node"
	OpUpdateTitle        Op = "update_title"
	OpChangeStatus       Op = "change_status"
	OpAddRequirement     Op = "add_requirement"
	OpDeleteRequirement  Op = "delete_requirement"
	OpAddAssertion       Op = "add_assertion"
	OpUpdateAssertion    Op = "update_assertion"
	OpDeleteAssertion    Op = "delete_assertion"
	OpRenameAssertion    Op = "rename_assertion"
	OpAddEdge            Op = "add_edge"
	OpChangeEdgeKind     Op = "change_edge_kind"
	OpDeleteEdge         Op = "delete_edge"
	OpFixBrokenReference Op = "fix_broken_reference"
)

// MutationEntry records one applied mutation with enough state on both
// sides to invert it exactly.
type MutationEntry struct {
	ID          string    `json:"id"`
	Op          Op        `json:"op"`
	TargetID    string    `json:"target_id"`
	Before      any       `json:"before,omitempty"`
	After       any       `json:"after,omitempty"`
	AffectsHash bool      `json:"affects_hash"`
	Timestamp   time.Time `json:"timestamp"`
}

// IDRename is a single old-ID to new-ID mapping within a cascade.
type IDRename struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RenameState captures a node ID on one side of a rename, plus the
// assertion-child renames that cascaded from it.
type RenameState struct {
	ID       string     `json:"id"`
	Children []IDRename `json:"children,omitempty"`
	Hash     string     `json:"hash,omitempty"`
}

// TitleState captures a node label.
type TitleState struct {
	Title string `json:"title"`
}

// StatusState captures a requirement status.
type StatusState struct {
	Status string `json:"status"`
}

// RequirementState captures a requirement node together with its
// assertion children and every edge touching the subtree.
type RequirementState struct {
	Node       *Node   `json:"node"`
	Assertions []*Node `json:"assertions,omitempty"`
	Edges      []*Edge `json:"edges,omitempty"`
}

// EdgeTargets snapshots one edge's assertion-target list.
type EdgeTargets struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Kind    EdgeKind `json:"kind"`
	Targets []string `json:"targets"`
}

// AssertionState captures an assertion node and, for structural edits,
// the sibling relabels and edge-target rewrites that accompanied it.
type AssertionState struct {
	Node        *Node         `json:"node,omitempty"`
	ParentID    string        `json:"parent_id,omitempty"`
	Text        string        `json:"text,omitempty"`
	Label       string        `json:"label,omitempty"`
	Hash        string        `json:"hash,omitempty"`
	Relabels    []IDRename    `json:"relabels,omitempty"`
	Edges       []*Edge       `json:"edges,omitempty"`
	EdgeTargets []EdgeTargets `json:"edge_targets,omitempty"`
}

// EdgeState captures one edge.
type EdgeState struct {
	Edge *Edge `json:"edge"`
}

// FixRefState captures a broken reference on the before side and the
// edge that replaced it on the after side.
type FixRefState struct {
	Broken *BrokenReference `json:"broken,omitempty"`
	Edge   *Edge            `json:"edge,omitempty"`
}

// RequirementSpec describes a requirement to create.
type RequirementSpec struct {
	ID         string
	Title      string
	Level      string
	Status     string
	Body       string
	Keywords   []string
	ParentID   string
	ParentKind EdgeKind
}

// Mutator applies the fixed set of graph mutations. Every operation
// validates fully before touching the graph, so a returned error means
// the graph is unchanged. Applied operations append to the log.
type Mutator struct {
	g        *Graph
	log      *MutationLog
	hashMode HashMode
}

// NewMutator creates a mutator over g. An empty hash mode defaults to
// normalized hashing.
func NewMutator(g *Graph, mode HashMode) *Mutator {
	if mode == "" {
		mode = HashNormalized
	}
	return &Mutator{g: g, log: NewMutationLog(), hashMode: mode}
}

// Log returns the mutation log.
func (m *Mutator) Log() *MutationLog { return m.log }

// Graph returns the underlying graph.
func (m *Mutator) Graph() *Graph { return m.g }

func (m *Mutator) record(op Op, targetID string, before, after any, affectsHash bool) *MutationEntry {
	e := &MutationEntry{
		ID:          uuid.New().String(),
		Op:          op,
		TargetID:    targetID,
		Before:      before,
		After:       after,
		AffectsHash: affectsHash,
		Timestamp:   time.Now().UTC(),
	}
	m.log.Append(e)
	return e
}

func (m *Mutator) requirement(id string) (*Node, error) {
	n := m.g.GetNode(id)
	if n == nil {
		return nil, NotFoundf("requirement %q not found", id)
	}
	if n.Kind != KindRequirement || n.Requirement == nil {
		return nil, InvalidStatef("node %q is %s, not a requirement", id, n.Kind)
	}
	return n, nil
}

func (m *Mutator) assertion(id string) (*Node, error) {
	n := m.g.GetNode(id)
	if n == nil {
		return nil, NotFoundf("assertion %q not found", id)
	}
	if n.Kind != KindAssertion || n.Assertion == nil {
		return nil, InvalidStatef("node %q is %s, not an assertion", id, n.Kind)
	}
	return n, nil
}

// assertionParentOf returns the requirement that contains the assertion.
func (m *Mutator) assertionParentOf(assertionID string) *Node {
	for _, e := range m.g.Incoming(assertionID, EdgeContains) {
		if p := m.g.GetNode(e.From); p != nil && p.Kind == KindRequirement {
			return p
		}
	}
	return nil
}

func (m *Mutator) recomputeHash(req *Node) {
	req.Requirement.Hash = RequirementHash(m.hashMode, req.Requirement.BodyText, m.g.AssertionsOf(req.ID))
}

// labelFor produces the assertion label for a zero-based index: A..Z,
// then AA, AB and so on.
func labelFor(index int) string {
	label := ""
	for {
		label = string(rune('A'+index%26)) + label
		index = index/26 - 1
		if index < 0 {
			return label
		}
	}
}

// RenameNode renames a requirement or journey ID and cascades the
// rename to assertion children. Every edge and broken-reference source
// referring to the old IDs is rewritten.
func (m *Mutator) RenameNode(oldID, newID string) (*MutationEntry, error) {
	if oldID == newID {
		return nil, InvalidStatef("rename target equals current ID %q", oldID)
	}
	n := m.g.GetNode(oldID)
	if n == nil {
		return nil, NotFoundf("node %q not found", oldID)
	}
	if m.g.GetNode(newID) != nil {
		return nil, AlreadyExistsf("node %q already exists", newID)
	}

	var cascades []IDRename
	if n.Kind == KindRequirement {
		for _, a := range m.g.AssertionsOf(oldID) {
			next := AssertionID(newID, a.Assertion.Label)
			if m.g.GetNode(next) != nil {
				return nil, AlreadyExistsf("node %q already exists", next)
			}
			cascades = append(cascades, IDRename{Old: a.ID, New: next})
		}
	}

	m.g.RekeyNode(oldID, newID)
	for _, c := range cascades {
		m.g.RekeyNode(c.Old, c.New)
	}
	m.g.ComputeRootsOrphans()

	before := RenameState{ID: oldID}
	after := RenameState{ID: newID, Children: cascades}
	return m.record(OpRenameNode, newID, before, after, false), nil
}

// UpdateTitle changes a node's display title.
func (m *Mutator) UpdateTitle(id, title string) (*MutationEntry, error) {
	n := m.g.GetNode(id)
	if n == nil {
		return nil, NotFoundf("node %q not found", id)
	}
	before := TitleState{Title: n.Label}
	n.Label = title
	return m.record(OpUpdateTitle, id, before, TitleState{Title: title}, false), nil
}

// ChangeStatus sets a requirement's status.
func (m *Mutator) ChangeStatus(id, status string) (*MutationEntry, error) {
	req, err := m.requirement(id)
	if err != nil {
		return nil, err
	}
	before := StatusState{Status: req.Requirement.Status}
	req.Requirement.Status = status
	return m.record(OpChangeStatus, id, before, StatusState{Status: status}, false), nil
}

// AddRequirement creates a new requirement node, optionally linked to a
// parent requirement by an implements or refines edge.
func (m *Mutator) AddRequirement(spec RequirementSpec) (*MutationEntry, error) {
	if spec.ID == "" {
		return nil, InvalidStatef("requirement ID must not be empty")
	}
	if m.g.GetNode(spec.ID) != nil {
		return nil, AlreadyExistsf("node %q already exists", spec.ID)
	}
	var edges []*Edge
	if spec.ParentID != "" {
		if _, err := m.requirement(spec.ParentID); err != nil {
			return nil, err
		}
		kind := spec.ParentKind
		if kind == "" {
			kind = EdgeImplements
		}
		if kind != EdgeImplements && kind != EdgeRefines {
			return nil, InvalidStatef("parent link must be implements or refines, got %s", kind)
		}
		edges = append(edges, &Edge{From: spec.ID, To: spec.ParentID, Kind: kind})
	}

	n := &Node{
		ID:    spec.ID,
		Kind:  KindRequirement,
		Label: spec.Title,
		Requirement: &RequirementFields{
			Level:    spec.Level,
			Status:   spec.Status,
			BodyText: spec.Body,
			Keywords: append([]string(nil), spec.Keywords...),
		},
	}
	n.Requirement.Hash = RequirementHash(m.hashMode, spec.Body, nil)
	m.g.AddNode(n)
	for _, e := range edges {
		m.g.AddEdge(e)
	}
	m.g.ComputeRootsOrphans()

	after := RequirementState{Node: n.Clone(), Edges: cloneEdges(edges)}
	return m.record(OpAddRequirement, spec.ID, nil, after, false), nil
}

// DeleteRequirement removes a requirement, hard-deletes its assertion
// children, and unlinks every other relationship. Child requirements
// and evidence nodes survive; only the edges go.
func (m *Mutator) DeleteRequirement(id string) (*MutationEntry, error) {
	req, err := m.requirement(id)
	if err != nil {
		return nil, err
	}
	assertions := m.g.AssertionsOf(id)

	before := RequirementState{Node: req.Clone()}
	var removed []*Edge
	for _, a := range assertions {
		before.Assertions = append(before.Assertions, a.Clone())
		removed = append(removed, m.g.DeleteNode(a.ID)...)
	}
	removed = append(removed, m.g.DeleteNode(id)...)
	before.Edges = cloneEdges(dedupeEdges(removed))
	m.g.ComputeRootsOrphans()

	return m.record(OpDeleteRequirement, id, before, nil, false), nil
}

// AddAssertion appends a new assertion to a requirement and recomputes
// the requirement hash.
func (m *Mutator) AddAssertion(reqID, text string) (*MutationEntry, error) {
	req, err := m.requirement(reqID)
	if err != nil {
		return nil, err
	}
	existing := m.g.AssertionsOf(reqID)
	index := 0
	if len(existing) > 0 {
		index = existing[len(existing)-1].Assertion.Index + 1
	}
	label := labelFor(index)
	id := AssertionID(reqID, label)
	if m.g.GetNode(id) != nil {
		return nil, AlreadyExistsf("node %q already exists", id)
	}

	oldHash := req.Requirement.Hash
	a := &Node{
		ID:        id,
		Kind:      KindAssertion,
		Label:     text,
		Assertion: &AssertionFields{Label: label, Index: index, Text: text},
	}
	m.g.AddNode(a)
	m.g.AddEdge(&Edge{From: reqID, To: id, Kind: EdgeContains})
	m.recomputeHash(req)

	before := AssertionState{ParentID: reqID, Hash: oldHash}
	after := AssertionState{Node: a.Clone(), ParentID: reqID, Hash: req.Requirement.Hash}
	return m.record(OpAddAssertion, id, before, after, oldHash != req.Requirement.Hash), nil
}

// UpdateAssertion replaces an assertion's text and recomputes the
// parent requirement hash.
func (m *Mutator) UpdateAssertion(id, text string) (*MutationEntry, error) {
	a, err := m.assertion(id)
	if err != nil {
		return nil, err
	}
	parent := m.assertionParentOf(id)
	if parent == nil {
		return nil, InvalidStatef("assertion %q has no containing requirement", id)
	}

	oldHash := parent.Requirement.Hash
	before := AssertionState{ParentID: parent.ID, Text: a.Assertion.Text, Hash: oldHash}
	a.Assertion.Text = text
	a.Label = text
	m.recomputeHash(parent)

	after := AssertionState{ParentID: parent.ID, Text: text, Hash: parent.Requirement.Hash}
	return m.record(OpUpdateAssertion, id, before, after, oldHash != parent.Requirement.Hash), nil
}

// DeleteAssertion removes an assertion. With compact true the sibling
// labels above it shift down one slot and edge targets referring to the
// shifted labels are rewritten; the deleted label simply disappears
// from targets either way.
func (m *Mutator) DeleteAssertion(id string, compact bool) (*MutationEntry, error) {
	a, err := m.assertion(id)
	if err != nil {
		return nil, err
	}
	parent := m.assertionParentOf(id)
	if parent == nil {
		return nil, InvalidStatef("assertion %q has no containing requirement", id)
	}

	oldHash := parent.Requirement.Hash
	deletedLabel := a.Assertion.Label
	siblings := m.g.AssertionsOf(parent.ID)

	// Snapshot every targeted edge onto the parent before rewriting.
	var snapshots []EdgeTargets
	for _, e := range m.g.Incoming(parent.ID) {
		if len(e.AssertionTargets) > 0 {
			snapshots = append(snapshots, EdgeTargets{
				From: e.From, To: e.To, Kind: e.Kind,
				Targets: append([]string(nil), e.AssertionTargets...),
			})
		}
	}

	before := AssertionState{Node: a.Clone(), ParentID: parent.ID, Hash: oldHash, EdgeTargets: snapshots}
	before.Edges = cloneEdges(m.g.DeleteNode(id))
	m.rewriteTargets(parent.ID, deletedLabel, "")

	var relabels []IDRename
	if compact {
		for _, s := range siblings {
			if s.Assertion.Index <= a.Assertion.Index {
				continue
			}
			oldLabel := s.Assertion.Label
			s.Assertion.Index--
			s.Assertion.Label = labelFor(s.Assertion.Index)
			newID := AssertionID(parent.ID, s.Assertion.Label)
			relabels = append(relabels, IDRename{Old: s.ID, New: newID})
			m.g.RekeyNode(s.ID, newID)
			m.rewriteTargets(parent.ID, oldLabel, s.Assertion.Label)
		}
	}
	m.recomputeHash(parent)
	m.g.ComputeRootsOrphans()

	after := AssertionState{ParentID: parent.ID, Hash: parent.Requirement.Hash, Relabels: relabels}
	return m.record(OpDeleteAssertion, id, before, after, oldHash != parent.Requirement.Hash), nil
}

// RenameAssertion changes an assertion's label in place, rewriting its
// ID and any edge targets that name the old label. Position is kept.
func (m *Mutator) RenameAssertion(id, newLabel string) (*MutationEntry, error) {
	a, err := m.assertion(id)
	if err != nil {
		return nil, err
	}
	parent := m.assertionParentOf(id)
	if parent == nil {
		return nil, InvalidStatef("assertion %q has no containing requirement", id)
	}
	if a.Assertion.Label == newLabel {
		return nil, InvalidStatef("assertion %q already labeled %q", id, newLabel)
	}
	newID := AssertionID(parent.ID, newLabel)
	if m.g.GetNode(newID) != nil {
		return nil, AlreadyExistsf("node %q already exists", newID)
	}

	oldHash := parent.Requirement.Hash
	var snapshots []EdgeTargets
	for _, e := range m.g.Incoming(parent.ID) {
		if e.HasAssertionTarget(a.Assertion.Label) {
			snapshots = append(snapshots, EdgeTargets{
				From: e.From, To: e.To, Kind: e.Kind,
				Targets: append([]string(nil), e.AssertionTargets...),
			})
		}
	}
	before := AssertionState{Label: a.Assertion.Label, ParentID: parent.ID, Hash: oldHash, EdgeTargets: snapshots}

	oldLabel := a.Assertion.Label
	a.Assertion.Label = newLabel
	m.g.RekeyNode(id, newID)
	m.rewriteTargets(parent.ID, oldLabel, newLabel)
	m.recomputeHash(parent)

	after := AssertionState{Label: newLabel, ParentID: parent.ID, Hash: parent.Requirement.Hash}
	return m.record(OpRenameAssertion, newID, before, after, oldHash != parent.Requirement.Hash), nil
}

// rewriteTargets replaces oldLabel with newLabel in the assertion
// targets of every edge pointing at reqID. An empty newLabel drops the
// label; an edge left with no targets becomes whole-requirement.
func (m *Mutator) rewriteTargets(reqID, oldLabel, newLabel string) {
	for _, e := range m.g.Incoming(reqID) {
		if !e.HasAssertionTarget(oldLabel) {
			continue
		}
		var next []string
		for _, t := range e.AssertionTargets {
			switch {
			case t != oldLabel:
				next = append(next, t)
			case newLabel != "":
				next = append(next, newLabel)
			}
		}
		sort.Strings(next)
		e.AssertionTargets = next
	}
}

// AddEdge creates an edge. A target that names an assertion is
// redirected to its parent requirement with the label recorded as an
// assertion target, matching how source links resolve.
func (m *Mutator) AddEdge(from, to string, kind EdgeKind, targets []string) (*MutationEntry, error) {
	if m.g.GetNode(from) == nil {
		return nil, NotFoundf("node %q not found", from)
	}
	toNode := m.g.GetNode(to)
	if toNode == nil {
		return nil, NotFoundf("node %q not found", to)
	}
	if toNode.Kind == KindAssertion {
		parent := m.assertionParentOf(to)
		if parent == nil {
			return nil, InvalidStatef("assertion %q has no containing requirement", to)
		}
		targets = append(append([]string(nil), targets...), toNode.Assertion.Label)
		to = parent.ID
	}
	if m.g.GetEdge(from, to, kind) != nil {
		return nil, AlreadyExistsf("edge %s already exists", EdgeKey(from, to, kind))
	}

	sort.Strings(targets)
	e := &Edge{From: from, To: to, Kind: kind, AssertionTargets: targets}
	m.g.AddEdge(e)
	m.g.ComputeRootsOrphans()

	return m.record(OpAddEdge, e.Key(), nil, EdgeState{Edge: e.Clone()}, false), nil
}

// ChangeEdgeKind replaces an edge with one of a different kind, keeping
// endpoints and assertion targets.
func (m *Mutator) ChangeEdgeKind(from, to string, oldKind, newKind EdgeKind) (*MutationEntry, error) {
	old := m.g.GetEdge(from, to, oldKind)
	if old == nil {
		return nil, NotFoundf("edge %s not found", EdgeKey(from, to, oldKind))
	}
	if oldKind == newKind {
		return nil, InvalidStatef("edge %s already has kind %s", old.Key(), newKind)
	}
	if m.g.GetEdge(from, to, newKind) != nil {
		return nil, AlreadyExistsf("edge %s already exists", EdgeKey(from, to, newKind))
	}

	before := EdgeState{Edge: old.Clone()}
	m.g.RemoveEdge(from, to, oldKind)
	next := &Edge{From: from, To: to, Kind: newKind, AssertionTargets: old.AssertionTargets}
	m.g.AddEdge(next)
	m.g.ComputeRootsOrphans()

	return m.record(OpChangeEdgeKind, next.Key(), before, EdgeState{Edge: next.Clone()}, false), nil
}

// DeleteEdge removes an edge.
func (m *Mutator) DeleteEdge(from, to string, kind EdgeKind) (*MutationEntry, error) {
	e := m.g.RemoveEdge(from, to, kind)
	if e == nil {
		return nil, NotFoundf("edge %s not found", EdgeKey(from, to, kind))
	}
	m.g.ComputeRootsOrphans()
	return m.record(OpDeleteEdge, e.Key(), EdgeState{Edge: e.Clone()}, nil, false), nil
}

// FixBrokenReference resolves a recorded broken reference to an
// existing node, creating the edge the source originally asked for.
// An empty kind matches any recorded kind but errors when the
// (source, target) pair is ambiguous across kinds.
func (m *Mutator) FixBrokenReference(sourceID, targetRef string, kind EdgeKind, newTargetID string) (*MutationEntry, error) {
	var broken *BrokenReference
	for _, b := range m.g.BrokenRefs() {
		if b.SourceID != sourceID || b.TargetRef != targetRef {
			continue
		}
		if kind != "" && b.Kind != kind {
			continue
		}
		if broken != nil {
			return nil, InvalidStatef("broken reference from %q to %q exists with several kinds, pass the edge kind", sourceID, targetRef)
		}
		broken = &b
	}
	if broken == nil {
		return nil, NotFoundf("no broken reference from %q to %q", sourceID, targetRef)
	}
	target := m.g.GetNode(newTargetID)
	if target == nil {
		return nil, NotFoundf("node %q not found", newTargetID)
	}
	var targets []string
	if target.Kind == KindAssertion {
		parent := m.assertionParentOf(newTargetID)
		if parent == nil {
			return nil, InvalidStatef("assertion %q has no containing requirement", newTargetID)
		}
		targets = []string{target.Assertion.Label}
		newTargetID = parent.ID
	}
	if m.g.GetEdge(sourceID, newTargetID, broken.Kind) != nil {
		return nil, AlreadyExistsf("edge %s already exists", EdgeKey(sourceID, newTargetID, broken.Kind))
	}

	m.g.RemoveBrokenRef(*broken)
	e := &Edge{From: sourceID, To: newTargetID, Kind: broken.Kind, AssertionTargets: targets}
	m.g.AddEdge(e)
	m.g.ComputeRootsOrphans()

	before := FixRefState{Broken: broken}
	after := FixRefState{Edge: e.Clone()}
	return m.record(OpFixBrokenReference, e.Key(), before, after, false), nil
}

func cloneEdges(edges []*Edge) []*Edge {
	if edges == nil {
		return nil
	}
	out := make([]*Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}

func dedupeEdges(edges []*Edge) []*Edge {
	seen := make(map[string]bool, len(edges))
	var out []*Edge
	for _, e := range edges {
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		out = append(out, e)
	}
	return out
}
