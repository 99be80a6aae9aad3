package graph

import (
	"strings"
)

// MutationLog is an append-only record of applied mutations. Undo pops
// from the tail; nothing is ever rewritten in place.
type MutationLog struct {
	entries []*MutationEntry
}

// NewMutationLog creates an empty log.
func NewMutationLog() *MutationLog {
	return &MutationLog{}
}

// Append adds an entry to the tail.
func (l *MutationLog) Append(e *MutationEntry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of entries.
func (l *MutationLog) Len() int { return len(l.entries) }

// Entries returns the entries oldest first.
func (l *MutationLog) Entries() []*MutationEntry {
	return append([]*MutationEntry(nil), l.entries...)
}

// Last returns the most recent entry, or nil.
func (l *MutationLog) Last() *MutationEntry {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

// Pop removes and returns the most recent entry, or nil.
func (l *MutationLog) Pop() *MutationEntry {
	if len(l.entries) == 0 {
		return nil
	}
	e := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	return e
}

// Find returns the entry with the given ID, or nil.
func (l *MutationLog) Find(id string) *MutationEntry {
	for _, e := range l.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// EntriesSince returns the entries after the one with the given ID,
// oldest first. An empty ID returns everything.
func (l *MutationLog) EntriesSince(id string) []*MutationEntry {
	if id == "" {
		return l.Entries()
	}
	for i, e := range l.entries {
		if e.ID == id {
			return append([]*MutationEntry(nil), l.entries[i+1:]...)
		}
	}
	return nil
}

// UndoLast reverts the most recent mutation and removes it from the
// log. Returns the reverted entry.
func (m *Mutator) UndoLast() (*MutationEntry, error) {
	e := m.log.Last()
	if e == nil {
		return nil, InvalidStatef("mutation log is empty")
	}
	if err := m.invert(e); err != nil {
		return nil, err
	}
	m.log.Pop()
	return e, nil
}

// UndoTo reverts mutations newest first until, and including, the
// entry with the given ID. Strict LIFO: the target must still be in
// the log. Returns the reverted entries in the order they were undone.
func (m *Mutator) UndoTo(id string) ([]*MutationEntry, error) {
	if m.log.Find(id) == nil {
		return nil, NotFoundf("mutation %q not in log", id)
	}
	var reverted []*MutationEntry
	for {
		e, err := m.UndoLast()
		if err != nil {
			return reverted, err
		}
		reverted = append(reverted, e)
		if e.ID == id {
			return reverted, nil
		}
	}
}

// invert applies the inverse of a mutation directly to the graph.
// Operations with unrecognized names are skipped so logs written by a
// newer version do not wedge undo entirely.
func (m *Mutator) invert(e *MutationEntry) error {
	switch e.Op {
	case OpRenameNode:
		before, _ := e.Before.(RenameState)
		after, _ := e.After.(RenameState)
		for _, c := range after.Children {
			m.g.RekeyNode(c.New, c.Old)
		}
		m.g.RekeyNode(after.ID, before.ID)
		m.g.ComputeRootsOrphans()

	case OpUpdateTitle:
		before, _ := e.Before.(TitleState)
		n := m.g.GetNode(e.TargetID)
		if n == nil {
			return NotFoundf("node %q not found", e.TargetID)
		}
		n.Label = before.Title

	case OpChangeStatus:
		before, _ := e.Before.(StatusState)
		req, err := m.requirement(e.TargetID)
		if err != nil {
			return err
		}
		req.Requirement.Status = before.Status

	case OpAddRequirement:
		after, _ := e.After.(RequirementState)
		for _, edge := range after.Edges {
			m.g.RemoveEdge(edge.From, edge.To, edge.Kind)
		}
		m.g.removeNode(e.TargetID, false)
		m.g.ComputeRootsOrphans()

	case OpDeleteRequirement:
		before, _ := e.Before.(RequirementState)
		m.g.RestoreNode(before.Node)
		for _, a := range before.Assertions {
			m.g.RestoreNode(a)
		}
		for _, edge := range before.Edges {
			m.g.AddEdge(edge.Clone())
		}
		m.g.ComputeRootsOrphans()

	case OpAddAssertion:
		before, _ := e.Before.(AssertionState)
		after, _ := e.After.(AssertionState)
		m.g.RemoveEdge(after.ParentID, e.TargetID, EdgeContains)
		m.g.removeNode(e.TargetID, false)
		m.restoreHash(after.ParentID, before.Hash)

	case OpUpdateAssertion:
		before, _ := e.Before.(AssertionState)
		a, err := m.assertion(e.TargetID)
		if err != nil {
			return err
		}
		a.Assertion.Text = before.Text
		a.Label = before.Text
		m.restoreHash(before.ParentID, before.Hash)

	case OpDeleteAssertion:
		before, _ := e.Before.(AssertionState)
		after, _ := e.After.(AssertionState)
		for i := len(after.Relabels) - 1; i >= 0; i-- {
			r := after.Relabels[i]
			n := m.g.GetNode(r.New)
			if n == nil {
				continue
			}
			m.g.RekeyNode(r.New, r.Old)
			n.Assertion.Index++
			n.Assertion.Label = strings.TrimPrefix(r.Old, before.ParentID+"-")
		}
		m.g.RestoreNode(before.Node)
		for _, edge := range before.Edges {
			m.g.AddEdge(edge.Clone())
		}
		m.restoreTargets(before.EdgeTargets)
		m.restoreHash(before.ParentID, before.Hash)
		m.g.ComputeRootsOrphans()

	case OpRenameAssertion:
		before, _ := e.Before.(AssertionState)
		a, err := m.assertion(e.TargetID)
		if err != nil {
			return err
		}
		a.Assertion.Label = before.Label
		m.g.RekeyNode(e.TargetID, AssertionID(before.ParentID, before.Label))
		m.restoreTargets(before.EdgeTargets)
		m.restoreHash(before.ParentID, before.Hash)

	case OpAddEdge:
		after, _ := e.After.(EdgeState)
		m.g.RemoveEdge(after.Edge.From, after.Edge.To, after.Edge.Kind)
		m.g.ComputeRootsOrphans()

	case OpChangeEdgeKind:
		before, _ := e.Before.(EdgeState)
		after, _ := e.After.(EdgeState)
		m.g.RemoveEdge(after.Edge.From, after.Edge.To, after.Edge.Kind)
		m.g.AddEdge(before.Edge.Clone())
		m.g.ComputeRootsOrphans()

	case OpDeleteEdge:
		before, _ := e.Before.(EdgeState)
		m.g.AddEdge(before.Edge.Clone())
		m.g.ComputeRootsOrphans()

	case OpFixBrokenReference:
		before, _ := e.Before.(FixRefState)
		after, _ := e.After.(FixRefState)
		m.g.RemoveEdge(after.Edge.From, after.Edge.To, after.Edge.Kind)
		m.g.RecordBrokenRef(*before.Broken)
		m.g.ComputeRootsOrphans()
	}
	return nil
}

// restoreHash writes a saved hash back onto a requirement verbatim.
// Undo restores recorded state rather than recomputing, so a log
// written under one hash mode reverts exactly under another.
func (m *Mutator) restoreHash(reqID, hash string) {
	if req := m.g.GetNode(reqID); req != nil && req.Requirement != nil {
		req.Requirement.Hash = hash
	}
}

func (m *Mutator) restoreTargets(snapshots []EdgeTargets) {
	for _, s := range snapshots {
		if edge := m.g.GetEdge(s.From, s.To, s.Kind); edge != nil {
			edge.AssertionTargets = append([]string(nil), s.Targets...)
		}
	}
}
