// Package graph provides the requirement traceability graph for ReqTrace.
//
// It defines the core node and edge types that represent specification
// entities (requirements, assertions, user journeys) and the evidence
// attached to them (code references, tests, test results), plus the edges
// between them (implements, refines, validates, addresses, contains).
package graph

// Kind represents the type of a graph node.
type Kind string

const (
	KindRequirement Kind = "requirement"
	KindAssertion   Kind = "assertion"
	KindCode        Kind = "code"
	KindTest        Kind = "test"
	KindTestResult  Kind = "test_result"
	KindUserJourney Kind = "user_journey"
	KindRemainder   Kind = "remainder"
)

// EdgeKind represents the type of relationship between graph nodes.
//
// Implements, Refines, Validates and Addresses are "up" edges: the edge
// source is the semantic child and the referenced entity is the parent.
// Contains is a "down" edge: the source owns the target (a requirement
// owns its assertions, a test owns its recorded results).
type EdgeKind string

const (
	EdgeImplements EdgeKind = "implements"
	EdgeRefines    EdgeKind = "refines"
	EdgeValidates  EdgeKind = "validates"
	EdgeAddresses  EdgeKind = "addresses"
	EdgeContains   EdgeKind = "contains"
)

// upKinds is the set of edge kinds where the source is the child.
var upKinds = map[EdgeKind]bool{
	EdgeImplements: true,
	EdgeRefines:    true,
	EdgeValidates:  true,
	EdgeAddresses:  true,
}

// ResultStatus is the outcome recorded for one test run.
type ResultStatus string

const (
	ResultPassed  ResultStatus = "passed"
	ResultFailed  ResultStatus = "failed"
	ResultSkipped ResultStatus = "skipped"
)

// SourceRef locates a node in its originating file.
type SourceRef struct {
	// File is the path of the file the node was parsed from.
	File string

	// Line is the starting line number (1-based).
	Line int

	// EndLine is the ending line number (1-based).
	EndLine int
}

// RequirementFields holds content specific to Requirement nodes.
type RequirementFields struct {
	// Level is the requirement level (PRD, OPS, DEV).
	Level string

	// Status is the lifecycle status (active, draft, deprecated, ...).
	Status string

	// Hash is the content hash of the requirement body, computed
	// according to the configured HashMode.
	Hash string

	// BodyText is the raw requirement body text.
	BodyText string

	// Keywords are free-form search terms declared on the requirement.
	Keywords []string
}

// AssertionFields holds content specific to Assertion nodes.
type AssertionFields struct {
	// Label is the assertion letter within its requirement (A, B, C...).
	Label string

	// Index is the 0-based position of the assertion in its requirement.
	Index int

	// Text is the assertion clause text.
	Text string
}

// TestResultFields holds content specific to TestResult nodes.
type TestResultFields struct {
	// Status is the recorded outcome.
	Status ResultStatus

	// DurationMS is the test duration in milliseconds.
	DurationMS float64

	// Message is the failure or skip message, if any.
	Message string
}

// RefFields holds content shared by Code and Test nodes.
type RefFields struct {
	// FuncName is the function name carrying the traceability marker.
	FuncName string

	// ClassName is the enclosing type or class, if any.
	ClassName string

	// FromResults is true for Test nodes auto-created from a test-run
	// report that named a test not present in any parsed test file.
	FromResults bool
}

// Node represents a node in the traceability graph.
//
// Identity content lives in the per-kind field structs; exactly the struct
// matching Kind is non-nil. Metrics is an open map for computed, ephemeral
// annotations (coverage rollups, git flags) and is never part of identity.
// Parent/child adjacency is owned by the Graph's indexes, not by the node.
type Node struct {
	// ID is the unique identifier (e.g. "REQ-p00001", "REQ-p00001-A",
	// "test:pkg/foo_test.go:TestBar").
	ID string

	// Kind is the node type.
	Kind Kind

	// Label is the display text (requirement title, assertion text
	// excerpt, function name).
	Label string

	// Source locates the node in its originating file, if parsed.
	Source *SourceRef

	// Requirement is set when Kind == KindRequirement.
	Requirement *RequirementFields

	// Assertion is set when Kind == KindAssertion.
	Assertion *AssertionFields

	// TestResult is set when Kind == KindTestResult.
	TestResult *TestResultFields

	// Ref is set when Kind is KindCode or KindTest.
	Ref *RefFields

	// Metrics holds computed annotations keyed by name.
	Metrics map[string]any
}

// SetMetric stores a computed annotation on the node.
func (n *Node) SetMetric(key string, value any) {
	if n.Metrics == nil {
		n.Metrics = make(map[string]any)
	}
	n.Metrics[key] = value
}

// GetMetric returns a computed annotation, if present.
func (n *Node) GetMetric(key string) (any, bool) {
	v, ok := n.Metrics[key]
	return v, ok
}

// Rollup returns the coverage rollup attached by ComputeRollup, or nil.
func (n *Node) Rollup() *RollupMetrics {
	v, ok := n.Metrics[MetricRollup]
	if !ok {
		return nil
	}
	m, _ := v.(*RollupMetrics)
	return m
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.Source != nil {
		s := *n.Source
		c.Source = &s
	}
	if n.Requirement != nil {
		r := *n.Requirement
		r.Keywords = append([]string(nil), n.Requirement.Keywords...)
		c.Requirement = &r
	}
	if n.Assertion != nil {
		a := *n.Assertion
		c.Assertion = &a
	}
	if n.TestResult != nil {
		t := *n.TestResult
		c.TestResult = &t
	}
	if n.Ref != nil {
		r := *n.Ref
		c.Ref = &r
	}
	if n.Metrics != nil {
		c.Metrics = make(map[string]any, len(n.Metrics))
		for k, v := range n.Metrics {
			c.Metrics[k] = v
		}
	}
	return &c
}

// Edge represents a directed relationship in the traceability graph.
type Edge struct {
	// From is the ID of the source node.
	From string

	// To is the ID of the target node.
	To string

	// Kind is the relationship type.
	Kind EdgeKind

	// AssertionTargets is the set of assertion labels on the target
	// requirement this edge specifically addresses. Empty means the
	// whole requirement, which has different coverage semantics.
	AssertionTargets []string
}

// Key returns the identity key of the edge within a graph.
func (e *Edge) Key() string {
	return EdgeKey(e.From, e.To, e.Kind)
}

// EdgeKey builds the identity key for an edge.
func EdgeKey(from, to string, kind EdgeKind) string {
	return from + "|" + string(kind) + "|" + to
}

// Clone returns a copy of the edge with its own target slice.
func (e *Edge) Clone() *Edge {
	c := *e
	c.AssertionTargets = append([]string(nil), e.AssertionTargets...)
	return &c
}

// HasAssertionTarget reports whether the edge names the given label.
func (e *Edge) HasAssertionTarget(label string) bool {
	for _, t := range e.AssertionTargets {
		if t == label {
			return true
		}
	}
	return false
}

// BrokenReference records a relationship whose target could not be
// resolved during linking. It is an expected steady-state condition, not
// an error, and is never represented as a dangling edge.
type BrokenReference struct {
	// SourceID is the node that declared the relationship.
	SourceID string

	// TargetRef is the unresolvable reference text.
	TargetRef string

	// Kind is the declared relationship kind.
	Kind EdgeKind
}

// AssertionID builds the node ID of an assertion from its requirement ID
// and label, e.g. "REQ-p00001" + "A" -> "REQ-p00001-A".
func AssertionID(reqID, label string) string {
	return reqID + "-" + label
}

// RefID builds a deterministic node ID for code/test reference nodes.
// Format: {kind}:{file_path}:{func_name}
func RefID(kind Kind, filePath, funcName string) string {
	if funcName == "" {
		return string(kind) + ":" + filePath
	}
	return string(kind) + ":" + filePath + ":" + funcName
}
