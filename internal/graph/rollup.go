package graph

// MetricRollup is the node metric key under which ComputeRollup attaches
// its per-node *RollupMetrics.
const MetricRollup = "rollup"

// SourceType classifies one piece of coverage evidence.
type SourceType string

const (
	// SourceDirect is a test or code reference naming a specific assertion.
	SourceDirect SourceType = "direct"

	// SourceExplicit is a child requirement naming specific assertions.
	SourceExplicit SourceType = "explicit"

	// SourceInferred is a whole-requirement child requirement, spread
	// over every assertion it does not already cover explicitly.
	SourceInferred SourceType = "inferred"

	// SourceIndirect is a whole-requirement test or code reference.
	// It never counts toward strict coverage, only the indirect ratio.
	SourceIndirect SourceType = "indirect"
)

// CoverageContribution is one piece of evidence that an assertion is
// satisfied.
type CoverageContribution struct {
	// SourceID is the contributing node (test, code ref, or child
	// requirement).
	SourceID string

	// Source is the evidence kind.
	Source SourceType

	// AssertionLabel is the targeted assertion label, empty for
	// whole-requirement evidence spread over all assertions.
	AssertionLabel string

	// OwnCoverage is the contributing child requirement's own direct
	// coverage ratio at contribution time (explicit/inferred only).
	OwnCoverage float64
}

// RollupMetrics is the per-node aggregate computed by ComputeRollup.
type RollupMetrics struct {
	TotalAssertions     int
	CoveredAssertions   int
	ValidatedAssertions int

	// Per-source covered counts.
	DirectCovered   int
	ExplicitCovered int
	InferredCovered int
	IndirectCovered int

	// CoveredWithIndirect counts assertions covered by any source
	// including indirect evidence.
	CoveredWithIndirect int

	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int

	TotalCodeRefs int

	CoveragePct         float64
	IndirectCoveragePct float64

	Validated             bool
	ValidatedWithIndirect bool
	HasFailures           bool
}

// RollupOptions controls rollup aggregation.
type RollupOptions struct {
	// StrictMode rolls child requirements' assertion counts into their
	// parents. Test and code totals are always rolled up.
	StrictMode bool

	// ExcludedStatuses lists requirement statuses that never contribute
	// to any parent.
	ExcludedStatuses []string
}

// ComputeRollup computes per-node coverage metrics bottom-up and attaches
// them to each requirement and assertion node under MetricRollup. The
// computation is idempotent: re-running it without mutation yields
// identical metrics.
//
// Order matters: own coverage from direct evidence first, then direct
// and explicit contribution lists, then inferred propagation (skipping
// assertions the same child covers explicitly), then the post-order
// metric rollup.
func ComputeRollup(g *Graph, opts RollupOptions) map[string]*RollupMetrics {
	return ComputeRollupDetailed(g, opts).Metrics
}

// RollupResult exposes the detailed evidence of a rollup run.
type RollupResult struct {
	Metrics  map[string]*RollupMetrics
	contribs map[string][]CoverageContribution
}

// Contributions returns the coverage evidence recorded for an assertion
// during this rollup run, in contribution order.
func (r *RollupResult) Contributions(assertionID string) []CoverageContribution {
	return r.contribs[assertionID]
}

// ComputeRollupDetailed runs the rollup and retains the per-assertion
// contribution lists for reporting.
func ComputeRollupDetailed(g *Graph, opts RollupOptions) *RollupResult {
	r := &rollupRun{
		g:        g,
		opts:     opts,
		excluded: make(map[string]bool, len(opts.ExcludedStatuses)),
		own:      make(map[string]float64),
		contribs: make(map[string][]CoverageContribution),
		metrics:  make(map[string]*RollupMetrics),
		state:    make(map[string]int),
	}
	for _, s := range opts.ExcludedStatuses {
		r.excluded[s] = true
	}

	reqs := g.FindByKind(KindRequirement)

	// (1) own coverage, direct evidence only.
	for _, req := range reqs {
		r.own[req.ID] = r.ownCoverage(req)
	}
	// (2) direct and explicit contributions.
	for _, req := range reqs {
		r.collectDirect(req)
		r.collectExplicit(req)
	}
	// (3) inferred contributions from whole-requirement children.
	for _, req := range reqs {
		r.collectInferred(req)
	}
	// (4) post-order rollup.
	for _, req := range reqs {
		r.visit(req)
	}

	for id, m := range r.metrics {
		if n := g.GetNode(id); n != nil {
			n.SetMetric(MetricRollup, m)
		}
	}
	return &RollupResult{Metrics: r.metrics, contribs: r.contribs}
}

const (
	stateUnvisited = 0
	stateVisiting  = 1
	stateDone      = 2
)

type rollupRun struct {
	g        *Graph
	opts     RollupOptions
	excluded map[string]bool
	own      map[string]float64
	contribs map[string][]CoverageContribution
	metrics  map[string]*RollupMetrics
	state    map[string]int
}

// assertionsOf returns a requirement's own assertions in index order.
func (r *rollupRun) assertionsOf(req *Node) []*Node {
	return r.g.AssertionsOf(req.ID)
}

// evidenceEdges returns validates edges from test/code nodes onto req.
func (r *rollupRun) evidenceEdges(req *Node) []*Edge {
	var result []*Edge
	for _, e := range r.g.Incoming(req.ID, EdgeValidates) {
		if from := r.g.GetNode(e.From); from != nil && (from.Kind == KindTest || from.Kind == KindCode) {
			result = append(result, e)
		}
	}
	return result
}

// childEdges returns implements/refines edges from non-excluded child
// requirements onto req.
func (r *rollupRun) childEdges(req *Node) []*Edge {
	var result []*Edge
	for _, e := range r.g.Incoming(req.ID, EdgeImplements, EdgeRefines) {
		from := r.g.GetNode(e.From)
		if from == nil || from.Kind != KindRequirement {
			continue
		}
		if from.Requirement != nil && r.excluded[from.Requirement.Status] {
			continue
		}
		result = append(result, e)
	}
	return result
}

// ownCoverage computes a requirement's coverage from its own direct
// contributions only.
func (r *rollupRun) ownCoverage(req *Node) float64 {
	assertions := r.assertionsOf(req)
	if len(assertions) == 0 {
		return 0
	}
	covered := make(map[string]bool)
	for _, e := range r.evidenceEdges(req) {
		for _, label := range e.AssertionTargets {
			covered[label] = true
		}
	}
	count := 0
	for _, a := range assertions {
		if covered[a.Assertion.Label] {
			count++
		}
	}
	return float64(count) / float64(len(assertions))
}

func (r *rollupRun) collectDirect(req *Node) {
	assertions := r.assertionsOf(req)
	byLabel := make(map[string]*Node, len(assertions))
	for _, a := range assertions {
		byLabel[a.Assertion.Label] = a
	}
	for _, e := range r.evidenceEdges(req) {
		if len(e.AssertionTargets) == 0 {
			// Whole-requirement evidence: indirect on every assertion.
			for _, a := range assertions {
				r.add(a.ID, CoverageContribution{SourceID: e.From, Source: SourceIndirect})
			}
			continue
		}
		for _, label := range e.AssertionTargets {
			if a, ok := byLabel[label]; ok {
				r.add(a.ID, CoverageContribution{SourceID: e.From, Source: SourceDirect, AssertionLabel: label})
			}
		}
	}
}

func (r *rollupRun) collectExplicit(req *Node) {
	assertions := r.assertionsOf(req)
	byLabel := make(map[string]*Node, len(assertions))
	for _, a := range assertions {
		byLabel[a.Assertion.Label] = a
	}
	for _, e := range r.childEdges(req) {
		for _, label := range e.AssertionTargets {
			if a, ok := byLabel[label]; ok {
				r.add(a.ID, CoverageContribution{
					SourceID:       e.From,
					Source:         SourceExplicit,
					AssertionLabel: label,
					OwnCoverage:    r.own[e.From],
				})
			}
		}
	}
}

func (r *rollupRun) collectInferred(req *Node) {
	assertions := r.assertionsOf(req)
	for _, e := range r.childEdges(req) {
		if len(e.AssertionTargets) > 0 {
			continue
		}
		for _, a := range assertions {
			if r.hasExplicitFrom(a.ID, e.From) {
				continue
			}
			r.add(a.ID, CoverageContribution{
				SourceID:    e.From,
				Source:      SourceInferred,
				OwnCoverage: r.own[e.From],
			})
		}
	}
}

func (r *rollupRun) hasExplicitFrom(assertionID, sourceID string) bool {
	for _, c := range r.contribs[assertionID] {
		if c.Source == SourceExplicit && c.SourceID == sourceID {
			return true
		}
	}
	return false
}

func (r *rollupRun) add(assertionID string, c CoverageContribution) {
	r.contribs[assertionID] = append(r.contribs[assertionID], c)
}

// testOutcome summarizes the recorded results of a test node.
func (r *rollupRun) testOutcome(testID string) (passed, failed, skipped bool) {
	for _, c := range r.g.Children(testID) {
		if c.Kind != KindTestResult || c.TestResult == nil {
			continue
		}
		switch c.TestResult.Status {
		case ResultPassed:
			passed = true
		case ResultFailed:
			failed = true
		case ResultSkipped:
			skipped = true
		}
	}
	return passed, failed, skipped
}

// assertionMetrics reduces an assertion's contribution list to booleans.
// Coverage presence is OR across sources; validation requires a direct
// contribution from a test with a passed result, independent of coverage.
func (r *rollupRun) assertionMetrics(a *Node) *RollupMetrics {
	m := &RollupMetrics{TotalAssertions: 1}
	var direct, explicit, inferred, indirect bool
	var validated, validatedIndirect bool
	for _, c := range r.contribs[a.ID] {
		switch c.Source {
		case SourceDirect:
			direct = true
		case SourceExplicit:
			explicit = true
		case SourceInferred:
			inferred = true
		case SourceIndirect:
			indirect = true
		}
		if c.Source == SourceDirect || c.Source == SourceIndirect {
			if src := r.g.GetNode(c.SourceID); src != nil && src.Kind == KindTest {
				passed, failed, _ := r.testOutcome(src.ID)
				if passed && !failed {
					if c.Source == SourceDirect {
						validated = true
					}
					validatedIndirect = true
				}
			}
		}
	}
	covered := direct || explicit || inferred
	if covered {
		m.CoveredAssertions = 1
		m.CoveragePct = 100
	}
	if covered || indirect {
		m.CoveredWithIndirect = 1
		m.IndirectCoveragePct = 100
	}
	if direct {
		m.DirectCovered = 1
	}
	if explicit {
		m.ExplicitCovered = 1
	}
	if inferred {
		m.InferredCovered = 1
	}
	if indirect {
		m.IndirectCovered = 1
	}
	m.Validated = validated
	m.ValidatedWithIndirect = validated || validatedIndirect
	if m.Validated {
		m.ValidatedAssertions = 1
	}
	return m
}

// visit computes a requirement's metrics post-order, cycle-safe: a
// requirement re-entered while still on the stack contributes nothing.
func (r *rollupRun) visit(req *Node) *RollupMetrics {
	switch r.state[req.ID] {
	case stateDone:
		return r.metrics[req.ID]
	case stateVisiting:
		return &RollupMetrics{}
	}
	r.state[req.ID] = stateVisiting

	m := &RollupMetrics{}
	assertions := r.assertionsOf(req)
	validatedAllIndirect := len(assertions) > 0
	for _, a := range assertions {
		am := r.assertionMetrics(a)
		r.metrics[a.ID] = am
		m.TotalAssertions++
		m.CoveredAssertions += am.CoveredAssertions
		m.CoveredWithIndirect += am.CoveredWithIndirect
		m.DirectCovered += am.DirectCovered
		m.ExplicitCovered += am.ExplicitCovered
		m.InferredCovered += am.InferredCovered
		m.IndirectCovered += am.IndirectCovered
		m.ValidatedAssertions += am.ValidatedAssertions
		if !am.ValidatedWithIndirect {
			validatedAllIndirect = false
		}
	}

	// Own test and code evidence.
	seenTests := make(map[string]bool)
	seenCode := make(map[string]bool)
	for _, e := range r.evidenceEdges(req) {
		from := r.g.GetNode(e.From)
		switch from.Kind {
		case KindTest:
			if seenTests[from.ID] {
				continue
			}
			seenTests[from.ID] = true
			m.TotalTests++
			passed, failed, skipped := r.testOutcome(from.ID)
			switch {
			case failed:
				m.FailedTests++
			case passed:
				m.PassedTests++
			case skipped:
				m.SkippedTests++
			}
		case KindCode:
			if seenCode[from.ID] {
				continue
			}
			seenCode[from.ID] = true
			m.TotalCodeRefs++
		}
	}
	m.HasFailures = m.FailedTests > 0

	// Child requirement rollups: test/code totals always roll up;
	// assertion counts only in strict mode.
	for _, e := range r.childEdges(req) {
		child := r.g.GetNode(e.From)
		cm := r.visit(child)
		m.TotalTests += cm.TotalTests
		m.PassedTests += cm.PassedTests
		m.FailedTests += cm.FailedTests
		m.SkippedTests += cm.SkippedTests
		m.TotalCodeRefs += cm.TotalCodeRefs
		m.HasFailures = m.HasFailures || cm.HasFailures
		if r.opts.StrictMode {
			m.TotalAssertions += cm.TotalAssertions
			m.CoveredAssertions += cm.CoveredAssertions
			m.CoveredWithIndirect += cm.CoveredWithIndirect
			m.DirectCovered += cm.DirectCovered
			m.ExplicitCovered += cm.ExplicitCovered
			m.InferredCovered += cm.InferredCovered
			m.IndirectCovered += cm.IndirectCovered
			m.ValidatedAssertions += cm.ValidatedAssertions
			if !cm.ValidatedWithIndirect {
				validatedAllIndirect = false
			}
		}
	}

	if m.TotalAssertions > 0 {
		m.CoveragePct = float64(m.CoveredAssertions) / float64(m.TotalAssertions) * 100
		m.IndirectCoveragePct = float64(m.CoveredWithIndirect) / float64(m.TotalAssertions) * 100
	}
	m.Validated = m.TotalAssertions > 0 && m.ValidatedAssertions == m.TotalAssertions
	m.ValidatedWithIndirect = m.Validated || (m.TotalAssertions > 0 && validatedAllIndirect)

	r.metrics[req.ID] = m
	r.state[req.ID] = stateDone
	return m
}
