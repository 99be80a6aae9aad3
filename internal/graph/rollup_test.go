package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rollupFixture wires a requirement with two assertions plus whatever
// evidence each case adds on top.
func rollupFixture() *Graph {
	g := NewGraph()
	g.AddNode(&Node{ID: "REQ-r", Kind: KindRequirement, Label: "Root",
		Requirement: &RequirementFields{Status: "active"}})
	g.AddNode(&Node{ID: "REQ-r-A", Kind: KindAssertion,
		Assertion: &AssertionFields{Label: "A", Index: 0, Text: "first"}})
	g.AddNode(&Node{ID: "REQ-r-B", Kind: KindAssertion,
		Assertion: &AssertionFields{Label: "B", Index: 1, Text: "second"}})
	g.AddChild("REQ-r", "REQ-r-A")
	g.AddChild("REQ-r", "REQ-r-B")
	return g
}

func addPassingTest(g *Graph, testID, reqID string, targets ...string) {
	g.AddNode(&Node{ID: testID, Kind: KindTest, Ref: &RefFields{FuncName: testID}})
	g.AddNode(&Node{ID: testID + ":result:1", Kind: KindTestResult,
		TestResult: &TestResultFields{Status: ResultPassed}})
	g.AddChild(testID, testID+":result:1")
	g.AddEdge(&Edge{From: testID, To: reqID, Kind: EdgeValidates, AssertionTargets: targets})
}

func TestComputeRollup_CoveragePctFormula(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	addPassingTest(g, "t1", "REQ-r", "A")

	m := ComputeRollup(g, RollupOptions{})["REQ-r"]

	require.NotNil(t, m)
	assert.Equal(t, 2, m.TotalAssertions)
	assert.Equal(t, 1, m.CoveredAssertions)
	assert.InDelta(t, 50.0, m.CoveragePct, 0.001)
	assert.Equal(t, 1, m.DirectCovered)
	assert.Equal(t, 1, m.TotalTests)
	assert.Equal(t, 1, m.PassedTests)
	assert.False(t, m.Validated)
}

func TestComputeRollup_WholeRequirementTestIsIndirect(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	addPassingTest(g, "t1", "REQ-r") // no targets

	m := ComputeRollup(g, RollupOptions{})["REQ-r"]

	assert.InDelta(t, 0.0, m.CoveragePct, 0.001)
	assert.InDelta(t, 100.0, m.IndirectCoveragePct, 0.001)
	assert.Equal(t, 0, m.CoveredAssertions)
	assert.Equal(t, 2, m.IndirectCovered)
	assert.False(t, m.Validated)
	assert.True(t, m.ValidatedWithIndirect)
}

func TestComputeRollup_MixedDirectAndExplicit(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	addPassingTest(g, "t1", "REQ-r", "A")
	// A child requirement explicitly claims assertion B, and is itself
	// uncovered. Explicit coverage is presence-based.
	g.AddNode(&Node{ID: "REQ-c", Kind: KindRequirement,
		Requirement: &RequirementFields{Status: "active"}})
	g.AddEdge(&Edge{From: "REQ-c", To: "REQ-r", Kind: EdgeImplements, AssertionTargets: []string{"B"}})

	res := ComputeRollupDetailed(g, RollupOptions{})
	m := res.Metrics["REQ-r"]

	assert.Equal(t, 2, m.CoveredAssertions)
	assert.InDelta(t, 100.0, m.CoveragePct, 0.001)
	assert.Equal(t, 1, m.DirectCovered)
	assert.Equal(t, 1, m.ExplicitCovered)

	contribs := res.Contributions("REQ-r-B")
	require.Len(t, contribs, 1)
	assert.Equal(t, SourceExplicit, contribs[0].Source)
	assert.Equal(t, "REQ-c", contribs[0].SourceID)
	assert.InDelta(t, 0.0, contribs[0].OwnCoverage, 0.001)
}

func TestComputeRollup_InferredSkipsExplicitFromSameChild(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	g.AddNode(&Node{ID: "REQ-c1", Kind: KindRequirement,
		Requirement: &RequirementFields{Status: "active"}})
	g.AddNode(&Node{ID: "REQ-c2", Kind: KindRequirement,
		Requirement: &RequirementFields{Status: "active"}})
	// c1 claims A explicitly; c2 claims the whole requirement.
	g.AddEdge(&Edge{From: "REQ-c1", To: "REQ-r", Kind: EdgeImplements, AssertionTargets: []string{"A"}})
	g.AddEdge(&Edge{From: "REQ-c2", To: "REQ-r", Kind: EdgeRefines})

	res := ComputeRollupDetailed(g, RollupOptions{})

	// A: explicit from c1 plus inferred from c2; B: inferred from c2 only.
	sources := func(id string) map[SourceType]int {
		out := map[SourceType]int{}
		for _, c := range res.Contributions(id) {
			out[c.Source]++
		}
		return out
	}
	assert.Equal(t, map[SourceType]int{SourceExplicit: 1, SourceInferred: 1}, sources("REQ-r-A"))
	assert.Equal(t, map[SourceType]int{SourceInferred: 1}, sources("REQ-r-B"))
	assert.Equal(t, 2, res.Metrics["REQ-r"].CoveredAssertions)
}

func TestComputeRollup_Validation(t *testing.T) {
	t.Parallel()

	t.Run("AllAssertionsValidated", func(t *testing.T) {
		t.Parallel()
		g := rollupFixture()
		addPassingTest(g, "t1", "REQ-r", "A")
		addPassingTest(g, "t2", "REQ-r", "B")

		m := ComputeRollup(g, RollupOptions{})["REQ-r"]
		assert.True(t, m.Validated)
		assert.True(t, m.ValidatedWithIndirect)
		assert.Equal(t, 2, m.ValidatedAssertions)
	})

	t.Run("FailedTestDoesNotValidate", func(t *testing.T) {
		t.Parallel()
		g := rollupFixture()
		addPassingTest(g, "t1", "REQ-r", "A")
		addPassingTest(g, "t2", "REQ-r", "B")
		// A second, failed run of t2 poisons its outcome.
		g.AddNode(&Node{ID: "t2:result:2", Kind: KindTestResult,
			TestResult: &TestResultFields{Status: ResultFailed}})
		g.AddChild("t2", "t2:result:2")

		m := ComputeRollup(g, RollupOptions{})["REQ-r"]
		assert.False(t, m.Validated)
		assert.True(t, m.HasFailures)
		assert.Equal(t, 1, m.FailedTests)
		// Coverage is about evidence presence, not outcomes.
		assert.Equal(t, 2, m.CoveredAssertions)
	})

	t.Run("CodeRefCoversButNeverValidates", func(t *testing.T) {
		t.Parallel()
		g := rollupFixture()
		g.AddNode(&Node{ID: "code:x.go:F", Kind: KindCode, Ref: &RefFields{FuncName: "F"}})
		g.AddEdge(&Edge{From: "code:x.go:F", To: "REQ-r", Kind: EdgeValidates,
			AssertionTargets: []string{"A", "B"}})

		m := ComputeRollup(g, RollupOptions{})["REQ-r"]
		assert.Equal(t, 2, m.CoveredAssertions)
		assert.Equal(t, 1, m.TotalCodeRefs)
		assert.False(t, m.Validated)
	})
}

func TestComputeRollup_ExcludedStatuses(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	g.AddNode(&Node{ID: "REQ-dep", Kind: KindRequirement,
		Requirement: &RequirementFields{Status: "deprecated"}})
	g.AddEdge(&Edge{From: "REQ-dep", To: "REQ-r", Kind: EdgeImplements, AssertionTargets: []string{"A"}})

	m := ComputeRollup(g, RollupOptions{ExcludedStatuses: []string{"deprecated"}})["REQ-r"]
	assert.Equal(t, 0, m.CoveredAssertions)

	m = ComputeRollup(g, RollupOptions{})["REQ-r"]
	assert.Equal(t, 1, m.CoveredAssertions)
}

func TestComputeRollup_StrictModeRollsUpChildAssertions(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	g.AddNode(&Node{ID: "REQ-c", Kind: KindRequirement,
		Requirement: &RequirementFields{Status: "active"}})
	g.AddNode(&Node{ID: "REQ-c-A", Kind: KindAssertion,
		Assertion: &AssertionFields{Label: "A", Index: 0, Text: "child clause"}})
	g.AddChild("REQ-c", "REQ-c-A")
	g.AddEdge(&Edge{From: "REQ-c", To: "REQ-r", Kind: EdgeImplements})
	addPassingTest(g, "t1", "REQ-c", "A")

	lax := ComputeRollup(g, RollupOptions{})["REQ-r"]
	assert.Equal(t, 2, lax.TotalAssertions)
	assert.Equal(t, 1, lax.TotalTests) // test totals always roll up

	strict := ComputeRollup(g, RollupOptions{StrictMode: true})["REQ-r"]
	assert.Equal(t, 3, strict.TotalAssertions)
	assert.Equal(t, 3, strict.CoveredAssertions) // A,B inferred + child A direct
	assert.Equal(t, 1, strict.TotalTests)
}

func TestComputeRollup_Idempotent(t *testing.T) {
	t.Parallel()

	g := buildFixture(t)
	first := ComputeRollup(g, RollupOptions{})
	second := ComputeRollup(g, RollupOptions{})

	require.Equal(t, len(first), len(second))
	for id, m := range first {
		assert.Equal(t, m, second[id], "metrics drifted for %s", id)
	}
}

func TestComputeRollup_CycleTerminates(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	g.AddNode(&Node{ID: "REQ-c", Kind: KindRequirement,
		Requirement: &RequirementFields{Status: "active"}})
	g.AddEdge(&Edge{From: "REQ-c", To: "REQ-r", Kind: EdgeImplements})
	g.AddEdge(&Edge{From: "REQ-r", To: "REQ-c", Kind: EdgeImplements})
	addPassingTest(g, "t1", "REQ-r", "A")

	metrics := ComputeRollup(g, RollupOptions{})

	require.NotNil(t, metrics["REQ-r"])
	require.NotNil(t, metrics["REQ-c"])
	// Direct on A plus inferred on both from the whole-requirement child.
	assert.Equal(t, 2, metrics["REQ-r"].CoveredAssertions)
}

func TestComputeRollup_AttachesNodeMetrics(t *testing.T) {
	t.Parallel()

	g := rollupFixture()
	addPassingTest(g, "t1", "REQ-r", "A")
	ComputeRollup(g, RollupOptions{})

	m := g.GetNode("REQ-r").Rollup()
	require.NotNil(t, m)
	assert.InDelta(t, 50.0, m.CoveragePct, 0.001)
	require.NotNil(t, g.GetNode("REQ-r-A").Rollup())
	assert.Equal(t, 1, g.GetNode("REQ-r-A").Rollup().CoveredAssertions)
}
