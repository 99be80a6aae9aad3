package graph

// ContentType classifies a parsed artifact record.
type ContentType string

const (
	ContentRequirement ContentType = "requirement"
	ContentJourney     ContentType = "journey"
	ContentCodeRef     ContentType = "code_ref"
	ContentTestRef     ContentType = "test_ref"
	ContentTestResult  ContentType = "test_result"
	ContentRemainder   ContentType = "remainder"
)

// SourceContext carries file-level context for a parsed record.
type SourceContext struct {
	// File is the path of the originating file.
	File string
}

// LinkData is a declared relationship awaiting resolution.
type LinkData struct {
	// TargetRef is the raw reference text (may be a full ID, an ID
	// missing its prefix, an ID suffix, or an assertion reference).
	TargetRef string

	// Kind is the declared relationship kind.
	Kind EdgeKind
}

// AssertionData is one parsed assertion clause.
type AssertionData struct {
	Label string
	Text  string
}

// RequirementData is the parsed content of a requirement block.
type RequirementData struct {
	ID         string
	Title      string
	Level      string
	Status     string
	Body       string
	Keywords   []string
	Assertions []AssertionData
	Links      []LinkData
}

// JourneyData is the parsed content of a user journey block.
type JourneyData struct {
	ID    string
	Title string
	Body  string
}

// RefData is the parsed content of a code or test traceability marker.
type RefData struct {
	FuncName  string
	ClassName string
	Targets   []string
}

// TestResultData is one parsed test-run record.
type TestResultData struct {
	// TestID names the test the result belongs to. It may reference a
	// test not yet seen; the builder auto-creates a minimal Test node
	// so ingestion order across file types is irrelevant.
	TestID     string
	Status     ResultStatus
	DurationMS float64
	Message    string
}

// ParsedContent is the ingestion contract: one structured record emitted
// by the external parsers. Exactly the data field matching Type is set.
type ParsedContent struct {
	Type      ContentType
	StartLine int
	EndLine   int
	Raw       string

	Requirement *RequirementData
	Journey     *JourneyData
	Ref         *RefData
	Result      *TestResultData

	Source SourceContext
}
