package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

func TestResultsParser_Parse(t *testing.T) {
	t.Parallel()

	report := `[
		{"test": "TestLogin", "status": "passed", "duration_ms": 12.5},
		{"test": "TestExpiry", "status": "failed", "duration_ms": 3.1, "message": "session still valid"},
		{"test": "TestMigration", "status": "skip"},
		{"test": "", "status": "passed"},
		{"test": "TestOdd", "status": "flaky"}
	]`

	records, err := NewResultsParser().Parse("reports/unit.results.json", []byte(report))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, graph.ContentTestResult, records[0].Type)
	assert.Equal(t, "TestLogin", records[0].Result.TestID)
	assert.Equal(t, graph.ResultPassed, records[0].Result.Status)
	assert.InDelta(t, 12.5, records[0].Result.DurationMS, 0.001)

	assert.Equal(t, graph.ResultFailed, records[1].Result.Status)
	assert.Equal(t, "session still valid", records[1].Result.Message)

	// Alternate status spellings normalize.
	assert.Equal(t, graph.ResultSkipped, records[2].Result.Status)
}

func TestResultsParser_BadJSON(t *testing.T) {
	t.Parallel()

	_, err := NewResultsParser().Parse("r.results.json", []byte("{not json"))
	assert.Error(t, err)
}

func TestResultsParser_EmptyArray(t *testing.T) {
	t.Parallel()

	records, err := NewResultsParser().Parse("r.results.json", []byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, records)
}
