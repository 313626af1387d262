package output

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/config"
	"ganaudit/internal/judge"
	"ganaudit/internal/scoring"
	"ganaudit/internal/types"
)

func newBuilder() *Builder {
	return New(config.DefaultConfig().Output)
}

func scoreResult(score int, verdict types.Verdict) scoring.Result {
	return scoring.Result{
		OverallScore: score,
		Verdict:      verdict,
		Dimensions: []types.DimensionScore{
			{Name: "Correctness & Completeness", Score: score},
			{Name: "Security", Score: score},
		},
	}
}

func baseInput() Input {
	return Input{
		Raw: &judge.RawReview{
			Summary: "two findings",
			Findings: []judge.RawFinding{
				{Issue: "swallowed error", Type: "swallowed-error", Severity: types.SeverityMajor, Location: "candidate:3", Proof: "_ = f()", FixSummary: "handle it"},
				{Issue: "hardcoded secret", Type: "hardcoded-secret", Severity: types.SeverityCritical, Location: "candidate:1", Proof: `key="x"`, FixSummary: "use env"},
			},
			JudgeCards: []types.JudgeCard{{Model: "heuristic"}},
		},
		Score:      scoreResult(62, types.VerdictRevise),
		Session:    types.DefaultSessionConfig(),
		Artifact:   "func x() { _ = f() }",
		Iterations: 1,
	}
}

func TestBuild_ComposesAllSections(t *testing.T) {
	review := newBuilder().Build(context.Background(), baseInput())

	assert.Equal(t, 62, review.OverallScore)
	assert.Equal(t, types.VerdictRevise, review.Verdict)
	assert.Equal(t, "two findings", review.Summary)
	assert.Equal(t, 1, review.Iterations)

	assert.Equal(t, "no-ship", review.ExecutiveVerdict.Decision)
	assert.GreaterOrEqual(t, len(review.ExecutiveVerdict.Summary), 3)
	assert.LessOrEqual(t, len(review.ExecutiveVerdict.Summary), 6)

	require.Len(t, review.EvidenceTable.Entries, 2)
	assert.NotEmpty(t, review.ReproductionGuide.ReproductionSteps)
	assert.NotEmpty(t, review.FollowUpTasks.Tasks)
	assert.NotZero(t, review.QualityMetrics.Completeness)
	assert.NotEmpty(t, review.Metadata.Version)
}

func TestBuild_Deterministic(t *testing.T) {
	b := newBuilder()
	r1 := b.Build(context.Background(), baseInput())
	r2 := b.Build(context.Background(), baseInput())

	r1.Metadata.Timestamp = r2.Metadata.Timestamp
	assert.Equal(t, r1.EvidenceTable, r2.EvidenceTable)
	assert.Equal(t, r1.FollowUpTasks, r2.FollowUpTasks)
	assert.Equal(t, r1.ExecutiveVerdict, r2.ExecutiveVerdict)
}

func TestBuild_SequentialMatchesParallel(t *testing.T) {
	cfg := config.DefaultConfig().Output
	cfg.Parallel = false
	seq := New(cfg).Build(context.Background(), baseInput())
	par := newBuilder().Build(context.Background(), baseInput())

	assert.Equal(t, seq.EvidenceTable, par.EvidenceTable)
	assert.Equal(t, seq.ExecutiveVerdict, par.ExecutiveVerdict)
	assert.Equal(t, seq.FollowUpTasks, par.FollowUpTasks)
}

func TestEvidence_DedupeSortCap(t *testing.T) {
	b := newBuilder()
	in := baseInput()
	in.Raw.Findings = []judge.RawFinding{
		{Issue: "minor style", Type: "maintainability", Severity: types.SeverityMinor, Location: "a:1"},
		{Issue: "dup", Type: "t", Severity: types.SeverityMajor, Location: "a:2"},
		{Issue: "dup", Type: "t", Severity: types.SeverityMajor, Location: "a:2"}, // duplicate
		{Issue: "critical bug", Type: "correctness", Severity: types.SeverityCritical, Location: "a:3"},
	}
	in.StepResults = []judge.StepResult{{
		Step:     judge.StepStatic,
		Evidence: []judge.RawFinding{{Issue: "dup", Type: "t", Severity: types.SeverityMajor, Location: "a:2"}},
	}}

	table, err := b.buildEvidence(in)
	require.NoError(t, err)
	require.Len(t, table.Entries, 3, "duplicates collapse across sources")

	assert.Equal(t, types.SeverityCritical, table.Entries[0].Severity)
	assert.Equal(t, types.SeverityMajor, table.Entries[1].Severity)
	assert.Equal(t, types.SeverityMinor, table.Entries[2].Severity)
	assert.Equal(t, "EV-001", table.Entries[0].ID)
	assert.Contains(t, table.Summary, "1 critical")
}

func TestEvidence_CapRespected(t *testing.T) {
	cfg := config.DefaultConfig().Output
	cfg.MaxEvidence = 2
	b := New(cfg)
	in := baseInput()
	in.Raw.Findings = []judge.RawFinding{
		{Issue: "a", Type: "t", Severity: types.SeverityMinor, Location: "1"},
		{Issue: "b", Type: "t", Severity: types.SeverityMinor, Location: "2"},
		{Issue: "c", Type: "t", Severity: types.SeverityMinor, Location: "3"},
	}

	table, err := b.buildEvidence(in)
	require.NoError(t, err)
	assert.Len(t, table.Entries, 2)
	assert.Contains(t, table.Summary, "truncated")
}

func TestDiff_ParseValidateAndTestFirst(t *testing.T) {
	b := newBuilder()
	in := baseInput()
	in.Raw.ProposedDiff = strings.Join([]string{
		"--- a/server/handler.go",
		"+++ b/server/handler.go",
		"@@ -1,3 +1,4 @@",
		" func h() {",
		"+\tvalidate()",
		" }",
		"--- a/server/handler_test.go",
		"+++ b/server/handler_test.go",
		"@@ -1,2 +1,5 @@",
		"+func TestH(t *testing.T) {",
		"+\th()",
		"+}",
	}, "\n")

	diffs, err := b.buildDiffs(in)
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	d := diffs[0]
	require.Len(t, d.FileChanges, 2)
	assert.True(t, d.FileChanges[0].IsTestFile, "test files ordered first")
	assert.Equal(t, "server/handler_test.go", d.FileChanges[0].Path)
	assert.Equal(t, 3, d.FileChanges[0].Additions)
	assert.True(t, d.Validation.Valid)
	assert.NotEmpty(t, d.VerificationCommands)
}

func TestDiff_LimitsViolated(t *testing.T) {
	cfg := config.DefaultConfig().Output
	cfg.MaxLinesPerDiff = 2
	b := New(cfg)
	in := baseInput()
	in.Raw.ProposedDiff = "--- a/x.go\n+++ b/x.go\n@@ -1,3 +1,3 @@\n+a\n+b\n+c\n"

	diffs, err := b.buildDiffs(in)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.False(t, diffs[0].Validation.Valid)
	assert.NotEmpty(t, diffs[0].Validation.Violations)
}

func TestDiff_EmptyYieldsNone(t *testing.T) {
	diffs, err := newBuilder().buildDiffs(baseInput())
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestTraceability_Statuses(t *testing.T) {
	b := newBuilder()
	in := baseInput()
	in.AcceptanceCriteria = []string{
		"the handler validates incoming payload sizes",
		"completely unrelated quantum blockchain criterion",
	}
	in.Artifact = "// AC-1\nfunc handler() { validates(payload, sizes) }\nfunc TestHandler(t *testing.T) { assert(true) }"

	matrix, err := b.buildTraceability(in)
	require.NoError(t, err)
	require.Len(t, matrix.ACMappings, 2)

	assert.Equal(t, types.CoverageFull, matrix.ACMappings[0].Status)
	assert.GreaterOrEqual(t, matrix.ACMappings[0].Confidence, 60)
	assert.Equal(t, types.CoverageNone, matrix.ACMappings[1].Status)
	require.NotEmpty(t, matrix.UnmetACs)
	assert.Equal(t, "AC-2", matrix.UnmetACs[0].ACID)
	assert.Contains(t, matrix.CoverageSummary, "1/2")
}

func TestExtractACs(t *testing.T) {
	task := "harden the parser\n- reject oversized frames\n- AC-2: bound memory usage\nignored prose line\n1. numbered requirement"
	acs := ExtractACs(task)
	assert.Len(t, acs, 3)
}

func TestTasks_FromEvidenceAndTrace(t *testing.T) {
	b := newBuilder()
	in := baseInput()

	evidence, err := b.buildEvidence(in)
	require.NoError(t, err)
	trace := types.TraceabilityMatrix{
		UnmetACs:     []types.UnmetAC{{ACID: "AC-1", Reason: "uncovered", Priority: "high"}},
		MissingTests: []types.MissingTest{{ACID: "AC-2", Suggested: "add a test for AC-2", Priority: "high"}},
	}

	list := b.buildTasks(in, evidence, trace)
	require.Len(t, list.Tasks, 4)

	// severity_first: the critical-finding task leads.
	assert.Equal(t, 1, list.Tasks[0].Priority)
	assert.Equal(t, "security", list.Tasks[0].Category)
	assert.NotZero(t, list.Tasks[0].EffortMinutes)
	assert.Contains(t, list.Summary, "1 blocking")

	// Priorities never decrease down the list.
	for i := 1; i < len(list.Tasks); i++ {
		assert.GreaterOrEqual(t, list.Tasks[i].Priority, list.Tasks[i-1].Priority)
	}
}

func TestQualityMetrics_DegradationLowersAccuracy(t *testing.T) {
	b := newBuilder()
	in := baseInput()
	review := b.Build(context.Background(), in)
	clean := review.QualityMetrics.Accuracy

	review.AddWarning(types.WarnOutputDefaulted, "x", "output")
	degraded := b.buildQualityMetrics(review, in)
	assert.Less(t, degraded.Accuracy, clean)
}
