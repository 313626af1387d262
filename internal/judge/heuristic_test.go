package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/scoring"
	"ganaudit/internal/types"
)

func TestHeuristicJudge_Deterministic(t *testing.T) {
	j := NewHeuristicJudge()
	req := Request{
		Task:      "audit",
		Candidate: "func x() {\n\tpanic(\"boom\")\n}\n// TODO fix\n",
		Rubric:    scoring.DefaultRubric(),
	}

	r1, err := j.Execute(context.Background(), req)
	require.NoError(t, err)
	r2, err := j.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestHeuristicJudge_FlagsSecrets(t *testing.T) {
	j := NewHeuristicJudge()
	req := Request{
		Candidate: `api_key = "supersecretvalue123"`,
		Rubric:    scoring.DefaultRubric(),
	}

	raw, err := j.Execute(context.Background(), req)
	require.NoError(t, err)

	found := false
	for _, f := range raw.Findings {
		if f.Type == "hardcoded-secret" {
			found = true
			assert.Equal(t, types.SeverityCritical, f.Severity)
			assert.NotEmpty(t, f.Location)
			assert.NotEmpty(t, f.FixSummary)
		}
	}
	assert.True(t, found)

	for _, d := range raw.Dimensions {
		if d.DimensionID == "security" {
			assert.Less(t, d.Score, 70)
		}
	}
}

func TestHeuristicJudge_CleanCodeScoresWell(t *testing.T) {
	j := NewHeuristicJudge()
	req := Request{
		Candidate: "// Add returns the sum of a and b.\nfunc Add(a, b int) int {\n\treturn a + b\n}\n\nfunc TestAdd(t *testing.T) {\n\tif Add(1, 2) != 3 {\n\t\tt.Fatal(\"bad sum\")\n\t}\n}\n",
		Rubric:    scoring.DefaultRubric(),
	}

	raw, err := j.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, raw.Findings)
	for _, d := range raw.Dimensions {
		assert.GreaterOrEqual(t, d.Score, 70, "dimension %s", d.DimensionID)
	}
	require.Len(t, raw.JudgeCards, 1)
	assert.Equal(t, "heuristic", raw.JudgeCards[0].Model)
}

func TestHeuristicJudge_RespectsCancellation(t *testing.T) {
	j := NewHeuristicJudge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := j.Execute(ctx, Request{Candidate: "x"})
	assert.Error(t, err)
}

func TestFallbackReview_Shape(t *testing.T) {
	cause := errors.New("judge crashed")
	r := FallbackReview("s1", 4, cause)

	assert.Equal(t, 50, r.OverallScore)
	assert.Equal(t, types.VerdictRevise, r.Verdict)
	assert.Equal(t, 4, r.Iterations)
	require.Len(t, r.JudgeCards, 1)
	assert.Equal(t, "fallback", r.JudgeCards[0].Model)
	assert.Equal(t, "judge crashed", r.JudgeCards[0].Notes)
	assert.Contains(t, r.Summary, "degraded")
	assert.Empty(t, r.ProposedDiffs)
	assert.Empty(t, r.EvidenceTable.Entries)

	// Never silent: the degradation is marked in metadata.
	require.NotEmpty(t, r.Metadata.Warnings)
	assert.Equal(t, types.WarnFallbackReview, r.Metadata.Warnings[0].Code)
}

// flakyJudge fails a fixed number of times before succeeding.
type flakyJudge struct {
	failures int
	calls    int
}

func (f *flakyJudge) Name() string { return "flaky" }

func (f *flakyJudge) Execute(ctx context.Context, req Request) (*RawReview, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("boom")
	}
	return &RawReview{Summary: "ok"}, nil
}

func TestBreaker_PassesThrough(t *testing.T) {
	b := NewBreaker(&flakyJudge{})
	raw, err := b.Execute(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", raw.Summary)
	assert.Equal(t, "flaky", b.Name())
}

func TestBreaker_OpensAfterSustainedFailures(t *testing.T) {
	b := NewBreaker(&flakyJudge{failures: 1000})

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = b.Execute(context.Background(), Request{})
	}
	require.Error(t, lastErr)
	assert.ErrorIs(t, lastErr, types.ErrJudgeUnavailable, "circuit opens and fails fast")
}
