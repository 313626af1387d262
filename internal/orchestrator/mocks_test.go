package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"ganaudit/internal/judge"
	"ganaudit/internal/types"
)

// mockJudge returns configurable scores and findings. scoreFor inspects the
// candidate so individual tests can steer outcomes per thought.
type mockJudge struct {
	calls    atomic.Int32
	scoreFor func(candidate string) int
	findings func(candidate string) []judge.RawFinding
	fail     error
	block    bool // block until the job deadline fires
}

func (m *mockJudge) Name() string { return "mock" }

func (m *mockJudge) Execute(ctx context.Context, req judge.Request) (*judge.RawReview, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.fail != nil {
		return nil, m.fail
	}

	score := 70
	if m.scoreFor != nil {
		score = m.scoreFor(req.Candidate)
	}
	var dims []judge.DimensionScore
	for _, d := range req.Rubric {
		dims = append(dims, judge.DimensionScore{DimensionID: d.ID, Score: score})
	}
	var findings []judge.RawFinding
	if m.findings != nil {
		findings = m.findings(req.Candidate)
	}
	return &judge.RawReview{
		Dimensions: dims,
		Summary:    fmt.Sprintf("mock review at %d", score),
		Findings:   findings,
		JudgeCards: []types.JudgeCard{{Model: "mock"}},
	}, nil
}

// failingContextBuilder always errors, optionally with a partial pack.
type failingContextBuilder struct {
	partial string
}

func (f failingContextBuilder) Build(_ context.Context, _ types.SessionConfig) (string, error) {
	return f.partial, errors.New("repository scan failed")
}

// majorFindings returns two major findings, the shape of a low-quality cold
// review.
func majorFindings(string) []judge.RawFinding {
	return []judge.RawFinding{
		{Issue: "no input validation", Type: "correctness", Severity: types.SeverityMajor, Location: "candidate:1", Proof: "func x(){return 1}"},
		{Issue: "magic constant", Type: "maintainability", Severity: types.SeverityMajor, Location: "candidate:1", Proof: "return 1"},
	}
}
