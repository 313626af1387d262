package completion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/config"
	"ganaudit/internal/stagnation"
	"ganaudit/internal/types"
)

func newEvaluator() *Evaluator {
	return New(config.DefaultConfig().Completion)
}

func TestTierBoundaries(t *testing.T) {
	e := newEvaluator()

	cases := []struct {
		name     string
		score    int
		loop     int
		complete bool
		reason   string
	}{
		{"tier1 exact", 95, 10, true, ReasonScore},
		{"tier1 miss by one", 94, 10, false, ""},
		{"tier1 early", 97, 3, true, ReasonScore},
		{"tier2 exact", 90, 15, true, ReasonScore},
		{"tier2 too early", 90, 14, false, ""},
		{"tier3 exact", 85, 20, true, ReasonScore},
		{"tier3 too early", 85, 19, false, ""},
		{"hard stop", 40, 25, true, ReasonMaxLoops},
		{"hard stop past", 40, 30, true, ReasonMaxLoops},
		{"below everything", 80, 24, false, ""},
		{"loop zero never completes", 100, 0, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := e.Evaluate(tc.score, tc.loop, nil)
			assert.Equal(t, tc.complete, c.IsComplete)
			if tc.complete {
				assert.Equal(t, tc.reason, c.Reason)
			}
			assert.Equal(t, !tc.complete, c.NextThoughtNeeded)
			assert.NotEmpty(t, c.Message)
		})
	}
}

func TestStagnationForcesCompletion(t *testing.T) {
	e := newEvaluator()
	rep := &stagnation.Report{Detected: true, Message: "iterations are 97% similar"}

	c := e.Evaluate(70, 12, rep)
	require.True(t, c.IsComplete)
	assert.Equal(t, ReasonStagnation, c.Reason)
	assert.Contains(t, c.Message, "similar")
	assert.False(t, c.NextThoughtNeeded)
}

func TestScoreBeatsStagnation(t *testing.T) {
	e := newEvaluator()
	rep := &stagnation.Report{Detected: true, Message: "stuck"}

	c := e.Evaluate(96, 12, rep)
	assert.Equal(t, ReasonScore, c.Reason)
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := newEvaluator()
	c1 := e.Evaluate(88, 21, nil)
	c2 := e.Evaluate(88, 21, nil)
	assert.Equal(t, c1, c2)
}

func TestBuildTermination(t *testing.T) {
	critical := &types.StructuredReview{EvidenceTable: types.EvidenceTable{Entries: []types.EvidenceEntry{
		{Issue: "sql injection in handler", Severity: types.SeverityCritical},
	}}}

	history := []types.IterationRecord{
		{Score: 60, Timestamp: time.Now()},
		{Score: 70, Timestamp: time.Now()},
		{Score: 65, Timestamp: time.Now()}, // decline
		{Score: 72, Review: critical, Timestamp: time.Now()},
	}

	tr := BuildTermination(history, ReasonMaxLoops)
	require.NotNil(t, tr)
	assert.Equal(t, ReasonMaxLoops, tr.Reason)
	assert.Equal(t, 4, tr.TotalLoops)
	assert.Equal(t, 72, tr.FinalScore)
	assert.InDelta(t, 1.0/3.0, tr.FailureRate, 0.001)
	assert.Contains(t, tr.CriticalIssues, "sql injection in handler")
}

func TestBuildTermination_Empty(t *testing.T) {
	tr := BuildTermination(nil, ReasonStagnation)
	assert.Equal(t, 0, tr.TotalLoops)
	assert.Equal(t, 0.0, tr.FailureRate)
}
