package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactHash_StableAndDistinct(t *testing.T) {
	a := Thought{ThoughtNumber: 1, Artifact: "func x() { return 1 }"}
	b := Thought{ThoughtNumber: 2, Artifact: "func x() { return 1 }"}
	c := Thought{ThoughtNumber: 1, Artifact: "func x() { return 2 }"}

	assert.Equal(t, a.ArtifactHash(), b.ArtifactHash(), "hash depends on artifact content only")
	assert.NotEqual(t, a.ArtifactHash(), c.ArtifactHash())
	assert.Len(t, a.ArtifactHash(), 64)
}

func TestSessionConfigDigest_SensitiveToEveryField(t *testing.T) {
	base := DefaultSessionConfig()

	variants := []SessionConfig{}
	v := base
	v.Task = "different task"
	variants = append(variants, v)
	v = base
	v.Scope = ScopeWorkspace
	variants = append(variants, v)
	v = base
	v.Threshold = 90
	variants = append(variants, v)
	v = base
	v.Paths = []string{"internal/queue"}
	variants = append(variants, v)
	v = base
	v.Judges = []string{"nemesis"}
	variants = append(variants, v)
	v = base
	v.ApplyFixes = true
	variants = append(variants, v)
	v = base
	v.MaxCycles = 3
	variants = append(variants, v)
	v = base
	v.Candidates = 2
	variants = append(variants, v)

	baseDigest := base.Digest()
	for i, variant := range variants {
		assert.NotEqual(t, baseDigest, variant.Digest(), "variant %d should change the digest", i)
	}
	assert.Equal(t, baseDigest, DefaultSessionConfig().Digest(), "digest is deterministic")
}

func TestSessionStateClone_Independent(t *testing.T) {
	state := &SessionState{
		ID:     "s1",
		Config: SessionConfig{Paths: []string{"a"}, Judges: []string{"j"}},
		History: []IterationRecord{
			{ThoughtNumber: 1, Score: 50},
		},
	}

	cp := state.Clone()
	cp.History[0].Score = 99
	cp.Config.Paths[0] = "b"

	assert.Equal(t, 50, state.History[0].Score)
	assert.Equal(t, "a", state.Config.Paths[0])
}

func TestRecentScores(t *testing.T) {
	state := &SessionState{History: []IterationRecord{
		{Score: 10}, {Score: 20}, {Score: 30},
	}}

	assert.Equal(t, []int{20, 30}, state.RecentScores(2))
	assert.Equal(t, []int{10, 20, 30}, state.RecentScores(5))
}

func TestPriorityWeights(t *testing.T) {
	require.Greater(t, PriorityHigh.Weight(), PriorityNormal.Weight())
	require.Greater(t, PriorityNormal.Weight(), PriorityLow.Weight())
	assert.Equal(t, PriorityNormal.Weight(), Priority("unknown").Weight(), "unknown priorities behave as normal")
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityMajor.Rank())
	assert.Less(t, SeverityMajor.Rank(), SeverityMinor.Rank())
}

func TestCriticalIssues(t *testing.T) {
	r := &StructuredReview{EvidenceTable: EvidenceTable{Entries: []EvidenceEntry{
		{Issue: "a", Severity: SeverityCritical},
		{Issue: "b", Severity: SeverityMinor},
		{Issue: "c", Severity: SeverityCritical},
	}}}
	assert.Equal(t, []string{"a", "c"}, r.CriticalIssues())
}
