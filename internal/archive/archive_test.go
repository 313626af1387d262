package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/types"
)

func completedState(id string, reason string, score int) *types.SessionState {
	now := time.Now().UTC()
	return &types.SessionState{
		ID:               id,
		Config:           types.DefaultSessionConfig(),
		IsComplete:       true,
		CompletionReason: reason,
		History: []types.IterationRecord{
			{ThoughtNumber: 1, Score: 60, Verdict: types.VerdictRevise, Timestamp: now},
			{ThoughtNumber: 2, Score: score, Verdict: types.VerdictPass, Timestamp: now},
		},
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now,
	}
}

func openArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndList(t *testing.T) {
	a := openArchive(t)

	require.NoError(t, a.RecordCompleted(completedState("s1", "score", 96)))
	require.NoError(t, a.RecordCompleted(completedState("s2", "maxLoops", 78)))

	records, err := a.List("", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]Record{}
	for _, r := range records {
		byID[r.ID] = r
	}
	assert.Equal(t, 96, byID["s1"].FinalScore)
	assert.Equal(t, "score", byID["s1"].CompletionReason)
	assert.Equal(t, 2, byID["s1"].TotalLoops)
	assert.Equal(t, string(types.VerdictPass), byID["s1"].FinalVerdict)
}

func TestListFilterByReason(t *testing.T) {
	a := openArchive(t)
	require.NoError(t, a.RecordCompleted(completedState("s1", "score", 96)))
	require.NoError(t, a.RecordCompleted(completedState("s2", "stagnation", 70)))

	records, err := a.List("stagnation", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s2", records[0].ID)
}

func TestRecordCompleted_Idempotent(t *testing.T) {
	a := openArchive(t)
	state := completedState("s1", "score", 96)

	require.NoError(t, a.RecordCompleted(state))
	require.NoError(t, a.RecordCompleted(state), "re-recording is an upsert")

	records, err := a.List("", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordCompleted_RejectsActiveSession(t *testing.T) {
	a := openArchive(t)
	state := completedState("s1", "score", 96)
	state.IsComplete = false

	assert.Error(t, a.RecordCompleted(state))
}
