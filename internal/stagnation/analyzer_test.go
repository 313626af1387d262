package stagnation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/config"
)

func testCfg() config.StagnationConfig {
	return config.DefaultConfig().Stagnation
}

func TestSimilarity_Identical(t *testing.T) {
	s := Similarity("func main() { return 1 }", "func main() { return 1 }", 1000)
	assert.InDelta(t, 1.0, s, 0.001)
}

func TestSimilarity_Disjoint(t *testing.T) {
	s := Similarity(
		"func alpha() { if x { return 1 } }",
		"SELECT name FROM users WHERE id = 4",
		1000)
	assert.Less(t, s, 0.4)
}

func TestSimilarity_WhitespaceInsensitive(t *testing.T) {
	a := "func  main()   {\n\treturn 1\n}"
	b := "func main() { return 1 }"
	assert.InDelta(t, 1.0, Similarity(a, b, 1000), 0.01)
}

func TestSimilarity_LongInputsSampled(t *testing.T) {
	long := strings.Repeat("token ", 2000)
	// Sampling keeps the call cheap and still reports identity.
	assert.InDelta(t, 1.0, Similarity(long, long, 1000), 0.001)
}

func TestCosmeticOnly(t *testing.T) {
	a := "x = f( a , b ) ;"
	b := "x=f(a,b);"
	assert.True(t, CosmeticOnly(a, b, 0.98, 1000))

	c := "x = g(a, b);"
	assert.False(t, CosmeticOnly(a, c, 0.98, 1000))
}

func TestAnalyze_RequiresMinIterationsAndStartLoop(t *testing.T) {
	a := New(testCfg())
	same := Iteration{Artifact: "func x() { return 1 }", Score: 70}

	// Not enough iterations.
	rep := a.Analyze([]Iteration{same, same}, 12)
	assert.False(t, rep.Detected)

	// Enough iterations but before the start loop.
	rep = a.Analyze([]Iteration{same, same, same}, 9)
	assert.False(t, rep.Detected)
}

func TestAnalyze_DetectsNearIdenticalWindow(t *testing.T) {
	a := New(testCfg())
	base := "func handler(w http.ResponseWriter, r *http.Request) { w.Write(data) }"
	history := []Iteration{
		{Artifact: base, Score: 70},
		{Artifact: base + " ", Score: 70},
		{Artifact: base, Score: 70},
	}

	rep := a.Analyze(history, 12)
	require.True(t, rep.Detected)
	assert.Greater(t, rep.AvgSimilarity, 0.95)
	assert.True(t, rep.Analysis.CosmeticChangesOnly)
	assert.NotEmpty(t, rep.Analysis.Suggestions)
	assert.NotEmpty(t, rep.Message)
}

func TestAnalyze_ProgressNotFlagged(t *testing.T) {
	a := New(testCfg())
	history := []Iteration{
		{Artifact: "func a() { return 1 }", Score: 50},
		{Artifact: "func a() { validate(); return compute() }", Score: 65},
		{Artifact: "func a() error { if err := validate(); err != nil { return err }; return compute() }", Score: 80},
	}

	rep := a.Analyze(history, 12)
	assert.False(t, rep.Detected, "improving, diverging iterations are not stagnant")
}

func TestAnalyze_RevertingChanges(t *testing.T) {
	a := New(testCfg())
	v1 := "func a() { return oldApproach() }"
	v2 := "func a() { return newApproach(withExtras()) }"
	history := []Iteration{
		{Artifact: v1, Score: 70},
		{Artifact: v2, Score: 69},
		{Artifact: v1, Score: 70}, // back to v1
	}

	rep := a.Analyze(history, 12)
	assert.True(t, rep.Analysis.RevertingChanges)
}

func TestAnalyze_StuckOnSameIssues(t *testing.T) {
	cfg := testCfg()
	a := New(cfg)
	art := "func x() { panic(1) }"
	issues := []string{"panic-in-library:panic used for routine error flow"}
	history := []Iteration{
		{Artifact: art, Score: 70, Issues: issues},
		{Artifact: art, Score: 70, Issues: issues},
		{Artifact: art, Score: 70, Issues: issues},
	}

	rep := a.Analyze(history, 12)
	assert.True(t, rep.Analysis.StuckOnSameIssues)
}

func TestAnalyze_ShowsConfusion(t *testing.T) {
	a := New(testCfg())
	art := "func x() { return 1 }"
	history := []Iteration{
		{Artifact: art, Score: 80},
		{Artifact: art + " ", Score: 72},
		{Artifact: art, Score: 64},
	}

	rep := a.Analyze(history, 12)
	assert.True(t, rep.Analysis.ShowsConfusion)
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := New(testCfg())
	art := "func x() { return 1 }"
	history := []Iteration{
		{Artifact: art, Score: 70}, {Artifact: art, Score: 70}, {Artifact: art, Score: 70},
	}
	r1 := a.Analyze(history, 12)
	r2 := a.Analyze(history, 12)
	assert.Equal(t, r1.Detected, r2.Detected)
	assert.Equal(t, r1.AvgSimilarity, r2.AvgSimilarity)
}
