package stagnation

import (
	"fmt"

	"ganaudit/internal/config"
	"ganaudit/internal/logging"
	"ganaudit/internal/types"
)

// Iteration is the analyzer's view of one completed loop.
type Iteration struct {
	Artifact string
	Score    int
	Issues   []string
}

// Report is the outcome of a stagnation analysis.
type Report struct {
	Detected      bool
	AvgSimilarity float64
	PairsAboveBar int
	PairCount     int
	Analysis      types.ProgressAnalysis
	Message       string
}

// Analyzer applies the stagnation rule over recent iterations.
type Analyzer struct {
	cfg config.StagnationConfig
}

// New creates an analyzer with the given tuning.
func New(cfg config.StagnationConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze inspects the most recent iterations of a session. history is in
// chronological order; currentLoop is the loop count after the latest
// iteration. Stagnation is reported only once the session has both enough
// iterations and has passed the start loop.
func (a *Analyzer) Analyze(history []Iteration, currentLoop int) Report {
	rep := Report{}

	if len(history) < a.cfg.MinIterations || currentLoop < a.cfg.StartLoop {
		return rep
	}

	window := history
	if len(window) > a.cfg.Window {
		window = window[len(window)-a.cfg.Window:]
	}

	// Pairwise composite similarity across the window.
	var total float64
	for i := 0; i < len(window); i++ {
		for j := i + 1; j < len(window); j++ {
			sim := Similarity(window[i].Artifact, window[j].Artifact, a.cfg.SampleThreshold)
			total += sim
			rep.PairCount++
			if sim > a.cfg.SimilarityBar {
				rep.PairsAboveBar++
			}
		}
	}
	if rep.PairCount == 0 {
		return rep
	}
	rep.AvgSimilarity = total / float64(rep.PairCount)
	rep.Analysis.AvgSimilarity = rep.AvgSimilarity

	highSimilarity := rep.AvgSimilarity > a.cfg.SimilarityBar
	majorityAbove := rep.PairsAboveBar*2 > rep.PairCount
	nonImproving := a.scoresNonImproving(window)

	rep.Detected = (highSimilarity && majorityAbove) || (nonImproving && highSimilarity)

	a.fillDiagnostics(&rep, history, window)

	if rep.Detected {
		rep.Message = fmt.Sprintf(
			"iterations are %.0f%% similar on average with no meaningful score movement; further revisions of the same approach are unlikely to converge",
			rep.AvgSimilarity*100)
		rep.Analysis.Suggestions = a.suggestions(rep.Analysis)
		logging.Stagnation("stagnation detected at loop %d: avgSim=%.3f pairsAbove=%d/%d",
			currentLoop, rep.AvgSimilarity, rep.PairsAboveBar, rep.PairCount)
	}
	return rep
}

// scoresNonImproving reports whether no adjacent pair in the window improves
// by more than the epsilon.
func (a *Analyzer) scoresNonImproving(window []Iteration) bool {
	for i := 1; i < len(window); i++ {
		if float64(window[i].Score-window[i-1].Score) > a.cfg.ScoreEpsilon*100 {
			return false
		}
	}
	return len(window) > 1
}

func (a *Analyzer) fillDiagnostics(rep *Report, history, window []Iteration) {
	// Cosmetic-only: the two latest iterations equal under strict
	// normalization.
	if len(history) >= 2 {
		prev, cur := history[len(history)-2], history[len(history)-1]
		rep.Analysis.CosmeticChangesOnly = CosmeticOnly(prev.Artifact, cur.Artifact, a.cfg.CosmeticBar, a.cfg.SampleThreshold)
	}

	// Reverting: current iteration resembles iteration N-2 more than bar.
	if len(history) >= 3 {
		cur := history[len(history)-1]
		back2 := history[len(history)-3]
		if Similarity(cur.Artifact, back2.Artifact, a.cfg.SampleThreshold) >= a.cfg.RevertSimilarity {
			rep.Analysis.RevertingChanges = true
		}
	}

	// Stuck on same issues: majority of the latest issues already appeared in
	// the prior iteration.
	if len(window) >= 2 {
		prev := window[len(window)-2]
		cur := window[len(window)-1]
		if len(cur.Issues) > 0 {
			prior := make(map[string]struct{}, len(prev.Issues))
			for _, is := range prev.Issues {
				prior[is] = struct{}{}
			}
			repeated := 0
			for _, is := range cur.Issues {
				if _, ok := prior[is]; ok {
					repeated++
				}
			}
			rep.Analysis.StuckOnSameIssues = repeated*2 > len(cur.Issues)
		}
	}

	// Confusion: declining scores dominate the recent window.
	declines := 0
	for i := 1; i < len(window); i++ {
		if window[i].Score < window[i-1].Score {
			declines++
		}
	}
	rep.Analysis.ShowsConfusion = declines*2 > len(window)
}

// suggestions derives alternative-approach hints from the diagnostic flags.
func (a *Analyzer) suggestions(pa types.ProgressAnalysis) []string {
	var out []string
	if pa.CosmeticChangesOnly {
		out = append(out, "recent revisions only reformat the artifact; address the reported findings directly instead of polishing style")
	}
	if pa.StuckOnSameIssues {
		out = append(out, "the same findings recur each loop; pick the highest-severity finding and restructure the affected section rather than patching in place")
	}
	if pa.RevertingChanges {
		out = append(out, "the latest revision undoes an earlier one; decide between the two approaches before iterating further")
	}
	if pa.ShowsConfusion {
		out = append(out, "scores are declining; roll back to the best-scoring iteration and take a smaller step from there")
	}
	if len(out) == 0 {
		out = append(out, "try a structurally different approach: decompose the artifact differently or rewrite the weakest component from scratch")
	}
	return out
}
