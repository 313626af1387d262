// Package completion implements the tiered loop-termination policy: score
// thresholds that relax as loops accumulate, a hard iteration ceiling, and
// stagnation-forced completion. Evaluation is deterministic: identical
// (score, loop, stagnation) inputs yield identical results.
package completion

import (
	"fmt"

	"ganaudit/internal/config"
	"ganaudit/internal/logging"
	"ganaudit/internal/stagnation"
	"ganaudit/internal/types"
)

// Reasons recorded on completion.
const (
	ReasonScore      = "score"
	ReasonMaxLoops   = "maxLoops"
	ReasonStagnation = "stagnation"
)

// Evaluator applies the termination policy.
type Evaluator struct {
	cfg config.CompletionConfig
}

// New creates an evaluator with the given tier table.
func New(cfg config.CompletionConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate decides whether the loop should terminate after an iteration with
// the given score at the given loop count. stagnationRep may be nil.
//
// Tier rule: completion fires for any tier whose score bar is met once the
// loop has reached that tier's minimum. The first (strictest) tier is the
// exception and may complete early whenever at least one iteration exists.
func (e *Evaluator) Evaluate(score, loop int, stagnationRep *stagnation.Report) types.Completion {
	c := types.Completion{}

	if loop >= 1 {
		for i, tier := range e.cfg.Tiers {
			earlyOK := i == 0 // strictest tier applies at any loop
			if score >= tier.Score && (earlyOK || loop >= tier.AtLoop) {
				c.IsComplete = true
				c.Reason = ReasonScore
				c.Message = fmt.Sprintf("score %d meets the %d-point bar at loop %d; the candidate is at ship quality", score, tier.Score, loop)
				break
			}
		}
	}

	if !c.IsComplete && loop >= e.cfg.HardStop {
		c.IsComplete = true
		c.Reason = ReasonMaxLoops
		c.Message = fmt.Sprintf("hard stop: %d loops reached without meeting a completion tier (final score %d)", loop, score)
	}

	if !c.IsComplete && stagnationRep != nil && stagnationRep.Detected {
		c.IsComplete = true
		c.Reason = ReasonStagnation
		c.Message = "stagnation: " + stagnationRep.Message
	}

	c.NextThoughtNeeded = !c.IsComplete
	if !c.IsComplete && c.Message == "" {
		c.Message = fmt.Sprintf("score %d at loop %d does not meet a completion tier; submit a revised thought", score, loop)
	}

	logging.Audit(logging.AuditCompletionDecide, "", c.Reason, map[string]interface{}{
		"score":    score,
		"loop":     loop,
		"complete": c.IsComplete,
	})
	return c
}

// BuildTermination summarizes a finished session: the failure rate (fraction
// of iterations whose score dropped against the prior one) and the critical
// issues lifted from the most recent reviews.
func BuildTermination(history []types.IterationRecord, reason string) *types.TerminationResult {
	tr := &types.TerminationResult{
		Reason:     reason,
		TotalLoops: len(history),
	}
	if len(history) == 0 {
		return tr
	}
	tr.FinalScore = history[len(history)-1].Score

	declines := 0
	for i := 1; i < len(history); i++ {
		if history[i].Score < history[i-1].Score {
			declines++
		}
	}
	if len(history) > 1 {
		tr.FailureRate = float64(declines) / float64(len(history)-1)
	}

	// Lift criticals from the most recent reviews, newest first, capped.
	const maxCriticals = 10
	seen := make(map[string]struct{})
	for i := len(history) - 1; i >= 0 && len(tr.CriticalIssues) < maxCriticals; i-- {
		if history[i].Review == nil {
			continue
		}
		for _, issue := range history[i].Review.CriticalIssues() {
			if _, dup := seen[issue]; dup {
				continue
			}
			seen[issue] = struct{}{}
			tr.CriticalIssues = append(tr.CriticalIssues, issue)
			if len(tr.CriticalIssues) >= maxCriticals {
				break
			}
		}
	}
	return tr
}
