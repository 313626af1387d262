package judge

import (
	"fmt"
	"time"

	"ganaudit/internal/logging"
	"ganaudit/internal/types"
)

// FallbackReview builds the deterministic degraded review returned when the
// judge fails after retries. It is always accompanied by a warning in the
// review metadata; it never masks a silent error.
func FallbackReview(sessionID string, iterations int, cause error) *types.StructuredReview {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}

	review := &types.StructuredReview{
		OverallScore: 50,
		Verdict:      types.VerdictRevise,
		Summary: fmt.Sprintf(
			"The audit could not be completed (%s). This is a degraded placeholder review: the score is neutral and carries no signal about artifact quality. Resubmit the thought to retry.",
			msg),
		ExecutiveVerdict: types.ExecutiveVerdict{
			Decision: "no-ship",
			Summary: []string{
				"The judge did not produce a review for this iteration.",
				"The neutral score of 50 reflects the failure, not the artifact.",
				"No evidence or diffs are available for this iteration.",
			},
			Justification: "audit degraded: " + msg,
			Confidence:    0,
		},
		EvidenceTable: types.EvidenceTable{Summary: "no evidence collected"},
		ProposedDiffs: []types.ProposedDiff{},
		FollowUpTasks: types.FollowUpTaskList{Summary: "no tasks derived"},
		Iterations:    iterations,
		JudgeCards: []types.JudgeCard{
			{Model: "fallback", Notes: msg},
		},
		Metadata: types.ReviewMetadata{
			Version:   Version,
			Timestamp: time.Now(),
		},
	}
	review.AddWarning(types.WarnFallbackReview, msg, "orchestrator")

	logging.Audit(logging.AuditFallbackReview, sessionID, msg, nil)
	return review
}

// Version stamps review metadata.
const Version = "1.0.0"
