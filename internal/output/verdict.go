package output

import (
	"fmt"

	"ganaudit/internal/scoring"
	"ganaudit/internal/types"
)

// buildVerdict produces the executive ship/no-ship block: a 3-6 bullet
// summary, primary reasons with evidence links, and a confidence grade.
func (b *Builder) buildVerdict(in Input, evidence types.EvidenceTable) types.ExecutiveVerdict {
	ship := in.Score.Verdict == types.VerdictPass

	v := types.ExecutiveVerdict{
		Decision: "no-ship",
	}
	if ship {
		v.Decision = "ship"
	}

	criticals, majors := 0, 0
	var topIDs []string
	for _, e := range evidence.Entries {
		switch e.Severity {
		case types.SeverityCritical:
			criticals++
			if len(topIDs) < 3 {
				topIDs = append(topIDs, e.ID)
			}
		case types.SeverityMajor:
			majors++
		}
	}

	v.Summary = append(v.Summary,
		fmt.Sprintf("Overall score %d/100 against a ship threshold of %d.", in.Score.OverallScore, in.Session.Threshold))
	if criticals > 0 {
		v.Summary = append(v.Summary,
			fmt.Sprintf("%d critical finding(s) block shipping (%s).", criticals, joinMax(topIDs, 3)))
	} else {
		v.Summary = append(v.Summary, "No critical findings.")
	}
	if majors > 0 {
		v.Summary = append(v.Summary, fmt.Sprintf("%d major finding(s) need attention before or shortly after shipping.", majors))
	}
	if weakest, score, ok := weakestDimension(in.Score); ok {
		v.Summary = append(v.Summary, fmt.Sprintf("Weakest dimension: %s at %d.", weakest, score))
	}
	if ship {
		v.Summary = append(v.Summary, "The candidate meets every required dimension threshold.")
	} else {
		v.NextSteps = append(v.NextSteps, "address the highest-severity findings in the evidence table")
		if in.Score.OverallScore < in.Session.Threshold {
			v.NextSteps = append(v.NextSteps,
				fmt.Sprintf("raise the overall score by %d points to reach the ship threshold", in.Session.Threshold-in.Score.OverallScore))
		}
	}
	// Cap summary at six bullets.
	if len(v.Summary) > 6 {
		v.Summary = v.Summary[:6]
	}

	switch {
	case ship:
		v.Justification = fmt.Sprintf("score %d meets the threshold with no blocking findings", in.Score.OverallScore)
	case criticals > 0:
		v.Justification = fmt.Sprintf("critical findings present (%d); shipping is blocked regardless of score", criticals)
	default:
		v.Justification = fmt.Sprintf("score %d is below the %d-point ship threshold", in.Score.OverallScore, in.Session.Threshold)
	}

	// Confidence: high when the evidence base is substantial, low when the
	// decision rests on score alone.
	v.Confidence = 60
	if len(evidence.Entries) > 0 {
		v.Confidence = 75
	}
	if len(evidence.Entries) >= 5 {
		v.Confidence = 85
	}
	if criticals > 0 {
		v.Confidence = 90
	}
	return v
}

// defaultVerdict is the fallback when verdict assembly fails.
func defaultVerdict(score scoring.Result) types.ExecutiveVerdict {
	decision := "no-ship"
	if score.Verdict == types.VerdictPass {
		decision = "ship"
	}
	return types.ExecutiveVerdict{
		Decision: decision,
		Summary: []string{
			fmt.Sprintf("Overall score %d/100.", score.OverallScore),
			fmt.Sprintf("Verdict: %s.", score.Verdict),
			"Executive summary unavailable for this iteration.",
		},
		Justification: "summary generation degraded; decision derived from score alone",
		Confidence:    40,
	}
}

func weakestDimension(res scoring.Result) (string, int, bool) {
	if len(res.Dimensions) == 0 {
		return "", 0, false
	}
	weakest := res.Dimensions[0]
	for _, d := range res.Dimensions[1:] {
		if d.Score < weakest.Score {
			weakest = d
		}
	}
	return weakest.Name, weakest.Score, true
}

func joinMax(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out
}
