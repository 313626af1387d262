package output

import "ganaudit/internal/types"

// buildQualityMetrics grades the assembled document itself: how complete the
// sections are, how well evidence backs the verdict, and how actionable the
// output is.
func (b *Builder) buildQualityMetrics(review *types.StructuredReview, in Input) types.QualityMetrics {
	m := types.QualityMetrics{}

	// Completeness: share of sections that carry real content.
	sections := 0
	filled := 0
	count := func(ok bool) {
		sections++
		if ok {
			filled++
		}
	}
	count(len(review.ExecutiveVerdict.Summary) >= 3)
	count(len(review.EvidenceTable.Entries) > 0 || review.OverallScore >= 90)
	count(len(review.ProposedDiffs) > 0 || len(review.EvidenceTable.Entries) == 0)
	count(len(review.ReproductionGuide.ReproductionSteps) > 0)
	count(len(review.Traceability.ACMappings) > 0 || len(in.AcceptanceCriteria) == 0)
	count(len(review.FollowUpTasks.Tasks) > 0 || len(review.EvidenceTable.Entries) == 0)
	m.Completeness = 100 * filled / sections

	// Accuracy: degraded components and clamped scores reduce trust.
	m.Accuracy = 100
	for _, w := range review.Metadata.Warnings {
		switch w.Code {
		case types.WarnOutputDefaulted:
			m.Accuracy -= 15
		case types.WarnScoreClamped, types.WarnContext:
			m.Accuracy -= 10
		}
	}
	if m.Accuracy < 0 {
		m.Accuracy = 0
	}

	// Actionability: findings with fixes and concrete tasks.
	fixable := 0
	for _, e := range review.EvidenceTable.Entries {
		if e.FixSummary != "" {
			fixable++
		}
	}
	switch {
	case len(review.EvidenceTable.Entries) == 0:
		m.Actionability = 80
	case fixable == len(review.EvidenceTable.Entries) && len(review.FollowUpTasks.Tasks) > 0:
		m.Actionability = 95
	case fixable > 0:
		m.Actionability = 75
	default:
		m.Actionability = 50
	}

	// Evidence quality: proof anchored to locations.
	anchored := 0
	for _, e := range review.EvidenceTable.Entries {
		if e.Location != "" && e.Proof != "" {
			anchored++
		}
	}
	switch {
	case len(review.EvidenceTable.Entries) == 0:
		m.EvidenceQuality = 70
	default:
		m.EvidenceQuality = 100 * anchored / len(review.EvidenceTable.Entries)
	}
	return m
}
