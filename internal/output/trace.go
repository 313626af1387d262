package output

import (
	"fmt"
	"regexp"
	"strings"

	"ganaudit/internal/types"
)

// acRefRe matches direct acceptance-criterion references in artifact text,
// e.g. "AC-3", "AC 12".
var acRefRe = regexp.MustCompile(`(?i)\bAC[- ]?(\d+)\b`)

// ExtractACs pulls acceptance criteria from task text: explicit AC lines and
// bulleted requirement lines.
func ExtractACs(task string) []string {
	var acs []string
	for _, line := range strings.Split(task, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if acRefRe.MatchString(t) ||
			strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") ||
			regexp.MustCompile(`^\d+[.)] `).MatchString(t) {
			acs = append(acs, strings.TrimLeft(t, "-*0123456789.) "))
		}
	}
	return acs
}

// buildTraceability maps each acceptance criterion to the artifact evidence
// that addresses it. Confidence combines direct AC references (weighted
// TraceDirectWeight) with keyword overlap (TraceKeywordWeight); mappings
// below TraceMinConfidence count as uncovered.
func (b *Builder) buildTraceability(in Input) (types.TraceabilityMatrix, error) {
	matrix := types.TraceabilityMatrix{}
	if len(in.AcceptanceCriteria) == 0 {
		matrix.CoverageSummary = "no acceptance criteria declared"
		return matrix, nil
	}

	artifact := strings.ToLower(in.Artifact)
	artifactTokens := tokenize(artifact)
	hasTests := strings.Contains(artifact, "func test") ||
		strings.Contains(artifact, "def test_") ||
		strings.Contains(artifact, "it(") || strings.Contains(artifact, "assert")

	full, partial := 0, 0
	for i, ac := range in.AcceptanceCriteria {
		id := fmt.Sprintf("AC-%d", i+1)

		confidence := 0
		// Direct reference: the artifact cites the AC id.
		if strings.Contains(artifact, strings.ToLower(id)) {
			confidence += b.cfg.TraceDirectWeight
		}
		// Keyword overlap between the criterion and the artifact.
		acTokens := tokenize(strings.ToLower(ac))
		overlap := 0
		for tok := range acTokens {
			if _, ok := artifactTokens[tok]; ok {
				overlap++
			}
		}
		if len(acTokens) > 0 {
			confidence += b.cfg.TraceKeywordWeight * overlap / len(acTokens)
		}
		if confidence > 100 {
			confidence = 100
		}

		mapping := types.ACMapping{
			ACID:        id,
			Description: ac,
			Confidence:  confidence,
		}
		switch {
		case confidence >= b.cfg.TraceMinConfidence && hasTests:
			mapping.Status = types.CoverageFull
			full++
		case confidence >= b.cfg.TraceMinConfidence:
			mapping.Status = types.CoveragePartial
			partial++
			matrix.MissingTests = append(matrix.MissingTests, types.MissingTest{
				ACID:      id,
				Suggested: fmt.Sprintf("add a test exercising: %s", truncate(ac, 80)),
				Priority:  "high",
			})
		case confidence > 0:
			mapping.Status = types.CoveragePartial
			partial++
			matrix.UnmetACs = append(matrix.UnmetACs, types.UnmetAC{
				ACID:     id,
				Reason:   fmt.Sprintf("only weak keyword overlap (confidence %d)", confidence),
				Priority: "medium",
			})
		default:
			mapping.Status = types.CoverageNone
			matrix.UnmetACs = append(matrix.UnmetACs, types.UnmetAC{
				ACID:     id,
				Reason:   "no reference or keyword overlap in the candidate",
				Priority: "high",
			})
		}
		matrix.ACMappings = append(matrix.ACMappings, mapping)
	}

	matrix.CoverageSummary = fmt.Sprintf("%d/%d criteria fully covered, %d partially, %d unmet",
		full, len(in.AcceptanceCriteria), partial, len(matrix.UnmetACs))
	return matrix, nil
}

var tokenRe = regexp.MustCompile(`[a-z0-9_]{3,}`)

// stopwords excluded from keyword overlap.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"must": {}, "should": {}, "shall": {}, "when": {}, "from": {}, "are": {},
	"not": {}, "can": {}, "will": {}, "have": {}, "has": {}, "its": {},
}

func tokenize(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(s, -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
