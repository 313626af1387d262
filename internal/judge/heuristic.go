package judge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ganaudit/internal/types"
)

// HeuristicJudge is the engine's built-in deterministic judge: a catalog of
// textual checks over the candidate, each charging a penalty against one
// rubric dimension. It keeps the engine exercisable offline; real judges
// plug in through the same contract.
type HeuristicJudge struct {
	checks []check
}

type check struct {
	name      string
	dimension string
	severity  types.Severity
	penalty   int
	pattern   *regexp.Regexp
	issue     string
	fix       string
}

// NewHeuristicJudge creates the judge with its built-in check catalog.
func NewHeuristicJudge() *HeuristicJudge {
	return &HeuristicJudge{checks: []check{
		{
			name: "hardcoded-secret", dimension: "security",
			severity: types.SeverityCritical, penalty: 40,
			pattern: regexp.MustCompile(`(?i)(api[_-]?key|password|secret|token)\s*[:=]\s*["'][^"']{8,}["']`),
			issue:   "credential literal embedded in the artifact",
			fix:     "load the credential from the environment or a secret store",
		},
		{
			name: "sql-concat", dimension: "security",
			severity: types.SeverityCritical, penalty: 35,
			pattern: regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[^"\n]*["']\s*\+`),
			issue:   "SQL assembled by string concatenation",
			fix:     "use parameterized queries",
		},
		{
			name: "swallowed-error", dimension: "correctness",
			severity: types.SeverityMajor, penalty: 15,
			pattern: regexp.MustCompile(`(?m)(_\s*=\s*\w+\(|catch\s*\(\s*\w*\s*\)\s*\{\s*\}|except\s*:\s*pass)`),
			issue:   "error result discarded without handling",
			fix:     "handle or propagate the error",
		},
		{
			name: "panic-in-library", dimension: "correctness",
			severity: types.SeverityMajor, penalty: 12,
			pattern: regexp.MustCompile(`\bpanic\(`),
			issue:   "panic used for routine error flow",
			fix:     "return an error instead of panicking",
		},
		{
			name: "todo-marker", dimension: "maintainability",
			severity: types.SeverityMinor, penalty: 5,
			pattern: regexp.MustCompile(`(?i)\b(TODO|FIXME|XXX|HACK)\b`),
			issue:   "unfinished work marker left in the artifact",
			fix:     "resolve or file the follow-up before shipping",
		},
		{
			name: "debug-print", dimension: "maintainability",
			severity: types.SeverityMinor, penalty: 5,
			pattern: regexp.MustCompile(`(?m)(console\.log|fmt\.Print|println!|System\.out\.print)`),
			issue:   "debug print statement in the artifact",
			fix:     "remove the print or route it through the logger",
		},
		{
			name: "deep-nesting", dimension: "maintainability",
			severity: types.SeverityMinor, penalty: 8,
			pattern: regexp.MustCompile(`(?m)^\t{5,}|^ {20,}`),
			issue:   "deeply nested control flow",
			fix:     "extract helpers or invert conditions to flatten nesting",
		},
		{
			name: "sleep-in-test", dimension: "testing",
			severity: types.SeverityMajor, penalty: 10,
			pattern: regexp.MustCompile(`(?i)(time\.Sleep|sleep\(\d)`),
			issue:   "wall-clock sleep used for synchronization",
			fix:     "synchronize on a channel, condition, or fake clock",
		},
	}}
}

// Name identifies the judge on judge cards.
func (h *HeuristicJudge) Name() string { return "heuristic" }

// Execute scores the candidate against the rubric. Deterministic: identical
// candidates produce identical reviews.
func (h *HeuristicJudge) Execute(ctx context.Context, req Request) (*RawReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	penalties := make(map[string]int)
	var findings []RawFinding
	var inline []InlineComment

	lines := strings.Split(req.Candidate, "\n")
	for _, c := range h.checks {
		hits := 0
		for i, line := range lines {
			if !c.pattern.MatchString(line) {
				continue
			}
			hits++
			loc := fmt.Sprintf("candidate:%d", i+1)
			if hits <= 3 {
				findings = append(findings, RawFinding{
					Issue:      c.issue,
					Type:       c.name,
					Severity:   c.severity,
					Location:   loc,
					Proof:      strings.TrimSpace(line),
					FixSummary: c.fix,
				})
				inline = append(inline, InlineComment{Location: loc, Comment: c.issue})
			}
		}
		if hits > 0 {
			// Repeated hits charge diminishing penalties.
			p := c.penalty
			if hits > 1 {
				p += (hits - 1) * c.penalty / 4
			}
			penalties[c.dimension] += p
		}
	}

	// Structural signals that raise rather than lower scores.
	docScore := baselineDocScore(req.Candidate)
	testScore := baselineTestScore(req.Candidate)

	var dims []DimensionScore
	for _, d := range req.Rubric {
		score := 100 - penalties[d.ID]
		switch d.ID {
		case "documentation":
			score = min(score, docScore)
		case "testing":
			score = min(score, testScore)
		}
		if score < 0 {
			score = 0
		}
		dims = append(dims, DimensionScore{DimensionID: d.ID, Score: score})
	}

	summary := fmt.Sprintf("heuristic audit: %d findings across %d checks", len(findings), len(h.checks))
	return &RawReview{
		Dimensions: dims,
		Summary:    summary,
		Findings:   findings,
		Inline:     inline,
		JudgeCards: []types.JudgeCard{{Model: h.Name()}},
	}, nil
}

// baselineDocScore estimates documentation quality from comment density.
func baselineDocScore(candidate string) int {
	lines := strings.Split(candidate, "\n")
	if len(lines) < 5 {
		return 70
	}
	comments := 0
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "//") || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "*") {
			comments++
		}
	}
	ratio := float64(comments) / float64(len(lines))
	switch {
	case ratio >= 0.15:
		return 95
	case ratio >= 0.08:
		return 85
	case ratio >= 0.03:
		return 70
	default:
		return 55
	}
}

// baselineTestScore estimates test presence from naming conventions.
func baselineTestScore(candidate string) int {
	lower := strings.ToLower(candidate)
	switch {
	case strings.Contains(lower, "func test") || strings.Contains(lower, "def test_") ||
		strings.Contains(lower, "it(") || strings.Contains(lower, "describe("):
		return 90
	case strings.Contains(lower, "assert") || strings.Contains(lower, "expect("):
		return 75
	default:
		return 60
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
