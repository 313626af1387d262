// Package scoring rolls per-dimension evaluations into the overall score and
// verdict. The assembler is a pure function of its inputs: identical
// dimension scores always produce the identical (score, verdict) pair.
package scoring

import (
	"fmt"
	"math"

	"ganaudit/internal/types"
)

// weightTolerance is the allowed drift when validating weight sums.
const weightTolerance = 0.01

// rejectFloor is the overall score below which the verdict is reject.
const rejectFloor = 60

// DimensionEval pairs a rubric dimension with its judged score.
type DimensionEval struct {
	Dimension types.QualityDimension
	Score     int
}

// Result is the assembled score plus any clamping warnings.
type Result struct {
	OverallScore int
	Verdict      types.Verdict
	Dimensions   []types.DimensionScore
	Warnings     []types.Warning
}

// Assembler computes weighted roll-ups against a validated rubric.
type Assembler struct {
	shipThreshold int
}

// New creates an assembler with the given ship threshold.
func New(shipThreshold int) *Assembler {
	return &Assembler{shipThreshold: shipThreshold}
}

// ValidateRubric checks dimension and criterion weight sums and id
// uniqueness. Called at construction time of any rubric.
func ValidateRubric(dims []types.QualityDimension) error {
	if len(dims) == 0 {
		return fmt.Errorf("rubric: no dimensions")
	}
	seen := make(map[string]struct{}, len(dims))
	var sum float64
	for _, d := range dims {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("rubric: duplicate dimension id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
		sum += d.Weight

		if len(d.Criteria) > 0 {
			var csum float64
			cseen := make(map[string]struct{}, len(d.Criteria))
			for _, c := range d.Criteria {
				if _, dup := cseen[c.ID]; dup {
					return fmt.Errorf("rubric: duplicate criterion id %q in %q", c.ID, d.ID)
				}
				cseen[c.ID] = struct{}{}
				csum += c.Weight
			}
			if math.Abs(csum-1.0) > weightTolerance {
				return fmt.Errorf("rubric: criterion weights in %q sum to %.3f, want 1.0", d.ID, csum)
			}
		}
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("rubric: dimension weights sum to %.3f, want 1.0", sum)
	}
	return nil
}

// Assemble computes the weighted overall score and verdict.
// Scores outside [0,100] are clamped with a recorded warning.
// criticalCount gates the pass verdict per the ship rule.
func (a *Assembler) Assemble(evals []DimensionEval, criticalCount int) Result {
	res := Result{}

	var weightedSum, weightTotal float64
	requiredOK := true

	for _, ev := range evals {
		score := ev.Score
		if score < 0 || score > 100 {
			clamped := score
			if clamped < 0 {
				clamped = 0
			}
			if clamped > 100 {
				clamped = 100
			}
			res.Warnings = append(res.Warnings, types.Warning{
				Code:      types.WarnScoreClamped,
				Message:   fmt.Sprintf("dimension %q score %d clamped to %d", ev.Dimension.ID, score, clamped),
				Component: "scoring",
			})
			score = clamped
		}

		weightedSum += ev.Dimension.Weight * float64(score)
		weightTotal += ev.Dimension.Weight
		res.Dimensions = append(res.Dimensions, types.DimensionScore{
			Name:  ev.Dimension.Name,
			Score: score,
		})

		if ev.Dimension.Required && score < ev.Dimension.MinThreshold {
			requiredOK = false
		}
	}

	if weightTotal > 0 {
		res.OverallScore = int(math.Round(weightedSum / weightTotal))
	}

	switch {
	case res.OverallScore >= a.shipThreshold && criticalCount == 0 && requiredOK:
		res.Verdict = types.VerdictPass
	case res.OverallScore < rejectFloor:
		res.Verdict = types.VerdictReject
	default:
		res.Verdict = types.VerdictRevise
	}
	return res
}

// DefaultRubric is the engine's built-in quality rubric. Weights sum to 1.0.
func DefaultRubric() []types.QualityDimension {
	return []types.QualityDimension{
		{
			ID: "correctness", Name: "Correctness & Completeness", Weight: 0.30,
			MinThreshold: 70, Required: true,
			Criteria: []types.Criterion{
				{ID: "correctness.logic", Name: "Logic soundness", Weight: 0.5},
				{ID: "correctness.edge", Name: "Edge-case handling", Weight: 0.3},
				{ID: "correctness.complete", Name: "Requirement coverage", Weight: 0.2},
			},
		},
		{
			ID: "security", Name: "Security", Weight: 0.20,
			MinThreshold: 60, Required: true,
			Criteria: []types.Criterion{
				{ID: "security.input", Name: "Input validation", Weight: 0.4},
				{ID: "security.secrets", Name: "Secret handling", Weight: 0.3},
				{ID: "security.injection", Name: "Injection resistance", Weight: 0.3},
			},
		},
		{
			ID: "performance", Name: "Performance", Weight: 0.15,
			MinThreshold: 50,
			Criteria: []types.Criterion{
				{ID: "performance.complexity", Name: "Algorithmic complexity", Weight: 0.6},
				{ID: "performance.resources", Name: "Resource usage", Weight: 0.4},
			},
		},
		{
			ID: "maintainability", Name: "Maintainability", Weight: 0.15,
			MinThreshold: 50,
			Criteria: []types.Criterion{
				{ID: "maintainability.structure", Name: "Structure and naming", Weight: 0.5},
				{ID: "maintainability.duplication", Name: "Duplication", Weight: 0.5},
			},
		},
		{
			ID: "testing", Name: "Testing", Weight: 0.12,
			MinThreshold: 50,
			Criteria: []types.Criterion{
				{ID: "testing.coverage", Name: "Coverage of behavior", Weight: 0.6},
				{ID: "testing.quality", Name: "Assertion quality", Weight: 0.4},
			},
		},
		{
			ID: "documentation", Name: "Documentation", Weight: 0.08,
			MinThreshold: 40,
			Criteria: []types.Criterion{
				{ID: "documentation.api", Name: "API documentation", Weight: 0.6},
				{ID: "documentation.rationale", Name: "Rationale capture", Weight: 0.4},
			},
		},
	}
}
