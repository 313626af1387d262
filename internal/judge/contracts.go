// Package judge defines the external collaborator contracts (the adversarial
// Judge, the ContextBuilder, and the per-step evaluators) plus the engine's
// own deterministic implementations: a heuristic judge for offline use, a
// circuit-breaker wrapper, and the fallback review used when a judge fails
// terminally.
package judge

import (
	"context"

	"ganaudit/internal/types"
)

// Request is everything a judge needs for one review.
type Request struct {
	Task        string
	Candidate   string
	ContextPack string
	Rubric      []types.QualityDimension
	// Budget caps judge-side effort in tokens or analogous units; zero means
	// the judge's default.
	Budget int
}

// RawFinding is one issue reported by a judge before assembly.
type RawFinding struct {
	Issue      string
	Type       string
	Severity   types.Severity
	Location   string
	Proof      string
	FixSummary string
}

// InlineComment anchors a judge remark to a location in the candidate.
type InlineComment struct {
	Location string
	Comment  string
}

// RawReview is the judge's unprocessed output. The score assembler and
// output builder turn it into a StructuredReview.
type RawReview struct {
	Dimensions   []DimensionScore
	Summary      string
	Findings     []RawFinding
	Inline       []InlineComment
	Citations    []string
	ProposedDiff string
	JudgeCards   []types.JudgeCard
}

// DimensionScore pairs a rubric dimension id with the judged score.
type DimensionScore struct {
	DimensionID string
	Score       int
}

// Judge maps (artifact, context, rubric) to a raw review. Implementations
// must be safe for concurrent invocation; timeouts and retries are owned by
// the audit queue.
type Judge interface {
	Execute(ctx context.Context, req Request) (*RawReview, error)
	// Name identifies the judge on judge cards.
	Name() string
}

// ContextBuilder packs repository context for a judge. Must be idempotent
// for identical inputs. On error it may return a partial pack; the
// orchestrator treats any error as context-degraded.
type ContextBuilder interface {
	Build(ctx context.Context, cfg types.SessionConfig) (string, error)
}

// Step identifies one workflow step evaluated by a StepEvaluator.
type Step string

const (
	StepInit    Step = "INIT"
	StepRepro   Step = "REPRO"
	StepStatic  Step = "STATIC"
	StepTests   Step = "TESTS"
	StepDynamic Step = "DYNAMIC"
	StepConform Step = "CONFORM"
	StepTrace   Step = "TRACE"
	StepVerdict Step = "VERDICT"
)

// StepResult is the outcome of one step evaluation.
type StepResult struct {
	Step        Step
	Success     bool
	Evidence    []RawFinding
	Outputs     map[string]string
	NextActions []string
	Errors      []string
}

// StepEvaluator evaluates one workflow step. Evaluators are pure with
// respect to their declared inputs.
type StepEvaluator interface {
	Step() Step
	Evaluate(ctx context.Context, input string, sessionContext string) (*StepResult, error)
}
