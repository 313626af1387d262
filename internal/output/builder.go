// Package output assembles the final structured review from its seven
// sub-generators. Sub-builders share a capability shape: configure, build
// under a deadline, fall back to a documented default: and run in parallel
// when the configuration permits. Assembly is deterministic: identical inputs
// yield identical documents.
package output

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ganaudit/internal/config"
	"ganaudit/internal/judge"
	"ganaudit/internal/logging"
	"ganaudit/internal/scoring"
	"ganaudit/internal/types"
)

// Input is everything the builder needs for one assembly.
type Input struct {
	Raw         *judge.RawReview
	Score       scoring.Result
	Session     types.SessionConfig
	Artifact    string
	Iterations  int
	StepResults []judge.StepResult
	// AcceptanceCriteria drives the traceability matrix; extracted from the
	// session task by the orchestrator.
	AcceptanceCriteria []string
}

// Builder composes structured reviews.
type Builder struct {
	cfg config.OutputConfig
}

// New creates a builder with the given bounds.
func New(cfg config.OutputConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build assembles the review. Each sub-component runs under its own
// deadline; a component that fails or times out contributes its documented
// default and a warning instead of failing the assembly.
func (b *Builder) Build(ctx context.Context, in Input) *types.StructuredReview {
	timer := logging.StartTimer(logging.CategoryOutput, "Build")
	defer timer.StopWithThreshold(b.cfg.TotalTimeout)

	ctx, cancel := context.WithTimeout(ctx, b.cfg.TotalTimeout)
	defer cancel()

	review := &types.StructuredReview{
		OverallScore: in.Score.OverallScore,
		Verdict:      in.Score.Verdict,
		Dimensions:   in.Score.Dimensions,
		Summary:      in.Raw.Summary,
		Iterations:   in.Iterations,
		JudgeCards:   in.Raw.JudgeCards,
		Metadata: types.ReviewMetadata{
			Version:   judge.Version,
			Timestamp: time.Now(),
		},
	}
	for _, w := range in.Score.Warnings {
		review.Metadata.Warnings = append(review.Metadata.Warnings, w)
	}

	// Evidence is built first: verdict, tasks and quality metrics read it.
	evidenceVal, warn := b.runComponent(ctx, "evidence", func(ctx context.Context) (interface{}, error) {
		return b.buildEvidence(in)
	}, func() interface{} {
		return types.EvidenceTable{Summary: "evidence unavailable"}
	})
	if warn != nil {
		review.Metadata.Warnings = append(review.Metadata.Warnings, *warn)
	}
	evidence := evidenceVal.(types.EvidenceTable)
	review.EvidenceTable = evidence

	traceVal, warn := b.runComponent(ctx, "traceability", func(ctx context.Context) (interface{}, error) {
		return b.buildTraceability(in)
	}, func() interface{} {
		return types.TraceabilityMatrix{CoverageSummary: "traceability unavailable"}
	})
	if warn != nil {
		review.Metadata.Warnings = append(review.Metadata.Warnings, *warn)
	}
	trace := traceVal.(types.TraceabilityMatrix)
	review.Traceability = trace

	// The remaining components are independent; run them concurrently when
	// configured, otherwise in order.
	type part struct {
		name  string
		build func(context.Context) (interface{}, error)
		def   func() interface{}
		apply func(interface{})
	}
	parts := []part{
		{
			name:  "executive-verdict",
			build: func(ctx context.Context) (interface{}, error) { return b.buildVerdict(in, evidence), nil },
			def:   func() interface{} { return defaultVerdict(in.Score) },
			apply: func(v interface{}) { review.ExecutiveVerdict = v.(types.ExecutiveVerdict) },
		},
		{
			name:  "proposed-diffs",
			build: func(ctx context.Context) (interface{}, error) { return b.buildDiffs(in) },
			def:   func() interface{} { return []types.ProposedDiff{} },
			apply: func(v interface{}) { review.ProposedDiffs = v.([]types.ProposedDiff) },
		},
		{
			name:  "reproduction-guide",
			build: func(ctx context.Context) (interface{}, error) { return b.buildRepro(in, evidence), nil },
			def:   func() interface{} { return types.ReproductionGuide{} },
			apply: func(v interface{}) { review.ReproductionGuide = v.(types.ReproductionGuide) },
		},
		{
			name:  "follow-up-tasks",
			build: func(ctx context.Context) (interface{}, error) { return b.buildTasks(in, evidence, trace), nil },
			def:   func() interface{} { return types.FollowUpTaskList{Summary: "no tasks derived"} },
			apply: func(v interface{}) { review.FollowUpTasks = v.(types.FollowUpTaskList) },
		},
	}

	results := make([]interface{}, len(parts))
	warnings := make([]*types.Warning, len(parts))
	if b.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range parts {
			g.Go(func() error {
				results[i], warnings[i] = b.runComponent(gctx, p.name, p.build, p.def)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, p := range parts {
			results[i], warnings[i] = b.runComponent(ctx, p.name, p.build, p.def)
		}
	}
	for i, p := range parts {
		if warnings[i] != nil {
			review.Metadata.Warnings = append(review.Metadata.Warnings, *warnings[i])
		}
		p.apply(results[i])
	}

	review.QualityMetrics = b.buildQualityMetrics(review, in)
	return review
}

// runComponent executes one sub-builder under the per-component deadline.
// On failure or timeout it substitutes the documented default and returns
// the warning to attach; components never fail the assembly.
func (b *Builder) runComponent(ctx context.Context, name string,
	build func(context.Context) (interface{}, error), def func() interface{}) (interface{}, *types.Warning) {

	cctx, cancel := context.WithTimeout(ctx, b.cfg.ComponentTimeout)
	defer cancel()

	type result struct {
		v   interface{}
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := build(cctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			logging.Get(logging.CategoryOutput).Warn("component %s failed: %v", name, res.err)
			return def(), &types.Warning{
				Code:      types.WarnOutputDefaulted,
				Message:   fmt.Sprintf("%s: %v", name, res.err),
				Component: "output",
			}
		}
		return res.v, nil
	case <-cctx.Done():
		logging.Get(logging.CategoryOutput).Warn("component %s timed out", name)
		return def(), &types.Warning{
			Code:      types.WarnOutputDefaulted,
			Message:   name + ": deadline exceeded",
			Component: "output",
		}
	}
}
