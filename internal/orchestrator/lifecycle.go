package orchestrator

import (
	"fmt"

	"ganaudit/internal/cache"
	"ganaudit/internal/completion"
	"ganaudit/internal/logging"
	"ganaudit/internal/metrics"
	"ganaudit/internal/progress"
	"ganaudit/internal/stagnation"
	"ganaudit/internal/types"
)

// finalize runs the post-judge tail of the workflow: completion evaluation,
// stagnation analysis, persistence, caching, and archive. It always returns
// a review.
func (o *Orchestrator) finalize(session *types.SessionState, thought types.Thought,
	effective types.SessionConfig, key cache.Key, review *types.StructuredReview,
	pendingWarnings []types.Warning, auditID string, tracked bool) *types.StructuredReview {

	if tracked {
		o.tracker.SetStage(auditID, progress.StageFinalizing)
	}
	for _, w := range pendingWarnings {
		review.Metadata.Warnings = append(review.Metadata.Warnings, w)
	}

	loop := session.CurrentLoop + 1 // including this iteration

	// Stagnation analysis over the recent in-memory window plus this
	// iteration (C5).
	window := o.appendRecent(session.ID, stagnation.Iteration{
		Artifact: thought.Artifact,
		Score:    review.OverallScore,
		Issues:   issueList(review),
	})
	stagRep := o.analyzer.Analyze(window, loop)
	if stagRep.PairCount > 0 {
		analysis := stagRep.Analysis
		review.Progress = &analysis
	}

	// Loop-control decision (C6).
	comp := o.completer.Evaluate(review.OverallScore, loop, &stagRep)
	review.Completion = comp

	// maxCycles is advisory: exceeding it warns but never terminates.
	if effective.MaxCycles > 0 && loop > effective.MaxCycles && !comp.IsComplete {
		review.AddWarning(types.WarnMaxCyclesAdvisory,
			fmt.Sprintf("loop %d exceeds the configured maxCycles of %d", loop, effective.MaxCycles),
			"completion")
	}

	// Journal the iteration (C2). Persistence failures warn, never fail.
	rec := types.IterationRecord{
		ThoughtNumber: thought.ThoughtNumber,
		ArtifactHash:  thought.ArtifactHash(),
		Score:         review.OverallScore,
		Verdict:       review.Verdict,
		Review:        review,
		Timestamp:     review.Metadata.Timestamp,
	}
	updated, err := o.store.AppendIteration(session.ID, rec)
	if err != nil {
		review.AddWarning(types.WarnPersistenceDegraded, err.Error(), "store")
	}
	if updated != nil {
		session = updated
	}

	if comp.IsComplete {
		review.Termination = completion.BuildTermination(session.History, comp.Reason)
		if updated, err := o.store.MarkComplete(session.ID, comp.Reason); err == nil {
			session = updated
		} else {
			review.AddWarning(types.WarnPersistenceDegraded, err.Error(), "store")
		}
		o.dropRecent(session.ID)

		if o.archive != nil {
			if aerr := o.archive.RecordCompleted(session); aerr != nil {
				review.AddWarning(types.WarnArchiveDegraded, aerr.Error(), "archive")
				logging.Get(logging.CategoryArchive).Warn("archive of %s failed: %v", session.ID, aerr)
			}
		}
	}

	o.cache.Put(key, review)
	metrics.AuditsTotal.WithLabelValues(string(review.Verdict)).Inc()

	if tracked {
		o.tracker.Complete(auditID)
	}
	logging.Orchestrator("audit done: session=%s thought=%d score=%d verdict=%s complete=%v",
		session.ID, thought.ThoughtNumber, review.OverallScore, review.Verdict, comp.IsComplete)
	return review
}

// appendRecent records the iteration in the in-memory stagnation window and
// returns the updated window. The window is bounded by the analyzer's needs.
func (o *Orchestrator) appendRecent(sessionID string, it stagnation.Iteration) []stagnation.Iteration {
	keep := o.cfg.Stagnation.Window + 2 // revert detection looks back two extra
	o.artMu.Lock()
	defer o.artMu.Unlock()

	window := append(o.recentArtifacts[sessionID], it)
	if len(window) > keep {
		window = window[len(window)-keep:]
	}
	o.recentArtifacts[sessionID] = window
	return append([]stagnation.Iteration(nil), window...)
}

func (o *Orchestrator) dropRecent(sessionID string) {
	o.artMu.Lock()
	defer o.artMu.Unlock()
	delete(o.recentArtifacts, sessionID)
}

// issueList flattens the evidence table into issue strings for the
// stuck-on-same-issues diagnostic.
func issueList(review *types.StructuredReview) []string {
	var out []string
	for _, e := range review.EvidenceTable.Entries {
		out = append(out, e.Type+":"+e.Issue)
	}
	return out
}
