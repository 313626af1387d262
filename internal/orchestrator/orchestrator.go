// Package orchestrator drives the per-thought audit workflow: session
// resolution, inline-config merge, context assembly, queued judging, score
// and output assembly, sanitization, completion, and persistence. Every
// collaborator failure degrades into a warning or the fallback review; no
// error crosses the Audit API except the fail-fast admission errors.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ganaudit/internal/cache"
	"ganaudit/internal/completion"
	"ganaudit/internal/config"
	"ganaudit/internal/judge"
	"ganaudit/internal/logging"
	"ganaudit/internal/metrics"
	"ganaudit/internal/output"
	"ganaudit/internal/progress"
	"ganaudit/internal/queue"
	"ganaudit/internal/scoring"
	"ganaudit/internal/stagnation"
	"ganaudit/internal/store"
	"ganaudit/internal/types"
)

// placeholderContext substitutes for a failed context build. The audit
// proceeds context-degraded rather than failing.
const placeholderContext = "context unavailable: the audit ran without repository context"

// Archiver records completed sessions. Failures are soft.
type Archiver interface {
	RecordCompleted(state *types.SessionState) error
}

// Sanitizer is the output scrubbing seam.
type Sanitizer interface {
	Sanitize(review *types.StructuredReview)
}

// Options tune a single Audit call.
type Options struct {
	Priority types.Priority
}

// Orchestrator coordinates one audit engine instance.
type Orchestrator struct {
	cfg       *config.Config
	store     *store.SessionStore
	cache     *cache.Cache
	tracker   *progress.Tracker
	analyzer  *stagnation.Analyzer
	completer *completion.Evaluator
	builder   *output.Builder
	sanitizer Sanitizer
	judge     judge.Judge
	contexts  judge.ContextBuilder
	archive   Archiver
	rubric    []types.QualityDimension
	queue     *queue.Queue

	// recentArtifacts keeps the last few artifact texts per session for the
	// stagnation analyzer; journals only persist hashes.
	artMu           sync.Mutex
	recentArtifacts map[string][]stagnation.Iteration
}

// jobPayload carries per-job data through the queue to the worker.
type jobPayload struct {
	contextPack string
	session     types.SessionConfig
	iterations  int
	auditID     string
	tracked     bool
}

// Deps bundles the collaborators for New.
type Deps struct {
	Store     *store.SessionStore
	Cache     *cache.Cache
	Tracker   *progress.Tracker
	Sanitizer Sanitizer
	Judge     judge.Judge
	Contexts  judge.ContextBuilder
	Archive   Archiver
	Rubric    []types.QualityDimension
}

// New wires an orchestrator and starts its queue.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	rubric := deps.Rubric
	if rubric == nil {
		rubric = scoring.DefaultRubric()
	}
	if err := scoring.ValidateRubric(rubric); err != nil {
		return nil, err
	}
	if deps.Judge == nil {
		return nil, fmt.Errorf("orchestrator: judge required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("orchestrator: session store required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cfg.Cache.Capacity, cfg.Cache.TTL)
	}
	if deps.Tracker == nil {
		deps.Tracker = progress.New(cfg.Progress.EnableAfter, cfg.Progress.MaxTracked)
	}

	o := &Orchestrator{
		cfg:             cfg,
		store:           deps.Store,
		cache:           deps.Cache,
		tracker:         deps.Tracker,
		analyzer:        stagnation.New(cfg.Stagnation),
		completer:       completion.New(cfg.Completion),
		builder:         output.New(cfg.Output),
		sanitizer:       deps.Sanitizer,
		judge:           deps.Judge,
		contexts:        deps.Contexts,
		archive:         deps.Archive,
		rubric:          rubric,
		recentArtifacts: make(map[string][]stagnation.Iteration),
	}
	o.queue = queue.New(queue.Config{
		MaxConcurrent:  cfg.Queue.MaxConcurrent,
		MaxQueueSize:   cfg.Queue.MaxQueueSize,
		DefaultTimeout: cfg.Queue.JobTimeout,
		DefaultRetries: cfg.Queue.MaxRetries,
		StatsWindow:    cfg.Queue.StatsWindow,
	}, o.executeJob)
	return o, nil
}

// Queue exposes queue stats and lifecycle to the CLI and server.
func (o *Orchestrator) Queue() *queue.Queue { return o.queue }

// Store exposes the session store for session listing and GC.
func (o *Orchestrator) Store() *store.SessionStore { return o.store }

// Close tears down the queue; in-flight audits degrade to fallback reviews.
func (o *Orchestrator) Close() {
	o.queue.Destroy()
}

// Audit runs one thought through the full workflow.
// Fail-fast errors: ErrInvalidThought, ErrQueueFull, ErrSessionLocked. Any
// other failure returns a degraded review, never an error.
func (o *Orchestrator) Audit(ctx context.Context, thought types.Thought, sessionID string, opts Options) (*types.StructuredReview, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Audit")
	defer timer.Stop()

	if err := validateThought(thought); err != nil {
		return nil, err
	}

	// Session resolution: explicit argument > thought.sessionId >
	// thought.branchId > generated fallback.
	id := sessionID
	if id == "" {
		id = thought.SessionID
	}
	if id == "" {
		id = thought.BranchID
	}
	if id == "" {
		id = fmt.Sprintf("fallback-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}

	session, err := o.store.GetOrCreate(id, o.cfg.Session)
	if err != nil {
		return nil, err
	}

	// Inline configuration merge. Malformed blocks warn and fall back to the
	// session config.
	var pendingWarnings []types.Warning
	inline := config.ExtractInline(inlineSource(thought), session.Config)
	pendingWarnings = append(pendingWarnings, inline.Warnings...)
	effective := inline.Config
	if inline.Changed {
		if updated, uerr := o.store.UpdateConfig(id, effective); uerr == nil {
			session = updated
		} else {
			pendingWarnings = append(pendingWarnings, types.Warning{
				Code: types.WarnPersistenceDegraded, Message: uerr.Error(), Component: "store",
			})
		}
	}

	key := cache.MakeKey(thought.ArtifactHash(), effective.Digest())

	// A completed session accepts no new work: identical resubmissions are
	// served from cache, anything else fails fast.
	if session.IsComplete {
		if cached := o.cache.Get(key); cached != nil {
			metrics.CacheHits.Inc()
			logging.Audit(logging.AuditCacheHit, id, string(key), nil)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: session %s completed (%s)", types.ErrSessionLocked, id, session.CompletionReason)
	}

	if cached := o.cache.Get(key); cached != nil {
		metrics.CacheHits.Inc()
		logging.Audit(logging.AuditCacheHit, id, string(key), nil)
		return cached, nil
	}
	metrics.CacheMisses.Inc()
	logging.Audit(logging.AuditCacheMiss, id, string(key), nil)

	auditID := uuid.NewString()
	tracked := o.tracker.Start(auditID)
	if tracked {
		o.tracker.SetStage(auditID, progress.StageParsingCode)
	}

	// Context assembly degrades to a placeholder pack on failure.
	contextPack := placeholderContext
	if o.contexts != nil {
		pack, cerr := o.contexts.Build(ctx, effective)
		if cerr != nil {
			pendingWarnings = append(pendingWarnings, types.Warning{
				Code:      types.WarnContext,
				Message:   fmt.Sprintf("context build failed: %v; using placeholder context", cerr),
				Component: "context-builder",
			})
			if pack != "" {
				contextPack = pack // partial pack is better than none
			}
		} else {
			contextPack = pack
		}
	}
	if tracked {
		o.tracker.SetStage(auditID, progress.StageRunningChecks)
	}

	payload := &jobPayload{
		contextPack: contextPack,
		session:     effective,
		iterations:  session.CurrentLoop + 1,
		auditID:     auditID,
		tracked:     tracked,
	}
	future, err := o.queue.Enqueue(thought, id, queue.Options{
		Priority:   opts.Priority,
		Timeout:    o.cfg.Queue.JobTimeout,
		MaxRetries: o.cfg.Queue.MaxRetries,
		Payload:    payload,
	})
	if err != nil {
		if errors.Is(err, types.ErrQueueFull) {
			if tracked {
				o.tracker.Fail(auditID, err)
			}
			return nil, err
		}
		review := judge.FallbackReview(id, session.CurrentLoop+1, err)
		if o.sanitizer != nil {
			o.sanitizer.Sanitize(review)
		}
		metrics.FallbackReviews.Inc()
		return o.finalize(session, thought, effective, key, review, pendingWarnings, auditID, tracked), nil
	}

	review, err := future.Wait(ctx)
	if err != nil {
		// Judge failed after retries (or the queue went away). Surface the
		// deterministic fallback review, never an error.
		review = judge.FallbackReview(id, session.CurrentLoop+1, err)
		if errors.Is(err, types.ErrJobTimeout) {
			review.AddWarning(types.WarnJobTimeout, err.Error(), "queue")
		}
		if o.sanitizer != nil {
			o.sanitizer.Sanitize(review)
		}
		metrics.FallbackReviews.Inc()
	}

	return o.finalize(session, thought, effective, key, review, pendingWarnings, auditID, tracked), nil
}

// executeJob is the queue worker: judge, weight, assemble, sanitize. Assembly
// is deterministic, so a retried job repeats it safely.
func (o *Orchestrator) executeJob(ctx context.Context, job *queue.Job) (*types.StructuredReview, error) {
	payload := job.Payload.(*jobPayload)

	raw, err := o.judge.Execute(ctx, judge.Request{
		Task:        payload.session.Task,
		Candidate:   job.Thought.Artifact,
		ContextPack: payload.contextPack,
		Rubric:      o.rubric,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", types.WarnJudgeError, err)
	}
	if payload.tracked {
		o.tracker.SetStage(payload.auditID, progress.StageEvaluatingQuality)
	}

	// Weight the raw dimensions against the rubric (C7).
	criticals := 0
	for _, f := range raw.Findings {
		if f.Severity == types.SeverityCritical {
			criticals++
		}
	}
	assembler := scoring.New(payload.session.Threshold)
	scoreRes := assembler.Assemble(o.mapDimensions(raw), criticals)

	if payload.tracked {
		o.tracker.SetStage(payload.auditID, progress.StageGeneratingFeedback)
	}

	// Compose the structured output (C8).
	review := o.builder.Build(ctx, output.Input{
		Raw:                raw,
		Score:              scoreRes,
		Session:            payload.session,
		Artifact:           job.Thought.Artifact,
		Iterations:         payload.iterations,
		AcceptanceCriteria: output.ExtractACs(payload.session.Task),
	})

	// Scrub the assembled document (C10).
	if o.sanitizer != nil {
		o.sanitizer.Sanitize(review)
	}
	return review, nil
}

// mapDimensions joins the judge's dimension scores onto the rubric. Missing
// dimensions default to a neutral 70 so one silent judge omission cannot
// zero a weighted axis.
func (o *Orchestrator) mapDimensions(raw *judge.RawReview) []scoring.DimensionEval {
	scores := make(map[string]int, len(raw.Dimensions))
	for _, d := range raw.Dimensions {
		scores[d.DimensionID] = d.Score
	}
	evals := make([]scoring.DimensionEval, 0, len(o.rubric))
	for _, dim := range o.rubric {
		score, ok := scores[dim.ID]
		if !ok {
			score = 70
		}
		evals = append(evals, scoring.DimensionEval{Dimension: dim, Score: score})
	}
	return evals
}

func validateThought(t types.Thought) error {
	if t.ThoughtNumber < 1 {
		return fmt.Errorf("%w: thoughtNumber must be >= 1, got %d", types.ErrInvalidThought, t.ThoughtNumber)
	}
	if t.Artifact == "" {
		return fmt.Errorf("%w: empty artifact", types.ErrInvalidThought)
	}
	return nil
}

// inlineSource prefers the explicit inlineConfigText field and falls back to
// scanning the artifact body.
func inlineSource(t types.Thought) string {
	if t.InlineConfigText != "" {
		return t.InlineConfigText
	}
	return t.Artifact
}
