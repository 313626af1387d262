// Package types provides shared type definitions used across ganaudit packages.
// This package exists to break import cycles between the orchestrator, queue,
// and output layers. Types in this package should be foundational data
// structures with no complex dependencies.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// =============================================================================
// VERDICTS & SEVERITIES
// =============================================================================

// Verdict is the ship decision for a single iteration.
type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictRevise Verdict = "revise"
	VerdictReject Verdict = "reject"
)

// Severity classifies an evidence entry.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityMajor    Severity = "Major"
	SeverityMinor    Severity = "Minor"
)

// Rank orders severities for sorting (lower sorts first).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// Priority levels for queue admission ordering.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Weight maps a priority level to its numeric admission weight.
// Weights order the queue; they are never used to preempt running jobs.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 100
	case PriorityLow:
		return 10
	default:
		return 50
	}
}

// =============================================================================
// THOUGHT - One submission from the caller
// =============================================================================

// Thought is a single artifact revision submitted for audit.
type Thought struct {
	SessionID        string `json:"sessionId,omitempty"`
	BranchID         string `json:"branchId,omitempty"`
	ThoughtNumber    int    `json:"thoughtNumber"`
	Artifact         string `json:"artifact"`
	InlineConfigText string `json:"inlineConfigText,omitempty"`
}

// ArtifactHash returns the content fingerprint of the artifact.
func (t Thought) ArtifactHash() string {
	sum := sha256.Sum256([]byte(t.Artifact))
	return hex.EncodeToString(sum[:])
}

// =============================================================================
// SESSION CONFIG & STATE
// =============================================================================

// Scope controls what the context builder packs for the judge.
type Scope string

const (
	ScopeDiff      Scope = "diff"
	ScopePaths     Scope = "paths"
	ScopeWorkspace Scope = "workspace"
)

// SessionConfig is the effective audit configuration for a session.
// Inline gan-config blocks merge over these values.
type SessionConfig struct {
	Task       string   `json:"task" yaml:"task"`
	Scope      Scope    `json:"scope" yaml:"scope" validate:"oneof=diff paths workspace"`
	Paths      []string `json:"paths,omitempty" yaml:"paths"`
	Threshold  int      `json:"threshold" yaml:"threshold" validate:"min=0,max=100"`
	MaxCycles  int      `json:"maxCycles" yaml:"max_cycles" validate:"min=1"`
	Candidates int      `json:"candidates" yaml:"candidates" validate:"min=1"`
	Judges     []string `json:"judges,omitempty" yaml:"judges"`
	ApplyFixes bool     `json:"applyFixes" yaml:"apply_fixes"`
}

// DefaultSessionConfig returns the documented session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Task:       "audit and improve the candidate until it reaches ship quality",
		Scope:      ScopeDiff,
		Threshold:  85,
		MaxCycles:  1,
		Candidates: 1,
	}
}

// Digest returns a stable fingerprint of the config for cache keying.
func (c SessionConfig) Digest() string {
	h := sha256.New()
	h.Write([]byte(c.Task))
	h.Write([]byte(c.Scope))
	for _, p := range c.Paths {
		h.Write([]byte(p))
	}
	h.Write([]byte{byte(c.Threshold), byte(c.MaxCycles), byte(c.Candidates)})
	for _, j := range c.Judges {
		h.Write([]byte(j))
	}
	if c.ApplyFixes {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IterationRecord is one completed thought -> review cycle.
type IterationRecord struct {
	ThoughtNumber int               `json:"thoughtNumber"`
	ArtifactHash  string            `json:"artifactHash"`
	Score         int               `json:"score"`
	Verdict       Verdict           `json:"verdict"`
	Review        *StructuredReview `json:"review,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// SessionState is the durable per-session record kept by the session store.
// Readers receive copies; the store owns the canonical instance.
type SessionState struct {
	ID               string            `json:"id"`
	Config           SessionConfig     `json:"config"`
	History          []IterationRecord `json:"history"`
	CurrentLoop      int               `json:"currentLoop"`
	IsComplete       bool              `json:"isComplete"`
	CompletionReason string            `json:"completionReason,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand to readers.
func (s *SessionState) Clone() *SessionState {
	cp := *s
	cp.Config.Paths = append([]string(nil), s.Config.Paths...)
	cp.Config.Judges = append([]string(nil), s.Config.Judges...)
	cp.History = append([]IterationRecord(nil), s.History...)
	return &cp
}

// RecentScores returns the scores of the last n iterations, oldest first.
func (s *SessionState) RecentScores(n int) []int {
	if n > len(s.History) {
		n = len(s.History)
	}
	out := make([]int, 0, n)
	for _, rec := range s.History[len(s.History)-n:] {
		out = append(out, rec.Score)
	}
	return out
}

// =============================================================================
// QUALITY DIMENSIONS
// =============================================================================

// Criterion is one scored aspect within a quality dimension.
type Criterion struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// QualityDimension is a weighted axis of the audit rubric.
type QualityDimension struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Weight       float64     `json:"weight" validate:"min=0,max=1"`
	MinThreshold int         `json:"minThreshold" validate:"min=0,max=100"`
	Required     bool        `json:"required"`
	Criteria     []Criterion `json:"criteria,omitempty"`
}

// DimensionScore is one evaluated dimension in a review.
type DimensionScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// =============================================================================
// STRUCTURED REVIEW - the composed output document
// =============================================================================

// ExecutiveVerdict is the ship/no-ship summary block.
type ExecutiveVerdict struct {
	Decision      string   `json:"decision"` // "ship" | "no-ship"
	Summary       []string `json:"summary"`  // 3..6 bullets
	NextSteps     []string `json:"nextSteps,omitempty"`
	Justification string   `json:"justification"`
	Confidence    int      `json:"confidence"` // 0..100
}

// EvidenceEntry is one concrete finding with proof.
type EvidenceEntry struct {
	ID         string   `json:"id"`
	Issue      string   `json:"issue"`
	Type       string   `json:"type"`
	Severity   Severity `json:"severity"`
	Location   string   `json:"location"`
	Proof      string   `json:"proof"`
	FixSummary string   `json:"fixSummary,omitempty"`
}

// EvidenceTable is the deduplicated, severity-sorted finding table.
type EvidenceTable struct {
	Entries []EvidenceEntry `json:"entries"`
	Summary string          `json:"summary"`
}

// FileChange is one file touched by a proposed diff.
type FileChange struct {
	Path       string `json:"path"`
	Additions  int    `json:"additions"`
	Deletions  int    `json:"deletions"`
	IsTestFile bool   `json:"isTestFile"`
}

// DiffValidation reports whether a proposed diff respects the size limits.
type DiffValidation struct {
	Valid      bool     `json:"valid"`
	TotalLines int      `json:"totalLines"`
	FileCount  int      `json:"fileCount"`
	Violations []string `json:"violations,omitempty"`
}

// ProposedDiff is a unified-diff fix suggestion.
type ProposedDiff struct {
	UnifiedDiff          string         `json:"unifiedDiff"`
	FileChanges          []FileChange   `json:"fileChanges"`
	Validation           DiffValidation `json:"validation"`
	VerificationCommands []string       `json:"verificationCommands,omitempty"`
}

// ReproStep is one numbered step in the reproduction guide.
type ReproStep struct {
	Number         int    `json:"number"`
	Description    string `json:"description"`
	Command        string `json:"command,omitempty"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
}

// VerificationStep pairs a command with its success criteria.
type VerificationStep struct {
	Number            int      `json:"number"`
	Description       string   `json:"description"`
	Command           string   `json:"command"`
	SuccessCriteria   string   `json:"successCriteria"`
	FailureIndicators []string `json:"failureIndicators,omitempty"`
}

// ReproductionGuide is the ordered repro + verification block.
type ReproductionGuide struct {
	ReproductionSteps  []ReproStep        `json:"reproductionSteps"`
	VerificationSteps  []VerificationStep `json:"verificationSteps"`
	TestCommands       []string           `json:"testCommands,omitempty"`
	ValidationCommands []string           `json:"validationCommands,omitempty"`
}

// CoverageStatus classifies how well an acceptance criterion is covered.
type CoverageStatus string

const (
	CoverageFull    CoverageStatus = "fully_covered"
	CoveragePartial CoverageStatus = "partially_covered"
	CoverageNone    CoverageStatus = "not_covered"
	CoverageOver    CoverageStatus = "over_covered"
)

// ACMapping maps one acceptance criterion to implementation and tests.
type ACMapping struct {
	ACID                string         `json:"acId"`
	Description         string         `json:"description"`
	ImplementationFiles []string       `json:"implementationFiles,omitempty"`
	TestFiles           []string       `json:"testFiles,omitempty"`
	Status              CoverageStatus `json:"status"`
	Confidence          int            `json:"confidence"` // 0..100
}

// UnmetAC is an acceptance criterion without adequate coverage.
type UnmetAC struct {
	ACID     string `json:"acId"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

// MissingTest flags an AC with implementation but no test.
type MissingTest struct {
	ACID      string `json:"acId"`
	Suggested string `json:"suggested"`
	Priority  string `json:"priority"`
}

// TraceabilityMatrix is the per-AC coverage report.
type TraceabilityMatrix struct {
	ACMappings      []ACMapping   `json:"acMappings"`
	CoverageSummary string        `json:"coverageSummary"`
	UnmetACs        []UnmetAC     `json:"unmetACs,omitempty"`
	MissingTests    []MissingTest `json:"missingTests,omitempty"`
}

// FollowUpTask is one actionable item derived from the audit.
type FollowUpTask struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Priority      int      `json:"priority"` // 1 = highest
	EffortMinutes int      `json:"effortMinutes,omitempty"`
	EvidenceIDs   []string `json:"evidenceIds,omitempty"`
}

// FollowUpTaskList is the prioritized task block.
type FollowUpTaskList struct {
	Tasks   []FollowUpTask `json:"tasks"`
	Summary string         `json:"summary"`
}

// JudgeCard identifies one judge that contributed to the review.
type JudgeCard struct {
	Model string `json:"model"`
	Notes string `json:"notes,omitempty"`
}

// Completion is the loop-control annotation on a review.
type Completion struct {
	IsComplete        bool   `json:"isComplete"`
	Reason            string `json:"reason,omitempty"` // "score" | "maxLoops" | "stagnation"
	NextThoughtNeeded bool   `json:"nextThoughtNeeded"`
	Message           string `json:"message,omitempty"`
}

// QualityMetrics grades the assembled output itself.
type QualityMetrics struct {
	Completeness    int `json:"completeness"`
	Accuracy        int `json:"accuracy"`
	Actionability   int `json:"actionability"`
	EvidenceQuality int `json:"evidenceQuality"`
}

// SanitizationAction records one redaction applied to the output.
type SanitizationAction struct {
	Kind        string `json:"kind"` // pii | secret | tool_syntax | path | content
	Location    string `json:"location"`
	Replacement string `json:"replacement"`
	Confidence  int    `json:"confidence"` // 0..100
}

// SanitizationResult summarizes the sanitizer pass.
type SanitizationResult struct {
	Actions  []SanitizationAction `json:"actions"`
	Warnings []string             `json:"warnings,omitempty"`
}

// Warning is a non-fatal degradation attached to review metadata.
type Warning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
}

// ReviewMetadata carries version, timestamp and accumulated warnings.
type ReviewMetadata struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// ProgressAnalysis carries stagnation diagnostics on the review.
type ProgressAnalysis struct {
	AvgSimilarity       float64  `json:"avgSimilarity"`
	StuckOnSameIssues   bool     `json:"stuckOnSameIssues"`
	CosmeticChangesOnly bool     `json:"cosmeticChangesOnly"`
	RevertingChanges    bool     `json:"revertingChanges"`
	ShowsConfusion      bool     `json:"showsConfusion"`
	Suggestions         []string `json:"suggestions,omitempty"`
}

// TerminationResult summarizes a finished session.
type TerminationResult struct {
	Reason         string   `json:"reason"`
	FailureRate    float64  `json:"failureRate"`
	CriticalIssues []string `json:"criticalIssues,omitempty"`
	FinalScore     int      `json:"finalScore"`
	TotalLoops     int      `json:"totalLoops"`
}

// StructuredReview is the composed review document returned to the caller.
type StructuredReview struct {
	OverallScore      int                `json:"overallScore"`
	Verdict           Verdict            `json:"verdict"`
	Dimensions        []DimensionScore   `json:"dimensions"`
	Summary           string             `json:"summary,omitempty"`
	ExecutiveVerdict  ExecutiveVerdict   `json:"executiveVerdict"`
	EvidenceTable     EvidenceTable      `json:"evidenceTable"`
	ProposedDiffs     []ProposedDiff     `json:"proposedDiffs"`
	ReproductionGuide ReproductionGuide  `json:"reproductionGuide"`
	Traceability      TraceabilityMatrix `json:"traceabilityMatrix"`
	FollowUpTasks     FollowUpTaskList   `json:"followUpTasks"`
	Iterations        int                `json:"iterations"`
	JudgeCards        []JudgeCard        `json:"judgeCards"`
	Completion        Completion         `json:"completion"`
	QualityMetrics    QualityMetrics     `json:"qualityMetrics"`
	Sanitization      SanitizationResult `json:"sanitization"`
	Progress          *ProgressAnalysis  `json:"progressAnalysis,omitempty"`
	Termination       *TerminationResult `json:"terminationResult,omitempty"`
	Metadata          ReviewMetadata     `json:"metadata"`
}

// AddWarning appends a warning to the review metadata.
func (r *StructuredReview) AddWarning(code, message, component string) {
	r.Metadata.Warnings = append(r.Metadata.Warnings, Warning{
		Code:      code,
		Message:   message,
		Component: component,
	})
}

// CriticalIssues returns the critical evidence descriptions.
func (r *StructuredReview) CriticalIssues() []string {
	var out []string
	for _, e := range r.EvidenceTable.Entries {
		if e.Severity == SeverityCritical {
			out = append(out, e.Issue)
		}
	}
	return out
}
