package types

import "errors"

// Sentinel errors surfaced across package boundaries. Stable codes for the
// same conditions live next to them so warnings and errors agree.
var (
	// ErrInvalidThought is returned for malformed submissions.
	ErrInvalidThought = errors.New("invalid thought")

	// ErrQueueFull is returned when queue admission is refused.
	ErrQueueFull = errors.New("audit queue full")

	// ErrQueueDestroyed is returned to futures cancelled by queue teardown.
	ErrQueueDestroyed = errors.New("audit queue destroyed")

	// ErrJobTimeout is returned when a job exceeds its deadline.
	ErrJobTimeout = errors.New("job deadline exceeded")

	// ErrSessionLocked is returned when a completed session receives a new
	// artifact.
	ErrSessionLocked = errors.New("session already complete")

	// ErrSessionNotFound is returned by lookups of unknown sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrJudgeUnavailable is returned when the judge circuit breaker is open.
	ErrJudgeUnavailable = errors.New("judge unavailable")
)

// Warning codes attached to review metadata. Every degradation path marks the
// review with one of these; none of them is a silent pass.
const (
	WarnConfig              = "ConfigWarning"
	WarnContext             = "ContextError"
	WarnJobTimeout          = "JobTimeout"
	WarnJudgeError          = "JudgeError"
	WarnPersistenceDegraded = "PersistenceDegraded"
	WarnSanitizerConfidence = "SanitizationLowConfidence"
	WarnScoreClamped        = "ScoreClamped"
	WarnOutputDefaulted     = "OutputComponentDefaulted"
	WarnFallbackReview      = "FallbackReview"
	WarnArchiveDegraded     = "ArchiveDegraded"
	WarnMaxCyclesAdvisory   = "MaxCyclesExceeded"
)
