package sanitize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganaudit/internal/config"
	"ganaudit/internal/types"
)

func newSanitizer(level config.SanitizerLevel) *Sanitizer {
	cfg := config.DefaultConfig().Sanitizer
	cfg.Level = level
	return New(cfg)
}

func reviewWithText(text string) *types.StructuredReview {
	return &types.StructuredReview{
		Summary: text,
		EvidenceTable: types.EvidenceTable{
			Entries: []types.EvidenceEntry{{ID: "EV-001", Issue: text, Proof: text}},
			Summary: "1 finding",
		},
	}
}

func TestSecretRedaction(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	secret := `api_key="ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"`
	review := reviewWithText("found " + secret + " in the handler")

	s.Sanitize(review)

	raw, err := json.Marshal(review)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345",
		"no textual field may retain the secret")
	assert.Contains(t, review.Summary, "[API_KEY]")

	require.NotEmpty(t, review.Sanitization.Actions)
	for _, a := range review.Sanitization.Actions {
		assert.GreaterOrEqual(t, a.Confidence, 80)
	}
}

func TestPIIRedaction(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	review := reviewWithText("contact alice@example.com or 555-867-5309 x")

	s.Sanitize(review)
	assert.Contains(t, review.Summary, "[email]")
	assert.NotContains(t, review.Summary, "alice@example.com")
}

func TestMinimalLevelSkipsPII(t *testing.T) {
	s := newSanitizer(config.SanitizerMinimal)
	review := reviewWithText("contact alice@example.com, token=abcdefghij0123456789")

	s.Sanitize(review)
	assert.Contains(t, review.Summary, "alice@example.com", "minimal level keeps PII")
	assert.Contains(t, review.Summary, "[TOKEN]", "secrets are scrubbed at every level")
}

func TestToolSyntaxHidden(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	review := reviewWithText("before <function_calls>rm -rf /</function_calls> after")

	s.Sanitize(review)
	assert.Equal(t, "before [TOOL EXECUTION] after", review.Summary)
}

func TestPathAnonymization(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	review := reviewWithText("read /home/carol/projects/acme/internal/server/handler/util/deep.go")

	s.Sanitize(review)
	assert.NotContains(t, review.Summary, "/home/carol")
	assert.Contains(t, review.Summary, "…", "deep paths are contracted")
}

func TestStrictStripsStackTraces(t *testing.T) {
	s := newSanitizer(config.SanitizerStrict)
	review := reviewWithText("failure:\n    at handler.Process (handler.go:42)\ndone")

	s.Sanitize(review)
	assert.NotContains(t, review.Summary, "at handler.Process")
}

func TestSanitize_FixedPoint(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	review := reviewWithText(`password="hunter2secret" at /home/dave/app/src/db/conn/pool.go, mail bob@corp.io`)

	s.Sanitize(review)
	first := *review
	first.Sanitization = types.SanitizationResult{}
	firstJSON, _ := json.Marshal(first)

	s.Sanitize(review)
	second := *review
	// The actions log describes the last run; the scrubbed content itself
	// must be stable.
	assert.Empty(t, second.Sanitization.Actions, "second pass finds nothing left to redact")
	second.Sanitization = types.SanitizationResult{}
	secondJSON, _ := json.Marshal(second)

	if diff := cmp.Diff(string(firstJSON), string(secondJSON)); diff != "" {
		t.Errorf("sanitizer is not a fixed point (-first +second):\n%s", diff)
	}
}

func TestSanitizeText(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	out, actions := s.SanitizeText("bearer abcdefghijklmnopqrstuvwxyz1234")

	assert.Contains(t, out, "[TOKEN]")
	require.Len(t, actions, 1)
	assert.Equal(t, "secret", actions[0].Kind)
}

func TestNoFalsePositivesOnCleanText(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	clean := "the parser rejects malformed headers and returns an error"
	review := reviewWithText(clean)

	s.Sanitize(review)
	assert.Equal(t, clean, review.Summary)
	assert.Empty(t, review.Sanitization.Actions)
}

func TestHighDensityWarning(t *testing.T) {
	s := newSanitizer(config.SanitizerStandard)
	review := &types.StructuredReview{
		Summary: "api_key=ABCDEFGHIJKLMNOP123456 token=QRSTUVWXYZ9876543210ab password=superhidden123 bearer zyxwvutsrqponmlkjihgfedcba",
	}

	s.Sanitize(review)
	require.NotEmpty(t, review.Sanitization.Actions)
	joined := strings.Join(review.Sanitization.Warnings, " ")
	assert.Contains(t, joined, "density")
}
