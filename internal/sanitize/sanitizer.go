package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"

	"ganaudit/internal/config"
	"ganaudit/internal/logging"
	"ganaudit/internal/types"
)

// Sanitizer applies the configured passes to an assembled review.
type Sanitizer struct {
	cfg config.SanitizerConfig
}

// New creates a sanitizer for the given level and tuning.
func New(cfg config.SanitizerConfig) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

// Sanitize rewrites every textual field of the review in place and records
// the result under review.Sanitization. The sanitization block itself is
// written after scrubbing and is never re-scrubbed.
func (s *Sanitizer) Sanitize(review *types.StructuredReview) {
	timer := logging.StartTimer(logging.CategorySanitize, "Sanitize")
	defer timer.Stop()

	// Round-trip the review through JSON so every string field is visited
	// uniformly, with its JSON path as the action location.
	prior := review.Sanitization
	review.Sanitization = types.SanitizationResult{}

	raw, err := json.Marshal(review)
	if err != nil {
		review.Sanitization = prior
		review.AddWarning(types.WarnSanitizerConfidence, fmt.Sprintf("sanitizer skipped: %v", err), "sanitize")
		return
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		review.Sanitization = prior
		review.AddWarning(types.WarnSanitizerConfidence, fmt.Sprintf("sanitizer skipped: %v", err), "sanitize")
		return
	}

	st := &state{cfg: s.cfg}
	tree = st.walk(tree, "$")

	clean, err := json.Marshal(tree)
	if err == nil {
		var rebuilt types.StructuredReview
		if err = json.Unmarshal(clean, &rebuilt); err == nil {
			*review = rebuilt
		}
	}
	if err != nil {
		review.AddWarning(types.WarnSanitizerConfidence, fmt.Sprintf("sanitizer rebuild failed: %v", err), "sanitize")
	}

	result := types.SanitizationResult{Actions: st.actions}
	if len(st.actions) > 0 {
		var sum int
		for _, a := range st.actions {
			sum += a.Confidence
		}
		avg := sum / len(st.actions)
		if avg < s.cfg.MinConfidence {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("average redaction confidence %d below %d; review redactions manually", avg, s.cfg.MinConfidence))
		}
		if st.fields > 0 && len(st.actions)*4 >= st.fields {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("high redaction density: %d redactions across %d fields", len(st.actions), st.fields))
		}
		logging.Sanitize("%d redactions applied (%d fields scanned)", len(st.actions), st.fields)
		logging.Audit(logging.AuditRedaction, "", "", map[string]interface{}{
			"actions": len(st.actions),
		})
	}
	review.Sanitization = result
}

// SanitizeText scrubs a standalone string with the same passes. Used for
// fields that exist outside a review document.
func (s *Sanitizer) SanitizeText(text string) (string, []types.SanitizationAction) {
	st := &state{cfg: s.cfg}
	out := st.scrub(text, "$")
	return out, st.actions
}

// state accumulates actions across one sanitization run.
type state struct {
	cfg     config.SanitizerConfig
	actions []types.SanitizationAction
	fields  int
}

// walk rewrites every string in a decoded JSON tree.
func (st *state) walk(node interface{}, path string) interface{} {
	switch v := node.(type) {
	case string:
		st.fields++
		return st.scrub(v, path)
	case map[string]interface{}:
		for k, child := range v {
			v[k] = st.walk(child, path+"."+k)
		}
		return v
	case []interface{}:
		for i, child := range v {
			v[i] = st.walk(child, fmt.Sprintf("%s[%d]", path, i))
		}
		return v
	default:
		return node
	}
}

// scrub applies the passes enabled by the configured level, in order:
// secrets, tool syntax, PII, paths, content.
func (st *state) scrub(text, path string) string {
	if text == "" {
		return text
	}

	// Secrets and tool syntax apply at every level.
	text = st.applyPatterns(text, path, secretPatterns)
	text = st.applyPatterns(text, path, toolPatterns)

	if st.cfg.Level == config.SanitizerMinimal {
		return text
	}

	text = st.applyPatterns(text, path, piiPatterns)
	text = st.anonymizePaths(text, path)

	if st.cfg.Level == config.SanitizerStrict {
		text = st.applyPatterns(text, path, contentPatterns)
	}
	return text
}

func (st *state) applyPatterns(text, path string, patterns []compiledPattern) string {
	for _, p := range patterns {
		matches := p.Regex.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			st.actions = append(st.actions, types.SanitizationAction{
				Kind:        string(p.Pass),
				Location:    path,
				Replacement: p.Replacement,
				Confidence:  confidence(p, m),
			})
		}
		text = p.Regex.ReplaceAllString(text, p.Replacement)
	}
	return text
}

// anonymizePaths replaces user-home prefixes and contracts paths deeper than
// MaxPathDepth with an ellipsis segment.
func (st *state) anonymizePaths(text, path string) string {
	if homePathRe.MatchString(text) {
		for range homePathRe.FindAllString(text, -1) {
			st.actions = append(st.actions, types.SanitizationAction{
				Kind:        string(PassPath),
				Location:    path,
				Replacement: "~",
				Confidence:  90,
			})
		}
		text = homePathRe.ReplaceAllString(text, "~")
	}

	return pathRe.ReplaceAllStringFunc(text, func(p string) string {
		segs := strings.Split(p, "/")
		// Leading "" for absolute paths, or "~".
		depth := len(segs)
		if segs[0] == "" || segs[0] == "~" {
			depth--
		}
		if depth <= st.cfg.MaxPathDepth {
			return p
		}
		head := segs[:2]
		tail := segs[len(segs)-2:]
		contracted := strings.Join(head, "/") + "/…/" + strings.Join(tail, "/")
		if contracted == p {
			return p
		}
		st.actions = append(st.actions, types.SanitizationAction{
			Kind:        string(PassPath),
			Location:    path,
			Replacement: contracted,
			Confidence:  80,
		})
		return contracted
	})
}

// confidence raises the base confidence by match length and format
// specificity (delimiters, mixed classes).
func confidence(p compiledPattern, match string) int {
	c := p.BaseConfidence
	if len(match) >= 32 {
		c += 10
	} else if len(match) >= 20 {
		c += 5
	}
	if strings.ContainsAny(match, "-_@.") {
		c += 3
	}
	if c > 100 {
		c = 100
	}
	return c
}
