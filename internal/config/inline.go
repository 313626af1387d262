package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ganaudit/internal/types"
)

// Inline configuration: callers may embed a fenced block labeled gan-config
// in the artifact text. Recognized keys override the session config for the
// rest of the session; unknown keys warn and are ignored; out-of-range values
// clamp and warn.
//
//	```gan-config
//	threshold=90
//	scope=paths
//	paths=internal/queue,internal/store
//	```

var inlineBlockRe = regexp.MustCompile("(?s)```gan-config\\s*\\n(.*?)```")

// InlineResult is the outcome of extracting and merging an inline block.
type InlineResult struct {
	Found    bool
	Changed  bool
	Config   types.SessionConfig
	Warnings []types.Warning
}

// ExtractInline locates the first gan-config block in the text and merges it
// over base. A malformed block yields base unchanged plus warnings.
func ExtractInline(text string, base types.SessionConfig) InlineResult {
	res := InlineResult{Config: base}

	m := inlineBlockRe.FindStringSubmatch(text)
	if m == nil {
		return res
	}
	res.Found = true

	for _, rawLine := range strings.Split(m[1], "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			res.warn("malformed line %q, expected key=value", line)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "task":
			if value != "" && value != res.Config.Task {
				res.Config.Task = value
				res.Changed = true
			}
		case "scope":
			switch types.Scope(value) {
			case types.ScopeDiff, types.ScopePaths, types.ScopeWorkspace:
				if types.Scope(value) != res.Config.Scope {
					res.Config.Scope = types.Scope(value)
					res.Changed = true
				}
			default:
				res.warn("invalid scope %q, keeping %q", value, res.Config.Scope)
			}
		case "paths":
			paths := splitCSV(value)
			if len(paths) > 0 {
				res.Config.Paths = paths
				res.Changed = true
			}
		case "threshold":
			n, err := strconv.Atoi(value)
			if err != nil {
				res.warn("invalid threshold %q", value)
				break
			}
			clamped := clampInt(n, 0, 100)
			if clamped != n {
				res.warn("threshold %d clamped to %d", n, clamped)
			}
			if clamped != res.Config.Threshold {
				res.Config.Threshold = clamped
				res.Changed = true
			}
		case "maxCycles":
			n, err := strconv.Atoi(value)
			if err != nil {
				res.warn("invalid maxCycles %q", value)
				break
			}
			if n < 1 {
				res.warn("maxCycles %d clamped to 1", n)
				n = 1
			}
			if n != res.Config.MaxCycles {
				res.Config.MaxCycles = n
				res.Changed = true
			}
		case "candidates":
			n, err := strconv.Atoi(value)
			if err != nil {
				res.warn("invalid candidates %q", value)
				break
			}
			if n < 1 {
				res.warn("candidates %d clamped to 1", n)
				n = 1
			}
			if n != res.Config.Candidates {
				res.Config.Candidates = n
				res.Changed = true
			}
		case "judges":
			judges := splitCSV(value)
			if len(judges) > 0 {
				res.Config.Judges = judges
				res.Changed = true
			}
		case "applyFixes":
			b, err := strconv.ParseBool(value)
			if err != nil {
				res.warn("invalid applyFixes %q", value)
				break
			}
			if b != res.Config.ApplyFixes {
				res.Config.ApplyFixes = b
				res.Changed = true
			}
		default:
			res.warn("unknown key %q ignored", key)
		}
	}

	// scope=paths without paths is unusable; fall back to the base scope.
	if res.Config.Scope == types.ScopePaths && len(res.Config.Paths) == 0 {
		res.warn("scope=paths requires paths, reverting to %q", base.Scope)
		res.Config.Scope = base.Scope
	}

	return res
}

func (r *InlineResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, types.Warning{
		Code:      types.WarnConfig,
		Message:   fmt.Sprintf(format, args...),
		Component: "inline-config",
	})
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
