package judge

import (
	"context"
	"fmt"
	"strings"

	"ganaudit/internal/types"
)

// StaticContextBuilder returns a fixed pack regardless of scope. Used by the
// CLI and tests, and as the seam for real repository scanners.
type StaticContextBuilder struct {
	Pack string
}

// Build returns the configured pack, annotated with the requested scope so
// judges can tell what they were (not) given.
func (s StaticContextBuilder) Build(_ context.Context, cfg types.SessionConfig) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "scope: %s\n", cfg.Scope)
	if len(cfg.Paths) > 0 {
		fmt.Fprintf(&b, "paths: %s\n", strings.Join(cfg.Paths, ", "))
	}
	if s.Pack != "" {
		b.WriteString(s.Pack)
	}
	return b.String(), nil
}
