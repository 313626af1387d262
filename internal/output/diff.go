package output

import (
	"fmt"
	"sort"
	"strings"

	"ganaudit/internal/types"
)

// buildDiffs parses the judge's proposed unified diff, validates it against
// the configured size limits, and orders test-file sections first.
func (b *Builder) buildDiffs(in Input) ([]types.ProposedDiff, error) {
	text := strings.TrimSpace(in.Raw.ProposedDiff)
	if text == "" {
		return []types.ProposedDiff{}, nil
	}

	sections := splitDiffSections(text)
	if len(sections) == 0 {
		return []types.ProposedDiff{}, nil
	}

	// Test files first, otherwise keep the judge's order.
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].isTest && !sections[j].isTest
	})

	var (
		changes    []types.FileChange
		totalLines int
		maxHunk    int
		parts      []string
	)
	for _, sec := range sections {
		changes = append(changes, types.FileChange{
			Path:       sec.path,
			Additions:  sec.additions,
			Deletions:  sec.deletions,
			IsTestFile: sec.isTest,
		})
		totalLines += sec.additions + sec.deletions
		if sec.maxHunk > maxHunk {
			maxHunk = sec.maxHunk
		}
		parts = append(parts, sec.text)
	}

	validation := types.DiffValidation{
		Valid:      true,
		TotalLines: totalLines,
		FileCount:  len(sections),
	}
	if totalLines > b.cfg.MaxLinesPerDiff {
		validation.Valid = false
		validation.Violations = append(validation.Violations,
			fmt.Sprintf("diff touches %d lines, limit %d", totalLines, b.cfg.MaxLinesPerDiff))
	}
	if len(sections) > b.cfg.MaxFilesPerDiff {
		validation.Valid = false
		validation.Violations = append(validation.Violations,
			fmt.Sprintf("diff touches %d files, limit %d", len(sections), b.cfg.MaxFilesPerDiff))
	}
	if maxHunk > b.cfg.MaxHunkSize {
		validation.Valid = false
		validation.Violations = append(validation.Violations,
			fmt.Sprintf("largest hunk is %d lines, limit %d", maxHunk, b.cfg.MaxHunkSize))
	}

	return []types.ProposedDiff{{
		UnifiedDiff:          strings.Join(parts, "\n"),
		FileChanges:          changes,
		Validation:           validation,
		VerificationCommands: verificationCommands(changes),
	}}, nil
}

type diffSection struct {
	path      string
	text      string
	additions int
	deletions int
	maxHunk   int
	isTest    bool
}

// splitDiffSections breaks a unified diff into per-file sections and counts
// added/removed lines and the largest hunk per section.
func splitDiffSections(text string) []diffSection {
	lines := strings.Split(text, "\n")
	var sections []diffSection
	var cur *diffSection
	hunkLines := 0

	flushHunk := func() {
		if cur != nil && hunkLines > cur.maxHunk {
			cur.maxHunk = hunkLines
		}
		hunkLines = 0
	}
	flush := func() {
		flushHunk()
		if cur != nil && cur.path != "" {
			cur.isTest = isTestPath(cur.path)
			sections = append(sections, *cur)
		}
		cur = nil
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			cur = &diffSection{}
			cur.text += line + "\n"
		case strings.HasPrefix(line, "--- "):
			// A new "---" header after a completed section starts a new file.
			if cur != nil && cur.path != "" {
				flush()
			}
			if cur == nil {
				cur = &diffSection{}
			}
			cur.text += line + "\n"
		case strings.HasPrefix(line, "+++ "):
			if cur == nil {
				cur = &diffSection{}
			}
			cur.path = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(line, "+++ ")), "b/"), "./")
			cur.text += line + "\n"
		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				cur = &diffSection{}
			}
			flushHunk()
			cur.text += line + "\n"
		case strings.HasPrefix(line, "+"):
			if cur != nil {
				cur.additions++
				hunkLines++
				cur.text += line + "\n"
			}
		case strings.HasPrefix(line, "-"):
			if cur != nil {
				cur.deletions++
				hunkLines++
				cur.text += line + "\n"
			}
		default:
			if cur != nil {
				hunkLines++
				cur.text += line + "\n"
			}
		}
	}
	flush()

	for i := range sections {
		sections[i].text = strings.TrimRight(sections[i].text, "\n")
	}
	return sections
}

func isTestPath(path string) bool {
	base := strings.ToLower(path)
	return strings.Contains(base, "_test.") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.Contains(base, "/test/") ||
		strings.HasPrefix(base, "test/") ||
		strings.Contains(base, "/tests/")
}

// verificationCommands proposes commands that exercise the touched files.
func verificationCommands(changes []types.FileChange) []string {
	cmds := []string{"run the project test suite and confirm it passes"}
	for _, c := range changes {
		if c.IsTestFile {
			cmds = append(cmds, fmt.Sprintf("run the tests in %s in isolation", c.Path))
		}
	}
	cmds = append(cmds, "re-run the audit on the patched artifact and confirm the findings clear")
	return cmds
}
