package output

import (
	"fmt"
	"sort"
	"strings"

	"ganaudit/internal/judge"
	"ganaudit/internal/types"
)

// typeImportance orders finding types within a severity band. Unlisted types
// sort after listed ones, alphabetically.
var typeImportance = map[string]int{
	"hardcoded-secret": 0,
	"sql-concat":       1,
	"security":         2,
	"correctness":      3,
	"swallowed-error":  4,
	"panic-in-library": 5,
	"performance":      6,
	"testing":          7,
	"sleep-in-test":    8,
	"maintainability":  9,
}

// buildEvidence collects findings from the judge and the step evaluators,
// deduplicates by (type, location, issue), sorts by severity then
// type-importance, and caps the table.
func (b *Builder) buildEvidence(in Input) (types.EvidenceTable, error) {
	var all []judge.RawFinding
	all = append(all, in.Raw.Findings...)
	for _, sr := range in.StepResults {
		all = append(all, sr.Evidence...)
	}

	type dedupeKey struct {
		typ, loc, issue string
	}
	seen := make(map[dedupeKey]struct{}, len(all))
	var unique []judge.RawFinding
	for _, f := range all {
		k := dedupeKey{typ: f.Type, loc: f.Location, issue: f.Issue}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, f)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		a, bb := unique[i], unique[j]
		if a.Severity.Rank() != bb.Severity.Rank() {
			return a.Severity.Rank() < bb.Severity.Rank()
		}
		ia, oka := typeImportance[a.Type]
		ib, okb := typeImportance[bb.Type]
		switch {
		case oka && okb:
			if ia != ib {
				return ia < ib
			}
		case oka != okb:
			return oka
		}
		if a.Type != bb.Type {
			return a.Type < bb.Type
		}
		return a.Location < bb.Location
	})

	truncated := 0
	if len(unique) > b.cfg.MaxEvidence {
		truncated = len(unique) - b.cfg.MaxEvidence
		unique = unique[:b.cfg.MaxEvidence]
	}

	table := types.EvidenceTable{}
	counts := map[types.Severity]int{}
	for i, f := range unique {
		counts[f.Severity]++
		table.Entries = append(table.Entries, types.EvidenceEntry{
			ID:         fmt.Sprintf("EV-%03d", i+1),
			Issue:      f.Issue,
			Type:       f.Type,
			Severity:   f.Severity,
			Location:   f.Location,
			Proof:      f.Proof,
			FixSummary: f.FixSummary,
		})
	}

	var parts []string
	for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityMajor, types.SeverityMinor} {
		if counts[sev] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[sev], strings.ToLower(string(sev))))
		}
	}
	if len(parts) == 0 {
		table.Summary = "no findings"
	} else {
		table.Summary = strings.Join(parts, ", ")
		if truncated > 0 {
			table.Summary += fmt.Sprintf(" (%d further findings truncated)", truncated)
		}
	}
	return table, nil
}
