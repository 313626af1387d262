package output

import (
	"fmt"
	"sort"
	"strings"

	"ganaudit/internal/types"
)

// Task prioritization strategies. severity_first is the default; the
// alternatives reorder by estimated impact, effort, or dependency depth.
const (
	PrioritizeSeverityFirst   = "severity_first"
	PrioritizeImpactBased     = "impact_based"
	PrioritizeEffortWeighted  = "effort_weighted"
	PrioritizeDependencyAware = "dependency_aware"
)

// categoryEffort maps task categories to base effort minutes; a complexity
// multiplier scales them per task.
var categoryEffort = map[string]int{
	"security":        45,
	"correctness":     30,
	"testing":         25,
	"traceability":    20,
	"maintainability": 15,
	"documentation":   10,
}

// buildTasks derives follow-up tasks from critical issues, evidence entries,
// unmet acceptance criteria, and missing tests.
func (b *Builder) buildTasks(in Input, evidence types.EvidenceTable, trace types.TraceabilityMatrix) types.FollowUpTaskList {
	var tasks []types.FollowUpTask
	n := 0
	add := func(title, category string, priority int, complexity float64, evidenceIDs ...string) {
		n++
		base := categoryEffort[category]
		if base == 0 {
			base = 20
		}
		tasks = append(tasks, types.FollowUpTask{
			ID:            fmt.Sprintf("TASK-%03d", n),
			Title:         title,
			Category:      category,
			Priority:      priority,
			EffortMinutes: int(float64(base) * complexity),
			EvidenceIDs:   evidenceIDs,
		})
	}

	for _, e := range evidence.Entries {
		category := categorize(e.Type)
		complexity := 1.0
		switch e.Severity {
		case types.SeverityCritical:
			add(fmt.Sprintf("fix %s at %s", e.Issue, e.Location), category, 1, 1.5, e.ID)
		case types.SeverityMajor:
			add(fmt.Sprintf("fix %s at %s", e.Issue, e.Location), category, 2, complexity, e.ID)
		case types.SeverityMinor:
			add(fmt.Sprintf("clean up %s at %s", e.Issue, e.Location), category, 3, 0.5, e.ID)
		}
	}
	for _, ac := range trace.UnmetACs {
		add(fmt.Sprintf("cover %s: %s", ac.ACID, ac.Reason), "traceability", 2, 1.2)
	}
	for _, mt := range trace.MissingTests {
		add(mt.Suggested, "testing", 2, 1.0)
	}

	sortTasks(tasks, PrioritizeSeverityFirst)

	summary := "no follow-up work identified"
	if len(tasks) > 0 {
		p1 := 0
		for _, t := range tasks {
			if t.Priority == 1 {
				p1++
			}
		}
		summary = fmt.Sprintf("%d tasks (%d blocking)", len(tasks), p1)
	}
	return types.FollowUpTaskList{Tasks: tasks, Summary: summary}
}

// sortTasks orders tasks by the chosen strategy. Ties keep insertion order.
func sortTasks(tasks []types.FollowUpTask, strategy string) {
	switch strategy {
	case PrioritizeEffortWeighted:
		sort.SliceStable(tasks, func(i, j int) bool {
			if tasks[i].Priority != tasks[j].Priority {
				return tasks[i].Priority < tasks[j].Priority
			}
			return tasks[i].EffortMinutes < tasks[j].EffortMinutes
		})
	case PrioritizeImpactBased:
		sort.SliceStable(tasks, func(i, j int) bool {
			return impactRank(tasks[i].Category) < impactRank(tasks[j].Category)
		})
	case PrioritizeDependencyAware:
		// Evidence-linked tasks first: later work depends on fixed findings.
		sort.SliceStable(tasks, func(i, j int) bool {
			li, lj := len(tasks[i].EvidenceIDs) > 0, len(tasks[j].EvidenceIDs) > 0
			if li != lj {
				return li
			}
			return tasks[i].Priority < tasks[j].Priority
		})
	default: // severity_first
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority < tasks[j].Priority
		})
	}
}

func impactRank(category string) int {
	switch category {
	case "security":
		return 0
	case "correctness":
		return 1
	case "testing":
		return 2
	case "traceability":
		return 3
	default:
		return 4
	}
}

// categorize folds finding types into task categories.
func categorize(findingType string) string {
	t := strings.ToLower(findingType)
	switch {
	case strings.Contains(t, "secret"), strings.Contains(t, "sql"), strings.Contains(t, "security"), strings.Contains(t, "injection"):
		return "security"
	case strings.Contains(t, "error"), strings.Contains(t, "panic"), strings.Contains(t, "correctness"), strings.Contains(t, "logic"):
		return "correctness"
	case strings.Contains(t, "test"), strings.Contains(t, "sleep"):
		return "testing"
	case strings.Contains(t, "doc"):
		return "documentation"
	default:
		return "maintainability"
	}
}
