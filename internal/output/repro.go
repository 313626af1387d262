package output

import (
	"fmt"

	"ganaudit/internal/judge"
	"ganaudit/internal/types"
)

// buildRepro derives the reproduction guide: numbered steps that surface the
// reported findings, verification steps with success criteria, and the
// command lists collected from the step evaluators.
func (b *Builder) buildRepro(in Input, evidence types.EvidenceTable) types.ReproductionGuide {
	guide := types.ReproductionGuide{}

	n := 0
	addStep := func(description, command, expected string) {
		n++
		guide.ReproductionSteps = append(guide.ReproductionSteps, types.ReproStep{
			Number:         n,
			Description:    description,
			Command:        command,
			ExpectedOutput: expected,
		})
	}

	addStep("check out the candidate revision under review", "", "")
	switch in.Session.Scope {
	case types.ScopePaths:
		for _, p := range in.Session.Paths {
			addStep(fmt.Sprintf("inspect %s", p), "", "")
		}
	case types.ScopeDiff:
		addStep("review the working-tree diff that produced this candidate", "", "")
	}

	// One step per critical finding, capped to keep the guide readable.
	criticalSteps := 0
	for _, e := range evidence.Entries {
		if e.Severity != types.SeverityCritical || criticalSteps >= 5 {
			continue
		}
		criticalSteps++
		addStep(
			fmt.Sprintf("reproduce %s: %s", e.ID, e.Issue),
			fmt.Sprintf("open %s", e.Location),
			e.Proof,
		)
	}

	// Verification steps mirror the fix expectations.
	v := 0
	addVerify := func(description, command, success string, failures ...string) {
		v++
		guide.VerificationSteps = append(guide.VerificationSteps, types.VerificationStep{
			Number:            v,
			Description:       description,
			Command:           command,
			SuccessCriteria:   success,
			FailureIndicators: failures,
		})
	}
	addVerify(
		"run the full test suite",
		"run the project's test command",
		"all tests pass",
		"failing assertions", "build errors",
	)
	if criticalSteps > 0 {
		addVerify(
			"confirm the critical findings no longer reproduce",
			"re-run the reproduction steps above",
			"none of the cited locations still exhibit the issue",
			"the cited proof lines still appear in the artifact",
		)
	}

	// Commands from step evaluators, grouped by their declared step.
	for _, sr := range in.StepResults {
		switch sr.Step {
		case judge.StepTests:
			guide.TestCommands = append(guide.TestCommands, sr.NextActions...)
		case judge.StepConform, judge.StepStatic:
			guide.ValidationCommands = append(guide.ValidationCommands, sr.NextActions...)
		}
	}
	return guide
}
