package pipeline

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
	"git.home.luguber.info/inful/dexbuilder/internal/resolve"
)

// stageResolveRefs runs the cross-reference resolver over the complete batch.
// Resolver findings are warnings: each one is recorded as its own issue and
// the run degrades to a warning outcome, but the build continues with the
// unresolvable relations left unrendered.
func stageResolveRefs(ctx context.Context, rs *RunState) error {
	res := resolve.Resolve(rs.Entries)
	rs.Resolution = res

	for _, issue := range res.Issues {
		code, entry := resolveIssueCode(issue)
		rs.Report.AddEntryIssue(code, string(StageResolveRefs), report.SeverityWarning,
			entry, issue.String(), errors.New(issue.String()))
	}
	if n := len(res.Issues); n > 0 {
		rs.Runner.log.Warn("reference resolution found issues", logfields.Count(n))
	}
	return nil
}

// resolveIssueCode maps a resolver finding onto the report taxonomy and the
// entry it should be attributed to. Cycles belong to every member, so they
// carry no single entry attribution.
func resolveIssueCode(i resolve.Issue) (report.IssueCode, string) {
	switch i.Kind {
	case resolve.IssueDanglingReference:
		return report.IssueDanglingReference, i.Entry.Display()
	case resolve.IssueEvolutionCycle:
		return report.IssueEvolutionCycle, ""
	case resolve.IssueAsymmetricEvolution:
		return report.IssueAsymmetricEvolution, i.Entry.Display()
	}
	return report.IssueGenericStageError, ""
}
