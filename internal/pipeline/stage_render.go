package pipeline

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/dexbuilder/internal/assemble"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
	"git.home.luguber.info/inful/dexbuilder/internal/render"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
)

// stageRenderEntries renders one XML fragment per entry. Body links target
// only entries present in this batch and body images only artifacts the image
// stage produced, so a fragment can never reference something the bundle
// lacks.
func stageRenderEntries(ctx context.Context, rs *RunState) error {
	renderer := render.NewRenderer(rs.Entries, rs.Outputs)

	var failed int
	for _, e := range rs.Entries {
		select {
		case <-ctx.Done():
			return newCanceledStageError(StageRenderEntries, ctx.Err())
		default:
		}
		xml, err := renderer.Entry(e)
		if err != nil {
			failed++
			rs.Report.AddEntryIssue(report.IssueGenericStageError, string(StageRenderEntries), report.SeverityWarning,
				e.ID.Display(), fmt.Sprintf("render: %v", err), nil)
			rs.Runner.log.Warn("entry render failed", logfields.Entry(e.ID.Display()), logfields.Error(err))
			continue
		}
		rs.Fragments = append(rs.Fragments, assemble.Fragment{ID: e.ID, XML: xml})
		rs.Report.Rendered++
	}

	if len(rs.Fragments) == 0 {
		return newFatalStageError(StageRenderEntries, fmt.Errorf("%w: no entries rendered", ErrNoEntries))
	}
	if failed > 0 {
		return newWarnStageError(StageRenderEntries, fmt.Errorf("%w: %d of %d entries failed to render", ErrRender, failed, len(rs.Entries)))
	}
	return nil
}
