package pipeline

import (
	"context"

	"git.home.luguber.info/inful/dexbuilder/internal/assemble"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
)

// stageAssemble builds the single dictionary document, stages it with the
// image tree, validates and promotes it. Any failure here is fatal and leaves
// the previous output untouched.
func stageAssemble(ctx context.Context, rs *RunState) error {
	asm := assemble.New(rs.Runner.cfg.Output.Directory)
	res, err := asm.Assemble(rs.Fragments, rs.Images)
	if err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageAssemble, ctx.Err())
		}
		return newFatalStageError(StageAssemble, err)
	}
	rs.Report.DocumentPath = res.DocumentPath
	rs.Runner.log.Info("bundle promoted",
		logfields.Path(res.DocumentPath), "images", res.Images, "bytes", res.DocumentBytes)
	return nil
}
