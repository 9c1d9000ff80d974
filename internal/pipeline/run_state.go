package pipeline

import (
	"git.home.luguber.info/inful/dexbuilder/internal/assemble"
	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
	"git.home.luguber.info/inful/dexbuilder/internal/parse"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
	"git.home.luguber.info/inful/dexbuilder/internal/resolve"
)

// RunState carries mutable state across stages. Each stage reads what its
// predecessors left and appends its own product; nothing here is shared
// outside one run.
type RunState struct {
	Runner     *Runner
	Report     *report.RunReport
	Index      *parse.Index
	Entries    []*catalog.Entry // parsed entries, ascending by identifier
	Resolution *resolve.Result
	Outputs    map[string]string // image source key -> artifact file name
	Images     []assemble.Image
	Fragments  []assemble.Fragment
}

// newRunState constructs a RunState.
func newRunState(r *Runner, rep *report.RunReport) *RunState {
	return &RunState{Runner: r, Report: rep}
}
