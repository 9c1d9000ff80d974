package assemble

import (
	"fmt"
	"os"
	"time"

	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
)

// beginStaging creates the isolated staging directory for atomic output.
// Staging is a sibling of the output directory so the promotion rename stays
// on one filesystem.
func (a *Assembler) beginStaging() error {
	stage := a.outputDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clear stale staging: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return err
	}
	a.stageDir = stage
	a.log.Debug("initialized staging directory", "staging", stage, "final", a.outputDir)
	return nil
}

// finalizeStaging atomically promotes the staging directory:
//  1. move any existing output to <output>.prev,
//  2. rename staging -> output,
//  3. remove the backup best-effort in the background.
func (a *Assembler) finalizeStaging() error {
	if a.stageDir == "" {
		return fmt.Errorf("no staging directory initialized")
	}
	if _, err := os.Stat(a.stageDir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}

	prev := a.outputDir + ".prev"
	if _, err := os.Stat(prev); err == nil {
		// May be held open by a viewer; retry briefly before giving up.
		for i := 0; i < 3; i++ {
			if err := os.RemoveAll(prev); err == nil {
				break
			}
			if i < 2 {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
	if _, err := os.Stat(a.outputDir); err == nil {
		if err := os.Rename(a.outputDir, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(a.stageDir, a.outputDir); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	a.stageDir = ""
	go func(p string) {
		if err := os.RemoveAll(p); err != nil {
			a.log.Warn("failed to remove previous output backup", logfields.Path(p), logfields.Error(err))
		}
	}(prev)
	a.log.Info("promoted staging directory", logfields.Path(a.outputDir))
	return nil
}

// abortStaging removes the staging directory after a failed assembly so no
// orphaned temp trees accumulate. The promoted output is never touched here.
func (a *Assembler) abortStaging() {
	if a.stageDir == "" {
		return
	}
	dir := a.stageDir
	a.stageDir = ""
	if err := os.RemoveAll(dir); err != nil {
		a.log.Warn("failed to remove staging directory after abort", "staging", dir, logfields.Error(err))
	}
}
