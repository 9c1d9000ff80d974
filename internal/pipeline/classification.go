package pipeline

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/dexbuilder/internal/fetch"
	"git.home.luguber.info/inful/dexbuilder/internal/metrics"
	"git.home.luguber.info/inful/dexbuilder/internal/parse"
	"git.home.luguber.info/inful/dexbuilder/internal/report"
)

// Sentinel causes for stage-level rollup errors. Stages wrap these so the
// classifier and Transient() can tell degraded-but-completed stages from
// structural failures.
var (
	ErrFetch     = errors.New("entry fetch failures")
	ErrImages    = errors.New("image build failures")
	ErrRender    = errors.New("entry render failures")
	ErrNoEntries = errors.New("no usable entries")
)

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Transient reports whether the underlying error condition is likely
// transient. Partial fetch and image failures can resolve on a re-run; a
// malformed index or a broken assembly cannot.
func (e *StageError) Transient() bool {
	if e == nil {
		return false
	}
	if e.Kind == StageErrorCanceled {
		return false
	}
	cause := e.Err
	switch e.Stage {
	case StageFetchPages:
		if errors.Is(cause, ErrFetch) {
			return true
		}
		var fe *fetch.Error
		if errors.As(cause, &fe) {
			return fe.Retryable()
		}
	case StageBuildImages:
		if errors.Is(cause, ErrImages) {
			return true
		}
	case StageResolveRefs, StageRenderEntries, StageAssemble:
		return false
	}
	return false
}

// Helper constructors.
func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageResult enumerates per-stage classification outcomes. Mirrors
// metrics.ResultLabel values to simplify emission.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

func resultLabel(r StageResult) metrics.ResultLabel {
	switch r {
	case StageResultWarning:
		return metrics.ResultWarning
	case StageResultFatal:
		return metrics.ResultFatal
	case StageResultCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultSuccess
	}
}

// StageOutcome is the normalized result of stage execution.
type StageOutcome struct {
	Stage     StageName
	Error     *StageError
	Result    StageResult
	IssueCode report.IssueCode
	Severity  report.IssueSeverity
	Transient bool
	Abort     bool
}

// classifyStageResult converts a raw error from a stage into a StageOutcome.
func classifyStageResult(stage StageName, err error) StageOutcome {
	if err == nil {
		return StageOutcome{Stage: stage, Result: StageResultSuccess}
	}

	var se *StageError
	if !errors.As(err, &se) {
		// Not a StageError - treat as fatal
		se = newFatalStageError(stage, err)
	}

	if se.Kind == StageErrorCanceled {
		return StageOutcome{
			Stage:     stage,
			Error:     se,
			Result:    StageResultCanceled,
			IssueCode: report.IssueCanceled,
			Severity:  report.SeverityError,
			Abort:     true,
		}
	}

	return StageOutcome{
		Stage:     stage,
		Error:     se,
		Result:    resultFromStageErrorKind(se.Kind),
		IssueCode: classifyIssueCode(se),
		Severity:  severityFromStageErrorKind(se.Kind),
		Transient: se.Transient(),
		Abort:     se.Kind == StageErrorFatal,
	}
}

// resultFromStageErrorKind maps a StageErrorKind to a StageResult.
func resultFromStageErrorKind(k StageErrorKind) StageResult {
	switch k {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}

// severityFromStageErrorKind maps StageErrorKind to IssueSeverity.
func severityFromStageErrorKind(k StageErrorKind) report.IssueSeverity {
	if k == StageErrorWarning {
		return report.SeverityWarning
	}
	return report.SeverityError
}

// classifyIssueCode determines the issue code based on stage type and error.
func classifyIssueCode(se *StageError) report.IssueCode {
	if errors.Is(se.Err, ErrNoEntries) {
		return report.IssueNoEntries
	}
	switch se.Stage {
	case StageFetchPages:
		var pe *parse.Error
		if errors.As(se.Err, &pe) {
			return report.IssueParseFailure
		}
		return report.IssueFetchFailure
	case StageBuildImages:
		return report.IssueImageFailure
	case StageAssemble:
		return report.IssueAssemblyFailure
	default:
		return report.IssueGenericStageError
	}
}
