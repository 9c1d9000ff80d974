// Package report captures the machine- and human-readable outcome of one
// build run. The report is additive output: it is persisted next to the
// dictionary bundle but is not part of the packaging contract.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunOutcome is the typed enumeration of final run result states.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeWarning  RunOutcome = "warning"
	OutcomeFailed   RunOutcome = "failed"
	OutcomeCanceled RunOutcome = "canceled"
)

// IssueCode enumerates machine-parseable issue identifiers. Codes are a
// stable contract; only append, never reuse.
type IssueCode string

const (
	IssueFetchFailure        IssueCode = "FETCH_FAILURE"
	IssueParseFailure        IssueCode = "PARSE_FAILURE"
	IssueDanglingReference   IssueCode = "DANGLING_REFERENCE"
	IssueEvolutionCycle      IssueCode = "EVOLUTION_CYCLE"
	IssueAsymmetricEvolution IssueCode = "ASYMMETRIC_EVOLUTION"
	IssueImageFailure        IssueCode = "IMAGE_FAILURE"
	IssueAssemblyFailure     IssueCode = "ASSEMBLY_FAILURE"
	IssueNoEntries           IssueCode = "NO_ENTRIES"
	IssueCanceled            IssueCode = "BUILD_CANCELED"
	IssueGenericStageError   IssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a structured taxonomy entry describing a discrete problem.
// Message is human-friendly; Code + Stage allow automated handling; Entry
// carries the display identifier of the affected entry when one exists;
// Transient hints retry suitability.
type Issue struct {
	Code      IssueCode     `json:"code"`
	Stage     string        `json:"stage"`
	Severity  IssueSeverity `json:"severity"`
	Message   string        `json:"message"`
	Entry     string        `json:"entry,omitempty"`
	Transient bool          `json:"transient"`
}

// RunReport captures high-level metrics about one dictionary build run.
type RunReport struct {
	SchemaVersion   int
	RunID           string
	Quality         string
	IndexEntries    int
	FetchedPages    int
	ParsedEntries   int
	FailedEntries   int
	ImagesBuilt     int
	ImagesReused    int
	ImagesFailed    int
	Rendered        int
	DocumentPath    string
	Start           time.Time
	End             time.Time
	Errors          []error
	Warnings        []error
	StageDurations  map[string]time.Duration
	StageErrorKinds map[string]string
	Outcome         string
	OutcomeT        RunOutcome
	Issues          []Issue
}

func New(runID, quality string) *RunReport {
	return &RunReport{
		SchemaVersion:   1,
		RunID:           runID,
		Quality:         quality,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[string]string),
	}
}

// AddIssue appends a structured issue and mirrors it into the Errors/Warnings
// slices based on severity. Provide err=nil for purely informational issues.
func (r *RunReport) AddIssue(code IssueCode, stage string, severity IssueSeverity, msg string, transient bool, err error) {
	r.Issues = append(r.Issues, Issue{
		Code: code, Stage: stage, Severity: severity, Message: msg, Transient: transient,
	})
	if err != nil {
		switch severity {
		case SeverityError:
			r.Errors = append(r.Errors, err)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, err)
		}
	}
}

// AddEntryIssue is AddIssue for problems tied to one catalog entry.
func (r *RunReport) AddEntryIssue(code IssueCode, stage string, severity IssueSeverity, entry, msg string, err error) {
	r.Issues = append(r.Issues, Issue{
		Code: code, Stage: stage, Severity: severity, Message: msg, Entry: entry,
	})
	if err != nil {
		switch severity {
		case SeverityError:
			r.Errors = append(r.Errors, err)
		case SeverityWarning:
			r.Warnings = append(r.Warnings, err)
		}
	}
}

// Finish stamps the end time and derives the outcome.
func (r *RunReport) Finish() {
	r.End = time.Now()
	r.deriveOutcome()
}

// Summary returns a human-readable single-line summary.
func (r *RunReport) Summary() string {
	dur := r.End.Sub(r.Start)
	return fmt.Sprintf("entries=%d fetched=%d parsed=%d failed=%d images=%d/%d/%d rendered=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.IndexEntries, r.FetchedPages, r.ParsedEntries, r.FailedEntries,
		r.ImagesBuilt, r.ImagesReused, r.ImagesFailed, r.Rendered,
		dur.Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

func (r *RunReport) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if errors.Is(e, context.Canceled) {
				r.setOutcome(OutcomeCanceled)
				return
			}
		}
		r.setOutcome(OutcomeFailed)
		return
	}
	if len(r.Warnings) > 0 {
		r.setOutcome(OutcomeWarning)
		return
	}
	r.setOutcome(OutcomeSuccess)
}

func (r *RunReport) setOutcome(o RunOutcome) {
	r.OutcomeT = o
	r.Outcome = string(o)
}

// Persist writes the report atomically into the provided directory:
//
//	run-report.json  (machine readable)
//	run-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change the
// run outcome.
func (r *RunReport) Persist(root string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.sanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	if err := writeAtomic(filepath.Join(root, "run-report.json"), jb); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(root, "run-report.txt"), []byte(r.Summary()+"\n"))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename report: %w", err)
	}
	return nil
}

// sanitizedCopy returns a copy with error fields converted to strings for
// JSON friendliness.
func (r *RunReport) sanitizedCopy() *runReportSerializable {
	if r.StageDurations == nil {
		r.StageDurations = map[string]time.Duration{}
	}
	if r.StageErrorKinds == nil {
		r.StageErrorKinds = map[string]string{}
	}
	s := &runReportSerializable{
		SchemaVersion:   r.SchemaVersion,
		RunID:           r.RunID,
		Quality:         r.Quality,
		IndexEntries:    r.IndexEntries,
		FetchedPages:    r.FetchedPages,
		ParsedEntries:   r.ParsedEntries,
		FailedEntries:   r.FailedEntries,
		ImagesBuilt:     r.ImagesBuilt,
		ImagesReused:    r.ImagesReused,
		ImagesFailed:    r.ImagesFailed,
		Rendered:        r.Rendered,
		DocumentPath:    r.DocumentPath,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  r.StageDurations,
		StageErrorKinds: r.StageErrorKinds,
		Outcome:         r.Outcome,
		Issues:          r.Issues,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}

type runReportSerializable struct {
	SchemaVersion   int                      `json:"schema_version"`
	RunID           string                   `json:"run_id"`
	Quality         string                   `json:"quality"`
	IndexEntries    int                      `json:"index_entries"`
	FetchedPages    int                      `json:"fetched_pages"`
	ParsedEntries   int                      `json:"parsed_entries"`
	FailedEntries   int                      `json:"failed_entries"`
	ImagesBuilt     int                      `json:"images_built"`
	ImagesReused    int                      `json:"images_reused"`
	ImagesFailed    int                      `json:"images_failed"`
	Rendered        int                      `json:"rendered"`
	DocumentPath    string                   `json:"document_path,omitempty"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds"`
	Outcome         string                   `json:"outcome"`
	Issues          []Issue                  `json:"issues"`
}
