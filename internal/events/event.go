package events

import "time"

// RunStartedEvent announces that a build run began.
type RunStartedEvent struct {
	RunID     string    `json:"run_id"`
	Quality   string    `json:"quality"`
	IndexURL  string    `json:"index_url"`
	Timestamp time.Time `json:"timestamp"`
}

// RunCompletedEvent carries the final counters of a finished run.
// Published on success and failure alike; Outcome distinguishes them.
type RunCompletedEvent struct {
	RunID         string `json:"run_id"`
	Quality       string `json:"quality"`
	Outcome       string `json:"outcome"` // success|warning|failed|canceled
	IndexEntries  int    `json:"index_entries"`
	ParsedEntries int    `json:"parsed_entries"`
	FailedEntries int    `json:"failed_entries"`
	ImagesBuilt   int    `json:"images_built"`
	ImagesReused  int    `json:"images_reused"`
	ImagesFailed  int    `json:"images_failed"`
	Errors        int    `json:"errors"`
	Warnings      int    `json:"warnings"`
	DocumentPath  string `json:"document_path,omitempty"`
	DurationMS    int64  `json:"duration_ms"`

	Timestamp time.Time `json:"timestamp"`
}

// IssueEvent mirrors a single report issue for downstream processing
// (e.g. opening a tracker ticket for persistent dangling references).
type IssueEvent struct {
	RunID    string `json:"run_id"`
	Code     string `json:"code"`
	Stage    string `json:"stage"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entry    string `json:"entry,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
