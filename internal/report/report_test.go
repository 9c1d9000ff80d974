package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveOutcome(t *testing.T) {
	r := New("run-1", "fast")
	r.Finish()
	require.Equal(t, OutcomeSuccess, r.OutcomeT)

	r = New("run-2", "fast")
	r.AddIssue(IssueImageFailure, "build_images", SeverityWarning, "one image failed", false, errors.New("decode"))
	r.Finish()
	require.Equal(t, OutcomeWarning, r.OutcomeT)

	r = New("run-3", "fast")
	r.AddIssue(IssueAssemblyFailure, "assemble", SeverityError, "duplicate id", false, errors.New("dup"))
	r.Finish()
	require.Equal(t, OutcomeFailed, r.OutcomeT)
	require.Equal(t, "failed", r.Outcome)
}

func TestDeriveOutcomeCanceled(t *testing.T) {
	r := New("run-4", "high")
	wrapped := fmt.Errorf("stage fetch_pages: %w", context.Canceled)
	r.AddIssue(IssueCanceled, "fetch_pages", SeverityError, "canceled", false, wrapped)
	r.Finish()
	require.Equal(t, OutcomeCanceled, r.OutcomeT)
}

func TestAddEntryIssue(t *testing.T) {
	r := New("run-5", "fast")
	r.AddEntryIssue(IssueParseFailure, "fetch_pages", SeverityWarning, "#0042", "no info box", errors.New("parse"))

	require.Len(t, r.Issues, 1)
	require.Equal(t, "#0042", r.Issues[0].Entry)
	require.Len(t, r.Warnings, 1)
	require.Empty(t, r.Errors)
}

func TestPersist(t *testing.T) {
	dir := t.TempDir()
	r := New("run-6", "fast")
	r.IndexEntries = 3
	r.FetchedPages = 3
	r.ParsedEntries = 2
	r.FailedEntries = 1
	r.AddEntryIssue(IssueParseFailure, "fetch_pages", SeverityWarning, "#0003", "no info box", errors.New("parse"))
	r.Finish()

	require.NoError(t, r.Persist(dir))

	jb, err := os.ReadFile(filepath.Join(dir, "run-report.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jb, &decoded))
	require.Equal(t, "run-6", decoded["run_id"])
	require.Equal(t, "warning", decoded["outcome"])
	require.Equal(t, float64(3), decoded["index_entries"])
	require.Contains(t, decoded, "issues")

	txt, err := os.ReadFile(filepath.Join(dir, "run-report.txt"))
	require.NoError(t, err)
	require.Contains(t, string(txt), "outcome=warning")
	require.Contains(t, string(txt), "entries=3")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSummaryFields(t *testing.T) {
	r := New("run-7", "high")
	r.IndexEntries = 10
	r.ImagesBuilt = 4
	r.ImagesReused = 2
	r.ImagesFailed = 1
	r.Finish()

	s := r.Summary()
	require.Contains(t, s, "entries=10")
	require.Contains(t, s, "images=4/2/1")
	require.Contains(t, s, "outcome=success")
}
