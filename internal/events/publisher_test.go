package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dexbuilder/internal/config"
)

func TestSubjectFor(t *testing.T) {
	require.Equal(t, "dexbuilder.run.started", subjectFor("dexbuilder", "run.started"))
	require.Equal(t, "run.issue", subjectFor("", "run.issue"))
}

func TestNilPublisherDropsEvents(t *testing.T) {
	var p *Publisher
	require.NoError(t, p.RunStarted(&RunStartedEvent{RunID: "r1"}))
	require.NoError(t, p.RunCompleted(&RunCompletedEvent{RunID: "r1"}))
	require.NoError(t, p.Issue(&IssueEvent{RunID: "r1"}))
	require.NoError(t, p.Close())
}

func TestMaybeNewPublisherDisabled(t *testing.T) {
	p, err := MaybeNewPublisher(&config.EventsConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = MaybeNewPublisher(nil)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestNewPublisherRequiresEnabled(t *testing.T) {
	_, err := NewPublisher(&config.EventsConfig{Enabled: false})
	require.Error(t, err)

	_, err = NewPublisher(nil)
	require.Error(t, err)
}

func TestRunCompletedEventFields(t *testing.T) {
	ev := RunCompletedEvent{
		RunID:        "run-42",
		Quality:      "high",
		Outcome:      "warning",
		IndexEntries: 151,
		ImagesBuilt:  140,
		Warnings:     2,
		DurationMS:   1234,
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "run-42", decoded["run_id"])
	require.Equal(t, "warning", decoded["outcome"])
	require.Equal(t, float64(151), decoded["index_entries"])
	require.Equal(t, float64(1234), decoded["duration_ms"])
	require.NotContains(t, decoded, "document_path")
}
