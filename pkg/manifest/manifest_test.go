package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/aggregator"
	"github.com/dtnitsch/lens-scraper/pkg/artifact_manager"
	"github.com/dtnitsch/lens-scraper/pkg/lens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleInput() Input {
	links := []models.LinkRecord{
		{URL: "https://example.com/a", Description: "Cats"},
		{URL: "https://www.google.com/search?q=x"},
		{URL: "https://example.org/b", Description: "Dogs"},
		{URL: "https://example.net/c"},
		{URL: "https://example.net/d"},
	}
	return Input{
		Artifacts: artifact_manager.Artifacts{RequestID: "req-1", CSV: "csv/results_req-1.csv"},
		Report: &lens.Report{
			Steps: []lens.StepResult{
				{Step: lens.StepLaunch, OK: true, Elapsed: 1200 * time.Millisecond},
				{Step: lens.StepConsent, OK: true, Reason: "no consent dialog"},
			},
			Links: links,
		},
		Result: &aggregator.Result{
			Text: "Source: example.com - Cats\nmeow",
			Sources: []aggregator.Source{
				{Position: 0, URL: links[0].URL, Fetched: true, Included: true, Chars: 4, StatusCode: 200},
				{Position: 1, URL: links[1].URL, Skipped: true},
				{Position: 2, URL: links[2].URL, StatusCode: 403, Error: "forbidden"},
				{Position: 3, URL: links[3].URL, Fetched: true, StatusCode: 200},
			},
			Keywords: []string{"meow:1"},
			Language: "English",
		},
		Description: "description: a cat",
		Total:       3 * time.Second,
	}
}

func TestBuild_Counts(t *testing.T) {
	run := Build(sampleInput())

	assert.Equal(t, "req-1", run.RequestID)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 5, run.LinkCount)
	assert.Equal(t, 2, run.Fetched)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.SourceCount)
	assert.Equal(t, 31, run.CharCount)
	assert.Equal(t, "English", run.Language)
	assert.Equal(t, []string{"meow:1"}, run.Keywords)
	assert.Equal(t, int64(3000), run.Timings.TotalMS)

	require.Len(t, run.Steps, 2)
	assert.Equal(t, int64(1200), run.Steps[0].ElapsedMS)

	require.Len(t, run.Sources, 5)
	statuses := make([]string, len(run.Sources))
	for i, s := range run.Sources {
		statuses[i] = s.Status
	}
	assert.Equal(t, []string{"included", "skipped", "failed", "fetched", "not_attempted"}, statuses)
	assert.Equal(t, "Dogs", run.Sources[2].Description)
	assert.Equal(t, 403, run.Sources[2].StatusCode)
	assert.Equal(t, "general", run.Sources[0].Category)
	assert.Empty(t, run.Sources[0].Country)
}

func TestBuild_FailedBeforeAggregation(t *testing.T) {
	in := sampleInput()
	in.Result = nil
	in.Report.Links = nil
	in.Err = errors.New("search entry not found")

	run := Build(in)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "search entry not found", run.Error)
	assert.Zero(t, run.LinkCount)
	assert.Empty(t, run.Sources)
	assert.Len(t, run.Steps, 2)
}

func TestMarshal(t *testing.T) {
	run := Build(sampleInput())

	data, err := Marshal(run, "json")
	require.NoError(t, err)
	var fromJSON Run
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, run.RequestID, fromJSON.RequestID)

	data, err = Marshal(run, "YAML")
	require.NoError(t, err)
	var fromYAML Run
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, run.Description, fromYAML.Description)

	_, err = Marshal(run, "xml")
	assert.Error(t, err)
}

func TestSave_PicksFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	run := Build(sampleInput())

	yamlPath := filepath.Join(dir, "out", "run.yaml")
	require.NoError(t, Save(yamlPath, run))
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "request_id: req-1")

	jsonPath := filepath.Join(dir, "run.json")
	require.NoError(t, Save(jsonPath, run))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id": "req-1"`)
}
