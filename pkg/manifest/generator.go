package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/aggregator"
	"github.com/dtnitsch/lens-scraper/pkg/artifact_manager"
	"github.com/dtnitsch/lens-scraper/pkg/detector"
	"github.com/dtnitsch/lens-scraper/pkg/lens"
	"gopkg.in/yaml.v3"
)

// Input is everything a pipeline run produced. Report and Result may be nil
// when the run stopped before that stage.
type Input struct {
	Artifacts   artifact_manager.Artifacts
	Report      *lens.Report
	Links       []models.LinkRecord
	Result      *aggregator.Result
	Description string
	Err         error
	Search      time.Duration
	Aggregate   time.Duration
	Summarize   time.Duration
	Total       time.Duration
}

// Build creates a Run manifest from the outputs of each stage.
func Build(in Input) *Run {
	run := &Run{
		RequestID:   in.Artifacts.RequestID,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Status:      StatusCompleted,
		Artifacts:   in.Artifacts,
		Description: in.Description,
		Timings: Timings{
			SearchMS:    in.Search.Milliseconds(),
			AggregateMS: in.Aggregate.Milliseconds(),
			SummarizeMS: in.Summarize.Milliseconds(),
			TotalMS:     in.Total.Milliseconds(),
		},
	}
	if in.Err != nil {
		run.Status = StatusFailed
		run.Error = in.Err.Error()
	}

	links := in.Links
	if in.Report != nil {
		for _, s := range in.Report.Steps {
			run.Steps = append(run.Steps, StepSummary{
				Step:      s.Step,
				OK:        s.OK,
				Reason:    s.Reason,
				ElapsedMS: s.Elapsed.Milliseconds(),
			})
		}
		if links == nil {
			links = in.Report.Links
		}
	}
	run.LinkCount = len(links)

	for i, l := range links {
		run.Sources = append(run.Sources, SourceSummary{Position: i, URL: l.URL, Description: l.Description, Status: "not_attempted"})
	}

	if in.Result == nil {
		classify(run.Sources)
		return run
	}

	run.CharCount = aggregator.RuneLen(in.Result.Text)
	run.Language = in.Result.Language
	run.Keywords = in.Result.Keywords

	for _, src := range in.Result.Sources {
		summary := SourceSummary{
			Position:     src.Position,
			URL:          src.URL,
			StatusCode:   src.StatusCode,
			ErrorMessage: src.Error,
			Chars:        src.Chars,
			ElapsedMS:    src.Elapsed.Milliseconds(),
		}
		switch {
		case src.Skipped:
			run.Skipped++
			summary.Status = "skipped"
		case src.Included:
			run.Fetched++
			run.SourceCount++
			summary.Status = "included"
		case src.Fetched:
			run.Fetched++
			summary.Status = "fetched"
		default:
			run.Failed++
			summary.Status = "failed"
		}
		if src.Position < len(run.Sources) {
			summary.Description = run.Sources[src.Position].Description
			run.Sources[src.Position] = summary
		} else {
			run.Sources = append(run.Sources, summary)
		}
	}
	classify(run.Sources)
	return run
}

func classify(sources []SourceSummary) {
	for i := range sources {
		c := detector.Classify(sources[i].URL)
		if c.Country == "unknown" {
			c.Country = ""
		}
		sources[i].Category = c.Category
		sources[i].Country = c.Country
	}
}

// Marshal encodes run as "json" (indented) or "yaml".
func Marshal(run *Run, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error marshalling manifest: %w", err)
		}
		return data, nil
	case "yaml":
		data, err := yaml.Marshal(run)
		if err != nil {
			return nil, fmt.Errorf("error marshalling manifest: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

// Save writes run to path, choosing the encoding from the file extension.
func Save(path string, run *Run) error {
	format := "json"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		format = "yaml"
	}
	data, err := Marshal(run, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error saving manifest: %w", err)
	}
	return nil
}
