package pipeline

import (
	"log/slog"
	"time"

	"github.com/dtnitsch/lens-scraper/pkg/aggregator"
	"github.com/dtnitsch/lens-scraper/pkg/artifact_manager"
	"github.com/dtnitsch/lens-scraper/pkg/db"
	"github.com/dtnitsch/lens-scraper/pkg/lens"
	"github.com/dtnitsch/lens-scraper/pkg/manifest"
)

// recorder writes one run into the history database. A nil database or a
// failed insert turns every method into a no-op; history never fails a run.
type recorder struct {
	logger   *slog.Logger
	db       *db.DB
	searchID int64
}

func (p *Pipeline) startHistory(logger *slog.Logger, a artifact_manager.Artifacts) *recorder {
	r := &recorder{logger: logger}
	if p.history == nil {
		return r
	}
	id, err := p.history.CreateSearch(a.RequestID, a.Image)
	if err != nil {
		logger.Warn("Failed to record search", "error", err)
		return r
	}
	r.db = p.history
	r.searchID = id
	return r
}

func (r *recorder) steps(report *lens.Report) {
	if r.db == nil || report == nil {
		return
	}
	steps := make([]db.SearchStep, len(report.Steps))
	for i, s := range report.Steps {
		steps[i] = db.SearchStep{Step: s.Step, OK: s.OK, Reason: s.Reason, ElapsedMS: s.Elapsed.Milliseconds()}
	}
	if err := r.db.AddSearchSteps(r.searchID, steps); err != nil {
		r.logger.Warn("Failed to record search steps", "error", err)
	}
	for i, l := range report.Links {
		if err := r.db.AddSearchLink(r.searchID, db.SearchLink{Position: i, URL: l.URL, Description: l.Description}); err != nil {
			r.logger.Warn("Failed to record search link", "url", l.URL, "error", err)
		}
	}
}

// sources records every fetch attempt and marks the links that were fetched
// and included. Source positions follow the link file, which is the harvest order.
func (r *recorder) sources(report *lens.Report, result *aggregator.Result) {
	if r.db == nil || result == nil {
		return
	}
	for _, src := range result.Sources {
		if src.Skipped {
			continue
		}
		urlID, err := r.db.InsertURL(src.URL)
		if err != nil {
			r.logger.Warn("Failed to record url", "url", src.URL, "error", err)
			continue
		}
		if err := r.db.RecordAccess(urlID, accessRecord(src)); err != nil {
			r.logger.Warn("Failed to record access", "url", src.URL, "error", err)
		}

		link := db.SearchLink{Position: src.Position, URL: src.URL, Fetched: src.Fetched, Included: src.Included}
		if report != nil && src.Position < len(report.Links) {
			link.Description = report.Links[src.Position].Description
		}
		if err := r.db.AddSearchLink(r.searchID, link); err != nil {
			r.logger.Warn("Failed to record search link", "url", src.URL, "error", err)
		}
	}
}

func accessRecord(src aggregator.Source) db.AccessRecord {
	rec := db.AccessRecord{
		StatusCode: src.StatusCode,
		Success:    src.Fetched,
		Chars:      src.Chars,
		Elapsed:    src.Elapsed,
	}
	switch {
	case src.Fetched:
	case src.StatusCode != 0:
		rec.ErrorType = "http_error"
	default:
		rec.ErrorType = "fetch_error"
	}
	return rec
}

func (r *recorder) finish(run *manifest.Run) {
	if r.db == nil {
		return
	}
	status := db.StatusCompleted
	if run.Status == manifest.StatusFailed {
		status = db.StatusFailed
	}
	err := r.db.FinishSearch(r.searchID, db.SearchOutcome{
		Status:      status,
		LinkCount:   run.LinkCount,
		SourceCount: run.SourceCount,
		CharCount:   run.CharCount,
		Description: run.Description,
		Language:    run.Language,
		Keywords:    run.Keywords,
		Error:       run.Error,
		Duration:    time.Duration(run.Timings.TotalMS) * time.Millisecond,
	})
	if err != nil {
		r.logger.Warn("Failed to finish search record", "error", err)
	}
}
