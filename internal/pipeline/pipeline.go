// Package pipeline runs one image through search, aggregation and summary,
// and records what happened.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/aggregator"
	"github.com/dtnitsch/lens-scraper/pkg/analytics"
	"github.com/dtnitsch/lens-scraper/pkg/artifact_manager"
	"github.com/dtnitsch/lens-scraper/pkg/caching"
	"github.com/dtnitsch/lens-scraper/pkg/cleaner"
	"github.com/dtnitsch/lens-scraper/pkg/db"
	"github.com/dtnitsch/lens-scraper/pkg/fetcher"
	"github.com/dtnitsch/lens-scraper/pkg/lens"
	"github.com/dtnitsch/lens-scraper/pkg/manifest"
	"github.com/dtnitsch/lens-scraper/pkg/summarizer"
	"github.com/google/uuid"
)

// ErrSearchFailed marks a run whose browser stage did not complete.
var ErrSearchFailed = errors.New("visual search failed")

// Searcher uploads an image and writes the harvested links to outputPath.
type Searcher interface {
	Run(ctx context.Context, imagePath, outputPath string) (*lens.Report, error)
}

// Describer turns aggregated text into a short description. It never fails;
// errors come back as text.
type Describer interface {
	Summarize(ctx context.Context, text string) string
}

// Deps are the stages a Pipeline composes. History may be nil.
type Deps struct {
	Searcher   Searcher
	Aggregator *aggregator.Aggregator
	Describer  Describer
	Artifacts  *artifact_manager.Manager
	History    *db.DB
}

type Pipeline struct {
	logger     *slog.Logger
	cfg        *models.Config
	searcher   Searcher
	aggregator *aggregator.Aggregator
	describer  Describer
	artifacts  *artifact_manager.Manager
	history    *db.DB
}

func New(logger *slog.Logger, cfg *models.Config, deps Deps) *Pipeline {
	return &Pipeline{
		logger:     logger,
		cfg:        cfg,
		searcher:   deps.Searcher,
		aggregator: deps.Aggregator,
		describer:  deps.Describer,
		artifacts:  deps.Artifacts,
		history:    deps.History,
	}
}

// NewAggregator builds the content aggregator described by cfg.Scraper.
func NewAggregator(logger *slog.Logger, cfg *models.Config) (*aggregator.Aggregator, error) {
	var cache *caching.Cache
	if cfg.Scraper.CacheDir != "" {
		c, err := caching.NewCache(cfg.Scraper.CacheDir, cfg.Scraper.CacheTTL)
		if err != nil {
			return nil, err
		}
		cache = c
	}

	cl, err := cleaner.New(cfg.Scraper.Cleaner)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewFetcher(cfg.Scraper.RequestTimeout, fetcher.DefaultHeaders(cfg.Scraper.UserAgent), cache)
	return aggregator.New(logger, f, cl, aggregator.Options{
		SkipPattern: cfg.Lens.SearchEnginePattern,
		Analytics:   analytics.NewAnalytics(),
	})
}

// Build wires the production stages from cfg. Call Close when done.
func Build(logger *slog.Logger, cfg *models.Config) (*Pipeline, error) {
	agg, err := NewAggregator(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aggregator: %w", err)
	}

	manager, err := artifact_manager.NewManager(cfg.Dirs, cfg.Retention)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact manager: %w", err)
	}

	var history *db.DB
	if cfg.History.Enabled {
		history, err = db.Open(cfg.History.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	return New(logger, cfg, Deps{
		Searcher:   lens.NewDriver(logger, cfg),
		Aggregator: agg,
		Describer:  summarizer.New(logger, cfg.LLM),
		Artifacts:  manager,
		History:    history,
	}), nil
}

// Close releases the history database.
func (p *Pipeline) Close() error {
	if p.history == nil {
		return nil
	}
	return p.history.Close()
}

// NewRequest allocates a request id and its artifact paths.
func (p *Pipeline) NewRequest() artifact_manager.Artifacts {
	return p.artifacts.Paths(uuid.NewString())
}

// SaveImage stores an uploaded image at the request's image path.
func (p *Pipeline) SaveImage(a artifact_manager.Artifacts, data []byte) error {
	return p.artifacts.SaveImage(a, data)
}

// Cleanup removes the artifacts the retention policy does not keep.
func (p *Pipeline) Cleanup(a artifact_manager.Artifacts) {
	if err := p.artifacts.Cleanup(p.logger, a); err != nil {
		p.logger.Warn("Failed to remove artifacts", "request_id", a.RequestID, "error", err)
	}
}

// Run searches with the image at a.Image, aggregates the linked pages into
// a.Text and asks the model for a description. The manifest is returned even
// when err is non-nil. Only a failed search is an error; empty results and
// model failures are reported in the manifest.
func (p *Pipeline) Run(ctx context.Context, a artifact_manager.Artifacts) (*manifest.Run, error) {
	log := p.logger.With("request_id", a.RequestID)
	in := manifest.Input{Artifacts: a}
	started := time.Now()
	rec := p.startHistory(log, a)

	t := time.Now()
	log.Info("Starting visual search", "image", a.Image)
	report, err := p.searcher.Run(ctx, a.Image, a.CSV)
	in.Search = time.Since(t)
	in.Report = report
	rec.steps(report)
	if err != nil {
		in.Err = fmt.Errorf("%w: %w", ErrSearchFailed, err)
		in.Total = time.Since(started)
		run := manifest.Build(in)
		rec.finish(run)
		return run, in.Err
	}
	log.Info("Visual search results saved", "path", a.CSV, "links", len(report.Links))

	t = time.Now()
	result, err := p.aggregator.ScrapeFile(ctx, a.CSV, a.Text, p.cfg.Scraper.MaxURLs, p.cfg.Scraper.CharLimit)
	in.Aggregate = time.Since(t)
	in.Result = result
	if err != nil {
		in.Err = err
		in.Total = time.Since(started)
		run := manifest.Build(in)
		rec.finish(run)
		return run, err
	}
	rec.sources(report, result)
	log.Info("Scraped content saved", "path", a.Text, "chars", aggregator.RuneLen(result.Text))

	t = time.Now()
	log.Info("Sending content to LLM for analysis")
	in.Description = p.describer.Summarize(ctx, result.Text)
	in.Summarize = time.Since(t)
	in.Total = time.Since(started)

	run := manifest.Build(in)
	rec.finish(run)
	log.Info("Analysis complete", "duration", in.Total)
	return run, nil
}
