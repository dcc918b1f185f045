package lens

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dtnitsch/lens-scraper/models"
)

// Driver runs one reverse-image search per call. It is safe to call Run
// concurrently; every run gets its own browser.
type Driver struct {
	logger  *slog.Logger
	homeURL string
	entry   string
	deny    []string
	timing  Timing
	finders []Finder

	open func(ctx context.Context) (Page, error)
}

func NewDriver(logger *slog.Logger, cfg *models.Config) *Driver {
	timing := TimingFromConfig(cfg.Browser)
	browser := cfg.Browser
	return &Driver{
		logger:  logger,
		homeURL: cfg.Lens.HomeURL,
		entry:   cfg.Lens.EntrySelector,
		deny:    cfg.Lens.DenyDomains,
		timing:  timing,
		finders: DefaultFinders(timing),
		open: func(ctx context.Context) (Page, error) {
			return Launch(ctx, logger, browser)
		},
	}
}

// Run uploads imagePath to the visual search and writes the harvested links to
// outputPath. The returned Report is never nil and lists every step attempted.
// The browser is closed on every path.
func (d *Driver) Run(ctx context.Context, imagePath, outputPath string) (*Report, error) {
	report := &Report{OutputPath: outputPath}
	log := d.logger.With("image", imagePath)

	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return report, fmt.Errorf("failed to resolve image path: %w", err)
	}

	start := time.Now()
	p, err := d.open(ctx)
	report.add(StepLaunch, start, "", err)
	if err != nil {
		log.Error("Error starting browser", "error", err)
		return report, err
	}
	defer func() {
		log.Info("Closing browser")
		if err := p.Close(); err != nil {
			log.Warn("Error closing browser", "error", err)
		}
	}()

	start = time.Now()
	log.Info("Opening search home", "url", d.homeURL)
	err = p.Navigate(ctx, d.homeURL)
	report.add(StepNavigate, start, d.homeURL, err)
	if err != nil {
		return report, fmt.Errorf("failed to open %s: %w", d.homeURL, err)
	}

	start = time.Now()
	reason, err := dismissConsent(ctx, log, p, d.timing)
	report.add(StepConsent, start, reason, err)
	if err != nil {
		return report, err
	}

	if err := d.ready(ctx, log, p, report); err != nil {
		return report, err
	}

	start = time.Now()
	err = activateSearchEntry(ctx, log, p, d.timing, d.entry)
	report.add(StepEntry, start, "", err)
	if err != nil {
		log.Error("Failed to access visual search, aborting", "selector", d.entry, "error", err)
		return report, err
	}

	if err := d.ready(ctx, log, p, report); err != nil {
		return report, err
	}

	start = time.Now()
	target, err := locateUploadTarget(ctx, log, p, d.timing, d.finders)
	reason = "found " + target.String()
	if target == nil {
		reason = "no upload control found"
	}
	report.add(StepLocate, start, reason, err)
	if err != nil {
		return report, err
	}

	start = time.Now()
	err = submitImage(ctx, log, p, d.timing, target, absImage)
	report.add(StepSubmit, start, "", err)
	if err != nil {
		log.Error("Failed to upload image, aborting", "error", err)
		return report, err
	}

	start = time.Now()
	log.Info("Waiting for search results")
	err = sleep(ctx, d.timing.Results)
	report.add(StepResults, start, "", err)
	if err != nil {
		return report, err
	}
	if err := d.ready(ctx, log, p, report); err != nil {
		return report, err
	}

	start = time.Now()
	links, err := harvestLinks(ctx, log, p, d.deny, outputPath)
	report.Links = links
	report.add(StepHarvest, start, fmt.Sprintf("%d links", len(links)), err)
	if err != nil {
		return report, err
	}
	return report, nil
}

func (d *Driver) ready(ctx context.Context, log *slog.Logger, p Page, report *Report) error {
	start := time.Now()
	log.Info("Waiting for page to load")
	reason, err := awaitPageReady(ctx, log, p, d.timing)
	report.add(StepReady, start, reason, err)
	return err
}
