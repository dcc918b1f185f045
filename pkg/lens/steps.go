package lens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtnitsch/lens-scraper/models"
)

// Step names recorded on a Report.
const (
	StepLaunch   = "launch"
	StepNavigate = "navigate"
	StepConsent  = "consent"
	StepReady    = "page_ready"
	StepEntry    = "search_entry"
	StepLocate   = "locate_upload"
	StepSubmit   = "submit_image"
	StepResults  = "await_results"
	StepHarvest  = "harvest"
)

const (
	consentXPath = `//button[contains(., 'accept') or contains(., 'Accept') or .//span[contains(., 'accept') or contains(., 'Accept')]]`
	consentCSS   = `button[id*='consent' i], button[class*='consent' i]`
	fileInputCSS = `input[type='file']`
)

// StepResult is the outcome of one automation step.
type StepResult struct {
	Step    string        `json:"step" yaml:"step"`
	OK      bool          `json:"ok" yaml:"ok"`
	Reason  string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Report collects every step of a search run and what it produced.
type Report struct {
	Steps      []StepResult        `json:"steps" yaml:"steps"`
	Links      []models.LinkRecord `json:"links" yaml:"links"`
	OutputPath string              `json:"output_path" yaml:"output_path"`
}

func (r *Report) add(step string, start time.Time, reason string, err error) StepResult {
	res := StepResult{Step: step, OK: err == nil, Reason: reason, Elapsed: time.Since(start)}
	if err != nil {
		res.Reason = err.Error()
	}
	r.Steps = append(r.Steps, res)
	return res
}

// Timing holds every wait and pause used while driving the page.
type Timing struct {
	PageLoad   time.Duration // max wait for readyState complete
	Poll       time.Duration // readyState poll interval
	Settle     time.Duration // pause after the lazy-load scroll
	Busy       time.Duration // extra pause while jQuery has requests in flight
	Consent    time.Duration // wait for a consent dialog to appear
	Hover      time.Duration // pause between pointer move and click
	AfterClick time.Duration
	LensLoad   time.Duration // pause before looking for the upload control
	Results    time.Duration // pause for results after upload
	EntryWait  time.Duration
	FinderWait time.Duration
	Probe      time.Duration // short lookups for controls that may not exist
}

func DefaultTiming() Timing {
	return Timing{
		PageLoad:   10 * time.Second,
		Poll:       100 * time.Millisecond,
		Settle:     1500 * time.Millisecond,
		Busy:       time.Second,
		Consent:    time.Second,
		Hover:      300 * time.Millisecond,
		AfterClick: time.Second,
		LensLoad:   2 * time.Second,
		Results:    5 * time.Second,
		EntryWait:  5 * time.Second,
		FinderWait: 3 * time.Second,
		Probe:      500 * time.Millisecond,
	}
}

// TimingFromConfig applies the configurable delays on top of DefaultTiming.
func TimingFromConfig(cfg models.BrowserConfig) Timing {
	t := DefaultTiming()
	if cfg.PageLoadTimeout > 0 {
		t.PageLoad = cfg.PageLoadTimeout
	}
	if cfg.SettleDelay > 0 {
		t.Settle = cfg.SettleDelay
	}
	if cfg.ResultsDelay > 0 {
		t.Results = cfg.ResultsDelay
	}
	return t
}

// dismissConsent clicks an accept button if a consent dialog shows up.
// A missing dialog is normal.
func dismissConsent(ctx context.Context, logger *slog.Logger, p Page, t Timing) (string, error) {
	logger.Info("Looking for cookie consent dialog")
	if err := sleep(ctx, t.Consent); err != nil {
		return "", err
	}

	btn, err := p.Query(ctx, Query{Selector: consentXPath, By: ByXPath, Wait: t.Probe})
	if errors.Is(err, ErrNotFound) {
		btn, err = p.Query(ctx, Query{Selector: consentCSS, Wait: t.Probe})
	}
	if errors.Is(err, ErrNotFound) {
		logger.Info("No cookie consent dialog detected")
		return "no consent dialog", nil
	}
	if err != nil {
		logger.Warn("Error looking for cookie dialog", "error", err)
		return "consent lookup failed: " + err.Error(), nil
	}

	logger.Info("Cookie consent dialog found, accepting")
	if err := p.Click(ctx, btn); err != nil {
		logger.Warn("Error clicking consent button", "error", err)
		return "consent click failed: " + err.Error(), nil
	}
	return "accepted", sleep(ctx, t.AfterClick/2)
}

// awaitPageReady waits for readyState complete, nudges lazy loading with a
// scroll, then settles. A page that never completes is logged, not fatal.
func awaitPageReady(ctx context.Context, logger *slog.Logger, p Page, t Timing) (string, error) {
	reason := "complete"
	deadline := time.Now().Add(t.PageLoad)
	for {
		var state string
		if err := p.Evaluate(ctx, readyStateScript, &state); err == nil && state == "complete" {
			break
		}
		if !time.Now().Before(deadline) {
			logger.Warn("Page took too long to reach complete state", "max_wait", t.PageLoad)
			reason = "ready state timeout"
			break
		}
		if err := sleep(ctx, t.Poll); err != nil {
			return "", err
		}
	}

	if err := p.Evaluate(ctx, scrollScript, nil); err != nil {
		logger.Debug("Scroll failed", "error", err)
	}
	if err := sleep(ctx, t.Settle); err != nil {
		return "", err
	}

	idle := true
	if err := p.Evaluate(ctx, jqueryIdleScript, &idle); err == nil && !idle {
		logger.Info("Waiting extra time for jQuery requests")
		if err := sleep(ctx, t.Busy); err != nil {
			return "", err
		}
	}
	return reason, nil
}

// activateSearchEntry hovers and clicks the visual search entry point.
func activateSearchEntry(ctx context.Context, logger *slog.Logger, p Page, t Timing, selector string) error {
	logger.Info("Looking for visual search entry", "selector", selector)

	btn, err := p.Query(ctx, Query{Selector: selector, Visible: true, Wait: t.EntryWait})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEntryNotFound, selector, err)
	}
	if err := p.MoveTo(ctx, btn); err != nil {
		logger.Debug("Pointer move failed", "selector", selector, "error", err)
	}
	if err := sleep(ctx, t.Hover); err != nil {
		return err
	}
	if err := p.Click(ctx, btn); err != nil {
		return fmt.Errorf("%w: click: %w", ErrEntryNotFound, err)
	}
	return sleep(ctx, t.AfterClick)
}

// submitImage hands imagePath to el, or to the file input that clicking el reveals.
func submitImage(ctx context.Context, logger *slog.Logger, p Page, t Timing, el *Element, imagePath string) error {
	if el == nil {
		return fmt.Errorf("%w: no upload target", ErrUploadFailed)
	}
	logger.Info("Uploading image", "path", imagePath, "target", el.String())

	if !el.IsFileInput() {
		logger.Info("Target is not a file input, clicking to reveal one")
		if err := p.Click(ctx, el); err != nil {
			return fmt.Errorf("%w: click: %w", ErrUploadFailed, err)
		}
		if err := sleep(ctx, t.AfterClick); err != nil {
			return err
		}
		input, err := p.Query(ctx, Query{Selector: fileInputCSS, Wait: t.Probe})
		if err != nil {
			return fmt.Errorf("%w: no file input after click: %w", ErrUploadFailed, err)
		}
		el = input
	}

	if err := p.SetFiles(ctx, el, []string{imagePath}); err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	logger.Info("File upload initiated")
	return nil
}
