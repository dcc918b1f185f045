package lens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Finder is one strategy for locating the upload control.
type Finder interface {
	Name() string
	Locate(ctx context.Context, p Page) (*Element, error)
}

// UploadWords are the "file" labels the upload control carries in the
// locales the search engine is commonly served in.
var UploadWords = []string{"file", "fichier", "Datei", "archivo", "ficheiro", "bestand", "αρχείο"}

// XPathFinder waits for a visible element matching an XPath expression.
type XPathFinder struct {
	Expr string
	Wait time.Duration
}

func (f XPathFinder) Name() string { return "xpath " + f.Expr }

func (f XPathFinder) Locate(ctx context.Context, p Page) (*Element, error) {
	return p.Query(ctx, Query{Selector: f.Expr, By: ByXPath, Visible: true, Wait: f.Wait})
}

const uploadCandidateAttr = "data-lens-upload-candidate"

// markUploadScript tags the first button-like element whose text suggests a
// file upload and returns how many such elements exist.
const markUploadScript = `(() => {
	const words = ['file', 'fichier', 'import', 'upload'];
	document.querySelectorAll('[` + uploadCandidateAttr + `]').forEach(el => el.removeAttribute('` + uploadCandidateAttr + `'));
	let n = 0;
	document.querySelectorAll('[role="button"], button, span').forEach(el => {
		const text = (el.textContent || '').toLowerCase();
		if (words.some(w => text.includes(w))) {
			if (n === 0) el.setAttribute('` + uploadCandidateAttr + `', '1');
			n++;
		}
	});
	return n;
})()`

// ScriptFinder scans interactive elements in-page when no XPath matched.
type ScriptFinder struct {
	Wait time.Duration
}

func (f ScriptFinder) Name() string { return "script scan" }

func (f ScriptFinder) Locate(ctx context.Context, p Page) (*Element, error) {
	var count int
	if err := p.Evaluate(ctx, markUploadScript, &count); err != nil {
		return nil, fmt.Errorf("upload scan failed: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return p.Query(ctx, Query{Selector: "[" + uploadCandidateAttr + "='1']", Wait: f.Wait})
}

// DefaultFinders returns one XPath finder per upload word, then the script scan.
func DefaultFinders(t Timing) []Finder {
	finders := make([]Finder, 0, len(UploadWords)+1)
	for _, w := range UploadWords {
		finders = append(finders, XPathFinder{
			Expr: fmt.Sprintf("//span[contains(text(), '%s')]", w),
			Wait: t.FinderWait,
		})
	}
	return append(finders, ScriptFinder{Wait: t.Probe})
}

// locateUploadTarget tries finders in order; the first hit wins. A hit that is
// not itself a file input is clicked and the page is re-queried for the input
// it reveals. Returns nil when every strategy fails.
func locateUploadTarget(ctx context.Context, logger *slog.Logger, p Page, t Timing, finders []Finder) (*Element, error) {
	if err := sleep(ctx, t.LensLoad); err != nil {
		return nil, err
	}

	for _, f := range finders {
		logger.Info("Trying upload finder", "finder", f.Name())
		el, err := f.Locate(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, ErrNotFound) {
				logger.Debug("Upload finder failed", "finder", f.Name(), "error", err)
			}
			continue
		}
		if el.IsFileInput() {
			return el, nil
		}

		if err := p.MoveTo(ctx, el); err != nil {
			logger.Debug("Pointer move failed", "finder", f.Name(), "error", err)
		}
		if err := sleep(ctx, t.Hover); err != nil {
			return nil, err
		}
		if err := p.Click(ctx, el); err != nil {
			logger.Debug("Upload control not clickable", "finder", f.Name(), "error", err)
			continue
		}
		if err := sleep(ctx, t.AfterClick); err != nil {
			return nil, err
		}

		if input, err := p.Query(ctx, Query{Selector: fileInputCSS, Wait: t.Probe}); err == nil {
			logger.Info("Found file input after click", "finder", f.Name())
			return input, nil
		}
		logger.Info("No file input after click, using clicked element", "finder", f.Name())
		return el, nil
	}

	logger.Error("Could not find upload control")
	return nil, nil
}
