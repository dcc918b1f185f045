package lens

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/linkfile"
)

// harvestScript collects anchors with absolute http(s) hrefs, then elements
// carrying a URL in onclick or data-url, in document order.
const harvestScript = `(() => {
	const results = [];
	for (const link of document.getElementsByTagName('a')) {
		const href = link.getAttribute('href');
		if (!href || !href.startsWith('http')) continue;
		let description = (link.textContent || '').trim();
		if (!description && link.parentElement) {
			description = (link.parentElement.textContent || '').trim();
		}
		results.push({url: href, description: description});
	}
	for (const el of document.querySelectorAll('[onclick], [data-url]')) {
		let href = null;
		const onclick = el.getAttribute('onclick');
		if (onclick && onclick.includes('http')) {
			const match = onclick.match(/(https?:\/\/[^'"\s]+)/);
			if (match) href = match[0];
		}
		if (!href) {
			const dataURL = el.getAttribute('data-url');
			if (dataURL && dataURL.startsWith('http')) href = dataURL;
		}
		if (href) {
			results.push({url: href, description: (el.textContent || '').trim()});
		}
	}
	return results;
})()`

// Denied reports whether rawURL's host is, or sits under, one of the deny
// entries. Entries match on whole labels, so "google.co" covers
// "www.google.co.uk" but not "notgoogle.com". Unparseable URLs are denied.
func Denied(rawURL string, deny []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := "." + strings.ToLower(u.Hostname()) + "."
	for _, d := range deny {
		d = strings.Trim(strings.ToLower(d), ".")
		if d != "" && strings.Contains(host, "."+d+".") {
			return true
		}
	}
	return false
}

// FilterLinks keeps records whose host is not denied, preserving order.
func FilterLinks(records []models.LinkRecord, deny []string) []models.LinkRecord {
	kept := make([]models.LinkRecord, 0, len(records))
	for _, r := range records {
		if !Denied(r.URL, deny) {
			kept = append(kept, r)
		}
	}
	return kept
}

// harvestLinks collects outbound links from the results page, drops the
// search engine's own hosts and writes the rest to outputPath.
func harvestLinks(ctx context.Context, logger *slog.Logger, p Page, deny []string, outputPath string) ([]models.LinkRecord, error) {
	logger.Info("Extracting links and descriptions")

	var raw []models.LinkRecord
	if err := p.Evaluate(ctx, harvestScript, &raw); err != nil {
		return nil, fmt.Errorf("failed to extract links: %w", err)
	}

	links := FilterLinks(raw, deny)
	logger.Info("Found external links", "total", len(raw), "kept", len(links))

	if err := linkfile.Write(outputPath, links); err != nil {
		return links, err
	}
	logger.Info("Links saved", "path", outputPath)
	return links, nil
}
