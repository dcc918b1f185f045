// Package aggregator fetches the pages behind a list of links concurrently and
// assembles their cleaned text, in link order, into one budget-bounded blob.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/analytics"
	"github.com/dtnitsch/lens-scraper/pkg/cleaner"
	"github.com/dtnitsch/lens-scraper/pkg/fetcher"
	"github.com/dtnitsch/lens-scraper/pkg/linkfile"
	"github.com/dtnitsch/lens-scraper/pkg/mapreduce"
)

// DefaultWorkers is the size of the fetch pool.
const DefaultWorkers = models.DefaultWorkerCount

// DefaultSkipPattern matches hosts owned by the search engine itself.
const DefaultSkipPattern = `^(www\.)?google\.[a-z]+`

// PageFetcher retrieves a page body decoded to UTF-8.
type PageFetcher interface {
	GetHtmlBytes(ctx context.Context, url string) ([]byte, error)
}

// Options tune an Aggregator. Zero values take defaults.
type Options struct {
	Workers     int
	SkipPattern string
	Keywords    int
	Analytics   *analytics.Analytics
}

type Aggregator struct {
	logger    *slog.Logger
	fetcher   PageFetcher
	cleaner   cleaner.Cleaner
	analytics *analytics.Analytics
	skip      *regexp.Regexp
	workers   int
	keywords  int
}

func New(logger *slog.Logger, f PageFetcher, c cleaner.Cleaner, opts Options) (*Aggregator, error) {
	pattern := opts.SkipPattern
	if pattern == "" {
		pattern = DefaultSkipPattern
	}
	skip, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid skip pattern %q: %w", pattern, err)
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Keywords <= 0 {
		opts.Keywords = 10
	}
	if opts.Analytics == nil {
		opts.Analytics = &analytics.Analytics{}
	}
	if c == nil {
		c = &cleaner.Markup{}
	}

	return &Aggregator{
		logger:    logger,
		fetcher:   f,
		cleaner:   c,
		analytics: opts.Analytics,
		skip:      skip,
		workers:   opts.Workers,
		keywords:  opts.Keywords,
	}, nil
}

// Source is the outcome for one input record, in input order.
type Source struct {
	Position   int           `json:"position" yaml:"position"`
	URL        string        `json:"url" yaml:"url"`
	Label      string        `json:"label" yaml:"label"`
	Skipped    bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Fetched    bool          `json:"fetched" yaml:"fetched"`
	Included   bool          `json:"included" yaml:"included"`
	Chars      int           `json:"chars" yaml:"chars"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`

	result *models.SourceResult
	words  map[string]int
}

// Result is the aggregated text plus what was learned on the way.
type Result struct {
	Text     string   `json:"text" yaml:"text"`
	Sources  []Source `json:"sources" yaml:"sources"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
}

// BuildSourceLabel formats "Source: <host>[ - <description>]".
func BuildSourceLabel(rawURL, description string) string {
	label := "Source: " + hostOf(rawURL)
	if description != "" {
		label += " - " + description
	}
	return label
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Skips reports whether rawURL points back at the search engine.
func (a *Aggregator) Skips(rawURL string) bool {
	return a.skip.MatchString(hostOf(rawURL))
}

// FetchAndClean returns the visible text of rawURL clipped to perSourceCap characters.
func (a *Aggregator) FetchAndClean(ctx context.Context, rawURL string, perSourceCap int) (string, error) {
	a.logger.Info("Requesting content", "url", rawURL)

	body, err := a.fetcher.GetHtmlBytes(ctx, rawURL)
	if err != nil {
		return "", err
	}

	text, err := a.cleaner.Clean(rawURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to clean %s: %w", rawURL, err)
	}

	a.logger.Info("Extracted content", "url", rawURL, "chars", RuneLen(text))
	return Clip(text, perSourceCap), nil
}

type job struct {
	index  int
	record models.LinkRecord
}

func worker(ctx context.Context, id int, a *Aggregator, perSourceCap int, wg *sync.WaitGroup, jobs <-chan job, slots []Source) {
	defer wg.Done()
	for j := range jobs {
		start := time.Now()
		src := &slots[j.index]

		excerpt, err := a.FetchAndClean(ctx, j.record.URL, perSourceCap)
		src.Elapsed = time.Since(start)
		if err != nil {
			var statusErr *fetcher.StatusError
			if errors.As(err, &statusErr) {
				src.StatusCode = statusErr.StatusCode
			}
			src.Error = err.Error()
			a.logger.Error("Error fetching source", "worker", id, "url", j.record.URL, "error", err)
			continue
		}

		src.Fetched = true
		src.StatusCode = 200
		src.result = &models.SourceResult{Label: src.Label, Excerpt: excerpt}
		src.words = mapreduce.Map(excerpt, a.analytics)
	}
}

// Aggregate fetches every record, then assembles label and excerpt lines in
// record order until totalBudget characters are used. When outPath is set the
// text is also written there, creating parent directories.
func (a *Aggregator) Aggregate(ctx context.Context, records []models.LinkRecord, totalBudget int, outPath string) (*Result, error) {
	perSourceCap := models.PerSourceLimit(totalBudget)
	a.logger.Info("Aggregating sources", "records", len(records), "budget", totalBudget, "per_source", perSourceCap)

	slots := make([]Source, len(records))
	jobs := make(chan job, len(records))

	for i, r := range records {
		slots[i] = Source{Position: i, URL: r.URL, Label: BuildSourceLabel(r.URL, r.Description)}
		if a.Skips(r.URL) {
			slots[i].Skipped = true
			a.logger.Info("Skipping search engine domain", "url", r.URL)
			continue
		}
		jobs <- job{index: i, record: r}
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 1; w <= a.workers; w++ {
		wg.Add(1)
		go worker(ctx, w, a, perSourceCap, &wg, jobs, slots)
	}
	wg.Wait()

	results := make([]*models.SourceResult, len(slots))
	for i := range slots {
		results[i] = slots[i].result
	}
	text, used := Assemble(results, totalBudget)

	counts := make([]map[string]int, 0, len(slots))
	for i := range slots {
		if used[i] {
			slots[i].Included = true
			slots[i].Chars = RuneLen(slots[i].result.Excerpt)
			counts = append(counts, slots[i].words)
		}
	}

	res := &Result{
		Text:     text,
		Sources:  slots,
		Keywords: mapreduce.TopKeywords(mapreduce.Reduce(counts), a.keywords),
		Language: a.analytics.DetectLanguage(text),
	}

	if outPath != "" {
		if err := WriteText(outPath, text); err != nil {
			return res, err
		}
		a.logger.Info("Aggregated text written", "path", outPath, "chars", RuneLen(text))
	}
	return res, nil
}

// ScrapeFile reads at most maxURLs records from csvPath and aggregates them into outPath.
func (a *Aggregator) ScrapeFile(ctx context.Context, csvPath, outPath string, maxURLs, totalBudget int) (*Result, error) {
	records := linkfile.Read(a.logger, csvPath, maxURLs)
	if len(records) == 0 {
		a.logger.Warn("No URLs to process", "path", csvPath)
	}
	return a.Aggregate(ctx, records, totalBudget, outPath)
}

// Assemble walks results in order, appending each label line and its excerpt
// clipped to the remaining budget. Nil entries are ignored. The returned slice
// marks which entries contributed.
func Assemble(results []*models.SourceResult, totalBudget int) (string, []bool) {
	used := make([]bool, len(results))
	var parts []string
	current := 0

	for i, r := range results {
		if r == nil {
			continue
		}
		if current >= totalBudget {
			break
		}

		parts = append(parts, r.Label)
		current += RuneLen(r.Label) + 1
		used[i] = true

		if excerpt := Clip(r.Excerpt, totalBudget-current); excerpt != "" {
			parts = append(parts, excerpt)
			current += RuneLen(excerpt) + 1
		}
	}

	return Clip(strings.Join(parts, "\n"), totalBudget), used
}

// WriteText writes text to path, creating parent directories.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write aggregated text: %w", err)
	}
	return nil
}

// Clip returns at most n characters of s, cutting on a rune boundary.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// RuneLen counts characters rather than bytes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
