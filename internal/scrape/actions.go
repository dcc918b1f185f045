package scrape

import (
	"fmt"

	"github.com/dtnitsch/lens-scraper/internal/common"
	"github.com/dtnitsch/lens-scraper/internal/pipeline"
	"github.com/dtnitsch/lens-scraper/pkg/aggregator"
	"github.com/urfave/cli/v2"
)

// Output is what scrape prints: the aggregate minus the text itself.
type Output struct {
	CSV      string   `json:"csv" yaml:"csv"`
	Output   string   `json:"output" yaml:"output"`
	Sources  int      `json:"sources" yaml:"sources"`
	Included int      `json:"included" yaml:"included"`
	Failed   int      `json:"failed" yaml:"failed"`
	Chars    int      `json:"chars" yaml:"chars"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// ScrapeAction aggregates the pages listed in --csv into --output.
func ScrapeAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}

	if c.IsSet("max-urls") {
		cfg.Scraper.MaxURLs = c.Int("max-urls")
	}
	if c.IsSet("char-limit") {
		cfg.Scraper.CharLimit = c.Int("char-limit")
	}
	if c.IsSet("cleaner") {
		cfg.Scraper.Cleaner = c.String("cleaner")
	}

	agg, err := pipeline.NewAggregator(logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize aggregator: %w", err)
	}

	result, err := agg.ScrapeFile(c.Context, c.String("csv"), c.String("output"), cfg.Scraper.MaxURLs, cfg.Scraper.CharLimit)
	if err != nil {
		return err
	}

	out := Output{
		CSV:      c.String("csv"),
		Output:   c.String("output"),
		Sources:  len(result.Sources),
		Language: result.Language,
		Keywords: result.Keywords,
		Chars:    aggregator.RuneLen(result.Text),
	}
	for _, s := range result.Sources {
		if s.Included {
			out.Included++
		}
		if !s.Fetched && !s.Skipped {
			out.Failed++
		}
	}
	return common.Print(out, c.String("format"))
}
