package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/lens-scraper/internal/analyze"
	"github.com/dtnitsch/lens-scraper/internal/db"
	"github.com/dtnitsch/lens-scraper/internal/freemodels"
	"github.com/dtnitsch/lens-scraper/internal/run"
	"github.com/dtnitsch/lens-scraper/internal/scrape"
	"github.com/dtnitsch/lens-scraper/internal/search"
	"github.com/dtnitsch/lens-scraper/internal/serve"
	"github.com/dtnitsch/lens-scraper/models"
	"github.com/urfave/cli/v2"
)

func formatFlag(def string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   def,
		Usage:   "Output format (" + def + ", json or yaml)",
	}
}

func main() {
	app := &cli.App{
		Name:  "lens-scraper",
		Usage: "Describe an image from the pages a reverse-image search finds for it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   models.DefaultConfigFile,
				Usage:   "Path to the YAML config file; missing means defaults",
				EnvVars: []string{"LENS_SCRAPER_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Upload an image to the visual search and save the result links as CSV",
				Action: search.SearchAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "Image file to search with"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "results.csv", Usage: "CSV file for the harvested links"},
					&cli.BoolFlag{Name: "headless", Value: true, Usage: "Run the browser without a window"},
					formatFlag("json"),
				},
			},
			{
				Name:   "scrape",
				Usage:  "Fetch the links of a CSV file and write their text, in order, within a character budget",
				Action: scrape.ScrapeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "csv", Required: true, Usage: "CSV link file (URL,Description)"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "content.txt", Usage: "Aggregated text file"},
					&cli.IntFlag{Name: "max-urls", Usage: "Maximum number of links to fetch (default from config: 10)"},
					&cli.IntFlag{Name: "char-limit", Usage: "Total character budget (default from config: 2000)"},
					&cli.StringFlag{Name: "cleaner", Usage: "Text extraction: markup or readability"},
					formatFlag("json"),
				},
			},
			{
				Name:   "analyze",
				Usage:  "Ask the model to describe the image from an aggregated text file",
				Action: analyze.AnalyzeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "txt", Aliases: []string{"t"}, Required: true, Usage: "Aggregated text file"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Also write the description to this file"},
					&cli.StringFlag{Name: "model", Usage: "Override the configured model"},
					&cli.StringFlag{Name: "system-prompt", Usage: "Override the configured system prompt"},
				},
			},
			{
				Name:   "run",
				Usage:  "Search, scrape and analyze one image",
				Action: run.RunAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "Image file to describe"},
					&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "Also save the run manifest here (.json or .yaml)"},
					formatFlag("json"),
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve POST /analyze over HTTP",
				Action: serve.ServeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config: :8000)"},
				},
			},
			{
				Name:   "models",
				Usage:  "List the provider's free models, largest context first",
				Action: freemodels.ModelsAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "save", Usage: "Write the model ids to this file, one per line"},
					formatFlag("table"),
				},
			},
			{
				Name:  "history",
				Usage: "Inspect past runs",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List recent searches",
						Action: db.HistoryListAction,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of searches"},
							formatFlag("table"),
						},
					},
					{
						Name:      "show",
						Usage:     "Show one search with its steps and links",
						ArgsUsage: "[search id | request id]",
						Action:    db.HistoryShowAction,
						Flags: []cli.Flag{
							formatFlag("text"),
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
