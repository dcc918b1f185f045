package search

import (
	"fmt"

	"github.com/dtnitsch/lens-scraper/internal/common"
	"github.com/dtnitsch/lens-scraper/pkg/lens"
	"github.com/urfave/cli/v2"
)

// SearchAction uploads --image to the visual search and writes the links to --output.
func SearchAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}

	if c.IsSet("headless") {
		cfg.Browser.Headless = c.Bool("headless")
	}

	driver := lens.NewDriver(logger, cfg)
	report, err := driver.Run(c.Context, c.String("image"), c.String("output"))
	if printErr := common.Print(report, c.String("format")); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}
