package run

import (
	"fmt"

	"github.com/dtnitsch/lens-scraper/internal/common"
	"github.com/dtnitsch/lens-scraper/internal/pipeline"
	"github.com/dtnitsch/lens-scraper/pkg/manifest"
	"github.com/urfave/cli/v2"
)

// RunAction runs the whole pipeline on --image and prints the run manifest.
func RunAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}

	p, err := pipeline.Build(logger, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	a := p.NewRequest()
	a.Image = c.String("image")

	run, runErr := p.Run(c.Context, a)

	// The input image belongs to the caller.
	kept := a
	kept.Image = ""
	p.Cleanup(kept)

	if path := c.String("manifest"); path != "" {
		if err := manifest.Save(path, run); err != nil {
			logger.Warn("Failed to save manifest", "path", path, "error", err)
		}
	}
	if err := common.Print(run, c.String("format")); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", a.RequestID, runErr)
	}
	return nil
}
