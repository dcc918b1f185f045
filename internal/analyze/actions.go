package analyze

import (
	"fmt"
	"os"

	"github.com/dtnitsch/lens-scraper/internal/common"
	"github.com/dtnitsch/lens-scraper/pkg/summarizer"
	"github.com/urfave/cli/v2"
)

// AnalyzeAction sends the aggregated text in --txt to the model and prints the description.
func AnalyzeAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}

	if c.IsSet("model") {
		cfg.LLM.Model = c.String("model")
	}

	data, err := os.ReadFile(c.String("txt"))
	if err != nil {
		return fmt.Errorf("failed to read text file: %w", err)
	}

	s := summarizer.New(logger, cfg.LLM)
	if c.IsSet("system-prompt") {
		s = s.WithSystemPrompt(c.String("system-prompt"))
	}

	description, err := s.Describe(c.Context, string(data))
	if err != nil {
		return fmt.Errorf("failed to process with %s: %w", cfg.LLM.Provider, err)
	}

	if out := c.String("output"); out != "" {
		if err := os.WriteFile(out, []byte(description+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write analysis: %w", err)
		}
	}
	fmt.Println(description)
	return nil
}
