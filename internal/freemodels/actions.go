package freemodels

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dtnitsch/lens-scraper/internal/common"
	"github.com/dtnitsch/lens-scraper/pkg/openrouter"
	"github.com/urfave/cli/v2"
)

// ModelsAction lists the free models of the configured provider, largest context first.
func ModelsAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}

	client := openrouter.NewClient(cfg.LLM.BaseURL, &http.Client{Timeout: cfg.LLM.Timeout})
	models, err := client.FreeModels(c.Context)
	if err != nil {
		return err
	}
	logger.Info("Fetched free models", "count", len(models))

	if path := c.String("save"); path != "" {
		if err := openrouter.SaveIDs(path, models); err != nil {
			return err
		}
		logger.Info("Saved model ids", "path", path)
	}

	if format := c.String("format"); format != "" && format != "table" {
		return common.Print(models, format)
	}

	fmt.Printf("%-60s %-12s %s\n", "ID", "Context", "Name")
	fmt.Println(strings.Repeat("-", 110))
	for _, m := range models {
		fmt.Printf("%-60s %-12d %s\n", m.ID, m.ContextLength, m.Name)
	}
	fmt.Printf("\nTotal: %d free models\n", len(models))
	return nil
}
