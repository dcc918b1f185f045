package common

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// NewLogger returns the JSON stderr logger every command uses. --quiet keeps errors only.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// LoadConfig reads the file named by the global --config flag.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Marshal encodes v as "json" (indented) or "yaml".
func Marshal(v any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return json.MarshalIndent(v, "", "  ")
	case "yaml":
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

// Print writes v to stdout in the requested format.
func Print(v any, format string) error {
	data, err := Marshal(v, format)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(strings.TrimRight(string(data), "\n"))
	return nil
}
