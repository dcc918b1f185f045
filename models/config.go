// Package models defines data structures for configuration and the search pipeline.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "config.yaml"

	// DefaultWorkerCount is the size of the fetch pool. It is not configurable.
	DefaultWorkerCount = 5

	DefaultTemperature = 0.8

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	DefaultSystemPrompt = "You are given text content from websites found after a google lens research on an image, that means that the website content is related to the image. " +
		"The order of the result matters. " +
		"You do not talk to any user. " +
		"Your goal is to make in a few words (less than 25) a precise description of what the image is most likely, including the image type (drawing, screenshot, painting, photo of a painting...). Not more than this. " +
		"Format the response in this way: description: <description>, nothing else"
)

// DefaultDenyDomains lists hosts owned by the search engine itself.
var DefaultDenyDomains = []string{
	"google.com",
	"gstatic.com",
	"googleapis.com",
	"chrome.com",
	"google.co",
	"googleusercontent.com",
}

// BrowserConfig controls the automated browser session.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless"`
	UserAgent       string        `yaml:"user_agent"`
	ChromePath      string        `yaml:"chrome_path"`
	WindowWidth     int           `yaml:"window_width"`
	WindowHeight    int           `yaml:"window_height"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	ResultsDelay    time.Duration `yaml:"results_delay"`
}

// LensConfig describes the reverse-image search engine being driven.
type LensConfig struct {
	HomeURL             string   `yaml:"home_url"`
	EntrySelector       string   `yaml:"entry_selector"`
	DenyDomains         []string `yaml:"deny_domains"`
	SearchEnginePattern string   `yaml:"search_engine_pattern"`
}

// ScraperConfig controls content aggregation.
type ScraperConfig struct {
	MaxURLs        int           `yaml:"max_urls"`
	CharLimit      int           `yaml:"char_limit"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Cleaner        string        `yaml:"cleaner"` // markup, readability
	CacheDir       string        `yaml:"cache_dir"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	UserAgent      string        `yaml:"user_agent"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	SystemPrompt string        `yaml:"system_prompt"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	Timeout      time.Duration `yaml:"timeout"`

	// APIKey is resolved from APIKeyEnv at load time and never serialized.
	APIKey string `yaml:"-"`
}

// DirsConfig holds the output directory for each artifact kind.
type DirsConfig struct {
	Images         string `yaml:"images"`
	CSV            string `yaml:"csv"`
	Text           string `yaml:"txt"`
	ImageExtension string `yaml:"image_extension"`
}

// RetentionConfig selects which artifacts are deleted once a request completes.
type RetentionConfig struct {
	RemoveImages bool `yaml:"remove_images"`
	RemoveCSVs   bool `yaml:"remove_csvs"`
	RemoveText   bool `yaml:"remove_txt"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	MaxConcurrent int64   `yaml:"max_concurrent"`
	RatePerSec    float64 `yaml:"rate_per_sec"`
	Burst         int     `yaml:"burst"`
}

// HistoryConfig configures the sqlite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Config is the root configuration passed to every component.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Lens      LensConfig      `yaml:"lens"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	LLM       LLMConfig       `yaml:"llm"`
	Dirs      DirsConfig      `yaml:"dirs"`
	Retention RetentionConfig `yaml:"retention"`
	Server    ServerConfig    `yaml:"server"`
	History   HistoryConfig   `yaml:"history"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{
		Browser: BrowserConfig{Headless: true},
		// Zero is a valid temperature, so it is seeded here rather than in applyDefaults.
		LLM: LLMConfig{Temperature: DefaultTemperature},
		Retention: RetentionConfig{
			RemoveImages: true,
			RemoveCSVs:   true,
			RemoveText:   false,
		},
		History: HistoryConfig{Enabled: true},
	}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML config from path. A missing file yields defaults.
// Environment variables from a local .env file are loaded before the API key is resolved.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultConfigFile
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		applyDefaults(cfg)
	}

	cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	return cfg, nil
}

// PerSourceLimit derives the per-source excerpt cap from a total character budget.
func PerSourceLimit(total int) int {
	return max(200, total/4)
}

func applyDefaults(cfg *Config) {
	b := &cfg.Browser
	if b.UserAgent == "" {
		b.UserAgent = DefaultUserAgent
	}
	if b.WindowWidth == 0 {
		b.WindowWidth = 1366
	}
	if b.WindowHeight == 0 {
		b.WindowHeight = 768
	}
	if b.PageLoadTimeout == 0 {
		b.PageLoadTimeout = 10 * time.Second
	}
	if b.SettleDelay == 0 {
		b.SettleDelay = 1500 * time.Millisecond
	}
	if b.ResultsDelay == 0 {
		b.ResultsDelay = 5 * time.Second
	}

	l := &cfg.Lens
	if l.HomeURL == "" {
		l.HomeURL = "https://www.google.com"
	}
	if l.EntrySelector == "" {
		l.EntrySelector = "[data-base-lens-url='https://lens.google.com']"
	}
	if len(l.DenyDomains) == 0 {
		l.DenyDomains = append([]string(nil), DefaultDenyDomains...)
	}
	if l.SearchEnginePattern == "" {
		l.SearchEnginePattern = `^(www\.)?google\.[a-z]+`
	}

	s := &cfg.Scraper
	if s.MaxURLs == 0 {
		s.MaxURLs = 10
	}
	if s.CharLimit == 0 {
		s.CharLimit = 2000
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 10 * time.Second
	}
	if s.Cleaner == "" {
		s.Cleaner = "markup"
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = 24 * time.Hour
	}
	if s.UserAgent == "" {
		s.UserAgent = b.UserAgent
	}

	m := &cfg.LLM
	if m.Provider == "" {
		m.Provider = "OpenRouter"
	}
	if m.BaseURL == "" {
		m.BaseURL = "https://openrouter.ai/api/v1"
	}
	if m.Model == "" {
		m.Model = "meta-llama/llama-4-scout:free"
	}
	if m.SystemPrompt == "" {
		m.SystemPrompt = DefaultSystemPrompt
	}
	if m.APIKeyEnv == "" {
		m.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if m.Timeout == 0 {
		m.Timeout = 60 * time.Second
	}

	d := &cfg.Dirs
	if d.Images == "" {
		d.Images = "images"
	}
	if d.CSV == "" {
		d.CSV = "csv"
	}
	if d.Text == "" {
		d.Text = "txt"
	}
	if d.ImageExtension == "" {
		d.ImageExtension = "png"
	}

	srv := &cfg.Server
	if srv.Addr == "" {
		srv.Addr = ":8000"
	}
	if srv.MaxConcurrent == 0 {
		srv.MaxConcurrent = 2
	}
	if srv.RatePerSec == 0 {
		srv.RatePerSec = 1
	}
	if srv.Burst == 0 {
		srv.Burst = 3
	}

	if cfg.History.DBPath == "" {
		cfg.History.DBPath = defaultHistoryPath()
	}
}

// defaultHistoryPath places the history database next to the binary.
func defaultHistoryPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return "lens-scraper.db"
	}
	return filepath.Join(filepath.Dir(execPath), "lens-scraper.db")
}
