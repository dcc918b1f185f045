// Package openrouter lists the zero-cost models an OpenRouter-compatible
// endpoint offers.
package openrouter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Model is one entry of the model catalogue.
type Model struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	ContextLength int64  `json:"context_length" yaml:"context_length"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// FreeModels fetches the catalogue and keeps models whose prompt and
// completion prices are both "0", longest context first.
func (c *Client) FreeModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch models, status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read models: %w", err)
	}
	return ParseFree(body)
}

// ParseFree extracts free models from a /models response body.
func ParseFree(body []byte) ([]Model, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid models response")
	}

	var free []Model
	gjson.GetBytes(body, "data").ForEach(func(_, m gjson.Result) bool {
		if m.Get("pricing.prompt").String() == "0" && m.Get("pricing.completion").String() == "0" {
			free = append(free, Model{
				ID:            m.Get("id").String(),
				Name:          m.Get("name").String(),
				ContextLength: m.Get("top_provider.context_length").Int(),
			})
		}
		return true
	})

	sort.SliceStable(free, func(i, j int) bool {
		return free[i].ContextLength > free[j].ContextLength
	})
	return free, nil
}

// SaveIDs writes one model id per line to path.
func SaveIDs(path string, models []Model) error {
	var b strings.Builder
	for _, m := range models {
		b.WriteString(m.ID)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to save model ids: %w", err)
	}
	return nil
}
