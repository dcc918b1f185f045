package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dtnitsch/lens-scraper/pkg/caching"
	"golang.org/x/net/html/charset"
)

// maxBodyBytes bounds how much of a page is read.
const maxBodyBytes = 5 * 1024 * 1024

// DefaultHeaders mimic a desktop Chrome session.
func DefaultHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Referer", "https://www.google.com/")
	h.Set("DNT", "1")
	return h
}

type Fetcher struct {
	client  *http.Client
	headers http.Header
	cache   *caching.Cache
}

// NewFetcher returns a Fetcher with the given per-request timeout and header set.
// cache may be nil.
func NewFetcher(timeout time.Duration, headers http.Header, cache *caching.Cache) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
		cache:   cache,
	}
}

// GetHtmlBytes fetches url and returns its body decoded to UTF-8.
// A status outside 2xx is an error.
func (f *Fetcher) GetHtmlBytes(ctx context.Context, url string) ([]byte, error) {
	if f.cache != nil {
		if data, ok := f.cache.Get(url); ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range f.headers {
		req.Header[k] = v
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	// Unknown encodings fall back to windows-1252; only a failed read errors here.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if f.cache != nil {
		_ = f.cache.Set(url, bodyBytes)
	}
	return bodyBytes, nil
}

// StatusError reports a response outside 2xx.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch %s, status code: %d", e.URL, e.StatusCode)
}
