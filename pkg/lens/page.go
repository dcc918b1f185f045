// Package lens drives a browser through a reverse-image search and harvests
// the outbound links of the results page.
package lens

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

var (
	// ErrBrowserUnavailable means no browser could be launched, local or downloaded.
	ErrBrowserUnavailable = errors.New("no usable browser")
	// ErrEntryNotFound means the visual search entry point was never clickable.
	ErrEntryNotFound = errors.New("visual search entry not found")
	// ErrUploadFailed means the image could not be handed to a file input.
	ErrUploadFailed = errors.New("image upload failed")
	// ErrNotFound is returned by Page.Query when nothing matched in time.
	ErrNotFound = errors.New("element not found")
)

// By selects how Query.Selector is interpreted.
type By int

const (
	ByQuery By = iota
	ByXPath
)

// Query describes one bounded element lookup.
type Query struct {
	Selector string
	By       By
	// Visible requires the element to be rendered. Hidden file inputs need false.
	Visible bool
	Wait    time.Duration
}

// Element is a handle on a DOM node returned by a Page.
type Element struct {
	Tag  string
	Type string

	node *cdp.Node
}

// IsFileInput reports whether the element is an <input type="file">.
func (e *Element) IsFileInput() bool {
	return e != nil && e.Tag == "input" && strings.EqualFold(e.Type, "file")
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.Type != "" {
		return e.Tag + "[type=" + e.Type + "]"
	}
	return e.Tag
}

// Page is the browser surface the driver needs. Every call is bounded.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script and decodes its JSON result into res, which may be nil.
	Evaluate(ctx context.Context, script string, res any) error
	// Query returns the first match, or ErrNotFound once q.Wait elapses.
	Query(ctx context.Context, q Query) (*Element, error)
	MoveTo(ctx context.Context, el *Element) error
	Click(ctx context.Context, el *Element) error
	SetFiles(ctx context.Context, el *Element, files []string) error
	Close() error
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
