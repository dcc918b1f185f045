// Package cleaner turns fetched HTML into plain, whitespace-normalised text.
package cleaner

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Mode names accepted by New.
const (
	ModeMarkup      = "markup"
	ModeReadability = "readability"
)

// NoiseSelector lists elements whose text never counts as page content.
const NoiseSelector = "script, style, header, footer, nav"

// Cleaner extracts visible text from an HTML document.
type Cleaner interface {
	Clean(rawURL string, body []byte) (string, error)
}

// New returns the cleaner for mode. Unknown modes are an error.
func New(mode string) (Cleaner, error) {
	switch mode {
	case "", ModeMarkup:
		return &Markup{}, nil
	case ModeReadability:
		return &Readability{fallback: &Markup{}}, nil
	default:
		return nil, fmt.Errorf("unknown cleaner mode %q", mode)
	}
}

// Markup drops NoiseSelector elements and joins the remaining text nodes.
type Markup struct{}

func (m *Markup) Clean(_ string, body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find(NoiseSelector).Remove()
	return VisibleText(doc.Selection), nil
}

// Readability keeps only the main article, falling back to Markup when no
// article can be found.
type Readability struct {
	fallback Cleaner
}

func (r *Readability) Clean(rawURL string, body []byte) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return r.fallback.Clean(rawURL, body)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(body), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return r.fallback.Clean(rawURL, body)
	}

	text, err := r.fallback.Clean(rawURL, []byte(article.Content))
	if err != nil || text == "" {
		return r.fallback.Clean(rawURL, body)
	}
	return text, nil
}

// VisibleText concatenates every text node under sel, separated by single spaces.
func VisibleText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return Normalize(strings.Join(parts, " "))
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.Data == "noscript" || n.Data == "template" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// Normalize collapses every whitespace run into a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
