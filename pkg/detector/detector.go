// Package detector classifies search result sources from their URL alone.
package detector

import (
	"net/url"
	"strings"
)

// Classification is a free, URL-only guess at what kind of site a source is.
type Classification struct {
	DomainType string `json:"domain_type" yaml:"domain_type"` // gov, edu, academic, mobile, commercial
	Category   string `json:"category" yaml:"category"`       // shop, stock, art, social, wiki, news, blog, docs, gov, academic, general
	Country    string `json:"country" yaml:"country"`         // TLD-based guess: us, uk, de, jp, etc
}

// Classify inspects rawURL. Unparseable URLs yield the zero Classification.
func Classify(rawURL string) Classification {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Classification{}
	}
	domainType := detectDomainType(u)
	return Classification{
		DomainType: domainType,
		Category:   detectCategory(u, domainType),
		Country:    detectCountry(u),
	}
}

// detectDomainType identifies domain classification
func detectDomainType(u *url.URL) string {
	host := strings.ToLower(u.Hostname())

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".mil") || strings.Contains(host, ".gov.") {
		return "gov"
	}
	if strings.HasSuffix(host, ".edu") || strings.Contains(host, ".ac.") || strings.Contains(host, ".edu.") {
		return "edu"
	}

	academicDomains := []string{
		"arxiv.org", "doi.org", "researchgate.net", "academia.edu", "jstor.org",
	}
	for _, domain := range academicDomains {
		if hostMatches(host, domain) {
			return "academic"
		}
	}

	if strings.HasPrefix(host, "m.") || strings.HasPrefix(host, "mobile.") {
		return "mobile"
	}
	return "commercial"
}

// detectCountry extracts country from TLD
func detectCountry(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return "unknown"
	}
	tld := parts[len(parts)-1]

	countries := map[string]string{
		"uk": "uk", "de": "de", "fr": "fr", "jp": "jp", "cn": "cn",
		"au": "au", "ca": "ca", "in": "in", "br": "br", "ru": "ru",
		"it": "it", "es": "es", "nl": "nl", "se": "se", "ch": "ch",
		"pt": "pt", "gr": "gr", "be": "be", "at": "at", "pl": "pl",
	}
	if country, ok := countries[tld]; ok {
		return country
	}
	if tld == "gov" || tld == "edu" || tld == "mil" {
		return "us"
	}
	return "unknown"
}

// categoryHosts maps well-known hosts to the kind of page an image search lands on.
var categoryHosts = []struct {
	category string
	hosts    []string
}{
	{"shop", []string{"amazon", "ebay", "etsy", "aliexpress", "walmart", "alibaba", "temu", "shopify"}},
	{"stock", []string{"shutterstock.com", "istockphoto.com", "gettyimages", "alamy.com", "dreamstime.com", "depositphotos.com", "adobestock.com", "123rf.com", "unsplash.com", "pexels.com"}},
	{"art", []string{"wikiart.org", "artsy.net", "deviantart.com", "artstation.com", "saatchiart.com", "metmuseum.org", "louvre.fr", "moma.org", "nga.gov", "rijksmuseum.nl"}},
	{"social", []string{"pinterest", "instagram.com", "facebook.com", "twitter.com", "x.com", "reddit.com", "tiktok.com", "tumblr.com", "flickr.com", "youtube.com"}},
	{"wiki", []string{"wikipedia.org", "wikimedia.org", "wikidata.org", "fandom.com"}},
}

// detectCategory determines site category from URL patterns
func detectCategory(u *url.URL, domainType string) string {
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch domainType {
	case "gov":
		return "gov"
	case "edu", "academic":
		return "academic"
	}

	for _, c := range categoryHosts {
		for _, h := range c.hosts {
			if hostMatches(host, h) {
				return c.category
			}
		}
	}

	if strings.Contains(path, "/product/") || strings.Contains(path, "/shop/") || strings.Contains(path, "/item/") {
		return "shop"
	}
	if strings.Contains(host, "docs.") || strings.Contains(path, "/docs/") {
		return "docs"
	}
	if strings.Contains(host, "blog") || strings.Contains(path, "/blog/") {
		return "blog"
	}
	newsDomains := []string{"news", "bbc.", "cnn.", "nytimes", "theguardian", "reuters"}
	for _, n := range newsDomains {
		if strings.Contains(host, n) {
			return "news"
		}
	}
	return "general"
}

// hostMatches reports whether host is, or sits under, entry. Entries without a
// dot match any host label that starts with them, e.g. "amazon" matches amazon.co.uk.
func hostMatches(host, entry string) bool {
	if strings.Contains(entry, ".") {
		return host == entry || strings.HasSuffix(host, "."+entry)
	}
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, entry) {
			return true
		}
	}
	return false
}
