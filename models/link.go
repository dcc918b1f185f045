package models

// LinkRecord is an outbound link discovered on the search results page.
type LinkRecord struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// SourceResult is one fetched source ready for aggregation.
type SourceResult struct {
	Label   string `json:"label" yaml:"label"`
	Excerpt string `json:"excerpt" yaml:"excerpt"`
}
