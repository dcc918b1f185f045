package manifest

import "github.com/dtnitsch/lens-scraper/pkg/artifact_manager"

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is the summary of one image search: what the browser did, which
// sources made it into the text, and what the model said about it.
type Run struct {
	RequestID   string                     `json:"request_id" yaml:"request_id"`
	GeneratedAt string                     `json:"generated_at" yaml:"generated_at"`
	Status      string                     `json:"status" yaml:"status"` // "completed" or "failed"
	Error       string                     `json:"error,omitempty" yaml:"error,omitempty"`
	Artifacts   artifact_manager.Artifacts `json:"artifacts" yaml:"artifacts"`
	LinkCount   int                        `json:"link_count" yaml:"link_count"`
	Fetched     int                        `json:"fetched" yaml:"fetched"`
	Failed      int                        `json:"failed" yaml:"failed"`
	Skipped     int                        `json:"skipped" yaml:"skipped"`
	SourceCount int                        `json:"source_count" yaml:"source_count"`
	CharCount   int                        `json:"char_count" yaml:"char_count"`
	Language    string                     `json:"language,omitempty" yaml:"language,omitempty"`
	Keywords    []string                   `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []StepSummary              `json:"steps,omitempty" yaml:"steps,omitempty"`
	Sources     []SourceSummary            `json:"sources,omitempty" yaml:"sources,omitempty"`
	Timings     Timings                    `json:"timings" yaml:"timings"`
}

// StepSummary is one browser automation step.
type StepSummary struct {
	Step      string `json:"step" yaml:"step"`
	OK        bool   `json:"ok" yaml:"ok"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// SourceSummary represents summary information for a single harvested link.
type SourceSummary struct {
	Position     int    `json:"position" yaml:"position"`
	URL          string `json:"url" yaml:"url"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Status       string `json:"status" yaml:"status"` // included, fetched, failed, skipped, not_attempted
	StatusCode   int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Chars        int    `json:"chars,omitempty" yaml:"chars,omitempty"`
	ElapsedMS    int64  `json:"elapsed_ms,omitempty" yaml:"elapsed_ms,omitempty"`
	Category     string `json:"category,omitempty" yaml:"category,omitempty"`
	Country      string `json:"country,omitempty" yaml:"country,omitempty"`
}

// Timings are wall-clock milliseconds per stage.
type Timings struct {
	SearchMS    int64 `json:"search_ms" yaml:"search_ms"`
	AggregateMS int64 `json:"aggregate_ms" yaml:"aggregate_ms"`
	SummarizeMS int64 `json:"summarize_ms" yaml:"summarize_ms"`
	TotalMS     int64 `json:"total_ms" yaml:"total_ms"`
}
