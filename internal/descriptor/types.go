// Package descriptor defines core types shared across pipeline stages.
package descriptor

import (
	"fmt"
	"net/http"
	"time"
)

// EntrySource records where a page URL came from.
type EntrySource string

// Entry provenance values.
const (
	SourceSitemap EntrySource = "sitemap"
	SourceUpload  EntrySource = "upload"
)

// EntryStatus represents the lifecycle state of a page entry.
type EntryStatus string

// Entry status values.
const (
	StatusPending EntryStatus = "pending"
	StatusFetched EntryStatus = "fetched"
	StatusFailed  EntryStatus = "failed"
)

// DescriptionSource tracks which stage produced the current description.
type DescriptionSource string

// Description source values. A failed generation never regresses a source
// from generated back to heuristic.
const (
	DescriptionNone      DescriptionSource = "none"
	DescriptionHeuristic DescriptionSource = "heuristic"
	DescriptionGenerated DescriptionSource = "generated"
)

// Failure reasons recorded on entries whose fetch could not complete.
const (
	ReasonFetchTimeout = "fetch_timeout"
	ReasonFetchError   = "fetch_error"
)

// ReasonHTTPStatus is the failure reason for a fetch that completed with
// an unusable HTTP status.
func ReasonHTTPStatus(code int) string {
	return fmt.Sprintf("http_%d", code)
}

// PageEntry is the unit of work and output. It is created during
// resolution and mutated in place by each downstream stage; ownership
// transfers stage to stage so no per-entry locking is needed.
type PageEntry struct {
	URL               string            `json:"url"`
	Source            EntrySource       `json:"source"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	DescriptionSource DescriptionSource `json:"description_source"`
	MarkdownURL       string            `json:"markdown_url,omitempty"`
	Category          string            `json:"category"`
	Status            EntryStatus       `json:"status"`
	ErrorReason       string            `json:"error_reason,omitempty"`
	Rendered          bool              `json:"rendered,omitempty"`

	// Order is the position in the resolved URL sequence. The assembler
	// sorts on it so output never depends on fetch completion order.
	Order int `json:"-"`

	// Snippet holds distilled main-content text fed to the completion
	// service. It never appears in the rendered document.
	Snippet string `json:"-"`
}

// NewPageEntry creates a pending entry with defaulted fields.
func NewPageEntry(url string, source EntrySource, order int) *PageEntry {
	return &PageEntry{
		URL:               url,
		Source:            source,
		DescriptionSource: DescriptionNone,
		Status:            StatusPending,
		Order:             order,
	}
}

// Section is a named group of entries in the final document.
type Section struct {
	Name    string       `json:"name"`
	Entries []*PageEntry `json:"entries"`
}

// SiteDescriptor is the assembled output: a titled, optionally summarized,
// ordered sequence of sections.
type SiteDescriptor struct {
	Title    string    `json:"title"`
	Summary  string    `json:"summary,omitempty"`
	Sections []Section `json:"sections"`
}

// RunSummary counts per-condition outcomes so a caller can identify and
// re-run failed pages without scraping logs.
type RunSummary struct {
	Resolved             int `json:"resolved"`
	Fetched              int `json:"fetched"`
	FetchFailures        int `json:"fetch_failures"`
	AnalysisDegraded     int `json:"analysis_degraded"`
	Enriched             int `json:"enriched"`
	EnrichmentFailures   int `json:"enrichment_failures"`
	ChildSitemapFailures int `json:"child_sitemap_failures"`
	ExcludedFromOutput   int `json:"excluded_from_output"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL         string
	UseHeadless bool
	Headers     http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// RunRecord is persisted per generation run.
type RunRecord struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Submitted   time.Time  `json:"submitted_at"`
	Finished    *time.Time `json:"finished_at,omitempty"`
	Summary     RunSummary `json:"summary"`
	ArtifactURI string     `json:"artifact_uri,omitempty"`
}

// PageOutcome is persisted per processed page within a run.
type PageOutcome struct {
	RunID             string      `json:"run_id"`
	URL               string      `json:"url"`
	Status            EntryStatus `json:"status"`
	ErrorReason       string      `json:"error_reason,omitempty"`
	Category          string      `json:"category"`
	DescriptionSource string      `json:"description_source"`
	Rendered          bool        `json:"rendered"`
	FetchedAt         time.Time   `json:"fetched_at"`
}
