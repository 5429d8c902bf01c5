// Package pipeline wires the generation stages together: resolve page
// URLs, fetch them, analyze content, categorize, enrich descriptions, and
// assemble the final document. Side effects (artifact storage, run
// history, events) hang off interfaces so any of them can be disabled.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/analyzer"
	"github.com/sitedesc/llmstxt/internal/assembler"
	"github.com/sitedesc/llmstxt/internal/categorizer"
	"github.com/sitedesc/llmstxt/internal/database"
	"github.com/sitedesc/llmstxt/internal/descriptor"
	"github.com/sitedesc/llmstxt/internal/enrich"
	"github.com/sitedesc/llmstxt/internal/fetchpool"
	"github.com/sitedesc/llmstxt/internal/metrics"
	"github.com/sitedesc/llmstxt/internal/sitemap"
)

// Input selects the page source for one run: a sitemap URL to resolve, or
// an explicit URL list. Exactly one must be set.
type Input struct {
	SitemapURL string
	URLs       []string
}

// Source labels the input kind for run records.
func (in Input) Source() descriptor.EntrySource {
	if in.SitemapURL != "" {
		return descriptor.SourceSitemap
	}
	return descriptor.SourceUpload
}

// Config controls run behavior.
type Config struct {
	// SiteTitle and SiteSummary override the values inferred from the
	// first fetched page.
	SiteTitle   string
	SiteSummary string
	// IncludeFailed keeps failed pages in the output with empty
	// descriptions.
	IncludeFailed bool
	// EventTopic, when set, receives a run-completion event.
	EventTopic string
}

// Output is the outcome of one run.
type Output struct {
	RunID       string
	Document    string
	Site        descriptor.SiteDescriptor
	Summary     descriptor.RunSummary
	ArtifactURI string
}

// Pipeline owns one configured set of stages; Run may be called
// concurrently for independent runs.
type Pipeline struct {
	resolver  *sitemap.Resolver
	pool      *fetchpool.Pool
	analyzer  *analyzer.Analyzer
	prober    *analyzer.MarkdownProber
	category  *categorizer.Categorizer
	enricher  *enrich.Enricher
	assembler *assembler.Assembler

	blobs     descriptor.BlobStore
	history   database.Provider
	publisher descriptor.Publisher
	clock     descriptor.Clock
	ids       descriptor.IDGenerator

	cfg    Config
	logger *zap.Logger
}

// Deps carries the stage implementations for New. Optional side-effect
// dependencies (blobs, history, publisher) may be nil.
type Deps struct {
	Resolver  *sitemap.Resolver
	Pool      *fetchpool.Pool
	Analyzer  *analyzer.Analyzer
	Prober    *analyzer.MarkdownProber
	Category  *categorizer.Categorizer
	Enricher  *enrich.Enricher
	Assembler *assembler.Assembler
	Blobs     descriptor.BlobStore
	History   database.Provider
	Publisher descriptor.Publisher
	Clock     descriptor.Clock
	IDs       descriptor.IDGenerator
}

// New constructs a Pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case deps.Resolver == nil:
		return nil, fmt.Errorf("pipeline: resolver is required")
	case deps.Pool == nil:
		return nil, fmt.Errorf("pipeline: fetch pool is required")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("pipeline: analyzer is required")
	case deps.Category == nil:
		return nil, fmt.Errorf("pipeline: categorizer is required")
	case deps.Assembler == nil:
		return nil, fmt.Errorf("pipeline: assembler is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("pipeline: clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("pipeline: id generator is required")
	}
	if deps.History == nil {
		deps.History = database.NoOp{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver:  deps.Resolver,
		pool:      deps.Pool,
		analyzer:  deps.Analyzer,
		prober:    deps.Prober,
		category:  deps.Category,
		enricher:  deps.Enricher,
		assembler: deps.Assembler,
		blobs:     deps.Blobs,
		history:   deps.History,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		ids:       deps.IDs,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run executes one generation end to end. Cancellation mid-run still
// produces a document from whatever pages completed; only a failed root
// resolution or empty input aborts with an error.
func (p *Pipeline) Run(ctx context.Context, input Input) (Output, error) {
	runID, err := p.ids.NewID()
	if err != nil {
		return Output{}, fmt.Errorf("pipeline: new run id: %w", err)
	}
	submitted := p.clock.Now()
	logger := p.logger.With(zap.String("run_id", runID))

	entries, summary, err := p.resolve(ctx, input, logger)
	if err != nil {
		metrics.ObserveRun("failed")
		return Output{}, err
	}

	p.fetchAndAnalyze(ctx, entries, &summary)

	if p.enricher != nil {
		summary.Enriched, summary.EnrichmentFailures = p.enricher.Enrich(ctx, entries)
	}

	title, siteSummary := p.siteIdentity(entries, input)
	site, excluded := p.assembler.Assemble(title, siteSummary, entries)
	summary.ExcludedFromOutput = excluded
	document := p.assembler.Render(site)

	out := Output{
		RunID:    runID,
		Document: document,
		Site:     site,
		Summary:  summary,
	}
	p.persist(ctx, &out, input, submitted, entries, logger)

	status := "succeeded"
	if ctx.Err() != nil {
		status = "canceled"
	}
	metrics.ObserveRun(status)
	logger.Info("run finished",
		zap.String("status", status),
		zap.Int("resolved", summary.Resolved),
		zap.Int("fetched", summary.Fetched),
		zap.Int("fetch_failures", summary.FetchFailures),
		zap.Int("enriched", summary.Enriched),
	)
	return out, nil
}

// resolve turns the input into ordered pending entries.
func (p *Pipeline) resolve(ctx context.Context, input Input, logger *zap.Logger) ([]*descriptor.PageEntry, descriptor.RunSummary, error) {
	var summary descriptor.RunSummary
	var urls []string
	source := input.Source()

	switch {
	case input.SitemapURL != "" && len(input.URLs) > 0:
		return nil, summary, fmt.Errorf("pipeline: sitemap url and url list are mutually exclusive")
	case input.SitemapURL != "":
		result, err := p.resolver.Resolve(ctx, input.SitemapURL)
		if err != nil {
			return nil, summary, fmt.Errorf("pipeline: resolve sitemap: %w", err)
		}
		urls = result.URLs
		summary.ChildSitemapFailures = len(result.ChildFailures)
		for range result.ChildFailures {
			metrics.ObserveChildSitemapFailure()
		}
	case len(input.URLs) > 0:
		urls = dedupeNormalized(input.URLs, logger)
	default:
		return nil, summary, fmt.Errorf("pipeline: no input: provide a sitemap url or a url list")
	}

	if len(urls) == 0 {
		return nil, summary, fmt.Errorf("pipeline: input produced no page urls")
	}
	summary.Resolved = len(urls)

	entries := make([]*descriptor.PageEntry, len(urls))
	for i, u := range urls {
		entries[i] = descriptor.NewPageEntry(u, source, i)
	}
	return entries, summary, nil
}

// fetchAndAnalyze runs the pool over all entries and fills each fetched
// entry's analysis fields in place.
func (p *Pipeline) fetchAndAnalyze(ctx context.Context, entries []*descriptor.PageEntry, summary *descriptor.RunSummary) {
	urls := make([]string, len(entries))
	for i, entry := range entries {
		urls[i] = entry.URL
	}

	results := p.pool.FetchAll(ctx, urls)
	for _, result := range results {
		entry := entries[result.Index]
		if !result.OK() {
			entry.Status = descriptor.StatusFailed
			entry.ErrorReason = result.Reason
			entry.Title = titleFallback(entry.URL)
			summary.FetchFailures++
			continue
		}

		entry.Status = descriptor.StatusFetched
		entry.Rendered = result.Response.Rendered
		info := p.analyzer.Analyze(entry.URL, result.Response.Body)
		if info.Degraded {
			summary.AnalysisDegraded++
		}
		entry.Title = info.Title
		entry.Snippet = info.Snippet
		if info.Description != "" {
			entry.Description = info.Description
			entry.DescriptionSource = descriptor.DescriptionHeuristic
		}
		if p.prober != nil {
			entry.MarkdownURL = p.prober.Probe(ctx, entry.URL)
		}
		summary.Fetched++
	}

	for _, entry := range entries {
		entry.Category = p.category.Categorize(entry.URL, entry.Title)
	}
}

// siteIdentity picks the document title and summary: explicit config wins,
// then the first fetched entry, then the input host.
func (p *Pipeline) siteIdentity(entries []*descriptor.PageEntry, input Input) (string, string) {
	title := p.cfg.SiteTitle
	summary := p.cfg.SiteSummary

	if title == "" || summary == "" {
		for _, entry := range entries {
			if entry.Status != descriptor.StatusFetched {
				continue
			}
			if title == "" {
				title = entry.Title
			}
			if summary == "" {
				summary = entry.Description
			}
			break
		}
	}
	if title == "" {
		title = hostOf(input)
	}
	return title, summary
}

func (p *Pipeline) persist(ctx context.Context, out *Output, input Input, submitted time.Time, entries []*descriptor.PageEntry, logger *zap.Logger) {
	finished := p.clock.Now()

	if p.blobs != nil {
		path := fmt.Sprintf("runs/%s/llms.txt", out.RunID)
		uri, err := p.blobs.PutObject(ctx, path, "text/plain; charset=utf-8", []byte(out.Document))
		if err != nil {
			logger.Error("store document failed", zap.Error(err))
		} else {
			out.ArtifactURI = uri
		}
	}

	run := descriptor.RunRecord{
		ID:          out.RunID,
		Source:      string(input.Source()),
		Submitted:   submitted,
		Finished:    &finished,
		Summary:     out.Summary,
		ArtifactURI: out.ArtifactURI,
	}
	if err := p.history.RecordRun(ctx, run); err != nil {
		logger.Error("record run failed", zap.Error(err))
	}

	pages := make([]descriptor.PageOutcome, 0, len(entries))
	for _, entry := range entries {
		pages = append(pages, descriptor.PageOutcome{
			RunID:             out.RunID,
			URL:               entry.URL,
			Status:            entry.Status,
			ErrorReason:       entry.ErrorReason,
			Category:          entry.Category,
			DescriptionSource: string(entry.DescriptionSource),
			Rendered:          entry.Rendered,
			FetchedAt:         finished,
		})
	}
	if err := p.history.RecordPages(ctx, pages); err != nil {
		logger.Error("record pages failed", zap.Error(err))
	}

	if p.publisher != nil && p.cfg.EventTopic != "" {
		if _, err := p.publisher.Publish(ctx, p.cfg.EventTopic, run); err != nil {
			logger.Error("publish run event failed", zap.Error(err))
		}
	}
}

// dedupeNormalized normalizes a user-supplied URL list and drops
// duplicates, preserving first-seen order.
func dedupeNormalized(urls []string, logger *zap.Logger) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		normalized, err := descriptor.NormalizeURL(raw)
		if err != nil {
			logger.Debug("skipping unparseable url", zap.String("url", raw), zap.Error(err))
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func hostOf(input Input) string {
	candidate := input.SitemapURL
	if candidate == "" && len(input.URLs) > 0 {
		candidate = input.URLs[0]
	}
	if parsed, err := url.Parse(candidate); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return "Site"
}

// titleFallback derives a readable label for pages that never fetched.
func titleFallback(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return strings.NewReplacer("-", " ", "_", " ").Replace(segments[i])
		}
	}
	return parsed.Host
}
