package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/analyzer"
	"github.com/sitedesc/llmstxt/internal/assembler"
	"github.com/sitedesc/llmstxt/internal/categorizer"
	"github.com/sitedesc/llmstxt/internal/descriptor"
	"github.com/sitedesc/llmstxt/internal/enrich"
	"github.com/sitedesc/llmstxt/internal/fetchpool"
	memorypublisher "github.com/sitedesc/llmstxt/internal/publisher/memory"
	"github.com/sitedesc/llmstxt/internal/sitemap"
)

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]descriptor.FetchResponse
	errs      map[string]error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		responses: make(map[string]descriptor.FetchResponse),
		errs:      make(map[string]error),
	}
}

func (f *stubFetcher) add(url, body string) {
	f.responses[url] = descriptor.FetchResponse{URL: url, StatusCode: 200, Body: []byte(body)}
}

func (f *stubFetcher) Fetch(_ context.Context, req descriptor.FetchRequest) (descriptor.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[req.URL]; ok {
		return descriptor.FetchResponse{}, err
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return descriptor.FetchResponse{}, fmt.Errorf("unexpected fetch: %s", req.URL)
	}
	return resp, nil
}

type stubCompleter struct {
	mu    sync.Mutex
	calls int
}

func (c *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "Generated description.", nil
}

type recorderHistory struct {
	mu    sync.Mutex
	runs  []descriptor.RunRecord
	pages []descriptor.PageOutcome
}

func (r *recorderHistory) RecordRun(_ context.Context, run descriptor.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *recorderHistory) RecordPages(_ context.Context, pages []descriptor.PageOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, pages...)
	return nil
}

func (r *recorderHistory) Close() {}

type recorderBlobs struct {
	mu    sync.Mutex
	paths []string
	data  [][]byte
}

func (b *recorderBlobs) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	b.data = append(b.data, data)
	return "mem://" + path, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

func pageHTML(title, description, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>`+
		`<meta name="description" content="%s"></head>`+
		`<body><main><p>%s</p></main></body></html>`, title, description, body)
}

func sitemapXML(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, l := range locs {
		out += "<url><loc>" + l + "</loc></url>"
	}
	return out + "</urlset>"
}

func newTestPipeline(t *testing.T, fetcher descriptor.Fetcher, completer descriptor.Completer, cfg Config, deps *Deps) *Pipeline {
	t.Helper()

	var enricher *enrich.Enricher
	if completer != nil {
		enricher = enrich.New(completer, enrich.Config{
			Concurrency:       2,
			RequestsPerSecond: 1000,
			MaxAttempts:       1,
		}, zap.NewNop())
	}

	d := Deps{
		Resolver: sitemap.New(fetcher, zap.NewNop()),
		Pool: fetchpool.New(fetcher, nil, nil,
			fetchpool.NewRetryPolicy(1, time.Millisecond, 2*time.Millisecond),
			fetchpool.Config{Concurrency: 2, FetchTimeout: time.Second}, zap.NewNop()),
		Analyzer:  analyzer.New(analyzer.Config{}, zap.NewNop()),
		Category:  categorizer.New(categorizer.DefaultRules()),
		Enricher:  enricher,
		Assembler: assembler.New(assembler.Config{IncludeFailed: cfg.IncludeFailed}, fixedClock{at: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}),
		Clock:     fixedClock{at: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		IDs:       fixedIDs{id: "run-fixed"},
	}
	if deps != nil {
		d.Blobs = deps.Blobs
		d.History = deps.History
		d.Publisher = deps.Publisher
	}

	p, err := New(d, cfg, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestRunFromSitemapEndToEnd(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.add("https://e.com/sitemap.xml", sitemapXML(
		"https://e.com/about",
		"https://e.com/api",
		"https://e.com/pricing",
		"https://e.com/broken",
	))
	fetcher.add("https://e.com/about", pageHTML("About Example", "What Example is.", "Example explained at length."))
	fetcher.add("https://e.com/api", pageHTML("API Reference", "Endpoints and auth.", "Every endpoint documented."))
	fetcher.add("https://e.com/pricing", pageHTML("Pricing", "Plans and tiers.", "Compare the plans."))
	fetcher.errs["https://e.com/broken"] = fmt.Errorf("connection refused")

	completer := &stubCompleter{}
	blobs := &recorderBlobs{}
	history := &recorderHistory{}
	publisher := memorypublisher.New()

	p := newTestPipeline(t, fetcher, completer, Config{
		SiteTitle:     "Example",
		SiteSummary:   "Demo platform.",
		IncludeFailed: true,
		EventTopic:    "runs-finished",
	}, &Deps{Blobs: blobs, History: history, Publisher: publisher})

	out, err := p.Run(context.Background(), Input{SitemapURL: "https://e.com/sitemap.xml"})
	require.NoError(t, err)

	require.Equal(t, "run-fixed", out.RunID)
	require.Equal(t, 4, out.Summary.Resolved)
	require.Equal(t, 3, out.Summary.Fetched)
	require.Equal(t, 1, out.Summary.FetchFailures)
	require.Equal(t, 3, out.Summary.Enriched)
	require.Zero(t, out.Summary.EnrichmentFailures)
	require.Zero(t, out.Summary.ExcludedFromOutput)
	require.Equal(t, 3, completer.calls)

	require.Contains(t, out.Document, "# Example\n")
	require.Contains(t, out.Document, "> Demo platform.\n")
	require.Contains(t, out.Document, "## Introduction\n")
	require.Contains(t, out.Document, "- [About Example](https://e.com/about): Generated description.")
	require.Contains(t, out.Document, "## API Reference\n")
	require.Contains(t, out.Document, "## Other\n")
	require.Contains(t, out.Document, "(https://e.com/broken)")
	require.Contains(t, out.Document, "2024-06-01")

	require.Equal(t, "mem://runs/run-fixed/llms.txt", out.ArtifactURI)
	require.Equal(t, []string{"runs/run-fixed/llms.txt"}, blobs.paths)
	require.Equal(t, out.Document, string(blobs.data[0]))

	require.Len(t, history.runs, 1)
	require.Equal(t, "run-fixed", history.runs[0].ID)
	require.Equal(t, "sitemap", history.runs[0].Source)
	require.Len(t, history.pages, 4)

	msgs := publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "runs-finished", msgs[0].Topic)
}

func TestRunFromURLListDeduplicates(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.add("https://e.com/about", pageHTML("About Example", "What Example is.", "Example explained."))

	p := newTestPipeline(t, fetcher, nil, Config{IncludeFailed: true}, nil)

	out, err := p.Run(context.Background(), Input{URLs: []string{
		"https://E.com/about#team",
		"https://e.com/about",
		"not a url",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Summary.Resolved)
	require.Equal(t, 1, out.Summary.Fetched)
	require.Zero(t, out.Summary.Enriched)
	require.Contains(t, out.Document, "https://e.com/about")

	require.Len(t, out.Site.Sections, 1)
	entry := out.Site.Sections[0].Entries[0]
	require.Equal(t, descriptor.SourceUpload, entry.Source)
	require.Equal(t, descriptor.DescriptionHeuristic, entry.DescriptionSource)
}

func TestRunFailedPagesExcludedWhenConfigured(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.add("https://e.com/about", pageHTML("About Example", "What Example is.", "Example explained."))
	fetcher.errs["https://e.com/broken"] = fmt.Errorf("connection refused")

	p := newTestPipeline(t, fetcher, nil, Config{IncludeFailed: false}, nil)

	out, err := p.Run(context.Background(), Input{URLs: []string{
		"https://e.com/about",
		"https://e.com/broken",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Summary.ExcludedFromOutput)
	require.NotContains(t, out.Document, "https://e.com/broken")
}

func TestRunSiteIdentityFallsBackToFirstFetchedPage(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.add("https://e.com/about", pageHTML("About Example", "What Example is.", "Example explained."))

	p := newTestPipeline(t, fetcher, nil, Config{IncludeFailed: true}, nil)

	out, err := p.Run(context.Background(), Input{URLs: []string{"https://e.com/about"}})
	require.NoError(t, err)
	require.Equal(t, "About Example", out.Site.Title)
	require.True(t, strings.HasPrefix(out.Document, "# About Example\n"))
}

type promoteAll struct{}

func (promoteAll) ShouldRender(descriptor.FetchResponse) bool { return true }

func TestRunRecordsRenderedFlagAndFailureReason(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.add("https://e.com/spa", `<div id="root"></div>`)
	fetcher.responses["https://e.com/gone"] = descriptor.FetchResponse{
		URL: "https://e.com/gone", StatusCode: 404,
	}

	renderer := newStubFetcher()
	renderer.add("https://e.com/spa", pageHTML("Docs Home", "Everything documented.", "Rendered content."))

	history := &recorderHistory{}
	clk := fixedClock{at: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	p, err := New(Deps{
		Resolver: sitemap.New(fetcher, zap.NewNop()),
		Pool: fetchpool.New(fetcher, renderer, promoteAll{},
			fetchpool.NewRetryPolicy(1, time.Millisecond, 2*time.Millisecond),
			fetchpool.Config{Concurrency: 2, FetchTimeout: time.Second}, zap.NewNop()),
		Analyzer:  analyzer.New(analyzer.Config{}, zap.NewNop()),
		Category:  categorizer.New(categorizer.DefaultRules()),
		Assembler: assembler.New(assembler.Config{IncludeFailed: true}, clk),
		History:   history,
		Clock:     clk,
		IDs:       fixedIDs{id: "run-fixed"},
	}, Config{IncludeFailed: true}, zap.NewNop())
	require.NoError(t, err)

	out, err := p.Run(context.Background(), Input{URLs: []string{
		"https://e.com/spa",
		"https://e.com/gone",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Summary.Fetched)
	require.Equal(t, 1, out.Summary.FetchFailures)

	require.Len(t, history.pages, 2)
	byURL := make(map[string]descriptor.PageOutcome, len(history.pages))
	for _, page := range history.pages {
		byURL[page.URL] = page
	}

	spa := byURL["https://e.com/spa"]
	require.Equal(t, descriptor.StatusFetched, spa.Status)
	require.True(t, spa.Rendered)

	gone := byURL["https://e.com/gone"]
	require.Equal(t, descriptor.StatusFailed, gone.Status)
	require.Equal(t, "http_404", gone.ErrorReason)
	require.False(t, gone.Rendered)
}

func TestRunInputValidation(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	p := newTestPipeline(t, fetcher, nil, Config{}, nil)

	_, err := p.Run(context.Background(), Input{})
	require.Error(t, err)

	_, err = p.Run(context.Background(), Input{
		SitemapURL: "https://e.com/sitemap.xml",
		URLs:       []string{"https://e.com/a"},
	})
	require.Error(t, err)
}

func TestRunRootSitemapFailureIsFatal(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.errs["https://e.com/sitemap.xml"] = fmt.Errorf("dns failure")

	p := newTestPipeline(t, fetcher, nil, Config{}, nil)

	_, err := p.Run(context.Background(), Input{SitemapURL: "https://e.com/sitemap.xml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "resolve sitemap")
}
