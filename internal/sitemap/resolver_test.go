package sitemap

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

type fakeFetcher struct {
	responses map[string]descriptor.FetchResponse
	errs      map[string]error
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]descriptor.FetchResponse),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) addXML(url, body string) {
	f.responses[url] = descriptor.FetchResponse{URL: url, StatusCode: 200, Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(_ context.Context, req descriptor.FetchRequest) (descriptor.FetchResponse, error) {
	f.calls[req.URL]++
	if err, ok := f.errs[req.URL]; ok {
		return descriptor.FetchResponse{}, err
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return descriptor.FetchResponse{}, fmt.Errorf("unexpected fetch: %s", req.URL)
	}
	return resp, nil
}

func urlSetXML(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, l := range locs {
		out += "<url><loc>" + l + "</loc></url>"
	}
	return out + "</urlset>"
}

func indexXML(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, l := range locs {
		out += "<sitemap><loc>" + l + "</loc></sitemap>"
	}
	return out + "</sitemapindex>"
}

func TestResolveFlatSitemap(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.addXML("https://example.com/sitemap.xml",
		urlSetXML("https://example.com/a", "https://example.com/b"))

	result, err := New(fetcher, zap.NewNop()).Resolve(context.Background(), "https://example.com/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, result.URLs)
	require.Empty(t, result.ChildFailures)
}

func TestResolveIndexDeduplicatesAcrossChildren(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.addXML("https://example.com/sitemap.xml",
		indexXML("https://example.com/s1.xml", "https://example.com/s2.xml"))
	// /b appears in both children, plus casing and fragment variants that
	// normalize to the same URL.
	fetcher.addXML("https://example.com/s1.xml",
		urlSetXML("https://example.com/a", "https://example.com/b", "HTTPS://EXAMPLE.COM/a"))
	fetcher.addXML("https://example.com/s2.xml",
		urlSetXML("https://example.com/b#frag", "https://example.com/c", "https://example.com/d"))

	result, err := New(fetcher, zap.NewNop()).Resolve(context.Background(), "https://example.com/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/d",
	}, result.URLs)
}

func TestResolveCyclicIndexTerminates(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.addXML("https://example.com/sitemap.xml",
		indexXML("https://example.com/s1.xml"))
	fetcher.addXML("https://example.com/s1.xml",
		indexXML("https://example.com/sitemap.xml", "https://example.com/s2.xml"))
	fetcher.addXML("https://example.com/s2.xml",
		urlSetXML("https://example.com/page"))

	result, err := New(fetcher, zap.NewNop()).Resolve(context.Background(), "https://example.com/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/page"}, result.URLs)
	require.Equal(t, 1, fetcher.calls["https://example.com/sitemap.xml"])
}

func TestResolveRootFailureIsFatal(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.errs["https://example.com/sitemap.xml"] = fmt.Errorf("connection refused")

	_, err := New(fetcher, zap.NewNop()).Resolve(context.Background(), "https://example.com/sitemap.xml")
	require.Error(t, err)
	var resErr *descriptor.ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, "https://example.com/sitemap.xml", resErr.URL)
}

func TestResolveChildFailureIsRecordedNotFatal(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.addXML("https://example.com/sitemap.xml",
		indexXML("https://example.com/good.xml", "https://example.com/bad.xml"))
	fetcher.addXML("https://example.com/good.xml", urlSetXML("https://example.com/a"))
	fetcher.errs["https://example.com/bad.xml"] = fmt.Errorf("boom")

	result, err := New(fetcher, zap.NewNop()).Resolve(context.Background(), "https://example.com/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a"}, result.URLs)
	require.Len(t, result.ChildFailures, 1)
	require.Equal(t, "https://example.com/bad.xml", result.ChildFailures[0].URL)
}

func TestResolveNonOKStatusIsError(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.responses["https://example.com/sitemap.xml"] = descriptor.FetchResponse{
		URL: "https://example.com/sitemap.xml", StatusCode: 404,
	}

	_, err := New(fetcher, zap.NewNop()).Resolve(context.Background(), "https://example.com/sitemap.xml")
	require.Error(t, err)
}
