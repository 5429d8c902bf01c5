// Package sitemap resolves a sitemap URL into a deduplicated page URL set,
// expanding nested sitemap indexes.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

// Resolver walks a sitemap graph breadth-first with a visited set, so a
// sitemap referenced twice (or cyclically) is fetched at most once.
type Resolver struct {
	fetcher descriptor.Fetcher
	logger  *zap.Logger
}

// Result is the flattened outcome of a resolution.
type Result struct {
	URLs          []string
	ChildFailures []descriptor.ChildResolutionWarning
}

// New constructs a Resolver on top of a Fetcher.
func New(fetcher descriptor.Fetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, logger: logger}
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []loc    `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []loc    `xml:"url"`
}

type loc struct {
	Loc string `xml:"loc"`
}

// Resolve fetches and parses the sitemap at rootURL. Only a root failure
// returns an error (descriptor.ResolutionError); failed child sitemaps are
// recorded and skipped.
func (r *Resolver) Resolve(ctx context.Context, rootURL string) (Result, error) {
	result := Result{}
	visited := make(map[string]struct{})
	seen := make(map[string]struct{})
	queue := []string{rootURL}
	isRoot := true

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("resolution canceled: %w", err)
		}
		current := queue[0]
		queue = queue[1:]

		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		pages, children, err := r.fetchAndParse(ctx, current)
		if err != nil {
			if isRoot {
				return result, &descriptor.ResolutionError{URL: current, Err: err}
			}
			r.logger.Warn("child sitemap skipped",
				zap.String("sitemap_url", current),
				zap.Error(err),
			)
			result.ChildFailures = append(result.ChildFailures,
				descriptor.ChildResolutionWarning{URL: current, Err: err})
			continue
		}
		isRoot = false

		for _, child := range children {
			if _, ok := visited[child]; !ok {
				queue = append(queue, child)
			}
		}
		for _, page := range pages {
			normalized, err := descriptor.NormalizeURL(page)
			if err != nil {
				r.logger.Debug("skipping unparseable page url",
					zap.String("url", page), zap.Error(err))
				continue
			}
			if _, ok := seen[normalized]; ok {
				continue
			}
			seen[normalized] = struct{}{}
			result.URLs = append(result.URLs, normalized)
		}
	}

	return result, nil
}

// fetchAndParse retrieves one sitemap document and splits it into page
// URLs and child sitemap URLs. A document containing <sitemap> references
// is treated as an index even if it also lists pages.
func (r *Resolver) fetchAndParse(ctx context.Context, sitemapURL string) (pages, children []string, err error) {
	resp, err := r.fetcher.Fetch(ctx, descriptor.FetchRequest{URL: sitemapURL})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch sitemap: status %d", resp.StatusCode)
	}

	var index sitemapIndex
	if err := xml.Unmarshal(resp.Body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, entry := range index.Sitemaps {
			if entry.Loc != "" {
				children = append(children, entry.Loc)
			}
		}
		return nil, children, nil
	}

	var set urlSet
	if err := xml.Unmarshal(resp.Body, &set); err != nil {
		return nil, nil, fmt.Errorf("parse sitemap xml: %w", err)
	}
	for _, entry := range set.URLs {
		if entry.Loc != "" {
			pages = append(pages, entry.Loc)
		}
	}
	return pages, nil, nil
}
