// Package metrics exposes Prometheus collectors for the generator service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal        *prometheus.CounterVec
	renderPromotions  prometheus.Counter
	enrichmentTotal   *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	sitemapChildFails prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_pages_total",
				Help: "Total pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		renderPromotions = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "llmstxt_render_promotions_total",
				Help: "Total fetches promoted to a rendered browser pass.",
			},
		)
		enrichmentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_enrichment_total",
				Help: "Total description generation attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmstxt_runs_total",
				Help: "Total generation runs, labeled by status.",
			},
			[]string{"status"},
		)
		sitemapChildFails = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "llmstxt_sitemap_child_failures_total",
				Help: "Total nested sitemaps that could not be resolved.",
			},
		)
	})
}

// ObservePageFetch records one page outcome ("fetched" or "failed").
func ObservePageFetch(outcome string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRenderPromotion records a promotion to the rendered fetcher.
func ObserveRenderPromotion() {
	if renderPromotions != nil {
		renderPromotions.Inc()
	}
}

// ObserveEnrichment records one generation outcome ("generated" or "failed").
func ObserveEnrichment(outcome string) {
	if enrichmentTotal != nil {
		enrichmentTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRun records a finished run ("succeeded", "failed", "canceled").
func ObserveRun(status string) {
	if runsTotal != nil {
		runsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveChildSitemapFailure records one skipped nested sitemap.
func ObserveChildSitemapFailure() {
	if sitemapChildFails != nil {
		sitemapChildFails.Inc()
	}
}
