// Package robots checks whether a site's robots.txt grants access to the
// crawler identities used by LLM providers.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// PolicyUnavailable annotates a report whose robots.txt could not be
// retrieved; access defaults to allowed in that case.
const PolicyUnavailable = "robots.txt unavailable; all access allowed by default"

// DefaultCrawlers lists the user-agent tokens of well-known LLM crawlers.
func DefaultCrawlers() []string {
	return []string{
		"GPTBot",
		"ChatGPT-User",
		"ClaudeBot",
		"Claude-Web",
		"anthropic-ai",
		"Google-Extended",
		"PerplexityBot",
		"CCBot",
		"Bard",
		"AI2Bot",
	}
}

// Verdict is the decision for one crawler identity.
type Verdict struct {
	Crawler string `json:"crawler"`
	Allowed bool   `json:"allowed"`
}

// Report summarizes access for every checked crawler on one host.
type Report struct {
	Host      string    `json:"host"`
	Path      string    `json:"path"`
	RobotsURL string    `json:"robots_url"`
	Available bool      `json:"robots_available"`
	Note      string    `json:"note,omitempty"`
	Verdicts  []Verdict `json:"verdicts"`
}

// Checker fetches and evaluates robots.txt files, caching parsed policies
// per host for the checker's lifetime.
type Checker struct {
	client   *http.Client
	crawlers []string
	logger   *zap.Logger

	cache sync.Map // host -> *robotstxt.RobotsData (nil entry = unavailable)
}

// NewChecker builds a Checker. crawlers defaults to DefaultCrawlers.
func NewChecker(crawlers []string, timeout time.Duration, logger *zap.Logger) *Checker {
	if len(crawlers) == 0 {
		crawlers = DefaultCrawlers()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		client:   &http.Client{Timeout: timeout},
		crawlers: crawlers,
		logger:   logger,
	}
}

// Check evaluates access to target for every configured crawler. A
// missing or unreachable robots.txt yields an allow-all report with a
// note, never an error; only an unparseable target URL fails.
func (c *Checker) Check(ctx context.Context, target string) (Report, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return Report{}, fmt.Errorf("robots: parse target %q: %w", target, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Report{}, fmt.Errorf("robots: target %q is not an http(s) URL", target)
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	robotsURL := parsed.Scheme + "://" + parsed.Host + "/robots.txt"
	report := Report{
		Host:      parsed.Host,
		Path:      path,
		RobotsURL: robotsURL,
		Verdicts:  make([]Verdict, 0, len(c.crawlers)),
	}

	data := c.policyFor(ctx, parsed.Host, robotsURL)
	report.Available = data != nil
	if data == nil {
		report.Note = PolicyUnavailable
	}

	for _, crawler := range c.crawlers {
		allowed := true
		if data != nil {
			allowed = data.FindGroup(crawler).Test(path)
		}
		report.Verdicts = append(report.Verdicts, Verdict{Crawler: crawler, Allowed: allowed})
	}
	sort.Slice(report.Verdicts, func(i, j int) bool {
		return strings.ToLower(report.Verdicts[i].Crawler) < strings.ToLower(report.Verdicts[j].Crawler)
	})
	return report, nil
}

// Allowed reports whether a single crawler may access target. Unavailable
// policies allow everything.
func (c *Checker) Allowed(ctx context.Context, crawler, target string) (bool, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return false, fmt.Errorf("robots: parse target %q: %w", target, err)
	}
	robotsURL := parsed.Scheme + "://" + parsed.Host + "/robots.txt"
	data := c.policyFor(ctx, parsed.Host, robotsURL)
	if data == nil {
		return true, nil
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return data.FindGroup(crawler).Test(path), nil
}

// policyFor returns the cached parsed policy for host, fetching it on
// first use. A nil return means the policy is unavailable.
func (c *Checker) policyFor(ctx context.Context, host, robotsURL string) *robotstxt.RobotsData {
	if cached, ok := c.cache.Load(host); ok {
		if data, ok := cached.(*robotstxt.RobotsData); ok {
			return data
		}
		return nil
	}

	data := c.fetch(ctx, robotsURL)
	if data != nil {
		c.cache.Store(host, data)
	} else {
		c.cache.Store(host, struct{}{})
	}
	return data
}

func (c *Checker) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots fetch failed", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Debug("robots read failed", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Debug("robots parse failed", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	return data
}
