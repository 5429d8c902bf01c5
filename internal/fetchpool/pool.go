// Package fetchpool runs bounded-concurrency page fetches with retry and
// optional rendered fallback. One page's failure never blocks or fails
// sibling fetches.
package fetchpool

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/descriptor"
	collyfetcher "github.com/sitedesc/llmstxt/internal/fetcher/colly"
	"github.com/sitedesc/llmstxt/internal/metrics"
)

// Config controls pool behavior.
type Config struct {
	Concurrency  int
	FetchTimeout time.Duration
}

// Result pairs a URL with either its response or a structured failure.
// Index preserves the submission position so callers can re-join results
// against the original URL sequence.
type Result struct {
	Index    int
	URL      string
	Response descriptor.FetchResponse
	Err      error
	Reason   string
	Attempts int
}

// OK reports whether the fetch produced usable content.
func (r Result) OK() bool {
	return r.Err == nil && r.Response.StatusCode >= 200 && r.Response.StatusCode < 400
}

// Pool feeds a fixed worker set from a request queue; excess URLs wait.
type Pool struct {
	fetcher  descriptor.Fetcher
	renderer descriptor.Fetcher
	detector descriptor.RenderDetector
	retry    *ExponentialRetryPolicy
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Pool. renderer and det may be nil, disabling the
// rendered fallback.
func New(
	fetcher descriptor.Fetcher,
	renderer descriptor.Fetcher,
	det descriptor.RenderDetector,
	retry *ExponentialRetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		fetcher:  fetcher,
		renderer: renderer,
		detector: det,
		retry:    retry,
		cfg:      cfg,
		logger:   logger,
	}
}

// FetchAll fetches every URL and returns one Result per input, indexed by
// submission order. Cancellation stops issuing new fetches; URLs never
// started are returned as failures with the context error.
func (p *Pool) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.fetchOne(ctx, idx, urls[idx])
			}
		}()
	}

feed:
	for i := range urls {
		select {
		case <-ctx.Done():
			for j := i; j < len(urls); j++ {
				results[j] = Result{
					Index:  j,
					URL:    urls[j],
					Err:    ctx.Err(),
					Reason: descriptor.ReasonFetchError,
				}
			}
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Pool) fetchOne(ctx context.Context, idx int, url string) Result {
	result := Result{Index: idx, URL: url}

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1
		resp, err := p.attempt(ctx, url)
		if err == nil && !RetryableStatus(resp.StatusCode) {
			result.Response = resp
			if resp.StatusCode >= 200 && resp.StatusCode < 400 {
				break
			}
			// Unusable status that retrying cannot fix (404, 403, ...).
			result.Err = fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
			result.Reason = descriptor.ReasonHTTPStatus(resp.StatusCode)
			p.logger.Warn("fetch failed",
				zap.String("url", url),
				zap.Int("attempts", result.Attempts),
				zap.String("reason", result.Reason),
			)
			metrics.ObservePageFetch("failed")
			return result
		}

		retryable := false
		switch {
		case err != nil:
			retryable = p.retry.ShouldRetry(err, attempt+1)
		case RetryableStatus(resp.StatusCode):
			retryable = attempt+1 < p.retry.MaxAttempts()
		}

		if !retryable {
			if err != nil {
				result.Err = err
				result.Reason = classifyReason(err)
			} else {
				result.Response = resp
				result.Err = fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
				result.Reason = descriptor.ReasonHTTPStatus(resp.StatusCode)
			}
			p.logger.Warn("fetch failed",
				zap.String("url", url),
				zap.Int("attempts", result.Attempts),
				zap.String("reason", result.Reason),
			)
			metrics.ObservePageFetch("failed")
			return result
		}

		if sleepErr := sleepWithContext(ctx, p.retry.Backoff(attempt)); sleepErr != nil {
			result.Err = sleepErr
			result.Reason = descriptor.ReasonFetchError
			return result
		}
	}

	result.Response = p.maybeRender(ctx, url, result.Response)
	metrics.ObservePageFetch("fetched")
	return result
}

func (p *Pool) attempt(ctx context.Context, url string) (descriptor.FetchResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	resp, err := p.fetcher.Fetch(fetchCtx, descriptor.FetchRequest{URL: url})
	if err != nil {
		return descriptor.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	return resp, nil
}

// maybeRender issues a second, rendered fetch when the static content
// looks like an empty shell. Rendering failures fall back silently to the
// static result.
func (p *Pool) maybeRender(ctx context.Context, url string, static descriptor.FetchResponse) descriptor.FetchResponse {
	if p.renderer == nil || p.detector == nil || !p.detector.ShouldRender(static) {
		return static
	}

	renderCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	rendered, err := p.renderer.Fetch(renderCtx, descriptor.FetchRequest{URL: url, UseHeadless: true})
	if err != nil {
		p.logger.Warn("rendered fetch failed, keeping static content",
			zap.String("url", url), zap.Error(err))
		return static
	}
	if rendered.StatusCode != http.StatusOK || len(rendered.Body) == 0 {
		return static
	}
	rendered.Rendered = true
	metrics.ObserveRenderPromotion()
	return rendered
}

func classifyReason(err error) string {
	if collyfetcher.IsTimeout(err) {
		return descriptor.ReasonFetchTimeout
	}
	return descriptor.ReasonFetchError
}
