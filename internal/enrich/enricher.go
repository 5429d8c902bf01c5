// Package enrich generates page descriptions through a completion
// service, with bounded concurrency, rate limiting, and retry on
// transient failures. Pages keep their heuristic description when
// generation cannot succeed.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sitedesc/llmstxt/internal/descriptor"
	"github.com/sitedesc/llmstxt/internal/metrics"
)

// Config controls enrichment behavior.
type Config struct {
	// Concurrency bounds in-flight completion requests. Defaults to 4.
	Concurrency int
	// RequestsPerSecond caps the request rate across all workers.
	// Defaults to 2.
	RequestsPerSecond float64
	// MaxAttempts bounds retries per page. Defaults to 3.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff. Defaults to 1s.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff sleep. Defaults to 30s.
	MaxDelay time.Duration
	// MaxDescriptionLen bounds generated descriptions. Defaults to 150.
	MaxDescriptionLen int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxDescriptionLen <= 0 {
		c.MaxDescriptionLen = 150
	}
	return c
}

// Enricher fans pages out to a completion service.
type Enricher struct {
	completer descriptor.Completer
	limiter   *rate.Limiter
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Enricher. completer may be nil, in which case Enrich
// is a no-op and every page keeps its heuristic description.
func New(completer descriptor.Completer, cfg Config, logger *zap.Logger) *Enricher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		completer: completer,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:       cfg,
		logger:    logger,
	}
}

// Enrich generates descriptions for fetched entries in place and returns
// counts of generated and failed pages. Entries that already failed to
// fetch are skipped.
func (e *Enricher) Enrich(ctx context.Context, entries []*descriptor.PageEntry) (generated, failed int) {
	if e.completer == nil {
		return 0, 0
	}

	jobs := make(chan *descriptor.PageEntry)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				ok := e.enrichOne(ctx, entry)
				mu.Lock()
				if ok {
					generated++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, entry := range entries {
		if entry.Status != descriptor.StatusFetched {
			continue
		}
		select {
		case jobs <- entry:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return generated, failed
}

// enrichOne drives the retry loop for a single page. On success the
// entry's description and source are replaced; on exhaustion the
// heuristic description stays.
func (e *Enricher) enrichOne(ctx context.Context, entry *descriptor.PageEntry) bool {
	prompt := buildPrompt(entry.Title, entry.Snippet, e.cfg.MaxDescriptionLen)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		text, err := e.completer.Complete(ctx, prompt)
		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				lastErr = fmt.Errorf("empty completion")
			} else {
				if len(text) > e.cfg.MaxDescriptionLen {
					text = truncate(text, e.cfg.MaxDescriptionLen)
				}
				entry.Description = text
				entry.DescriptionSource = descriptor.DescriptionGenerated
				metrics.ObserveEnrichment("generated")
				return true
			}
		} else {
			lastErr = err
		}

		if !retryable(lastErr) || attempt == e.cfg.MaxAttempts {
			break
		}
		delay := e.backoff(attempt)
		e.logger.Debug("completion retry",
			zap.String("url", entry.URL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = e.cfg.MaxAttempts
		}
	}

	e.logger.Warn("description generation failed, keeping heuristic",
		zap.String("url", entry.URL), zap.Error(lastErr))
	metrics.ObserveEnrichment("failed")
	return false
}

func (e *Enricher) backoff(attempt int) time.Duration {
	delay := e.cfg.BaseDelay << uint(attempt-1)
	if delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	return delay
}

// retryable honors the RetryableError contract when the error carries
// one; context cancellation is never retried, unknown errors are.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re descriptor.RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

func buildPrompt(title, snippet string, maxLen int) string {
	var sb strings.Builder
	sb.WriteString("Write a concise, factual description of this web page in at most ")
	fmt.Fprintf(&sb, "%d characters. ", maxLen)
	sb.WriteString("Return only the description, no preamble.\n\n")
	if title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", title)
	}
	if snippet != "" {
		fmt.Fprintf(&sb, "Content: %s\n", snippet)
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}
