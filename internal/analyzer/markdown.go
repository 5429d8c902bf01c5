package analyzer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default path templates appended to a page URL when probing for a
// companion Markdown document.
var DefaultMarkdownTemplates = []string{".md", "/index.md", "/README.md"}

// Keywords that mark a URL as documentation-flavored; only such pages are
// probed for Markdown companions.
var docKeywords = []string{"guide", "doc", "api", "reference"}

// MarkdownProber issues lightweight HEAD checks for companion documents.
type MarkdownProber struct {
	client    *http.Client
	templates []string
	userAgent string
	logger    *zap.Logger
}

// NewMarkdownProber builds a prober. templates defaults to
// DefaultMarkdownTemplates when empty.
func NewMarkdownProber(templates []string, userAgent string, timeout time.Duration, logger *zap.Logger) *MarkdownProber {
	if len(templates) == 0 {
		templates = DefaultMarkdownTemplates
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkdownProber{
		client:    &http.Client{Timeout: timeout},
		templates: templates,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Probe returns the first derived Markdown URL that answers 200, or ""
// when none exists or the URL is not documentation-flavored. Probe
// failures are silent; a missing companion is the common case.
func (p *MarkdownProber) Probe(ctx context.Context, pageURL string) string {
	if !looksLikeDocs(pageURL) {
		return ""
	}
	base := strings.TrimRight(pageURL, "/")
	for _, template := range p.templates {
		candidate := base + template
		if p.exists(ctx, candidate) {
			return candidate
		}
	}
	return ""
}

func (p *MarkdownProber) exists(ctx context.Context, candidate string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return false
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("close probe body", zap.Error(cerr))
		}
	}()
	return resp.StatusCode == http.StatusOK
}

func looksLikeDocs(pageURL string) bool {
	lower := strings.ToLower(pageURL)
	for _, kw := range docKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
