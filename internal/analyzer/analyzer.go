// Package analyzer extracts titles, heuristic descriptions, and content
// snippets from fetched HTML, and probes for companion Markdown documents.
package analyzer

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Config controls extraction behavior.
type Config struct {
	// MaxDescriptionLen bounds heuristic descriptions, truncated at a
	// word boundary.
	MaxDescriptionLen int
	// MaxSnippetLen bounds the main-content text handed to the
	// completion service.
	MaxSnippetLen int
}

// Info is the analysis outcome for one page. Degraded marks pages whose
// markup could not be parsed; they carry empty fields rather than errors.
type Info struct {
	Title       string
	Description string
	Snippet     string
	Degraded    bool
}

// Analyzer is stateless apart from configuration.
type Analyzer struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs an Analyzer.
func New(cfg Config, logger *zap.Logger) *Analyzer {
	if cfg.MaxDescriptionLen <= 0 {
		cfg.MaxDescriptionLen = 150
	}
	if cfg.MaxSnippetLen <= 0 {
		cfg.MaxSnippetLen = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Analyze extracts title, heuristic description, and a content snippet
// from HTML. Malformed markup degrades to empty fields.
func (a *Analyzer) Analyze(pageURL string, body []byte) Info {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		a.logger.Debug("html parse failed", zap.String("url", pageURL), zap.Error(err))
		return Info{Title: titleFromSlug(pageURL), Degraded: true}
	}

	info := Info{}
	info.Title = a.extractTitle(doc, pageURL)
	info.Snippet = a.extractSnippet(pageURL, body, doc)
	info.Description = a.extractDescription(doc, info.Snippet)
	return info
}

func (a *Analyzer) extractTitle(doc *goquery.Document, pageURL string) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = titleFromSlug(pageURL)
	}
	return collapseWhitespace(title)
}

func (a *Analyzer) extractDescription(doc *goquery.Document, snippet string) string {
	if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc := collapseWhitespace(meta); desc != "" {
			return TruncateWords(desc, a.cfg.MaxDescriptionLen)
		}
	}

	// First substantive paragraph.
	var para string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseWhitespace(s.Text())
		if len(text) > 20 {
			para = text
			return false
		}
		return true
	})
	if para != "" {
		return TruncateWords(firstSentence(para), a.cfg.MaxDescriptionLen)
	}

	// Fall back to the opening of the distilled content.
	if snippet != "" {
		if sentence := firstSentence(snippet); len(sentence) > 20 {
			return TruncateWords(sentence, a.cfg.MaxDescriptionLen)
		}
	}
	return ""
}

// extractSnippet prefers readability's distilled article text and falls
// back to concatenated paragraph text when distillation fails.
func (a *Analyzer) extractSnippet(pageURL string, body []byte, doc *goquery.Document) string {
	parsed, err := url.Parse(pageURL)
	if err == nil {
		parser := readability.NewParser()
		article, rerr := parser.Parse(bytes.NewReader(body), parsed)
		if rerr == nil {
			if text := collapseWhitespace(article.TextContent); text != "" {
				return clip(text, a.cfg.MaxSnippetLen)
			}
		} else {
			a.logger.Debug("readability parse failed",
				zap.String("url", pageURL), zap.Error(rerr))
		}
	}

	var sb strings.Builder
	doc.Find("main p, article p, p").Each(func(_ int, s *goquery.Selection) {
		text := collapseWhitespace(s.Text())
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	})
	return clip(sb.String(), a.cfg.MaxSnippetLen)
}

// titleFromSlug derives a display title from the last URL path segment.
func titleFromSlug(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "Page"
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	slug := ""
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			slug = segments[i]
			break
		}
	}
	if slug == "" {
		return "Page"
	}
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return strings.Title(slug) //nolint:staticcheck // ASCII slugs only
}

// TruncateWords bounds s to max characters, cutting at a word boundary
// and appending an ellipsis when anything was removed.
func TruncateWords(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

func firstSentence(s string) string {
	if idx := strings.IndexByte(s, '.'); idx > 0 {
		return s[:idx+1]
	}
	return s
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func clip(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
