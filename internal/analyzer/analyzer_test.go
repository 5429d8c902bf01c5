package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnalyzer() *Analyzer {
	return New(Config{}, zap.NewNop())
}

func TestAnalyzeTitlePreference(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()

	info := a.Analyze("https://e.com/p", []byte(`<html><head><title>Page Title</title></head><body><h1>Heading</h1></body></html>`))
	require.Equal(t, "Page Title", info.Title)

	info = a.Analyze("https://e.com/p", []byte(`<html><body><h1>Heading Only</h1></body></html>`))
	require.Equal(t, "Heading Only", info.Title)
}

func TestAnalyzeTitleFallsBackToSlug(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	info := a.Analyze("https://e.com/docs/getting-started", []byte(`<html><body></body></html>`))
	require.Equal(t, "Getting Started", info.Title)
}

func TestAnalyzeDescriptionFromMeta(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	html := `<html><head><meta name="description" content="  A   concise summary.  "></head><body><p>Other text that is long enough to matter.</p></body></html>`
	info := a.Analyze("https://e.com/p", []byte(html))
	require.Equal(t, "A concise summary.", info.Description)
}

func TestAnalyzeDescriptionFromFirstParagraph(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer()
	html := `<html><body><p>hi</p><p>This paragraph is long enough to serve as a description. It continues.</p></body></html>`
	info := a.Analyze("https://e.com/p", []byte(html))
	require.Equal(t, "This paragraph is long enough to serve as a description.", info.Description)
}

func TestAnalyzeDescriptionTruncatedAtWordBoundary(t *testing.T) {
	t.Parallel()

	a := New(Config{MaxDescriptionLen: 40}, zap.NewNop())
	html := `<html><head><meta name="description" content="` + strings.Repeat("wordy ", 20) + `"></head><body></body></html>`
	info := a.Analyze("https://e.com/p", []byte(html))
	require.LessOrEqual(t, len(info.Description), 44)
	require.True(t, strings.HasSuffix(info.Description, "..."))
	require.NotContains(t, info.Description, "word...")
}

func TestAnalyzeSnippetBounded(t *testing.T) {
	t.Parallel()

	a := New(Config{MaxSnippetLen: 100}, zap.NewNop())
	html := `<html><body><article><p>` + strings.Repeat("content ", 200) + `</p></article></body></html>`
	info := a.Analyze("https://e.com/p", []byte(html))
	require.NotEmpty(t, info.Snippet)
	require.LessOrEqual(t, len(info.Snippet), 100)
}

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", TruncateWords("short", 100))
	got := TruncateWords("alpha beta gamma delta", 12)
	require.Equal(t, "alpha beta...", got)
}
