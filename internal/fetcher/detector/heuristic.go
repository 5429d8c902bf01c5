// Package detector decides when a static fetch should be retried with a
// rendering browser.
package detector

import (
	"net/http"
	"strings"

	"github.com/sitedesc/llmstxt/internal/descriptor"
)

// Heuristic flags responses that look like client-rendered shells: empty
// bodies, known SPA mount points, or short documents dominated by script
// tags. Anything it flags gets exactly one rendered pass upstream.
type Heuristic struct {
	bodyThreshold int
}

// NewHeuristic creates a detector. threshold is the body length below
// which script density is considered; zero selects the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Heuristic{bodyThreshold: threshold}
}

// shellMarkers are mount-point fragments emitted by common SPA and
// documentation-site frameworks before hydration fills the page in.
var shellMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
	"__docusaurus",
	"ng-version",
}

// ShouldRender reports whether the static response warrants a rendered
// fetch. Only 200 responses qualify; error pages are not worth a browser.
func (h *Heuristic) ShouldRender(resp descriptor.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if len(resp.Body) == 0 {
		return true
	}
	lower := strings.ToLower(string(resp.Body))
	for _, marker := range shellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return len(resp.Body) < h.bodyThreshold && scriptShare(lower) >= 25
}

// scriptShare returns the percentage of the document occupied by script
// elements. An unterminated script counts through end of document.
func scriptShare(lower string) int {
	const closeTag = "</script>"
	total := len(lower)
	if total == 0 {
		return 0
	}

	covered := 0
	pos := 0
	for {
		open := strings.Index(lower[pos:], "<script")
		if open == -1 {
			break
		}
		start := pos + open
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			covered += total - start
			break
		}
		covered += end + len(closeTag)
		pos = start + end + len(closeTag)
	}
	return covered * 100 / total
}
