// Package categorizer assigns pages to named sections using ordered
// keyword rules over the URL path and title. It is pure: no network, no
// shared state.
package categorizer

import "strings"

// CatchAll is the section assigned when no rule matches.
const CatchAll = "Other"

// Rule pairs a section name with the keywords that route a page into it.
type Rule struct {
	Section  string   `mapstructure:"section" json:"section"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// Categorizer evaluates rules in order; the first match wins, so rule
// order is a deliberate tie-break.
type Categorizer struct {
	rules []Rule
}

// New constructs a Categorizer from an ordered rule list. Keywords are
// lowercased once up front.
func New(rules []Rule) *Categorizer {
	prepared := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if r.Section == "" || len(keywords) == 0 {
			continue
		}
		prepared = append(prepared, Rule{Section: r.Section, Keywords: keywords})
	}
	return &Categorizer{rules: prepared}
}

// Categorize returns the section for a page, testing each rule's keywords
// against the lowered URL and title.
func (c *Categorizer) Categorize(url, title string) string {
	haystack := strings.ToLower(url) + " " + strings.ToLower(title)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				return rule.Section
			}
		}
	}
	return CatchAll
}

// Sections returns the section names in rule order, without CatchAll.
func (c *Categorizer) Sections() []string {
	out := make([]string, 0, len(c.rules))
	seen := make(map[string]struct{}, len(c.rules))
	for _, r := range c.rules {
		if _, ok := seen[r.Section]; ok {
			continue
		}
		seen[r.Section] = struct{}{}
		out = append(out, r.Section)
	}
	return out
}

// DefaultRules returns the stock documentation-site rule set.
func DefaultRules() []Rule {
	return []Rule{
		{Section: "Introduction", Keywords: []string{
			"about", "intro", "introduction", "overview", "welcome", "home",
			"getting-started", "start", "begin", "what-is", "why",
		}},
		{Section: "Get started", Keywords: []string{
			"quickstart", "quick-start", "setup", "install", "installation",
			"tutorial", "first-steps", "onboarding", "guide", "how-to",
		}},
		{Section: "API Reference", Keywords: []string{
			"api", "reference", "docs", "documentation", "endpoints",
			"methods", "functions", "sdk", "rest", "graphql",
		}},
		{Section: "Guides", Keywords: []string{
			"guide", "tutorial", "how-to", "example", "examples",
			"walkthrough", "step-by-step", "learn", "training",
		}},
		{Section: "Resources", Keywords: []string{
			"resources", "tools", "utilities", "downloads", "assets",
			"templates", "samples", "community", "support",
		}},
	}
}
