// Package assembler groups page entries into sections and renders the
// final llms.txt document. Output is deterministic: section order comes
// from a fixed priority list and entry order from resolution order, so
// two runs over the same pages render byte-identical documents no matter
// how fetches interleaved.
package assembler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sitedesc/llmstxt/internal/categorizer"
	"github.com/sitedesc/llmstxt/internal/descriptor"
)

// sectionPriority fixes the relative order of the well-known sections.
// Unknown sections sort alphabetically after these; the catch-all is
// always last.
var sectionPriority = map[string]int{
	"Introduction":  0,
	"Get started":   1,
	"API Reference": 2,
	"Guides":        3,
	"Resources":     4,
}

// Config controls assembly and rendering.
type Config struct {
	// IncludeFailed keeps entries whose fetch failed in the output with
	// an empty description. Defaults to true upstream.
	IncludeFailed bool
	// GeneratorName appears in the document footer.
	GeneratorName string
}

// Assembler builds SiteDescriptors and renders them.
type Assembler struct {
	cfg   Config
	clock descriptor.Clock
}

// New constructs an Assembler. clock drives the footer timestamp; pass a
// fixed clock for reproducible output.
func New(cfg Config, clock descriptor.Clock) *Assembler {
	if cfg.GeneratorName == "" {
		cfg.GeneratorName = "llmstxt"
	}
	return &Assembler{cfg: cfg, clock: clock}
}

// Assemble groups entries into ordered sections under a titled descriptor.
// Returns the descriptor and the count of entries excluded from output.
func (a *Assembler) Assemble(title, summary string, entries []*descriptor.PageEntry) (descriptor.SiteDescriptor, int) {
	excluded := 0
	grouped := make(map[string][]*descriptor.PageEntry)
	for _, entry := range entries {
		if entry.Status == descriptor.StatusFailed && !a.cfg.IncludeFailed {
			excluded++
			continue
		}
		name := entry.Category
		if name == "" {
			name = categorizer.CatchAll
		}
		grouped[name] = append(grouped[name], entry)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return sectionLess(names[i], names[j])
	})

	sections := make([]descriptor.Section, 0, len(names))
	for _, name := range names {
		group := grouped[name]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Order < group[j].Order
		})
		sections = append(sections, descriptor.Section{Name: name, Entries: group})
	}

	return descriptor.SiteDescriptor{
		Title:    title,
		Summary:  summary,
		Sections: sections,
	}, excluded
}

func sectionLess(a, b string) bool {
	pa, oka := sectionPriority[a]
	pb, okb := sectionPriority[b]
	switch {
	case a == categorizer.CatchAll:
		return false
	case b == categorizer.CatchAll:
		return true
	case oka && okb:
		return pa < pb
	case oka:
		return true
	case okb:
		return false
	default:
		return a < b
	}
}

// Render produces the llms.txt text for a descriptor.
func (a *Assembler) Render(site descriptor.SiteDescriptor) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n", site.Title)
	if site.Summary != "" {
		fmt.Fprintf(&sb, "\n> %s\n", site.Summary)
	}

	for _, section := range site.Sections {
		fmt.Fprintf(&sb, "\n## %s\n\n", section.Name)
		for _, entry := range section.Entries {
			title := entry.Title
			if title == "" {
				title = entry.URL
			}
			fmt.Fprintf(&sb, "- [%s](%s)", title, entry.URL)
			if entry.Description != "" {
				fmt.Fprintf(&sb, ": %s", entry.Description)
			}
			if entry.MarkdownURL != "" {
				fmt.Fprintf(&sb, " ([%s](%s))", markdownLabel(entry.MarkdownURL), entry.MarkdownURL)
			}
			sb.WriteByte('\n')
		}
	}

	fmt.Fprintf(&sb, "\n<!-- Generated by %s on %s -->\n",
		a.cfg.GeneratorName, a.now().Format("2006-01-02"))
	return sb.String()
}

func (a *Assembler) now() time.Time {
	if a.clock != nil {
		return a.clock.Now()
	}
	return time.Now().UTC()
}

// markdownLabel shows only the final path component of a companion URL.
func markdownLabel(mdURL string) string {
	trimmed := strings.TrimRight(mdURL, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 && idx < len(trimmed)-1 {
		return trimmed[idx+1:]
	}
	return trimmed
}
