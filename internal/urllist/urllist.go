// Package urllist parses user-supplied URL lists: one-per-line text or
// CSV with a sniffed URL column.
package urllist

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Column headers recognized as the URL column, checked in order.
var urlColumnNames = []string{"url", "link", "href", "page", "address", "site"}

// Parse reads URLs from r. Input with commas in the first non-empty line
// is treated as CSV; anything else as one URL per line. Lines or cells
// that do not start with http:// or https:// are skipped. Comment lines
// starting with '#' are ignored in plain mode.
func Parse(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("urllist: read input: %w", err)
	}
	text := string(data)
	if looksLikeCSV(text) {
		return parseCSV(strings.NewReader(text))
	}
	return parseLines(text), nil
}

func looksLikeCSV(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Contains(line, ",")
	}
	return false
}

func parseLines(text string) []string {
	var urls []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isHTTPURL(line) {
			urls = append(urls, line)
		}
	}
	return urls
}

func parseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("urllist: parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col, hasHeader := findURLColumn(records[0])
	rows := records
	if hasHeader {
		rows = records[1:]
	}

	var urls []string
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if isHTTPURL(cell) {
			urls = append(urls, cell)
		}
	}
	return urls, nil
}

// findURLColumn matches the header row against known URL column names and
// reports whether the first row is a header at all. Headerless files use
// the first column.
func findURLColumn(header []string) (col int, hasHeader bool) {
	for i, cell := range header {
		cell = strings.ToLower(strings.TrimSpace(cell))
		for _, name := range urlColumnNames {
			if cell == name {
				return i, true
			}
		}
	}
	// A first row holding a URL is data, not a header.
	for _, cell := range header {
		if isHTTPURL(strings.TrimSpace(cell)) {
			return 0, false
		}
	}
	return 0, true
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
