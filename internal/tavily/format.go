package tavily

import (
	"fmt"
	"strings"
)

// FormatResults renders at most maxItems results as a numbered list.
// Callers are expected to special-case an empty slice before formatting,
// so they can emit a tool-specific "not found" message instead.
func FormatResults(results []Result, maxItems int, urlLabel string) string {
	if maxItems > len(results) {
		maxItems = len(results)
	}
	formatted := make([]string, 0, maxItems)
	for i, r := range results[:maxItems] {
		url := r.URL
		if url == "" {
			url = "N/A"
		}
		content := r.Content
		if content == "" {
			content = "No description"
		}
		formatted = append(formatted, fmt.Sprintf("%d. %s\n   %s: %s", i+1, content, urlLabel, url))
	}
	return strings.Join(formatted, "\n\n")
}
