package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type scrapeURLTool struct {
	extract   Extractor
	charLimit int
}

// NewScrapeURL returns the scrape_url tool. charLimit bounds the extracted
// text kept per URL.
func NewScrapeURL(extract Extractor, charLimit int) Tool {
	if charLimit <= 0 {
		charLimit = 3000
	}
	return &scrapeURLTool{extract: extract, charLimit: charLimit}
}

func (t *scrapeURLTool) Name() string { return "scrape_url" }

func (t *scrapeURLTool) Description() string {
	return "Extract product information from a specific URL. " +
		"Use this when the user provides a direct link to a product page."
}

func (t *scrapeURLTool) Safe() bool { return false }

func (t *scrapeURLTool) Schema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]Property{
			"url": {Type: "string", Description: "The product URL to extract information from"},
		},
		Required: []string{"url"},
	}
}

func (t *scrapeURLTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	url := stringArg(inv.Args, "url")

	results, err := t.extract.Extract(ctx, []string{url})
	if err != nil {
		return fmt.Sprintf("Error extracting content from %s: %v", url, err), nil
	}

	var contents []string
	for _, r := range results {
		raw := r.RawContent
		if raw == "" {
			continue
		}
		if len(raw) > t.charLimit {
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := t.charLimit
			for cut > 0 && !utf8.RuneStart(raw[cut]) {
				cut--
			}
			raw = raw[:cut]
		}
		contents = append(contents, raw)
	}
	if len(contents) == 0 {
		return fmt.Sprintf("Could not extract useful content from %s.", url), nil
	}
	return fmt.Sprintf("Content from %s:\n\n%s", url, strings.Join(contents, "\n---\n")), nil
}
