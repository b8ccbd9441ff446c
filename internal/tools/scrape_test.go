package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/pricewise-labs/pricewise/internal/tavily"
)

type stubExtractor struct {
	lastURLs []string
	results  []tavily.ExtractResult
	err      error
}

func (s *stubExtractor) Extract(ctx context.Context, urls []string) ([]tavily.ExtractResult, error) {
	s.lastURLs = urls
	return s.results, s.err
}

func TestScrapeURL_Success(t *testing.T) {
	extractor := &stubExtractor{results: []tavily.ExtractResult{
		{URL: "https://shop.example/p", RawContent: "Product page text"},
	}}
	tool := NewScrapeURL(extractor, 3000)

	out, err := tool.Execute(context.Background(), Invocation{Args: map[string]any{"url": "https://shop.example/p"}})
	require.NoError(t, err)
	require.Equal(t, []string{"https://shop.example/p"}, extractor.lastURLs)
	require.Contains(t, out, "Content from https://shop.example/p:")
	require.Contains(t, out, "Product page text")
}

func TestScrapeURL_TruncatesPerURL(t *testing.T) {
	extractor := &stubExtractor{results: []tavily.ExtractResult{
		{RawContent: strings.Repeat("a", 50)},
		{RawContent: strings.Repeat("b", 10)},
	}}
	tool := NewScrapeURL(extractor, 20)

	out, err := tool.Execute(context.Background(), Invocation{Args: map[string]any{"url": "https://x.example"}})
	require.NoError(t, err)
	require.Contains(t, out, strings.Repeat("a", 20))
	require.NotContains(t, out, strings.Repeat("a", 21))
	require.Contains(t, out, "\n---\n")
	require.Contains(t, out, strings.Repeat("b", 10))
}

func TestScrapeURL_TruncationKeepsRunesIntact(t *testing.T) {
	// "é" is two bytes; a limit of 5 lands mid-rune and must back off.
	extractor := &stubExtractor{results: []tavily.ExtractResult{
		{RawContent: "abcd" + strings.Repeat("é", 10)},
	}}
	tool := NewScrapeURL(extractor, 5)

	out, err := tool.Execute(context.Background(), Invocation{Args: map[string]any{"url": "https://x.example"}})
	require.NoError(t, err)
	require.True(t, utf8.ValidString(out))
	require.Contains(t, out, "abcd")
	require.NotContains(t, out, "abcdé")
}

func TestScrapeURL_NoUsefulContent(t *testing.T) {
	extractor := &stubExtractor{results: []tavily.ExtractResult{{RawContent: ""}}}
	tool := NewScrapeURL(extractor, 3000)

	out, err := tool.Execute(context.Background(), Invocation{Args: map[string]any{"url": "https://x.example"}})
	require.NoError(t, err)
	require.Equal(t, "Could not extract useful content from https://x.example.", out)
}

func TestScrapeURL_ErrorBecomesResult(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("connection refused")}
	tool := NewScrapeURL(extractor, 3000)

	out, err := tool.Execute(context.Background(), Invocation{Args: map[string]any{"url": "https://x.example"}})
	require.NoError(t, err)
	require.Equal(t, "Error extracting content from https://x.example: connection refused", out)
}
