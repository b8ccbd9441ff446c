package tavily

// Result is one ranked entry from a search response. Order always follows
// the provider's relevance ranking; truncation happens only at formatting.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// ExtractResult is the readable content pulled from a single URL.
type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// ProviderError reports a failure surfaced by the search provider. Tools
// render it as their result string rather than escalating it.
type ProviderError struct {
	Message string
}

func (e ProviderError) Error() string {
	return e.Message
}
