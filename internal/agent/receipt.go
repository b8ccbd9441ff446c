package agent

import (
	"encoding/json"
	"strings"
)

// ProductSummary is one product in a multi-product comparison.
type ProductSummary struct {
	ProductName   string   `json:"product_name"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency,omitempty"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	PriceRange    string   `json:"price_range,omitempty"`
	Pros          []string `json:"pros,omitempty"`
	Cons          []string `json:"cons,omitempty"`
}

// Receipt is the structured recommendation the assistant produces at the
// end of a successful turn. Comparison fields are only populated when the
// user asked to compare multiple products.
type Receipt struct {
	ProductName          string           `json:"product_name"`
	Price                float64          `json:"price"`
	Currency             string           `json:"currency,omitempty"`
	AverageRating        *float64         `json:"average_rating,omitempty"`
	PriceRange           string           `json:"price_range,omitempty"`
	RecommendationReason string           `json:"recommendation_reason,omitempty"`
	ComparisonProducts   []ProductSummary `json:"comparison_products,omitempty"`
	ComparisonSummary    string           `json:"comparison_summary,omitempty"`
}

// parseReceipt extracts a trailing JSON receipt from assistant text.
// Best effort: a missing or malformed receipt is not an error, the turn
// simply completes without a structured recommendation.
func parseReceipt(content string) *Receipt {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil
	}
	var receipt Receipt
	if err := json.Unmarshal([]byte(content[start:end+1]), &receipt); err != nil {
		return nil
	}
	if receipt.ProductName == "" {
		return nil
	}
	return &receipt
}
