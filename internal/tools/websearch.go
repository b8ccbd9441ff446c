package tools

import (
	"context"
	"strings"

	"github.com/pricewise-labs/pricewise/internal/tavily"
)

// webSearchTool is the shared shape of every query-building search tool.
// Each instance differs only in its query suffix, labels, and messages.
type webSearchTool struct {
	search      Searcher
	name        string
	description string
	argName     string
	countName   string
	suffix      string
	urlLabel    string
	defaultMax  int
	empty       func(arg string) string
}

func (t *webSearchTool) Name() string        { return t.name }
func (t *webSearchTool) Description() string { return t.description }
func (t *webSearchTool) Safe() bool          { return false }

func (t *webSearchTool) Schema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]Property{
			t.argName: {Type: "string", Description: t.argDescription()},
			t.countName: {
				Type:        "integer",
				Default:     t.defaultMax,
				Description: "Maximum number of results to return",
			},
		},
		Required: []string{t.argName},
	}
}

func (t *webSearchTool) argDescription() string {
	switch t.name {
	case "search_product":
		return "The product search term"
	case "find_coupons":
		return "Product name or retailer to find coupons for"
	default:
		return "Name of the product"
	}
}

func (t *webSearchTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	arg := stringArg(inv.Args, t.argName)
	maxItems := intArg(inv.Args, t.countName, t.defaultMax)

	results, err := t.search.Search(ctx, arg+t.suffix)
	if err != nil {
		return renderSearchError(err), nil
	}
	if len(results) == 0 {
		return t.empty(arg), nil
	}
	return tavily.FormatResults(results, maxItems, t.urlLabel), nil
}

// renderSearchError turns provider failures into the tool's answer string;
// the reasoning loop sees them as results to reason about, never as raised
// failures.
func renderSearchError(err error) string {
	if _, ok := err.(tavily.ProviderError); ok {
		return err.Error()
	}
	return "Search error: " + err.Error()
}

func NewSearchProduct(search Searcher) Tool {
	return &webSearchTool{
		search:      search,
		name:        "search_product",
		description: "Search for a product online and return formatted results.",
		argName:     "query",
		countName:   "max_results",
		urlLabel:    "URL",
		defaultMax:  3,
		empty:       func(string) string { return "No products found for this query." },
	}
}

func NewComparePrices(search Searcher) Tool {
	return &webSearchTool{
		search:      search,
		name:        "compare_prices",
		description: "Compare prices for a product across multiple online retailers.",
		argName:     "product_name",
		countName:   "max_sources",
		suffix:      " price buy",
		urlLabel:    "URL",
		defaultMax:  5,
		empty:       func(string) string { return "No price information found." },
	}
}

func NewGetReviews(search Searcher) Tool {
	return &webSearchTool{
		search:      search,
		name:        "get_reviews",
		description: "Fetch product reviews and ratings from the web.",
		argName:     "product_name",
		countName:   "max_reviews",
		suffix:      " review rating",
		urlLabel:    "Source",
		defaultMax:  3,
		empty:       func(string) string { return "No reviews found for this product." },
	}
}

func NewCheckAvailability(search Searcher) Tool {
	return &webSearchTool{
		search: search,
		name:   "check_availability",
		description: "Check product availability and stock status across multiple retailers. " +
			"Use this when the user wants to know if a product is in stock or where it can be purchased.",
		argName:    "product_name",
		countName:  "max_sources",
		suffix:     " in stock available buy now",
		urlLabel:   "Retailer",
		defaultMax: 5,
		empty: func(arg string) string {
			return "No availability information found for '" + strings.TrimSpace(arg) + "'."
		},
	}
}

func NewFindCoupons(search Searcher) Tool {
	return &webSearchTool{
		search: search,
		name:   "find_coupons",
		description: "Find active coupons, discount codes, and deals for a product or retailer. " +
			"Use this when the user wants promotional codes, special offers, or current deals.",
		argName:    "product_or_retailer",
		countName:  "max_results",
		suffix:     " coupon discount code promo deal",
		urlLabel:   "Source",
		defaultMax: 5,
		empty: func(arg string) string {
			return "No active coupons or deals found for '" + strings.TrimSpace(arg) + "'."
		},
	}
}
