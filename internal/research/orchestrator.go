// Package research fans independent per-product research tasks out over a
// bounded worker pool and folds the outcomes into one consolidated report.
package research

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricewise-labs/pricewise/internal/tavily"
)

// Searcher is the provider boundary a research task calls once per item.
type Searcher interface {
	Search(ctx context.Context, query string) ([]tavily.Result, error)
}

// Item is one product or category to research. Budget of 0 means no
// per-item constraint.
type Item struct {
	ProductName string
	Budget      float64
}

// Outcome is the result of one research task. It is written exactly once by
// its task and never mutated afterwards.
type Outcome struct {
	Product string
	Success bool
	Content string
	URL     string
	Budget  float64
	Err     string
}

type Orchestrator struct {
	search     Searcher
	maxWorkers int
}

var priceRe = regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{2})?)`)

func New(search Searcher, maxWorkers int) *Orchestrator {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	return &Orchestrator{search: search, maxWorkers: maxWorkers}
}

// Run researches every item concurrently and returns a consolidated report.
// Outcomes are aggregated in completion order; one item's failure never
// aborts the others.
func (o *Orchestrator) Run(ctx context.Context, items []Item, totalBudget float64) string {
	outcomes := make(chan Outcome, len(items))
	jobs := make(chan Item)

	workers := len(items)
	if workers > o.maxWorkers {
		workers = o.maxWorkers
	}
	for i := 0; i < workers; i++ {
		go func() {
			for item := range jobs {
				outcomes <- o.researchOne(ctx, item)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := []string{fmt.Sprintf("Multi-Product Research (%d items):\n", len(items))}
	totalCost := 0.0
	priced := false

	for i := 0; i < len(items); i++ {
		var res Outcome
		select {
		case res = <-outcomes:
		case <-ctx.Done():
			res = Outcome{Product: "(cancelled)", Err: ctx.Err().Error()}
		}
		lines = append(lines, fmt.Sprintf("--- %s ---", res.Product))
		if res.Success {
			lines = append(lines, "  "+res.Content)
			lines = append(lines, "  Source: "+res.URL)
			if price, ok := extractPrice(res.Content); ok {
				totalCost += price
				priced = true
				lines = append(lines, fmt.Sprintf("  Estimated price: $%.2f", price))
			}
			if res.Budget > 0 {
				lines = append(lines, fmt.Sprintf("  Budget: $%.2f", res.Budget))
			}
		} else {
			lines = append(lines, "  Could not find results: "+res.Err)
		}
		lines = append(lines, "")
	}

	if totalBudget > 0 && priced {
		lines = append(lines, fmt.Sprintf("Estimated total: $%.2f / $%.2f budget", totalCost, totalBudget))
		diff := totalBudget - totalCost
		if diff >= 0 {
			lines = append(lines, fmt.Sprintf("Under budget by $%.2f", diff))
		} else {
			lines = append(lines, fmt.Sprintf("Over budget by $%.2f", -diff))
		}
	}

	return strings.Join(lines, "\n")
}

func (o *Orchestrator) researchOne(ctx context.Context, item Item) Outcome {
	query := item.ProductName
	if item.Budget > 0 {
		query += fmt.Sprintf(" under $%g", item.Budget)
	}

	results, err := o.search.Search(ctx, query)
	if err != nil {
		return Outcome{Product: item.ProductName, Err: err.Error()}
	}
	if len(results) == 0 {
		return Outcome{Product: item.ProductName, Err: "No results found"}
	}

	// Only the top-ranked result feeds the report.
	top := results[0]
	return Outcome{
		Product: item.ProductName,
		Success: true,
		Content: top.Content,
		URL:     top.URL,
		Budget:  item.Budget,
	}
}

func extractPrice(content string) (float64, bool) {
	match := priceRe.FindStringSubmatch(content)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
