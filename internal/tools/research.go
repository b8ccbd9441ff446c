package tools

import (
	"context"

	"github.com/pricewise-labs/pricewise/internal/research"
)

type delegateResearchTool struct {
	orchestrator *research.Orchestrator
}

// NewDelegateResearch returns the multi-product delegation tool backed by
// the research orchestrator.
func NewDelegateResearch(orchestrator *research.Orchestrator) Tool {
	return &delegateResearchTool{orchestrator: orchestrator}
}

func (t *delegateResearchTool) Name() string { return "delegate_research" }

func (t *delegateResearchTool) Description() string {
	return "Research multiple products in parallel and synthesize results. " +
		"Use this when the user asks about multiple product categories in one query " +
		"(e.g. \"I need a laptop, monitor, and keyboard for under $2000\"). " +
		"Each product is researched independently and results are combined."
}

func (t *delegateResearchTool) Safe() bool { return false }

func (t *delegateResearchTool) Schema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]Property{
			"products": {
				Type:        "array",
				Description: "List of products to research in parallel",
				Items: &Property{
					Type: "object",
					Properties: map[string]Property{
						"product_name": {Type: "string", Description: "Product name or category to research"},
						"budget":       {Type: "number", Description: "Budget constraint for this item"},
					},
					Required: []string{"product_name"},
				},
			},
			"total_budget": {
				Type:        "number",
				Description: "Overall budget constraint across all products",
			},
		},
		Required: []string{"products"},
	}
}

func (t *delegateResearchTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	rawProducts, _ := inv.Args["products"].([]any)
	items := make([]research.Item, 0, len(rawProducts))
	for _, entry := range rawProducts {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := research.Item{ProductName: stringArg(fields, "product_name")}
		if budget, ok := floatArg(fields, "budget"); ok {
			item.Budget = budget
		}
		if item.ProductName != "" {
			items = append(items, item)
		}
	}

	totalBudget, _ := floatArg(inv.Args, "total_budget")
	return t.orchestrator.Run(ctx, items, totalBudget), nil
}
