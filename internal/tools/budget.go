package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
)

type calculateBudgetTool struct{}

// NewCalculateBudget returns the calculate_budget tool. It is pure: a
// deterministic function of its arguments with no side effects.
func NewCalculateBudget() Tool {
	return calculateBudgetTool{}
}

func (calculateBudgetTool) Name() string { return "calculate_budget" }

func (calculateBudgetTool) Description() string {
	return "Calculate total cost with tax and check against an optional budget limit."
}

func (calculateBudgetTool) Safe() bool { return true }

func (calculateBudgetTool) Schema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]Property{
			"items": {
				Type:        "array",
				Description: "List of items with name and price",
				Items: &Property{
					Type: "object",
					Properties: map[string]Property{
						"name":  {Type: "string", Description: "Product name"},
						"price": {Type: "number", Description: "Price of the product"},
					},
					Required: []string{"name", "price"},
				},
			},
			"tax_rate": {
				Type:        "number",
				Default:     0.0,
				Description: "Tax rate as a decimal (e.g., 0.08 for 8%)",
			},
			"budget_limit": {
				Type:        "number",
				Description: "Optional budget limit to check against",
			},
		},
		Required: []string{"items"},
	}
}

func (calculateBudgetTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	items, _ := inv.Args["items"].([]any)
	if len(items) == 0 {
		return "No items provided.", nil
	}

	taxRate, _ := floatArg(inv.Args, "tax_rate")
	budgetLimit, hasLimit := floatArg(inv.Args, "budget_limit")

	var lines []string
	subtotal := 0.0
	for _, entry := range items {
		fields, _ := entry.(map[string]any)
		name := "Unknown"
		if s, ok := fields["name"].(string); ok && s != "" {
			name = s
		}
		price, _ := floatArg(fields, "price")
		subtotal += price
		lines = append(lines, fmt.Sprintf("  - %s: $%.2f", name, price))
	}

	tax := subtotal * taxRate
	total := subtotal + tax

	var b strings.Builder
	b.WriteString("Budget Breakdown:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString(fmt.Sprintf("\n\n  Subtotal: $%.2f", subtotal))
	if taxRate > 0 {
		b.WriteString(fmt.Sprintf("\n  Tax (%.2f%%): $%.2f", taxRate*100, tax))
	}
	b.WriteString(fmt.Sprintf("\n  Total: $%.2f", total))

	if hasLimit {
		remaining := budgetLimit - total
		if remaining >= 0 {
			b.WriteString(fmt.Sprintf("\n\n  Within budget ($%.2f remaining)", remaining))
		} else {
			b.WriteString(fmt.Sprintf("\n\n  OVER BUDGET by $%.2f", math.Abs(remaining)))
		}
	}

	return b.String(), nil
}
