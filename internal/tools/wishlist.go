package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pricewise-labs/pricewise/internal/store"
)

// Wishlist tools operate on local session state only; no network. The
// session identity comes from the invocation context, so the reasoning loop
// never has to know or guess a session id.

type addToWishlistTool struct {
	store store.Store
}

func NewAddToWishlist(st store.Store) Tool {
	return &addToWishlistTool{store: st}
}

func (t *addToWishlistTool) Name() string { return "add_to_wishlist" }

func (t *addToWishlistTool) Description() string {
	return "Save a product to the user's wishlist for later reference. " +
		"Call this when the user wants to bookmark or save a product they like."
}

func (t *addToWishlistTool) Safe() bool { return true }

func (t *addToWishlistTool) Schema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]Property{
			"product_name": {Type: "string", Description: "Name of the product to save"},
			"price":        {Type: "number", Description: "Price of the product, if known"},
			"url":          {Type: "string", Description: "Link to the product page"},
			"notes":        {Type: "string", Description: "Free-form notes about the product"},
		},
		Required: []string{"product_name"},
	}
}

func (t *addToWishlistTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	item := store.WishlistItem{
		ID:          uuid.New().String(),
		SessionID:   sessionOrDefault(inv),
		ProductName: stringArg(inv.Args, "product_name"),
		URL:         stringArg(inv.Args, "url"),
		Notes:       stringArg(inv.Args, "notes"),
	}
	if price, ok := floatArg(inv.Args, "price"); ok {
		item.Price = &price
	}
	if err := t.store.AddWishlistItem(ctx, item); err != nil {
		return "", err
	}

	items, err := t.store.ListWishlist(ctx, item.SessionID)
	if err != nil {
		return "", err
	}
	count := len(items)
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return fmt.Sprintf("Added '%s' to wishlist. (%d item%s total)", item.ProductName, count, plural), nil
}

type getWishlistTool struct {
	store store.Store
}

func NewGetWishlist(st store.Store) Tool {
	return &getWishlistTool{store: st}
}

func (t *getWishlistTool) Name() string { return "get_wishlist" }

func (t *getWishlistTool) Description() string {
	return "Retrieve all products currently saved in the user's wishlist."
}

func (t *getWishlistTool) Safe() bool { return true }

func (t *getWishlistTool) Schema() *Schema {
	return &Schema{Type: "object"}
}

func (t *getWishlistTool) Execute(ctx context.Context, inv Invocation) (string, error) {
	items, err := t.store.ListWishlist(ctx, sessionOrDefault(inv))
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "Wishlist is empty.", nil
	}

	lines := make([]string, 0, len(items))
	for i, item := range items {
		line := fmt.Sprintf("%d. %s", i+1, item.ProductName)
		if item.Price != nil {
			line += fmt.Sprintf(" - $%.2f", *item.Price)
		}
		if item.URL != "" {
			line += fmt.Sprintf(" (%s)", item.URL)
		}
		if item.Notes != "" {
			line += fmt.Sprintf(" [%s]", item.Notes)
		}
		lines = append(lines, line)
	}
	return "Wishlist:\n" + strings.Join(lines, "\n"), nil
}

func sessionOrDefault(inv Invocation) string {
	if inv.SessionID == "" {
		return "default"
	}
	return inv.SessionID
}
