package rules

import "context"

// BasketSource yields the product baskets rules are mined from: one basket
// per purchase event, each listing the canonical SKUs bought together
type BasketSource interface {
	Baskets(ctx context.Context) ([][]string, error)
}
