package rules

import (
	"context"
	"time"
)

// Store is the rule persistence port, backed by a REST-style tabular
// interface (filtered GET, POST insert, PATCH soft-delete update)
type Store interface {
	// Itemsets returns every stored itemset
	Itemsets(ctx context.Context) ([]Itemset, error)

	// ItemsetItems returns every itemset membership row
	ItemsetItems(ctx context.Context) ([]ItemsetItem, error)

	// Rules returns every stored rule version, active and soft-deleted
	Rules(ctx context.Context) ([]AssociationRule, error)

	// Antecedents returns every rule-antecedent link
	Antecedents(ctx context.Context) ([]RuleProduct, error)

	// Consequents returns every rule-consequent link
	Consequents(ctx context.Context) ([]RuleProduct, error)

	// InsertItemset stores a new itemset and returns its id
	InsertItemset(ctx context.Context, support float64, size int) (string, error)

	// InsertItemsetItems stores the membership rows of an itemset
	InsertItemsetItems(ctx context.Context, itemsetID string, productIDs []string) error

	// InsertRule stores a new active rule and its antecedent/consequent links,
	// returning the new rule id
	InsertRule(ctx context.Context, itemsetID string, m MinedRule) (string, error)

	// SoftDeleteRule marks a rule inactive with the given deletion timestamp
	SoftDeleteRule(ctx context.Context, ruleID string, at time.Time) error
}
