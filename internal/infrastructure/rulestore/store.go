package rulestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/salesdw/etl/internal/domain/rules"
)

// Table names on the tabular REST store
const (
	tableItemsets     = "itemsets"
	tableItemsetItems = "itemset_items"
	tableRules        = "association_rules"
	tableAntecedents  = "rule_antecedents"
	tableConsequents  = "rule_consequents"
)

// RestStore implements rules.Store against a tabular REST interface. Row ids
// are generated client-side so an insert is a single idempotent POST.
type RestStore struct {
	client *Client
	newID  func() string
}

// NewRestStore creates a RestStore
func NewRestStore(client *Client) *RestStore {
	return &RestStore{
		client: client,
		newID:  func() string { return uuid.New().String() },
	}
}

// Itemsets returns every stored itemset
func (s *RestStore) Itemsets(ctx context.Context) ([]rules.Itemset, error) {
	return fetchAll[rules.Itemset](ctx, s.client, tableItemsets)
}

// ItemsetItems returns every itemset membership row
func (s *RestStore) ItemsetItems(ctx context.Context) ([]rules.ItemsetItem, error) {
	return fetchAll[rules.ItemsetItem](ctx, s.client, tableItemsetItems)
}

// Rules returns every stored rule version, active and soft-deleted
func (s *RestStore) Rules(ctx context.Context) ([]rules.AssociationRule, error) {
	return fetchAll[rules.AssociationRule](ctx, s.client, tableRules)
}

// Antecedents returns every rule-antecedent link
func (s *RestStore) Antecedents(ctx context.Context) ([]rules.RuleProduct, error) {
	return fetchAll[rules.RuleProduct](ctx, s.client, tableAntecedents)
}

// Consequents returns every rule-consequent link
func (s *RestStore) Consequents(ctx context.Context) ([]rules.RuleProduct, error) {
	return fetchAll[rules.RuleProduct](ctx, s.client, tableConsequents)
}

// InsertItemset stores a new itemset and returns its id
func (s *RestStore) InsertItemset(ctx context.Context, support float64, size int) (string, error) {
	itemset := rules.Itemset{
		ID:      s.newID(),
		Support: support,
		Size:    size,
	}
	if err := s.client.Insert(ctx, tableItemsets, []rules.Itemset{itemset}, nil); err != nil {
		return "", err
	}
	return itemset.ID, nil
}

// InsertItemsetItems stores the membership rows of an itemset
func (s *RestStore) InsertItemsetItems(ctx context.Context, itemsetID string, productIDs []string) error {
	items := make([]rules.ItemsetItem, len(productIDs))
	for i, productID := range productIDs {
		items[i] = rules.ItemsetItem{ItemsetID: itemsetID, ProductID: productID}
	}
	return s.client.Insert(ctx, tableItemsetItems, items, nil)
}

// InsertRule stores a new active rule and its antecedent/consequent links
func (s *RestStore) InsertRule(ctx context.Context, itemsetID string, m rules.MinedRule) (string, error) {
	rule := rules.AssociationRule{
		ID:         s.newID(),
		ItemsetID:  itemsetID,
		Support:    m.Support,
		Confidence: m.Confidence,
		Lift:       m.Lift,
		Active:     true,
	}
	if err := s.client.Insert(ctx, tableRules, []rules.AssociationRule{rule}, nil); err != nil {
		return "", err
	}

	if err := s.insertLinks(ctx, tableAntecedents, rule.ID, m.Antecedents); err != nil {
		return "", err
	}
	if err := s.insertLinks(ctx, tableConsequents, rule.ID, m.Consequents); err != nil {
		return "", err
	}
	return rule.ID, nil
}

// SoftDeleteRule marks a rule inactive with the given deletion timestamp
func (s *RestStore) SoftDeleteRule(ctx context.Context, ruleID string, at time.Time) error {
	filter := url.Values{}
	filter.Set("rule_id", "eq."+ruleID)
	return s.client.Patch(ctx, tableRules, filter, map[string]any{
		"active":     false,
		"deleted_at": at.UTC().Format(time.RFC3339),
	})
}

func (s *RestStore) insertLinks(ctx context.Context, table, ruleID string, productIDs []string) error {
	links := make([]rules.RuleProduct, len(productIDs))
	for i, productID := range productIDs {
		links[i] = rules.RuleProduct{RuleID: ruleID, ProductID: productID}
	}
	return s.client.Insert(ctx, table, links, nil)
}

func fetchAll[T any](ctx context.Context, client *Client, table string) ([]T, error) {
	raw, err := client.GetAll(ctx, table, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]T, 0, len(raw))
	for _, msg := range raw {
		var row T
		if err := json.Unmarshal(msg, &row); err != nil {
			return nil, fmt.Errorf("%s row decode failed: %w", table, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
