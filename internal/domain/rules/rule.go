package rules

import (
	"sort"
	"strings"
	"time"
)

// Itemset is a stored frequent product set
type Itemset struct {
	ID      string  `json:"itemset_id"`
	Support float64 `json:"support"`
	Size    int     `json:"size"`
}

// ItemsetItem records membership of one product in an itemset
type ItemsetItem struct {
	ItemsetID string `json:"itemset_id"`
	ProductID string `json:"product_id"`
}

// AssociationRule is a stored rule version. Rules are never physically
// removed: superseded or retired rules are soft-deleted by clearing Active
// and stamping DeletedAt.
type AssociationRule struct {
	ID         string     `json:"rule_id"`
	ItemsetID  string     `json:"itemset_id"`
	Support    float64    `json:"support"`
	Confidence float64    `json:"confidence"`
	Lift       float64    `json:"lift"`
	Active     bool       `json:"active"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// RuleProduct links a rule to one antecedent or consequent product
type RuleProduct struct {
	RuleID    string `json:"rule_id"`
	ProductID string `json:"product_id"`
}

// MinedRule is a freshly mined association rule before reconciliation
type MinedRule struct {
	Antecedents []string
	Consequents []string
	Support     float64
	Confidence  float64
	Lift        float64
}

// ItemsetMembers returns the union of antecedents and consequents: the
// product set that defines the rule's itemset
func (m MinedRule) ItemsetMembers() []string {
	seen := make(map[string]struct{}, len(m.Antecedents)+len(m.Consequents))
	var members []string
	for _, id := range append(append([]string{}, m.Antecedents...), m.Consequents...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// Fingerprint identifies a rule by its exact (antecedent set, consequent set)
// partition, independent of element order
func (m MinedRule) Fingerprint() string {
	return Fingerprint(m.Antecedents, m.Consequents)
}

// Fingerprint builds the canonical identity of an (antecedents, consequents)
// partition. At most one active stored rule may carry a given fingerprint.
func Fingerprint(antecedents, consequents []string) string {
	ants := append([]string{}, antecedents...)
	cons := append([]string{}, consequents...)
	sort.Strings(ants)
	sort.Strings(cons)
	return strings.Join(ants, ",") + "=>" + strings.Join(cons, ",")
}

// SetEqual reports whether two product id slices contain the same set.
// Duplicate ids on either side collapse, so a link table carrying a repeated
// member still compares as the set it denotes.
func SetEqual(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for id := range setB {
		if _, ok := setA[id]; !ok {
			return false
		}
	}
	return true
}
