package rules

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/salesdw/etl/internal/domain/rules"
	"go.uber.org/zap"
)

// MetricEpsilon is the tolerance under which stored and freshly mined rule
// metrics count as identical, preventing redundant versions on unchanged data
const MetricEpsilon = 1e-6

// ReconcileStats summarizes one reconciliation pass
type ReconcileStats struct {
	Inserted   int // brand new rules
	Skipped    int // identical active rules left untouched
	Superseded int // soft-deleted and re-inserted with new metrics
	Retired    int // active rules absent from the mined set, soft-deleted
}

// Reconciler versions freshly mined association rules against the stored
// ones. It guarantees at most one active rule per (antecedent set,
// consequent set) fingerprint; history is kept through soft-deletes, rows are
// never physically removed. Re-running over identical mined input is a no-op.
type Reconciler struct {
	store  rules.Store
	now    func() time.Time
	logger *zap.Logger
}

// NewReconciler creates a Reconciler
func NewReconciler(store rules.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

type storedState struct {
	itemsetMembers  map[string][]string // itemset id -> product ids
	activeByItemset map[string][]rules.AssociationRule
	antecedents     map[string][]string // rule id -> product ids
	consequents     map[string][]string
}

// Reconcile applies one mined rule set to the store
func (r *Reconciler) Reconcile(ctx context.Context, mined []rules.MinedRule) (ReconcileStats, error) {
	var stats ReconcileStats

	state, err := r.load(ctx)
	if err != nil {
		return stats, err
	}

	retired, err := r.retireMissing(ctx, state, mined)
	if err != nil {
		return stats, err
	}
	stats.Retired = retired

	for _, m := range mined {
		outcome, err := r.apply(ctx, state, m)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case outcomeInserted:
			stats.Inserted++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeSuperseded:
			stats.Superseded++
		}
	}

	r.logger.Info("rule reconciliation finished",
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("superseded", stats.Superseded),
		zap.Int("retired", stats.Retired),
	)
	return stats, nil
}

func (r *Reconciler) load(ctx context.Context) (*storedState, error) {
	items, err := r.store.ItemsetItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("itemset items fetch failed: %w", err)
	}
	stored, err := r.store.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("rules fetch failed: %w", err)
	}
	ants, err := r.store.Antecedents(ctx)
	if err != nil {
		return nil, fmt.Errorf("antecedents fetch failed: %w", err)
	}
	cons, err := r.store.Consequents(ctx)
	if err != nil {
		return nil, fmt.Errorf("consequents fetch failed: %w", err)
	}

	state := &storedState{
		itemsetMembers:  make(map[string][]string),
		activeByItemset: make(map[string][]rules.AssociationRule),
		antecedents:     make(map[string][]string),
		consequents:     make(map[string][]string),
	}
	for _, item := range items {
		state.itemsetMembers[item.ItemsetID] = append(state.itemsetMembers[item.ItemsetID], item.ProductID)
	}
	for _, rule := range stored {
		if rule.Active {
			state.activeByItemset[rule.ItemsetID] = append(state.activeByItemset[rule.ItemsetID], rule)
		}
	}
	for _, link := range ants {
		state.antecedents[link.RuleID] = append(state.antecedents[link.RuleID], link.ProductID)
	}
	for _, link := range cons {
		state.consequents[link.RuleID] = append(state.consequents[link.RuleID], link.ProductID)
	}
	return state, nil
}

// retireMissing soft-deletes every active rule whose fingerprint does not
// appear anywhere in the mined set: rules that no longer hold are retired,
// not removed
func (r *Reconciler) retireMissing(ctx context.Context, state *storedState, mined []rules.MinedRule) (int, error) {
	fresh := make(map[string]struct{}, len(mined))
	for _, m := range mined {
		fresh[m.Fingerprint()] = struct{}{}
	}

	retired := 0
	for itemsetID, active := range state.activeByItemset {
		kept := active[:0]
		for _, rule := range active {
			fp := rules.Fingerprint(state.antecedents[rule.ID], state.consequents[rule.ID])
			if _, stillMined := fresh[fp]; stillMined {
				kept = append(kept, rule)
				continue
			}
			if err := r.store.SoftDeleteRule(ctx, rule.ID, r.now()); err != nil {
				return retired, fmt.Errorf("retiring rule %s failed: %w", rule.ID, err)
			}
			r.logger.Info("rule retired", zap.String("rule_id", rule.ID), zap.String("fingerprint", fp))
			retired++
		}
		state.activeByItemset[itemsetID] = kept
	}
	return retired, nil
}

type applyOutcome int

const (
	outcomeInserted applyOutcome = iota
	outcomeSkipped
	outcomeSuperseded
)

func (r *Reconciler) apply(ctx context.Context, state *storedState, m rules.MinedRule) (applyOutcome, error) {
	itemsetID, err := r.ensureItemset(ctx, state, m)
	if err != nil {
		return outcomeInserted, err
	}

	for i, rule := range state.activeByItemset[itemsetID] {
		if !rules.SetEqual(state.antecedents[rule.ID], m.Antecedents) ||
			!rules.SetEqual(state.consequents[rule.ID], m.Consequents) {
			continue
		}

		if metricsMatch(rule, m) {
			return outcomeSkipped, nil
		}

		// metrics moved: version the rule via soft-delete plus re-insert
		if err := r.store.SoftDeleteRule(ctx, rule.ID, r.now()); err != nil {
			return outcomeSuperseded, fmt.Errorf("superseding rule %s failed: %w", rule.ID, err)
		}
		active := state.activeByItemset[itemsetID]
		state.activeByItemset[itemsetID] = append(active[:i], active[i+1:]...)

		if err := r.insert(ctx, state, itemsetID, m); err != nil {
			return outcomeSuperseded, err
		}
		return outcomeSuperseded, nil
	}

	if err := r.insert(ctx, state, itemsetID, m); err != nil {
		return outcomeInserted, err
	}
	return outcomeInserted, nil
}

func (r *Reconciler) ensureItemset(ctx context.Context, state *storedState, m rules.MinedRule) (string, error) {
	members := m.ItemsetMembers()
	for id, stored := range state.itemsetMembers {
		if rules.SetEqual(stored, members) {
			return id, nil
		}
	}

	id, err := r.store.InsertItemset(ctx, m.Support, len(members))
	if err != nil {
		return "", fmt.Errorf("itemset insert failed: %w", err)
	}
	if err := r.store.InsertItemsetItems(ctx, id, members); err != nil {
		return "", fmt.Errorf("itemset membership insert failed: %w", err)
	}
	state.itemsetMembers[id] = members
	return id, nil
}

func (r *Reconciler) insert(ctx context.Context, state *storedState, itemsetID string, m rules.MinedRule) error {
	ruleID, err := r.store.InsertRule(ctx, itemsetID, m)
	if err != nil {
		return fmt.Errorf("rule insert failed: %w", err)
	}
	state.activeByItemset[itemsetID] = append(state.activeByItemset[itemsetID], rules.AssociationRule{
		ID:         ruleID,
		ItemsetID:  itemsetID,
		Support:    m.Support,
		Confidence: m.Confidence,
		Lift:       m.Lift,
		Active:     true,
	})
	state.antecedents[ruleID] = append([]string{}, m.Antecedents...)
	state.consequents[ruleID] = append([]string{}, m.Consequents...)
	return nil
}

func metricsMatch(stored rules.AssociationRule, m rules.MinedRule) bool {
	return math.Abs(stored.Support-m.Support) < MetricEpsilon &&
		math.Abs(stored.Confidence-m.Confidence) < MetricEpsilon &&
		math.Abs(stored.Lift-m.Lift) < MetricEpsilon
}
