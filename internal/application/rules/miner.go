package rules

import (
	"sort"
	"strings"

	"github.com/salesdw/etl/internal/domain/rules"
	"go.uber.org/zap"
)

// MinerConfig bounds the apriori search
type MinerConfig struct {
	MinSupport    float64 // minimum fraction of baskets containing an itemset
	MinConfidence float64 // minimum confidence for an emitted rule
	MaxItemsetLen int     // 0 means unbounded
}

// Miner mines association rules from product baskets using the apriori
// algorithm: level-wise frequent itemset generation, then rule extraction
// over every antecedent/consequent partition of each frequent itemset.
type Miner struct {
	cfg    MinerConfig
	logger *zap.Logger
}

// NewMiner creates a Miner
func NewMiner(cfg MinerConfig, logger *zap.Logger) *Miner {
	return &Miner{cfg: cfg, logger: logger}
}

// Mine returns the association rules meeting the configured support and
// confidence thresholds. Each basket is the set of products bought together
// in one order. Output order is deterministic.
func (m *Miner) Mine(baskets [][]string) []rules.MinedRule {
	if len(baskets) == 0 {
		return nil
	}

	sets := make([]map[string]struct{}, len(baskets))
	for i, b := range baskets {
		set := make(map[string]struct{}, len(b))
		for _, item := range b {
			set[item] = struct{}{}
		}
		sets[i] = set
	}

	support := m.frequentItemsets(sets)
	mined := m.extractRules(support)

	sort.Slice(mined, func(i, j int) bool {
		return mined[i].Fingerprint() < mined[j].Fingerprint()
	})
	m.logger.Info("mining finished",
		zap.Int("baskets", len(baskets)),
		zap.Int("frequent_itemsets", len(support)),
		zap.Int("rules", len(mined)),
	)
	return mined
}

// frequentItemsets returns support by itemset key (sorted items joined with
// ","), computed level-wise
func (m *Miner) frequentItemsets(baskets []map[string]struct{}) map[string]float64 {
	total := float64(len(baskets))
	support := make(map[string]float64)

	// level 1
	counts := make(map[string]int)
	for _, basket := range baskets {
		for item := range basket {
			counts[item]++
		}
	}
	var level [][]string
	for item, c := range counts {
		if float64(c)/total >= m.cfg.MinSupport {
			support[item] = float64(c) / total
			level = append(level, []string{item})
		}
	}
	sortLevel(level)

	for k := 2; len(level) > 0; k++ {
		if m.cfg.MaxItemsetLen > 0 && k > m.cfg.MaxItemsetLen {
			break
		}
		candidates := joinLevel(level)
		level = level[:0]
		for _, candidate := range candidates {
			c := 0
			for _, basket := range baskets {
				if containsAll(basket, candidate) {
					c++
				}
			}
			if float64(c)/total >= m.cfg.MinSupport {
				support[key(candidate)] = float64(c) / total
				level = append(level, candidate)
			}
		}
		sortLevel(level)
	}
	return support
}

// extractRules emits one rule per antecedent/consequent partition of each
// frequent itemset of size >= 2 that clears the confidence threshold
func (m *Miner) extractRules(support map[string]float64) []rules.MinedRule {
	var mined []rules.MinedRule
	for k, sup := range support {
		items := strings.Split(k, ",")
		if len(items) < 2 {
			continue
		}
		for mask := 1; mask < (1<<len(items))-1; mask++ {
			var ants, cons []string
			for i, item := range items {
				if mask&(1<<i) != 0 {
					ants = append(ants, item)
				} else {
					cons = append(cons, item)
				}
			}
			antSup, ok := support[key(ants)]
			if !ok || antSup == 0 {
				continue
			}
			confidence := sup / antSup
			if confidence < m.cfg.MinConfidence {
				continue
			}
			consSup := support[key(cons)]
			lift := 0.0
			if consSup > 0 {
				lift = confidence / consSup
			}
			mined = append(mined, rules.MinedRule{
				Antecedents: ants,
				Consequents: cons,
				Support:     sup,
				Confidence:  confidence,
				Lift:        lift,
			})
		}
	}
	return mined
}

func key(items []string) string {
	sorted := append([]string{}, items...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func sortLevel(level [][]string) {
	for _, items := range level {
		sort.Strings(items)
	}
	sort.Slice(level, func(i, j int) bool {
		return key(level[i]) < key(level[j])
	})
}

// joinLevel builds size-k candidates from the size-(k-1) frequent itemsets by
// joining pairs sharing a (k-2)-prefix, the classic apriori join
func joinLevel(level [][]string) [][]string {
	var candidates [][]string
	seen := make(map[string]struct{})
	for i := 0; i < len(level); i++ {
		for j := i + 1; j < len(level); j++ {
			a, b := level[i], level[j]
			if !samePrefix(a, b) {
				continue
			}
			candidate := append(append([]string{}, a...), b[len(b)-1])
			sort.Strings(candidate)
			k := key(candidate)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

func samePrefix(a, b []string) bool {
	for i := 0; i < len(a)-1; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsAll(basket map[string]struct{}, items []string) bool {
	for _, item := range items {
		if _, ok := basket[item]; !ok {
			return false
		}
	}
	return true
}
