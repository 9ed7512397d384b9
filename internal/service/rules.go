package service

import (
	"context"
	"sort"
	"strings"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

const (
	minRuleConfidence = 0.1
	minRuleSupport    = 0.05
	maxCandidateRules = 10
	maxRules          = 5
	maxCombinations   = 10
)

// RuleEngine mines association rules and popular item combinations from the
// full transaction history. All output is recomputed on demand; nothing is
// persisted.
type RuleEngine struct {
	orders port.OrderStore
	logger *zap.Logger
}

// NewRuleEngine creates a new RuleEngine.
func NewRuleEngine(orders port.OrderStore, logger *zap.Logger) *RuleEngine {
	return &RuleEngine{orders: orders, logger: logger}
}

// transactionIndex memoizes, for one scan, which transactions contain each
// item, so pair statistics never rescan the whole set.
type transactionIndex struct {
	total      int
	containing map[string][]int
	itemIDs    []string
	names      map[string]string
}

func buildIndex(transactions []domain.Transaction, names map[string]string) *transactionIndex {
	idx := &transactionIndex{
		total:      len(transactions),
		containing: make(map[string][]int),
		names:      names,
	}
	for i, tx := range transactions {
		seen := make(map[string]struct{}, len(tx.ItemIDs))
		for _, id := range tx.ItemIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if len(idx.containing[id]) == 0 {
				idx.itemIDs = append(idx.itemIDs, id)
			}
			idx.containing[id] = append(idx.containing[id], i)
		}
	}
	sort.Strings(idx.itemIDs)
	return idx
}

// countBoth counts transactions containing both items by merging the two
// sorted posting lists.
func (idx *transactionIndex) countBoth(a, b string) int {
	la, lb := idx.containing[a], idx.containing[b]
	i, j, n := 0, 0, 0
	for i < len(la) && j < len(lb) {
		switch {
		case la[i] < lb[j]:
			i++
		case la[i] > lb[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

// Support is the fraction of transactions containing the item. Zero
// transactions give zero support.
func (idx *transactionIndex) Support(item string) float64 {
	if idx.total == 0 {
		return 0
	}
	return float64(len(idx.containing[item])) / float64(idx.total)
}

// Confidence of a ⇒ b. Zero transactions containing a give zero confidence.
func (idx *transactionIndex) Confidence(a, b string) float64 {
	na := len(idx.containing[a])
	if na == 0 {
		return 0
	}
	return float64(idx.countBoth(a, b)) / float64(na)
}

// Lift of a ⇒ b. Zero support of b gives zero lift.
func (idx *transactionIndex) Lift(a, b string) float64 {
	sb := idx.Support(b)
	if sb == 0 {
		return 0
	}
	return idx.Confidence(a, b) / sb
}

func (idx *transactionIndex) name(id string) string {
	if n, ok := idx.names[id]; ok && n != "" {
		return n
	}
	return "Unknown"
}

// AssociationRules scans all transactions and returns the top rules by
// confidence. Candidate rules are enumerated over ascending item-ID pairs,
// antecedent before consequent, and a rule is kept only when its confidence
// exceeds 0.1 and its support exceeds 0.05. Enumeration stops once 10
// candidates qualify; the top 5 by confidence are returned.
func (e *RuleEngine) AssociationRules(ctx context.Context) ([]domain.AssociationRule, error) {
	ctx, span := tracer.Start(ctx, "RuleEngine.AssociationRules")
	defer span.End()

	transactions, names, err := e.orders.ListAllTransactions(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("transactions.count", len(transactions)))

	rules := MineRules(transactions, names)
	e.logger.Debug("association rules computed",
		zap.Int("transactions", len(transactions)),
		zap.Int("rules", len(rules)))
	return rules, nil
}

// MineRules is the pure rule computation over an in-memory transaction set.
func MineRules(transactions []domain.Transaction, names map[string]string) []domain.AssociationRule {
	idx := buildIndex(transactions, names)

	var rules []domain.AssociationRule
enumerate:
	for i := 0; i < len(idx.itemIDs); i++ {
		for j := i + 1; j < len(idx.itemIDs); j++ {
			a, b := idx.itemIDs[i], idx.itemIDs[j]
			conf := idx.Confidence(a, b)
			both := idx.countBoth(a, b)
			var supp float64
			if idx.total > 0 {
				supp = float64(both) / float64(idx.total)
			}
			if conf <= minRuleConfidence || supp <= minRuleSupport {
				continue
			}
			rules = append(rules, domain.AssociationRule{
				Antecedent: idx.name(a),
				Consequent: idx.name(b),
				Confidence: conf,
				Support:    supp,
				Lift:       idx.Lift(a, b),
			})
			if len(rules) >= maxCandidateRules {
				break enumerate
			}
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Confidence > rules[j].Confidence
	})
	if len(rules) > maxRules {
		rules = rules[:maxRules]
	}
	return rules
}

// PopularCombinations scans all transactions and returns the top 10 item
// pairs by co-purchase count. Pairs are canonicalized by sorted ID order so
// (X,Y) and (Y,X) always hit the same counter.
func (e *RuleEngine) PopularCombinations(ctx context.Context) ([]domain.PopularCombination, error) {
	ctx, span := tracer.Start(ctx, "RuleEngine.PopularCombinations")
	defer span.End()

	transactions, names, err := e.orders.ListAllTransactions(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("transactions.count", len(transactions)))

	return MineCombinations(transactions, names), nil
}

// MineCombinations is the pure pair-counting computation.
func MineCombinations(transactions []domain.Transaction, names map[string]string) []domain.PopularCombination {
	counts := make(map[string]int)
	var order []string

	for _, tx := range transactions {
		distinct := dedupe(tx.ItemIDs)
		if len(distinct) < 2 {
			continue
		}
		for i := 0; i < len(distinct); i++ {
			for j := i + 1; j < len(distinct); j++ {
				a, b := distinct[i], distinct[j]
				if a > b {
					a, b = b, a
				}
				key := a + "|" + b
				if _, ok := counts[key]; !ok {
					order = append(order, key)
				}
				counts[key]++
			}
		}
	}

	// Stable sort keeps first-encountered order among equal counts.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxCombinations {
		order = order[:maxCombinations]
	}

	combos := make([]domain.PopularCombination, 0, len(order))
	for _, key := range order {
		a, b, _ := strings.Cut(key, "|")
		combos = append(combos, domain.PopularCombination{
			Item1:     resolveName(names, a),
			Item2:     resolveName(names, b),
			Frequency: counts[key],
		})
	}
	return combos
}

func resolveName(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return "Unknown"
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
