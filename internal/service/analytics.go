package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxFrequentItems  = 5
	categoryIncrement = 0.1
	lockStripes       = 64
)

// AnalyticsService maintains per-customer purchase summaries and folds them
// into store-wide analytics. Summary updates are read-modify-write against
// the store, serialized per customer through striped locks so two concurrent
// purchases by the same customer never clobber each other. Different
// customers proceed in parallel.
type AnalyticsService struct {
	store   port.AnalyticsStore
	orders  port.OrderStore
	catalog port.CatalogStore
	rules   *RuleEngine
	logger  *zap.Logger

	workers int
	locks   [lockStripes]sync.Mutex
}

// NewAnalyticsService creates a new AnalyticsService. workers bounds the
// regeneration pool.
func NewAnalyticsService(store port.AnalyticsStore, orders port.OrderStore, catalog port.CatalogStore, rules *RuleEngine, workers int, logger *zap.Logger) *AnalyticsService {
	if workers < 1 {
		workers = 1
	}
	return &AnalyticsService{
		store:   store,
		orders:  orders,
		catalog: catalog,
		rules:   rules,
		logger:  logger,
		workers: workers,
	}
}

func (s *AnalyticsService) lockFor(customerID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(customerID))
	return &s.locks[h.Sum32()%lockStripes]
}

func newSummary(customerID string) *domain.CustomerAnalytics {
	return &domain.CustomerAnalytics{
		CustomerID:            customerID,
		ItemPurchaseFrequency: map[string]int{},
		PurchaseHistory:       []domain.PurchaseRecord{},
		CategoryPreferences:   map[string]float64{},
		FrequentItems:         []string{},
		AssociationRules:      map[string][]string{},
	}
}

// RecordPurchase applies one purchase to the customer's summary and persists
// it. Calling it twice records two purchases. Item frequency is incremented
// by quantity when the line carries one, by 1 otherwise; category preference
// accumulates a flat 0.1 per line occurrence (this path never normalizes).
// Lines with an empty category still count toward item frequency.
func (s *AnalyticsService) RecordPurchase(ctx context.Context, customerID string, lines []domain.PurchaseLine, totalAmount float64) (*domain.CustomerAnalytics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.RecordPurchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.Int("purchase.lines", len(lines)),
	)

	if customerID == "" {
		return nil, &domain.ErrValidation{Field: "customerId", Message: "must not be empty"}
	}
	if len(lines) == 0 {
		return nil, &domain.ErrValidation{Field: "items", Message: "must not be empty"}
	}
	if totalAmount < 0 {
		return nil, &domain.ErrValidation{Field: "totalAmount", Message: "must not be negative"}
	}

	// Fill in categories the caller did not resolve. A failed lookup leaves
	// the line without a category; it still counts toward item frequency.
	for i := range lines {
		if lines[i].CategoryID != "" {
			continue
		}
		item, err := s.catalog.GetItem(ctx, lines[i].ItemID)
		if err != nil || item == nil {
			s.logger.Debug("item category unresolved",
				zap.String("item_id", lines[i].ItemID))
			continue
		}
		lines[i].CategoryID = item.CategoryID
	}

	mu := s.lockFor(customerID)
	mu.Lock()
	defer mu.Unlock()

	summary, err := s.store.GetAnalytics(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		summary = newSummary(customerID)
	}

	applyPurchase(summary, lines, totalAmount, time.Now().UTC())

	if err := s.store.PutAnalytics(ctx, summary); err != nil {
		return nil, err
	}
	s.logger.Info("customer analytics updated",
		zap.String("customer_id", customerID),
		zap.Int("total_orders", summary.TotalOrders))
	return summary, nil
}

// applyPurchase is the pure incremental update.
func applyPurchase(summary *domain.CustomerAnalytics, lines []domain.PurchaseLine, totalAmount float64, now time.Time) {
	if summary.ItemPurchaseFrequency == nil {
		summary.ItemPurchaseFrequency = map[string]int{}
	}
	if summary.CategoryPreferences == nil {
		summary.CategoryPreferences = map[string]float64{}
	}
	if summary.AssociationRules == nil {
		summary.AssociationRules = map[string][]string{}
	}

	itemIDs := make([]string, 0, len(lines))
	var categories []string
	seenCategories := map[string]struct{}{}

	for _, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		summary.ItemPurchaseFrequency[line.ItemID] += qty
		itemIDs = append(itemIDs, line.ItemID)

		if line.CategoryID == "" {
			continue // unresolvable catalog entry, frequency still counted
		}
		summary.CategoryPreferences[line.CategoryID] += categoryIncrement
		if _, ok := seenCategories[line.CategoryID]; !ok {
			seenCategories[line.CategoryID] = struct{}{}
			categories = append(categories, line.CategoryID)
		}
	}

	n := float64(summary.TotalOrders)
	summary.AverageOrderValue = (summary.AverageOrderValue*n + totalAmount) / (n + 1)
	summary.TotalOrders++
	summary.LastPurchase = now

	summary.PurchaseHistory = append(summary.PurchaseHistory, domain.PurchaseRecord{
		OrderID:     "purchase_" + uuid.NewString(),
		ItemIDs:     itemIDs,
		Timestamp:   now,
		TotalAmount: totalAmount,
		Categories:  categories,
	})

	summary.FrequentItems = topFrequentItems(summary.ItemPurchaseFrequency)
}

// topFrequentItems ranks item IDs by descending frequency, ties broken by
// ascending ID, capped at 5.
func topFrequentItems(freq map[string]int) []string {
	ids := make([]string, 0, len(freq))
	for id := range freq {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if freq[ids[i]] != freq[ids[j]] {
			return freq[ids[i]] > freq[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > maxFrequentItems {
		ids = ids[:maxFrequentItems]
	}
	return ids
}

// GetCustomerAnalytics returns the stored summary, or a zero-state summary
// when the customer has none yet.
func (s *AnalyticsService) GetCustomerAnalytics(ctx context.Context, customerID string) (*domain.CustomerAnalytics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.GetCustomerAnalytics")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	summary, err := s.store.GetAnalytics(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return newSummary(customerID), nil
	}
	return summary, nil
}

// RegenerateSummary discards the stored summary and rebuilds it from the
// customer's full order history. Unlike the purchase path, category
// preferences here are occurrence counts normalized to fractions summing
// to 1, and the co-purchase map is rebuilt from scratch. Running it twice on
// unchanged orders yields an identical summary.
func (s *AnalyticsService) RegenerateSummary(ctx context.Context, customerID string, orders []domain.Order) (*domain.CustomerAnalytics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.RegenerateSummary")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.Int("orders.count", len(orders)),
	)

	summary := rebuildSummary(customerID, orders)

	mu := s.lockFor(customerID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.PutAnalytics(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// rebuildSummary is the pure regeneration computation.
func rebuildSummary(customerID string, orders []domain.Order) *domain.CustomerAnalytics {
	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	summary := newSummary(customerID)
	categoryCounts := map[string]int{}
	totalCategoryHits := 0
	coPurchase := map[string]map[string]struct{}{}
	var totalSpent float64

	for _, order := range sorted {
		itemIDs := make([]string, 0, len(order.Items))
		var categories []string
		seenCategories := map[string]struct{}{}

		for _, line := range order.Items {
			qty := line.Quantity
			if qty < 1 {
				qty = 1
			}
			summary.ItemPurchaseFrequency[line.ItemID] += qty
			itemIDs = append(itemIDs, line.ItemID)

			if line.CategoryID == "" {
				continue
			}
			categoryCounts[line.CategoryID]++
			totalCategoryHits++
			if _, ok := seenCategories[line.CategoryID]; !ok {
				seenCategories[line.CategoryID] = struct{}{}
				categories = append(categories, line.CategoryID)
			}
		}

		distinct := dedupe(itemIDs)
		if len(distinct) > 1 {
			for _, a := range distinct {
				for _, b := range distinct {
					if a == b {
						continue
					}
					if coPurchase[a] == nil {
						coPurchase[a] = map[string]struct{}{}
					}
					coPurchase[a][b] = struct{}{}
				}
			}
		}

		summary.PurchaseHistory = append(summary.PurchaseHistory, domain.PurchaseRecord{
			OrderID:     order.ID,
			ItemIDs:     itemIDs,
			Timestamp:   order.CreatedAt,
			TotalAmount: order.TotalPrice,
			Categories:  categories,
		})
		totalSpent += order.TotalPrice
		if order.CreatedAt.After(summary.LastPurchase) {
			summary.LastPurchase = order.CreatedAt
		}
	}

	summary.TotalOrders = len(sorted)
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = totalSpent / float64(summary.TotalOrders)
	}

	if totalCategoryHits > 0 {
		for cat, n := range categoryCounts {
			summary.CategoryPreferences[cat] = float64(n) / float64(totalCategoryHits)
		}
	}

	for item, linked := range coPurchase {
		ids := make([]string, 0, len(linked))
		for id := range linked {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		summary.AssociationRules[item] = ids
	}

	summary.FrequentItems = topFrequentItems(summary.ItemPurchaseFrequency)
	return summary
}

// RegenerateAll rebuilds every customer's summary from the full order log in
// a bounded worker pool. No lock spans the whole run; a cancelled context
// stops scheduling between customers while each customer's rewrite stays
// all-or-nothing.
func (s *AnalyticsService) RegenerateAll(ctx context.Context) (*domain.RegenerationReport, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.RegenerateAll")
	defer span.End()

	orders, err := s.orders.ListAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	byUser := map[string][]domain.Order{}
	for _, order := range orders {
		if order.UserID == "" {
			continue
		}
		byUser[order.UserID] = append(byUser[order.UserID], order)
	}

	userIDs := make([]string, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	report := &domain.RegenerationReport{
		TotalUsers:  len(userIDs),
		TotalOrders: len(orders),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.RegenerateSummary(gctx, userID, byUser[userID]); err != nil {
				s.logger.Warn("summary regeneration failed",
					zap.String("customer_id", userID), zap.Error(err))
				mu.Lock()
				report.ErrorCount++
				mu.Unlock()
				return nil // one bad customer does not abort the run
			}
			mu.Lock()
			report.SuccessCount++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	s.logger.Info("analytics regeneration finished",
		zap.Int("users", report.TotalUsers),
		zap.Int("succeeded", report.SuccessCount),
		zap.Int("failed", report.ErrorCount))
	return report, nil
}

// GlobalAnalytics folds every stored summary into store-wide figures and
// attaches the current top association rules. Revenue is approximated from
// each summary's running average (averageOrderValue * totalOrders) rather
// than re-summed from raw orders. When the summary store is unreachable the
// result is an explicitly degraded default, not an error; a failing rule
// computation degrades to an empty rule list.
func (s *AnalyticsService) GlobalAnalytics(ctx context.Context) (*domain.GlobalAnalytics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.GlobalAnalytics")
	defer span.End()

	summaries, err := s.store.ListAnalytics(ctx)
	if err != nil {
		s.logger.Warn("summary store unreachable, serving degraded global analytics", zap.Error(err))
		return &domain.GlobalAnalytics{
			PopularItems:        map[string]int{},
			CategoryPreferences: map[string]float64{},
			AssociationRules:    []domain.AssociationRule{},
			Degraded:            true,
		}, nil
	}

	global := &domain.GlobalAnalytics{
		TotalCustomers:      len(summaries),
		PopularItems:        map[string]int{},
		CategoryPreferences: map[string]float64{},
	}
	for _, summary := range summaries {
		global.TotalOrders += summary.TotalOrders
		global.TotalRevenue += summary.AverageOrderValue * float64(summary.TotalOrders)
		for item, n := range summary.ItemPurchaseFrequency {
			global.PopularItems[item] += n
		}
		for cat, w := range summary.CategoryPreferences {
			global.CategoryPreferences[cat] += w
		}
	}
	if global.TotalOrders > 0 {
		global.AverageOrderValue = global.TotalRevenue / float64(global.TotalOrders)
	}

	rules, err := s.rules.AssociationRules(ctx)
	if err != nil {
		s.logger.Warn("rule computation failed, omitting rules from global analytics", zap.Error(err))
		rules = []domain.AssociationRule{}
	}
	if rules == nil {
		rules = []domain.AssociationRule{}
	}
	global.AssociationRules = rules

	if err := summarySanity(summaries); err != nil {
		s.logger.Debug("summary sanity", zap.Error(err))
	}
	return global, nil
}

// summarySanity flags summaries whose incremental invariant drifted; purely
// diagnostic.
func summarySanity(summaries []domain.CustomerAnalytics) error {
	for _, s := range summaries {
		if s.TotalOrders != len(s.PurchaseHistory) {
			return fmt.Errorf("customer %s: totalOrders=%d but history length=%d",
				s.CustomerID, s.TotalOrders, len(s.PurchaseHistory))
		}
	}
	return nil
}
