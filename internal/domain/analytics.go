package domain

import "time"

// ============================================================
// Customer analytics (persisted per-customer summary)
// ============================================================

// PurchaseRecord is one entry in a customer's purchase history.
// The history is append-only; most recent last.
type PurchaseRecord struct {
	OrderID     string    `json:"orderId"`
	ItemIDs     []string  `json:"itemIds"`
	Timestamp   time.Time `json:"timestamp"`
	TotalAmount float64   `json:"totalAmount"`
	Categories  []string  `json:"categories"`
}

// CustomerAnalytics is the incrementally-maintained analytics summary for
// one customer. It lives in the customer_analytics store and is rewritten
// whole on every update.
//
// CategoryPreferences carries two representations depending on which path
// last wrote the summary: the on-purchase path accumulates a fixed +0.1 per
// line occurrence, while the regeneration path counts occurrences and
// normalizes to fractions summing to 1. The two formulas are intentionally
// kept separate; see AnalyticsService.
type CustomerAnalytics struct {
	CustomerID            string              `json:"customerId"`
	ItemPurchaseFrequency map[string]int      `json:"itemPurchaseFrequency"`
	PurchaseHistory       []PurchaseRecord    `json:"purchaseHistory"`
	CategoryPreferences   map[string]float64  `json:"categoryPreferences"`
	LastPurchase          time.Time           `json:"lastPurchase"`
	AverageOrderValue     float64             `json:"averageOrderValue"`
	TotalOrders           int                 `json:"totalOrders"`
	FrequentItems         []string            `json:"frequentItems"`
	AssociationRules      map[string][]string `json:"associationRules"`
}

// PurchaseLine is one line of a purchase as seen by the analytics update:
// the item, its category (may be empty when the catalog lookup failed) and
// the quantity bought.
type PurchaseLine struct {
	ItemID     string `json:"id"`
	CategoryID string `json:"categoryId"`
	Quantity   int    `json:"quantity,omitempty"`
}

// ============================================================
// Derived, recomputed-on-demand analytics
// ============================================================

// AssociationRule is a mined antecedent ⇒ consequent rule with its
// market-basket statistics. Names, not IDs, for display.
type AssociationRule struct {
	Antecedent string  `json:"antecedent"`
	Consequent string  `json:"consequent"`
	Confidence float64 `json:"confidence"`
	Support    float64 `json:"support"`
	Lift       float64 `json:"lift"`
}

// PopularCombination is an unordered item pair with its co-purchase count.
type PopularCombination struct {
	Item1     string `json:"item1"`
	Item2     string `json:"item2"`
	Frequency int    `json:"frequency"`
}

// GlobalAnalytics folds every customer summary into store-wide figures.
// TotalRevenue is approximated from each summary's running average
// (averageOrderValue * totalOrders), not re-summed from raw orders.
type GlobalAnalytics struct {
	TotalCustomers      int                `json:"totalCustomers"`
	TotalOrders         int                `json:"totalOrders"`
	TotalRevenue        float64            `json:"totalRevenue"`
	AverageOrderValue   float64            `json:"averageOrderValue"`
	PopularItems        map[string]int     `json:"popularItems"`
	CategoryPreferences map[string]float64 `json:"categoryPreferences"`
	AssociationRules    []AssociationRule  `json:"associationRules"`

	// Degraded marks a default result returned because the summary store
	// was unreachable.
	Degraded bool `json:"degraded,omitempty"`
}

// EngineMetrics is the snapshot served by GET /api/analytics/engine.
type EngineMetrics struct {
	TotalRequests   int64   `json:"totalRequests"`
	ErrorRate       float64 `json:"errorRate"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	FallbackRate    float64 `json:"fallbackRate"`
	SuggesterTokens float64 `json:"suggesterTokens"`
	Period          string  `json:"period"`
}
