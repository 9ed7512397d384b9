package domain

// ============================================================
// Recommendations
// ============================================================

// CartItem is an item reference in the shopper's current cart or recent
// history, as sent by the frontend.
type CartItem struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
}

// RecommendationRequest is the POST /api/recommendations payload.
type RecommendationRequest struct {
	CurrentCart []CartItem `json:"currentCart"`
	UserHistory []CartItem `json:"userHistory,omitempty"`
}
