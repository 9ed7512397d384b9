package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/cache"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"go.uber.org/zap"
)

type mockSuggester struct {
	ids    []string
	err    error
	called bool
}

func (m *mockSuggester) Suggest(_ context.Context, _ []domain.Item, _, _ []domain.CartItem) ([]string, error) {
	m.called = true
	return m.ids, m.err
}

func catalogWithItems(ids ...string) *mockCatalogStore {
	catalog := newMockCatalogStore()
	for _, id := range ids {
		catalog.items[id] = &domain.Item{ID: id, Name: "Item " + id, Price: 10, IsActive: true}
	}
	return catalog
}

func newRecommendationService(catalog *mockCatalogStore, orders *mockOrderStore, suggester *mockSuggester) *service.RecommendationService {
	c := cache.New[[]domain.Item](time.Minute)
	metrics := observability.NewMetrics()
	return service.NewRecommendationService(catalog, orders, suggester, c, metrics, time.Second, zap.NewNop())
}

func cartOf(ids ...string) *domain.RecommendationRequest {
	req := &domain.RecommendationRequest{}
	for _, id := range ids {
		req.CurrentCart = append(req.CurrentCart, domain.CartItem{ID: id})
	}
	return req
}

func TestRecommend_EmptyCartRejected(t *testing.T) {
	svc := newRecommendationService(catalogWithItems(), &mockOrderStore{}, &mockSuggester{})

	var validation *domain.ErrValidation
	_, err := svc.Recommend(context.Background(), &domain.RecommendationRequest{})
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecommend_UsesSuggesterCandidates(t *testing.T) {
	catalog := catalogWithItems("a", "b", "c")
	suggester := &mockSuggester{ids: []string{"b", "c"}}
	svc := newRecommendationService(catalog, &mockOrderStore{}, suggester)

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 2 || items[0].ID != "b" || items[1].ID != "c" {
		t.Errorf("expected [b c] in suggester order, got %v", items)
	}
}

func TestRecommend_SuggesterErrorFallsBack(t *testing.T) {
	catalog := catalogWithItems("a", "b", "c", "d")
	orders := &mockOrderStore{transactions: []domain.Transaction{
		{OrderID: "o1", ItemIDs: []string{"b", "c"}},
		{OrderID: "o2", ItemIDs: []string{"b"}},
		{OrderID: "o3", ItemIDs: []string{"d"}},
	}}
	suggester := &mockSuggester{err: errors.New("quota exceeded")}
	svc := newRecommendationService(catalog, orders, suggester)

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected fallback instead of error, got %v", err)
	}
	// b appears on 2 lines, c and d on 1 each; ties break by ascending ID.
	want := []string{"b", "c", "d"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %v", len(want), items)
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

func TestRecommend_EmptySuggestionsFallBackAndNeverIncludeCart(t *testing.T) {
	catalog := catalogWithItems("a", "b", "c")
	orders := &mockOrderStore{transactions: []domain.Transaction{
		{OrderID: "o1", ItemIDs: []string{"a", "b"}},
		{OrderID: "o2", ItemIDs: []string{"a", "c"}},
		{OrderID: "o3", ItemIDs: []string{"a"}},
	}}
	suggester := &mockSuggester{ids: []string{}}
	svc := newRecommendationService(catalog, orders, suggester)

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !suggester.called {
		t.Error("suggester should be attempted first")
	}
	for _, item := range items {
		if item.ID == "a" {
			t.Error("fallback result must never include a cart item")
		}
	}
	if len(items) != 2 {
		t.Errorf("expected [b c], got %v", items)
	}
}

func TestRecommend_FiltersCartFromSuggestions(t *testing.T) {
	catalog := catalogWithItems("a", "b")
	suggester := &mockSuggester{ids: []string{"a", "b"}}
	svc := newRecommendationService(catalog, &mockOrderStore{}, suggester)

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 1 || items[0].ID != "b" {
		t.Errorf("expected cart item filtered out, got %v", items)
	}
}

func TestRecommend_CapsAtFive(t *testing.T) {
	catalog := catalogWithItems("b", "c", "d", "e", "f", "g", "h")
	suggester := &mockSuggester{ids: []string{"b", "c", "d", "e", "f", "g", "h"}}
	svc := newRecommendationService(catalog, &mockOrderStore{}, suggester)

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(items) != 5 {
		t.Errorf("expected at most 5 recommendations, got %d", len(items))
	}
}

func TestRecommend_DropsUnresolvableIDs(t *testing.T) {
	catalog := catalogWithItems("b")
	suggester := &mockSuggester{ids: []string{"b", "deleted-item"}}
	svc := newRecommendationService(catalog, &mockOrderStore{}, suggester)

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected unresolvable IDs to be dropped, got %v", err)
	}
	if len(items) != 1 || items[0].ID != "b" {
		t.Errorf("expected [b], got %v", items)
	}
}

func TestRecommend_EmptyResultIsValid(t *testing.T) {
	catalog := catalogWithItems("a")
	suggester := &mockSuggester{ids: []string{}}
	svc := newRecommendationService(catalog, &mockOrderStore{}, suggester) // no transactions

	items, err := svc.Recommend(context.Background(), cartOf("a"))
	if err != nil {
		t.Fatalf("expected empty result, got error %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", items)
	}
}

func TestRecommend_EngineSnapshotCountsRequests(t *testing.T) {
	catalog := catalogWithItems("a", "b")
	orders := &mockOrderStore{transactions: []domain.Transaction{
		{OrderID: "o1", ItemIDs: []string{"b"}},
	}}
	suggester := &mockSuggester{err: errors.New("quota exceeded")}
	c := cache.New[[]domain.Item](time.Minute)
	metrics := observability.NewMetrics()
	svc := service.NewRecommendationService(catalog, orders, suggester, c, metrics, time.Second, zap.NewNop())

	if _, err := svc.Recommend(context.Background(), cartOf("a")); err != nil {
		t.Fatalf("expected fallback instead of error, got %v", err)
	}
	if _, err := svc.Recommend(context.Background(), &domain.RecommendationRequest{}); err == nil {
		t.Fatal("expected validation error for an empty cart")
	}

	snap := metrics.GetEngineSnapshot()
	if snap.TotalRequests != 2 {
		t.Fatalf("expected 2 requests counted, got %d", snap.TotalRequests)
	}
	if snap.ErrorRate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", snap.ErrorRate)
	}
	if snap.FallbackRate != 0.5 {
		t.Errorf("expected fallback rate 0.5, got %f", snap.FallbackRate)
	}
}
