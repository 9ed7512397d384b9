package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxRecommendations = 5
	fallbackCount      = 3
	catalogCacheKey    = "catalog"
)

// RecommendationService resolves cart-based item recommendations. The
// external suggester is the primary source; any failure or unusable output
// drops to the deterministic fallback (global purchase-frequency ranking)
// rather than surfacing an error. An empty result is a valid outcome.
type RecommendationService struct {
	catalog   port.CatalogStore
	orders    port.OrderStore
	suggester port.Suggester
	cache     port.Cache[[]domain.Item]
	metrics   *observability.Metrics
	logger    *zap.Logger
	timeout   time.Duration
}

// NewRecommendationService creates a new RecommendationService. timeout
// bounds each suggester call.
func NewRecommendationService(catalog port.CatalogStore, orders port.OrderStore, suggester port.Suggester, cache port.Cache[[]domain.Item], metrics *observability.Metrics, timeout time.Duration, logger *zap.Logger) *RecommendationService {
	return &RecommendationService{
		catalog:   catalog,
		orders:    orders,
		suggester: suggester,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		timeout:   timeout,
	}
}

// Recommend returns up to 5 resolved catalog items for the given cart and
// optional history, never including anything already in the cart.
func (s *RecommendationService) Recommend(ctx context.Context, req *domain.RecommendationRequest) (items []domain.Item, err error) {
	ctx, span := tracer.Start(ctx, "RecommendationService.Recommend")
	defer span.End()
	span.SetAttributes(attribute.Int("cart.size", len(req.CurrentCart)))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("recommend", time.Since(start))
		if err != nil {
			s.metrics.IncrRequest("error")
		} else {
			s.metrics.IncrRequest("success")
		}
	}()

	if len(req.CurrentCart) == 0 {
		return nil, &domain.ErrValidation{Field: "currentCart", Message: "must not be empty"}
	}

	catalog, err := s.catalogSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	inCart := make(map[string]struct{}, len(req.CurrentCart))
	for _, c := range req.CurrentCart {
		inCart[c.ID] = struct{}{}
	}

	ids := s.primaryCandidates(ctx, catalog, req)
	if len(ids) == 0 {
		span.SetAttributes(attribute.Bool("recommendation.fallback", true))
		s.metrics.IncrFallback()
		ids, err = s.fallbackCandidates(ctx, inCart)
		if err != nil {
			return nil, err
		}
	}

	filtered := ids[:0:0]
	for _, id := range ids {
		if _, ok := inCart[id]; ok {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) > maxRecommendations {
		filtered = filtered[:maxRecommendations]
	}

	return s.resolve(ctx, filtered)
}

// primaryCandidates asks the suggester under a bounded timeout. Every
// failure mode maps to an empty candidate list.
func (s *RecommendationService) primaryCandidates(ctx context.Context, catalog []domain.Item, req *domain.RecommendationRequest) []string {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.suggester.Suggest(sctx, catalog, req.CurrentCart, req.UserHistory)
	if err != nil {
		s.metrics.IncrExternalError("suggester")
		s.logger.Warn("suggester failed, using fallback", zap.Error(err))
		return nil
	}
	return ids
}

// fallbackCandidates ranks all items by how many order lines they appear on,
// excludes cart items, and takes the top 3. Ties break by ascending item ID.
func (s *RecommendationService) fallbackCandidates(ctx context.Context, inCart map[string]struct{}) ([]string, error) {
	transactions, _, err := s.orders.ListAllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, tx := range transactions {
		for _, id := range tx.ItemIDs {
			counts[id]++
		}
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		if _, ok := inCart[id]; ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > fallbackCount {
		ids = ids[:fallbackCount]
	}
	return ids, nil
}

// resolve looks each candidate up in the catalog in parallel, preserving
// candidate order and silently dropping IDs that no longer resolve.
func (s *RecommendationService) resolve(ctx context.Context, ids []string) ([]domain.Item, error) {
	if len(ids) == 0 {
		return []domain.Item{}, nil
	}

	resolved := make([]*domain.Item, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			item, err := s.catalog.GetItem(gctx, id)
			if err != nil {
				var nf *domain.ErrNotFound
				if errors.As(err, &nf) {
					return nil // deleted item, drop silently
				}
				return err
			}
			resolved[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(ids))
	for _, item := range resolved {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// catalogSnapshot serves the item list from cache, falling through to the
// store on a miss.
func (s *RecommendationService) catalogSnapshot(ctx context.Context) ([]domain.Item, error) {
	if items, ok := s.cache.Get(catalogCacheKey); ok {
		s.metrics.IncrCacheHit(catalogCacheKey)
		return items, nil
	}
	s.metrics.IncrCacheMiss(catalogCacheKey)

	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(catalogCacheKey, items)
	return items, nil
}
