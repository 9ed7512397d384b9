package service

import (
	"context"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/cache"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CatalogService manages categories and items. Every mutation flushes the
// catalog snapshot cache so the recommendation path never sees stale items.
type CatalogService struct {
	store  port.CatalogStore
	cache  *cache.InMemory[[]domain.Item]
	logger *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store port.CatalogStore, cache *cache.InMemory[[]domain.Item], logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, cache: cache, logger: logger}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ListCategories")
	defer span.End()

	return s.store.ListCategories(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.GetCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	return s.store.GetCategory(ctx, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.CreateCategory")
	defer span.End()

	if c.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	c.IsActive = true
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return nil, err
	}
	s.logger.Info("category created", zap.String("category_id", created.ID))
	return created, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "CatalogService.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	if len(updates) == 0 {
		return &domain.ErrValidation{Field: "updates", Message: "must not be empty"}
	}
	return s.store.UpdateCategory(ctx, id, updates)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CatalogService.DeleteCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	return s.store.DeleteCategory(ctx, id)
}

func (s *CatalogService) ListItems(ctx context.Context) ([]domain.Item, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ListItems")
	defer span.End()

	return s.store.ListItems(ctx)
}

func (s *CatalogService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.GetItem")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", id))

	return s.store.GetItem(ctx, id)
}

func (s *CatalogService) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.CreateItem")
	defer span.End()

	if item.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
	}
	if item.Price < 0 {
		return nil, &domain.ErrValidation{Field: "price", Message: "must not be negative"}
	}
	if item.CategoryID == "" {
		return nil, &domain.ErrValidation{Field: "categoryId", Message: "must not be empty"}
	}
	if _, err := s.store.GetCategory(ctx, item.CategoryID); err != nil {
		return nil, err
	}

	item.IsActive = true
	created, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	s.cache.Flush()
	s.logger.Info("item created",
		zap.String("item_id", created.ID),
		zap.String("category_id", created.CategoryID))
	return created, nil
}

// UpdateItem applies a partial update; nil fields keep the stored value, so
// an update without a new image keeps the existing one.
func (s *CatalogService) UpdateItem(ctx context.Context, id string, update *domain.ItemUpdate) (*domain.Item, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.UpdateItem")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", id))

	columns := map[string]any{}
	if update.Name != nil {
		if *update.Name == "" {
			return nil, &domain.ErrValidation{Field: "name", Message: "must not be empty"}
		}
		columns["name"] = *update.Name
	}
	if update.Description != nil {
		columns["description"] = *update.Description
	}
	if update.Price != nil {
		if *update.Price < 0 {
			return nil, &domain.ErrValidation{Field: "price", Message: "must not be negative"}
		}
		columns["price"] = *update.Price
	}
	if update.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, *update.CategoryID); err != nil {
			return nil, err
		}
		columns["category_id"] = *update.CategoryID
	}
	if update.Barcode != nil {
		columns["barcode"] = *update.Barcode
	}
	if update.Stock != nil {
		columns["stock"] = *update.Stock
	}
	if update.ImageURL != nil {
		columns["image_url"] = *update.ImageURL
	}
	if len(columns) == 0 {
		return nil, &domain.ErrValidation{Field: "updates", Message: "must not be empty"}
	}

	if err := s.store.UpdateItem(ctx, id, columns); err != nil {
		return nil, err
	}
	s.cache.Flush()
	return s.store.GetItem(ctx, id)
}

func (s *CatalogService) DeleteItem(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CatalogService.DeleteItem")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", id))

	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.cache.Flush()
	return nil
}
