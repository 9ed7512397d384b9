package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// --- Catalog (implements port.CatalogStore) ---

// categoryRow maps the categories table.
type categoryRow struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// itemRow maps the items table.
type itemRow struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	CategoryID  string    `json:"category_id"`
	Barcode     string    `json:"barcode,omitempty"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func (r categoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
	}
}

func (r itemRow) toDomain() domain.Item {
	return domain.Item{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		CategoryID:  r.CategoryID,
		Barcode:     r.Barcode,
		Stock:       r.Stock,
		ImageURL:    r.ImageURL,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
	}
}

// ListCategories returns all categories ordered by name.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	var categories []domain.Category
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, "categories?order=name.asc")
		if err != nil {
			return err
		}
		var rows []categoryRow
		if body != nil {
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode categories: %w", err)
			}
		}
		categories = make([]domain.Category, 0, len(rows))
		for _, r := range rows {
			categories = append(categories, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return categories, nil
}

// GetCategory fetches a single category by ID.
func (c *Client) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	var category *domain.Category
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, fmt.Sprintf("categories?id=eq.%s&limit=1", url.QueryEscape(id)))
		if err != nil {
			return err
		}
		rows, err := decodeRows[categoryRow](body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "category", ID: id}
		}
		cat := rows[0].toDomain()
		category = &cat
		return nil
	})
	if err != nil {
		if nf, ok := asNotFound(err); ok {
			return nil, nf
		}
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return category, nil
}

// CreateCategory inserts a category and returns the stored row.
func (c *Client) CreateCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCategory")
	defer span.End()

	row := categoryRow{
		Name:        cat.Name,
		Description: cat.Description,
		IsActive:    cat.IsActive,
	}
	body, err := c.doPost(ctx, "categories", []categoryRow{row})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	rows, err := decodeRows[categoryRow](body)
	if err != nil || len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: fmt.Errorf("empty insert response")}
	}
	created := rows[0].toDomain()
	return &created, nil
}

// UpdateCategory applies a partial update.
func (c *Client) UpdateCategory(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCategory")
	defer span.End()

	if err := c.doPatch(ctx, fmt.Sprintf("categories?id=eq.%s", url.QueryEscape(id)), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return nil
}

// DeleteCategory removes a category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCategory")
	defer span.End()

	if err := c.doDelete(ctx, fmt.Sprintf("categories?id=eq.%s", url.QueryEscape(id))); err != nil {
		return &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}
	return nil
}

// ListItems returns all items ordered by name.
func (c *Client) ListItems(ctx context.Context) ([]domain.Item, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListItems")
	defer span.End()

	var items []domain.Item
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, "items?order=name.asc")
		if err != nil {
			return err
		}
		rows, err := decodeRows[itemRow](body)
		if err != nil {
			return err
		}
		items = make([]domain.Item, 0, len(rows))
		for _, r := range rows {
			items = append(items, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/items", Err: err}
	}
	return items, nil
}

// GetItem fetches a single item by ID. Returns ErrNotFound for deleted
// items so callers can skip them silently.
func (c *Client) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetItem")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", id))

	var item *domain.Item
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, fmt.Sprintf("items?id=eq.%s&limit=1", url.QueryEscape(id)))
		if err != nil {
			return err
		}
		rows, err := decodeRows[itemRow](body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "item", ID: id}
		}
		it := rows[0].toDomain()
		item = &it
		return nil
	})
	if err != nil {
		if nf, ok := asNotFound(err); ok {
			return nil, nf
		}
		return nil, &domain.ErrExternalService{Service: "supabase/items", Err: err}
	}
	return item, nil
}

// CreateItem inserts an item and returns the stored row.
func (c *Client) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateItem")
	defer span.End()

	row := itemRow{
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		CategoryID:  item.CategoryID,
		Barcode:     item.Barcode,
		Stock:       item.Stock,
		ImageURL:    item.ImageURL,
		IsActive:    item.IsActive,
	}
	body, err := c.doPost(ctx, "items", []itemRow{row})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/items", Err: err}
	}
	rows, err := decodeRows[itemRow](body)
	if err != nil || len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/items", Err: fmt.Errorf("empty insert response")}
	}
	created := rows[0].toDomain()
	return &created, nil
}

// UpdateItem applies a partial update.
func (c *Client) UpdateItem(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateItem")
	defer span.End()

	if err := c.doPatch(ctx, fmt.Sprintf("items?id=eq.%s", url.QueryEscape(id)), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/items", Err: err}
	}
	return nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteItem")
	defer span.End()

	if err := c.doDelete(ctx, fmt.Sprintf("items?id=eq.%s", url.QueryEscape(id))); err != nil {
		return &domain.ErrExternalService{Service: "supabase/items", Err: err}
	}
	return nil
}

// decodeRows unmarshals a PostgREST array body; nil body decodes to empty.
func decodeRows[T any](body []byte) ([]T, error) {
	if body == nil || string(body) == "[]" {
		return nil, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}

// asNotFound unwraps an ErrNotFound that travelled through the breaker.
func asNotFound(err error) (*domain.ErrNotFound, bool) {
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}
