package domain

import "time"

// ============================================================
// Catalog: categories and items
// ============================================================

// Category groups items on the menu (e.g. Beverages, Main Dishes).
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Item is a sellable catalog entry.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	CategoryID  string    `json:"categoryId"`
	Barcode     string    `json:"barcode,omitempty"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// ItemUpdate carries a partial item update. Nil fields keep the stored value
// (the image in particular survives updates that don't replace it).
type ItemUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	CategoryID  *string  `json:"categoryId,omitempty"`
	Barcode     *string  `json:"barcode,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
}
