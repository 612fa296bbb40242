package domain

import (
	"strings"
	"time"
)

type Product struct {
	Name      string
	Stock     int
	Price     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct validates and builds a product record. The name is trimmed and
// becomes the catalog key; malformed records cannot be constructed.
func NewProduct(name string, stock int, price int64) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, &ValidationError{Reason: "product name must not be empty"}
	}
	if stock < 0 {
		return Product{}, &ValidationError{Reason: "stock must not be negative"}
	}
	if price <= 0 {
		return Product{}, &ValidationError{Reason: "price must be greater than zero"}
	}

	now := time.Now()
	return Product{
		Name:      name,
		Stock:     stock,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
