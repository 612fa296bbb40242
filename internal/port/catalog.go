package port

import (
	"context"
	"iter"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

type ProductCatalog interface {
	// Upsert creates or replaces a product keyed by its trimmed name.
	Upsert(ctx context.Context, name string, stock int, price int64) (domain.Product, error)

	// Get returns the product or domain.ErrNotFound.
	Get(ctx context.Context, name string) (domain.Product, error)

	// List yields products in insertion order. The sequence is restartable.
	List(ctx context.Context) (iter.Seq[domain.Product], error)

	// SetStock replaces the stock figure, clamping negatives to zero.
	SetStock(ctx context.Context, name string, stock int) (domain.Product, error)

	// SetPrice replaces the unit price; the price must be positive.
	SetPrice(ctx context.Context, name string, price int64) (domain.Product, error)

	// Delete removes the product. Reservations referencing it keep their
	// captured snapshot data.
	Delete(ctx context.Context, name string) error

	// DecrementStock lowers stock by amount, flooring at zero. Used only by
	// the engine during settlement.
	DecrementStock(ctx context.Context, name string, amount int) (domain.Product, error)
}
