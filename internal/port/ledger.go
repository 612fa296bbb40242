package port

import (
	"context"
	"iter"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

type ReservationLedger interface {
	// Put inserts or overwrites a reservation by id.
	Put(ctx context.Context, r domain.Reservation) error

	// Get returns the reservation or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Reservation, error)

	// PendingQuantity sums the quantities of all pending reservations for a
	// product. This is the figure subtracted from stock to compute
	// availability.
	PendingQuantity(ctx context.Context, product string) (int, error)

	// List yields all reservations in insertion order. Reporting only, not
	// on the request hot path.
	List(ctx context.Context) (iter.Seq[domain.Reservation], error)
}
