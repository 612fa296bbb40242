package port

import (
	"context"
	"time"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

// TicketGateway materializes and tears down the private channel backing a
// reservation. It never mutates engine state.
type TicketGateway interface {
	// CreateTicket opens a private channel for a purchase and returns its
	// handle. The handle doubles as the reservation id.
	CreateTicket(ctx context.Context, product, requester string) (string, error)

	// ScheduleDelete tears the channel down after the grace delay. The
	// returned func cancels the pending teardown; cancelling or losing it
	// only leaves a stale channel behind.
	ScheduleDelete(channelID string, after time.Duration) (cancel func())
}

// Notifier posts human-readable settlement summaries. Failures are logged by
// the caller and never roll back a committed settlement.
type Notifier interface {
	PostSettlement(ctx context.Context, r domain.Reservation, actor string) error
}

// DisplayStore persists the pointer to the single storefront display message
// so a restart edits the existing message instead of posting a new one.
type DisplayStore interface {
	SaveDisplay(ctx context.Context, channelID, messageID string) error

	// LoadDisplay returns domain.ErrNotFound when no pointer has been saved.
	LoadDisplay(ctx context.Context) (channelID, messageID string, err error)
}

// InteractionDeduper short-circuits duplicate deliveries of the same user
// interaction, in front of the engine's own state checks.
type InteractionDeduper interface {
	// Acquire returns false if the key was already claimed.
	Acquire(ctx context.Context, key string) (bool, error)
}
