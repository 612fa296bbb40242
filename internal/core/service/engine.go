package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
	"github.com/CrLims/discord-custom-product/internal/port"
)

// DefaultTeardownDelay is the grace period before a settled ticket channel
// is deleted.
const DefaultTeardownDelay = 10 * time.Second

// Engine drives reservations through the pending → success/cancelled state
// machine and is the sole mutator of product stock. All operations touching
// a product's stock or pending quantity run inside that product's critical
// section; administrative catalog mutations go through the engine so they
// share the same lock.
type Engine struct {
	catalog  port.ProductCatalog
	ledger   port.ReservationLedger
	gateway  port.TicketGateway
	notifier port.Notifier

	operators map[string]struct{}
	locks     *keyedMutex
	logger    *slog.Logger

	// TeardownDelay is how long a settled ticket channel lingers before the
	// gateway deletes it.
	TeardownDelay time.Duration
}

// NewEngine builds the reservation engine. Gateway and notifier may be nil;
// settlement then commits without the corresponding side effect.
func NewEngine(catalog port.ProductCatalog, ledger port.ReservationLedger, gateway port.TicketGateway, notifier port.Notifier, operators []string, logger *slog.Logger) *Engine {
	ops := make(map[string]struct{}, len(operators))
	for _, id := range operators {
		if id = strings.TrimSpace(id); id != "" {
			ops[id] = struct{}{}
		}
	}

	return &Engine{
		catalog:       catalog,
		ledger:        ledger,
		gateway:       gateway,
		notifier:      notifier,
		operators:     ops,
		locks:         newKeyedMutex(),
		logger:        logger,
		TeardownDelay: DefaultTeardownDelay,
	}
}

// IsOperator reports whether the actor may settle reservations and mutate
// the catalog.
func (e *Engine) IsOperator(actor string) bool {
	_, ok := e.operators[actor]
	return ok
}

// Availability is the stock picture for one product at one instant.
type Availability struct {
	Stock     int
	Pending   int
	Available int
}

// RequestReservation converts a purchase intent into a pending reservation
// under the caller-supplied id (the ticket channel identity). The
// availability check and the ledger write form one critical section per
// product, so concurrent requests can never jointly oversell.
func (e *Engine) RequestReservation(ctx context.Context, id, requester, product string, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, &domain.ValidationError{Reason: "quantity must be greater than zero"}
	}
	if id == "" {
		return domain.Reservation{}, &domain.ValidationError{Reason: "reservation id must not be empty"}
	}

	unlock := e.locks.Lock(product)
	defer unlock()

	p, err := e.catalog.Get(ctx, product)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, &domain.PersistenceError{Op: "catalog.Get", Err: err}
	}

	pending, err := e.ledger.PendingQuantity(ctx, product)
	if err != nil {
		return domain.Reservation{}, &domain.PersistenceError{Op: "ledger.PendingQuantity", Err: err}
	}

	available := p.Stock - pending
	if quantity > available {
		return domain.Reservation{}, &domain.InsufficientStockError{
			Product:   p.Name,
			Available: available,
			Pending:   pending,
			Requested: quantity,
		}
	}

	r := domain.Reservation{
		ID:         id,
		Requester:  requester,
		Product:    p.Name,
		Quantity:   quantity,
		UnitPrice:  p.Price,
		TotalPrice: int64(quantity) * p.Price,
		Status:     domain.StatusPending,
		CreatedAt:  time.Now(),
	}

	if err := e.ledger.Put(ctx, r); err != nil {
		return domain.Reservation{}, &domain.PersistenceError{Op: "ledger.Put", Err: err}
	}

	e.logger.Info("reservation created",
		"id", r.ID, "requester", requester, "product", p.Name,
		"quantity", quantity, "total_price", r.TotalPrice)

	return r, nil
}

// ResolveSuccess settles a pending reservation as fulfilled: stock is
// decremented (clamped at zero; a deleted product is skipped but still
// settled), the reservation becomes terminal and the notifier and channel
// teardown fire as best-effort side effects.
func (e *Engine) ResolveSuccess(ctx context.Context, id, actor string) (domain.Reservation, error) {
	return e.resolve(ctx, id, actor, domain.StatusSuccess)
}

// ResolveCancel settles a pending reservation as cancelled. No stock is
// touched and no settlement summary is posted.
func (e *Engine) ResolveCancel(ctx context.Context, id, actor string) (domain.Reservation, error) {
	return e.resolve(ctx, id, actor, domain.StatusCancelled)
}

func (e *Engine) resolve(ctx context.Context, id, actor string, target domain.ReservationStatus) (domain.Reservation, error) {
	if !e.IsOperator(actor) {
		return domain.Reservation{}, domain.ErrUnauthorized
	}

	r, err := e.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, &domain.PersistenceError{Op: "ledger.Get", Err: err}
	}

	unlock := e.locks.Lock(r.Product)
	defer unlock()

	// Re-read under the lock: another settlement may have won the race.
	r, err = e.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, &domain.PersistenceError{Op: "ledger.Get", Err: err}
	}
	if r.Status != domain.StatusPending {
		return domain.Reservation{}, fmt.Errorf("reservation %s is %s: %w", r.ID, r.Status, domain.ErrAlreadyProcessed)
	}

	var prev domain.Product
	decremented := false
	if target == domain.StatusSuccess {
		prev, err = e.catalog.Get(ctx, r.Product)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Product deleted after the request; a committed sale still
			// settles, only the stock bookkeeping is skipped.
			e.logger.Warn("settling reservation for deleted product", "id", r.ID, "product", r.Product)
		case err != nil:
			return domain.Reservation{}, &domain.PersistenceError{Op: "catalog.Get", Err: err}
		default:
			if _, err := e.catalog.DecrementStock(ctx, r.Product, r.Quantity); err != nil {
				return domain.Reservation{}, &domain.PersistenceError{Op: "catalog.DecrementStock", Err: err}
			}
			decremented = true
		}
	}

	r.Status = target
	r.ResolvedBy = actor
	r.ResolvedAt = time.Now()

	if err := e.ledger.Put(ctx, r); err != nil {
		if decremented {
			if _, rbErr := e.catalog.SetStock(ctx, prev.Name, prev.Stock); rbErr != nil {
				e.logger.Error("stock rollback failed after ledger write failure",
					"id", r.ID, "product", prev.Name, "error", rbErr)
			}
		}
		return domain.Reservation{}, &domain.PersistenceError{Op: "ledger.Put", Err: err}
	}

	e.logger.Info("reservation settled", "id", r.ID, "status", string(target), "actor", actor)

	// Side effects past this point never roll back the committed settlement.
	if target == domain.StatusSuccess && e.notifier != nil {
		if err := e.notifier.PostSettlement(ctx, r, actor); err != nil {
			e.logger.Warn("settlement notification failed", "id", r.ID, "error", err)
		}
	}
	if e.gateway != nil {
		e.gateway.ScheduleDelete(r.ID, e.TeardownDelay)
	}

	return r, nil
}

// Availability returns the stock picture used to vet new requests.
func (e *Engine) Availability(ctx context.Context, product string) (Availability, error) {
	unlock := e.locks.Lock(product)
	defer unlock()

	p, err := e.catalog.Get(ctx, product)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Availability{}, err
		}
		return Availability{}, &domain.PersistenceError{Op: "catalog.Get", Err: err}
	}

	pending, err := e.ledger.PendingQuantity(ctx, product)
	if err != nil {
		return Availability{}, &domain.PersistenceError{Op: "ledger.PendingQuantity", Err: err}
	}

	return Availability{Stock: p.Stock, Pending: pending, Available: p.Stock - pending}, nil
}

// UpsertProduct creates or replaces a product, inside the same per-product
// critical section settlements use, so an admin edit cannot race a
// concurrent stock mutation.
func (e *Engine) UpsertProduct(ctx context.Context, name string, stock int, price int64) (domain.Product, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return domain.Product{}, &domain.ValidationError{Reason: "product name must not be empty"}
	}

	unlock := e.locks.Lock(key)
	defer unlock()

	return e.catalog.Upsert(ctx, key, stock, price)
}

// SetStock replaces a product's stock figure, clamping negatives to zero.
func (e *Engine) SetStock(ctx context.Context, name string, stock int) (domain.Product, error) {
	unlock := e.locks.Lock(name)
	defer unlock()

	return e.catalog.SetStock(ctx, name, stock)
}

// SetPrice replaces a product's unit price. Existing reservations keep the
// price captured at request time.
func (e *Engine) SetPrice(ctx context.Context, name string, price int64) (domain.Product, error) {
	unlock := e.locks.Lock(name)
	defer unlock()

	return e.catalog.SetPrice(ctx, name, price)
}

// DeleteProduct removes a product from the catalog. Reservations referencing
// it retain their captured snapshot data.
func (e *Engine) DeleteProduct(ctx context.Context, name string) error {
	unlock := e.locks.Lock(name)
	defer unlock()

	return e.catalog.Delete(ctx, name)
}

// Products yields the catalog in insertion order, for display surfaces.
func (e *Engine) Products(ctx context.Context) (iter.Seq[domain.Product], error) {
	return e.catalog.List(ctx)
}

// Reservations yields the full settlement history, for reporting.
func (e *Engine) Reservations(ctx context.Context) (iter.Seq[domain.Reservation], error) {
	return e.ledger.List(ctx)
}

// Reservation returns a single reservation by ticket id.
func (e *Engine) Reservation(ctx context.Context, id string) (domain.Reservation, error) {
	return e.ledger.Get(ctx, id)
}
