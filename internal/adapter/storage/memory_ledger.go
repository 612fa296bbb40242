package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sync"
	"time"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

// MemoryLedger is the in-memory reservation store, with the same optional
// JSON snapshot discipline as MemoryCatalog: a failed snapshot write rolls
// the in-memory mutation back. Reservations are never deleted; they are the
// settlement history.
type MemoryLedger struct {
	mu           sync.RWMutex
	reservations map[string]domain.Reservation
	order        []string
	snapshotPath string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{reservations: make(map[string]domain.Reservation)}
}

// NewMemoryLedgerWithSnapshot loads the snapshot at path if it exists and
// rewrites it after every mutation.
func NewMemoryLedgerWithSnapshot(path string) (*MemoryLedger, error) {
	l := NewMemoryLedger()
	l.snapshotPath = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger snapshot: %w", err)
	}

	var records []reservationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode ledger snapshot: %w", err)
	}
	for _, rec := range records {
		r := rec.toDomain()
		l.reservations[r.ID] = r
		l.order = append(l.order, r.ID)
	}
	return l, nil
}

type reservationRecord struct {
	ID         string     `json:"id"`
	Requester  string     `json:"requester"`
	Product    string     `json:"product"`
	Quantity   int        `json:"quantity"`
	UnitPrice  int64      `json:"unit_price"`
	TotalPrice int64      `json:"total_price"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (rec reservationRecord) toDomain() domain.Reservation {
	r := domain.Reservation{
		ID:         rec.ID,
		Requester:  rec.Requester,
		Product:    rec.Product,
		Quantity:   rec.Quantity,
		UnitPrice:  rec.UnitPrice,
		TotalPrice: rec.TotalPrice,
		Status:     domain.ReservationStatus(rec.Status),
		CreatedAt:  rec.CreatedAt,
		ResolvedBy: rec.ResolvedBy,
	}
	if rec.ResolvedAt != nil {
		r.ResolvedAt = *rec.ResolvedAt
	}
	return r
}

func toRecord(r domain.Reservation) reservationRecord {
	rec := reservationRecord{
		ID:         r.ID,
		Requester:  r.Requester,
		Product:    r.Product,
		Quantity:   r.Quantity,
		UnitPrice:  r.UnitPrice,
		TotalPrice: r.TotalPrice,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		ResolvedBy: r.ResolvedBy,
	}
	if !r.ResolvedAt.IsZero() {
		t := r.ResolvedAt
		rec.ResolvedAt = &t
	}
	return rec
}

func (l *MemoryLedger) Put(ctx context.Context, r domain.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, existed := l.reservations[r.ID]
	if !existed {
		l.order = append(l.order, r.ID)
	}
	l.reservations[r.ID] = r

	if err := l.persistLocked(); err != nil {
		if existed {
			l.reservations[r.ID] = prev
		} else {
			delete(l.reservations, r.ID)
			l.order = l.order[:len(l.order)-1]
		}
		return err
	}
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, id string) (domain.Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.reservations[id]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("reservation %q: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (l *MemoryLedger) PendingQuantity(ctx context.Context, product string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, r := range l.reservations {
		if r.Status == domain.StatusPending && r.Product == product {
			total += r.Quantity
		}
	}
	return total, nil
}

func (l *MemoryLedger) List(ctx context.Context) (iter.Seq[domain.Reservation], error) {
	l.mu.RLock()
	snapshot := make([]domain.Reservation, 0, len(l.order))
	for _, id := range l.order {
		snapshot = append(snapshot, l.reservations[id])
	}
	l.mu.RUnlock()

	return func(yield func(domain.Reservation) bool) {
		for _, r := range snapshot {
			if !yield(r) {
				return
			}
		}
	}, nil
}

func (l *MemoryLedger) persistLocked() error {
	if l.snapshotPath == "" {
		return nil
	}

	records := make([]reservationRecord, 0, len(l.order))
	for _, id := range l.order {
		records = append(records, toRecord(l.reservations[id]))
	}
	return writeSnapshot(l.snapshotPath, records)
}
