package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

// MemoryCatalog is the in-memory product store. It preserves insertion order
// for display and can persist a JSON snapshot after every mutation, replacing
// the flat shared document the storefront used to keep on disk. A failed
// snapshot write rolls the in-memory mutation back, so a PersistenceError
// never leaves partial state behind.
type MemoryCatalog struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	order        []string
	snapshotPath string
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]domain.Product)}
}

// NewMemoryCatalogWithSnapshot loads the snapshot at path if it exists and
// rewrites it after every mutation.
func NewMemoryCatalogWithSnapshot(path string) (*MemoryCatalog, error) {
	c := NewMemoryCatalog()
	c.snapshotPath = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog snapshot: %w", err)
	}

	var records []productRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	for _, rec := range records {
		p, err := domain.NewProduct(rec.Name, rec.Stock, rec.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid product %q in snapshot: %w", rec.Name, err)
		}
		if !rec.CreatedAt.IsZero() {
			p.CreatedAt = rec.CreatedAt
			p.UpdatedAt = rec.UpdatedAt
		}
		c.products[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return c, nil
}

type productRecord struct {
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *MemoryCatalog) Upsert(ctx context.Context, name string, stock int, price int64) (domain.Product, error) {
	p, err := domain.NewProduct(name, stock, price)
	if err != nil {
		return domain.Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, existed := c.products[p.Name]
	if existed {
		p.CreatedAt = existing.CreatedAt
	} else {
		c.order = append(c.order, p.Name)
	}
	c.products[p.Name] = p

	if err := c.persistLocked(); err != nil {
		if existed {
			c.products[p.Name] = existing
		} else {
			delete(c.products, p.Name)
			c.order = c.order[:len(c.order)-1]
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (c *MemoryCatalog) Get(ctx context.Context, name string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[name]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

func (c *MemoryCatalog) List(ctx context.Context) (iter.Seq[domain.Product], error) {
	c.mu.RLock()
	snapshot := make([]domain.Product, 0, len(c.order))
	for _, name := range c.order {
		snapshot = append(snapshot, c.products[name])
	}
	c.mu.RUnlock()

	return func(yield func(domain.Product) bool) {
		for _, p := range snapshot {
			if !yield(p) {
				return
			}
		}
	}, nil
}

func (c *MemoryCatalog) SetStock(ctx context.Context, name string, stock int) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[name]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}

	prev := p
	p.Stock = max(0, stock)
	p.UpdatedAt = time.Now()
	c.products[name] = p

	if err := c.persistLocked(); err != nil {
		c.products[name] = prev
		return domain.Product{}, err
	}
	return p, nil
}

func (c *MemoryCatalog) SetPrice(ctx context.Context, name string, price int64) (domain.Product, error) {
	if price <= 0 {
		return domain.Product{}, &domain.ValidationError{Reason: "price must be greater than zero"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[name]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}

	prev := p
	p.Price = price
	p.UpdatedAt = time.Now()
	c.products[name] = p

	if err := c.persistLocked(); err != nil {
		c.products[name] = prev
		return domain.Product{}, err
	}
	return p, nil
}

func (c *MemoryCatalog) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[name]
	if !ok {
		return fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}

	prevOrder := slices.Clone(c.order)
	delete(c.products, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	if err := c.persistLocked(); err != nil {
		c.products[name] = p
		c.order = prevOrder
		return err
	}
	return nil
}

func (c *MemoryCatalog) DecrementStock(ctx context.Context, name string, amount int) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[name]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}

	// Floors at zero: stock bookkeeping is best-effort once a sale is
	// already committed.
	prev := p
	p.Stock = max(0, p.Stock-amount)
	p.UpdatedAt = time.Now()
	c.products[name] = p

	if err := c.persistLocked(); err != nil {
		c.products[name] = prev
		return domain.Product{}, err
	}
	return p, nil
}

func (c *MemoryCatalog) persistLocked() error {
	if c.snapshotPath == "" {
		return nil
	}

	records := make([]productRecord, 0, len(c.order))
	for _, name := range c.order {
		p := c.products[name]
		records = append(records, productRecord{
			Name:      p.Name,
			Stock:     p.Stock,
			Price:     p.Price,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}

	return writeSnapshot(c.snapshotPath, records)
}

// writeSnapshot writes v as JSON via a temp file and rename, so a crash
// mid-write cannot leave a truncated snapshot.
func writeSnapshot(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "snapshot.Marshal", Err: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &domain.PersistenceError{Op: "snapshot.Write", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &domain.PersistenceError{Op: "snapshot.Rename", Err: err}
	}
	return nil
}
