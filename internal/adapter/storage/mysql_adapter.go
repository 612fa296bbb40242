package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

// Migrate creates the catalog and ledger tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			position   BIGINT NOT NULL AUTO_INCREMENT,
			name       VARCHAR(191) NOT NULL,
			stock      INT NOT NULL,
			price      BIGINT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (name),
			UNIQUE KEY idx_products_position (position)
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id          VARCHAR(64) NOT NULL,
			requester   VARCHAR(64) NOT NULL,
			product     VARCHAR(191) NOT NULL,
			quantity    INT NOT NULL,
			unit_price  BIGINT NOT NULL,
			total_price BIGINT NOT NULL,
			status      VARCHAR(16) NOT NULL,
			created_at  DATETIME NOT NULL,
			resolved_by VARCHAR(64) NULL,
			resolved_at DATETIME NULL,
			PRIMARY KEY (id),
			KEY idx_reservations_product_status (product, status)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// MySQLCatalog is the transactional product store.
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

func (m *MySQLCatalog) Upsert(ctx context.Context, name string, stock int, price int64) (domain.Product, error) {
	p, err := domain.NewProduct(name, stock, price)
	if err != nil {
		return domain.Product{}, err
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO products (name, stock, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE stock = VALUES(stock), price = VALUES(price), updated_at = VALUES(updated_at)`,
		p.Name, p.Stock, p.Price, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("upsert product: %w", err)
	}

	return m.Get(ctx, p.Name)
}

func (m *MySQLCatalog) Get(ctx context.Context, name string) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT name, stock, price, created_at, updated_at
		FROM products WHERE name = ?`, name,
	).Scan(&p.Name, &p.Stock, &p.Price, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLCatalog) List(ctx context.Context) (iter.Seq[domain.Product], error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT name, stock, price, created_at, updated_at
		FROM products ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.Name, &p.Stock, &p.Price, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return func(yield func(domain.Product) bool) {
		for _, p := range products {
			if !yield(p) {
				return
			}
		}
	}, nil
}

func (m *MySQLCatalog) SetStock(ctx context.Context, name string, stock int) (domain.Product, error) {
	return m.update(ctx, name, func(p *domain.Product) error {
		p.Stock = max(0, stock)
		return nil
	})
}

func (m *MySQLCatalog) SetPrice(ctx context.Context, name string, price int64) (domain.Product, error) {
	if price <= 0 {
		return domain.Product{}, &domain.ValidationError{Reason: "price must be greater than zero"}
	}
	return m.update(ctx, name, func(p *domain.Product) error {
		p.Price = price
		return nil
	})
}

func (m *MySQLCatalog) DecrementStock(ctx context.Context, name string, amount int) (domain.Product, error) {
	return m.update(ctx, name, func(p *domain.Product) error {
		p.Stock = max(0, p.Stock-amount)
		return nil
	})
}

func (m *MySQLCatalog) Delete(ctx context.Context, name string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}
	return nil
}

// update applies fn to the current row inside a transaction holding a row
// lock, then writes the result back.
func (m *MySQLCatalog) update(ctx context.Context, name string, fn func(*domain.Product) error) (domain.Product, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var p domain.Product
	err = tx.QueryRowContext(ctx, `
		SELECT name, stock, price, created_at, updated_at
		FROM products WHERE name = ? FOR UPDATE`, name,
	).Scan(&p.Name, &p.Stock, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}

	if err := fn(&p); err != nil {
		return domain.Product{}, err
	}
	p.UpdatedAt = time.Now()

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = ?, price = ?, updated_at = ? WHERE name = ?`,
		p.Stock, p.Price, p.UpdatedAt, p.Name,
	); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// MySQLLedger is the transactional reservation store.
type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

func (m *MySQLLedger) Put(ctx context.Context, r domain.Reservation) error {
	resolvedBy := sql.NullString{String: r.ResolvedBy, Valid: r.ResolvedBy != ""}
	resolvedAt := sql.NullTime{Time: r.ResolvedAt, Valid: !r.ResolvedAt.IsZero()}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO reservations
			(id, requester, product, quantity, unit_price, total_price, status, created_at, resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status), resolved_by = VALUES(resolved_by), resolved_at = VALUES(resolved_at)`,
		r.ID, r.Requester, r.Product, r.Quantity, r.UnitPrice, r.TotalPrice,
		string(r.Status), r.CreatedAt, resolvedBy, resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("put reservation: %w", err)
	}
	return nil
}

func (m *MySQLLedger) Get(ctx context.Context, id string) (domain.Reservation, error) {
	var (
		r          domain.Reservation
		status     string
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)

	err := m.db.QueryRowContext(ctx, `
		SELECT id, requester, product, quantity, unit_price, total_price, status, created_at, resolved_by, resolved_at
		FROM reservations WHERE id = ?`, id,
	).Scan(&r.ID, &r.Requester, &r.Product, &r.Quantity, &r.UnitPrice, &r.TotalPrice,
		&status, &r.CreatedAt, &resolvedBy, &resolvedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, fmt.Errorf("reservation %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("query reservation: %w", err)
	}

	r.Status = domain.ReservationStatus(status)
	if resolvedBy.Valid {
		r.ResolvedBy = resolvedBy.String
	}
	if resolvedAt.Valid {
		r.ResolvedAt = resolvedAt.Time
	}
	return r, nil
}

func (m *MySQLLedger) PendingQuantity(ctx context.Context, product string) (int, error) {
	var total int
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reservations WHERE product = ? AND status = ?`,
		product, string(domain.StatusPending),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum pending quantity: %w", err)
	}
	return total, nil
}

func (m *MySQLLedger) List(ctx context.Context) (iter.Seq[domain.Reservation], error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, requester, product, quantity, unit_price, total_price, status, created_at, resolved_by, resolved_at
		FROM reservations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var (
			r          domain.Reservation
			status     string
			resolvedBy sql.NullString
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Requester, &r.Product, &r.Quantity, &r.UnitPrice, &r.TotalPrice,
			&status, &r.CreatedAt, &resolvedBy, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		r.Status = domain.ReservationStatus(status)
		if resolvedBy.Valid {
			r.ResolvedBy = resolvedBy.String
		}
		if resolvedAt.Valid {
			r.ResolvedAt = resolvedAt.Time
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	return func(yield func(domain.Reservation) bool) {
		for _, r := range reservations {
			if !yield(r) {
				return
			}
		}
	}, nil
}
