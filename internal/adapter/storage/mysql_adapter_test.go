package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return db
}

func testProductName(t *testing.T) string {
	return "test-" + t.Name() + "-" + time.Now().Format("150405.000")
}

func TestMySQLCatalogUpsertGet(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	catalog := NewMySQLCatalog(db)
	name := testProductName(t)
	defer db.ExecContext(ctx, `DELETE FROM products WHERE name = ?`, name)

	p, err := catalog.Upsert(ctx, name, 10, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 10 || p.Price != 5000 {
		t.Errorf("unexpected product: %+v", p)
	}

	// Upsert again with new figures: last write wins.
	p, err = catalog.Upsert(ctx, name, 3, 7000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 3 || p.Price != 7000 {
		t.Errorf("expected stock 3 price 7000, got %+v", p)
	}
}

func TestMySQLCatalogSetStockNoChange(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	catalog := NewMySQLCatalog(db)
	name := testProductName(t)
	defer db.ExecContext(ctx, `DELETE FROM products WHERE name = ?`, name)

	if _, err := catalog.Upsert(ctx, name, 5, 1000); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// Writing the same value must still succeed, not report NotFound.
	p, err := catalog.SetStock(ctx, name, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 5 {
		t.Errorf("expected stock 5, got %d", p.Stock)
	}

	p, err = catalog.SetStock(ctx, name, -3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 0 {
		t.Errorf("expected clamped stock 0, got %d", p.Stock)
	}
}

func TestMySQLCatalogDeleteNotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	catalog := NewMySQLCatalog(db)
	err := catalog.Delete(context.Background(), "no-such-product")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestMySQLLedgerPendingQuantity(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	product := testProductName(t)
	defer db.ExecContext(ctx, `DELETE FROM reservations WHERE product = ?`, product)

	put := func(id string, qty int, status domain.ReservationStatus) {
		t.Helper()
		err := ledger.Put(ctx, domain.Reservation{
			ID:         id + "-" + product,
			Requester:  "test-buyer",
			Product:    product,
			Quantity:   qty,
			UnitPrice:  1000,
			TotalPrice: int64(qty) * 1000,
			Status:     status,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	put("a", 4, domain.StatusPending)
	put("b", 2, domain.StatusPending)
	put("c", 9, domain.StatusSuccess)

	pending, err := ledger.PendingQuantity(ctx, product)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != 6 {
		t.Errorf("expected pending 6, got %d", pending)
	}
}

func TestMySQLLedgerSettlementRoundTrip(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	ledger := NewMySQLLedger(db)
	product := testProductName(t)
	id := "ticket-" + product
	defer db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)

	r := domain.Reservation{
		ID:         id,
		Requester:  "test-buyer",
		Product:    product,
		Quantity:   2,
		UnitPrice:  5000,
		TotalPrice: 10000,
		Status:     domain.StatusPending,
		CreatedAt:  time.Now().Truncate(time.Second),
	}
	if err := ledger.Put(ctx, r); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := ledger.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.StatusPending || got.ResolvedBy != "" || !got.ResolvedAt.IsZero() {
		t.Errorf("unexpected pending reservation: %+v", got)
	}

	r.Status = domain.StatusSuccess
	r.ResolvedBy = "test-operator"
	r.ResolvedAt = time.Now().Truncate(time.Second)
	if err := ledger.Put(ctx, r); err != nil {
		t.Fatalf("settlement put failed: %v", err)
	}

	got, err = ledger.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.StatusSuccess || got.ResolvedBy != "test-operator" || got.ResolvedAt.IsZero() {
		t.Errorf("unexpected settled reservation: %+v", got)
	}
}
