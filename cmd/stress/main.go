package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CrLims/discord-custom-product/internal/adapter/storage"
	"github.com/CrLims/discord-custom-product/internal/core/domain"
	"github.com/CrLims/discord-custom-product/internal/core/service"
)

// Stress driver for the reservation engine: fires concurrent purchase
// requests at a single product and verifies the pending total never
// exceeds stock.
func main() {
	var (
		buyers   = flag.Int("buyers", 1000, "number of concurrent buyers")
		stock    = flag.Int("stock", 100, "initial stock")
		quantity = flag.Int("quantity", 1, "quantity per request")
	)
	flag.Parse()

	logger := slog.New(slog.DiscardHandler)

	catalog := storage.NewMemoryCatalog()
	ledger := storage.NewMemoryLedger()
	engine := service.NewEngine(catalog, ledger, nil, nil, []string{"operator"}, logger)

	ctx := context.Background()
	if _, err := engine.UpsertProduct(ctx, "stress-product", *stock, 1000); err != nil {
		fmt.Println("setup failed:", err)
		return
	}

	var (
		reserved int64
		rejected int64
		failed   int64
		wg       sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < *buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			id := uuid.New().String()
			_, err := engine.RequestReservation(ctx, id, fmt.Sprintf("buyer-%d", n), "stress-product", *quantity)
			switch {
			case err == nil:
				atomic.AddInt64(&reserved, 1)
			case isInsufficient(err):
				atomic.AddInt64(&rejected, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	av, err := engine.Availability(ctx, "stress-product")
	if err != nil {
		fmt.Println("availability check failed:", err)
		return
	}

	fmt.Printf("buyers:    %d\n", *buyers)
	fmt.Printf("reserved:  %d\n", reserved)
	fmt.Printf("rejected:  %d\n", rejected)
	fmt.Printf("failed:    %d\n", failed)
	fmt.Printf("elapsed:   %s\n", elapsed)
	fmt.Printf("stock=%d pending=%d available=%d\n", av.Stock, av.Pending, av.Available)

	if av.Pending > av.Stock {
		fmt.Println("OVERSOLD: pending exceeds stock")
	} else {
		fmt.Println("OK: no oversell")
	}
}

func isInsufficient(err error) bool {
	var insufficient *domain.InsufficientStockError
	return errors.As(err, &insufficient)
}
