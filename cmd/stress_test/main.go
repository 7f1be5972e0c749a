// Stress-tests the reservation engine against the in-memory store: many
// concurrent orders racing for the same limited stock, expecting exactly
// stock-many winners and zero oversell.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/adapter/storage"
	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	// Seed one event with one listed product.
	eventID, err := store.CreateEvent(ctx, domain.Event{
		Name:   "stress-test-event",
		Date:   time.Now(),
		Status: domain.EventStatusActive,
	})
	if err != nil {
		log.Fatalf("failed to create event: %v", err)
	}

	productID, err := store.CreateProduct(ctx, domain.CatalogProduct{
		Code:         "STRESS-001",
		Name:         "stress-test-item",
		DefaultPrice: decimal.NewFromFloat(9.90),
		Active:       true,
	})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	itemID, err := store.AddItem(ctx, domain.InventoryItem{
		EventID:          eventID,
		CatalogProductID: productID,
		Price:            decimal.NewFromFloat(9.90),
		InitialStock:     initialStock,
	})
	if err != nil {
		log.Fatalf("failed to add inventory: %v", err)
	}

	orderService := service.NewOrderService(store, nil, nil)

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, service.PlaceOrderInput{
				EventID: eventID,
				Lines:   []domain.LineInput{{InventoryItemID: itemID, Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	// Verify derived stock is fully committed, never oversold
	listings, err := store.ListForEvent(ctx, eventID)
	if err != nil {
		log.Fatalf("failed to list inventory: %v", err)
	}
	fmt.Printf("Final Available Stock: %d\n", listings[0].AvailableStock)

	if listings[0].AvailableStock == 0 {
		fmt.Println("PASS: Stock fully committed with no oversell")
	} else {
		fmt.Printf("FAIL: Expected available stock 0, got %d\n", listings[0].AvailableStock)
	}
}
