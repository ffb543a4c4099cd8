package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/service"
	"github.com/safar/vinyl-store/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryAdjustments(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	record := testutil.CreateRecord(t, s.db, "10.00", 10)

	r, err := s.inventory.AddStock(ctx, record.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, r.Stock)

	r, err = s.inventory.ReduceStock(ctx, record.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 11, r.Stock)

	r, err = s.inventory.SetStock(ctx, record.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Stock)

	_, err = s.inventory.ReduceStock(ctx, record.ID, 3)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = s.inventory.SetStock(ctx, record.ID, -1)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = s.inventory.AddStock(ctx, record.ID+1000, 1)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	r, err = s.inventory.UpdateLowStockThreshold(ctx, record.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.LowStockThreshold)
	assert.False(t, r.IsLowStock())

	_, err = s.inventory.UpdateLowStockThreshold(ctx, record.ID, -1)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	stored, err := s.inventory.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
	assert.Equal(t, 1, stored.LowStockThreshold)
}

func TestConcurrentAddStockLosesNoUpdates(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	record := testutil.CreateRecord(t, s.db, "10.00", 0)

	workers := 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.inventory.AddStock(ctx, record.ID, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	added := 0
	for err := range errs {
		if err == nil {
			added++
			continue
		}
		assert.ErrorIs(t, err, models.ErrConflict)
	}

	after, err := s.inventory.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, added, after.Stock, "every reported success must be reflected in stock")
}

func TestCheckoutRacesStockAdjustments(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	record := testutil.CreateRecord(t, s.db, "25.00", 40)

	shoppers := 8
	users := make([]int64, shoppers)
	for i := range users {
		users[i] = testutil.CreateUser(t, s.db).ID
		require.NoError(t, s.carts.AddOrSetItem(ctx, users[i], record.ID, 5))
	}

	reductions := 12
	var wg sync.WaitGroup
	checkoutErrs := make(chan error, shoppers)
	reduceErrs := make(chan error, reductions)
	for _, userID := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := s.orders.CreateOrder(ctx, userID, "1 Main Street", "card")
			checkoutErrs <- err
		}(userID)
	}
	for i := 0; i < reductions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.inventory.ReduceStock(ctx, record.ID, 1)
			reduceErrs <- err
		}()
	}
	wg.Wait()
	close(checkoutErrs)
	close(reduceErrs)

	checkedOut := 0
	for err := range checkoutErrs {
		if err == nil {
			checkedOut++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInsufficientStock)
	}
	reduced := 0
	for err := range reduceErrs {
		if err == nil {
			reduced++
			continue
		}
		if !errors.Is(err, models.ErrInsufficientStock) {
			assert.ErrorIs(t, err, models.ErrConflict)
		}
	}

	after, err := s.inventory.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Stock, 0)
	assert.Equal(t, 40-5*checkedOut-reduced, after.Stock)

	var orders int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	assert.Equal(t, checkedOut, orders)
}

func TestBatchSetStock(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	a := testutil.CreateRecord(t, s.db, "10.00", 1)
	b := testutil.CreateRecord(t, s.db, "10.00", 2)

	updated, err := s.inventory.BatchSetStock(ctx, map[int64]int{b.ID: 20, a.ID: 10})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, a.ID, updated[0].ID)
	assert.Equal(t, 10, updated[0].Stock)

	_, err = s.inventory.BatchSetStock(ctx, map[int64]int{a.ID: 5, b.ID + 1000: 5})
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	_, err = s.inventory.BatchSetStock(ctx, map[int64]int{a.ID: 5, b.ID: -5})
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	r, err := s.inventory.GetRecord(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Stock, "failed batches leave stock untouched")
}

func TestInventoryQueries(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	testutil.CreateRecord(t, s.db, "10.00", 40)
	low := testutil.CreateRecord(t, s.db, "10.00", 4)
	empty := testutil.CreateRecord(t, s.db, "10.00", 0)

	lowRecords, err := s.inventory.LowStockRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, lowRecords, 2)

	out, err := s.inventory.OutOfStockRecords(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, empty.ID, out[0].ID)

	restock, err := s.inventory.RecordsNeedingRestock(ctx)
	require.NoError(t, err)
	require.Len(t, restock, 2)
	assert.Equal(t, empty.ID, restock[0].ID)
	assert.Equal(t, low.ID, restock[1].ID)

	count, err := s.inventory.LowStockCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	summary, err := s.inventory.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.LowStockCount)
	assert.Equal(t, int64(1), summary.OutOfStockCount)
	assert.Equal(t, int64(44), summary.TotalStock)
	assert.Len(t, summary.NeedingRestock, 2)
}

func TestCatalogRecords(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	created, err := s.inventory.CreateRecord(ctx, models.Record{
		Title:  "Moanin'",
		Artist: "Art Blakey",
		Price:  decimal.RequireFromString("18.00"),
		Stock:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLowStockThreshold, created.LowStockThreshold)

	_, err = s.inventory.CreateRecord(ctx, models.Record{Artist: "Nobody"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	page, err := s.inventory.ListRecords(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestDeleteRecordPurgesCarts(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	record := testutil.CreateRecord(t, s.db, "10.00", 5)
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, record.ID, 1))

	require.NoError(t, s.inventory.DeleteRecord(ctx, record.ID))

	cart, err := s.carts.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = s.inventory.GetRecord(ctx, record.ID)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	assert.ErrorIs(t, s.inventory.DeleteRecord(ctx, record.ID), models.ErrRecordNotFound)
}
