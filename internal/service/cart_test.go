package service_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/service"
	"github.com/safar/vinyl-store/internal/store"
	"github.com/safar/vinyl-store/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type services struct {
	db        *sql.DB
	carts     *service.CartService
	orders    *service.OrderService
	inventory *service.InventoryService
}

func newServices(t *testing.T, opts service.Options) services {
	t.Helper()
	db := testutil.StartPostgres(t)
	logger := zaptest.NewLogger(t)
	return services{
		db:        db,
		carts:     service.NewCartService(db, logger, opts),
		orders:    service.NewOrderService(db, logger, opts),
		inventory: service.NewInventoryService(db, logger, opts),
	}
}

func TestAddOrSetItemReplacesQuantity(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	record := testutil.CreateRecord(t, s.db, "29.99", 10)

	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, record.ID, 2))
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, record.ID, 3))

	cart, err := s.carts.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	count, err := s.carts.ItemCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	total, err := s.carts.Total(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "89.97", total.StringFixed(2))
}

func TestCartUnknownUser(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	record := testutil.CreateRecord(t, s.db, "10.00", 5)
	missing := user.ID + 1000

	_, err := s.carts.GetCart(ctx, missing)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	err = s.carts.AddOrSetItem(ctx, missing, record.ID, 1)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	err = s.carts.Clear(ctx, missing)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	var carts int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM carts WHERE user_id = $1`, missing).Scan(&carts))
	assert.Zero(t, carts)
}

func TestAddOrSetItemQuantityBounds(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	record := testutil.CreateRecord(t, s.db, "10.00", 500)

	for _, q := range []int{0, -1, 100} {
		err := s.carts.AddOrSetItem(ctx, user.ID, record.ID, q)
		assert.ErrorIs(t, err, models.ErrInvalidQuantity, "quantity %d", q)
	}
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, record.ID, 99))

	err := s.carts.UpdateItemQuantity(ctx, user.ID, record.ID, 100)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	count, err := s.carts.ItemCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, count)
}

func TestAddOrSetItemChecksStock(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	record := testutil.CreateRecord(t, s.db, "10.00", 1)

	err := s.carts.AddOrSetItem(ctx, user.ID, record.ID, 2)
	require.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, models.KindInsufficientStock, models.KindOf(err))

	err = s.carts.AddOrSetItem(ctx, user.ID, record.ID+1000, 1)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	cart, err := s.carts.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestRemoveAndUpdateItem(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	a := testutil.CreateRecord(t, s.db, "10.00", 10)
	b := testutil.CreateRecord(t, s.db, "20.00", 10)

	require.NoError(t, s.carts.RemoveItem(ctx, user.ID, a.ID), "removing from a missing cart is a no-op")

	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, a.ID, 1))
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, b.ID, 1))
	require.NoError(t, s.carts.UpdateItemQuantity(ctx, user.ID, b.ID, 4))
	require.NoError(t, s.carts.RemoveItem(ctx, user.ID, a.ID))
	require.NoError(t, s.carts.RemoveItem(ctx, user.ID, a.ID))

	err := s.carts.UpdateItemQuantity(ctx, user.ID, a.ID, 2)
	assert.ErrorIs(t, err, models.ErrItemNotFound)

	total, err := s.carts.Total(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "80.00", total.StringFixed(2))
}

func TestClearIsIdempotent(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	record := testutil.CreateRecord(t, s.db, "10.00", 10)
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, record.ID, 2))

	require.NoError(t, s.carts.Clear(ctx, user.ID))
	require.NoError(t, s.carts.Clear(ctx, user.ID))

	count, err := s.carts.ItemCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	total, err := s.carts.Total(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestTotalsWithoutCart(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)

	total, err := s.carts.Total(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = store.GetCartByUser(ctx, s.db, user.ID)
	assert.ErrorIs(t, err, store.ErrCartNotFound, "reading totals must not create a cart")
}

func TestValidateDropsDeletedRecords(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	user := testutil.CreateUser(t, s.db)
	kept := testutil.CreateRecord(t, s.db, "10.00", 10)
	gone := testutil.CreateRecord(t, s.db, "20.00", 10)
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, kept.ID, 1))
	require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, gone.ID, 1))

	require.NoError(t, store.DeleteRecord(ctx, s.db, gone.ID))

	removed, err := s.carts.Validate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = s.carts.Validate(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, removed)

	cart, err := s.carts.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, kept.ID, *cart.Items[0].RecordID)
}

func TestPurgeRecord(t *testing.T) {
	s := newServices(t, service.DefaultOptions())
	ctx := context.Background()

	record := testutil.CreateRecord(t, s.db, "10.00", 10)
	other := testutil.CreateRecord(t, s.db, "10.00", 10)
	var users []int64
	for i := 0; i < 2; i++ {
		user := testutil.CreateUser(t, s.db)
		users = append(users, user.ID)
		require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, record.ID, 1))
		require.NoError(t, s.carts.AddOrSetItem(ctx, user.ID, other.ID, 1))
	}

	carts, err := s.carts.PurgeRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, carts)

	for _, id := range users {
		count, err := s.carts.ItemCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}
