package store_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/safar/vinyl-store/internal/database"
	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/store"
	"github.com/safar/vinyl-store/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertOrder(t *testing.T, q database.Querier, userID int64, record *models.Record, quantity int) *models.Order {
	t.Helper()
	recordID := record.ID
	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		Total:           record.Price.Mul(decimal.NewFromInt(int64(quantity))),
		ShippingAddress: "1 Test Street",
		PaymentMethod:   "card",
		Items: []models.OrderItem{{
			RecordID: &recordID,
			Title:    record.Title,
			Artist:   record.Artist,
			Quantity: quantity,
			Price:    record.Price,
		}},
	}
	require.NoError(t, store.InsertOrder(context.Background(), q, order))
	return order
}

func TestInsertAndGetOrder(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, db)
	other := testutil.CreateUser(t, db)
	record := testutil.CreateRecord(t, db, "29.99", 10)

	order := insertOrder(t, db, user.ID, record, 2)
	assert.NotZero(t, order.ID)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.NotZero(t, order.Items[0].ID)

	got, err := store.GetOrder(ctx, db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Equal(t, "59.98", got.Total.StringFixed(2))
	require.Len(t, got.Items, 1)
	assert.Equal(t, record.Title, got.Items[0].Title)
	assert.True(t, got.Total.Equal(got.ItemsTotal()))

	_, err = store.GetOrderForUser(ctx, db, order.ID, other.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	_, err = store.GetOrder(ctx, db, order.ID+1000)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestOrderItemsSurviveRecordDeletion(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, db)
	record := testutil.CreateRecord(t, db, "12.50", 5)
	order := insertOrder(t, db, user.ID, record, 1)

	require.NoError(t, store.DeleteRecord(ctx, db, record.ID))

	got, err := store.GetOrder(ctx, db, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Items[0].RecordID)
	assert.Equal(t, "12.50", got.Items[0].Price.StringFixed(2))
}

func TestUpdateAndDeleteOrder(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, db)
	record := testutil.CreateRecord(t, db, "10.00", 5)
	order := insertOrder(t, db, user.ID, record, 1)

	require.NoError(t, store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusShipped))

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		locked, err := store.LockOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, models.OrderStatusShipped, locked.Status)
		assert.Equal(t, 2, locked.Version)
		assert.Len(t, locked.Items, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteOrder(ctx, db, order.ID))
	assert.ErrorIs(t, store.DeleteOrder(ctx, db, order.ID), models.ErrOrderNotFound)
	assert.ErrorIs(t, store.UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusPending), models.ErrOrderNotFound)
}

func TestListOrdersForUser(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, db)
	other := testutil.CreateUser(t, db)
	record := testutil.CreateRecord(t, db, "10.00", 100)

	var ids []int64
	for i := 0; i < 4; i++ {
		ids = append(ids, insertOrder(t, db, user.ID, record, 1).ID)
	}
	insertOrder(t, db, other.ID, record, 1)

	recent, err := store.ListOrdersForUser(ctx, db, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[3], recent[0].ID)
	assert.Equal(t, ids[2], recent[1].ID)

	all, err := store.ListOrdersForUser(ctx, db, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	everyone, err := store.ListAllOrders(ctx, db)
	require.NoError(t, err)
	assert.Len(t, everyone, 5)
	for _, o := range everyone {
		assert.NotEmpty(t, o.Items)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, db)
	record := testutil.CreateRecord(t, db, "10.00", 100)

	for i := 0; i < 15; i++ {
		insertOrder(t, db, user.ID, record, 1)
	}

	page1, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	require.NoError(t, err)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)
	assert.Len(t, page1.Items, 10)

	page2, err := store.ListOrdersCursor(ctx, db, user.ID, page1.NextCursor, 10)
	require.NoError(t, err)
	assert.False(t, page2.HasMore)
	assert.Empty(t, page2.NextCursor)
	assert.Len(t, page2.Items, 5)

	seen := map[int64]bool{}
	for _, o := range append(page1.Items, page2.Items...) {
		assert.False(t, seen[o.ID], "order %d listed twice", o.ID)
		seen[o.ID] = true
	}

	_, err = store.ListOrdersCursor(ctx, db, user.ID, "not-a-cursor!", 10)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
