package models

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStockAdjustments(t *testing.T) {
	r := &Record{ID: 1, Title: "Kind of Blue", Stock: 10}

	require.NoError(t, r.AddStock(5))
	assert.Equal(t, 15, r.Stock)

	require.NoError(t, r.ReduceStock(15))
	assert.Equal(t, 0, r.Stock)
	assert.True(t, r.IsOutOfStock())

	require.NoError(t, r.SetStock(7))
	assert.Equal(t, 7, r.Stock)

	require.NoError(t, r.AddStock(0))
	assert.Equal(t, 7, r.Stock)
}

func TestRecordRejectsNegativeQuantities(t *testing.T) {
	r := &Record{Stock: 3}

	assert.ErrorIs(t, r.SetStock(-1), ErrInvalidQuantity)
	assert.ErrorIs(t, r.AddStock(-1), ErrInvalidQuantity)
	assert.ErrorIs(t, r.ReduceStock(-1), ErrInvalidQuantity)
	assert.Equal(t, 3, r.Stock)
}

func TestReduceStockInsufficient(t *testing.T) {
	r := &Record{ID: 9, Title: "Blue Train", Stock: 2}

	err := r.ReduceStock(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(9), stockErr.RecordID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, r.Stock, "stock must be untouched on failure")
}

func TestRecordStockPredicates(t *testing.T) {
	tests := []struct {
		name      string
		stock     int
		threshold int
		low       bool
		out       bool
	}{
		{"plenty", 20, 5, false, false},
		{"at threshold", 5, 5, true, false},
		{"below threshold", 2, 5, true, false},
		{"empty", 0, 5, true, true},
		{"zero threshold", 0, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{Stock: tt.stock, LowStockThreshold: tt.threshold}
			assert.Equal(t, tt.low, r.IsLowStock())
			assert.Equal(t, tt.out, r.IsOutOfStock())
		})
	}

	r := &Record{Stock: 4}
	assert.True(t, r.HasEnoughStock(4))
	assert.False(t, r.HasEnoughStock(5))
}

func TestUpdateLowStockThreshold(t *testing.T) {
	r := &Record{LowStockThreshold: DefaultLowStockThreshold}

	require.NoError(t, r.UpdateLowStockThreshold(0))
	assert.Equal(t, 0, r.LowStockThreshold)

	assert.ErrorIs(t, r.UpdateLowStockThreshold(-2), ErrInvalidArgument)
	assert.Equal(t, 0, r.LowStockThreshold)
}

func TestRecordValidate(t *testing.T) {
	valid := Record{Title: "A Love Supreme", Artist: "John Coltrane", Price: decimal.RequireFromString("24.99")}
	require.NoError(t, valid.Validate())

	noTitle := valid
	noTitle.Title = ""
	assert.ErrorIs(t, noTitle.Validate(), ErrInvalidArgument)

	negativePrice := valid
	negativePrice.Price = decimal.NewFromInt(-1)
	assert.ErrorIs(t, negativePrice.Validate(), ErrInvalidArgument)

	negativeStock := valid
	negativeStock.Stock = -1
	assert.ErrorIs(t, negativeStock.Validate(), ErrInvalidQuantity)
}

func TestStockNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := &Record{Stock: 10}

	for i := 0; i < 1000; i++ {
		q := rng.Intn(30) - 5
		before := r.Stock
		var err error
		switch rng.Intn(3) {
		case 0:
			err = r.AddStock(q)
		case 1:
			err = r.ReduceStock(q)
		case 2:
			err = r.SetStock(q)
		}
		if err != nil {
			require.Equal(t, before, r.Stock, "failed op %d changed stock", i)
		}
		require.GreaterOrEqual(t, r.Stock, 0)
	}
}
