package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultLowStockThreshold = 5

type Record struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	Artist            string          `json:"artist"`
	Album             string          `json:"album,omitempty"`
	Genre             string          `json:"genre,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

func (r *Record) SetStock(quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: stock quantity cannot be negative", ErrInvalidQuantity)
	}
	r.Stock = quantity
	return nil
}

func (r *Record) AddStock(quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: cannot add negative stock quantity", ErrInvalidQuantity)
	}
	r.Stock += quantity
	return nil
}

// ReduceStock leaves Stock untouched when it fails.
func (r *Record) ReduceStock(quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: cannot reduce negative stock quantity", ErrInvalidQuantity)
	}
	if r.Stock < quantity {
		return &InsufficientStockError{
			RecordID:  r.ID,
			Title:     r.Title,
			Requested: quantity,
			Available: r.Stock,
		}
	}
	r.Stock -= quantity
	return nil
}

func (r *Record) HasEnoughStock(quantity int) bool {
	return r.Stock >= quantity
}

func (r *Record) IsLowStock() bool {
	return r.Stock <= r.LowStockThreshold
}

func (r *Record) IsOutOfStock() bool {
	return r.Stock == 0
}

func (r *Record) UpdateLowStockThreshold(threshold int) error {
	if threshold < 0 {
		return fmt.Errorf("%w: low stock threshold cannot be negative", ErrInvalidArgument)
	}
	r.LowStockThreshold = threshold
	return nil
}

// Validate checks the catalog fields a record needs before it is stored.
func (r *Record) Validate() error {
	switch {
	case r.Title == "":
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidArgument)
	case r.Artist == "":
		return fmt.Errorf("%w: artist cannot be empty", ErrInvalidArgument)
	case r.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidArgument)
	case r.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidQuantity)
	case r.LowStockThreshold < 0:
		return fmt.Errorf("%w: low stock threshold cannot be negative", ErrInvalidArgument)
	}
	return nil
}
