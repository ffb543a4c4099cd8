package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinCartItemQuantity = 1
	MaxCartItemQuantity = 99
)

// Cart holds a user's pending selection. Items are loaded by cart id; they
// carry no pointer back to the cart.
type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID       int64   `json:"id"`
	CartID   int64   `json:"cart_id"`
	RecordID *int64  `json:"record_id"`
	Record   *Record `json:"record,omitempty"`
	Quantity int     `json:"quantity"`
}

// Subtotal is zero when the record is gone.
func (i CartItem) Subtotal() decimal.Decimal {
	if i.Record == nil {
		return decimal.Zero
	}
	return i.Record.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Valid reports whether the item still points at a record and holds an
// in-range quantity.
func (i CartItem) Valid() bool {
	return i.RecordID != nil && i.Record != nil && ValidateCartQuantity(i.Quantity) == nil
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Find returns the item for recordID, if any.
func (c *Cart) Find(recordID int64) (*CartItem, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Items {
		if c.Items[i].RecordID != nil && *c.Items[i].RecordID == recordID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

func ValidateCartQuantity(quantity int) error {
	if quantity < MinCartItemQuantity {
		return fmt.Errorf("%w: quantity must be at least %d", ErrInvalidQuantity, MinCartItemQuantity)
	}
	if quantity > MaxCartItemQuantity {
		return fmt.Errorf("%w: quantity cannot exceed %d", ErrInvalidQuantity, MaxCartItemQuantity)
	}
	return nil
}
