package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	OrderDate       time.Time       `json:"order_date"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem freezes the price paid; it is never re-read from the catalog.
type OrderItem struct {
	ID       int64           `json:"id"`
	OrderID  int64           `json:"order_id"`
	RecordID *int64          `json:"record_id"`
	Title    string          `json:"title"`
	Artist   string          `json:"artist"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending
}

func (o *Order) OwnedBy(userID int64) bool {
	return o.UserID == userID
}

// ItemsTotal sums the frozen line prices.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Actor is the authenticated caller as handed over by the identity layer.
type Actor struct {
	UserID int64
	Admin  bool
}

func (a Actor) CanAccess(o *Order) bool {
	return a.Admin || o.OwnedBy(a.UserID)
}
