package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRecordNotFound    = errors.New("record not found")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cannot create order with empty cart")
	ErrInvalidOrderState = errors.New("invalid order state")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("concurrent modification")
	ErrStorage           = errors.New("storage error")
)

// InsufficientStockError names the record that could not cover a request.
type InsufficientStockError struct {
	RecordID  int64
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("insufficient stock for record %d (%s): requested %d, available %d",
			e.RecordID, e.Title, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for record %d: requested %d, available %d",
		e.RecordID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StorageError wraps an unexpected failure from the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidQuantity
	KindInvalidArgument
	KindRecordNotFound
	KindItemNotFound
	KindOrderNotFound
	KindUserNotFound
	KindInsufficientStock
	KindEmptyCart
	KindInvalidOrderState
	KindUnauthorized
	KindConflict
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:           "Unknown",
	KindInvalidQuantity:   "InvalidQuantity",
	KindInvalidArgument:   "InvalidArgument",
	KindRecordNotFound:    "RecordNotFound",
	KindItemNotFound:      "ItemNotFound",
	KindOrderNotFound:     "OrderNotFound",
	KindUserNotFound:      "UserNotFound",
	KindInsufficientStock: "InsufficientStock",
	KindEmptyCart:         "EmptyCart",
	KindInvalidOrderState: "InvalidOrderState",
	KindUnauthorized:      "Unauthorized",
	KindConflict:          "Conflict",
	KindStorage:           "StorageError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindOrder = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrRecordNotFound, KindRecordNotFound},
	{ErrItemNotFound, KindItemNotFound},
	{ErrOrderNotFound, KindOrderNotFound},
	{ErrUserNotFound, KindUserNotFound},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrEmptyCart, KindEmptyCart},
	{ErrInvalidOrderState, KindInvalidOrderState},
	{ErrUnauthorized, KindUnauthorized},
	{ErrConflict, KindConflict},
	{ErrStorage, KindStorage},
}

// KindOf reports which error kind err belongs to.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsDomainError reports whether err carries one of the domain kinds rather
// than an unexpected storage failure.
func IsDomainError(err error) bool {
	k := KindOf(err)
	return k != KindUnknown && k != KindStorage
}
