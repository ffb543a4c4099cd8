package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartService struct {
	uow    unitOfWork
	logger *zap.Logger
}

func NewCartService(db *sql.DB, logger *zap.Logger, opts Options) *CartService {
	uow := newUnitOfWork(db, logger, opts.MaxRetries)
	return &CartService{uow: uow, logger: uow.logger.Named("cart")}
}

// GetCart returns the user's cart, creating it on first access.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart *models.Cart
	err := s.uow.write(ctx, "get cart", func(tx *sql.Tx) error {
		var err error
		cart, err = ownerCart(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddOrSetItem puts quantity units of the record in the cart. An existing
// line for the same record has its quantity replaced, not increased. The
// stock check here is advisory; checkout checks again under lock.
func (s *CartService) AddOrSetItem(ctx context.Context, userID, recordID int64, quantity int) error {
	if err := models.ValidateCartQuantity(quantity); err != nil {
		return err
	}

	err := s.uow.write(ctx, "add item to cart", func(tx *sql.Tx) error {
		cart, err := ownerCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		record, err := store.GetRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}

		if !record.HasEnoughStock(quantity) {
			return &models.InsufficientStockError{
				RecordID:  record.ID,
				Title:     record.Title,
				Requested: quantity,
				Available: record.Stock,
			}
		}

		return store.UpsertCartItem(ctx, tx, cart.ID, record.ID, quantity)
	})
	if err != nil {
		s.logger.Warn("add item to cart failed",
			zap.Int64("user_id", userID),
			zap.Int64("record_id", recordID),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("cart item set",
		zap.Int64("user_id", userID),
		zap.Int64("record_id", recordID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// RemoveItem is a no-op when the record is not in the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, recordID int64) error {
	var removed bool
	err := s.uow.write(ctx, "remove cart item", func(tx *sql.Tx) error {
		cart, err := store.GetCartByUser(ctx, tx, userID)
		if errors.Is(err, store.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		removed, err = store.DeleteCartItem(ctx, tx, cart.ID, recordID)
		return err
	})
	if err != nil {
		return err
	}

	if removed {
		s.logger.Info("cart item removed", zap.Int64("user_id", userID), zap.Int64("record_id", recordID))
	}
	return nil
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, recordID int64, quantity int) error {
	if err := models.ValidateCartQuantity(quantity); err != nil {
		return err
	}

	err := s.uow.write(ctx, "update cart item", func(tx *sql.Tx) error {
		cart, err := store.GetCartByUser(ctx, tx, userID)
		if errors.Is(err, store.ErrCartNotFound) {
			return fmt.Errorf("record %d: %w", recordID, models.ErrItemNotFound)
		}
		if err != nil {
			return err
		}
		return store.UpdateCartItemQuantity(ctx, tx, cart.ID, recordID, quantity)
	})
	if err != nil {
		return err
	}

	s.logger.Info("cart item quantity updated",
		zap.Int64("user_id", userID),
		zap.Int64("record_id", recordID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// Clear empties the cart; clearing an empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	var removed int64
	err := s.uow.write(ctx, "clear cart", func(tx *sql.Tx) error {
		cart, err := ownerCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		removed, err = store.ClearCart(ctx, tx, cart.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("cart cleared", zap.Int64("user_id", userID), zap.Int64("removed", removed))
	return nil
}

// Total is zero for a user without a cart.
func (s *CartService) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	cart, err := s.existingCart(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.Total(), nil
}

func (s *CartService) ItemCount(ctx context.Context, userID int64) (int, error) {
	cart, err := s.existingCart(ctx, userID)
	if err != nil {
		return 0, err
	}
	return cart.ItemCount(), nil
}

// ownerCart resolves the user before touching carts so an unknown id fails
// with ErrUserNotFound rather than creating anything.
func ownerCart(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error) {
	if _, err := store.GetUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	return store.GetOrCreateCart(ctx, tx, userID)
}

// existingCart returns nil without error when the user has no cart yet.
func (s *CartService) existingCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart *models.Cart
	err := s.uow.read(ctx, "read cart", func(tx *sql.Tx) error {
		var err error
		cart, err = store.GetCartByUser(ctx, tx, userID)
		if errors.Is(err, store.ErrCartNotFound) {
			cart, err = nil, nil
		}
		return err
	})
	return cart, err
}

// Validate drops lines whose record has disappeared or whose quantity is out
// of range, and reports how many were removed.
func (s *CartService) Validate(ctx context.Context, userID int64) (int, error) {
	var removed int64
	err := s.uow.write(ctx, "validate cart", func(tx *sql.Tx) error {
		cart, err := store.GetCartByUser(ctx, tx, userID)
		if errors.Is(err, store.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var invalid []int64
		for _, item := range cart.Items {
			if !item.Valid() {
				invalid = append(invalid, item.ID)
			}
		}
		if len(invalid) == 0 {
			return nil
		}

		removed, err = store.DeleteCartItemsByID(ctx, tx, cart.ID, invalid)
		return err
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("invalid cart items removed", zap.Int64("user_id", userID), zap.Int64("removed", removed))
	}
	return int(removed), nil
}

// PurgeRecord removes the record from every cart and reports how many carts
// were touched.
func (s *CartService) PurgeRecord(ctx context.Context, recordID int64) (int, error) {
	var carts int64
	err := s.uow.write(ctx, "purge record from carts", func(tx *sql.Tx) error {
		var err error
		carts, err = store.DeleteCartItemsForRecord(ctx, tx, recordID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("record purged from carts", zap.Int64("record_id", recordID), zap.Int64("carts", carts))
	return int(carts), nil
}
