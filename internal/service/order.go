package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/store"
	"go.uber.org/zap"
)

type OrderService struct {
	uow    unitOfWork
	logger *zap.Logger
	opts   Options
}

func NewOrderService(db *sql.DB, logger *zap.Logger, opts Options) *OrderService {
	uow := newUnitOfWork(db, logger, opts.MaxRetries)
	if opts.RecentOrdersLimit < 1 {
		opts.RecentOrdersLimit = DefaultOptions().RecentOrdersLimit
	}
	return &OrderService{uow: uow, logger: uow.logger.Named("order"), opts: opts}
}

// CreateOrder checks out the user's cart and returns the new order id.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, shippingAddress, paymentMethod string) (int64, error) {
	order, err := s.Checkout(ctx, userID, shippingAddress, paymentMethod)
	if err != nil {
		return 0, err
	}
	return order.ID, nil
}

// Checkout turns the user's stored cart into a PENDING order. Within one
// transaction it locks the cart and every record in it, re-checks stock,
// decrements it, snapshots prices into order items, saves the order and
// empties the cart. Any failure rolls all of it back. An empty cart is
// reported before missing shipping details.
func (s *OrderService) Checkout(ctx context.Context, userID int64, shippingAddress, paymentMethod string) (*models.Order, error) {
	shippingAddress = strings.TrimSpace(shippingAddress)
	paymentMethod = strings.TrimSpace(paymentMethod)

	var order *models.Order
	err := s.uow.write(ctx, "create order", func(tx *sql.Tx) error {
		// The cart lock serializes this checkout against a second checkout or
		// any edit of the same cart; whatever the caller displayed may be stale.
		cart, err := store.LockCartByUser(ctx, tx, userID)
		if errors.Is(err, store.ErrCartNotFound) {
			if _, err := store.GetUser(ctx, tx, userID); err != nil {
				return err
			}
			return models.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return models.ErrEmptyCart
		}

		if shippingAddress == "" {
			return fmt.Errorf("%w: shipping address is required", models.ErrInvalidArgument)
		}
		if paymentMethod == "" {
			return fmt.Errorf("%w: payment method is required", models.ErrInvalidArgument)
		}

		if err := s.reserveStock(ctx, tx, cart); err != nil {
			return err
		}

		order = &models.Order{
			UserID:          userID,
			Status:          models.OrderStatusPending,
			ShippingAddress: shippingAddress,
			PaymentMethod:   paymentMethod,
			Items:           make([]models.OrderItem, 0, len(cart.Items)),
		}
		for _, item := range cart.Items {
			order.Items = append(order.Items, models.OrderItem{
				RecordID: item.RecordID,
				Title:    item.Record.Title,
				Artist:   item.Record.Artist,
				Quantity: item.Quantity,
				Price:    item.Record.Price,
			})
		}
		// Lines carry the locked prices, so this equals the cart total.
		order.Total = order.ItemsTotal()

		if err := store.InsertOrder(ctx, tx, order); err != nil {
			return err
		}

		_, err = store.ClearCart(ctx, tx, cart.ID)
		return err
	})
	if err != nil {
		s.logger.Warn("checkout failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	return order, nil
}

// reserveStock locks the cart's records, refreshes the cart lines with the
// locked rows and decrements stock for every line, or fails without touching
// any of them.
func (s *OrderService) reserveStock(ctx context.Context, tx *sql.Tx, cart *models.Cart) error {
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.RecordID == nil {
			return fmt.Errorf("cart item %d: %w", item.ID, models.ErrRecordNotFound)
		}
		if err := models.ValidateCartQuantity(item.Quantity); err != nil {
			return fmt.Errorf("cart item %d: %w", item.ID, err)
		}
		ids = append(ids, *item.RecordID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked, err := store.LockRecords(ctx, tx, ids)
	if err != nil {
		return err
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		record, ok := locked[*item.RecordID]
		if !ok {
			return fmt.Errorf("record %d: %w", *item.RecordID, models.ErrRecordNotFound)
		}
		item.Record = record
		if !record.HasEnoughStock(item.Quantity) {
			return &models.InsufficientStockError{
				RecordID:  record.ID,
				Title:     record.Title,
				Requested: item.Quantity,
				Available: record.Stock,
			}
		}
	}

	for _, item := range cart.Items {
		if err := store.DecrementStock(ctx, tx, item.Record.ID, item.Quantity); err != nil {
			var stockErr *models.InsufficientStockError
			if errors.As(err, &stockErr) {
				stockErr.Title = item.Record.Title
				stockErr.Available = item.Record.Stock
			}
			return err
		}
	}

	return nil
}

// Cancel moves a PENDING order to CANCELLED. Administrators may cancel any
// order, everyone else only their own.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, actor models.Actor) error {
	var restocked int
	err := s.uow.write(ctx, "cancel order", func(tx *sql.Tx) error {
		restocked = 0
		order, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !actor.CanAccess(order) {
			return fmt.Errorf("%w: order %d belongs to another user", models.ErrUnauthorized, orderID)
		}
		if !order.CanCancel() {
			return fmt.Errorf("%w: order %d is %s, only %s orders can be cancelled",
				models.ErrInvalidOrderState, orderID, order.Status, models.OrderStatusPending)
		}

		if err := store.UpdateOrderStatus(ctx, tx, orderID, models.OrderStatusCancelled); err != nil {
			return err
		}

		if !s.opts.RestockOnCancel {
			return nil
		}
		for _, item := range order.Items {
			if item.RecordID == nil {
				continue
			}
			err := store.IncrementStock(ctx, tx, *item.RecordID, item.Quantity)
			if errors.Is(err, models.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			restocked += item.Quantity
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("cancel order failed",
			zap.Int64("order_id", orderID),
			zap.Int64("actor_id", actor.UserID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("order cancelled",
		zap.Int64("order_id", orderID),
		zap.Int64("actor_id", actor.UserID),
		zap.Bool("admin", actor.Admin),
		zap.Int("restocked_units", restocked),
	)
	return nil
}

// UpdateOrderStatus overwrites the status without any transition check.
// It is meant for administrators moving orders through shipping.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return fmt.Errorf("%w: status cannot be empty", models.ErrInvalidArgument)
	}

	err := s.uow.write(ctx, "update order status", func(tx *sql.Tx) error {
		return store.UpdateOrderStatus(ctx, tx, orderID, status)
	})
	if err != nil {
		return err
	}

	s.logger.Info("order status updated", zap.Int64("order_id", orderID), zap.String("status", status))
	return nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	err := s.uow.write(ctx, "delete order", func(tx *sql.Tx) error {
		return store.DeleteOrder(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("order deleted", zap.Int64("order_id", orderID))
	return nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := s.uow.read(ctx, "get order", func(tx *sql.Tx) error {
		var err error
		order, err = store.GetOrder(ctx, tx, orderID)
		return err
	})
	return order, err
}

func (s *OrderService) GetOrderByIDAndUser(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	var order *models.Order
	err := s.uow.read(ctx, "get user order", func(tx *sql.Tx) error {
		var err error
		order, err = store.GetOrderForUser(ctx, tx, orderID, userID)
		return err
	})
	return order, err
}

// GetRecentOrdersForUser returns at most limit orders, newest first. A
// non-positive limit falls back to the configured default.
func (s *OrderService) GetRecentOrdersForUser(ctx context.Context, userID int64, limit int) ([]models.Order, error) {
	if limit < 1 {
		limit = s.opts.RecentOrdersLimit
	}
	return s.listOrders(ctx, "list recent orders", func(tx *sql.Tx) ([]models.Order, error) {
		return store.ListOrdersForUser(ctx, tx, userID, limit)
	})
}

func (s *OrderService) GetAllOrdersForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.listOrders(ctx, "list user orders", func(tx *sql.Tx) ([]models.Order, error) {
		return store.ListOrdersForUser(ctx, tx, userID, 0)
	})
}

func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.listOrders(ctx, "list all orders", func(tx *sql.Tx) ([]models.Order, error) {
		return store.ListAllOrders(ctx, tx)
	})
}

func (s *OrderService) ListOrdersPage(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	var page *store.CursorPage[models.Order]
	err := s.uow.read(ctx, "list order page", func(tx *sql.Tx) error {
		var err error
		page, err = store.ListOrdersCursor(ctx, tx, userID, cursor, limit)
		return err
	})
	return page, err
}

func (s *OrderService) listOrders(ctx context.Context, op string, fn func(tx *sql.Tx) ([]models.Order, error)) ([]models.Order, error) {
	var orders []models.Order
	err := s.uow.read(ctx, op, func(tx *sql.Tx) error {
		var err error
		orders, err = fn(tx)
		return err
	})
	return orders, err
}
