package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/service"
	"github.com/safar/vinyl-store/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartAPI interface {
	GetCart(ctx context.Context, userID int64) (*models.Cart, error)
	AddOrSetItem(ctx context.Context, userID, recordID int64, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID, recordID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, recordID int64) error
	Clear(ctx context.Context, userID int64) error
	Validate(ctx context.Context, userID int64) (int, error)
}

type OrderAPI interface {
	Checkout(ctx context.Context, userID int64, shippingAddress, paymentMethod string) (*models.Order, error)
	Cancel(ctx context.Context, orderID int64, actor models.Actor) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	DeleteOrder(ctx context.Context, orderID int64) error
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderByIDAndUser(ctx context.Context, orderID, userID int64) (*models.Order, error)
	GetRecentOrdersForUser(ctx context.Context, userID int64, limit int) ([]models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersPage(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage[models.Order], error)
}

type InventoryAPI interface {
	CreateRecord(ctx context.Context, r models.Record) (*models.Record, error)
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	ListRecords(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Record], error)
	DeleteRecord(ctx context.Context, id int64) error
	AddStock(ctx context.Context, recordID int64, quantity int) (*models.Record, error)
	ReduceStock(ctx context.Context, recordID int64, quantity int) (*models.Record, error)
	SetStock(ctx context.Context, recordID int64, quantity int) (*models.Record, error)
	UpdateLowStockThreshold(ctx context.Context, recordID int64, threshold int) (*models.Record, error)
	BatchSetStock(ctx context.Context, quantities map[int64]int) ([]models.Record, error)
	LowStockRecords(ctx context.Context) ([]models.Record, error)
	OutOfStockRecords(ctx context.Context) ([]models.Record, error)
	RecordsNeedingRestock(ctx context.Context) ([]models.Record, error)
	LowStockCount(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (*service.InventorySummary, error)
}

type Handler struct {
	carts     CartAPI
	orders    OrderAPI
	inventory InventoryAPI
	logger    *zap.Logger
}

type cartResponse struct {
	*models.Cart
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	result, err := h.inventory.ListRecords(r.Context(), page, pageSize)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	record, err := h.inventory.GetRecord(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r, actorFrom(r.Context()).UserID, http.StatusOK)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, userID int64, status int) {
	cart, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, status, cartResponse{Cart: cart, Total: cart.Total(), ItemCount: cart.ItemCount()})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), actorFrom(r.Context()).UserID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cartItemRequest struct {
	RecordID int64 `json:"record_id"`
	Quantity int   `json:"quantity"`
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}
	userID := actorFrom(r.Context()).UserID
	if err := h.carts.AddOrSetItem(r.Context(), userID, req.RecordID, req.Quantity); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.writeCart(w, r, userID, http.StatusOK)
}

func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	h.changeCartItem(w, r, h.carts.AddOrSetItem)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	h.changeCartItem(w, r, h.carts.UpdateItemQuantity)
}

func (h *Handler) changeCartItem(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, int64, int) error) {
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}
	userID := actorFrom(r.Context()).UserID
	if err := apply(r.Context(), userID, recordID, req.Quantity); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.writeCart(w, r, userID, http.StatusOK)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(r.Context(), actorFrom(r.Context()).UserID, recordID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	removed, err := h.carts.Validate(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress string `json:"shipping_address"`
		PaymentMethod   string `json:"payment_method"`
	}
	if !decode(w, r, &req) {
		return
	}
	order, err := h.orders.Checkout(r.Context(), actorFrom(r.Context()).UserID, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// ListMyOrders pages through the caller's orders by cursor. With ?recent=N it
// returns the N newest orders instead.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := actorFrom(ctx).UserID
	query := r.URL.Query()

	if recent := query.Get("recent"); recent != "" {
		limit, err := strconv.Atoi(recent)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid recent limit")
			return
		}
		orders, err := h.orders.GetRecentOrdersForUser(ctx, userID, limit)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, orders)
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	page, err := h.orders.ListOrdersPage(ctx, userID, query.Get("cursor"), limit)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	order, err := h.orders.GetOrderByIDAndUser(r.Context(), orderID, actorFrom(r.Context()).UserID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	if err := h.orders.Cancel(r.Context(), orderID, actorFrom(r.Context())); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.GetAllOrders(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetAnyOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	order, err := h.orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.orders.UpdateOrderStatus(r.Context(), orderID, req.Status); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), orderID); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title             string          `json:"title"`
		Artist            string          `json:"artist"`
		Album             string          `json:"album"`
		Genre             string          `json:"genre"`
		Price             decimal.Decimal `json:"price"`
		Stock             int             `json:"stock"`
		LowStockThreshold int             `json:"low_stock_threshold"`
	}
	if !decode(w, r, &req) {
		return
	}
	record, err := h.inventory.CreateRecord(r.Context(), models.Record{
		Title:             req.Title,
		Artist:            req.Artist,
		Album:             req.Album,
		Genre:             req.Genre,
		Price:             req.Price,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	if err := h.inventory.DeleteRecord(r.Context(), id); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.inventory.Summary(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) LowStockRecords(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, h.inventory.LowStockRecords)
}

func (h *Handler) OutOfStockRecords(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, h.inventory.OutOfStockRecords)
}

func (h *Handler) RecordsNeedingRestock(w http.ResponseWriter, r *http.Request) {
	h.listRecords(w, r, h.inventory.RecordsNeedingRestock)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]models.Record, error)) {
	records, err := list(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *Handler) LowStockCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.inventory.LowStockCount(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.inventory.AddStock)
}

func (h *Handler) ReduceStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.inventory.ReduceStock)
}

func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.inventory.SetStock)
}

func (h *Handler) UpdateLowStockThreshold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	var req struct {
		Threshold int `json:"threshold"`
	}
	if !decode(w, r, &req) {
		return
	}
	record, err := h.inventory.UpdateLowStockThreshold(r.Context(), id, req.Threshold)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, int) (*models.Record, error)) {
	id, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	record, err := apply(r.Context(), id, req.Quantity)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (h *Handler) BatchSetStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []struct {
			RecordID int64 `json:"record_id"`
			Quantity int   `json:"quantity"`
		} `json:"items"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "No items given")
		return
	}

	quantities := make(map[int64]int, len(req.Items))
	for _, item := range req.Items {
		if _, dup := quantities[item.RecordID]; dup {
			respondError(w, http.StatusBadRequest, "Duplicate record_id "+strconv.FormatInt(item.RecordID, 10))
			return
		}
		quantities[item.RecordID] = item.Quantity
	}

	records, err := h.inventory.BatchSetStock(r.Context(), quantities)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "Invalid "+param)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
