package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/arita10/greenart81-backend/internal/order"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// CreateOrder handles checkout: stock reservation, order creation and
// cart flush happen in one transaction behind the service.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input order.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	created, err := h.svc.Create(r.Context(), p.UserID, input)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusCreated, "Order created successfully", created)
}

func (h *OrderHandler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := order.Status(r.URL.Query().Get("status"))

	orders, total, err := h.svc.ListByUser(r.Context(), p.UserID, status, page, limit)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Orders retrieved successfully", map[string]any{
		"orders": orders,
		"total":  total,
	})
}

func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	o, err := h.svc.GetByID(r.Context(), id, p.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Order retrieved successfully", o)
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	cancelled, err := h.svc.Cancel(r.Context(), id, p.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Order cancelled successfully", cancelled)
}

// UpdateOrderStatus is the admin path for moving orders through
// processing, shipped and delivered.
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "MISSING_FIELDS")
		return
	}

	var body struct {
		Status order.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		respondError(w, http.StatusBadRequest, "status is required", "MISSING_FIELDS")
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), id, body.Status); err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Order status updated successfully", map[string]any{
		"order_id": id,
		"status":   body.Status,
	})
}
