package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/arita10/greenart81-backend/internal/payment"
)

// PaymentHandler handles gateway payment initialization and callbacks.
type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID uuid.UUID     `json:"order_id"`
		Buyer   payment.Buyer `json:"buyer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrderID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "Order ID is required", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	form, err := h.svc.Initialize(r.Context(), body.OrderID, p.UserID, body.Buyer)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Payment initialized successfully", form)
}

// HandleCallback is the unauthenticated gateway webhook. Signature
// failures are rejected; everything past that gate is acknowledged
// with 200 (replays included) so the gateway stops retrying.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_SIGNATURE")
		return
	}

	result, err := h.svc.HandleCallback(r.Context(), raw)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			respondError(w, http.StatusBadRequest, "Invalid signature", "INVALID_SIGNATURE")
			return
		}
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Payment callback processed", result)
}

func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.FromString(chi.URLParam(r, "orderId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	t, err := h.svc.StatusByOrder(r.Context(), orderID, p.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Payment status retrieved", t)
}
