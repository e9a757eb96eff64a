package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/arita10/greenart81-backend/internal/inventory"
	"github.com/arita10/greenart81-backend/internal/order"
	"github.com/arita10/greenart81-backend/internal/payment"
	"github.com/arita10/greenart81-backend/internal/qrpay"
)

type errorBody struct {
	Code string `json:"code"`
}

type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload envelope) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Server error","error":{"code":"SERVER_ERROR"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, envelope{Success: false, Message: message, Error: &errorBody{Code: code}})
}

// respondMappedError translates domain sentinels into the stable
// machine-readable code and HTTP status the API promises.
func respondMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrMissingFields), errors.Is(err, qrpay.ErrMissingFields):
		respondError(w, http.StatusBadRequest, err.Error(), "MISSING_FIELDS")
	case errors.Is(err, order.ErrTotalMismatch):
		respondError(w, http.StatusBadRequest, err.Error(), "INVALID_TOTAL")
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "Order not found", "ORDER_NOT_FOUND")
	case errors.Is(err, inventory.ErrProductNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "PRODUCT_NOT_FOUND")
	case errors.Is(err, inventory.ErrInsufficientStock):
		respondError(w, http.StatusBadRequest, err.Error(), "INSUFFICIENT_STOCK")
	case errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, qrpay.ErrInvalidDecision),
		errors.Is(err, qrpay.ErrSlipAlreadyVerified),
		errors.Is(err, qrpay.ErrMethodConflict),
		errors.Is(err, qrpay.ErrOrderStateConflict):
		respondError(w, http.StatusBadRequest, err.Error(), "INVALID_STATUS")
	case errors.Is(err, qrpay.ErrSlipExists):
		respondError(w, http.StatusBadRequest, "Payment slip already uploaded for this order", "ALREADY_EXISTS")
	case errors.Is(err, qrpay.ErrSlipNotFound), errors.Is(err, qrpay.ErrChannelNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, payment.ErrInvalidSignature):
		respondError(w, http.StatusBadRequest, "Invalid signature", "INVALID_SIGNATURE")
	case errors.Is(err, payment.ErrPaymentNotFound):
		respondError(w, http.StatusNotFound, "No payment found for this order", "PAYMENT_NOT_FOUND")
	default:
		log.Error().Err(err).Msg("handler: unexpected error")
		respondError(w, http.StatusInternalServerError, "Server error", "SERVER_ERROR")
	}
}
