package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/arita10/greenart81-backend/internal/qrpay"
)

// QRPaymentHandler handles payment channels and manual slip verification.
type QRPaymentHandler struct {
	svc qrpay.Service
}

func NewQRPaymentHandler(svc qrpay.Service) *QRPaymentHandler {
	return &QRPaymentHandler{svc: svc}
}

func (h *QRPaymentHandler) GetAllChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.svc.ListChannels(r.Context())
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, "QR codes retrieved successfully", channels)
}

func (h *QRPaymentHandler) GetActiveChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.svc.ListActiveChannels(r.Context())
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Active QR codes retrieved successfully", channels)
}

func (h *QRPaymentHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var input qrpay.ChannelInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	c, err := h.svc.CreateChannel(r.Context(), p.UserID, input)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusCreated, "QR code created successfully", c)
}

func (h *QRPaymentHandler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid qr code id", "MISSING_FIELDS")
		return
	}

	var upd struct {
		BankName       *string `json:"bank_name"`
		AccountName    *string `json:"account_name"`
		AccountNumber  *string `json:"account_number"`
		QRCodeImageURL *string `json:"qr_code_image_url"`
		PaymentType    *string `json:"payment_type"`
		IsActive       *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "MISSING_FIELDS")
		return
	}

	c, err := h.svc.UpdateChannel(r.Context(), id, qrpay.ChannelUpdate{
		BankName:       upd.BankName,
		AccountName:    upd.AccountName,
		AccountNumber:  upd.AccountNumber,
		QRCodeImageURL: upd.QRCodeImageURL,
		PaymentType:    upd.PaymentType,
		IsActive:       upd.IsActive,
	})
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "QR code updated successfully", c)
}

func (h *QRPaymentHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid qr code id", "MISSING_FIELDS")
		return
	}

	if err := h.svc.DeleteChannel(r.Context(), id); err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "QR code deleted successfully", nil)
}

func (h *QRPaymentHandler) UploadSlip(w http.ResponseWriter, r *http.Request) {
	var input qrpay.UploadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	slip, err := h.svc.UploadSlip(r.Context(), p.UserID, input)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusCreated, "Payment slip uploaded successfully. Waiting for verification.", slip)
}

func (h *QRPaymentHandler) GetMySlips(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	slips, err := h.svc.ListMySlips(r.Context(), p.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Payment slips retrieved successfully", slips)
}

func (h *QRPaymentHandler) GetSlipByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.FromString(chi.URLParam(r, "orderId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	slip, err := h.svc.GetSlipByOrder(r.Context(), orderID, p.UserID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Payment slip retrieved successfully", slip)
}

func (h *QRPaymentHandler) GetAllSlips(w http.ResponseWriter, r *http.Request) {
	status := qrpay.SlipStatus(r.URL.Query().Get("status"))
	slips, err := h.svc.ListSlips(r.Context(), status)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Payment slips retrieved successfully", slips)
}

func (h *QRPaymentHandler) VerifySlip(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid slip id", "MISSING_FIELDS")
		return
	}

	var body struct {
		Status            qrpay.SlipStatus `json:"status"`
		VerificationNotes string           `json:"verification_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "MISSING_FIELDS")
		return
	}

	p := principalFrom(r.Context())
	slip, err := h.svc.VerifySlip(r.Context(), id, p.UserID, body.Status, body.VerificationNotes)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondData(w, http.StatusOK, "Payment slip "+string(body.Status)+" successfully", slip)
}
