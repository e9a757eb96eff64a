package qrpay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidDecision = errors.New("status must be either approved or rejected")
)

type UploadInput struct {
	OrderID              uuid.UUID  `json:"order_id"`
	ChannelID            *uuid.UUID `json:"qr_code_id,omitempty"`
	SlipImageURL         string     `json:"slip_image_url"`
	Amount               float64    `json:"amount"`
	PaymentDate          time.Time  `json:"payment_date,omitempty"`
	TransactionReference string     `json:"transaction_reference,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

type ChannelInput struct {
	BankName       string `json:"bank_name"`
	AccountName    string `json:"account_name"`
	AccountNumber  string `json:"account_number,omitempty"`
	QRCodeImageURL string `json:"qr_code_image_url"`
	PaymentType    string `json:"payment_type,omitempty"`
}

type Service interface {
	ListChannels(ctx context.Context) ([]Channel, error)
	ListActiveChannels(ctx context.Context) ([]Channel, error)
	CreateChannel(ctx context.Context, adminID uuid.UUID, input ChannelInput) (*Channel, error)
	UpdateChannel(ctx context.Context, id uuid.UUID, upd ChannelUpdate) (*Channel, error)
	DeleteChannel(ctx context.Context, id uuid.UUID) error

	UploadSlip(ctx context.Context, userID uuid.UUID, input UploadInput) (*Slip, error)
	GetSlipByOrder(ctx context.Context, orderID, userID uuid.UUID) (*Slip, error)
	ListMySlips(ctx context.Context, userID uuid.UUID) ([]Slip, error)
	ListSlips(ctx context.Context, status SlipStatus) ([]Slip, error)
	VerifySlip(ctx context.Context, slipID, adminID uuid.UUID, decision SlipStatus, notes string) (*Slip, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListChannels(ctx context.Context) ([]Channel, error) {
	return s.repo.ListChannels(ctx)
}

func (s *service) ListActiveChannels(ctx context.Context) ([]Channel, error) {
	return s.repo.ListActiveChannels(ctx)
}

func (s *service) CreateChannel(ctx context.Context, adminID uuid.UUID, input ChannelInput) (*Channel, error) {
	if input.BankName == "" || input.AccountName == "" || input.QRCodeImageURL == "" {
		return nil, fmt.Errorf("%w: bank name, account name and qr code image are required", ErrMissingFields)
	}

	c := &Channel{
		BankName:       input.BankName,
		AccountName:    input.AccountName,
		AccountNumber:  input.AccountNumber,
		QRCodeImageURL: input.QRCodeImageURL,
		PaymentType:    input.PaymentType,
		CreatedBy:      adminID,
	}
	if err := s.repo.CreateChannel(ctx, c); err != nil {
		return nil, err
	}

	log.Info().Stringer("qr_code_id", c.ID).Stringer("admin_id", adminID).Msg("service: payment channel created")
	return c, nil
}

func (s *service) UpdateChannel(ctx context.Context, id uuid.UUID, upd ChannelUpdate) (*Channel, error) {
	return s.repo.UpdateChannel(ctx, id, upd)
}

func (s *service) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteChannel(ctx, id)
}

func (s *service) UploadSlip(ctx context.Context, userID uuid.UUID, input UploadInput) (*Slip, error) {
	if input.OrderID == uuid.Nil || input.SlipImageURL == "" || input.Amount <= 0 {
		return nil, fmt.Errorf("%w: order id, slip image and amount are required", ErrMissingFields)
	}

	slip := &Slip{
		OrderID:              input.OrderID,
		UserID:               userID,
		ChannelID:            input.ChannelID,
		SlipImageURL:         input.SlipImageURL,
		Amount:               input.Amount,
		PaymentDate:          input.PaymentDate,
		TransactionReference: input.TransactionReference,
		Notes:                input.Notes,
	}
	if err := s.repo.CreateSlip(ctx, slip); err != nil {
		log.Warn().Err(err).Stringer("order_id", input.OrderID).Stringer("user_id", userID).Msg("service: failed to upload slip")
		return nil, err
	}

	log.Info().Stringer("slip_id", slip.ID).Stringer("order_id", slip.OrderID).Msg("service: payment slip uploaded, awaiting verification")
	return slip, nil
}

func (s *service) GetSlipByOrder(ctx context.Context, orderID, userID uuid.UUID) (*Slip, error) {
	return s.repo.GetSlipByOrderForUser(ctx, orderID, userID)
}

func (s *service) ListMySlips(ctx context.Context, userID uuid.UUID) ([]Slip, error) {
	return s.repo.ListSlipsByUser(ctx, userID)
}

func (s *service) ListSlips(ctx context.Context, status SlipStatus) ([]Slip, error) {
	if status != "" && status != SlipPending && status != SlipApproved && status != SlipRejected {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidDecision, status)
	}
	return s.repo.ListSlips(ctx, status)
}

func (s *service) VerifySlip(ctx context.Context, slipID, adminID uuid.UUID, decision SlipStatus, notes string) (*Slip, error) {
	if decision != SlipApproved && decision != SlipRejected {
		return nil, ErrInvalidDecision
	}

	slip, err := s.repo.Verify(ctx, slipID, adminID, decision, notes)
	if err != nil {
		log.Warn().Err(err).Stringer("slip_id", slipID).Msg("service: failed to verify slip")
		return nil, err
	}

	log.Info().
		Stringer("slip_id", slipID).
		Stringer("order_id", slip.OrderID).
		Stringer("admin_id", adminID).
		Str("decision", string(decision)).
		Msg("service: payment slip verified")
	return slip, nil
}
