package qrpay

import (
	"time"

	"github.com/gofrs/uuid"
)

// Channel is an admin-published bank/QR account customers pay into.
type Channel struct {
	ID             uuid.UUID `json:"id"`
	BankName       string    `json:"bank_name"`
	AccountName    string    `json:"account_name"`
	AccountNumber  string    `json:"account_number,omitempty"`
	QRCodeImageURL string    `json:"qr_code_image_url"`
	PaymentType    string    `json:"payment_type"`
	IsActive       bool      `json:"is_active"`
	CreatedBy      uuid.UUID `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SlipStatus string

const (
	SlipPending  SlipStatus = "pending"
	SlipApproved SlipStatus = "approved"
	SlipRejected SlipStatus = "rejected"
)

// Slip is customer-submitted proof of a manual bank transfer. At most
// one non-rejected slip may exist per order at any time.
type Slip struct {
	ID                   uuid.UUID  `json:"id"`
	OrderID              uuid.UUID  `json:"order_id"`
	UserID               uuid.UUID  `json:"user_id"`
	ChannelID            *uuid.UUID `json:"qr_code_id,omitempty"`
	SlipImageURL         string     `json:"slip_image_url"`
	Amount               float64    `json:"amount"`
	PaymentDate          time.Time  `json:"payment_date"`
	TransactionReference string     `json:"transaction_reference,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	Status               SlipStatus `json:"status"`
	VerifiedBy           *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
	VerificationNotes    string     `json:"verification_notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
