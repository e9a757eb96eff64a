package payment

import (
	"time"

	"github.com/gofrs/uuid"
)

// Transaction is one row of the append-only gateway audit log. An
// order may accumulate several rows over gateway retries; the latest
// one is authoritative for display.
type Transaction struct {
	ID            int64     `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	Gateway       string    `json:"payment_gateway"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"` // raw gateway vocabulary
	Amount        float64   `json:"amount"`
	ResponseData  []byte    `json:"-"` // raw callback payload, kept for disputes
	CreatedAt     time.Time `json:"created_at"`
}

// Buyer carries the customer contact details the gateway form needs.
// Identity is owned by an upstream service, so the caller supplies it.
type Buyer struct {
	Name  string `json:"buyer_name"`
	Email string `json:"buyer_email"`
	Phone string `json:"buyer_phone"`
}

// Form is the signed field set the client posts to the gateway.
type Form struct {
	Fields     map[string]string `json:"payment_form"`
	GatewayURL string            `json:"shopier_url"`
}
