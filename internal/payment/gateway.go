package payment

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/arita10/greenart81-backend/internal/config"
	"github.com/arita10/greenart81-backend/internal/order"
)

// Gateway builds Shopier payment forms and checks callback signatures.
// The signature scheme is the provider's: sha256hex(apiKey + nonce + apiSecret).
type Gateway struct {
	cfg config.ShopierConfig
}

func NewGateway(cfg config.ShopierConfig) *Gateway {
	return &Gateway{cfg: cfg}
}

func (g *Gateway) sign(nonce string) string {
	sum := sha256.Sum256([]byte(g.cfg.APIKey + nonce + g.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

// Callback is the webhook payload the gateway posts after a payment
// attempt. Anything outside these fields is carried only in the raw
// body stored for audit.
type Callback struct {
	PlatformOrderID string `json:"platform_order_id"`
	Status          string `json:"status"`
	PaymentID       string `json:"payment_id"`
	PaymentStatus   string `json:"payment_status"`
	TotalOrderValue string `json:"total_order_value"`
	RandomNr        string `json:"random_nr"`
	Signature       string `json:"signature"`
}

// VerifyCallback checks the shared-secret signature. Nothing may
// mutate state before this returns true.
func (g *Gateway) VerifyCallback(c Callback) bool {
	expected := g.sign(c.RandomNr)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(c.Signature)) == 1
}

// BuildForm assembles the signed field set for an order. Pure
// read-and-transform: order state is not touched.
func (g *Gateway) BuildForm(o *order.Order, buyer Buyer, productNames map[string]string) Form {
	nonce := newNonce()

	fields := map[string]string{
		"API_key":           g.cfg.APIKey,
		"website_index":     g.cfg.WebsiteIndex,
		"platform_order_id": o.ID.String(),
		"buyer_name":        buyer.Name,
		"buyer_email":       buyer.Email,
		"buyer_phone":       buyer.Phone,
		"buyer_address":     o.ShippingAddress,
		"total_order_value": fmt.Sprintf("%.2f", o.TotalAmount),
		"currency":          "TL",
		"random_nr":         nonce,
		"callback_url":      g.cfg.CallbackURL,
		"lang":              "tr",
		"modul_name":        "greenart81",
		"modul_version":     "1.0",
	}

	for i, item := range o.Items {
		idx := strconv.Itoa(i + 1)
		name := productNames[item.ProductID.String()]
		if name == "" {
			name = item.ProductID.String()
		}
		fields["product_name_"+idx] = name
		fields["product_type_"+idx] = "0" // physical product
		fields["product_quantity_"+idx] = strconv.Itoa(item.Quantity)
		fields["product_price_"+idx] = fmt.Sprintf("%.2f", item.UnitPrice)
	}

	fields["signature"] = g.sign(nonce)

	return Form{Fields: fields, GatewayURL: g.cfg.PaymentURL}
}

func newNonce() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
