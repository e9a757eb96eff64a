package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arita10/greenart81-backend/internal/handler"
)

// NewRouter assembles the API surface. Auth and admin guards are the
// upstream gateway's headers; the gateway callback and the active
// channel listing are the only public business routes.
func NewRouter(orders *handler.OrderHandler, payments *handler.PaymentHandler, qrPayments *handler.QRPaymentHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(handler.Auth)
		r.Post("/", orders.CreateOrder)
		r.Get("/", orders.GetMyOrders)
		r.Get("/{id}", orders.GetOrderByID)
		r.Put("/{id}/cancel", orders.CancelOrder)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(handler.Auth, handler.RequireAdmin)
		r.Put("/{id}/status", orders.UpdateOrderStatus)
	})

	r.Route("/payment", func(r chi.Router) {
		// Webhook: authenticated by signature, not by principal.
		r.Post("/shopier/callback", payments.HandleCallback)

		r.Group(func(r chi.Router) {
			r.Use(handler.Auth)
			r.Post("/initialize", payments.InitializePayment)
			r.Get("/status/{orderId}", payments.GetPaymentStatus)
		})
	})

	r.Route("/qr-payment", func(r chi.Router) {
		r.Get("/qr-codes/active", qrPayments.GetActiveChannels)

		r.Group(func(r chi.Router) {
			r.Use(handler.Auth, handler.RequireAdmin)
			r.Get("/qr-codes", qrPayments.GetAllChannels)
			r.Post("/qr-codes", qrPayments.CreateChannel)
			r.Put("/qr-codes/{id}", qrPayments.UpdateChannel)
			r.Delete("/qr-codes/{id}", qrPayments.DeleteChannel)
			r.Get("/slips/all", qrPayments.GetAllSlips)
			r.Put("/slips/{id}/verify", qrPayments.VerifySlip)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.Auth)
			r.Post("/slips", qrPayments.UploadSlip)
			r.Get("/slips/my", qrPayments.GetMySlips)
			r.Get("/slips/order/{orderId}", qrPayments.GetSlipByOrder)
		})
	})

	return r
}
