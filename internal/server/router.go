package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ranntharath/ecomerce-backend/internal/auth"
)

// Deps bundles the handlers the router exposes.
type Deps struct {
	Cart     *CartHandler
	Orders   *OrderHandler
	Payments *PaymentHandler
	Products *ProductHandler

	JWTSecret      string
	RequestTimeout time.Duration
	Log            *logrus.Logger
}

// NewRouter builds the full route tree. The webhook endpoint sits outside
// the authenticated group: the gateway authenticates with its signature,
// not a bearer token.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/webhook", d.Payments.Webhook)

		r.Get("/products", d.Products.ListProducts)
		r.Get("/products/{productID}", d.Products.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.JWTSecret, d.Log))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", d.Cart.GetCart)
				r.Post("/items", d.Cart.AddItem)
				r.Put("/items/{productID}", d.Cart.UpdateQuantity)
				r.Delete("/items/{productID}", d.Cart.RemoveItem)
				r.Delete("/", d.Cart.ClearCart)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", d.Orders.Checkout)
				r.Get("/", d.Orders.ListOrders)
				r.Get("/{orderID}", d.Orders.GetOrder)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireAdmin)
					r.Put("/{orderID}/status", d.Orders.UpdateStatus)
					r.Post("/{orderID}/refund", d.Payments.Refund)
				})
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", d.Payments.CreatePayment)
				r.Get("/{paymentID}/status", d.Payments.CheckStatus)
			})
		})
	})

	return r
}
