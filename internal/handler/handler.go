// Package handler implements the storefront HTTP API. Request and response
// bodies are encoded with go-faster/jx; monetary values are rounded to two
// decimal places at this boundary only.
package handler

import (
	"net/http"

	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/coupon"
	"github.com/marketbay/storefront/internal/domain/order"
	"github.com/marketbay/storefront/internal/domain/product"
)

// Handler serves the storefront and admin endpoints, delegating business
// logic to the injected domain types.
type Handler struct {
	carts    *cart.Registry
	products product.Repository
	coupons  coupon.Repository
	checkout *order.Service
	security *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Registry,
	products product.Repository,
	coupons coupon.Repository,
	checkout *order.Service,
	security *Security,
) *Handler {
	return &Handler{
		carts:    carts,
		products: products,
		coupons:  coupons,
		checkout: checkout,
		security: security,
	}
}

// Register mounts all API routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("POST /api/carts", h.createCart)
	mux.HandleFunc("GET /api/carts/{id}", h.getCart)
	mux.HandleFunc("DELETE /api/carts/{id}", h.clearCart)
	mux.HandleFunc("POST /api/carts/{id}/items", h.addItem)
	mux.HandleFunc("PUT /api/carts/{id}/items/{productID}", h.setQuantity)
	mux.HandleFunc("DELETE /api/carts/{id}/items/{productID}", h.removeItem)
	mux.HandleFunc("POST /api/carts/{id}/coupon", h.applyCoupon)
	mux.HandleFunc("POST /api/carts/{id}/checkout", h.checkoutCart)

	mux.HandleFunc("POST /api/admin/coupons", h.requireAPIKey(h.createCoupon))
	mux.HandleFunc("DELETE /api/admin/coupons/{code}", h.requireAPIKey(h.deactivateCoupon))
}
