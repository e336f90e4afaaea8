package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/order"
	"github.com/marketbay/storefront/internal/domain/product"
)

// cartFor resolves the session cart from the path, writing a 404 when the
// session is unknown or expired.
func (h *Handler) cartFor(w http.ResponseWriter, r *http.Request) (string, *cart.Engine, bool) {
	id := r.PathValue("id")
	engine, ok := h.carts.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "cart not found")
		return "", nil, false
	}
	return id, engine, true
}

func (h *Handler) respondCart(w http.ResponseWriter, status int, id string, engine *cart.Engine) {
	var e jx.Encoder
	encodeCart(&e, id, engine.Snapshot())
	writeJSON(w, status, &e)
}

// createCart starts a new empty session cart.
func (h *Handler) createCart(w http.ResponseWriter, _ *http.Request) {
	id, engine := h.carts.Create()
	h.respondCart(w, http.StatusCreated, id, engine)
}

// getCart returns the cart's current state.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	h.respondCart(w, http.StatusOK, id, engine)
}

// clearCart empties the cart and drops its coupon. The session stays alive.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	engine.Clear()
	h.respondCart(w, http.StatusOK, id, engine)
}

// addItem adds a catalog product to the cart.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var (
		productID string
		quantity  = 1
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			productID = v
			return err
		case "quantity":
			v, err := d.Int()
			quantity = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if productID == "" {
		writeError(w, http.StatusBadRequest, "productId required")
		return
	}

	p, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "product "+productID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	engine.AddItem(*p, quantity)
	h.respondCart(w, http.StatusOK, id, engine)
}

// setQuantity sets a line item's quantity exactly; zero or less removes it.
func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var (
		quantity    int
		hasQuantity bool
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity = v
		hasQuantity = true
		return err
	}); err != nil || !hasQuantity {
		writeError(w, http.StatusBadRequest, "quantity required")
		return
	}

	engine.SetQuantity(r.PathValue("productID"), quantity)
	h.respondCart(w, http.StatusOK, id, engine)
}

// removeItem removes a line item. Removing an absent product still returns
// the current cart state.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	engine.RemoveItem(r.PathValue("productID"))
	h.respondCart(w, http.StatusOK, id, engine)
}

// applyCoupon applies a coupon code to the cart. An unknown or inactive code
// is a normal outcome ("applied": false); only a lookup transport failure is
// an error, reported as 502 with the previously applied coupon intact.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var code string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		v, err := d.Str()
		code = v
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code = strings.TrimSpace(code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}

	applied, err := engine.ApplyCoupon(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, "coupon service unavailable")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("applied")
	e.Bool(applied)
	e.FieldStart("cart")
	encodeCart(&e, id, engine.Snapshot())
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// checkoutCart converts the cart into a persisted order and resets the cart.
func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	id, engine, ok := h.cartFor(w, r)
	if !ok {
		return
	}

	o, err := h.checkout.Checkout(r.Context(), engine.Snapshot())
	if err != nil {
		if errors.Is(err, order.ErrEmptyCart) {
			writeError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	engine.Clear()
	h.carts.Evict(id)

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}
