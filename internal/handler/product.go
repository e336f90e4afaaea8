package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/marketbay/storefront/internal/domain/product"
)

// listProducts returns every product in the catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// getProduct returns a single product by ID.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}
