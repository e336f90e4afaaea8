package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/order"
	"github.com/marketbay/storefront/internal/domain/product"
)

// maxBodyBytes caps request body reads. Cart mutation payloads are tiny.
const maxBodyBytes = 1 << 16

// writeJSON writes the encoder's buffer with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes a {"code":N,"message":...} body.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// readBody reads and size-limits the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return nil, false
	}
	return body, true
}

// encodeMoney writes a decimal as a JSON number with two decimal places.
// Rounding is a presentation concern: the cart engine stores full precision.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}

// encodeCart writes a cart snapshot object.
func encodeCart(e *jx.Encoder, id string, snap cart.Snapshot) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(id)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range snap.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("unitPrice")
		encodeMoney(e, it.UnitPrice)
		e.FieldStart("image")
		e.Str(it.Image)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeMoney(e, snap.Totals.Subtotal)
	e.FieldStart("discount")
	encodeMoney(e, snap.Totals.Discount)
	e.FieldStart("total")
	encodeMoney(e, snap.Totals.Total)
	e.FieldStart("couponCode")
	e.Str(snap.CouponCode)
	e.FieldStart("itemCount")
	e.Int(snap.ItemCount)
	e.ObjEnd()
}

// encodeProduct writes a catalog entry object.
func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("image")
	e.Str(p.Image)
	e.ObjEnd()
}

// encodeOrder writes a completed order object.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("unitPrice")
		encodeMoney(e, it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("discount")
	encodeMoney(e, o.Discount)
	e.FieldStart("total")
	encodeMoney(e, o.Total)
	e.FieldStart("couponCode")
	e.Str(o.CouponCode)
	e.ObjEnd()
}
