package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/coupon"
)

var one = decimal.NewFromInt(1)

// createCoupon creates a new coupon. Codes are stored case-insensitively;
// the discount rate is a fraction of the subtotal and must lie in [0, 1].
func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	c := coupon.Coupon{Active: true}
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			c.Code = strings.TrimSpace(v)
			return err
		case "description":
			v, err := d.Str()
			c.Description = v
			return err
		case "discountRate":
			num, err := d.Num()
			if err != nil {
				return err
			}
			rate, err := decimal.NewFromString(string(num))
			c.DiscountRate = rate
			return err
		case "active":
			v, err := d.Bool()
			c.Active = v
			return err
		case "validFrom":
			t, err := decodeTime(d)
			c.ValidFrom = t
			return err
		case "validUntil":
			t, err := decodeTime(d)
			c.ValidUntil = t
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if c.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	if c.DiscountRate.IsNegative() || c.DiscountRate.GreaterThan(one) {
		writeError(w, http.StatusBadRequest, "discountRate must be between 0 and 1")
		return
	}

	if err := h.coupons.Create(r.Context(), &c); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(strings.ToUpper(c.Code))
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("discountRate")
	e.RawStr(c.DiscountRate.String())
	e.FieldStart("active")
	e.Bool(c.Active)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// deactivateCoupon marks a coupon inactive so lookups stop resolving it.
func (h *Handler) deactivateCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Deactivate(r.Context(), r.PathValue("code")); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeTime reads an RFC3339 timestamp or null.
func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
