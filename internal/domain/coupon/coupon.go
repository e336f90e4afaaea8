package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a coupon code does not resolve to an active
// coupon. An inactive coupon or one outside its validity window is treated
// the same as a missing one: callers must not be able to distinguish them.
var ErrNotFound = errors.New("coupon not found")

// Coupon is a named discount rule applying a fractional reduction to the
// cart subtotal.
type Coupon struct {
	Code         string
	Description  string
	DiscountRate decimal.Decimal // fraction of subtotal in [0, 1]
	Active       bool
	ValidFrom    *time.Time
	ValidUntil   *time.Time
}

// Repository provides lookup and mutation of coupons. Implementations are
// responsible for case normalization: FindByCode must match codes
// case-insensitively and must only return active coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Deactivate(ctx context.Context, code string) error
}

// Finder resolves a coupon code to an active coupon. It returns ErrNotFound
// for codes that are unknown, inactive, or outside their validity window.
// Any other error indicates a lookup transport failure.
type Finder interface {
	Find(ctx context.Context, code string) (*Coupon, error)
}
