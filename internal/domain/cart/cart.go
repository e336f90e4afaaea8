// Package cart implements the storefront cart engine: an in-memory list of
// line items plus at most one applied coupon, with subtotal, discount, and
// total derived from that state on every read rather than stored alongside it.
package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/coupon"
	"github.com/marketbay/storefront/internal/domain/product"
)

// LineItem is one product-and-quantity pairing within a cart. The descriptive
// fields are captured from the catalog entry at add time and never mutated;
// only Quantity changes afterwards.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Image     string
	Quantity  int
}

// Totals holds the derived pricing values for a cart state. Totals are always
// recomputed from line items and the applied coupon, so
// Total = Subtotal - Discount holds by construction.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Snapshot is a read-only projection of cart state for presentation.
type Snapshot struct {
	Items      []LineItem
	Totals     Totals
	CouponCode string
	ItemCount  int
}

// Engine owns one cart's state. Local mutations (AddItem, RemoveItem,
// SetQuantity, Clear) never fail; ApplyCoupon is the only operation with an
// external dependency. All state access is serialized by an internal mutex,
// but the mutex is not held across the coupon lookup call.
type Engine struct {
	finder coupon.Finder

	mu      sync.Mutex
	items   []LineItem
	applied *coupon.Coupon
	subs    []func()
}

// New creates an empty cart engine using finder to resolve coupon codes.
func New(finder coupon.Finder) *Engine {
	return &Engine{finder: finder}
}

// Subscribe registers fn to be called after every state change. Callbacks run
// outside the engine's lock, so they may call Snapshot.
func (e *Engine) Subscribe(fn func()) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// AddItem adds quantity units of p to the cart. If a line item for the same
// product already exists its quantity is incremented; otherwise a new line
// item is appended, preserving insertion order. A non-positive quantity is
// clamped to 1 rather than rejected.
func (e *Engine) AddItem(p product.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	e.mu.Lock()
	merged := false
	for i := range e.items {
		if e.items[i].ProductID == p.ID {
			e.items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		e.items = append(e.items, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Image:     p.Image,
			Quantity:  quantity,
		})
	}
	e.mu.Unlock()

	e.notify()
}

// RemoveItem removes the line item for productID. Removing an absent product
// is a no-op, not an error. The applied coupon is intentionally kept.
func (e *Engine) RemoveItem(productID string) {
	e.mu.Lock()
	e.removeLocked(productID)
	e.mu.Unlock()

	e.notify()
}

// SetQuantity sets the quantity of an existing line item exactly. A quantity
// of zero or less removes the line item. Setting the quantity of an absent
// product is a no-op.
func (e *Engine) SetQuantity(productID string, quantity int) {
	e.mu.Lock()
	if quantity <= 0 {
		e.removeLocked(productID)
	} else {
		for i := range e.items {
			if e.items[i].ProductID == productID {
				e.items[i].Quantity = quantity
				break
			}
		}
	}
	e.mu.Unlock()

	e.notify()
}

// Clear empties the cart and drops the applied coupon.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.items = nil
	e.applied = nil
	e.mu.Unlock()

	e.notify()
}

// ApplyCoupon resolves code through the lookup collaborator and applies the
// result. It returns (true, nil) when an active coupon was applied and
// (false, nil) when the code is confirmed unknown or inactive; in the latter
// case any previously applied coupon is cleared. A lookup transport failure
// is returned as an error and leaves the applied coupon untouched, so a
// transient fault never discards a valid discount.
//
// The lock is not held across the lookup, so two concurrent ApplyCoupon
// calls race with last-write-wins semantics: whichever lookup resolves last
// determines the final applied coupon.
func (e *Engine) ApplyCoupon(ctx context.Context, code string) (bool, error) {
	c, err := e.finder.Find(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			e.mu.Lock()
			e.applied = nil
			e.mu.Unlock()
			e.notify()
			return false, nil
		}
		return false, errors.Wrap(err, "coupon lookup")
	}

	// The finder guarantees an active coupon, but the engine must never
	// honor an inactive one regardless of where it came from.
	if !c.Active {
		e.mu.Lock()
		e.applied = nil
		e.mu.Unlock()
		e.notify()
		return false, nil
	}

	e.mu.Lock()
	e.applied = c
	e.mu.Unlock()
	e.notify()
	return true, nil
}

// Snapshot returns a copy of the current items together with freshly derived
// totals, the applied coupon code (empty when none), and the total unit count.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	items := make([]LineItem, len(e.items))
	copy(items, e.items)
	applied := e.applied
	e.mu.Unlock()

	count := 0
	for _, it := range items {
		count += it.Quantity
	}

	code := ""
	if applied != nil {
		code = applied.Code
	}

	return Snapshot{
		Items:      items,
		Totals:     ComputeTotals(items, applied),
		CouponCode: code,
		ItemCount:  count,
	}
}

// removeLocked removes the line item for productID. Caller must hold e.mu.
func (e *Engine) removeLocked(productID string) {
	for i := range e.items {
		if e.items[i].ProductID == productID {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return
		}
	}
}

// notify invokes subscribers outside the lock.
func (e *Engine) notify() {
	e.mu.Lock()
	subs := make([]func(), len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// ComputeTotals derives subtotal, discount, and total from a list of line
// items and an optionally applied coupon. It is a pure function: the engine
// never stores these values, it recomputes them on every read.
func ComputeTotals(items []LineItem, applied *coupon.Coupon) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
	}

	discount := decimal.Zero
	if applied != nil {
		rate := applied.DiscountRate
		if rate.IsNegative() {
			rate = decimal.Zero
		}
		if rate.GreaterThan(decimal.NewFromInt(1)) {
			rate = decimal.NewFromInt(1)
		}
		discount = subtotal.Mul(rate)
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}
