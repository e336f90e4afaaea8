package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a checked-out cart with its pricing recorded at the time
// of purchase.
type Order struct {
	ID         string
	Items      []Item
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	CreatedAt  time.Time
}

// Item is a single purchased line item. Name and unit price are copied from
// the cart so later catalog edits cannot rewrite order history.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
}
