package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/marketbay/storefront/internal/domain/cart"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no items.
var ErrEmptyCart = errors.New("cart is empty")

// Service converts cart snapshots into persisted orders.
type Service struct {
	orders Repository
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// Checkout persists the given cart snapshot as an order. Monetary values are
// rounded to 2 decimal places here: the cart engine carries full precision,
// the order records what the customer is actually charged.
func (s *Service) Checkout(ctx context.Context, snap cart.Snapshot) (*Order, error) {
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]Item, len(snap.Items))
	for i, it := range snap.Items {
		items[i] = Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}

	o := &Order{
		ID:         uuid.New().String(),
		Items:      items,
		Subtotal:   snap.Totals.Subtotal.Round(2),
		Discount:   snap.Totals.Discount.Round(2),
		Total:      snap.Totals.Total.Round(2),
		CouponCode: snap.CouponCode,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrapf(err, "create order %q", o.ID)
	}

	return o, nil
}
