package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// RepoFinder implements Finder by looking up coupons from a Repository and
// re-checking eligibility, so an engine never applies a coupon that a
// misbehaving repository should have filtered out.
type RepoFinder struct {
	repo Repository
	now  func() time.Time
}

// NewRepoFinder creates a RepoFinder backed by the given Repository.
func NewRepoFinder(repo Repository) *RepoFinder {
	return &RepoFinder{repo: repo, now: time.Now}
}

// Find resolves code to an active coupon. The repository performs the
// case-insensitive match and the active-only filter; Find re-validates both
// plus the validity window, and clamps the discount rate into [0, 1].
func (f *RepoFinder) Find(ctx context.Context, code string) (*Coupon, error) {
	c, err := f.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrNotFound
	}

	now := f.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, ErrNotFound
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, ErrNotFound
	}

	c.DiscountRate = clampRate(c.DiscountRate)
	return c, nil
}

// clampRate bounds a discount rate into [0, 1].
func clampRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(one) {
		return one
	}
	return rate
}
