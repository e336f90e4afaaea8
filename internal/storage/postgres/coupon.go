package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketbay/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, description, discount_rate, active, valid_from, valid_until
		FROM coupons WHERE code = UPPER($1) AND active`

	insertCouponSQL = `INSERT INTO coupons (code, description, discount_rate, active, valid_from, valid_until)
		VALUES (UPPER($1), $2, $3, $4, $5, $6)`

	deactivateCouponSQL = `UPDATE coupons SET active = FALSE WHERE code = UPPER($1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Codes are stored uppercase; FindByCode applies UPPER() on the parameter so
// matching is case-insensitive, and the active-only filter lives in SQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code.
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.Code, c.Description, c.DiscountRate, c.Active, c.ValidFrom, c.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Deactivate marks a coupon inactive so it can no longer be resolved.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, deactivateCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deactivating coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.Code, &c.Description, &c.DiscountRate, &c.Active, &c.ValidFrom, &c.ValidUntil)
	return c, err
}
