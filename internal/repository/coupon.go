package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/twcjewels/storefront-api/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value, min_purchase,
		max_discount, usage_limit, used_count, valid_until, active
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	couponUsageExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2)`

	insertCouponUsageSQL = `INSERT INTO coupon_usage (coupon_id, user_id, order_id, discount_amount)
		VALUES ($1, $2, $3, $4)`

	incrementUsedCountSQL = `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`
)

// Postgres unique_violation.
const uniqueViolationCode = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
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

// UsageExists reports whether the user has already redeemed the coupon.
func (r *CouponRepository) UsageExists(ctx context.Context, couponID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, couponUsageExistsSQL, couponID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking coupon usage: %w", err)
	}
	return exists, nil
}

// RecordUsage inserts the usage row and increments the coupon's used count in
// one transaction. The unique index on (coupon_id, user_id) rejects a second
// redemption; that surfaces as coupon.ErrAlreadyUsed.
func (r *CouponRepository) RecordUsage(ctx context.Context, usage coupon.Usage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertCouponUsageSQL,
		usage.CouponID, usage.UserID, usage.OrderID, usage.DiscountAmount,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return coupon.ErrAlreadyUsed
		}
		return fmt.Errorf("recording coupon usage: %w", err)
	}

	if _, err := tx.Exec(ctx, incrementUsedCountSQL, usage.CouponID); err != nil {
		return fmt.Errorf("incrementing coupon used count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing coupon usage: %w", err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		minPurchase  *decimal.Decimal
		maxDiscount  *decimal.Decimal
		usageLimit   *int32
		validUntil   *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.DiscountValue, &minPurchase,
		&maxDiscount, &usageLimit, &c.UsedCount, &validUntil, &c.Active,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	if minPurchase != nil {
		c.MinPurchase = *minPurchase
	}
	if maxDiscount != nil {
		c.MaxDiscount = *maxDiscount
	}
	if usageLimit != nil {
		c.UsageLimit = int(*usageLimit)
	}
	c.ValidUntil = validUntil
	return c, err
}
