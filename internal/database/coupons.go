package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"voyago/internal/models"
)

func (db *DB) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO coupons (code, discount_type, value, max_discount_amount, min_order_amount,
            service_types, valid_from, valid_to, usage_limit, used_count, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		c.Code, c.DiscountType, c.Value, c.MaxDiscountAmount, c.MinOrderAmount,
		strings.Join(c.ServiceTypes, ","), c.ValidFrom, c.ValidTo, c.UsageLimit, c.IsActive, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCouponCodeExists
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (db *DB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, value, max_discount_amount, min_order_amount,
                service_types, valid_from, valid_to, usage_limit, used_count, is_active, created_at, updated_at
         FROM coupons WHERE code = ?`, code)
	return scanCoupon(row)
}

func (db *DB) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, code, discount_type, value, max_discount_amount, min_order_amount,
                service_types, valid_from, valid_to, usage_limit, used_count, is_active, created_at, updated_at
         FROM coupons WHERE id = ?`, id)
	return scanCoupon(row)
}

func (db *DB) SetCouponActive(ctx context.Context, id int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE coupons SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to toggle coupon: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// HasRedemption reports whether the user already redeemed this coupon.
func (db *DB) HasRedemption(ctx context.Context, couponID, userID int64) (bool, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id = ? AND user_id = ?`,
		couponID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check redemption: %w", err)
	}
	return n > 0, nil
}

// RedeemCoupon records a (coupon, user) usage atomically. The unique index
// on (coupon_id, user_id) rejects a concurrent duplicate; the conditional
// used_count bump rejects grabbing the last slot twice.
func (db *DB) RedeemCoupon(ctx context.Context, couponID, userID, bookingID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO coupon_redemptions (coupon_id, user_id, booking_id, redeemed_at) VALUES (?, ?, ?, ?)`,
		couponID, userID, bookingID, time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCouponAlreadyUsed
		}
		return fmt.Errorf("failed to record redemption: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = ?
         WHERE id = ? AND (usage_limit = 0 OR used_count < usage_limit)`,
		time.Now(), couponID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump coupon usage: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCouponLimitReached
	}

	return tx.Commit()
}

// GetRedemptions returns the audit trail for one coupon, oldest first.
func (db *DB) GetRedemptions(ctx context.Context, couponID int64) ([]*models.CouponRedemption, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, coupon_id, user_id, booking_id, redeemed_at
         FROM coupon_redemptions WHERE coupon_id = ? ORDER BY redeemed_at ASC, id ASC`,
		couponID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get redemptions: %w", err)
	}
	defer rows.Close()

	var out []*models.CouponRedemption
	for rows.Next() {
		r := &models.CouponRedemption{}
		if err := rows.Scan(&r.ID, &r.CouponID, &r.UserID, &r.BookingID, &r.RedeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	var serviceTypes string
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.Value, &c.MaxDiscountAmount, &c.MinOrderAmount,
		&serviceTypes, &c.ValidFrom, &c.ValidTo, &c.UsageLimit, &c.UsedCount, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan coupon: %w", err)
	}
	if serviceTypes != "" {
		c.ServiceTypes = strings.Split(serviceTypes, ",")
	}
	return c, nil
}
