package models

import (
	"strings"
	"time"
)

// Coupon is a promotional discount code. Each user may redeem a coupon at
// most once; redemptions are recorded individually so the uniqueness check
// and the audit trail come from the same rows.
type Coupon struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	DiscountType      string    `json:"discount_type"` // percentage, fixed
	Value             float64   `json:"value"`
	MaxDiscountAmount float64   `json:"max_discount_amount"` // percentage cap, 0 = uncapped
	MinOrderAmount    float64   `json:"min_order_amount"`
	ServiceTypes      []string  `json:"service_types"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidTo           time.Time `json:"valid_to"`
	UsageLimit        int64     `json:"usage_limit"` // 0 = unlimited
	UsedCount         int64     `json:"used_count"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AppliesTo reports whether the coupon covers the given resource type.
func (c *Coupon) AppliesTo(serviceType string) bool {
	for _, st := range c.ServiceTypes {
		st = strings.TrimSpace(st)
		if st == ServiceTypeAll || st == serviceType {
			return true
		}
	}
	return false
}

// DiscountResult is the outcome of a successful coupon validation.
// DiscountAmount + FinalAmount always equals the original amount.
type DiscountResult struct {
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
}

// CouponRedemption is one (coupon, user) usage event. The unique index on
// (coupon_id, user_id) is the double-redemption guard; the rows double as
// the append-only audit log.
type CouponRedemption struct {
	ID         int64     `json:"id"`
	CouponID   int64     `json:"coupon_id"`
	UserID     int64     `json:"user_id"`
	BookingID  int64     `json:"booking_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}
