package coupon

import (
	"context"
	"math"
	"time"

	"voyago/internal/database"
	"voyago/internal/domain"
	"voyago/internal/models"

	"github.com/rs/zerolog"
)

// Engine validates coupon codes and records redemptions. Validation is
// read-only and can run any number of times for the same code; usage is
// only consumed by ApplyUsage after the booking row exists.
type Engine struct {
	store  domain.CouponStore
	logger *zerolog.Logger
}

func NewEngine(store domain.CouponStore, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// Validate checks every redemption precondition in a fixed order and
// computes the discount. Checks run from cheapest to most specific so the
// caller always sees the same error for the same coupon state.
func (e *Engine) Validate(ctx context.Context, code string, userID int64, serviceType string, amount float64) (*models.Coupon, *models.DiscountResult, error) {
	c, err := e.store.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	switch {
	case !c.IsActive:
		return nil, nil, database.ErrCouponInactive
	case now.Before(c.ValidFrom):
		return nil, nil, database.ErrCouponNotYetValid
	case now.After(c.ValidTo):
		return nil, nil, database.ErrCouponExpired
	case !c.AppliesTo(serviceType):
		return nil, nil, database.ErrCouponServiceMismatch
	case amount < c.MinOrderAmount:
		return nil, nil, database.ErrCouponBelowMinimum
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return nil, nil, database.ErrCouponLimitReached
	}

	used, err := e.store.HasRedemption(ctx, c.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	if used {
		return nil, nil, database.ErrCouponAlreadyUsed
	}

	result := Discount(c, amount)
	e.logger.Debug().
		Str("code", c.Code).
		Int64("user_id", userID).
		Float64("discount", result.DiscountAmount).
		Msg("Coupon validated")
	return c, result, nil
}

// ApplyUsage consumes one use of the coupon for this user. The store insert
// is conditional, so a concurrent racer past Validate still cannot exceed
// the usage limit or redeem twice.
func (e *Engine) ApplyUsage(ctx context.Context, couponID, userID, bookingID int64) error {
	return e.store.RedeemCoupon(ctx, couponID, userID, bookingID)
}

// Discount computes the discounted split for an order amount. The two
// result fields always sum back to the original amount.
func Discount(c *models.Coupon, amount float64) *models.DiscountResult {
	var discount float64
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = amount * c.Value / 100
		if c.MaxDiscountAmount > 0 && discount > c.MaxDiscountAmount {
			discount = c.MaxDiscountAmount
		}
	case models.DiscountFixed:
		discount = c.Value
	}
	if discount > amount {
		discount = amount
	}
	discount = round2(discount)
	return &models.DiscountResult{
		DiscountAmount: discount,
		FinalAmount:    round2(amount - discount),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
