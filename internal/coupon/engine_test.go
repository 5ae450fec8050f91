package coupon

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"voyago/internal/database"
	"voyago/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T) (*Engine, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "coupons.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEngine(db, &logger), db
}

func validCoupon(code string) *models.Coupon {
	return &models.Coupon{
		Code:         code,
		DiscountType: models.DiscountPercentage,
		Value:        10,
		ServiceTypes: []string{models.ServiceTypeAll},
		ValidFrom:    time.Now().Add(-time.Hour),
		ValidTo:      time.Now().Add(24 * time.Hour),
		IsActive:     true,
	}
}

func TestValidateDiscountComputation(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	c := validCoupon("SAVE10")
	c.MaxDiscountAmount = 500
	require.NoError(t, db.CreateCoupon(ctx, c))

	// 10% of 10000 is 1000, capped at 500
	_, result, err := e.Validate(ctx, "SAVE10", 1, models.ResourceHotel, 10000)
	require.NoError(t, err)
	assert.Equal(t, 500.0, result.DiscountAmount)
	assert.Equal(t, 9500.0, result.FinalAmount)

	// Below the cap the raw percentage applies
	_, result, err = e.Validate(ctx, "SAVE10", 1, models.ResourceHotel, 3000)
	require.NoError(t, err)
	assert.Equal(t, 300.0, result.DiscountAmount)
	assert.Equal(t, 2700.0, result.FinalAmount)
}

func TestValidateFixedDiscount(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	c := validCoupon("FLAT200")
	c.DiscountType = models.DiscountFixed
	c.Value = 200
	require.NoError(t, db.CreateCoupon(ctx, c))

	_, result, err := e.Validate(ctx, "FLAT200", 1, models.ResourceBus, 1000)
	require.NoError(t, err)
	assert.Equal(t, 200.0, result.DiscountAmount)
	assert.Equal(t, 800.0, result.FinalAmount)

	// Fixed value larger than the order floors the final amount at zero
	_, result, err = e.Validate(ctx, "FLAT200", 1, models.ResourceBus, 150)
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.DiscountAmount)
	assert.Equal(t, 0.0, result.FinalAmount)
}

func TestValidateRejections(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		_, _, err := e.Validate(ctx, "NOPE", 1, models.ResourceBus, 100)
		assert.ErrorIs(t, err, database.ErrCouponNotFound)
	})

	t.Run("Inactive", func(t *testing.T) {
		c := validCoupon("OFF")
		c.IsActive = false
		require.NoError(t, db.CreateCoupon(ctx, c))

		_, _, err := e.Validate(ctx, "OFF", 1, models.ResourceBus, 100)
		assert.ErrorIs(t, err, database.ErrCouponInactive)
	})

	t.Run("NotYetValid", func(t *testing.T) {
		c := validCoupon("SOON")
		c.ValidFrom = time.Now().Add(time.Hour)
		require.NoError(t, db.CreateCoupon(ctx, c))

		_, _, err := e.Validate(ctx, "SOON", 1, models.ResourceBus, 100)
		assert.ErrorIs(t, err, database.ErrCouponNotYetValid)
	})

	t.Run("Expired", func(t *testing.T) {
		c := validCoupon("LATE")
		c.ValidTo = time.Now().Add(-time.Hour)
		require.NoError(t, db.CreateCoupon(ctx, c))

		_, _, err := e.Validate(ctx, "LATE", 1, models.ResourceBus, 100)
		assert.ErrorIs(t, err, database.ErrCouponExpired)
	})

	t.Run("ServiceMismatch", func(t *testing.T) {
		c := validCoupon("BUSONLY")
		c.ServiceTypes = []string{models.ResourceBus}
		require.NoError(t, db.CreateCoupon(ctx, c))

		_, _, err := e.Validate(ctx, "BUSONLY", 1, models.ResourceHotel, 100)
		assert.ErrorIs(t, err, database.ErrCouponServiceMismatch)

		_, _, err = e.Validate(ctx, "BUSONLY", 1, models.ResourceBus, 100)
		assert.NoError(t, err)
	})

	t.Run("BelowMinimum", func(t *testing.T) {
		c := validCoupon("BIG")
		c.MinOrderAmount = 1000
		require.NoError(t, db.CreateCoupon(ctx, c))

		_, _, err := e.Validate(ctx, "BIG", 1, models.ResourceBus, 999)
		assert.ErrorIs(t, err, database.ErrCouponBelowMinimum)
	})

	t.Run("AlreadyUsed", func(t *testing.T) {
		c := validCoupon("ONCE")
		require.NoError(t, db.CreateCoupon(ctx, c))
		require.NoError(t, e.ApplyUsage(ctx, c.ID, 42, 1))

		_, _, err := e.Validate(ctx, "ONCE", 42, models.ResourceBus, 100)
		assert.ErrorIs(t, err, database.ErrCouponAlreadyUsed)

		// Other users are unaffected
		_, _, err = e.Validate(ctx, "ONCE", 43, models.ResourceBus, 100)
		assert.NoError(t, err)
	})

	t.Run("LimitReached", func(t *testing.T) {
		c := validCoupon("CAP1")
		c.UsageLimit = 1
		require.NoError(t, db.CreateCoupon(ctx, c))
		require.NoError(t, e.ApplyUsage(ctx, c.ID, 50, 2))

		_, _, err := e.Validate(ctx, "CAP1", 51, models.ResourceBus, 100)
		assert.ErrorIs(t, err, database.ErrCouponLimitReached)
	})
}

func TestApplyUsageIdempotenceAndLimit(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	c := validCoupon("DOUBLE")
	require.NoError(t, db.CreateCoupon(ctx, c))

	require.NoError(t, e.ApplyUsage(ctx, c.ID, 7, 100))
	err := e.ApplyUsage(ctx, c.ID, 7, 101)
	assert.ErrorIs(t, err, database.ErrCouponAlreadyUsed)

	got, err := db.GetCouponByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UsedCount)
}

func TestApplyUsageConcurrentLimit(t *testing.T) {
	e, db := setupEngine(t)
	ctx := context.Background()

	c := validCoupon("RACE")
	c.UsageLimit = 1
	require.NoError(t, db.CreateCoupon(ctx, c))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(userID int64) {
			defer wg.Done()
			results <- e.ApplyUsage(ctx, c.ID, userID, userID)
		}(int64(i + 1))
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount, "usage limit 1 admits exactly one redemption")

	got, err := db.GetCouponByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UsedCount)
}

func TestDiscountSumsToOriginal(t *testing.T) {
	c := validCoupon("X")
	c.Value = 33
	for _, amount := range []float64{0, 0.01, 99.99, 1234.56, 10000} {
		r := Discount(c, amount)
		assert.InDelta(t, amount, r.DiscountAmount+r.FinalAmount, 0.001)
		assert.GreaterOrEqual(t, r.FinalAmount, 0.0)
	}
}
