package policy

import (
	"testing"
	"time"

	"voyago/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCancellationPercentage(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("RequesterSelfCancel", func(t *testing.T) {
		b := &models.Booking{ResourceType: models.ResourceBus}
		got := CancellationPercentage(b, models.RoleRequester, nil, now)
		assert.Equal(t, 70.0, got)
	})

	t.Run("AdminCancel", func(t *testing.T) {
		b := &models.Booking{ResourceType: models.ResourceBus}
		got := CancellationPercentage(b, models.RoleAdmin, nil, now)
		assert.Equal(t, 100.0, got)
	})

	t.Run("OwnerReject", func(t *testing.T) {
		b := &models.Booking{ResourceType: models.ResourceHotel}
		got := CancellationPercentage(b, models.RoleOwner, nil, now)
		assert.Equal(t, 70.0, got)
	})

	t.Run("HotelRequesterUsesResourcePolicy", func(t *testing.T) {
		res := &models.Resource{
			Type: models.ResourceHotel,
			RefundPolicy: &models.HotelRefundPolicy{
				FullRefundHours:         24,
				NoRefundHours:           0,
				PartialRefundPercentage: 70,
			},
		}
		b := &models.Booking{
			ResourceType: models.ResourceHotel,
			CheckIn:      now.Add(30 * time.Hour),
		}
		got := CancellationPercentage(b, models.RoleRequester, res, now)
		assert.Equal(t, 100.0, got)
	})

	t.Run("HotelWithoutPolicyFallsBack", func(t *testing.T) {
		res := &models.Resource{Type: models.ResourceHotel}
		b := &models.Booking{ResourceType: models.ResourceHotel, CheckIn: now.Add(time.Hour)}
		got := CancellationPercentage(b, models.RoleRequester, res, now)
		assert.Equal(t, 70.0, got)
	})
}

func TestHotelCancellationPercentage(t *testing.T) {
	policy := &models.HotelRefundPolicy{
		FullRefundHours:         24,
		NoRefundHours:           0,
		PartialRefundPercentage: 70,
	}
	checkIn := time.Date(2026, 1, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		hoursLeft time.Duration
		want      float64
	}{
		{"WellBeforeFullRefundCutoff", 30 * time.Hour, 100},
		{"ExactlyAtFullRefundCutoff", 24 * time.Hour, 100},
		{"InsidePartialWindow", 10 * time.Hour, 70},
		{"JustBeforeCheckIn", time.Minute, 70},
		{"AtCheckIn", 0, 0},
		{"AfterCheckIn", -2 * time.Hour, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := checkIn.Add(-tt.hoursLeft)
			got := HotelCancellationPercentage(policy, checkIn, now)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("StrictNoRefundWindow", func(t *testing.T) {
		strict := &models.HotelRefundPolicy{
			FullRefundHours:         48,
			NoRefundHours:           12,
			PartialRefundPercentage: 50,
		}
		now := checkIn.Add(-6 * time.Hour)
		assert.Equal(t, 0.0, HotelCancellationPercentage(strict, checkIn, now))

		now = checkIn.Add(-24 * time.Hour)
		assert.Equal(t, 50.0, HotelCancellationPercentage(strict, checkIn, now))
	})
}

func TestRefundAmount(t *testing.T) {
	t.Run("PartialOfDiscountedAmount", func(t *testing.T) {
		// Paid 8500 after discount; 70% back is 5950.00
		b := &models.Booking{OriginalAmount: 10000, FinalAmount: 8500}
		assert.Equal(t, 5950.0, RefundAmount(b, 70))
	})

	t.Run("FullRefund", func(t *testing.T) {
		b := &models.Booking{FinalAmount: 1234.56}
		assert.Equal(t, 1234.56, RefundAmount(b, 100))
	})

	t.Run("NoRefund", func(t *testing.T) {
		b := &models.Booking{FinalAmount: 500}
		assert.Equal(t, 0.0, RefundAmount(b, 0))
	})

	t.Run("RoundsToCents", func(t *testing.T) {
		b := &models.Booking{FinalAmount: 99.99}
		assert.Equal(t, 69.99, RefundAmount(b, 70))
	})
}
