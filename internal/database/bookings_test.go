package database

import (
	"context"
	"testing"
	"time"

	"voyago/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busBooking(requesterID int64, date time.Time) *models.Booking {
	return &models.Booking{
		RequesterID:    requesterID,
		RequesterName:  "Anna",
		Phone:          "79991234567",
		ResourceID:     1,
		ResourceType:   models.ResourceBus,
		ResourceName:   "Coast Express",
		Date:           date,
		Quantity:       2,
		Seats:          []string{"1", "2"},
		OriginalAmount: 500,
		FinalAmount:    500,
		ReservationID:  "res-1",
		Status:         models.StatusConfirmed,
		PaymentStatus:  models.PaymentPaid,
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	b := busBooking(100, date)
	b.CouponCode = "SAVE10"
	b.CouponID = 9
	b.Comment = "window side"
	require.NoError(t, db.CreateBooking(ctx, b))
	require.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.RequesterName, got.RequesterName)
	assert.Equal(t, []string{"1", "2"}, got.Seats)
	assert.Equal(t, "2026-03-10", got.Date.Format(models.DateFormat))
	assert.Equal(t, "SAVE10", got.CouponCode)
	assert.Equal(t, int64(9), got.CouponID)
	assert.Equal(t, "window side", got.Comment)
	assert.Equal(t, int64(1), got.Version)

	_, err = db.GetBooking(ctx, 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := busBooking(100, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, db.CreateBooking(ctx, b))

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusCancelled))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, b.Version+1, got.Version)

	// Replaying the same transition with the old version loses
	err = db.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err = db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestSetBookingRefund(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := busBooking(100, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	b.FinalAmount = 8500
	require.NoError(t, db.CreateBooking(ctx, b))

	require.NoError(t, db.SetBookingRefund(ctx, b.ID, 5950, models.PaymentRefunded))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5950.0, got.RefundAmount)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)

	assert.ErrorIs(t, db.SetBookingRefund(ctx, 999, 1, models.PaymentRefunded), ErrBookingNotFound)
}

func TestBookingQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, db.CreateBooking(ctx, busBooking(100, day(10))))
	require.NoError(t, db.CreateBooking(ctx, busBooking(100, day(12))))
	require.NoError(t, db.CreateBooking(ctx, busBooking(101, day(10))))

	hotel := &models.Booking{
		RequesterID: 102, RequesterName: "Boris", ResourceID: 2,
		ResourceType: models.ResourceHotel, ResourceName: "Sea View",
		CheckIn: day(11), CheckOut: day(13), Quantity: 1,
		FinalAmount: 8500, Status: models.StatusPending, PaymentStatus: models.PaymentPaid,
	}
	require.NoError(t, db.CreateBooking(ctx, hotel))

	t.Run("ByUser", func(t *testing.T) {
		mine, err := db.GetUserBookings(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})

	t.Run("ByResource", func(t *testing.T) {
		all, err := db.GetBookingsForResource(ctx, 1, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		confirmed, err := db.GetBookingsForResource(ctx, 1, models.StatusConfirmed)
		require.NoError(t, err)
		assert.Len(t, confirmed, 3)

		pending, err := db.GetBookingsForResource(ctx, 1, models.StatusPending)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("ByDateRange", func(t *testing.T) {
		got, err := db.GetBookingsByDateRange(ctx, day(10), day(11))
		require.NoError(t, err)
		assert.Len(t, got, 3) // two bus bookings plus the hotel by check-in
	})

	t.Run("DailyGroupsHotelByCheckIn", func(t *testing.T) {
		daily, err := db.GetDailyBookings(ctx, day(10), day(13))
		require.NoError(t, err)
		assert.Len(t, daily["2026-03-10"], 2)
		assert.Len(t, daily["2026-03-11"], 1)
		assert.Len(t, daily["2026-03-12"], 1)
	})
}
