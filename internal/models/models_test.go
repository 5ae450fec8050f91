package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResourceSeatIDs(t *testing.T) {
	r := &Resource{Type: ResourceBus, TotalCapacity: 3}
	assert.Equal(t, []string{"1", "2", "3"}, r.SeatIDs())

	r.Seats = []string{"A1", "A2", "B1"}
	assert.Equal(t, []string{"A1", "A2", "B1"}, r.SeatIDs())

	assert.True(t, r.HasSeat("A2"))
	assert.False(t, r.HasSeat("C1"))
}

func TestCouponAppliesTo(t *testing.T) {
	c := &Coupon{ServiceTypes: []string{ResourceBus, ResourceHotel}}
	assert.True(t, c.AppliesTo(ResourceBus))
	assert.False(t, c.AppliesTo(ResourceTour))

	c.ServiceTypes = []string{ServiceTypeAll}
	assert.True(t, c.AppliesTo(ResourceTour))
	assert.True(t, c.AppliesTo(ResourceGroupTour))
}

func TestBookingTerminalStates(t *testing.T) {
	for _, status := range []string{StatusCancelled, StatusCompleted, StatusRejected} {
		b := &Booking{Status: status}
		assert.True(t, b.IsTerminal(), status)
		assert.False(t, b.IsActive(), status)
	}
	for _, status := range []string{StatusPending, StatusConfirmed} {
		b := &Booking{Status: status}
		assert.False(t, b.IsTerminal(), status)
		assert.True(t, b.IsActive(), status)
	}
}

func TestBookingDateKey(t *testing.T) {
	date := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	bus := &Booking{ResourceType: ResourceBus, Date: date}
	assert.Equal(t, "2026-01-10", bus.DateKey())

	hotel := &Booking{
		ResourceType: ResourceHotel,
		CheckIn:      date,
		CheckOut:     date.AddDate(0, 0, 2),
	}
	assert.Equal(t, "2026-01-10..2026-01-12", hotel.DateKey())
}
