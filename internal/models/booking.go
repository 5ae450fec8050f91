package models

import "time"

// Booking is the requester-facing record of a capacity hold. It is created
// through the booking lifecycle and mutated only via status transitions;
// bookings are never deleted.
type Booking struct {
	ID            int64     `json:"id"`
	RequesterID   int64     `json:"requester_id"`
	RequesterName string    `json:"requester_name"`
	Phone         string    `json:"phone"`
	ResourceID    int64     `json:"resource_id"`
	ResourceType  string    `json:"resource_type"`
	ResourceName  string    `json:"resource_name"`
	Date          time.Time `json:"date"`      // bus travel date / tour start date
	CheckIn       time.Time `json:"check_in"`  // hotels only
	CheckOut      time.Time `json:"check_out"` // hotels only
	Quantity      int64     `json:"quantity"`
	Seats         []string  `json:"seats,omitempty"` // buses only

	OriginalAmount float64 `json:"original_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
	RefundAmount   float64 `json:"refund_amount"`
	CouponCode     string  `json:"coupon_code,omitempty"`
	CouponID       int64   `json:"coupon_id,omitempty"`

	ReservationID string    `json:"reservation_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// IsTerminal reports whether no further status transition is allowed.
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCancelled || b.Status == StatusCompleted || b.Status == StatusRejected
}

// IsActive reports whether the booking still holds capacity.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// DateKey returns the occupancy key the booking reserves under.
func (b *Booking) DateKey() string {
	if b.ResourceType == ResourceHotel {
		return b.CheckIn.Format(DateFormat) + ".." + b.CheckOut.Format(DateFormat)
	}
	return b.Date.Format(DateFormat)
}
