package database

import "errors"

// Capacity errors.
var (
	ErrResourceNotFound       = errors.New("resource not found")
	ErrResourceInactive       = errors.New("resource is inactive")
	ErrInsufficientCapacity   = errors.New("insufficient capacity")
	ErrSeatTaken              = errors.New("seat already held for this date")
	ErrUnknownSeat            = errors.New("seat identifier not on this resource")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrAlreadyReleased        = errors.New("reservation already released")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Booking errors.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrPastDate        = errors.New("date is in the past")
	ErrDateTooFar      = errors.New("date is too far in the future")
)

// Coupon errors.
var (
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrCouponNotYetValid     = errors.New("coupon is not yet valid")
	ErrCouponExpired         = errors.New("coupon has expired")
	ErrCouponInactive        = errors.New("coupon is inactive")
	ErrCouponAlreadyUsed     = errors.New("coupon already used by this user")
	ErrCouponServiceMismatch = errors.New("coupon does not apply to this service type")
	ErrCouponBelowMinimum    = errors.New("amount is below the coupon minimum")
	ErrCouponLimitReached    = errors.New("coupon usage limit reached")
	ErrCouponCodeExists      = errors.New("coupon code already exists")
)

// Group tour errors.
var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrAlreadyMember      = errors.New("user already has a membership for this tour")
	ErrMembershipDecided  = errors.New("membership request already decided")
	ErrGroupFull          = errors.New("group tour is full")
)
