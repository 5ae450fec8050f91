// Package policy holds the refund rules as pure functions. Nothing here
// touches storage; callers pass in the booking facts and get back a
// percentage or an amount.
package policy

import (
	"math"
	"time"

	"voyago/internal/models"
)

// CancellationPercentage returns the refund percentage for a cancellation
// or rejection, based on who acts and what is being cancelled.
//
// Administrators always refund in full. A requester cancelling their own
// booking keeps the standard partial rate, except for hotels where the
// resource's own refund policy decides from the time remaining before
// check-in. The hotel window intentionally subsumes the flat self-cancel
// rate: when a hotel declares a policy, that policy governs its guests'
// cancellations, whoever initiates them. A hotel owner rejecting a pending
// booking refunds at the partial rate.
func CancellationPercentage(b *models.Booking, actorRole string, res *models.Resource, now time.Time) float64 {
	if actorRole == models.RoleAdmin {
		return models.RefundPercentAdminCancel
	}
	if actorRole == models.RoleOwner {
		return models.RefundPercentOwnerReject
	}
	if b.ResourceType == models.ResourceHotel && res != nil && res.RefundPolicy != nil {
		return HotelCancellationPercentage(res.RefundPolicy, b.CheckIn, now)
	}
	return models.RefundPercentRequesterCancel
}

// HotelCancellationPercentage applies a hotel's tiered refund policy.
// More than FullRefundHours before check-in refunds 100%, less than
// NoRefundHours refunds nothing, anything between refunds the partial
// percentage.
func HotelCancellationPercentage(p *models.HotelRefundPolicy, checkIn, now time.Time) float64 {
	hoursLeft := checkIn.Sub(now).Hours()
	switch {
	case hoursLeft >= float64(p.FullRefundHours):
		return 100
	case hoursLeft <= float64(p.NoRefundHours):
		return 0
	default:
		return p.PartialRefundPercentage
	}
}

// RefundAmount computes the refund for a booking at the given percentage.
// The base is the amount actually paid after discounts.
func RefundAmount(b *models.Booking, percentage float64) float64 {
	return Round2(b.FinalAmount * percentage / 100)
}

// Round2 rounds to two decimal places, the precision money is stored at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
