package domain

import (
	"context"
	"time"

	"voyago/internal/models"
)

// ResourceCatalog serves static resource definitions loaded at startup.
type ResourceCatalog interface {
	GetResource(id int64) (*models.Resource, error)
	GetResources() []models.Resource
	GetActiveResources(resourceType string) []models.Resource
}

// ReservationStore is the authoritative occupancy store. Every reserve
// method performs its capacity check and its write inside one transaction.
type ReservationStore interface {
	ResourceCatalog
	ReserveBus(ctx context.Context, resourceID int64, date time.Time, seats []string, quantity int64) (*models.Reservation, error)
	ReserveHotel(ctx context.Context, resourceID int64, checkIn, checkOut time.Time, quantity int64) (*models.Reservation, error)
	ReserveSlots(ctx context.Context, resourceID int64, quantity int64) (*models.Reservation, error)
	ReleaseReservation(ctx context.Context, reservationID string) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	BusAvailability(ctx context.Context, resourceID int64, date time.Time) (int64, error)
	HotelAvailability(ctx context.Context, resourceID int64, checkIn, checkOut time.Time) (int64, error)
	SlotAvailability(ctx context.Context, resourceID int64) (int64, error)
	BusAvailabilityForPeriod(ctx context.Context, resourceID int64, startDate time.Time, days int) ([]*models.Availability, error)
	ActiveReservationIDs(ctx context.Context, resourceID int64) ([]string, error)
	ApprovedMemberCount(ctx context.Context, tourID int64) (int64, error)
}

type BookingStore interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	SetBookingRefund(ctx context.Context, id int64, refundAmount float64, paymentStatus string) error
	GetUserBookings(ctx context.Context, requesterID int64) ([]*models.Booking, error)
	GetBookingsForResource(ctx context.Context, resourceID int64, status string) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
}

type CouponStore interface {
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error)
	SetCouponActive(ctx context.Context, id int64, active bool) error
	HasRedemption(ctx context.Context, couponID, userID int64) (bool, error)
	RedeemCoupon(ctx context.Context, couponID, userID, bookingID int64) error
	GetRedemptions(ctx context.Context, couponID int64) ([]*models.CouponRedemption, error)
}

type MembershipStore interface {
	ResourceCatalog
	CreateMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, tourID, userID int64) (*models.Membership, error)
	ApproveMembership(ctx context.Context, tourID, userID, maxMembers int64) error
	RejectMembership(ctx context.Context, tourID, userID int64) error
	DeleteMembership(ctx context.Context, tourID, userID int64) error
	ApprovedMemberCount(ctx context.Context, tourID int64) (int64, error)
	GetMemberships(ctx context.Context, tourID int64) ([]*models.Membership, error)
}

// LockRepository serializes writers per resource-date key. TryAcquire never
// blocks: a caller that cannot win the key immediately gets false and
// decides itself whether to retry.
type LockRepository interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// InventoryLedger is the single entry point for capacity changes.
type InventoryLedger interface {
	Reserve(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error)
	Release(ctx context.Context, reservationID string) error
	Availability(ctx context.Context, resourceID int64, req models.AvailabilityQuery) (int64, error)
	AvailabilityForPeriod(ctx context.Context, resourceID int64, startDate time.Time, days int) ([]*models.Availability, error)
	ReleaseAllForResource(ctx context.Context, resourceID int64) (int, error)
}

// CouponEngine validates codes and records redemptions.
type CouponEngine interface {
	Validate(ctx context.Context, code string, userID int64, serviceType string, amount float64) (*models.Coupon, *models.DiscountResult, error)
	ApplyUsage(ctx context.Context, couponID, userID, bookingID int64) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncWorker queues booking rows for back-office sync.
type SyncWorker interface {
	EnqueueBooking(ctx context.Context, taskType string, booking *models.Booking) error
}
