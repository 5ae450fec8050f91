package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

const (
	ResourceBus       = "bus"
	ResourceHotel     = "hotel"
	ResourceTour      = "tour"
	ResourceGroupTour = "group_tour"
)

const (
	RoleRequester = "requester"
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
)

const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// ServiceTypeAll in a coupon's service type list matches any resource type.
const ServiceTypeAll = "all"

const (
	ReservationActive   = "active"
	ReservationReleased = "released"
)

const (
	MemberPending  = "pending"
	MemberApproved = "approved"
	MemberRejected = "rejected"
)

const (
	// RefundPercentRequesterCancel applies when the requester cancels their own booking.
	RefundPercentRequesterCancel = 70.0

	// RefundPercentAdminCancel applies when an administrator cancels any booking.
	RefundPercentAdminCancel = 100.0

	// RefundPercentOwnerReject applies when a hotel owner rejects a pending booking.
	RefundPercentOwnerReject = 70.0
)

const (
	DateFormat = "2006-01-02"

	// DefaultMaxBookingDays caps how far in the future a booking may start.
	DefaultMaxBookingDays = 365

	// DefaultLockTTL is how long a reservation key lock survives if a holder dies.
	DefaultLockTTLSeconds = 10

	// DefaultLockRetries bounds internal retries after losing a key race.
	DefaultLockRetries = 3

	// WorkerQueueSize is the in-memory sync queue buffer.
	WorkerQueueSize = 1000
)
