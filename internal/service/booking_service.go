package service

import (
	"context"
	"errors"
	"time"

	"voyago/internal/database"
	"voyago/internal/domain"
	"voyago/internal/events"
	"voyago/internal/metrics"
	"voyago/internal/models"
	"voyago/internal/policy"

	"github.com/rs/zerolog"
)

var (
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	ErrNotAuthorized        = errors.New("actor is not authorized for this transition")
	ErrGroupTourBooking     = errors.New("group tours are joined through membership requests")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
)

// allowedTransitions is the full lifecycle. Terminal statuses have no
// outgoing edges; everything else is rejected up front.
var allowedTransitions = map[string]map[string]bool{
	models.StatusPending: {
		models.StatusConfirmed: true,
		models.StatusCancelled: true,
		models.StatusRejected:  true,
	},
	models.StatusConfirmed: {
		models.StatusCancelled: true,
		models.StatusCompleted: true,
	},
}

// CreateBookingRequest carries everything a new booking needs. Amount is
// the quoted total before any discount.
type CreateBookingRequest struct {
	RequesterID   int64
	RequesterName string
	Phone         string
	ResourceID    int64
	Date          time.Time
	CheckIn       time.Time
	CheckOut      time.Time
	Quantity      int64
	Seats         []string
	Amount        float64
	CouponCode    string
	Comment       string
}

type BookingService struct {
	bookings       domain.BookingStore
	catalog        domain.ResourceCatalog
	ledger         domain.InventoryLedger
	coupons        domain.CouponEngine
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewBookingService(bookings domain.BookingStore, catalog domain.ResourceCatalog, ledger domain.InventoryLedger, coupons domain.CouponEngine, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		bookings:       bookings,
		catalog:        catalog,
		ledger:         ledger,
		coupons:        coupons,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

func (s *BookingService) ValidateBookingDate(date time.Time) error {
	// Дата не должна быть в прошлом
	if date.Before(time.Now().AddDate(0, 0, -1)) {
		return database.ErrPastDate
	}

	maxDate := time.Now().AddDate(0, 0, s.maxBookingDays)
	if date.After(maxDate) {
		return database.ErrDateTooFar
	}

	return nil
}

// CreateBooking validates the request, applies the coupon, places the
// capacity hold and records the booking. The reservation is compensated
// if any later step fails, so a failed create never leaks capacity.
// Coupon usage is consumed last, after the booking row exists.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	res, err := s.catalog.GetResource(req.ResourceID)
	if err != nil {
		return nil, err
	}
	if res.Type == models.ResourceGroupTour {
		return nil, ErrGroupTourBooking
	}
	if req.Quantity <= 0 && len(req.Seats) == 0 {
		return nil, ErrInvalidQuantity
	}

	switch res.Type {
	case models.ResourceHotel:
		if err := s.ValidateBookingDate(req.CheckIn); err != nil {
			return nil, err
		}
	default:
		if err := s.ValidateBookingDate(req.Date); err != nil {
			return nil, err
		}
	}

	var (
		cpn      *models.Coupon
		discount = &models.DiscountResult{FinalAmount: req.Amount}
	)
	if req.CouponCode != "" {
		cpn, discount, err = s.coupons.Validate(ctx, req.CouponCode, req.RequesterID, res.Type, req.Amount)
		if err != nil {
			return nil, err
		}
	}

	reservation, err := s.ledger.Reserve(ctx, models.ReserveRequest{
		ResourceID: req.ResourceID,
		Date:       req.Date,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Quantity:   req.Quantity,
		Seats:      req.Seats,
	})
	if err != nil {
		metrics.IncReservation(res.Type, "failed")
		return nil, err
	}
	metrics.IncReservation(res.Type, "ok")

	// Bus seats confirm immediately; hotels and tours wait for the owner.
	status := models.StatusPending
	if res.Type == models.ResourceBus {
		status = models.StatusConfirmed
	}

	booking := &models.Booking{
		RequesterID:    req.RequesterID,
		RequesterName:  req.RequesterName,
		Phone:          req.Phone,
		ResourceID:     res.ID,
		ResourceType:   res.Type,
		ResourceName:   res.Name,
		Date:           req.Date,
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
		Quantity:       reservation.Quantity,
		Seats:          reservation.Seats,
		OriginalAmount: req.Amount,
		DiscountAmount: discount.DiscountAmount,
		FinalAmount:    discount.FinalAmount,
		CouponCode:     req.CouponCode,
		ReservationID:  reservation.ID,
		Status:         status,
		PaymentStatus:  models.PaymentPaid,
		Comment:        req.Comment,
	}
	if cpn != nil {
		booking.CouponID = cpn.ID
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		s.compensateReservation(ctx, reservation.ID)
		return nil, err
	}

	if cpn != nil {
		if err := s.coupons.ApplyUsage(ctx, cpn.ID, req.RequesterID, booking.ID); err != nil {
			s.compensateReservation(ctx, reservation.ID)
			if cErr := s.bookings.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCancelled); cErr != nil {
				s.logger.Error().Err(cErr).Int64("booking_id", booking.ID).Msg("Failed to cancel booking after coupon failure")
			}
			return nil, err
		}
		metrics.IncCouponRedemption()
		s.publishEvent(events.EventCouponRedeemed, *booking, "system", 0)
	}

	s.publishEvent(events.EventBookingCreated, *booking, "system", 0)
	s.enqueueSync(ctx, *booking, "upsert")

	return booking, nil
}

// Transition moves a booking along the lifecycle. The version argument is
// the version the actor last read; a stale version fails with
// ErrConcurrentModification and releases nothing.
func (s *BookingService) Transition(ctx context.Context, bookingID, version int64, toStatus string, actorID int64, actorRole string) error {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if !allowedTransitions[booking.Status][toStatus] {
		return ErrTransitionNotAllowed
	}

	res, err := s.catalog.GetResource(booking.ResourceID)
	if err != nil {
		return err
	}
	if err := s.authorize(booking, res, toStatus, actorID, actorRole); err != nil {
		return err
	}

	if err := s.bookings.UpdateBookingStatusWithVersion(ctx, bookingID, version, toStatus); err != nil {
		return err
	}
	metrics.IncTransition(toStatus)

	eventType := events.EventBookingConfirmed
	switch toStatus {
	case models.StatusCancelled, models.StatusRejected:
		eventType = events.EventBookingCancelled
		if toStatus == models.StatusRejected {
			eventType = events.EventBookingRejected
		}
		s.releaseHold(ctx, booking)
		s.applyRefund(ctx, booking, actorRole, res)
	case models.StatusCompleted:
		eventType = events.EventBookingCompleted
	}

	updated, err := s.bookings.GetBooking(ctx, bookingID)
	if err == nil {
		s.publishEvent(eventType, *updated, actorRole, actorID)
		s.enqueueSync(ctx, *updated, "update_status")
	}

	return nil
}

// CancellationQuote reports what a cancellation by this actor would refund
// right now, without changing anything.
func (s *BookingService) CancellationQuote(ctx context.Context, bookingID int64, actorRole string) (float64, float64, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return 0, 0, err
	}
	if booking.IsTerminal() {
		return 0, 0, ErrTransitionNotAllowed
	}
	res, err := s.catalog.GetResource(booking.ResourceID)
	if err != nil {
		return 0, 0, err
	}
	pct := policy.CancellationPercentage(booking, actorRole, res, time.Now())
	return pct, policy.RefundAmount(booking, pct), nil
}

// EndTour completes every confirmed booking on a tour and releases all of
// its holds, bringing the occupied slot count back to zero.
func (s *BookingService) EndTour(ctx context.Context, tourID, actorID int64, actorRole string) (int, error) {
	res, err := s.catalog.GetResource(tourID)
	if err != nil {
		return 0, err
	}
	if !ownerOrAdmin(res, actorID, actorRole) {
		return 0, ErrNotAuthorized
	}

	confirmed, err := s.bookings.GetBookingsForResource(ctx, tourID, models.StatusConfirmed)
	if err != nil {
		return 0, err
	}
	for _, b := range confirmed {
		if err := s.bookings.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusCompleted); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to complete booking at tour end")
			continue
		}
		metrics.IncTransition(models.StatusCompleted)
		s.publishEvent(events.EventBookingCompleted, *b, actorRole, actorID)
		s.enqueueSync(ctx, *b, "update_status")
	}

	released, err := s.ledger.ReleaseAllForResource(ctx, tourID)
	if err != nil {
		return released, err
	}

	if s.eventBus != nil {
		if pubErr := s.eventBus.PublishJSON(events.EventTourEnded, map[string]int64{"tour_id": tourID, "ended_by": actorID}); pubErr != nil {
			s.logger.Error().Err(pubErr).Int64("tour_id", tourID).Msg("publish event error")
		}
	}
	return released, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.bookings.GetBooking(ctx, id)
}

func (s *BookingService) GetUserBookings(ctx context.Context, requesterID int64) ([]*models.Booking, error) {
	return s.bookings.GetUserBookings(ctx, requesterID)
}

func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.bookings.GetBookingsByDateRange(ctx, start, end)
}

// authorize enforces who may perform each transition: requesters may
// cancel their own bookings, resource owners confirm, reject and complete
// theirs, administrators may do anything.
func (s *BookingService) authorize(b *models.Booking, res *models.Resource, toStatus string, actorID int64, actorRole string) error {
	if actorRole == models.RoleAdmin {
		return nil
	}
	switch toStatus {
	case models.StatusCancelled:
		if actorRole == models.RoleRequester && actorID == b.RequesterID {
			return nil
		}
	case models.StatusConfirmed, models.StatusRejected, models.StatusCompleted:
		if actorRole == models.RoleOwner && actorID == res.OwnerID {
			return nil
		}
	}
	return ErrNotAuthorized
}

// releaseHold frees the booking's reservation exactly once. A hold already
// released elsewhere is fine; anything else is logged and not retried.
func (s *BookingService) releaseHold(ctx context.Context, b *models.Booking) {
	if b.ReservationID == "" {
		return
	}
	err := s.ledger.Release(ctx, b.ReservationID)
	if err != nil && !errors.Is(err, database.ErrAlreadyReleased) {
		s.logger.Error().Err(err).
			Int64("booking_id", b.ID).
			Str("reservation_id", b.ReservationID).
			Msg("Failed to release reservation")
	}
}

func (s *BookingService) applyRefund(ctx context.Context, b *models.Booking, actorRole string, res *models.Resource) {
	if b.PaymentStatus != models.PaymentPaid {
		return
	}
	pct := policy.CancellationPercentage(b, actorRole, res, time.Now())
	amount := policy.RefundAmount(b, pct)
	if err := s.bookings.SetBookingRefund(ctx, b.ID, amount, models.PaymentRefunded); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Float64("refund", amount).Msg("Failed to record refund")
	}
}

func (s *BookingService) compensateReservation(ctx context.Context, reservationID string) {
	if err := s.ledger.Release(ctx, reservationID); err != nil && !errors.Is(err, database.ErrAlreadyReleased) {
		s.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("Failed to compensate reservation")
	}
}

func (s *BookingService) publishEvent(eventType string, booking models.Booking, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		RequesterID:   booking.RequesterID,
		RequesterName: booking.RequesterName,
		ResourceID:    booking.ResourceID,
		ResourceName:  booking.ResourceName,
		ResourceType:  booking.ResourceType,
		Status:        booking.Status,
		Date:          booking.Date,
		RefundAmount:  booking.RefundAmount,
		Comment:       booking.Comment,
		ChangedBy:     changedBy,
		ChangedByID:   changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	if err := s.sheetsWorker.EnqueueBooking(ctx, taskType, &booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func ownerOrAdmin(res *models.Resource, actorID int64, actorRole string) bool {
	if actorRole == models.RoleAdmin {
		return true
	}
	return actorRole == models.RoleOwner && actorID == res.OwnerID
}
