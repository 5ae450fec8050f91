package ledger

import (
	"context"
	"fmt"
	"time"

	"voyago/internal/database"
	"voyago/internal/domain"
	"voyago/internal/models"

	"github.com/rs/zerolog"
)

// Ledger is the single entry point for capacity changes. It serializes
// writers per lock key before entering the store, so two requests for the
// same bus-date, hotel or tour never interleave their check and write.
// The store re-checks capacity inside its own transaction, so even a lost
// lock cannot oversell; the lock only keeps contention off the database.
type Ledger struct {
	store      domain.ReservationStore
	members    domain.MembershipStore
	locks      domain.LockRepository
	logger     *zerolog.Logger
	retries    int
	retryDelay time.Duration
}

func New(store domain.ReservationStore, members domain.MembershipStore, locks domain.LockRepository, retries int, logger *zerolog.Logger) *Ledger {
	if retries <= 0 {
		retries = models.DefaultLockRetries
	}
	return &Ledger{
		store:      store,
		members:    members,
		locks:      locks,
		logger:     logger,
		retries:    retries,
		retryDelay: 50 * time.Millisecond,
	}
}

// Reserve validates the request against the resource type and places the
// hold. Group tours carry no reservations; their capacity is tracked
// through approved memberships.
func (l *Ledger) Reserve(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
	res, err := l.store.GetResource(req.ResourceID)
	if err != nil {
		return nil, err
	}

	key, err := lockKeyFor(res, req)
	if err != nil {
		return nil, err
	}

	var reserved *models.Reservation
	if err := l.withLock(ctx, key, func() error {
		var rerr error
		switch res.Type {
		case models.ResourceBus:
			reserved, rerr = l.store.ReserveBus(ctx, req.ResourceID, req.Date, req.Seats, req.Quantity)
		case models.ResourceHotel:
			reserved, rerr = l.store.ReserveHotel(ctx, req.ResourceID, req.CheckIn, req.CheckOut, req.Quantity)
		case models.ResourceTour:
			reserved, rerr = l.store.ReserveSlots(ctx, req.ResourceID, req.Quantity)
		}
		return rerr
	}); err != nil {
		return nil, err
	}
	return reserved, nil
}

func (l *Ledger) Release(ctx context.Context, reservationID string) error {
	return l.store.ReleaseReservation(ctx, reservationID)
}

// Availability reports free units for the window the query describes.
func (l *Ledger) Availability(ctx context.Context, resourceID int64, q models.AvailabilityQuery) (int64, error) {
	res, err := l.store.GetResource(resourceID)
	if err != nil {
		return 0, err
	}
	switch res.Type {
	case models.ResourceBus:
		return l.store.BusAvailability(ctx, resourceID, q.Date)
	case models.ResourceHotel:
		return l.store.HotelAvailability(ctx, resourceID, q.CheckIn, q.CheckOut)
	case models.ResourceTour:
		return l.store.SlotAvailability(ctx, resourceID)
	case models.ResourceGroupTour:
		approved, err := l.members.ApprovedMemberCount(ctx, resourceID)
		if err != nil {
			return 0, err
		}
		return res.TotalCapacity - approved, nil
	}
	return 0, fmt.Errorf("unknown resource type %q", res.Type)
}

// AvailabilityForPeriod builds the per-day calendar for a bus.
func (l *Ledger) AvailabilityForPeriod(ctx context.Context, resourceID int64, startDate time.Time, days int) ([]*models.Availability, error) {
	res, err := l.store.GetResource(resourceID)
	if err != nil {
		return nil, err
	}
	if res.Type != models.ResourceBus {
		return nil, fmt.Errorf("per-day availability is only defined for buses, got %q", res.Type)
	}
	return l.store.BusAvailabilityForPeriod(ctx, resourceID, startDate, days)
}

// ReleaseAllForResource releases every active hold on a resource and
// returns how many were released. Used when a tour ends.
func (l *Ledger) ReleaseAllForResource(ctx context.Context, resourceID int64) (int, error) {
	ids, err := l.store.ActiveReservationIDs(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, id := range ids {
		if err := l.store.ReleaseReservation(ctx, id); err != nil {
			return released, fmt.Errorf("failed to release reservation %s: %w", id, err)
		}
		released++
	}
	return released, nil
}

// withLock runs fn while holding key, retrying the acquisition a bounded
// number of times before giving up with ErrConcurrentModification.
func (l *Ledger) withLock(ctx context.Context, key string, fn func() error) error {
	for attempt := 0; attempt < l.retries; attempt++ {
		ok, err := l.locks.TryAcquire(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to acquire inventory lock: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.retryDelay):
			}
			continue
		}
		defer func() {
			if err := l.locks.Release(context.WithoutCancel(ctx), key); err != nil {
				l.logger.Error().Err(err).Str("key", key).Msg("Failed to release inventory lock")
			}
		}()
		return fn()
	}
	l.logger.Warn().Str("key", key).Msg("Inventory lock contention exhausted retries")
	return database.ErrConcurrentModification
}

func lockKeyFor(res *models.Resource, req models.ReserveRequest) (string, error) {
	switch res.Type {
	case models.ResourceBus:
		if req.Date.IsZero() {
			return "", fmt.Errorf("bus reservation requires a travel date")
		}
		return fmt.Sprintf("bus:%d:%s", res.ID, req.Date.Format(models.DateFormat)), nil
	case models.ResourceHotel:
		if req.CheckIn.IsZero() || req.CheckOut.IsZero() {
			return "", fmt.Errorf("hotel reservation requires check-in and check-out dates")
		}
		return fmt.Sprintf("hotel:%d", res.ID), nil
	case models.ResourceTour:
		return fmt.Sprintf("tour:%d", res.ID), nil
	case models.ResourceGroupTour:
		return "", fmt.Errorf("group tours are joined through membership requests, not reservations")
	}
	return "", fmt.Errorf("unknown resource type %q", res.Type)
}
