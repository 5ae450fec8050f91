package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"voyago/internal/models"

	"github.com/google/uuid"
)

// The reservations table (plus reservation_seats for buses) is the single
// authoritative occupancy record. Every availability figure is computed from
// it with the same predicates reserve uses; there is no denormalized
// "available" counter anywhere.

// ReserveBus holds seats on a bus for one travel date. When seats is empty,
// quantity seats are auto-assigned from the resource's seat map. Any
// requested seat already held for that date fails the whole reservation.
func (db *DB) ReserveBus(ctx context.Context, resourceID int64, date time.Time, seats []string, quantity int64) (*models.Reservation, error) {
	res, err := db.activeResource(resourceID, models.ResourceBus)
	if err != nil {
		return nil, err
	}
	if len(seats) > 0 {
		quantity = int64(len(seats))
		for _, s := range seats {
			if !res.HasSeat(s) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSeat, s)
			}
		}
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	dateStr := date.Format(models.DateFormat)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	held, err := heldSeats(ctx, tx, resourceID, dateStr)
	if err != nil {
		return nil, err
	}
	if int64(len(held))+quantity > res.TotalCapacity {
		return nil, ErrInsufficientCapacity
	}

	assigned := seats
	if len(assigned) == 0 {
		for _, s := range res.SeatIDs() {
			if _, taken := held[s]; taken {
				continue
			}
			assigned = append(assigned, s)
			if int64(len(assigned)) == quantity {
				break
			}
		}
		if int64(len(assigned)) < quantity {
			return nil, ErrInsufficientCapacity
		}
	} else {
		for _, s := range assigned {
			if _, taken := held[s]; taken {
				return nil, fmt.Errorf("%w: %s", ErrSeatTaken, s)
			}
		}
	}

	r := &models.Reservation{
		ID:           uuid.NewString(),
		ResourceID:   resourceID,
		ResourceType: models.ResourceBus,
		Date:         date,
		Quantity:     quantity,
		Seats:        assigned,
		Status:       models.ReservationActive,
		CreatedAt:    time.Now(),
	}

	if err := insertReservation(ctx, tx, r); err != nil {
		return nil, err
	}
	for _, s := range assigned {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reservation_seats (reservation_id, resource_id, date, seat) VALUES (?, ?, ?, ?)`,
			r.ID, resourceID, dateStr, s,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %s", ErrSeatTaken, s)
			}
			return nil, fmt.Errorf("failed to insert seat hold: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return r, nil
}

// ReserveHotel holds quantity rooms for a check-in/check-out interval.
// Occupancy is the sum of active reservations whose interval overlaps:
// newCheckIn <= existingCheckOut AND newCheckOut >= existingCheckIn.
func (db *DB) ReserveHotel(ctx context.Context, resourceID int64, checkIn, checkOut time.Time, quantity int64) (*models.Reservation, error) {
	res, err := db.activeResource(resourceID, models.ResourceHotel)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("check-out must be after check-in")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	occupied, err := overlappingQuantityTx(ctx, tx, resourceID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if res.TotalCapacity-occupied < quantity {
		return nil, ErrInsufficientCapacity
	}

	r := &models.Reservation{
		ID:           uuid.NewString(),
		ResourceID:   resourceID,
		ResourceType: models.ResourceHotel,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Quantity:     quantity,
		Status:       models.ReservationActive,
		CreatedAt:    time.Now(),
	}
	if err := insertReservation(ctx, tx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return r, nil
}

// ReserveSlots holds quantity slots on a tour. The tour itself is the date
// key: occupancy is the sum of all its active reservations.
func (db *DB) ReserveSlots(ctx context.Context, resourceID int64, quantity int64) (*models.Reservation, error) {
	res, err := db.activeResource(resourceID, models.ResourceTour)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var occupied int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM reservations WHERE resource_id = ? AND status = ?`,
		resourceID, models.ReservationActive,
	).Scan(&occupied)
	if err != nil {
		return nil, fmt.Errorf("failed to count occupied slots: %w", err)
	}
	if res.TotalCapacity-occupied < quantity {
		return nil, ErrInsufficientCapacity
	}

	r := &models.Reservation{
		ID:           uuid.NewString(),
		ResourceID:   resourceID,
		ResourceType: models.ResourceTour,
		Quantity:     quantity,
		Status:       models.ReservationActive,
		CreatedAt:    time.Now(),
	}
	if err := insertReservation(ctx, tx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return r, nil
}

// ReleaseReservation releases a hold exactly once. A second release returns
// ErrAlreadyReleased rather than silently clamping occupancy.
func (db *DB) ReleaseReservation(ctx context.Context, reservationID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, reservationID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrReservationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load reservation: %w", err)
	}
	if status == models.ReservationReleased {
		return ErrAlreadyReleased
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, released_at = ? WHERE id = ? AND status = ?`,
		models.ReservationReleased, time.Now(), reservationID, models.ReservationActive,
	)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyReleased
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_seats WHERE reservation_id = ?`, reservationID); err != nil {
		return fmt.Errorf("failed to free seat holds: %w", err)
	}

	return tx.Commit()
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r := &models.Reservation{}
	var dateStr, checkIn, checkOut sql.NullString
	var releasedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, resource_id, resource_type, date, check_in, check_out, quantity, status, created_at, released_at
         FROM reservations WHERE id = ?`, id,
	).Scan(&r.ID, &r.ResourceID, &r.ResourceType, &dateStr, &checkIn, &checkOut, &r.Quantity, &r.Status, &r.CreatedAt, &releasedAt)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if dateStr.Valid && dateStr.String != "" {
		r.Date, _ = time.Parse(models.DateFormat, dateStr.String)
	}
	if checkIn.Valid && checkIn.String != "" {
		r.CheckIn, _ = time.Parse(models.DateFormat, checkIn.String)
	}
	if checkOut.Valid && checkOut.String != "" {
		r.CheckOut, _ = time.Parse(models.DateFormat, checkOut.String)
	}
	if releasedAt.Valid {
		r.ReleasedAt = &releasedAt.Time
	}

	if r.ResourceType == models.ResourceBus {
		rows, err := db.QueryContext(ctx, `SELECT seat FROM reservation_seats WHERE reservation_id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load seats: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return nil, err
			}
			r.Seats = append(r.Seats, s)
		}
	}
	return r, nil
}

// BusAvailability returns free seat count for a bus on one travel date.
func (db *DB) BusAvailability(ctx context.Context, resourceID int64, date time.Time) (int64, error) {
	res, err := db.GetResource(resourceID)
	if err != nil {
		return 0, err
	}
	var held int64
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservation_seats WHERE resource_id = ? AND date = ?`,
		resourceID, date.Format(models.DateFormat),
	).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("failed to count held seats: %w", err)
	}
	return res.TotalCapacity - held, nil
}

// HotelAvailability returns free rooms for a check-in/check-out interval,
// using the same overlap predicate reserve uses.
func (db *DB) HotelAvailability(ctx context.Context, resourceID int64, checkIn, checkOut time.Time) (int64, error) {
	res, err := db.GetResource(resourceID)
	if err != nil {
		return 0, err
	}
	var occupied int64
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM reservations
         WHERE resource_id = ? AND status = ? AND check_in <= ? AND check_out >= ?`,
		resourceID, models.ReservationActive,
		checkOut.Format(models.DateFormat), checkIn.Format(models.DateFormat),
	).Scan(&occupied)
	if err != nil {
		return 0, fmt.Errorf("failed to sum overlapping reservations: %w", err)
	}
	return res.TotalCapacity - occupied, nil
}

// SlotAvailability returns free slots on a tour.
func (db *DB) SlotAvailability(ctx context.Context, resourceID int64) (int64, error) {
	res, err := db.GetResource(resourceID)
	if err != nil {
		return 0, err
	}
	var occupied int64
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM reservations WHERE resource_id = ? AND status = ?`,
		resourceID, models.ReservationActive,
	).Scan(&occupied)
	if err != nil {
		return 0, fmt.Errorf("failed to sum occupied slots: %w", err)
	}
	return res.TotalCapacity - occupied, nil
}

// BusAvailabilityForPeriod returns per-day free seat counts for calendars.
func (db *DB) BusAvailabilityForPeriod(ctx context.Context, resourceID int64, startDate time.Time, days int) ([]*models.Availability, error) {
	res, err := db.GetResource(resourceID)
	if err != nil {
		return nil, err
	}
	endDate := startDate.AddDate(0, 0, days-1)

	rows, err := db.QueryContext(ctx,
		`SELECT date, COUNT(*) FROM reservation_seats
         WHERE resource_id = ? AND date BETWEEN ? AND ?
         GROUP BY date`,
		resourceID, startDate.Format(models.DateFormat), endDate.Format(models.DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get availability batch: %w", err)
	}
	defer rows.Close()

	heldByDate := make(map[string]int64)
	for rows.Next() {
		var dateStr string
		var count int64
		if err := rows.Scan(&dateStr, &count); err != nil {
			return nil, err
		}
		heldByDate[dateStr] = count
	}

	out := make([]*models.Availability, 0, days)
	for i := 0; i < days; i++ {
		date := startDate.AddDate(0, 0, i)
		held := heldByDate[date.Format(models.DateFormat)]
		out = append(out, &models.Availability{
			Date:       date,
			ResourceID: resourceID,
			Booked:     held,
			Available:  res.TotalCapacity - held,
		})
	}
	return out, nil
}

// ActiveReservationIDs lists the active holds for one resource. Ending a
// tour releases them all, bringing its occupied slot count back to zero.
func (db *DB) ActiveReservationIDs(ctx context.Context, resourceID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM reservations WHERE resource_id = ? AND status = ?`,
		resourceID, models.ReservationActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active reservations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (db *DB) activeResource(id int64, wantType string) (*models.Resource, error) {
	res, err := db.GetResource(id)
	if err != nil {
		return nil, err
	}
	if res.Type != wantType {
		return nil, fmt.Errorf("%w: resource %d is %s, not %s", ErrResourceNotFound, id, res.Type, wantType)
	}
	if !res.IsActive {
		return nil, ErrResourceInactive
	}
	return res, nil
}

func insertReservation(ctx context.Context, tx *sql.Tx, r *models.Reservation) error {
	var dateStr, checkIn, checkOut any
	if !r.Date.IsZero() {
		dateStr = r.Date.Format(models.DateFormat)
	}
	if !r.CheckIn.IsZero() {
		checkIn = r.CheckIn.Format(models.DateFormat)
	}
	if !r.CheckOut.IsZero() {
		checkOut = r.CheckOut.Format(models.DateFormat)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (id, resource_id, resource_type, date, check_in, check_out, quantity, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ResourceID, r.ResourceType, dateStr, checkIn, checkOut, r.Quantity, r.Status, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func heldSeats(ctx context.Context, tx *sql.Tx, resourceID int64, dateStr string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seat FROM reservation_seats WHERE resource_id = ? AND date = ?`,
		resourceID, dateStr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query held seats: %w", err)
	}
	defer rows.Close()

	held := make(map[string]struct{})
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		held[s] = struct{}{}
	}
	return held, nil
}

func overlappingQuantityTx(ctx context.Context, tx *sql.Tx, resourceID int64, checkIn, checkOut time.Time) (int64, error) {
	var occupied int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM reservations
         WHERE resource_id = ? AND status = ? AND check_in <= ? AND check_out >= ?`,
		resourceID, models.ReservationActive,
		checkOut.Format(models.DateFormat), checkIn.Format(models.DateFormat),
	).Scan(&occupied)
	if err != nil {
		return 0, fmt.Errorf("failed to sum overlapping reservations: %w", err)
	}
	return occupied, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
