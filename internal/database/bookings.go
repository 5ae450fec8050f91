package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"voyago/internal/models"
)

const bookingColumns = `id, requester_id, requester_name, phone, resource_id, resource_type, resource_name,
       date, check_in, check_out, quantity, seats,
       original_amount, discount_amount, final_amount, refund_amount, coupon_code, coupon_id,
       reservation_id, status, payment_status, comment, created_at, updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now()
	var dateStr, checkIn, checkOut any
	if !b.Date.IsZero() {
		dateStr = b.Date.Format(models.DateFormat)
	}
	if !b.CheckIn.IsZero() {
		checkIn = b.CheckIn.Format(models.DateFormat)
	}
	if !b.CheckOut.IsZero() {
		checkOut = b.CheckOut.Format(models.DateFormat)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO bookings (
            requester_id, requester_name, phone, resource_id, resource_type, resource_name,
            date, check_in, check_out, quantity, seats,
            original_amount, discount_amount, final_amount, refund_amount, coupon_code, coupon_id,
            reservation_id, status, payment_status, comment, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.RequesterID, b.RequesterName, b.Phone, b.ResourceID, b.ResourceType, b.ResourceName,
		dateStr, checkIn, checkOut, b.Quantity, strings.Join(b.Seats, ","),
		b.OriginalAmount, b.DiscountAmount, b.FinalAmount, b.RefundAmount, b.CouponCode, b.CouponID,
		b.ReservationID, b.Status, b.PaymentStatus, b.Comment, now, now, 1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// UpdateBookingStatusWithVersion moves a booking to a new status only if the
// caller saw the current version. A stale version means someone else won the
// transition race.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, time.Now(), id, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// SetBookingRefund records the refund granted by a cancellation.
func (db *DB) SetBookingRefund(ctx context.Context, id int64, refundAmount float64, paymentStatus string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET refund_amount = ?, payment_status = ?, updated_at = ? WHERE id = ?`,
		refundAmount, paymentStatus, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set booking refund: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (db *DB) GetUserBookings(ctx context.Context, requesterID int64) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE requester_id = ? ORDER BY created_at DESC`,
		requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	return scanBookings(rows)
}

// GetBookingsForResource returns bookings for one resource, optionally
// filtered by status.
func (db *DB) GetBookingsForResource(ctx context.Context, resourceID int64, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE resource_id = ?`
	args := []any{resourceID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource bookings: %w", err)
	}
	return scanBookings(rows)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE (date BETWEEN ? AND ?) OR (check_in BETWEEN ? AND ?)
         ORDER BY created_at ASC`,
		startDate.Format(models.DateFormat), endDate.Format(models.DateFormat),
		startDate.Format(models.DateFormat), endDate.Format(models.DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return scanBookings(rows)
}

// GetDailyBookings groups bookings in a range by their date key, for export.
func (db *DB) GetDailyBookings(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		key := b.Date.Format(models.DateFormat)
		if b.ResourceType == models.ResourceHotel {
			key = b.CheckIn.Format(models.DateFormat)
		}
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var dateStr, checkIn, checkOut, seats, couponCode, comment, phone sql.NullString
	var couponID sql.NullInt64
	err := row.Scan(
		&b.ID, &b.RequesterID, &b.RequesterName, &phone, &b.ResourceID, &b.ResourceType, &b.ResourceName,
		&dateStr, &checkIn, &checkOut, &b.Quantity, &seats,
		&b.OriginalAmount, &b.DiscountAmount, &b.FinalAmount, &b.RefundAmount, &couponCode, &couponID,
		&b.ReservationID, &b.Status, &b.PaymentStatus, &comment, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Phone = phone.String
	b.CouponCode = couponCode.String
	b.CouponID = couponID.Int64
	b.Comment = comment.String
	if dateStr.Valid && dateStr.String != "" {
		b.Date, _ = time.Parse(models.DateFormat, dateStr.String)
	}
	if checkIn.Valid && checkIn.String != "" {
		b.CheckIn, _ = time.Parse(models.DateFormat, checkIn.String)
	}
	if checkOut.Valid && checkOut.String != "" {
		b.CheckOut, _ = time.Parse(models.DateFormat, checkOut.String)
	}
	if seats.Valid && seats.String != "" {
		b.Seats = strings.Split(seats.String, ",")
	}
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()
	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
