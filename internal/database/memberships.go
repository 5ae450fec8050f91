package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voyago/internal/models"
)

func (db *DB) CreateMembership(ctx context.Context, m *models.Membership) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO memberships (tour_id, user_id, status, message, requested_at) VALUES (?, ?, ?, ?, ?)`,
		m.TourID, m.UserID, models.MemberPending, m.Message, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.ID = id
	m.Status = models.MemberPending
	m.RequestedAt = now
	return nil
}

func (db *DB) GetMembership(ctx context.Context, tourID, userID int64) (*models.Membership, error) {
	m := &models.Membership{}
	var message sql.NullString
	var decidedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, tour_id, user_id, status, message, requested_at, decided_at
         FROM memberships WHERE tour_id = ? AND user_id = ?`,
		tourID, userID,
	).Scan(&m.ID, &m.TourID, &m.UserID, &m.Status, &message, &m.RequestedAt, &decidedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Message = message.String
	if decidedAt.Valid {
		m.DecidedAt = &decidedAt.Time
	}
	return m, nil
}

// ApproveMembership flips a pending request to approved only while the
// approved head count is still below maxMembers. The capacity check and the
// status flip are one statement, so two hosts cannot hand out the last slot
// twice.
func (db *DB) ApproveMembership(ctx context.Context, tourID, userID, maxMembers int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE memberships SET status = ?, decided_at = ?
         WHERE tour_id = ? AND user_id = ? AND status = ?
           AND (SELECT COUNT(*) FROM memberships WHERE tour_id = ? AND status = ?) < ?`,
		models.MemberApproved, time.Now(),
		tourID, userID, models.MemberPending,
		tourID, models.MemberApproved, maxMembers,
	)
	if err != nil {
		return fmt.Errorf("failed to approve membership: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	// Nothing updated: distinguish a full group from a bad request.
	m, err := db.GetMembership(ctx, tourID, userID)
	if err != nil {
		return err
	}
	if m.Status != models.MemberPending {
		return ErrMembershipDecided
	}
	return ErrGroupFull
}

// RejectMembership flips a pending or approved membership to rejected.
// Rejecting an approved member frees exactly one slot, because the occupied
// count is derived from the remaining approved rows.
func (db *DB) RejectMembership(ctx context.Context, tourID, userID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE memberships SET status = ?, decided_at = ?
         WHERE tour_id = ? AND user_id = ? AND status IN (?, ?)`,
		models.MemberRejected, time.Now(), tourID, userID, models.MemberPending, models.MemberApproved,
	)
	if err != nil {
		return fmt.Errorf("failed to reject membership: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	m, err := db.GetMembership(ctx, tourID, userID)
	if err != nil {
		return err
	}
	if m.Status == models.MemberRejected {
		return ErrMembershipDecided
	}
	return fmt.Errorf("failed to reject membership %d/%d", tourID, userID)
}

// DeleteMembership removes a user's membership row (self-leave). Removing an
// approved row frees exactly one slot, because the occupied count is always
// derived from the remaining approved rows.
func (db *DB) DeleteMembership(ctx context.Context, tourID, userID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM memberships WHERE tour_id = ? AND user_id = ?`,
		tourID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// ApprovedMemberCount is the authoritative occupied-slot count for a group tour.
func (db *DB) ApprovedMemberCount(ctx context.Context, tourID int64) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE tour_id = ? AND status = ?`,
		tourID, models.MemberApproved,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count approved members: %w", err)
	}
	return n, nil
}

func (db *DB) GetMemberships(ctx context.Context, tourID int64) ([]*models.Membership, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, tour_id, user_id, status, message, requested_at, decided_at
         FROM memberships WHERE tour_id = ? ORDER BY requested_at ASC, id ASC`,
		tourID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get memberships: %w", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		var message sql.NullString
		var decidedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.TourID, &m.UserID, &m.Status, &message, &m.RequestedAt, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Message = message.String
		if decidedAt.Valid {
			m.DecidedAt = &decidedAt.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
