package models

import "time"

// Membership tracks one user's place in a group tour. The approved rows are
// the occupancy record for the tour: current member count is always derived
// from them, never kept as a bare counter.
type Membership struct {
	ID          int64      `json:"id"`
	TourID      int64      `json:"tour_id"`
	UserID      int64      `json:"user_id"`
	Status      string     `json:"status"` // pending, approved, rejected
	Message     string     `json:"message,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// IsDecided reports whether the host has already acted on the request.
func (m *Membership) IsDecided() bool {
	return m.Status != MemberPending
}
