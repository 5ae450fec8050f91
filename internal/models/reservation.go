package models

import "time"

// Reservation is a successful capacity hold. It is the authoritative
// occupancy record: availability is always computed from active
// reservations, never from a separately maintained counter.
//
// A reservation is released exactly once; a second release is an error.
type Reservation struct {
	ID           string     `json:"id"`
	ResourceID   int64      `json:"resource_id"`
	ResourceType string     `json:"resource_type"`
	Date         time.Time  `json:"date"`      // buses
	CheckIn      time.Time  `json:"check_in"`  // hotels
	CheckOut     time.Time  `json:"check_out"` // hotels
	Quantity     int64      `json:"quantity"`
	Seats        []string   `json:"seats,omitempty"` // buses
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
}

// ReserveRequest describes a capacity hold. Date applies to buses,
// CheckIn/CheckOut to hotels; day tours and group tours use neither.
type ReserveRequest struct {
	ResourceID int64
	Date       time.Time
	CheckIn    time.Time
	CheckOut   time.Time
	Quantity   int64
	Seats      []string
}

// AvailabilityQuery selects which window to measure. Fields mirror
// ReserveRequest so callers can reuse the same values for both.
type AvailabilityQuery struct {
	Date     time.Time
	CheckIn  time.Time
	CheckOut time.Time
}

// Availability is a per-day occupancy snapshot for one resource.
type Availability struct {
	Date       time.Time `json:"date"`
	ResourceID int64     `json:"resource_id"`
	Booked     int64     `json:"booked"`
	Available  int64     `json:"available"`
}
