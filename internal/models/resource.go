package models

import (
	"strconv"
	"time"
)

// Resource is a bookable unit of capacity: a bus on a route, a hotel room
// type, or a tour. Capacity is fixed when the resource is defined; the
// catalog ships in resources.yaml and is loaded at startup.
type Resource struct {
	ID            int64              `yaml:"id" json:"id"`
	Type          string             `yaml:"type" json:"type"`
	Name          string             `yaml:"name" json:"name"`
	Description   string             `yaml:"description" json:"description,omitempty"`
	TotalCapacity int64              `yaml:"total_capacity" json:"total_capacity"`
	OwnerID       int64              `yaml:"owner_id" json:"owner_id"`
	SortOrder     int64              `yaml:"sort_order" json:"sort_order"`
	IsActive      bool               `yaml:"is_active" json:"is_active"`
	Seats         []string           `yaml:"seats,omitempty" json:"seats,omitempty"`
	RefundPolicy  *HotelRefundPolicy `yaml:"refund_policy,omitempty" json:"refund_policy,omitempty"`
	CreatedAt     time.Time          `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `yaml:"updated_at" json:"updated_at"`
}

// HotelRefundPolicy drives the cancellation-request refund window for a
// hotel room type.
type HotelRefundPolicy struct {
	FullRefundHours         int     `yaml:"full_refund_hours" json:"full_refund_hours"`
	NoRefundHours           int     `yaml:"no_refund_hours" json:"no_refund_hours"`
	PartialRefundPercentage float64 `yaml:"partial_refund_percentage" json:"partial_refund_percentage"`
}

// SeatIDs returns the seat identifiers for a bus resource. Buses defined
// without an explicit seat map get numbered seats "1".."N".
func (r *Resource) SeatIDs() []string {
	if len(r.Seats) > 0 {
		return r.Seats
	}
	seats := make([]string, 0, r.TotalCapacity)
	for i := int64(1); i <= r.TotalCapacity; i++ {
		seats = append(seats, strconv.FormatInt(i, 10))
	}
	return seats
}

// HasSeat reports whether id is a valid seat identifier on this resource.
func (r *Resource) HasSeat(id string) bool {
	for _, s := range r.SeatIDs() {
		if s == id {
			return true
		}
	}
	return false
}
