package models

import "time"

// BookingStatus enumerates the booking lifecycle states.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusOngoing   BookingStatus = "ongoing"
	BookingStatusFinished  BookingStatus = "finished"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusSwapped   BookingStatus = "swapped"
)

// bookingTransitions is the closed set of legal lifecycle edges.
// Terminal states have no outgoing edges.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusConfirmed: {BookingStatusOngoing, BookingStatusCancelled, BookingStatusSwapped},
	BookingStatusOngoing:   {BookingStatusFinished, BookingStatusCancelled, BookingStatusSwapped},
}

// Valid reports whether the status is one of the known states.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusOngoing, BookingStatusFinished, BookingStatusCancelled, BookingStatusSwapped:
		return true
	}
	return false
}

// Active reports whether the status participates in conflict detection.
// Terminal bookings are historical and never block a window.
func (s BookingStatus) Active() bool {
	return s == BookingStatusConfirmed || s == BookingStatusOngoing
}

// Terminal reports whether the status is absorbing.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusFinished || s == BookingStatusCancelled || s == BookingStatusSwapped
}

// CanTransition reports whether moving from s to target is a legal edge.
func (s BookingStatus) CanTransition(target BookingStatus) bool {
	for _, to := range bookingTransitions[s] {
		if to == target {
			return true
		}
	}
	return false
}

// ActiveBookingStatuses lists statuses considered by the conflict detector,
// in the order used by repository queries.
var ActiveBookingStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusOngoing}

// Booking represents a reservation of a room for a half-open time window
// [StartTime, EndTime). Subject, occupant count and notes are immutable
// after creation; edits are modelled as cancel + recreate.
type Booking struct {
	ID             string        `db:"id" json:"id"`
	RoomNumber     string        `db:"room_number" json:"room_number"`
	BuildingNumber int           `db:"building_number" json:"building_number"`
	BookingDate    time.Time     `db:"booking_date" json:"booking_date"`
	StartTime      time.Time     `db:"start_time" json:"start_time"`
	EndTime        time.Time     `db:"end_time" json:"end_time"`
	OwnerID        string        `db:"owner_id" json:"owner_id"`
	OwnerName      string        `db:"owner_name" json:"owner_name"`
	Subject        string        `db:"subject" json:"subject"`
	OccupantCount  int           `db:"occupant_count" json:"occupant_count"`
	Notes          string        `db:"notes" json:"notes,omitempty"`
	Status         BookingStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Overlaps applies the half-open interval rule: [s1,e1) and [s2,e2)
// conflict iff s1 < e2 && s2 < e1. Touching endpoints do not conflict.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// OverlapsWindow reports whether the booking's window overlaps [start, end).
func (b *Booking) OverlapsWindow(start, end time.Time) bool {
	return Overlaps(b.StartTime, b.EndTime, start, end)
}

// ActiveAt reports whether this booking marks its room occupied at the
// given instant: ongoing, or confirmed with the window already begun.
func (b *Booking) ActiveAt(now time.Time) bool {
	switch b.Status {
	case BookingStatusOngoing:
		return true
	case BookingStatusConfirmed:
		return !now.Before(b.StartTime) && !now.After(b.EndTime)
	}
	return false
}

// StartDue reports whether a confirmed booking should transition to ongoing.
func (b *Booking) StartDue(now time.Time) bool {
	return b.Status == BookingStatusConfirmed && !now.Before(b.StartTime) && !now.After(b.EndTime)
}

// EndDue reports whether an ongoing booking should transition to finished.
func (b *Booking) EndDue(now time.Time) bool {
	return b.Status == BookingStatusOngoing && b.EndTime.Before(now)
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	RoomNumber     string
	BuildingNumber int
	Date           *time.Time
	OwnerID        string
	Status         BookingStatus
	Page           int
	PageSize       int
}
