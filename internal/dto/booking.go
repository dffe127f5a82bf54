package dto

import (
	"time"

	"github.com/noah-isme/roombook-api/internal/models"
)

// CreateBookingRequest is the payload for creating an ad-hoc booking.
// Timestamps are RFC3339; BookingDate is the calendar date the window
// belongs to.
type CreateBookingRequest struct {
	RoomNumber     string    `json:"room_number" validate:"required"`
	BuildingNumber int       `json:"building_number" validate:"required,min=1"`
	BookingDate    string    `json:"booking_date" validate:"required,datetime=2006-01-02"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required"`
	Subject        string    `json:"subject" validate:"required,max=200"`
	OccupantCount  int       `json:"occupant_count" validate:"min=0"`
	Notes          string    `json:"notes" validate:"max=1000"`
}

// SwapBookingRequest moves an existing booking to a different room while
// keeping its time window.
type SwapBookingRequest struct {
	DestRoomNumber     string `json:"dest_room_number" validate:"required"`
	DestBuildingNumber int    `json:"dest_building_number" validate:"required,min=1"`
}

// BulkScheduleRequest is a recurrence rule expanded into individual
// booking attempts.
type BulkScheduleRequest struct {
	RoomNumber     string   `json:"room_number" validate:"required"`
	BuildingNumber int      `json:"building_number" validate:"required,min=1"`
	StartDate      string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	DurationMonths int      `json:"duration_months" validate:"required,min=1"`
	Weekdays       []string `json:"weekdays" validate:"required,min=1,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	StartTimeOfDay string   `json:"start_time_of_day" validate:"required,datetime=15:04"`
	EndTimeOfDay   string   `json:"end_time_of_day" validate:"required,datetime=15:04"`
	Subject        string   `json:"subject" validate:"required,max=200"`
	OccupantCount  int      `json:"occupant_count" validate:"min=0"`
	Notes          string   `json:"notes" validate:"max=1000"`
}

// SkippedOccurrence reports a bulk occurrence that was not created.
type SkippedOccurrence struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// BulkScheduleResult summarises a bulk expansion.
type BulkScheduleResult struct {
	Created      []models.Booking    `json:"created"`
	Skipped      []SkippedOccurrence `json:"skipped"`
	CreatedCount int                 `json:"created_count"`
	SkippedCount int                 `json:"skipped_count"`
}

// SetRoomStatusRequest sets the administrative room flag. Only the two
// operator-controlled values are accepted; booked is derived.
type SetRoomStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available maintenance"`
}

// RoomStatusResponse is the projected display status of a room.
type RoomStatusResponse struct {
	RoomNumber     string            `json:"room_number"`
	BuildingNumber int               `json:"building_number"`
	Status         models.RoomStatus `json:"status"`
}
