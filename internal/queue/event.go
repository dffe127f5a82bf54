// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// NotificationKind identifies the booking lifecycle event being published.
type NotificationKind string

const (
	KindBookingCreated   NotificationKind = "booking.created"
	KindBookingCancelled NotificationKind = "booking.cancelled"
	KindBookingSwapped   NotificationKind = "booking.swapped"
	KindBookingStarted   NotificationKind = "booking.started"
	KindBookingEnded     NotificationKind = "booking.ended"
)

// BookingEvent is published once per lifecycle transition. It carries
// enough information for downstream consumers to notify users without
// querying the primary database.
type BookingEvent struct {
	Kind           NotificationKind `json:"kind"`
	BookingID      string           `json:"booking_id"`
	RoomNumber     string           `json:"room_number"`
	BuildingNumber int              `json:"building_number"`
	BookingDate    string           `json:"booking_date"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	OwnerID        string           `json:"owner_id"`
	OwnerName      string           `json:"owner_name"`
	Subject        string           `json:"subject"`
	Recipients     []string         `json:"recipients,omitempty"`
	EmittedAt      time.Time        `json:"emitted_at"`
}
