package models

import "time"

// RoomStatus is the derived display status of a room.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusBooked      RoomStatus = "booked"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

// Valid reports whether the status is one of the known states.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusAvailable, RoomStatusBooked, RoomStatusMaintenance:
		return true
	}
	return false
}

// RoomKey is the composite identity of a room.
type RoomKey struct {
	RoomNumber     string
	BuildingNumber int
}

// Less orders keys deterministically so multi-room lock acquisition
// cannot deadlock.
func (k RoomKey) Less(other RoomKey) bool {
	if k.BuildingNumber != other.BuildingNumber {
		return k.BuildingNumber < other.BuildingNumber
	}
	return k.RoomNumber < other.RoomNumber
}

// Room is a bookable room within a building. Status holds the current
// display status; maintenance is operator-set and is never overwritten
// by booking side effects.
type Room struct {
	RoomNumber     string     `db:"room_number" json:"room_number"`
	BuildingNumber int        `db:"building_number" json:"building_number"`
	Capacity       int        `db:"capacity" json:"capacity"`
	Status         RoomStatus `db:"status" json:"status"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
