// Package broadcast pushes real-time updates to connected clients via
// Redis pub/sub channels consumed by the websocket gateway.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/models"
)

const (
	roomStatusChannel    = "room.status"
	bookingUpdateChannel = "booking.update"
)

// RoomStatusMessage announces a room display status change.
type RoomStatusMessage struct {
	RoomNumber     string            `json:"room_number"`
	BuildingNumber int               `json:"building_number"`
	Status         models.RoomStatus `json:"status"`
}

// BookingUpdateMessage announces a booking mutation to its owner.
type BookingUpdateMessage struct {
	OwnerID string         `json:"owner_id"`
	Booking models.Booking `json:"booking"`
}

// RedisBroadcaster publishes updates over Redis pub/sub. Publishing is
// fire-and-forget; errors are surfaced for logging only.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster constructs a broadcaster.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: client, logger: logger}
}

// BroadcastRoomStatus publishes a room status change.
func (b *RedisBroadcaster) BroadcastRoomStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus) error {
	return b.publish(ctx, roomStatusChannel, RoomStatusMessage{
		RoomNumber:     roomNumber,
		BuildingNumber: buildingNumber,
		Status:         status,
	})
}

// BroadcastBookingUpdate publishes a booking change for its owner.
func (b *RedisBroadcaster) BroadcastBookingUpdate(ctx context.Context, ownerID string, booking models.Booking) error {
	return b.publish(ctx, bookingUpdateChannel, BookingUpdateMessage{OwnerID: ownerID, Booking: booking})
}

func (b *RedisBroadcaster) publish(ctx context.Context, channel string, payload interface{}) error {
	if b.client == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}
	if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	b.logger.Debug("broadcast published", zap.String("channel", channel))
	return nil
}
