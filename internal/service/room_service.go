package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/models"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
)

type roomStatusStore interface {
	FindByNumber(ctx context.Context, roomNumber string, buildingNumber int) (*models.Room, error)
	SetStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus, at time.Time) error
}

type occupancyProjector interface {
	Status(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error)
	Sync(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error)
}

// RoomService exposes the room directory surface the engine needs: the
// projected display status and the operator-controlled maintenance flag.
type RoomService struct {
	rooms       roomStatusStore
	occupancy   occupancyProjector
	broadcaster broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoomService constructs RoomService.
func NewRoomService(rooms roomStatusStore, occupancy occupancyProjector, bcast broadcaster, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{rooms: rooms, occupancy: occupancy, broadcaster: bcast, logger: logger, now: time.Now}
}

// Status returns the projected display status of a room.
func (s *RoomService) Status(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error) {
	return s.occupancy.Status(ctx, roomNumber, buildingNumber)
}

// SetAdminStatus applies an operator decision: put the room under
// maintenance, or lift maintenance and let the booking-derived status
// take over again.
func (s *RoomService) SetAdminStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus) (models.RoomStatus, error) {
	if status != models.RoomStatusMaintenance && status != models.RoomStatusAvailable {
		return "", appErrors.Clone(appErrors.ErrValidation, "admin status must be available or maintenance")
	}

	if _, err := s.rooms.FindByNumber(ctx, roomNumber, buildingNumber); err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if err := s.rooms.SetStatus(ctx, roomNumber, buildingNumber, status, s.now().UTC()); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set room status")
	}

	derived, err := s.occupancy.Sync(ctx, roomNumber, buildingNumber)
	if err != nil {
		return "", err
	}
	if derived == models.RoomStatusMaintenance && s.broadcaster != nil {
		if err := s.broadcaster.BroadcastRoomStatus(ctx, roomNumber, buildingNumber, derived); err != nil {
			s.logger.Warn("room status broadcast failed",
				zap.String("room", roomNumber),
				zap.Int("building", buildingNumber),
				zap.Error(err),
			)
		}
	}
	return derived, nil
}
