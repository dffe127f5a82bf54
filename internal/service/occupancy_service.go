package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/models"
	"github.com/noah-isme/roombook-api/internal/repository"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
)

type roomDirectory interface {
	FindByNumber(ctx context.Context, roomNumber string, buildingNumber int) (*models.Room, error)
	SetDerivedStatus(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, status models.RoomStatus, at time.Time) (bool, error)
}

type activeBookingReader interface {
	HasActiveAt(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, now time.Time, excludeID string) (bool, error)
}

type broadcaster interface {
	BroadcastRoomStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus) error
	BroadcastBookingUpdate(ctx context.Context, ownerID string, booking models.Booking) error
}

// OccupancyService derives a room's display status from its bookings and
// the operator-set maintenance flag, and keeps the stored status in sync.
// Status is always re-derived from booking state, never incremented or
// decremented, so a missed side effect heals on the next sync.
type OccupancyService struct {
	rooms       roomDirectory
	bookings    activeBookingReader
	cache       repository.Cache
	broadcaster broadcaster
	metrics     *MetricsService
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewOccupancyService constructs OccupancyService.
func NewOccupancyService(rooms roomDirectory, bookings activeBookingReader, cache repository.Cache, bcast broadcaster, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *OccupancyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccupancyService{
		rooms:       rooms,
		bookings:    bookings,
		cache:       cache,
		broadcaster: bcast,
		metrics:     metrics,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *OccupancyService) WithClock(now func() time.Time) *OccupancyService {
	if now != nil {
		s.now = now
	}
	return s
}

// Project derives the current display status: maintenance overrides
// everything, otherwise booked iff an active booking covers now.
func (s *OccupancyService) Project(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error) {
	room, err := s.rooms.FindByNumber(ctx, roomNumber, buildingNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if room.Status == models.RoomStatusMaintenance {
		return models.RoomStatusMaintenance, nil
	}

	occupied, err := s.bookings.HasActiveAt(ctx, nil, roomNumber, buildingNumber, s.now().UTC(), "")
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive occupancy")
	}
	if occupied {
		return models.RoomStatusBooked, nil
	}
	return models.RoomStatusAvailable, nil
}

// Status serves the read path with a cache in front of Project. A cache
// failure degrades to a fresh projection.
func (s *OccupancyService) Status(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error) {
	key := repository.RoomStatusKey(roomNumber, buildingNumber)
	if s.cache != nil {
		var cached models.RoomStatus
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.ObserveCacheLookup(true)
			return cached, nil
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Warn("room status cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.ObserveCacheLookup(false)
	}

	status, err := s.Project(ctx, roomNumber, buildingNumber)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, status, s.cacheTTL); err != nil {
			s.logger.Warn("room status cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return status, nil
}

// Sync re-derives the room status and writes it back when it differs,
// invalidating the cache and broadcasting the change. Maintenance rooms
// are left untouched. Returns the derived status.
func (s *OccupancyService) Sync(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error) {
	status, err := s.Project(ctx, roomNumber, buildingNumber)
	if err != nil {
		return "", err
	}

	s.invalidate(ctx, roomNumber, buildingNumber)

	if status == models.RoomStatusMaintenance {
		return status, nil
	}

	changed, err := s.rooms.SetDerivedStatus(ctx, nil, roomNumber, buildingNumber, status, s.now().UTC())
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room status")
	}
	if changed && s.broadcaster != nil {
		if err := s.broadcaster.BroadcastRoomStatus(ctx, roomNumber, buildingNumber, status); err != nil {
			s.logger.Warn("room status broadcast failed",
				zap.String("room", roomNumber),
				zap.Int("building", buildingNumber),
				zap.Error(err),
			)
		}
	}
	return status, nil
}

func (s *OccupancyService) invalidate(ctx context.Context, roomNumber string, buildingNumber int) {
	if s.cache == nil {
		return
	}
	key := repository.RoomStatusKey(roomNumber, buildingNumber)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("room status cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
