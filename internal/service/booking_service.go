package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/dto"
	"github.com/noah-isme/roombook-api/internal/models"
	"github.com/noah-isme/roombook-api/internal/queue"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
)

type bookingRepository interface {
	WithRoomLock(ctx context.Context, keys []models.RoomKey, fn func(exec sqlx.ExtContext) error) error
	FindConflict(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, start, end time.Time, excludeID string) (*models.Booking, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.BookingStatus, at time.Time) (bool, error)
	Delete(ctx context.Context, id, ownerID string) (bool, error)
}

type roomReader interface {
	FindByNumber(ctx context.Context, roomNumber string, buildingNumber int) (*models.Room, error)
}

type occupancySyncer interface {
	Sync(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error)
}

type notifier interface {
	Notify(ctx context.Context, kind queue.NotificationKind, booking models.Booking, recipients []string)
}

// BookingService owns the booking lifecycle: it guards creation and swap
// behind the conflict detector, enforces the transition table, and runs
// the side-effect shell (occupancy sync, notification, broadcast, cache
// invalidation) after the booking row has been committed. The booking
// row is the durable source of truth; side effects are best-effort and
// re-derivable by the sweeper.
type BookingService struct {
	bookings    bookingRepository
	rooms       roomReader
	occupancy   occupancySyncer
	notifier    notifier
	broadcaster broadcaster
	metrics     *MetricsService
	locks       *roomLocks
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewBookingService constructs BookingService.
func NewBookingService(bookings bookingRepository, rooms roomReader, occupancy occupancySyncer, notif notifier, bcast broadcaster, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:    bookings,
		rooms:       rooms,
		occupancy:   occupancy,
		notifier:    notif,
		broadcaster: bcast,
		metrics:     metrics,
		locks:       newRoomLocks(),
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	if now != nil {
		s.now = now
	}
	return s
}

// Create books a room for the requested window. Conflict detection and
// row insertion run inside one per-room critical section so concurrent
// requests for the same room cannot both pass the check.
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest, ownerID, ownerName string) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	bookingDate, err := time.Parse("2006-01-02", req.BookingDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid booking date")
	}
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	room, err := s.rooms.FindByNumber(ctx, req.RoomNumber, req.BuildingNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room or building not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if room.Status == models.RoomStatusMaintenance {
		return nil, appErrors.Clone(appErrors.ErrRoomMaintenance, "room is under maintenance")
	}

	key := models.RoomKey{RoomNumber: req.RoomNumber, BuildingNumber: req.BuildingNumber}
	unlock := s.locks.Lock(key)
	defer unlock()

	booking := &models.Booking{
		RoomNumber:     req.RoomNumber,
		BuildingNumber: req.BuildingNumber,
		BookingDate:    bookingDate,
		StartTime:      start,
		EndTime:        end,
		OwnerID:        ownerID,
		OwnerName:      ownerName,
		Subject:        req.Subject,
		OccupantCount:  req.OccupantCount,
		Notes:          req.Notes,
		Status:         models.BookingStatusConfirmed,
	}

	err = s.bookings.WithRoomLock(ctx, []models.RoomKey{key}, func(exec sqlx.ExtContext) error {
		blocking, err := s.bookings.FindConflict(ctx, exec, req.RoomNumber, req.BuildingNumber, start, end, "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
		}
		if blocking != nil {
			s.metrics.IncBookingConflict()
			return conflictError(blocking)
		}
		return s.bookings.Create(ctx, exec, booking)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room or building not found")
		}
		return nil, normalizeError(err, "failed to create booking")
	}

	s.metrics.IncBookingCreated()
	s.finishMutation(ctx, *booking, queue.KindBookingCreated)
	return booking, nil
}

// Get loads a single booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// List returns bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Cancel moves an active booking owned by the caller into cancelled.
// The conditional status update tolerates a concurrent sweeper flip
// (confirmed -> ongoing) by retrying against the fresh state once.
func (s *BookingService) Cancel(ctx context.Context, id, ownerID string) (*models.Booking, error) {
	for attempt := 0; attempt < 2; attempt++ {
		booking, err := s.ownedBooking(ctx, id, ownerID)
		if err != nil {
			return nil, err
		}
		if !booking.Status.CanTransition(models.BookingStatusCancelled) {
			return nil, appErrors.Clone(appErrors.ErrIllegalState, fmt.Sprintf("booking is %s and cannot be cancelled", booking.Status))
		}

		now := s.now().UTC()
		updated, err := s.bookings.UpdateStatus(ctx, nil, id, booking.Status, models.BookingStatusCancelled, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
		}
		if !updated {
			continue
		}

		booking.Status = models.BookingStatusCancelled
		booking.UpdatedAt = now
		s.finishMutation(ctx, *booking, queue.KindBookingCancelled)
		return booking, nil
	}
	return nil, appErrors.Clone(appErrors.ErrIllegalState, "booking state changed concurrently")
}

// Delete removes a non-ongoing booking owned by the caller and re-syncs
// the room's occupancy.
func (s *BookingService) Delete(ctx context.Context, id, ownerID string) error {
	booking, err := s.ownedBooking(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if booking.Status == models.BookingStatusOngoing {
		return appErrors.Clone(appErrors.ErrIllegalState, "an ongoing booking cannot be deleted")
	}

	deleted, err := s.bookings.Delete(ctx, id, ownerID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}

	if _, err := s.occupancy.Sync(ctx, booking.RoomNumber, booking.BuildingNumber); err != nil {
		s.logger.Warn("occupancy sync after delete failed",
			zap.String("room", booking.RoomNumber),
			zap.Int("building", booking.BuildingNumber),
			zap.Error(err),
		)
	}
	return nil
}

// Swap replaces the room of an active booking, keeping its window. The
// destination conflict check, the replacement insert and the source flip
// to swapped commit in a single transaction; a crash mid-swap leaves the
// original booking untouched.
func (s *BookingService) Swap(ctx context.Context, id string, req dto.SwapBookingRequest, ownerID string) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}

	source, err := s.ownedBooking(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if !source.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrIllegalState, fmt.Sprintf("booking is %s and cannot be swapped", source.Status))
	}
	if source.RoomNumber == req.DestRoomNumber && source.BuildingNumber == req.DestBuildingNumber {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination room must differ from the current room")
	}

	destRoom, err := s.rooms.FindByNumber(ctx, req.DestRoomNumber, req.DestBuildingNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "destination room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination room")
	}
	if destRoom.Status == models.RoomStatusMaintenance {
		return nil, appErrors.Clone(appErrors.ErrRoomMaintenance, "destination room is under maintenance")
	}

	sourceKey := models.RoomKey{RoomNumber: source.RoomNumber, BuildingNumber: source.BuildingNumber}
	destKey := models.RoomKey{RoomNumber: req.DestRoomNumber, BuildingNumber: req.DestBuildingNumber}
	unlock := s.locks.Lock(sourceKey, destKey)
	defer unlock()

	replacement := &models.Booking{
		RoomNumber:     req.DestRoomNumber,
		BuildingNumber: req.DestBuildingNumber,
		BookingDate:    source.BookingDate,
		StartTime:      source.StartTime,
		EndTime:        source.EndTime,
		OwnerID:        source.OwnerID,
		OwnerName:      source.OwnerName,
		Subject:        source.Subject,
		OccupantCount:  source.OccupantCount,
		Notes:          source.Notes,
		Status:         source.Status,
	}

	err = s.bookings.WithRoomLock(ctx, []models.RoomKey{sourceKey, destKey}, func(exec sqlx.ExtContext) error {
		blocking, err := s.bookings.FindConflict(ctx, exec, req.DestRoomNumber, req.DestBuildingNumber, source.StartTime, source.EndTime, source.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check destination conflicts")
		}
		if blocking != nil {
			s.metrics.IncBookingConflict()
			return conflictError(blocking)
		}
		if err := s.bookings.Create(ctx, exec, replacement); err != nil {
			return err
		}
		flipped, err := s.bookings.UpdateStatus(ctx, exec, source.ID, source.Status, models.BookingStatusSwapped, s.now().UTC())
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark booking swapped")
		}
		if !flipped {
			return appErrors.Clone(appErrors.ErrIllegalState, "booking state changed concurrently")
		}
		return nil
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "destination room not found")
		}
		return nil, normalizeError(err, "failed to swap booking")
	}

	source.Status = models.BookingStatusSwapped
	s.finishMutation(ctx, *source, queue.KindBookingSwapped)
	if _, err := s.occupancy.Sync(ctx, replacement.RoomNumber, replacement.BuildingNumber); err != nil {
		s.logger.Warn("occupancy sync for destination failed",
			zap.String("room", replacement.RoomNumber),
			zap.Int("building", replacement.BuildingNumber),
			zap.Error(err),
		)
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastBookingUpdate(ctx, replacement.OwnerID, *replacement); err != nil {
			s.logger.Warn("booking broadcast failed", zap.String("booking_id", replacement.ID), zap.Error(err))
		}
	}
	return replacement, nil
}

// ownedBooking loads a booking and verifies ownership. A foreign booking
// is reported as not found rather than forbidden.
func (s *BookingService) ownedBooking(ctx context.Context, id, ownerID string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	return booking, nil
}

// finishMutation runs the side-effect shell after a committed mutation.
// Failures are logged and swallowed; the sweeper re-derives occupancy on
// its next cycle.
func (s *BookingService) finishMutation(ctx context.Context, booking models.Booking, kind queue.NotificationKind) {
	if _, err := s.occupancy.Sync(ctx, booking.RoomNumber, booking.BuildingNumber); err != nil {
		s.logger.Warn("occupancy sync failed",
			zap.String("room", booking.RoomNumber),
			zap.Int("building", booking.BuildingNumber),
			zap.Error(err),
		)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, kind, booking, []string{booking.OwnerID})
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastBookingUpdate(ctx, booking.OwnerID, booking); err != nil {
			s.logger.Warn("booking broadcast failed", zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
}

// conflictError names the blocking booking so the caller can pick
// another room or time.
func conflictError(blocking *models.Booking) *appErrors.Error {
	msg := fmt.Sprintf("room %s in building %d is already booked %s-%s by %s",
		blocking.RoomNumber,
		blocking.BuildingNumber,
		blocking.StartTime.UTC().Format("15:04"),
		blocking.EndTime.UTC().Format("15:04"),
		blocking.OwnerName,
	)
	return appErrors.Clone(appErrors.ErrBookingConflict, msg)
}

// normalizeError passes typed errors through and wraps everything else
// as internal.
func normalizeError(err error, message string) error {
	if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
