package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/models"
	"github.com/noah-isme/roombook-api/internal/queue"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
)

type sweeperRepository interface {
	MarkStartDue(ctx context.Context, now time.Time) ([]models.Booking, error)
	MarkEndDue(ctx context.Context, now time.Time) ([]models.Booking, error)
}

// SweeperService advances booking states against wall-clock time on a
// fixed cadence. Status is the source of truth: each cycle only flips
// rows whose status does not yet reflect the clock, so a delayed or
// repeated sweep never re-fires notifications for transitions already
// applied. A failing row or room is logged and skipped; the next cycle
// retries.
type SweeperService struct {
	bookings    sweeperRepository
	occupancy   occupancySyncer
	notifier    notifier
	broadcaster broadcaster
	metrics     *MetricsService
	interval    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewSweeperService constructs SweeperService.
func NewSweeperService(bookings sweeperRepository, occupancy occupancySyncer, notif notifier, bcast broadcaster, metrics *MetricsService, interval time.Duration, logger *zap.Logger) *SweeperService {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{
		bookings:    bookings,
		occupancy:   occupancy,
		notifier:    notif,
		broadcaster: bcast,
		metrics:     metrics,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *SweeperService) WithClock(now func() time.Time) *SweeperService {
	if now != nil {
		s.now = now
	}
	return s
}

// Run drives Tick on the configured interval until the context ends.
func (s *SweeperService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("sweep cycle failed", zap.Error(err))
			}
		}
	}
}

// Tick performs one sweep cycle: start-due bookings become ongoing,
// end-due bookings become finished, and every affected room has its
// occupancy re-derived. Tick is idempotent; calling it twice in a row
// produces the same state as once.
func (s *SweeperService) Tick(ctx context.Context) error {
	now := s.now().UTC()
	affectedRooms := make(map[models.RoomKey]struct{})
	var firstErr error

	started, err := s.bookings.MarkStartDue(ctx, now)
	if err != nil {
		s.metrics.IncSweepError()
		firstErr = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition start-due bookings")
		s.logger.Error("start-due sweep failed", zap.Error(err))
	}
	s.metrics.AddSweeperTransitions("confirmed_to_ongoing", len(started))
	for i := range started {
		s.announce(ctx, started[i], queue.KindBookingStarted)
		affectedRooms[models.RoomKey{RoomNumber: started[i].RoomNumber, BuildingNumber: started[i].BuildingNumber}] = struct{}{}
	}

	finished, err := s.bookings.MarkEndDue(ctx, now)
	if err != nil {
		s.metrics.IncSweepError()
		if firstErr == nil {
			firstErr = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition end-due bookings")
		}
		s.logger.Error("end-due sweep failed", zap.Error(err))
	}
	s.metrics.AddSweeperTransitions("ongoing_to_finished", len(finished))
	for i := range finished {
		s.announce(ctx, finished[i], queue.KindBookingEnded)
		affectedRooms[models.RoomKey{RoomNumber: finished[i].RoomNumber, BuildingNumber: finished[i].BuildingNumber}] = struct{}{}
	}

	for key := range affectedRooms {
		if _, err := s.occupancy.Sync(ctx, key.RoomNumber, key.BuildingNumber); err != nil {
			s.metrics.IncSweepError()
			s.logger.Warn("occupancy sync during sweep failed",
				zap.String("room", key.RoomNumber),
				zap.Int("building", key.BuildingNumber),
				zap.Error(err),
			)
		}
	}

	if len(started) > 0 || len(finished) > 0 {
		s.logger.Info("sweep cycle applied transitions",
			zap.Int("started", len(started)),
			zap.Int("finished", len(finished)),
		)
	}
	return firstErr
}

func (s *SweeperService) announce(ctx context.Context, booking models.Booking, kind queue.NotificationKind) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, kind, booking, []string{booking.OwnerID})
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastBookingUpdate(ctx, booking.OwnerID, booking); err != nil {
			s.logger.Warn("booking broadcast during sweep failed", zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
}
