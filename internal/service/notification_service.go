package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/models"
	"github.com/noah-isme/roombook-api/internal/queue"
	"github.com/noah-isme/roombook-api/pkg/config"
	"github.com/noah-isme/roombook-api/pkg/jobs"
)

type eventPublisher interface {
	Publish(ctx context.Context, event queue.BookingEvent) error
}

// NotificationService dispatches booking lifecycle events to the broker
// through a background worker pool. Delivery is best-effort with retries;
// a failed notification never fails the mutation that produced it.
type NotificationService struct {
	publisher eventPublisher
	queue     *jobs.Queue
	logger    *zap.Logger
}

// NewNotificationService builds the service and its dispatch queue.
func NewNotificationService(publisher eventPublisher, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{publisher: publisher, logger: logger}

	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})

	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Notify enqueues one event for the given lifecycle transition. Errors
// are logged and swallowed; the caller has already committed its change.
// Nil-safe so the engine runs unchanged with notifications disabled.
func (s *NotificationService) Notify(ctx context.Context, kind queue.NotificationKind, booking models.Booking, recipients []string) {
	if s == nil {
		return
	}
	event := queue.BookingEvent{
		Kind:           kind,
		BookingID:      booking.ID,
		RoomNumber:     booking.RoomNumber,
		BuildingNumber: booking.BuildingNumber,
		BookingDate:    booking.BookingDate.Format("2006-01-02"),
		StartTime:      booking.StartTime,
		EndTime:        booking.EndTime,
		OwnerID:        booking.OwnerID,
		OwnerName:      booking.OwnerName,
		Subject:        booking.Subject,
		Recipients:     recipients,
	}

	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(kind),
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("dropping notification",
			zap.String("kind", string(kind)),
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(queue.BookingEvent)
	if !ok {
		return fmt.Errorf("unexpected notification payload type %T", job.Payload)
	}
	return s.publisher.Publish(ctx, event)
}
