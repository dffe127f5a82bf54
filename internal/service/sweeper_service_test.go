package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/models"
	"github.com/noah-isme/roombook-api/internal/queue"
)

// sweeperStoreStub mirrors the bulk conditional UPDATE semantics: each
// call flips exactly the rows whose status lags the clock and returns
// only those rows.
type sweeperStoreStub struct {
	mu       sync.Mutex
	bookings []*models.Booking
	startErr error
	endErr   error
}

func (s *sweeperStoreStub) MarkStartDue(ctx context.Context, now time.Time) ([]models.Booking, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped []models.Booking
	for _, b := range s.bookings {
		if b.StartDue(now) {
			b.Status = models.BookingStatusOngoing
			b.UpdatedAt = now
			flipped = append(flipped, *b)
		}
	}
	return flipped, nil
}

func (s *sweeperStoreStub) MarkEndDue(ctx context.Context, now time.Time) ([]models.Booking, error) {
	if s.endErr != nil {
		return nil, s.endErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped []models.Booking
	for _, b := range s.bookings {
		if b.EndDue(now) {
			b.Status = models.BookingStatusFinished
			b.UpdatedAt = now
			flipped = append(flipped, *b)
		}
	}
	return flipped, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSweeperTickLifecycle(t *testing.T) {
	// Room 101 booked 09:00-10:00. At 09:00 the sweep marks it ongoing
	// and the room booked; shortly after 10:00 it marks it finished and
	// the room available again.
	booking := &models.Booking{
		ID:             "booking-1",
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		OwnerID:        "user-1",
		Status:         models.BookingStatusConfirmed,
	}
	store := &sweeperStoreStub{bookings: []*models.Booking{booking}}
	occupancy := &occupancyStub{}
	notif := &notifierStub{}
	svc := NewSweeperService(store, occupancy, notif, &broadcastStub{}, nil, time.Second, zap.NewNop())

	svc.WithClock(fixedClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.BookingStatusOngoing, booking.Status)
	assert.Equal(t, []queue.NotificationKind{queue.KindBookingStarted}, notif.kinds())
	assert.Equal(t, 1, occupancy.syncCount())

	svc.WithClock(fixedClock(time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)))
	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.BookingStatusFinished, booking.Status)
	assert.Equal(t, []queue.NotificationKind{queue.KindBookingStarted, queue.KindBookingEnded}, notif.kinds())
	assert.Equal(t, 2, occupancy.syncCount())
}

func TestSweeperTickIdempotent(t *testing.T) {
	booking := &models.Booking{
		ID:             "booking-1",
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusConfirmed,
	}
	store := &sweeperStoreStub{bookings: []*models.Booking{booking}}
	occupancy := &occupancyStub{}
	notif := &notifierStub{}
	svc := NewSweeperService(store, occupancy, notif, &broadcastStub{}, nil, time.Second, zap.NewNop()).
		WithClock(fixedClock(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))

	require.NoError(t, svc.Tick(context.Background()))
	require.NoError(t, svc.Tick(context.Background()))

	// second tick found nothing lagging the clock: no duplicate
	// notification, no further room sync
	assert.Equal(t, []queue.NotificationKind{queue.KindBookingStarted}, notif.kinds())
	assert.Equal(t, 1, occupancy.syncCount())
	assert.Equal(t, models.BookingStatusOngoing, booking.Status)
}

func TestSweeperTickHandlesBothEdgesInOneCycle(t *testing.T) {
	starting := &models.Booking{
		ID:             "booking-1",
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusConfirmed,
	}
	ending := &models.Booking{
		ID:             "booking-2",
		RoomNumber:     "202",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusOngoing,
	}
	store := &sweeperStoreStub{bookings: []*models.Booking{starting, ending}}
	occupancy := &occupancyStub{}
	svc := NewSweeperService(store, occupancy, &notifierStub{}, &broadcastStub{}, nil, time.Second, zap.NewNop()).
		WithClock(fixedClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.BookingStatusOngoing, starting.Status)
	assert.Equal(t, models.BookingStatusFinished, ending.Status)
	assert.Equal(t, 2, occupancy.syncCount())
}

func TestSweeperTickContinuesAfterStartError(t *testing.T) {
	ending := &models.Booking{
		ID:             "booking-2",
		RoomNumber:     "202",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusOngoing,
	}
	store := &sweeperStoreStub{
		bookings: []*models.Booking{ending},
		startErr: errors.New("db down"),
	}
	svc := NewSweeperService(store, &occupancyStub{}, &notifierStub{}, &broadcastStub{}, nil, time.Second, zap.NewNop()).
		WithClock(fixedClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	err := svc.Tick(context.Background())
	require.Error(t, err)
	// the end-due pass still ran despite the start-due failure
	assert.Equal(t, models.BookingStatusFinished, ending.Status)
}

func TestSweeperTickSyncErrorDoesNotAbort(t *testing.T) {
	booking := &models.Booking{
		ID:             "booking-1",
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusConfirmed,
	}
	store := &sweeperStoreStub{bookings: []*models.Booking{booking}}
	occupancy := &occupancyStub{err: errors.New("redis down")}
	svc := NewSweeperService(store, occupancy, &notifierStub{}, &broadcastStub{}, nil, time.Second, zap.NewNop()).
		WithClock(fixedClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	// sync failures are logged and skipped; the transition itself stands
	require.NoError(t, svc.Tick(context.Background()))
	assert.Equal(t, models.BookingStatusOngoing, booking.Status)
}
