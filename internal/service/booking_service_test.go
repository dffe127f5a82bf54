package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/roombook-api/internal/dto"
	"github.com/noah-isme/roombook-api/internal/models"
	"github.com/noah-isme/roombook-api/internal/queue"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
)

// bookingStoreStub keeps bookings in memory with the same conditional
// semantics as the SQL repository, so service-level concurrency and
// lifecycle behaviour can be exercised without a database.
type bookingStoreStub struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	seq      int
	lockErr  error
}

func newBookingStoreStub() *bookingStoreStub {
	return &bookingStoreStub{bookings: make(map[string]*models.Booking)}
}

func (s *bookingStoreStub) add(b models.Booking) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if b.ID == "" {
		b.ID = fmt.Sprintf("booking-%d", s.seq)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
	}
	stored := b
	s.bookings[b.ID] = &stored
	return &stored
}

func (s *bookingStoreStub) WithRoomLock(ctx context.Context, keys []models.RoomKey, fn func(exec sqlx.ExtContext) error) error {
	if s.lockErr != nil {
		return s.lockErr
	}
	s.mu.Lock()
	snapshot := make(map[string]*models.Booking, len(s.bookings))
	for id, b := range s.bookings {
		copied := *b
		snapshot[id] = &copied
	}
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.bookings = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *bookingStoreStub) FindConflict(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, start, end time.Time, excludeID string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*models.Booking
	for _, b := range s.bookings {
		if b.RoomNumber != roomNumber || b.BuildingNumber != buildingNumber {
			continue
		}
		if !b.Status.Active() {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if models.Overlaps(b.StartTime, b.EndTime, start, end) {
			matches = append(matches, b)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	found := *matches[0]
	return &found, nil
}

func (s *bookingStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	stored := s.add(*booking)
	booking.ID = stored.ID
	booking.CreatedAt = stored.CreatedAt
	booking.UpdatedAt = stored.CreatedAt
	return nil
}

func (s *bookingStoreStub) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *b
	return &found, nil
}

func (s *bookingStoreStub) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if filter.RoomNumber != "" && b.RoomNumber != filter.RoomNumber {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (s *bookingStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.BookingStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = at
	return true, nil
}

func (s *bookingStoreStub) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.OwnerID != ownerID {
		return false, nil
	}
	delete(s.bookings, id)
	return true, nil
}

func (s *bookingStoreStub) status(id string) models.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		return b.Status
	}
	return ""
}

type roomDirStub struct {
	mu    sync.Mutex
	rooms map[models.RoomKey]*models.Room
}

func newRoomDirStub(rooms ...models.Room) *roomDirStub {
	stub := &roomDirStub{rooms: make(map[models.RoomKey]*models.Room)}
	for _, room := range rooms {
		stored := room
		stub.rooms[models.RoomKey{RoomNumber: room.RoomNumber, BuildingNumber: room.BuildingNumber}] = &stored
	}
	return stub
}

func (s *roomDirStub) FindByNumber(ctx context.Context, roomNumber string, buildingNumber int) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[models.RoomKey{RoomNumber: roomNumber, BuildingNumber: buildingNumber}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *room
	return &found, nil
}

func (s *roomDirStub) SetStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[models.RoomKey{RoomNumber: roomNumber, BuildingNumber: buildingNumber}]; ok {
		room.Status = status
		room.UpdatedAt = at
	}
	return nil
}

func (s *roomDirStub) SetDerivedStatus(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, status models.RoomStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[models.RoomKey{RoomNumber: roomNumber, BuildingNumber: buildingNumber}]
	if !ok || room.Status == models.RoomStatusMaintenance || room.Status == status {
		return false, nil
	}
	room.Status = status
	room.UpdatedAt = at
	return true, nil
}

type occupancyStub struct {
	mu     sync.Mutex
	synced []models.RoomKey
	status models.RoomStatus
	err    error
}

func (s *occupancyStub) Sync(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.synced = append(s.synced, models.RoomKey{RoomNumber: roomNumber, BuildingNumber: buildingNumber})
	if s.status == "" {
		return models.RoomStatusAvailable, nil
	}
	return s.status, nil
}

func (s *occupancyStub) Status(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error) {
	if s.status == "" {
		return models.RoomStatusAvailable, s.err
	}
	return s.status, s.err
}

func (s *occupancyStub) syncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.synced)
}

type notifierStub struct {
	mu     sync.Mutex
	events []queue.NotificationKind
}

func (s *notifierStub) Notify(ctx context.Context, kind queue.NotificationKind, booking models.Booking, recipients []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
}

func (s *notifierStub) kinds() []queue.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]queue.NotificationKind, len(s.events))
	copy(out, s.events)
	return out
}

type broadcastStub struct {
	mu       sync.Mutex
	rooms    []models.RoomKey
	bookings []string
	err      error
}

func (s *broadcastStub) BroadcastRoomStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rooms = append(s.rooms, models.RoomKey{RoomNumber: roomNumber, BuildingNumber: buildingNumber})
	return nil
}

func (s *broadcastStub) BroadcastBookingUpdate(ctx context.Context, ownerID string, booking models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.bookings = append(s.bookings, booking.ID)
	return nil
}

func testRooms() *roomDirStub {
	return newRoomDirStub(
		models.Room{RoomNumber: "101", BuildingNumber: 1, Capacity: 12, Status: models.RoomStatusAvailable},
		models.Room{RoomNumber: "202", BuildingNumber: 1, Capacity: 8, Status: models.RoomStatusAvailable},
		models.Room{RoomNumber: "301", BuildingNumber: 2, Capacity: 30, Status: models.RoomStatusMaintenance},
	)
}

func createReq(room string, building int, startHour, endHour int) dto.CreateBookingRequest {
	return dto.CreateBookingRequest{
		RoomNumber:     room,
		BuildingNumber: building,
		BookingDate:    "2026-03-02",
		StartTime:      time.Date(2026, 3, 2, startHour, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, endHour, 0, 0, 0, time.UTC),
		Subject:        "Sprint planning",
		OccupantCount:  5,
	}
}

func newBookingServiceForTest(store *bookingStoreStub, rooms *roomDirStub, occupancy *occupancyStub, notif *notifierStub, bcast *broadcastStub) *BookingService {
	return NewBookingService(store, rooms, occupancy, notif, bcast, nil, nil, zap.NewNop())
}

func TestBookingServiceCreate(t *testing.T) {
	store := newBookingStoreStub()
	occupancy := &occupancyStub{}
	notif := &notifierStub{}
	svc := newBookingServiceForTest(store, testRooms(), occupancy, notif, &broadcastStub{})

	booking, err := svc.Create(context.Background(), createReq("101", 1, 9, 10), "user-1", "Ani")
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, "user-1", booking.OwnerID)

	assert.Equal(t, 1, occupancy.syncCount())
	assert.Equal(t, []queue.NotificationKind{queue.KindBookingCreated}, notif.kinds())
}

func TestBookingServiceCreateConflict(t *testing.T) {
	store := newBookingStoreStub()
	store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		OwnerID:        "user-2",
		OwnerName:      "Budi",
		Status:         models.BookingStatusConfirmed,
	})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Create(context.Background(), createReq("101", 1, 9, 10), "user-1", "Ani")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBookingConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Budi")
	assert.Contains(t, appErr.Message, "101")
}

func TestBookingServiceCreateTouchingWindows(t *testing.T) {
	store := newBookingStoreStub()
	store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusConfirmed,
	})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	// 10:00-11:00 touches 09:00-10:00 and must be allowed
	booking, err := svc.Create(context.Background(), createReq("101", 1, 10, 11), "user-1", "Ani")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
}

func TestBookingServiceCreateCancelledDoesNotBlock(t *testing.T) {
	store := newBookingStoreStub()
	store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:         models.BookingStatusCancelled,
	})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Create(context.Background(), createReq("101", 1, 9, 10), "user-1", "Ani")
	require.NoError(t, err)
}

func TestBookingServiceCreateMaintenanceRoom(t *testing.T) {
	svc := newBookingServiceForTest(newBookingStoreStub(), testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Create(context.Background(), createReq("301", 2, 9, 10), "user-1", "Ani")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoomMaintenance.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCreateUnknownRoom(t *testing.T) {
	svc := newBookingServiceForTest(newBookingStoreStub(), testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Create(context.Background(), createReq("999", 1, 9, 10), "user-1", "Ani")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCreateInvertedWindow(t *testing.T) {
	svc := newBookingServiceForTest(newBookingStoreStub(), testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	req := createReq("101", 1, 10, 9)
	_, err := svc.Create(context.Background(), req, "user-1", "Ani")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCreateConcurrentSameWindow(t *testing.T) {
	store := newBookingStoreStub()
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	const contenders = 20
	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), createReq("101", 1, 9, 10), fmt.Sprintf("user-%d", n), "User")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var created, conflicted int
	for err := range results {
		if err == nil {
			created++
			continue
		}
		require.Equal(t, appErrors.ErrBookingConflict.Code, appErrors.FromError(err).Code)
		conflicted++
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, contenders-1, conflicted)
}

func TestBookingServiceCancel(t *testing.T) {
	store := newBookingStoreStub()
	seeded := store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		OwnerID:        "user-1",
		Status:         models.BookingStatusConfirmed,
	})
	notif := &notifierStub{}
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, notif, &broadcastStub{})

	booking, err := svc.Cancel(context.Background(), seeded.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Equal(t, models.BookingStatusCancelled, store.status(seeded.ID))
	assert.Equal(t, []queue.NotificationKind{queue.KindBookingCancelled}, notif.kinds())
}

func TestBookingServiceCancelFinished(t *testing.T) {
	store := newBookingStoreStub()
	seeded := store.add(models.Booking{OwnerID: "user-1", Status: models.BookingStatusFinished})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Cancel(context.Background(), seeded.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalState.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCancelForeignBooking(t *testing.T) {
	store := newBookingStoreStub()
	seeded := store.add(models.Booking{OwnerID: "user-2", Status: models.BookingStatusConfirmed})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Cancel(context.Background(), seeded.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceDelete(t *testing.T) {
	store := newBookingStoreStub()
	seeded := store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		OwnerID:        "user-1",
		Status:         models.BookingStatusConfirmed,
	})
	occupancy := &occupancyStub{}
	svc := newBookingServiceForTest(store, testRooms(), occupancy, &notifierStub{}, &broadcastStub{})

	require.NoError(t, svc.Delete(context.Background(), seeded.ID, "user-1"))
	_, err := store.FindByID(context.Background(), seeded.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, 1, occupancy.syncCount())
}

func TestBookingServiceDeleteOngoing(t *testing.T) {
	store := newBookingStoreStub()
	seeded := store.add(models.Booking{OwnerID: "user-1", Status: models.BookingStatusOngoing})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	err := svc.Delete(context.Background(), seeded.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalState.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceSwap(t *testing.T) {
	store := newBookingStoreStub()
	source := store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		OwnerID:        "user-1",
		OwnerName:      "Ani",
		Subject:        "Sprint planning",
		Status:         models.BookingStatusConfirmed,
	})
	occupancy := &occupancyStub{}
	notif := &notifierStub{}
	svc := newBookingServiceForTest(store, testRooms(), occupancy, notif, &broadcastStub{})

	replacement, err := svc.Swap(context.Background(), source.ID, dto.SwapBookingRequest{DestRoomNumber: "202", DestBuildingNumber: 1}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "202", replacement.RoomNumber)
	assert.Equal(t, source.StartTime, replacement.StartTime)
	assert.Equal(t, source.EndTime, replacement.EndTime)
	assert.Equal(t, models.BookingStatusConfirmed, replacement.Status)

	assert.Equal(t, models.BookingStatusSwapped, store.status(source.ID))
	assert.Equal(t, []queue.NotificationKind{queue.KindBookingSwapped}, notif.kinds())
	// both source and destination rooms re-derived
	assert.Equal(t, 2, occupancy.syncCount())
}

func TestBookingServiceSwapDestinationConflict(t *testing.T) {
	store := newBookingStoreStub()
	source := store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		OwnerID:        "user-1",
		Status:         models.BookingStatusConfirmed,
	})
	store.add(models.Booking{
		RoomNumber:     "202",
		BuildingNumber: 1,
		StartTime:      time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		OwnerID:        "user-2",
		OwnerName:      "Budi",
		Status:         models.BookingStatusConfirmed,
	})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Swap(context.Background(), source.ID, dto.SwapBookingRequest{DestRoomNumber: "202", DestBuildingNumber: 1}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBookingConflict.Code, appErrors.FromError(err).Code)
	// the source booking stays untouched
	assert.Equal(t, models.BookingStatusConfirmed, store.status(source.ID))
}

func TestBookingServiceSwapSameRoom(t *testing.T) {
	store := newBookingStoreStub()
	source := store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		OwnerID:        "user-1",
		Status:         models.BookingStatusConfirmed,
	})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Swap(context.Background(), source.ID, dto.SwapBookingRequest{DestRoomNumber: "101", DestBuildingNumber: 1}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceSwapTerminalBooking(t *testing.T) {
	store := newBookingStoreStub()
	source := store.add(models.Booking{
		RoomNumber:     "101",
		BuildingNumber: 1,
		OwnerID:        "user-1",
		Status:         models.BookingStatusFinished,
	})
	svc := newBookingServiceForTest(store, testRooms(), &occupancyStub{}, &notifierStub{}, &broadcastStub{})

	_, err := svc.Swap(context.Background(), source.ID, dto.SwapBookingRequest{DestRoomNumber: "202", DestBuildingNumber: 1}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalState.Code, appErrors.FromError(err).Code)
}
