package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/roombook-api/internal/models"
)

const bookingColumns = `id, room_number, building_number, booking_date, start_time, end_time, owner_id, owner_name, subject, occupant_count, notes, status, created_at, updated_at`

// BookingRepository persists bookings and answers the overlap queries the
// conflict detector and the sweeper depend on.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository builds repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// WithRoomLock runs fn inside a transaction holding row-level locks on
// the given rooms, acquired in deterministic order. This is the unit
// that makes detect-then-create (and swap) atomic per room: two
// concurrent requests for the same room serialise on the room row.
// Returns sql.ErrNoRows when one of the rooms does not exist.
func (r *BookingRepository) WithRoomLock(ctx context.Context, keys []models.RoomKey, fn func(exec sqlx.ExtContext) error) error {
	sorted := make([]models.RoomKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range sorted {
		var roomNumber string
		err := tx.GetContext(ctx, &roomNumber,
			`SELECT room_number FROM rooms WHERE room_number = $1 AND building_number = $2 FOR UPDATE`,
			key.RoomNumber, key.BuildingNumber)
		if err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock room %s/%d: %w", key.RoomNumber, key.BuildingNumber, err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// FindConflict returns the earliest-created active booking for the room
// whose half-open window overlaps [start, end), or nil when the window is
// clear. excludeID lets swap checks ignore the booking being replaced.
func (r *BookingRepository) FindConflict(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, start, end time.Time, excludeID string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE room_number = $1 AND building_number = $2
  AND status IN ('confirmed', 'ongoing')
  AND start_time < $4 AND $3 < end_time
  AND ($5 = '' OR id <> $5)
ORDER BY created_at ASC, id ASC
LIMIT 1`, bookingColumns)

	var booking models.Booking
	err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, roomNumber, buildingNumber, start, end, excludeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find booking conflict: %w", err)
	}
	return &booking, nil
}

// Create inserts a booking, assigning an id and timestamps when unset.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = booking.CreatedAt

	const query = `
INSERT INTO bookings (id, room_number, building_number, booking_date, start_time, end_time, owner_id, owner_name, subject, occupant_count, notes, status, created_at, updated_at)
VALUES (:id, :room_number, :building_number, :booking_date, :start_time, :end_time, :owner_id, :owner_name, :subject, :occupant_count, :notes, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// FindByID loads a single booking.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns bookings matching the filter with a total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if filter.RoomNumber != "" {
		where += fmt.Sprintf(" AND room_number = $%d", idx)
		args = append(args, filter.RoomNumber)
		idx++
	}
	if filter.BuildingNumber != 0 {
		where += fmt.Sprintf(" AND building_number = $%d", idx)
		args = append(args, filter.BuildingNumber)
		idx++
	}
	if filter.Date != nil {
		where += fmt.Sprintf(" AND booking_date = $%d", idx)
		args = append(args, *filter.Date)
		idx++
	}
	if filter.OwnerID != "" {
		where += fmt.Sprintf(" AND owner_id = $%d", idx)
		args = append(args, filter.OwnerID)
		idx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}

	countQuery := "SELECT COUNT(*) FROM bookings " + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	query := fmt.Sprintf("SELECT %s FROM bookings %s ORDER BY start_time ASC, id ASC LIMIT $%d OFFSET $%d", bookingColumns, where, idx, idx+1)
	args = append(args, size, (page-1)*size)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, total, nil
}

// UpdateStatus transitions a booking conditionally on its current status
// so concurrent writers cannot double-apply the same edge. It reports
// whether a row was updated.
func (r *BookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.BookingStatus, at time.Time) (bool, error) {
	const query = `UPDATE bookings SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.exec(exec).ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update booking status rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a booking owned by ownerID and reports whether a row
// was deleted.
func (r *BookingRepository) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	const query = `DELETE FROM bookings WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete booking rows: %w", err)
	}
	return affected > 0, nil
}

// MarkStartDue atomically flips every confirmed booking whose window has
// begun to ongoing and returns the affected rows. The single UPDATE keeps
// concurrent sweeps from double-transitioning the same booking.
func (r *BookingRepository) MarkStartDue(ctx context.Context, now time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`UPDATE bookings SET status = 'ongoing', updated_at = $2
WHERE status = 'confirmed' AND start_time <= $1 AND end_time >= $1
RETURNING %s`, bookingColumns)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, now, now); err != nil {
		return nil, fmt.Errorf("mark bookings ongoing: %w", err)
	}
	return bookings, nil
}

// MarkEndDue atomically flips every ongoing booking whose window has
// passed to finished and returns the affected rows.
func (r *BookingRepository) MarkEndDue(ctx context.Context, now time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`UPDATE bookings SET status = 'finished', updated_at = $2
WHERE status = 'ongoing' AND end_time < $1
RETURNING %s`, bookingColumns)

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, now, now); err != nil {
		return nil, fmt.Errorf("mark bookings finished: %w", err)
	}
	return bookings, nil
}

// HasActiveAt reports whether any active booking other than excludeID
// covers the room at the given instant. The occupancy projector uses it
// to decide between booked and available.
func (r *BookingRepository) HasActiveAt(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, now time.Time, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM bookings
WHERE room_number = $1 AND building_number = $2
  AND ($4 = '' OR id <> $4)
  AND (status = 'ongoing' OR (status = 'confirmed' AND start_time <= $3 AND end_time >= $3)))`

	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, roomNumber, buildingNumber, now, excludeID); err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}
