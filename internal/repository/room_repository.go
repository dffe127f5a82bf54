package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/roombook-api/internal/models"
)

const roomColumns = `room_number, building_number, capacity, status, updated_at`

// RoomRepository reads and updates the room directory. The engine never
// creates or deletes rooms; it only flips the display status.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository builds repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByNumber loads a room by its composite identity.
func (r *RoomRepository) FindByNumber(ctx context.Context, roomNumber string, buildingNumber int) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE room_number = $1 AND building_number = $2`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, roomNumber, buildingNumber); err != nil {
		return nil, err
	}
	return &room, nil
}

// LockForUpdate loads the room row with a row-level lock, serialising
// detect-then-create sequences for the same room across processes. Must
// run inside a transaction.
func (r *RoomRepository) LockForUpdate(ctx context.Context, tx *sqlx.Tx, roomNumber string, buildingNumber int) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE room_number = $1 AND building_number = $2 FOR UPDATE`, roomColumns)
	var room models.Room
	if err := tx.GetContext(ctx, &room, query, roomNumber, buildingNumber); err != nil {
		return nil, err
	}
	return &room, nil
}

// SetStatus writes the room status unconditionally. Reserved for
// operator actions (maintenance on/off).
func (r *RoomRepository) SetStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus, at time.Time) error {
	const query = `UPDATE rooms SET status = $3, updated_at = $4 WHERE room_number = $1 AND building_number = $2`
	if _, err := r.db.ExecContext(ctx, query, roomNumber, buildingNumber, status, at); err != nil {
		return fmt.Errorf("set room status: %w", err)
	}
	return nil
}

// SetDerivedStatus writes a booking-derived status but never downgrades
// a maintenance room. Booking side effects go through here exclusively.
func (r *RoomRepository) SetDerivedStatus(ctx context.Context, exec sqlx.ExtContext, roomNumber string, buildingNumber int, status models.RoomStatus, at time.Time) (bool, error) {
	const query = `UPDATE rooms SET status = $3, updated_at = $4
WHERE room_number = $1 AND building_number = $2 AND status <> 'maintenance' AND status <> $3`
	res, err := r.exec(exec).ExecContext(ctx, query, roomNumber, buildingNumber, status, at)
	if err != nil {
		return false, fmt.Errorf("set derived room status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set derived room status rows: %w", err)
	}
	return affected > 0, nil
}
