package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"classbook/internal/models"
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const reservationSelect = `
	SELECT r.id, r.start_time, r.end_time, r.classroom_id,
	       c.id, c.name, c.capacity, c.equipment,
	       u.id, u.name, u.email, u.role
	FROM reservations r
	JOIN classrooms c ON c.id = r.classroom_id
	JOIN users u ON u.id = r.user_id`

func scanReservation(row interface{ Scan(...any) error }) (*models.Reservation, error) {
	var r models.Reservation
	var equipment, role string
	err := row.Scan(&r.ID, &r.StartTime, &r.EndTime, &r.ClassroomID,
		&r.Classroom.ID, &r.Classroom.Name, &r.Classroom.Capacity, &equipment,
		&r.User.ID, &r.User.Name, &r.User.Email, &role)
	if err != nil {
		return nil, err
	}
	if r.Classroom.Equipment, err = decodeEquipment(equipment); err != nil {
		return nil, fmt.Errorf("decode equipment: %w", err)
	}
	r.User.Role = models.Role(role)
	return &r, nil
}

// CreateReservation stores a reservation for userID. Overlaps are not checked.
func (db *DB) CreateReservation(ctx context.Context, userID string, req models.ReservationRequest) (*models.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := db.GetClassroom(ctx, req.ClassroomID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO reservations (id, classroom_id, user_id, start_time, end_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, req.ClassroomID, userID, req.StartTime.UTC(), req.EndTime.UTC(), db.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	return db.GetReservation(ctx, id)
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, notFound(err))
	}
	return r, nil
}

func (db *DB) listReservations(ctx context.Context, where string, arg any) ([]models.Reservation, error) {
	rows, err := db.QueryContext(ctx, reservationSelect+` WHERE `+where+` ORDER BY r.start_time, r.id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	out := []models.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (db *DB) ListReservationsByClassroom(ctx context.Context, classroomID string) ([]models.Reservation, error) {
	return db.listReservations(ctx, "r.classroom_id = ?", classroomID)
}

func (db *DB) ListReservationsByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	return db.listReservations(ctx, "r.user_id = ?", userID)
}

func (db *DB) DeleteReservation(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete reservation %s: %w", id, ErrNotFound)
	}
	return nil
}
