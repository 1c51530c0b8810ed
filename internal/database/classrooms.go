package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"classbook/internal/models"
)

func encodeEquipment(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}

func decodeEquipment(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}

// CreateClassroom stores a normalized classroom under a fresh id.
func (db *DB) CreateClassroom(ctx context.Context, in models.NewClassroom) (*models.Classroom, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	room := &models.Classroom{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Capacity:  in.Capacity,
		Equipment: in.Equipment,
	}
	equipment, err := encodeEquipment(room.Equipment)
	if err != nil {
		return nil, fmt.Errorf("encode equipment: %w", err)
	}

	now := db.now().UTC()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO classrooms (id, name, capacity, equipment, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.Capacity, equipment, now, now); err != nil {
		return nil, fmt.Errorf("create classroom: %w", err)
	}
	return room, nil
}

func scanClassroom(row interface{ Scan(...any) error }) (*models.Classroom, error) {
	var c models.Classroom
	var equipment string
	if err := row.Scan(&c.ID, &c.Name, &c.Capacity, &equipment); err != nil {
		return nil, err
	}
	eq, err := decodeEquipment(equipment)
	if err != nil {
		return nil, fmt.Errorf("decode equipment of %s: %w", c.ID, err)
	}
	c.Equipment = eq
	return &c, nil
}

func (db *DB) GetClassroom(ctx context.Context, id string) (*models.Classroom, error) {
	c, err := scanClassroom(db.QueryRowContext(ctx,
		`SELECT id, name, capacity, equipment FROM classrooms WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get classroom %s: %w", id, notFound(err))
	}
	return c, nil
}

// ListClassrooms returns every classroom ordered by name.
func (db *DB) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, capacity, equipment FROM classrooms ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	defer rows.Close()

	out := []models.Classroom{}
	for rows.Next() {
		c, err := scanClassroom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classroom: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SyncClassrooms upserts the seeded classrooms by id. Rooms missing from the seed are kept
// because reservations may reference them.
func (db *DB) SyncClassrooms(ctx context.Context, rooms []models.Classroom) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO classrooms (id, name, capacity, equipment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			equipment = excluded.equipment,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare sync: %w", err)
	}
	defer stmt.Close()

	now := db.now().UTC()
	for _, r := range rooms {
		equipment, err := encodeEquipment(models.NormalizeEquipment(r.Equipment))
		if err != nil {
			return fmt.Errorf("encode equipment of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Capacity, equipment, now, now); err != nil {
			return fmt.Errorf("upsert classroom %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
