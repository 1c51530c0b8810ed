package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"classbook/internal/models"
)

// CreateUser inserts a new account. The first account ever stored becomes admin, decided in the
// same statement as the insert. A taken email yields ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	now := db.now().UTC()
	user := &models.User{
		Identity: models.Identity{
			ID:    uuid.NewString(),
			Name:  strings.TrimSpace(name),
			Email: strings.TrimSpace(email),
		},
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var role string
	err := db.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		 SELECT ?, ?, ?, ?,
		        CASE WHEN EXISTS (SELECT 1 FROM users) THEN ? ELSE ? END,
		        ?, ?
		 RETURNING role`,
		user.ID, user.Name, user.Email, user.PasswordHash,
		string(models.RoleUser), string(models.RoleAdmin), now, now).Scan(&role)
	user.Role = models.Role(role)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %s: %w", user.Email, ErrDuplicate)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateUser applies the non-nil fields of upd and returns the stored profile.
func (db *DB) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{db.now().UTC()}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.TrimSpace(*upd.Email))
	}
	args = append(args, id)

	res, err := db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update user %s: %w", id, ErrDuplicate)
		}
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update user %s: %w", id, ErrNotFound)
	}
	return db.GetUserByID(ctx, id)
}

