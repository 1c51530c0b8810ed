// Package models holds the wire and domain types shared by the client core and the backend.
package models

import (
	"errors"
	"strings"
	"time"
)

// Role is the permission level of an authenticated user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role belongs to the closed set issued by the backend.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated user's profile.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// User is the stored account behind an Identity.
type User struct {
	Identity
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// AuthResponse is returned by sign-in and sign-up.
type AuthResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserUpdate is the body of PUT /users/:id. Nil fields are left unchanged.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Classroom is a bookable room.
type Classroom struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Equipment []string `json:"equipment"`
}

// HasEquipment reports whether every required item is present on the classroom.
// Extra equipment on the classroom is allowed.
func (c *Classroom) HasEquipment(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(c.Equipment))
	for _, e := range c.Equipment {
		have[e] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// NewClassroom is the body of POST /classrooms.
type NewClassroom struct {
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Equipment []string `json:"equipment"`
}

var (
	ErrClassroomName     = errors.New("classroom name is required")
	ErrClassroomCapacity = errors.New("capacity must be a non-negative integer")
	ErrReservationRange  = errors.New("end time must be after start time")
	ErrReservationTimes  = errors.New("start and end times are required")
	ErrReservationRoom   = errors.New("classroom id is required")
)

// ErrClassroomEquipment is enforced by the client form only; the server accepts bare rooms.
var ErrClassroomEquipment = errors.New("at least one equipment item is required")

// Normalize trims the name and equipment and drops blank or repeated equipment entries.
func (n NewClassroom) Normalize() NewClassroom {
	n.Name = strings.TrimSpace(n.Name)
	n.Equipment = NormalizeEquipment(n.Equipment)
	return n
}

// Validate checks the fields a classroom form must provide.
func (n NewClassroom) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return ErrClassroomName
	}
	if n.Capacity < 0 {
		return ErrClassroomCapacity
	}
	return nil
}

// NormalizeEquipment trims entries, drops blanks and keeps the first occurrence of each item.
func NormalizeEquipment(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Reservation is a time-boxed claim on a classroom.
type Reservation struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	ClassroomID string    `json:"classroomId"`
	Classroom   Classroom `json:"classroom"`
	User        Identity  `json:"user"`
}

// IsPast reports whether the reservation ended strictly before now.
func (r *Reservation) IsPast(now time.Time) bool {
	return r.EndTime.Before(now)
}

// Duration returns the reserved span.
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// ReservationRequest is the body of POST /reservations.
type ReservationRequest struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	ClassroomID string    `json:"classroomId"`
}

// Validate enforces start < end before anything is sent or stored.
func (r ReservationRequest) Validate() error {
	if strings.TrimSpace(r.ClassroomID) == "" {
		return ErrReservationRoom
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return ErrReservationTimes
	}
	if !r.StartTime.Before(r.EndTime) {
		return ErrReservationRange
	}
	return nil
}
