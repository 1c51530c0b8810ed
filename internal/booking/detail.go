package booking

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classbook/internal/events"
	"classbook/internal/models"
)

// DetailAPI reads a classroom and its reservations.
type DetailAPI interface {
	GetClassroom(ctx context.Context, id string) (*models.Classroom, error)
	ClassroomReservations(ctx context.Context, classroomID string) ([]models.Reservation, error)
}

// Detail is the classroom page: the room, its reservations and a booking draft.
type Detail struct {
	mu           sync.Mutex
	classroom    *models.Classroom
	reservations []models.Reservation
	loading      bool

	api    DetailAPI
	gate   Gate
	bus    *events.Bus
	logger zerolog.Logger
}

func NewDetail(api DetailAPI, gate Gate, logger *zerolog.Logger, bus *events.Bus) *Detail {
	return &Detail{
		api:    api,
		gate:   gate,
		bus:    bus,
		logger: logger.With().Str("component", "detail").Logger(),
	}
}

// Load fetches the classroom, then its reservations using the id the server returned.
// A failed read keeps whatever was loaded before.
func (d *Detail) Load(ctx context.Context, routeID string) error {
	if _, err := d.gate.RequireIdentity(); err != nil {
		return err
	}
	d.setLoading(true)
	defer d.setLoading(false)

	room, err := d.api.GetClassroom(ctx, routeID)
	if err != nil {
		d.logger.Error().Err(err).Str("classroom_id", routeID).Msg("Failed to fetch classroom")
		return err
	}
	d.mu.Lock()
	d.classroom = room
	d.mu.Unlock()

	return d.fetchReservations(ctx, room.ID)
}

// RefreshReservations refetches the reservations of the loaded classroom.
func (d *Detail) RefreshReservations(ctx context.Context) error {
	d.mu.Lock()
	room := d.classroom
	d.mu.Unlock()
	if room == nil {
		return nil
	}
	return d.fetchReservations(ctx, room.ID)
}

func (d *Detail) fetchReservations(ctx context.Context, classroomID string) error {
	list, err := d.api.ClassroomReservations(ctx, classroomID)
	if err != nil {
		d.logger.Error().Err(err).Str("classroom_id", classroomID).Msg("Failed to fetch reservations")
		return err
	}
	d.mu.Lock()
	d.reservations = list
	d.mu.Unlock()
	return nil
}

func (d *Detail) setLoading(v bool) {
	d.mu.Lock()
	d.loading = v
	d.mu.Unlock()
}

func (d *Detail) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

func (d *Detail) Classroom() (models.Classroom, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.classroom == nil {
		return models.Classroom{}, false
	}
	return *d.classroom, true
}

func (d *Detail) Reservations() []models.Reservation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Reservation(nil), d.reservations...)
}

// NewBooking starts a draft for the loaded classroom that refreshes this page on success.
func (d *Detail) NewBooking(api API, loc *time.Location) (*Machine, bool) {
	room, ok := d.Classroom()
	if !ok {
		return nil, false
	}
	return NewMachine(room.ID, api, d.gate, d.RefreshReservations, loc, &d.logger, d.bus), true
}
