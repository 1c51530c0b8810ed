// Package reservations keeps the signed-in user's reservation list.
package reservations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classbook/internal/events"
	"classbook/internal/models"
)

// API lists and deletes the user's reservations.
type API interface {
	MyReservations(ctx context.Context) ([]models.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// Gate reports the signed-in identity or an AuthenticationMissing error.
type Gate interface {
	RequireIdentity() (models.Identity, error)
}

// Status is the result of a cancellation command.
type Status int

const (
	// Pending means a cancellation of the same id is already in flight; nothing was sent.
	Pending Status = iota
	Committed
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Outcome reports what happened to a cancellation. Err is set only when Rejected.
type Outcome struct {
	ID     string
	Status Status
	Err    error
}

type Manager struct {
	mu       sync.Mutex
	list     []models.Reservation
	loading  bool
	inFlight map[string]struct{}

	api    API
	gate   Gate
	bus    *events.Bus
	logger zerolog.Logger
}

func NewManager(api API, gate Gate, logger *zerolog.Logger, bus *events.Bus) *Manager {
	return &Manager{
		inFlight: make(map[string]struct{}),
		api:      api,
		gate:     gate,
		bus:      bus,
		logger:   logger.With().Str("component", "reservations").Logger(),
	}
}

// Fetch replaces the list with the server's. On failure the old list stays.
func (m *Manager) Fetch(ctx context.Context) error {
	if _, err := m.gate.RequireIdentity(); err != nil {
		return err
	}

	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	list, err := m.api.MyReservations(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to fetch reservations")
		return err
	}
	m.list = list
	return nil
}

func (m *Manager) Items() []models.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Reservation(nil), m.list...)
}

func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Cancelling reports whether a cancellation of id is in flight.
func (m *Manager) Cancelling(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inFlight[id]
	return ok
}

// Split partitions the current list against now.
func (m *Manager) Split(now time.Time) (future, past []models.Reservation) {
	return Partition(m.Items(), now)
}

// Cancel deletes id on the server and drops it locally only once the server confirmed.
func (m *Manager) Cancel(ctx context.Context, id string) Outcome {
	if _, err := m.gate.RequireIdentity(); err != nil {
		return Outcome{ID: id, Status: Rejected, Err: err}
	}

	m.mu.Lock()
	if _, busy := m.inFlight[id]; busy {
		m.mu.Unlock()
		return Outcome{ID: id, Status: Pending}
	}
	m.inFlight[id] = struct{}{}
	m.mu.Unlock()

	err := m.api.DeleteReservation(ctx, id)

	m.mu.Lock()
	delete(m.inFlight, id)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn().Err(err).Str("reservation_id", id).Msg("Cancellation rejected")
		return Outcome{ID: id, Status: Rejected, Err: err}
	}
	kept := m.list[:0:0]
	for _, r := range m.list {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.list = kept
	m.mu.Unlock()

	if err := m.bus.PublishJSON(events.ReservationDeleted, map[string]string{"id": id}); err != nil {
		m.logger.Warn().Err(err).Msg("reservation.deleted handler failed")
	}
	return Outcome{ID: id, Status: Committed}
}

// Reset forgets the list, e.g. after sign-out.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = nil
}

// Partition splits list into upcoming (end >= now, soonest first) and past
// (end < now, most recent first). Every reservation lands in exactly one side.
func Partition(list []models.Reservation, now time.Time) (future, past []models.Reservation) {
	future = []models.Reservation{}
	past = []models.Reservation{}
	for _, r := range list {
		if r.IsPast(now) {
			past = append(past, r)
		} else {
			future = append(future, r)
		}
	}
	sort.SliceStable(future, func(i, j int) bool { return future[i].StartTime.Before(future[j].StartTime) })
	sort.SliceStable(past, func(i, j int) bool { return past[i].StartTime.After(past[j].StartTime) })
	return future, past
}
