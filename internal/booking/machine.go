package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classbook/internal/apperr"
	"classbook/internal/events"
	"classbook/internal/models"
)

// API creates reservations.
type API interface {
	CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error)
}

// Gate reports the signed-in identity or an AuthenticationMissing error.
type Gate interface {
	RequireIdentity() (models.Identity, error)
}

// ErrInvalidTransition is returned when an action does not fit the current state.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot go from %s to %s", e.From, e.To)
}

// Machine is the draft of one reservation for one classroom.
type Machine struct {
	mu    sync.Mutex
	fsm   *FSM
	state State

	classroomID string
	start       *time.Time
	end         *time.Time
	// saved is the value of the open field before its picker was opened.
	saved *time.Time

	loc     *time.Location
	api     API
	gate    Gate
	refresh func(ctx context.Context) error
	bus     *events.Bus
	logger  zerolog.Logger
}

// NewMachine builds a draft for classroomID. refresh runs after a successful submit; it and bus may be nil.
func NewMachine(classroomID string, api API, gate Gate, refresh func(ctx context.Context) error, loc *time.Location, logger *zerolog.Logger, bus *events.Bus) *Machine {
	if loc == nil {
		loc = time.Local
	}
	return &Machine{
		fsm:         NewFSM(),
		state:       StateIdle,
		classroomID: classroomID,
		loc:         loc,
		api:         api,
		gate:        gate,
		refresh:     refresh,
		bus:         bus,
		logger:      logger.With().Str("component", "booking").Str("classroom_id", classroomID).Logger(),
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Cursor() Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.cursor()
}

// Start returns the draft start instant, if set.
func (m *Machine) Start() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deref(m.start)
}

// End returns the draft end instant, if set.
func (m *Machine) End() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deref(m.end)
}

func deref(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func (m *Machine) transition(to State) error {
	if !m.fsm.CanTransition(m.state, to) {
		return &ErrInvalidTransition{From: m.state, To: to}
	}
	m.state = to
	return nil
}

func (m *Machine) field(f Field) **time.Time {
	if f == FieldEnd {
		return &m.end
	}
	return &m.start
}

func (m *Machine) openField() Field {
	return m.state.cursor().Field
}

// Open shows the date picker for f.
func (m *Machine) Open(f Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transition(dateState(f)); err != nil {
		return err
	}
	m.saved = *m.field(f)
	return nil
}

// ConfirmDate stores the calendar day of date at midnight and moves to the time phase of the same field.
func (m *Machine) ConfirmDate(date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.state.cursor()
	if cur.Phase != PhaseDate {
		return &ErrInvalidTransition{From: m.state, To: timeState(cur.Field)}
	}
	if err := m.transition(timeState(cur.Field)); err != nil {
		return err
	}
	y, mo, d := date.In(m.loc).Date()
	day := time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
	*m.field(cur.Field) = &day
	return nil
}

// ConfirmTime sets the hour and minute of the open field and closes the picker.
func (m *Machine) ConfirmTime(hour, minute int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.cursor().Phase != PhaseTime {
		return &ErrInvalidTransition{From: m.state, To: StateIdle}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return apperr.Validation("confirm time", fmt.Errorf("invalid time %02d:%02d", hour, minute))
	}
	ptr := m.field(m.openField())
	y, mo, d := (*ptr).Date()
	instant := time.Date(y, mo, d, hour, minute, 0, 0, m.loc)
	*ptr = &instant
	m.saved = nil
	return m.transition(StateIdle)
}

// Cancel closes the picker and restores the open field to its value before Open.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.state.cursor()
	if !cur.Visible {
		return &ErrInvalidTransition{From: m.state, To: StateIdle}
	}
	*m.field(cur.Field) = m.saved
	m.saved = nil
	return m.transition(StateIdle)
}

// CanSubmit reports whether both instants are set, start is before end and nothing is in flight.
func (m *Machine) CanSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateIdle && m.request().Validate() == nil
}

func (m *Machine) request() models.ReservationRequest {
	req := models.ReservationRequest{ClassroomID: m.classroomID}
	if m.start != nil {
		req.StartTime = *m.start
	}
	if m.end != nil {
		req.EndTime = *m.end
	}
	return req
}

// Submit sends the draft. On success the draft is cleared and the classroom's reservations refreshed;
// on failure the draft is kept and the error returned.
func (m *Machine) Submit(ctx context.Context) (*models.Reservation, error) {
	m.mu.Lock()
	if m.state == StateSubmitting {
		m.mu.Unlock()
		return nil, apperr.ErrSubmitInFlight
	}
	if m.state != StateIdle {
		st := m.state
		m.mu.Unlock()
		return nil, apperr.Validation("submit reservation", fmt.Errorf("picker open (%s)", st))
	}
	req := m.request()
	if err := req.Validate(); err != nil {
		m.mu.Unlock()
		return nil, apperr.Validation("submit reservation", err)
	}
	if _, err := m.gate.RequireIdentity(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.transition(StateSubmitting); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	res, err := m.api.CreateReservation(ctx, req)

	m.mu.Lock()
	m.state = StateIdle
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("Reservation submit failed")
		return nil, err
	}
	m.start, m.end, m.saved = nil, nil, nil
	m.mu.Unlock()

	m.logger.Info().Str("reservation_id", res.ID).Msg("Reservation created")
	if err := m.bus.PublishJSON(events.ReservationCreated, res); err != nil {
		m.logger.Warn().Err(err).Msg("reservation.created handler failed")
	}
	if m.refresh != nil {
		if err := m.refresh(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to refresh reservations after submit")
		}
	}
	return res, nil
}
