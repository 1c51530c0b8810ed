// Package booking drives the two-phase date/time capture of a reservation draft and its submission.
package booking

// State is the phase of the booking form.
type State string

const (
	StateIdle             State = "idle"
	StatePickingStartDate State = "picking_start_date"
	StatePickingStartTime State = "picking_start_time"
	StatePickingEndDate   State = "picking_end_date"
	StatePickingEndTime   State = "picking_end_time"
	StateSubmitting       State = "submitting"
)

// Field is the instant a picker edits.
type Field string

const (
	FieldStart Field = "start"
	FieldEnd   Field = "end"
)

// Phase is the half of the instant a picker edits.
type Phase string

const (
	PhaseDate Phase = "date"
	PhaseTime Phase = "time"
)

// Cursor describes the open picker, if any.
type Cursor struct {
	Field   Field
	Phase   Phase
	Visible bool
}

// FSM holds the allowed transitions of the booking form.
type FSM struct {
	transitions map[State][]State
}

func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:             {StatePickingStartDate, StatePickingEndDate, StateSubmitting},
			StatePickingStartDate: {StatePickingStartTime, StateIdle},
			StatePickingStartTime: {StateIdle},
			StatePickingEndDate:   {StatePickingEndTime, StateIdle},
			StatePickingEndTime:   {StateIdle},
			StateSubmitting:       {StateIdle},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) cursor() Cursor {
	switch s {
	case StatePickingStartDate:
		return Cursor{Field: FieldStart, Phase: PhaseDate, Visible: true}
	case StatePickingStartTime:
		return Cursor{Field: FieldStart, Phase: PhaseTime, Visible: true}
	case StatePickingEndDate:
		return Cursor{Field: FieldEnd, Phase: PhaseDate, Visible: true}
	case StatePickingEndTime:
		return Cursor{Field: FieldEnd, Phase: PhaseTime, Visible: true}
	}
	return Cursor{}
}

func dateState(f Field) State {
	if f == FieldEnd {
		return StatePickingEndDate
	}
	return StatePickingStartDate
}

func timeState(f Field) State {
	if f == FieldEnd {
		return StatePickingEndTime
	}
	return StatePickingStartTime
}
