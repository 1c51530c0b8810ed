package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishJSON(t *testing.T) {
	bus := NewBus()

	var got struct {
		ID string `json:"id"`
	}
	calls := 0
	bus.Subscribe(ReservationDeleted, func(e Event) error {
		calls++
		assert.False(t, e.CreatedAt.IsZero())
		return e.Decode(&got)
	})
	bus.Subscribe(ReservationCreated, func(Event) error {
		t.Fatal("unrelated subscriber called")
		return nil
	})

	require.NoError(t, bus.PublishJSON(ReservationDeleted, map[string]string{"id": "r1"}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "r1", got.ID)
}

func TestBus_FirstHandlerErrorReturned(t *testing.T) {
	bus := NewBus()
	first := errors.New("first")
	ran := 0
	bus.Subscribe(SessionSignedOut, func(Event) error { ran++; return first })
	bus.Subscribe(SessionSignedOut, func(Event) error { ran++; return errors.New("second") })

	err := bus.Publish(Event{Type: SessionSignedOut})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, ran, "all handlers run even after a failure")
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	assert.NoError(t, bus.Publish(Event{Type: SessionSignedIn}))
	assert.NoError(t, bus.PublishJSON(SessionSignedIn, nil))
}
