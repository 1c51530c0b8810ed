package catalog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classbook/internal/apperr"
	"classbook/internal/events"
	"classbook/internal/models"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]models.Classroom)
	return rooms, args.Error(1)
}

func (m *mockAPI) CreateClassroom(ctx context.Context, in models.NewClassroom) (*models.Classroom, error) {
	args := m.Called(ctx, in)
	room, _ := args.Get(0).(*models.Classroom)
	return room, args.Error(1)
}

type gate struct{ signedIn bool }

func (g *gate) RequireIdentity() (models.Identity, error) {
	if !g.signedIn {
		return models.Identity{}, apperr.AuthenticationMissing
	}
	return models.Identity{ID: "u1"}, nil
}

func newCache(api API, g Gate, bus *events.Bus) *Cache {
	logger := zerolog.New(io.Discard)
	return NewCache(api, g, &logger, bus)
}

var seed = []models.Classroom{
	{ID: "a", Name: "A101", Capacity: 20, Equipment: []string{"projector"}},
	{ID: "b", Name: "B204", Capacity: 8, Equipment: []string{"whiteboard"}},
}

func TestCache_RequiresIdentity(t *testing.T) {
	api := &mockAPI{}
	c := newCache(api, &gate{}, nil)

	assert.ErrorIs(t, c.Refresh(context.Background()), apperr.AuthenticationMissing)
	api.AssertNotCalled(t, "ListClassrooms", mock.Anything)
}

func TestCache_RefreshKeepsStaleOnFailure(t *testing.T) {
	api := &mockAPI{}
	api.On("ListClassrooms", mock.Anything).Return(seed, nil).Once()
	api.On("ListClassrooms", mock.Anything).Return(nil, apperr.New(apperr.KindNetworkFailure, "GET /classrooms", errors.New("down"))).Once()

	c := newCache(api, &gate{signedIn: true}, nil)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	assert.True(t, c.Loaded())
	assert.False(t, c.Loading())
	assert.Len(t, c.Items(), 2)
	assert.Equal(t, []string{"projector", "whiteboard"}, c.Equipment())

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, apperr.NetworkFailure)
	assert.Len(t, c.Items(), 2, "previous list kept")
	assert.False(t, c.Loading())

	view := c.View(Criteria{MinCapacity: "10"}, SortNameAsc)
	assert.Equal(t, []string{"A101"}, names(view))

	c.Reset()
	assert.Empty(t, c.Items())
	assert.False(t, c.Loaded())
	api.AssertExpectations(t)
}

func TestCache_Create(t *testing.T) {
	api := &mockAPI{}
	api.On("ListClassrooms", mock.Anything).Return(seed, nil)
	want := models.NewClassroom{Name: "C300", Capacity: 40, Equipment: []string{"camera"}}
	api.On("CreateClassroom", mock.Anything, want).
		Return(&models.Classroom{ID: "c", Name: "C300", Capacity: 40, Equipment: []string{"camera"}}, nil).Once()

	bus := events.NewBus()
	var created []string
	bus.Subscribe(events.ClassroomCreated, func(e events.Event) error {
		var room models.Classroom
		require.NoError(t, e.Decode(&room))
		created = append(created, room.ID)
		return nil
	})

	c := newCache(api, &gate{signedIn: true}, bus)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	_, err := c.Create(ctx, models.NewClassroom{Name: "  ", Capacity: 3})
	assert.ErrorIs(t, err, apperr.ValidationFailed)
	_, err = c.Create(ctx, models.NewClassroom{Name: "X", Capacity: -2, Equipment: []string{"tv"}})
	assert.ErrorIs(t, err, apperr.ValidationFailed)
	_, err = c.Create(ctx, models.NewClassroom{Name: "X", Capacity: 5, Equipment: []string{" ", ""}})
	assert.ErrorIs(t, err, apperr.ValidationFailed)
	assert.ErrorIs(t, err, models.ErrClassroomEquipment)

	room, err := c.Create(ctx, models.NewClassroom{Name: " C300 ", Capacity: 40, Equipment: []string{"camera", " camera", ""}})
	require.NoError(t, err)
	assert.Equal(t, "c", room.ID)
	assert.Len(t, c.Items(), 3)
	assert.Equal(t, []string{"camera", "projector", "whiteboard"}, c.Equipment(), "options follow the catalog")
	assert.Equal(t, []string{"c"}, created)
	api.AssertExpectations(t)
}

func TestCache_CreateFailureLeavesList(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateClassroom", mock.Anything, mock.Anything).Return(nil, apperr.Conflict)

	c := newCache(api, &gate{signedIn: true}, nil)
	_, err := c.Create(context.Background(), models.NewClassroom{Name: "A", Equipment: []string{"tv"}})
	assert.ErrorIs(t, err, apperr.Conflict)
	assert.Empty(t, c.Items())
}
