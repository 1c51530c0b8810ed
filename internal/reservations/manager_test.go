package reservations

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

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

func (m *mockAPI) MyReservations(ctx context.Context) ([]models.Reservation, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Reservation)
	return list, args.Error(1)
}

func (m *mockAPI) DeleteReservation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type gate struct{ signedIn bool }

func (g gate) RequireIdentity() (models.Identity, error) {
	if !g.signedIn {
		return models.Identity{}, apperr.AuthenticationMissing
	}
	return models.Identity{ID: "u1"}, nil
}

func newManager(api API, bus *events.Bus) *Manager {
	logger := zerolog.New(io.Discard)
	return NewManager(api, gate{signedIn: true}, &logger, bus)
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func res(id string, startOffset, length time.Duration) models.Reservation {
	start := now.Add(startOffset)
	return models.Reservation{ID: id, StartTime: start, EndTime: start.Add(length)}
}

func ids(list []models.Reservation) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func TestPartition(t *testing.T) {
	list := []models.Reservation{
		res("past-old", -72*time.Hour, time.Hour),
		res("future-late", 48*time.Hour, time.Hour),
		res("ongoing", -30*time.Minute, time.Hour),
		res("past-recent", -3*time.Hour, time.Hour),
		res("ends-now", -time.Hour, time.Hour),
		res("future-soon", time.Hour, time.Hour),
	}

	future, past := Partition(list, now)
	assert.Equal(t, []string{"ends-now", "ongoing", "future-soon", "future-late"}, ids(future))
	assert.Equal(t, []string{"past-recent", "past-old"}, ids(past))
}

func TestPartition_EachReservationOnce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		list := make([]models.Reservation, r.Intn(20))
		for i := range list {
			offset := time.Duration(r.Intn(200)-100) * time.Hour
			list[i] = res(fmt.Sprintf("r%d", i), offset, time.Duration(r.Intn(5)+1)*time.Hour)
		}

		future, past := Partition(list, now)
		require.Len(t, append(future, past...), len(list))

		seen := map[string]int{}
		for _, f := range future {
			seen[f.ID]++
			assert.False(t, f.EndTime.Before(now))
		}
		for _, p := range past {
			seen[p.ID]++
			assert.True(t, p.EndTime.Before(now))
		}
		for _, x := range list {
			assert.Equal(t, 1, seen[x.ID])
		}
		for i := 1; i < len(future); i++ {
			assert.False(t, future[i].StartTime.Before(future[i-1].StartTime))
		}
		for i := 1; i < len(past); i++ {
			assert.False(t, past[i].StartTime.After(past[i-1].StartTime))
		}
	}
}

func TestFetch_KeepsStaleListOnFailure(t *testing.T) {
	api := &mockAPI{}
	api.On("MyReservations", mock.Anything).Return([]models.Reservation{res("a", time.Hour, time.Hour)}, nil).Once()
	api.On("MyReservations", mock.Anything).Return(nil, apperr.NetworkFailure).Once()

	m := newManager(api, nil)
	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx))
	assert.ErrorIs(t, m.Fetch(ctx), apperr.NetworkFailure)
	assert.Equal(t, []string{"a"}, ids(m.Items()))
	assert.False(t, m.Loading())

	future, past := m.Split(now)
	assert.Len(t, future, 1)
	assert.Empty(t, past)

	m.Reset()
	assert.Empty(t, m.Items())
}

func TestFetch_RequiresIdentity(t *testing.T) {
	api := &mockAPI{}
	logger := zerolog.New(io.Discard)
	m := NewManager(api, gate{}, &logger, nil)

	assert.ErrorIs(t, m.Fetch(context.Background()), apperr.AuthenticationMissing)
	out := m.Cancel(context.Background(), "a")
	assert.Equal(t, Rejected, out.Status)
	assert.ErrorIs(t, out.Err, apperr.AuthenticationMissing)
	api.AssertNotCalled(t, "MyReservations", mock.Anything)
	api.AssertNotCalled(t, "DeleteReservation", mock.Anything, mock.Anything)
}

func TestCancel_CommittedRemovesAfterSuccess(t *testing.T) {
	api := &mockAPI{}
	api.On("MyReservations", mock.Anything).Return([]models.Reservation{
		res("a", time.Hour, time.Hour), res("b", 2*time.Hour, time.Hour),
	}, nil)

	m := newManager(api, events.NewBus())
	api.On("DeleteReservation", mock.Anything, "a").Run(func(mock.Arguments) {
		assert.Contains(t, ids(m.Items()), "a", "still listed while the delete is outstanding")
		assert.True(t, m.Cancelling("a"))
	}).Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx))

	out := m.Cancel(ctx, "a")
	assert.Equal(t, Outcome{ID: "a", Status: Committed}, out)
	assert.Equal(t, []string{"b"}, ids(m.Items()))
	assert.False(t, m.Cancelling("a"))
}

func TestCancel_RejectedKeepsEntry(t *testing.T) {
	api := &mockAPI{}
	api.On("MyReservations", mock.Anything).Return([]models.Reservation{res("a", time.Hour, time.Hour)}, nil)
	api.On("DeleteReservation", mock.Anything, "a").Return(apperr.Forbidden).Once()

	m := newManager(api, nil)
	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx))

	out := m.Cancel(ctx, "a")
	assert.Equal(t, Rejected, out.Status)
	assert.ErrorIs(t, out.Err, apperr.Forbidden)
	assert.Equal(t, []string{"a"}, ids(m.Items()))
	assert.False(t, m.Cancelling("a"))
}

func TestCancel_OnePerID(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	api := &mockAPI{}
	api.On("MyReservations", mock.Anything).Return([]models.Reservation{
		res("a", time.Hour, time.Hour), res("b", 2*time.Hour, time.Hour),
	}, nil)
	api.On("DeleteReservation", mock.Anything, "a").Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil).Once()
	api.On("DeleteReservation", mock.Anything, "b").Return(nil).Once()

	m := newManager(api, nil)
	ctx := context.Background()
	require.NoError(t, m.Fetch(ctx))

	var wg sync.WaitGroup
	var first Outcome
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = m.Cancel(ctx, "a")
	}()
	<-entered

	assert.Equal(t, Pending, m.Cancel(ctx, "a").Status)
	assert.Equal(t, Committed, m.Cancel(ctx, "b").Status, "other ids are independent")

	close(release)
	wg.Wait()
	assert.Equal(t, Committed, first.Status)
	assert.Empty(t, m.Items())
	api.AssertNumberOfCalls(t, "DeleteReservation", 2)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "rejected", Rejected.String())
}
