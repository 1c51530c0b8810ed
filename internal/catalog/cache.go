package catalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"classbook/internal/apperr"
	"classbook/internal/events"
	"classbook/internal/models"
)

// API is the slice of the backend client the catalog needs.
type API interface {
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
	CreateClassroom(ctx context.Context, in models.NewClassroom) (*models.Classroom, error)
}

// Gate reports the signed-in identity or an AuthenticationMissing error.
type Gate interface {
	RequireIdentity() (models.Identity, error)
}

// Cache holds the last successfully fetched classroom list.
type Cache struct {
	mu      sync.Mutex
	rooms   []models.Classroom
	loaded  bool
	loading bool

	api    API
	gate   Gate
	bus    *events.Bus
	logger zerolog.Logger
}

func NewCache(api API, gate Gate, logger *zerolog.Logger, bus *events.Bus) *Cache {
	return &Cache{
		api:    api,
		gate:   gate,
		bus:    bus,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Refresh refetches the list. On failure the previous list is kept and the error is logged and returned.
func (c *Cache) Refresh(ctx context.Context) error {
	if _, err := c.gate.RequireIdentity(); err != nil {
		return err
	}

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	rooms, err := c.api.ListClassrooms(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch classrooms")
		return err
	}
	c.rooms = rooms
	c.loaded = true
	return nil
}

// Items returns a copy of the cached list.
func (c *Cache) Items() []models.Classroom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Classroom(nil), c.rooms...)
}

func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Loaded reports whether at least one fetch has succeeded since the last reset.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Equipment is recomputed from the current list on every call.
func (c *Cache) Equipment() []string {
	return EquipmentOptions(c.Items())
}

// View applies the criteria and order to the current list.
func (c *Cache) View(criteria Criteria, order SortOrder) []models.Classroom {
	return Apply(c.Items(), criteria, order)
}

// Create validates and posts a new classroom, then appends the server's copy.
// The form needs a name, a non-negative capacity and at least one equipment item.
func (c *Cache) Create(ctx context.Context, in models.NewClassroom) (*models.Classroom, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation("create classroom", err)
	}
	if len(in.Equipment) == 0 {
		return nil, apperr.Validation("create classroom", models.ErrClassroomEquipment)
	}
	if _, err := c.gate.RequireIdentity(); err != nil {
		return nil, err
	}

	room, err := c.api.CreateClassroom(ctx, in)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rooms = append(c.rooms, *room)
	c.mu.Unlock()

	if err := c.bus.PublishJSON(events.ClassroomCreated, room); err != nil {
		c.logger.Warn().Err(err).Msg("classroom.created handler failed")
	}
	return room, nil
}

// Reset drops the cached list, e.g. after sign-out.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = nil
	c.loaded = false
}
