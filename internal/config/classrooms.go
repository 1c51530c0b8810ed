package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"classbook/internal/models"
)

// ClassroomSeed is a single classroom entry in classrooms.yaml.
type ClassroomSeed struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Capacity  int      `yaml:"capacity"`
	Equipment []string `yaml:"equipment"`
}

// ClassroomsConfig is the root of classrooms.yaml.
type ClassroomsConfig struct {
	Classrooms []ClassroomSeed `yaml:"classrooms"`
}

// LoadClassroomsConfig loads and validates the classroom seed file.
func LoadClassroomsConfig(path string) (*ClassroomsConfig, error) {
	if path == "" {
		path = "configs/classrooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classrooms config: %w", err)
	}

	var cfg ClassroomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse classrooms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate classrooms config: %w", err)
	}

	for i := range cfg.Classrooms {
		cfg.Classrooms[i].Equipment = models.NormalizeEquipment(cfg.Classrooms[i].Equipment)
	}

	return &cfg, nil
}

// Validate checks the seed for errors.
func (c *ClassroomsConfig) Validate() error {
	ids := make(map[string]bool)
	names := make(map[string]bool)

	for i, room := range c.Classrooms {
		if room.ID == "" {
			return fmt.Errorf("classroom[%d]: id is required", i)
		}
		if ids[room.ID] {
			return fmt.Errorf("classroom[%d]: duplicate id %q", i, room.ID)
		}
		ids[room.ID] = true

		if room.Name == "" {
			return fmt.Errorf("classroom[%d]: name is required", i)
		}
		if names[room.Name] {
			return fmt.Errorf("classroom[%d]: duplicate name %q", i, room.Name)
		}
		names[room.Name] = true

		if room.Capacity < 0 {
			return fmt.Errorf("classroom[%d]: capacity cannot be negative", i)
		}
	}

	return nil
}

// Models converts the seed entries into classrooms.
func (c *ClassroomsConfig) Models() []models.Classroom {
	out := make([]models.Classroom, 0, len(c.Classrooms))
	for _, room := range c.Classrooms {
		out = append(out, models.Classroom{
			ID:        room.ID,
			Name:      room.Name,
			Capacity:  room.Capacity,
			Equipment: room.Equipment,
		})
	}
	return out
}
