package config

import (
	"context"
	"os"
	"time"
)

// SeedWatcher polls classrooms.yaml and hands every successfully parsed revision to OnUpdate.
type SeedWatcher struct {
	Path     string
	Interval time.Duration
	OnUpdate func(*ClassroomsConfig)
	// OnError receives read and parse failures; the previous revision stays in effect.
	OnError func(error)

	lastMod time.Time
}

// Start loads the seed once, synchronously, then keeps polling in a goroutine until ctx ends.
func (w *SeedWatcher) Start(ctx context.Context) error {
	if w.Path == "" {
		w.Path = "configs/classrooms.yaml"
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}

	if err := w.reload(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.poll(); err != nil && w.OnError != nil {
					w.OnError(err)
				}
			}
		}
	}()

	return nil
}

func (w *SeedWatcher) poll() error {
	info, err := os.Stat(w.Path)
	if err != nil {
		return err
	}
	if !info.ModTime().After(w.lastMod) {
		return nil
	}
	return w.reload()
}

func (w *SeedWatcher) reload() error {
	info, err := os.Stat(w.Path)
	if err != nil {
		return err
	}
	cfg, err := LoadClassroomsConfig(w.Path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
	return nil
}
