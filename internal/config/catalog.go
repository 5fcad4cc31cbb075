package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"tutorbook/internal/availability"
	"tutorbook/internal/slots"
)

// Catalog is the grid of slots tutors can toggle, loaded from slots.yaml.
type Catalog struct {
	// Slots lists explicit "HH:MM-HH:MM" entries.
	Slots []string `yaml:"slots"`
	// Hours generates one-hour slots when Slots is empty.
	Hours struct {
		From int `yaml:"from"`
		To   int `yaml:"to"`
	} `yaml:"hours"`
}

// DefaultCatalog returns the built-in 09:00-21:00 hourly grid.
func DefaultCatalog() *Catalog {
	return &Catalog{Slots: append([]string{}, availability.DefaultCatalog...)}
}

// LoadCatalog loads and validates the slot catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = "configs/slots.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slot catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse slot catalog: %w", err)
	}

	if err := cat.normalize(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) normalize() error {
	if len(c.Slots) == 0 {
		if c.Hours.To <= c.Hours.From {
			return fmt.Errorf("slot catalog: no slots and invalid hours %d-%d", c.Hours.From, c.Hours.To)
		}
		c.Slots = availability.HourlyCatalog(c.Hours.From, c.Hours.To)
	}

	parsed := make([]slots.Interval, 0, len(c.Slots))
	for _, s := range c.Slots {
		iv, err := slots.ParseInterval(s)
		if err != nil {
			return fmt.Errorf("slot catalog: %w", err)
		}
		parsed = append(parsed, iv)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].StartMin < parsed[j].StartMin })
	for i := 1; i < len(parsed); i++ {
		if parsed[i].Overlaps(parsed[i-1]) {
			return fmt.Errorf("slot catalog: %s overlaps %s", parsed[i], parsed[i-1])
		}
	}

	c.Slots = c.Slots[:0]
	for _, iv := range parsed {
		c.Slots = append(c.Slots, iv.String())
	}
	return nil
}

// Contains reports whether slot is part of the catalog.
func (c *Catalog) Contains(slot string) bool {
	for _, s := range c.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// WatchCatalog reloads the slot catalog on change and calls onUpdate with the latest one.
// It performs an initial load before entering the watch loop.
func WatchCatalog(ctx context.Context, path string, interval time.Duration, onUpdate func(*Catalog)) error {
	if path == "" {
		path = "configs/slots.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cat)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cat, err := LoadCatalog(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cat)
				}
			}
		}
	}()

	return nil
}
