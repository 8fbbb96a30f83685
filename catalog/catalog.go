// Package catalog defines the authored sound catalog: named sound entries,
// voice pool sizing, and playback parameters loaded from YAML.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Position is an optional 3D emitter position for a sound
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Sound is one immutable authored catalog entry
type Sound struct {
	ID              string    `yaml:"id"`
	File            string    `yaml:"file"`
	Volume          float64   `yaml:"volume"`        // 0.0-1.0
	Loop            bool      `yaml:"loop"`
	Pitch           float64   `yaml:"pitch"`         // [-3, 3], never 0
	SpatialBlend    float64   `yaml:"spatial_blend"` // 0 = flat, 1 = fully positional
	Position        *Position `yaml:"position,omitempty"`
	MaxSimultaneous int       `yaml:"max_simultaneous"`
	Fade            bool      `yaml:"fade"`
	FadeIn          float64   `yaml:"fade_in"`  // seconds
	FadeOut         float64   `yaml:"fade_out"` // seconds
	Group           string    `yaml:"group"`
}

// Config holds catalog-level pool sizing and playback policy
type Config struct {
	InitialPoolSize int  `yaml:"initial_pool_size"`
	MaxPoolSize     int  `yaml:"max_pool_size"`
	ExclusivePlay   bool `yaml:"exclusive_play"`
}

// Catalog is an ordered set of sound definitions plus pool config
type Catalog struct {
	Pool   Config  `yaml:"pool"`
	Sounds []Sound `yaml:"sounds"`
}

// UnmarshalYAML applies authoring defaults before decoding
func (s *Sound) UnmarshalYAML(value *yaml.Node) error {
	type raw Sound
	r := raw{
		Volume:          1.0,
		Pitch:           1.0,
		MaxSimultaneous: 1,
	}
	if err := value.Decode(&r); err != nil {
		return err
	}
	*s = Sound(r)
	return nil
}

// UnmarshalYAML applies pool sizing defaults before decoding
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type raw Config
	r := raw{
		InitialPoolSize: 1,
		MaxPoolSize:     8,
	}
	if err := value.Decode(&r); err != nil {
		return err
	}
	*c = Config(r)
	return nil
}

// Validate reports every authoring error in the definition.
// Violations are reported, never silently fixed.
func (s *Sound) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("sound id is empty"))
	}
	if s.File == "" {
		errs = append(errs, fmt.Errorf("sound %q: file reference is empty", s.ID))
	}
	if s.Volume < 0 || s.Volume > 1 {
		errs = append(errs, fmt.Errorf("sound %q: volume %v outside [0, 1]", s.ID, s.Volume))
	}
	if s.Pitch == 0 {
		errs = append(errs, fmt.Errorf("sound %q: pitch is zero", s.ID))
	}
	if s.Pitch < -3 || s.Pitch > 3 {
		errs = append(errs, fmt.Errorf("sound %q: pitch %v outside [-3, 3]", s.ID, s.Pitch))
	}
	if s.SpatialBlend < 0 || s.SpatialBlend > 1 {
		errs = append(errs, fmt.Errorf("sound %q: spatial blend %v outside [0, 1]", s.ID, s.SpatialBlend))
	}
	if s.MaxSimultaneous < 1 {
		errs = append(errs, fmt.Errorf("sound %q: max_simultaneous %d must be at least 1", s.ID, s.MaxSimultaneous))
	}
	if s.FadeIn < 0 {
		errs = append(errs, fmt.Errorf("sound %q: fade_in %v is negative", s.ID, s.FadeIn))
	}
	if s.FadeOut < 0 {
		errs = append(errs, fmt.Errorf("sound %q: fade_out %v is negative", s.ID, s.FadeOut))
	}
	return errors.Join(errs...)
}

// Validate checks pool sizing constraints
func (c *Config) Validate() error {
	var errs []error
	if c.InitialPoolSize < 1 {
		errs = append(errs, fmt.Errorf("initial_pool_size %d must be at least 1", c.InitialPoolSize))
	}
	if c.MaxPoolSize < c.InitialPoolSize {
		errs = append(errs, fmt.Errorf("max_pool_size %d smaller than initial_pool_size %d", c.MaxPoolSize, c.InitialPoolSize))
	}
	return errors.Join(errs...)
}

// Validate checks the pool config, every sound, and id uniqueness
func (c *Catalog) Validate() error {
	var errs []error
	if err := c.Pool.Validate(); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Sounds))
	for i := range c.Sounds {
		s := &c.Sounds[i]
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if s.ID != "" && seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate sound id %q", s.ID))
		}
		seen[s.ID] = true
	}
	return errors.Join(errs...)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// Load reads and parses a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Index builds a lookup table keyed by sound id.
// Built once at load; callers should not re-scan the sound list per play.
func (c *Catalog) Index() map[string]*Sound {
	idx := make(map[string]*Sound, len(c.Sounds))
	for i := range c.Sounds {
		idx[c.Sounds[i].ID] = &c.Sounds[i]
	}
	return idx
}

// IDs returns sound ids in authored order
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Sounds))
	for i := range c.Sounds {
		ids = append(ids, c.Sounds[i].ID)
	}
	return ids
}

// FadeInDuration converts the authored fade-in seconds to a duration
func (s *Sound) FadeInDuration() time.Duration {
	return time.Duration(s.FadeIn * float64(time.Second))
}

// FadeOutDuration converts the authored fade-out seconds to a duration
func (s *Sound) FadeOutDuration() time.Duration {
	return time.Duration(s.FadeOut * float64(time.Second))
}
