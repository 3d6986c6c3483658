package stage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v2"
)

// Config describes the axis bindings of a stage, as read from YAML:
//
//	axes:
//	  x:
//	    serial_number: 31415
//	    alias: 10
//	    microstep_size: 0.000047625
//	    travel_limit: 25.4
//	  y:
//	    serial_number: 31415
//	    actuator: 1
type Config struct {
	Axes map[string]AxisConfig `yaml:"axes"`
}

// AxisConfig binds one axis. Exactly one of Alias and Actuator is set.
// A zero MicrostepSize keeps the default; a zero TravelLimit means none.
type AxisConfig struct {
	SerialNumber  uint32  `yaml:"serial_number"`
	Alias         *int    `yaml:"alias,omitempty"`
	Actuator      *int    `yaml:"actuator,omitempty"`
	MicrostepSize float64 `yaml:"microstep_size,omitempty"`
	TravelLimit   float64 `yaml:"travel_limit,omitempty"`
}

// LoadConfig reads a stage description from the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stage: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses a YAML stage description. Unknown fields are errors.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("stage: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks axis names and per-axis settings.
func (cfg *Config) Validate() error {
	seen := make(map[Axis]string, len(cfg.Axes))
	for _, name := range slices.Sorted(maps.Keys(cfg.Axes)) {
		ac := cfg.Axes[name]

		axis, err := ParseAxis(name)
		if err != nil {
			return err
		}
		if prev, ok := seen[axis]; ok {
			return fmt.Errorf("stage: axis %s given twice (%q, %q)", axis, prev, name)
		}
		seen[axis] = name

		switch {
		case ac.Alias == nil && ac.Actuator == nil:
			return fmt.Errorf("stage: axis %s: one of alias and actuator is required", name)
		case ac.Alias != nil && ac.Actuator != nil:
			return fmt.Errorf("stage: axis %s: alias and actuator are exclusive", name)
		case ac.MicrostepSize < 0:
			return fmt.Errorf("stage: axis %s: %w: %g", name, ErrInvalidMicrostepSize, ac.MicrostepSize)
		case ac.TravelLimit < 0:
			return fmt.Errorf("stage: axis %s: %w: %g", name, ErrInvalidTravelLimit, ac.TravelLimit)
		}
	}

	return nil
}

// Apply binds the axes described by cfg, in X, Y, Z order. Axes absent from
// cfg keep their current binding.
func (s *Stage) Apply(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("stage: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	byAxis := make(map[Axis]AxisConfig, len(cfg.Axes))
	for name, ac := range cfg.Axes {
		axis, _ := ParseAxis(name)
		byAxis[axis] = ac
	}

	for _, axis := range Axes {
		ac, ok := byAxis[axis]
		if !ok {
			continue
		}
		if err := s.applyAxis(ctx, axis, ac); err != nil {
			return fmt.Errorf("stage: apply axis %s: %w", axis, err)
		}
	}

	return nil
}

func (s *Stage) applyAxis(ctx context.Context, axis Axis, ac AxisConfig) error {
	var err error
	if ac.Alias != nil {
		err = s.BindAxis(ctx, axis, ac.SerialNumber, *ac.Alias)
	} else {
		err = s.BindAxisActuator(axis, ac.SerialNumber, *ac.Actuator)
	}
	if err != nil {
		return err
	}

	if ac.MicrostepSize > 0 {
		if err := s.SetMicrostepSize(axis, ac.MicrostepSize); err != nil {
			return err
		}
	}
	if ac.TravelLimit > 0 {
		return s.SetTravelLimit(axis, ac.TravelLimit)
	}

	return nil
}
