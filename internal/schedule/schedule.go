// Package schedule maps the hour of day to the actuator states that hold
// absent any override.
package schedule

import (
	"errors"
	"fmt"

	"github.com/vthunder/plantbud/internal/types"
)

// ErrInvalidHour is returned for hours outside 0..23
var ErrInvalidHour = errors.New("hour must be in 0..23")

// Interval is a half-open hour range [Start, End)
type Interval struct {
	Start int `json:"start" mapstructure:"start" yaml:"start"`
	End   int `json:"end" mapstructure:"end" yaml:"end"`
}

// Contains reports whether hour falls inside the interval
func (iv Interval) Contains(hour int) bool {
	return hour >= iv.Start && hour < iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d:00 - %d:00", iv.Start, iv.End)
}

func (iv Interval) validate() error {
	if iv.Start < 0 || iv.End > 24 {
		return fmt.Errorf("interval %s outside 0..24", iv)
	}
	if iv.Start >= iv.End {
		return fmt.Errorf("interval %s: start must be before end", iv)
	}
	return nil
}

// Config holds the lighting window and aeration intervals
type Config struct {
	LightingStart     int        `json:"lighting_start" mapstructure:"lighting_start"`
	LightingEnd       int        `json:"lighting_end" mapstructure:"lighting_end"`
	AerationIntervals []Interval `json:"aeration_intervals" mapstructure:"aeration_intervals"`
}

// DefaultConfig is lighting 8-18 and four one-hour aeration runs starting at 8
func DefaultConfig() Config {
	return Config{
		LightingStart:     8,
		LightingEnd:       18,
		AerationIntervals: EvenlySpaced(8, 4, 4, 1),
	}
}

// EvenlySpaced builds count intervals of duration hours, starting every spacing hours
func EvenlySpaced(first, count, spacing, duration int) []Interval {
	out := make([]Interval, 0, count)
	for i := 0; i < count; i++ {
		start := first + i*spacing
		out = append(out, Interval{Start: start, End: start + duration})
	}
	return out
}

// Validate checks bounds. Invalid schedules are a startup error.
func (c Config) Validate() error {
	var errs []error
	if err := (Interval{Start: c.LightingStart, End: c.LightingEnd}).validate(); err != nil {
		errs = append(errs, fmt.Errorf("lighting: %w", err))
	}
	if len(c.AerationIntervals) == 0 {
		errs = append(errs, errors.New("aeration: at least one interval required"))
	}
	for i, iv := range c.AerationIntervals {
		if err := iv.validate(); err != nil {
			errs = append(errs, fmt.Errorf("aeration[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: schedule: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Engine computes scheduled states. It holds no mutable state.
type Engine struct {
	lighting Interval
	aeration []Interval
}

// New validates cfg and returns an engine bound to a private copy of it
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	aeration := make([]Interval, len(cfg.AerationIntervals))
	copy(aeration, cfg.AerationIntervals)
	return &Engine{
		lighting: Interval{Start: cfg.LightingStart, End: cfg.LightingEnd},
		aeration: aeration,
	}, nil
}

// Actuators lists the actuators in output order
func (e *Engine) Actuators() []types.Actuator {
	return []types.Actuator{types.ActuatorLighting, types.ActuatorAeration}
}

// ScheduleFor returns one decision per actuator, lighting first
func (e *Engine) ScheduleFor(hour int) ([]types.ScheduleDecision, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHour, hour)
	}
	return []types.ScheduleDecision{e.lightingFor(hour), e.aerationFor(hour)}, nil
}

func (e *Engine) lightingFor(hour int) types.ScheduleDecision {
	if e.lighting.Contains(hour) {
		return types.ScheduleDecision{
			Actuator:     types.ActuatorLighting,
			DesiredState: types.PowerOn,
			Reason:       fmt.Sprintf("Based on schedule (%s)", e.lighting),
		}
	}
	return types.ScheduleDecision{
		Actuator:     types.ActuatorLighting,
		DesiredState: types.PowerOff,
		Reason:       fmt.Sprintf("Outside scheduled hours (%s)", e.lighting),
	}
}

func (e *Engine) aerationFor(hour int) types.ScheduleDecision {
	for _, iv := range e.aeration {
		if iv.Contains(hour) {
			return types.ScheduleDecision{
				Actuator:     types.ActuatorAeration,
				DesiredState: types.PowerOn,
				Reason:       fmt.Sprintf("Based on schedule (%s)", iv),
			}
		}
	}
	return types.ScheduleDecision{
		Actuator:     types.ActuatorAeration,
		DesiredState: types.PowerOff,
		Reason:       "Outside scheduled intervals",
	}
}

// Intervals returns a copy of the aeration intervals
func (e *Engine) Intervals() []Interval {
	out := make([]Interval, len(e.aeration))
	copy(out, e.aeration)
	return out
}

// Lighting returns the lighting window
func (e *Engine) Lighting() Interval {
	return e.lighting
}
