package summarizer

import (
	"fmt"
	"strings"

	"github.com/vthunder/plantbud/internal/types"
)

// Thresholds are the comfort ranges for the plant, inclusive
type Thresholds struct {
	TempMin     float64 `json:"temp_min" mapstructure:"temp_min"`
	TempMax     float64 `json:"temp_max" mapstructure:"temp_max"`
	HumidityMin float64 `json:"humidity_min" mapstructure:"humidity_min"`
	HumidityMax float64 `json:"humidity_max" mapstructure:"humidity_max"`
}

// DefaultThresholds is 18-24 C and 40-70 % relative humidity
func DefaultThresholds() Thresholds {
	return Thresholds{TempMin: 18, TempMax: 24, HumidityMin: 40, HumidityMax: 70}
}

// Validate rejects inverted ranges
func (t Thresholds) Validate() error {
	if t.TempMin >= t.TempMax {
		return fmt.Errorf("%w: temperature range %.1f-%.1f", types.ErrConfiguration, t.TempMin, t.TempMax)
	}
	if t.HumidityMin >= t.HumidityMax || t.HumidityMin < 0 || t.HumidityMax > 100 {
		return fmt.Errorf("%w: humidity range %.1f-%.1f", types.ErrConfiguration, t.HumidityMin, t.HumidityMax)
	}
	return nil
}

// EnvironmentStatus summarizes a reading against the thresholds
type EnvironmentStatus string

const (
	EnvironmentOK             EnvironmentStatus = "ok"
	EnvironmentNeedsAttention EnvironmentStatus = "needs attention"
	EnvironmentLimitedData    EnvironmentStatus = "limited sensor data"
)

// Assessment is the result of checking one reading
type Assessment struct {
	Status EnvironmentStatus `json:"status"`
	Notes  []string          `json:"notes,omitempty"`
}

func (a Assessment) String() string {
	if len(a.Notes) == 0 {
		return string(a.Status)
	}
	return fmt.Sprintf("%s (%s)", a.Status, strings.Join(a.Notes, "; "))
}

// Assess flags out-of-range values. A missing measurement means limited
// sensor data, never a guess.
func (s *Summarizer) Assess(r types.EnvironmentReading) Assessment {
	th := s.thresholds
	var notes []string
	missing, outOfRange := false, false

	if r.Temperature == nil {
		missing = true
		notes = append(notes, "temperature unavailable")
	} else if t := *r.Temperature; t < th.TempMin || t > th.TempMax {
		outOfRange = true
		notes = append(notes, fmt.Sprintf("temperature %.1f°C outside %.0f-%.0f°C", t, th.TempMin, th.TempMax))
	}

	if r.Humidity == nil {
		missing = true
		notes = append(notes, "humidity unavailable")
	} else if h := *r.Humidity; h < th.HumidityMin || h > th.HumidityMax {
		outOfRange = true
		notes = append(notes, fmt.Sprintf("humidity %.0f%% outside %.0f-%.0f%%", h, th.HumidityMin, th.HumidityMax))
	}

	switch {
	case outOfRange:
		return Assessment{Status: EnvironmentNeedsAttention, Notes: notes}
	case missing:
		return Assessment{Status: EnvironmentLimitedData, Notes: notes}
	default:
		return Assessment{Status: EnvironmentOK}
	}
}
