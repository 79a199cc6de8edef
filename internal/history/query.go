package history

import (
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/types"
)

// Hemisphere decides how months map to seasons
type Hemisphere string

const (
	Southern Hemisphere = "southern"
	Northern Hemisphere = "northern"
)

// Season returns the meteorological season of t
func Season(t time.Time, h Hemisphere) string {
	seasons := [4]string{"summer", "autumn", "winter", "spring"}
	if h == Northern {
		seasons = [4]string{"winter", "spring", "summer", "autumn"}
	}
	// Dec-Feb, Mar-May, Jun-Aug, Sep-Nov
	return seasons[(int(t.Month())%12)/3]
}

// TimeOfDay buckets the hour of t
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return "morning"
	case h >= 12 && h < 18:
		return "afternoon"
	case h >= 18 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

// BuildQuery composes a semantic search query from the current conditions
func BuildQuery(env types.EnvironmentReading, now time.Time, h Hemisphere) string {
	terms := []string{"plant health analysis"}
	if env.Temperature != nil {
		switch t := *env.Temperature; {
		case t < 18:
			terms = append(terms, "cold temperature")
		case t > 25:
			terms = append(terms, "high temperature")
		default:
			terms = append(terms, "comfortable temperature")
		}
	}
	if env.Humidity != nil {
		switch hum := *env.Humidity; {
		case hum < 40:
			terms = append(terms, "low humidity")
		case hum > 70:
			terms = append(terms, "high humidity")
		}
	}
	terms = append(terms, Season(now, h), TimeOfDay(now))
	terms = append(terms, "leaf condition", "growth", "recommended action")
	return strings.Join(terms, " ")
}
