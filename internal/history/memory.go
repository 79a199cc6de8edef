package history

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/types"
)

const memoryHeader = "Plant Analysis - "

// Memory labels shared by FormatMemory and ParseMemory
const (
	labelHealth    = "Overall Health"
	labelGrowth    = "Growth"
	labelAction    = "Recommended Action"
	labelReasoning = "Reasoning"
	labelFeeling   = "Feeling"
	labelNeeds     = "Needs"
	labelConcerns  = "Concerns"
	labelTemp      = "Temperature"
	labelHumidity  = "Humidity"
	labelSeason    = "Season"
	labelTimeOfDay = "Time of Day"
)

// FormatMemory renders a record as the labelled text stored in semantic memory
func FormatMemory(r types.HistoricalRecord, hemisphere Hemisphere) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s (%s)\n", memoryHeader, r.SubjectID, r.Timestamp.Format(time.RFC3339))
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, strings.ReplaceAll(value, "\n", " "))
		}
	}
	line(labelHealth, r.Health)
	line(labelGrowth, r.GrowthTrend)
	line(labelAction, r.RecommendedAction)
	line(labelReasoning, r.Reasoning)
	line(labelFeeling, r.PersonaFeeling)
	line(labelNeeds, r.PersonaNeeds)
	line(labelConcerns, r.PersonaConcerns)
	if r.Temperature != nil {
		line(labelTemp, strconv.FormatFloat(*r.Temperature, 'f', 1, 64))
	}
	if r.Humidity != nil {
		line(labelHumidity, strconv.FormatFloat(*r.Humidity, 'f', 0, 64))
	}
	line(labelSeason, Season(r.Timestamp, hemisphere))
	line(labelTimeOfDay, TimeOfDay(r.Timestamp))
	return strings.TrimRight(b.String(), "\n")
}

// ParseMemory reads text produced by FormatMemory. Unknown lines are ignored;
// missing fields stay empty so the adapter can drop incomplete hits.
func ParseMemory(text string) types.HistoricalRecord {
	rec := types.HistoricalRecord{Raw: text}
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, memoryHeader); ok {
			// image names may contain " (", the timestamp is always last
			name, ts := rest, ""
			if i := strings.LastIndex(rest, " ("); i >= 0 {
				name, ts = rest[:i], strings.TrimSuffix(rest[i+2:], ")")
			}
			rec.SubjectID = strings.TrimSpace(name)
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.Timestamp = t
			}
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(label) {
		case labelHealth:
			rec.Health = value
		case labelGrowth:
			rec.GrowthTrend = value
		case labelAction:
			rec.RecommendedAction = value
		case labelReasoning:
			rec.Reasoning = value
		case labelFeeling:
			rec.PersonaFeeling = value
		case labelNeeds:
			rec.PersonaNeeds = value
		case labelConcerns:
			rec.PersonaConcerns = value
		case labelTemp:
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				rec.Temperature = &v
			}
		case labelHumidity:
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				rec.Humidity = &v
			}
		}
	}
	return rec
}
