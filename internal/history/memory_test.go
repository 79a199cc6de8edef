package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

func TestFormatParseMemory(t *testing.T) {
	temp, hum := 22.5, 61.0
	in := types.HistoricalRecord{
		Timestamp:         time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC),
		SubjectID:         "IMG_0042.jpg",
		Health:            "Healthy with minor leaf curl",
		GrowthTrend:       "new leaf unfurling",
		RecommendedAction: "More light in the afternoon",
		Reasoning:         "Leaves lean toward the window: light is uneven.",
		PersonaFeeling:    "content",
		Temperature:       &temp,
		Humidity:          &hum,
	}

	text := FormatMemory(in, Southern)
	assert.Contains(t, text, "Season: autumn")
	assert.Contains(t, text, "Time of Day: afternoon")
	assert.NotContains(t, text, "Needs:")

	out := ParseMemory(text)
	assert.Equal(t, in.SubjectID, out.SubjectID)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.Health, out.Health)
	assert.Equal(t, in.GrowthTrend, out.GrowthTrend)
	assert.Equal(t, in.RecommendedAction, out.RecommendedAction)
	assert.Equal(t, in.Reasoning, out.Reasoning)
	require.NotNil(t, out.Temperature)
	assert.InDelta(t, 22.5, *out.Temperature, 0.01)
	require.NotNil(t, out.Humidity)
	assert.InDelta(t, 61, *out.Humidity, 0.01)
	assert.Nil(t, ParseMemory("Overall Health: fine").Temperature)
}

func TestParseMemory_Header(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		subject string
	}{
		{"plain", "IMG_1234.jpg"},
		{"duplicate suffix", "IMG_1234 (1).jpg"},
		{"several parens", "plant (left) (2).png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParseMemory(FormatMemory(types.HistoricalRecord{SubjectID: tt.subject, Timestamp: ts}, Northern))
			assert.Equal(t, tt.subject, out.SubjectID)
			assert.True(t, ts.Equal(out.Timestamp), "timestamp %v", out.Timestamp)
		})
	}

	rec := ParseMemory(memoryHeader + "IMG_9.jpg")
	assert.Equal(t, "IMG_9.jpg", rec.SubjectID)
	assert.True(t, rec.Timestamp.IsZero())
}

func TestParseMemory_Freeform(t *testing.T) {
	rec := ParseMemory("the plant looked thirsty today")
	assert.Empty(t, rec.SubjectID)
	assert.True(t, rec.Timestamp.IsZero())
	assert.Equal(t, "the plant looked thirsty today", rec.Raw)
}

func TestSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		south string
		north string
	}{
		{time.January, "summer", "winter"},
		{time.March, "autumn", "spring"},
		{time.July, "winter", "summer"},
		{time.October, "spring", "autumn"},
		{time.December, "summer", "winter"},
	}
	for _, tt := range tests {
		ts := time.Date(2026, tt.month, 15, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.south, Season(ts, Southern), tt.month.String())
		assert.Equal(t, tt.north, Season(ts, Northern), tt.month.String())
	}
}

func TestTimeOfDay(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC) }
	assert.Equal(t, "night", TimeOfDay(at(5)))
	assert.Equal(t, "morning", TimeOfDay(at(6)))
	assert.Equal(t, "afternoon", TimeOfDay(at(12)))
	assert.Equal(t, "evening", TimeOfDay(at(21)))
	assert.Equal(t, "night", TimeOfDay(at(22)))
}

func TestBuildQuery(t *testing.T) {
	cold, dry := 15.0, 30.0
	q := BuildQuery(types.EnvironmentReading{Temperature: &cold, Humidity: &dry},
		time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC), Southern)
	assert.Contains(t, q, "cold temperature")
	assert.Contains(t, q, "low humidity")
	assert.Contains(t, q, "winter")
	assert.Contains(t, q, "morning")

	q = BuildQuery(types.EnvironmentReading{}, time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC), Southern)
	assert.NotContains(t, q, "temperature")
	assert.Contains(t, q, "night")
}
