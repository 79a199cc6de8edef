package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Migrates(t *testing.T) {
	db := openTest(t)
	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestLedger_DedupesNormalized(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	for _, id := range []string{"Leaf.png", " leaf.png ", "LEAF.PNG", "stem.jpg"} {
		require.NoError(t, db.AppendProcessed(ctx, id))
	}
	ids, err := db.ReadProcessedIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Leaf.png", "stem.jpg"}, ids)

	last, err := db.LastProcessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "stem.jpg", last[0].ID)

	assert.Error(t, db.AppendProcessed(ctx, "   "))
}

func TestLedger_ConcurrentAppendsAtMostOnce(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	inserted := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "img.jpg"
			if i%2 == 0 {
				id = "IMG.JPG"
			}
			ok, err := db.MarkProcessed(ctx, id, time.Now())
			assert.NoError(t, err)
			inserted <- ok
		}(i)
	}
	wg.Wait()
	close(inserted)

	n := 0
	for ok := range inserted {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestAnalyses_RoundTripAndIncompleteRows(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	temp := 21.5

	for i := 0; i < 3; i++ {
		require.NoError(t, db.AppendAnalysis(ctx, types.HistoricalRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			SubjectID:   fmt.Sprintf("img%d.jpg", i),
			Health:      "Healthy",
			Temperature: &temp,
		}))
	}
	require.NoError(t, db.AppendAnalysis(ctx, types.HistoricalRecord{Health: "orphan row"}))

	rows, err := db.ReadRecentRows(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "img1.jpg", rows[0].SubjectID)
	assert.True(t, rows[0].Timestamp.Equal(base.Add(time.Hour)))
	require.NotNil(t, rows[0].Temperature)
	assert.InDelta(t, 21.5, *rows[0].Temperature, 0.001)
	assert.Nil(t, rows[0].Humidity)
	assert.True(t, rows[2].Timestamp.IsZero())
	assert.Empty(t, rows[2].SubjectID)

	n, err := db.CountAnalysesSince(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReflections_OutcomeSetOnce(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	none, err := db.LatestReflection(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := types.ReflectionRecord{
		ID:        "01A",
		Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Decisions: map[types.Actuator]types.Decision{
			types.ActuatorLighting: {Actuator: types.ActuatorLighting, DesiredState: types.PowerOn, IsOverride: true},
		},
	}
	second := first
	second.ID = "01B"
	second.Timestamp = first.Timestamp.Add(time.Hour)
	require.NoError(t, db.SaveReflection(ctx, first))
	require.NoError(t, db.SaveReflection(ctx, second))

	latest, err := db.LatestReflection(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "01B", latest.ID)
	assert.True(t, latest.Decisions[types.ActuatorLighting].IsOverride)
	assert.Equal(t, types.OutcomeUnset, latest.Outcome)

	ok, err := db.SetReflectionOutcome(ctx, "01B", types.OutcomeNegative)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.SetReflectionOutcome(ctx, "01B", types.OutcomePositive)
	require.NoError(t, err)
	assert.False(t, ok)

	latest, err = db.LatestReflection(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNegative, latest.Outcome)

	recent, err := db.RecentReflections(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestDeviceReadings(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	none, err := db.LatestDeviceReading(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	hum := 55.0
	require.NoError(t, db.AppendDeviceReading(ctx, DeviceReading{
		Timestamp: time.Now(),
		Humidity:  &hum,
		Devices:   []types.DeviceState{{ID: "d1", Name: "Light 1", Actuator: types.ActuatorLighting, PowerState: "On", Online: true}},
		Comments:  []string{"Light 1 should be OFF"},
	}))
	got, err := db.LatestDeviceReading(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Temperature)
	assert.Equal(t, "Light 1", got.Devices[0].Name)
	assert.Equal(t, []string{"Light 1 should be OFF"}, got.Comments)
}

func TestCyclesAndNotifications(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordCycle(ctx, CycleRecord{ID: "c1", StartedAt: now.Add(-25 * time.Hour), FinishedAt: now, Status: "ok"}))
	require.NoError(t, db.RecordCycle(ctx, CycleRecord{ID: "c2", StartedAt: now, FinishedAt: now, Status: "degraded", Errors: []string{"x"}}))
	n, err := db.CountCyclesSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	first, err := db.MarkNotified(ctx, "daily_summary", "2026-03-01", now)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = db.MarkNotified(ctx, "daily_summary", "2026-03-01", now)
	require.NoError(t, err)
	assert.False(t, first)

	sent, err := db.WasNotified(ctx, "no_images", "2026-03-01")
	require.NoError(t, err)
	assert.False(t, sent)
}
