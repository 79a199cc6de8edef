package status

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/summarizer"
	"github.com/vthunder/plantbud/internal/types"
)

type fakeStore struct {
	analyses int
	cycles   int
	sent     map[string]bool
}

func (f *fakeStore) CountAnalysesSince(context.Context, time.Time) (int, error) { return f.analyses, nil }
func (f *fakeStore) CountCyclesSince(context.Context, time.Time) (int, error) { return f.cycles, nil }

func (f *fakeStore) WasNotified(_ context.Context, kind, day string) (bool, error) {
	return f.sent[kind+day], nil
}

func (f *fakeStore) MarkNotified(_ context.Context, kind, day string, _ time.Time) (bool, error) {
	if f.sent == nil {
		f.sent = map[string]bool{}
	}
	first := !f.sent[kind+day]
	f.sent[kind+day] = true
	return first, nil
}

type fakeNotifier struct {
	msgs []string
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, text string, _ types.Urgency) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, text)
	return nil
}

type fixedCount int

func (c fixedCount) Count(context.Context) (int, error) { return int(c), nil }

func newReporter(st *fakeStore, n *fakeNotifier) *Reporter {
	r := NewReporter(DefaultConfig(), st, fixedCount(12), n)
	r.host = func(context.Context) (HostHealth, error) {
		return HostHealth{MemUsedPercent: 40, ProcessRSS: 32 << 20, Uptime: 3 * time.Hour}, nil
	}
	return r
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 5, 0, 0, time.UTC)
}

func TestCheck_NothingDueInMorning(t *testing.T) {
	n := &fakeNotifier{}
	sent, err := newReporter(&fakeStore{}, n).Check(context.Background(), at(9), types.EnvironmentReading{}, summarizer.Assessment{}, nil)
	require.NoError(t, err)
	assert.Empty(t, sent)
	assert.Empty(t, n.msgs)
}

func TestCheck_NoImagesOncePerDay(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	r := newReporter(st, n)
	ctx := context.Background()

	sent, err := r.Check(ctx, at(18), types.EnvironmentReading{}, summarizer.Assessment{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{KindNoImages}, sent)

	sent, err = r.Check(ctx, at(19), types.EnvironmentReading{}, summarizer.Assessment{}, nil)
	require.NoError(t, err)
	assert.Empty(t, sent)
	assert.Len(t, n.msgs, 1)
}

func TestCheck_NoImagesSkippedWhenAnalysed(t *testing.T) {
	st := &fakeStore{analyses: 2}
	sent, err := newReporter(st, &fakeNotifier{}).Check(context.Background(), at(18), types.EnvironmentReading{}, summarizer.Assessment{}, nil)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestCheck_DailySummary(t *testing.T) {
	st := &fakeStore{analyses: 3, cycles: 7}
	n := &fakeNotifier{}
	temp, hum := 21.0, 55.0
	devices := []types.DeviceState{
		{Actuator: types.ActuatorLighting, PowerState: "On"},
		{Actuator: types.ActuatorLighting, PowerState: "Off"},
		{Actuator: types.ActuatorAeration, PowerState: "Off"},
	}

	sent, err := newReporter(st, n).Check(context.Background(), at(20),
		types.EnvironmentReading{Temperature: &temp, Humidity: &hum},
		summarizer.Assessment{Status: summarizer.EnvironmentOK}, devices)
	require.NoError(t, err)
	assert.Equal(t, []string{KindDailySummary}, sent)
	require.Len(t, n.msgs, 1)

	msg := n.msgs[0]
	for _, want := range []string{
		"Daily Summary (2026-03-02)",
		"Temperature: 21.0°C",
		"Humidity: 55%",
		"Lighting: 1/2 on",
		"Aeration: 0/1 on",
		"Images analyzed today: 3",
		"Cycles completed today: 7",
		"Memory entries: 12",
		"thriving in optimal conditions",
		"process 32.0 MB",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in:\n%s", want, msg)
	}
}

func TestCheck_FailedSendIsRetried(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{err: errors.New("offline")}
	r := newReporter(st, n)

	_, err := r.Check(context.Background(), at(18), types.EnvironmentReading{}, summarizer.Assessment{}, nil)
	assert.ErrorContains(t, err, "offline")

	n.err = nil
	sent, err := r.Check(context.Background(), at(18), types.EnvironmentReading{}, summarizer.Assessment{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{KindNoImages}, sent)
}

func TestPlantStatus(t *testing.T) {
	assert.Equal(t, "monitoring (limited sensor data)",
		PlantStatus(summarizer.Assessment{Status: summarizer.EnvironmentLimitedData}, nil))
	assert.Equal(t, "needs attention (temperature 30.0 above 24.0)",
		PlantStatus(summarizer.Assessment{Status: summarizer.EnvironmentNeedsAttention, Notes: []string{"temperature 30.0 above 24.0"}}, nil))
	assert.Equal(t, "doing well with current environment",
		PlantStatus(summarizer.Assessment{Status: summarizer.EnvironmentOK}, nil))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{DailySummaryHour: 24}.Validate(), types.ErrConfiguration)
}
