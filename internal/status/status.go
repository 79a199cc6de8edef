// Package status sends the proactive owner messages: a daily summary and a
// reminder when no photo arrived during the day. Each goes out at most once
// per local day.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/effectors"
	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/summarizer"
	"github.com/vthunder/plantbud/internal/types"
)

// Notification kinds recorded in the notification log
const (
	KindDailySummary = "daily_summary"
	KindNoImages     = "no_images"
)

// Config sets when messages go out
type Config struct {
	DailySummaryHour int `mapstructure:"daily_summary_hour"`
	NoImagesHour     int `mapstructure:"no_images_hour"`
}

// DefaultConfig sends the no-images reminder at 18 and the summary at 20
func DefaultConfig() Config {
	return Config{DailySummaryHour: 20, NoImagesHour: 18}
}

// Validate checks the hours
func (c Config) Validate() error {
	for _, h := range []int{c.DailySummaryHour, c.NoImagesHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: status hour %d out of range", types.ErrConfiguration, h)
		}
	}
	return nil
}

// Store is the persistence the reporter reads counts from and records sends in
type Store interface {
	CountAnalysesSince(ctx context.Context, since time.Time) (int, error)
	CountCyclesSince(ctx context.Context, since time.Time) (int, error)
	WasNotified(ctx context.Context, kind, day string) (bool, error)
	MarkNotified(ctx context.Context, kind, day string, at time.Time) (bool, error)
}

// MemoryCounter reports the size of the semantic memory
type MemoryCounter interface {
	Count(ctx context.Context) (int, error)
}

// Snapshot is everything the daily summary reports
type Snapshot struct {
	Day         string
	Environment types.EnvironmentReading
	Assessment  summarizer.Assessment
	Devices     []types.DeviceState
	ImagesToday int
	CyclesToday int
	Memories    int // -1 when unknown
	Host        *HostHealth
}

// Reporter decides whether a status message is due and sends it
type Reporter struct {
	cfg      Config
	store    Store
	memory   MemoryCounter
	notifier effectors.Notifier
	host     func(context.Context) (HostHealth, error)
}

// NewReporter creates a reporter. memory may be nil.
func NewReporter(cfg Config, store Store, memory MemoryCounter, notifier effectors.Notifier) *Reporter {
	return &Reporter{cfg: cfg, store: store, memory: memory, notifier: notifier, host: HostStats}
}

// Check sends whichever messages are due at now. now must already be in
// the plant's local time zone. It returns the kinds that were sent.
func (r *Reporter) Check(ctx context.Context, now time.Time, env types.EnvironmentReading, assessment summarizer.Assessment, devices []types.DeviceState) ([]string, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := now.Format("2006-01-02")
	var sent []string

	images, err := r.store.CountAnalysesSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	if now.Hour() >= r.cfg.NoImagesHour && images == 0 {
		ok, err := r.sendOnce(ctx, KindNoImages, day, now, NoImagesMessage(now), types.UrgencyNormal)
		if err != nil {
			return sent, err
		}
		if ok {
			sent = append(sent, KindNoImages)
		}
	}

	if now.Hour() >= r.cfg.DailySummaryHour {
		done, err := r.store.WasNotified(ctx, KindDailySummary, day)
		if err != nil || done {
			return sent, err
		}
		cycles, err := r.store.CountCyclesSince(ctx, midnight)
		if err != nil {
			return sent, err
		}
		snap := Snapshot{
			Day:         day,
			Environment: env,
			Assessment:  assessment,
			Devices:     devices,
			ImagesToday: images,
			CyclesToday: cycles,
			Memories:    -1,
		}
		if r.memory != nil {
			if n, err := r.memory.Count(ctx); err == nil {
				snap.Memories = n
			} else {
				logging.Debug("status", "memory count: %v", err)
			}
		}
		if h, err := r.host(ctx); err == nil {
			snap.Host = &h
		} else {
			logging.Debug("status", "host stats: %v", err)
		}
		ok, err := r.sendOnce(ctx, KindDailySummary, day, now, DailySummary(snap), types.UrgencyLow)
		if err != nil {
			return sent, err
		}
		if ok {
			sent = append(sent, KindDailySummary)
		}
	}
	return sent, nil
}

// sendOnce delivers text unless kind was already sent on day. The send is
// recorded only after delivery succeeds.
func (r *Reporter) sendOnce(ctx context.Context, kind, day string, now time.Time, text string, urgency types.Urgency) (bool, error) {
	done, err := r.store.WasNotified(ctx, kind, day)
	if err != nil || done {
		return false, err
	}
	if err := r.notifier.Notify(ctx, text, urgency); err != nil {
		return false, fmt.Errorf("send %s: %w", kind, err)
	}
	if _, err := r.store.MarkNotified(ctx, kind, day, now); err != nil {
		return true, err
	}
	logging.Info("status", "sent %s for %s", kind, day)
	return true, nil
}

// NoImagesMessage is the reminder sent when no photo arrived today
func NoImagesMessage(now time.Time) string {
	return fmt.Sprintf("🌙 Daily Check-in (%s)\n\nHey! I haven't received any new plant images today. "+
		"Could you take a photo so I can check how I'm doing?", now.Format("15:04"))
}

// DailySummary renders the evening summary
func DailySummary(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌱 Daily Summary (%s)\n\n", s.Day)

	b.WriteString("Environment:\n")
	fmt.Fprintf(&b, "• Temperature: %s\n", formatValue(s.Environment.Temperature, "%.1f°C"))
	fmt.Fprintf(&b, "• Humidity: %s\n", formatValue(s.Environment.Humidity, "%.0f%%"))
	fmt.Fprintf(&b, "• Lighting: %s\n", actuatorSummary(s.Devices, types.ActuatorLighting))
	fmt.Fprintf(&b, "• Aeration: %s\n\n", actuatorSummary(s.Devices, types.ActuatorAeration))

	b.WriteString("Activity:\n")
	fmt.Fprintf(&b, "• Images analyzed today: %d\n", s.ImagesToday)
	fmt.Fprintf(&b, "• Cycles completed today: %d\n", s.CyclesToday)
	if s.Memories >= 0 {
		fmt.Fprintf(&b, "• Memory entries: %d\n", s.Memories)
	}
	fmt.Fprintf(&b, "\nPlant status: %s\n", PlantStatus(s.Assessment, s.Devices))

	if s.Host != nil {
		fmt.Fprintf(&b, "\nHost: memory %.0f%% used, process %.1f MB, up %s\n",
			s.Host.MemUsedPercent, float64(s.Host.ProcessRSS)/(1024*1024), s.Host.Uptime.Truncate(time.Minute))
	}
	return strings.TrimRight(b.String(), "\n")
}

// PlantStatus is a one-line verdict on the conditions
func PlantStatus(a summarizer.Assessment, devices []types.DeviceState) string {
	switch a.Status {
	case summarizer.EnvironmentLimitedData:
		return "monitoring (limited sensor data)"
	case summarizer.EnvironmentNeedsAttention:
		return "needs attention (" + strings.Join(a.Notes, "; ") + ")"
	}
	on, total := countOn(devices, types.ActuatorLighting)
	if total > 0 && on > 0 {
		return "thriving in optimal conditions"
	}
	return "doing well with current environment"
}

func formatValue(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

func countOn(devices []types.DeviceState, a types.Actuator) (on, total int) {
	for _, d := range devices {
		if d.Actuator != a {
			continue
		}
		total++
		if strings.EqualFold(d.PowerState, "on") {
			on++
		}
	}
	return on, total
}

func actuatorSummary(devices []types.DeviceState, a types.Actuator) string {
	on, total := countOn(devices, a)
	if total == 0 {
		return "no devices"
	}
	return fmt.Sprintf("%d/%d on", on, total)
}
