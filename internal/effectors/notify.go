// Package effectors delivers the engine's outward effects: chat
// notifications and device power changes.
package effectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// Notifier delivers a message to the owner
type Notifier interface {
	Notify(ctx context.Context, text string, urgency types.Urgency) error
}

// Multi fans a message out to several notifiers. Delivery continues past
// failures; the joined error is returned.
type Multi []Notifier

// Notify delivers to every notifier
func (m Multi) Notify(ctx context.Context, text string, urgency types.Urgency) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text, urgency); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only logs. Used when no channel is configured.
type LogNotifier struct{}

// Notify logs the message
func (LogNotifier) Notify(_ context.Context, text string, urgency types.Urgency) error {
	logging.Info("notify", "[%s] %s", urgency, logging.Truncate(text, 200))
	return nil
}

// stageServices names each stage the way owner-facing errors label it
var stageServices = map[types.Stage]string{
	types.StageDevices:      "Device Service",
	types.StageSelection:    "Image Search Service",
	types.StageContext:      "Memory Service",
	types.StageDiagnosis:    "Gemini Service",
	types.StageEvaluation:   "Learning Service",
	types.StageActuation:    "Device Control Service",
	types.StageNotification: "Notification Service",
	types.StagePersistence:  "Storage Service",
	types.StageMemory:       "Memory Service",
	types.StageStatus:       "Status Service",
}

// ErrorMessage formats an owner-facing error notification
func ErrorMessage(stage types.Stage, err error) string {
	service, ok := stageServices[stage]
	if !ok {
		service = "Main Flow"
	}
	return fmt.Sprintf("🚨 %s Error\n\n%v", service, err)
}

// chunk splits text into pieces of at most limit runes, preferring line breaks
func chunk(text string, limit int) []string {
	var out []string
	for {
		r := []rune(text)
		if len(r) <= limit {
			if strings.TrimSpace(text) != "" {
				out = append(out, text)
			}
			return out
		}
		cut := limit
		if i := strings.LastIndex(string(r[:limit]), "\n"); i > 0 {
			cut = len([]rune(string(r[:limit])[:i]))
		}
		out = append(out, string(r[:cut]))
		text = strings.TrimLeft(string(r[cut:]), "\n")
	}
}
