package effectors

import (
	"context"
	"fmt"

	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// Switcher changes the power state of every device bound to an actuator
type Switcher interface {
	SetState(ctx context.Context, actuator types.Actuator, state types.PowerState, current []types.DeviceState) error
}

// DeviceEffector applies decisions to devices, skipping actuators already
// in the desired state.
type DeviceEffector struct {
	switcher Switcher
}

// NewDeviceEffector wraps a switcher
func NewDeviceEffector(s Switcher) *DeviceEffector {
	return &DeviceEffector{switcher: s}
}

// Observed reports the state of an actuator from the device list. ok is
// false when no device is bound or the devices disagree.
func Observed(actuator types.Actuator, devices []types.DeviceState) (state types.PowerState, ok bool) {
	for _, d := range devices {
		if d.Actuator != actuator {
			continue
		}
		s := types.StateFromBool(d.PowerState == "On" || d.PowerState == "on")
		if ok && s != state {
			return "", false
		}
		state, ok = s, true
	}
	return state, ok
}

// Apply switches each actuator whose observed state differs from the
// decision. Failures are reported per actuator and do not stop the others.
// It returns the actuators that were switched.
func (e *DeviceEffector) Apply(ctx context.Context, decisions []types.Decision, devices []types.DeviceState) ([]types.Actuator, []error) {
	var changed []types.Actuator
	var errs []error
	for _, d := range decisions {
		if cur, ok := Observed(d.Actuator, devices); ok && cur == d.DesiredState {
			logging.Debug("devices", "%s already %s", d.Actuator, cur)
			continue
		}
		if err := e.switcher.SetState(ctx, d.Actuator, d.DesiredState, devices); err != nil {
			errs = append(errs, &types.StageError{
				Stage:    types.StageActuation,
				Actuator: d.Actuator,
				Err:      fmt.Errorf("set %s: %w", d.DesiredState, err),
			})
			continue
		}
		changed = append(changed, d.Actuator)
	}
	return changed, errs
}
