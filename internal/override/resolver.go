// Package override merges scheduled actuator states with overrides
// requested in the diagnosis action plan.
package override

import (
	"strings"

	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// Resolver applies a phrase table to action plans. It keeps no state between calls.
type Resolver struct {
	rules []Rule
}

// NewResolver validates and lower-cases the rule table
func NewResolver(rules []Rule) (*Resolver, error) {
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		r.Phrase = strings.ToLower(strings.TrimSpace(r.Phrase))
		normalized[i] = r
	}
	return &Resolver{rules: normalized}, nil
}

// Match is the outcome of scanning an action plan for one actuator
type Match struct {
	Intent   Intent
	Rule     *Rule // the winning rule, nil for IntentNone
	Conflict bool  // both directions were requested
}

// Detect scans the plan for the actuator's phrases. The first phrase in table
// order wins within a direction; phrases in both directions cancel out.
func (r *Resolver) Detect(actuator types.Actuator, actionPlan string) Match {
	plan := strings.ToLower(actionPlan)
	if strings.TrimSpace(plan) == "" {
		return Match{Intent: IntentNone}
	}

	var on, off *Rule
	for i := range r.rules {
		rule := &r.rules[i]
		if rule.Actuator != actuator || !strings.Contains(plan, rule.Phrase) {
			continue
		}
		switch rule.Intent {
		case IntentForceOn:
			if on == nil {
				on = rule
			}
		case IntentForceOff:
			if off == nil {
				off = rule
			}
		}
	}

	switch {
	case on != nil && off != nil:
		return Match{Intent: IntentNone, Conflict: true}
	case on != nil:
		return Match{Intent: IntentForceOn, Rule: on}
	case off != nil:
		return Match{Intent: IntentForceOff, Rule: off}
	default:
		return Match{Intent: IntentNone}
	}
}

// Resolve emits exactly one decision per scheduled actuator, in schedule order
func (r *Resolver) Resolve(schedule []types.ScheduleDecision, actionPlan string) []types.Decision {
	decisions := make([]types.Decision, 0, len(schedule))
	for _, sd := range schedule {
		d := types.Decision{
			Actuator:     sd.Actuator,
			DesiredState: sd.DesiredState,
			Reason:       sd.Reason,
		}

		m := r.Detect(sd.Actuator, actionPlan)
		if m.Conflict {
			logging.Warn("override", "%s: conflicting phrases in action plan, keeping schedule (%s)",
				sd.Actuator, logging.Truncate(actionPlan, 80))
		}
		if state, ok := m.Intent.State(); ok {
			d.DesiredState = state
			d.IsOverride = true
			d.Reason = m.Rule.Reason
			logging.Debug("override", "%s forced %s by %q", sd.Actuator, state, m.Rule.Phrase)
		}
		decisions = append(decisions, d)
	}
	return decisions
}
