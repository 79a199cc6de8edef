// Package learning evaluates the previous cycle's overrides against the
// current diagnosis and undoes a single detrimental repeat.
package learning

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// AdjustmentNote is appended to the reason of a refined decision
const AdjustmentNote = "(adjusted based on learning from previous outcomes)"

var positiveKeywords = []string{"good", "healthy", "improving"}

// Evaluate labels each override of the previous reflection as beneficial or
// detrimental. Without a previous reflection the result is unknown.
func Evaluate(currentHealth string, prev *types.ReflectionRecord) types.Evaluation {
	if prev == nil {
		return types.Evaluation{Effectiveness: types.EffectivenessUnknown, Learnings: []types.Learning{}}
	}

	eff := types.EffectivenessNegative
	lower := strings.ToLower(currentHealth)
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			eff = types.EffectivenessPositive
			break
		}
	}

	outcome := types.LearningDetrimental
	if eff == types.EffectivenessPositive {
		outcome = types.LearningBeneficial
	}

	learnings := []types.Learning{}
	for _, act := range sortedActuators(prev.Decisions) {
		d := prev.Decisions[act]
		if !d.IsOverride {
			continue
		}
		learnings = append(learnings, types.Learning{
			Actuator: act,
			Action:   types.ActionFor(d.DesiredState),
			Outcome:  outcome,
		})
	}
	return types.Evaluation{Effectiveness: eff, Learnings: learnings}
}

// Refine flips a current override that repeats a detrimental override of the
// previous cycle. It returns a new slice; the input is not modified.
func Refine(decisions []types.Decision, eval types.Evaluation) []types.Decision {
	out := make([]types.Decision, len(decisions))
	copy(out, decisions)

	bad := make(map[types.Actuator]types.LearningAction)
	for _, l := range eval.Learnings {
		if l.Outcome == types.LearningDetrimental {
			bad[l.Actuator] = l.Action
		}
	}
	if len(bad) == 0 {
		return out
	}

	for i, d := range out {
		action, ok := bad[d.Actuator]
		if !ok || !d.IsOverride || types.ActionFor(d.DesiredState) != action {
			continue
		}
		out[i].DesiredState = d.DesiredState.Flip()
		out[i].Refined = true
		out[i].Reason = d.Reason + " " + AdjustmentNote
		logging.Info("learning", "%s override %s was detrimental last cycle, flipping to %s",
			d.Actuator, action, out[i].DesiredState)
	}
	return out
}

// Apply runs Evaluate and Refine and fails soft: on any error or panic it
// returns the original decisions and an unknown evaluation.
func Apply(currentHealth string, prev *types.ReflectionRecord, decisions []types.Decision) (eval types.Evaluation, refined []types.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("learning panic: %v", r)
		}
		if err != nil {
			logging.Error("learning", "evaluation failed, using unrefined decisions: %v", err)
			eval = types.Evaluation{Effectiveness: types.EffectivenessUnknown, Learnings: []types.Learning{}}
			refined = decisions
		}
	}()

	if err := validate(prev); err != nil {
		return eval, decisions, err
	}
	eval = Evaluate(currentHealth, prev)
	refined = Refine(decisions, eval)
	return eval, refined, nil
}

func validate(prev *types.ReflectionRecord) error {
	if prev == nil {
		return nil
	}
	for act, d := range prev.Decisions {
		if d.Actuator != "" && d.Actuator != act {
			return fmt.Errorf("reflection %s: decision keyed %s is for %s", prev.ID, act, d.Actuator)
		}
		if d.DesiredState != types.PowerOn && d.DesiredState != types.PowerOff {
			return fmt.Errorf("reflection %s: %s has invalid state %q", prev.ID, act, d.DesiredState)
		}
	}
	return nil
}

// NewReflection records the decisions executed this cycle
func NewReflection(id string, ts time.Time, subjectID, summary string, decisions []types.Decision) types.ReflectionRecord {
	m := make(map[types.Actuator]types.Decision, len(decisions))
	for _, d := range decisions {
		m[d.Actuator] = d
	}
	return types.ReflectionRecord{
		ID:              id,
		Timestamp:       ts,
		SubjectID:       subjectID,
		AnalysisSummary: summary,
		Decisions:       m,
	}
}

// lighting first, then aeration, then anything else by name
func sortedActuators(m map[types.Actuator]types.Decision) []types.Actuator {
	rank := func(a types.Actuator) int {
		switch a {
		case types.ActuatorLighting:
			return 0
		case types.ActuatorAeration:
			return 1
		default:
			return 2
		}
	}
	keys := make([]types.Actuator, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}
