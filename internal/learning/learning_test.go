package learning

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

func prevWith(decisions ...types.Decision) *types.ReflectionRecord {
	r := NewReflection("01PREV", time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), "a.jpg", "summary", decisions)
	return &r
}

func lightingOverrideOn() types.Decision {
	return types.Decision{Actuator: types.ActuatorLighting, DesiredState: types.PowerOn, IsOverride: true, Reason: "Plant needs more light based on analysis"}
}

func aerationScheduled() types.Decision {
	return types.Decision{Actuator: types.ActuatorAeration, DesiredState: types.PowerOff, Reason: "Outside scheduled intervals"}
}

func TestEvaluate_NoPrevious(t *testing.T) {
	eval := Evaluate("Healthy and improving", nil)
	assert.Equal(t, types.EffectivenessUnknown, eval.Effectiveness)
	assert.Empty(t, eval.Learnings)
}

func TestEvaluate_DecliningLightOverride(t *testing.T) {
	eval := Evaluate("Leaves declining, edges brown", prevWith(lightingOverrideOn(), aerationScheduled()))
	assert.Equal(t, types.EffectivenessNegative, eval.Effectiveness)
	assert.Equal(t, []types.Learning{
		{Actuator: types.ActuatorLighting, Action: types.ActionIncreased, Outcome: types.LearningDetrimental},
	}, eval.Learnings)
}

func TestEvaluate_Keywords(t *testing.T) {
	prev := prevWith(lightingOverrideOn())
	for _, health := range []string{"Good", "HEALTHY overall", "slowly improving"} {
		eval := Evaluate(health, prev)
		assert.Equal(t, types.EffectivenessPositive, eval.Effectiveness, health)
		require.Len(t, eval.Learnings, 1)
		assert.Equal(t, types.LearningBeneficial, eval.Learnings[0].Outcome)
	}
}

func TestEvaluate_OrderedLearnings(t *testing.T) {
	eval := Evaluate("wilting", prevWith(
		types.Decision{Actuator: types.ActuatorAeration, DesiredState: types.PowerOff, IsOverride: true},
		lightingOverrideOn(),
	))
	require.Len(t, eval.Learnings, 2)
	assert.Equal(t, types.ActuatorLighting, eval.Learnings[0].Actuator)
	assert.Equal(t, types.ActuatorAeration, eval.Learnings[1].Actuator)
	assert.Equal(t, types.ActionDecreased, eval.Learnings[1].Action)
}

func TestRefine_FlipsOnlyRepeatedDetrimentalOverride(t *testing.T) {
	eval := Evaluate("declining", prevWith(lightingOverrideOn(), aerationScheduled()))

	current := []types.Decision{
		lightingOverrideOn(),
		{Actuator: types.ActuatorAeration, DesiredState: types.PowerOn, IsOverride: true, Reason: "Plant needs more aeration based on analysis"},
	}
	got := Refine(current, eval)
	require.Len(t, got, 2)

	assert.Equal(t, types.PowerOff, got[0].DesiredState)
	assert.True(t, got[0].Refined)
	assert.True(t, strings.HasSuffix(got[0].Reason, AdjustmentNote))

	assert.Equal(t, current[1], got[1])
	// input untouched
	assert.Equal(t, types.PowerOn, current[0].DesiredState)
}

func TestRefine_PassThrough(t *testing.T) {
	eval := Evaluate("declining", prevWith(lightingOverrideOn()))

	tests := []struct {
		name string
		in   types.Decision
	}{
		{"scheduled decision", types.Decision{Actuator: types.ActuatorLighting, DesiredState: types.PowerOn, Reason: "Based on schedule"}},
		{"opposite direction", types.Decision{Actuator: types.ActuatorLighting, DesiredState: types.PowerOff, IsOverride: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Refine([]types.Decision{tt.in}, eval)
			assert.Equal(t, tt.in, got[0])
		})
	}

	beneficial := Evaluate("healthy", prevWith(lightingOverrideOn()))
	got := Refine([]types.Decision{lightingOverrideOn()}, beneficial)
	assert.Equal(t, lightingOverrideOn(), got[0])
}

func TestApply_FailsSoft(t *testing.T) {
	prev := prevWith(lightingOverrideOn())
	prev.Decisions[types.ActuatorLighting] = types.Decision{Actuator: types.ActuatorLighting, DesiredState: "dim", IsOverride: true}

	current := []types.Decision{lightingOverrideOn()}
	eval, refined, err := Apply("declining", prev, current)
	assert.Error(t, err)
	assert.Equal(t, types.EffectivenessUnknown, eval.Effectiveness)
	assert.Equal(t, current, refined)
}

func TestApply(t *testing.T) {
	eval, refined, err := Apply("declining", prevWith(lightingOverrideOn()), []types.Decision{lightingOverrideOn()})
	require.NoError(t, err)
	assert.Equal(t, types.EffectivenessNegative, eval.Effectiveness)
	assert.Equal(t, types.PowerOff, refined[0].DesiredState)
}
