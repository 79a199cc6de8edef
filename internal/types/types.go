package types

import "time"

// WorkItem is one image in the catalog eligible for processing
type WorkItem struct {
	ID        string    `json:"id"`         // file name, unique within the catalog
	CreatedAt time.Time `json:"created_at"` // modification time from the catalog
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type,omitempty"`
}

// Actuator identifies a controllable device group
type Actuator string

const (
	ActuatorLighting Actuator = "lighting"
	ActuatorAeration Actuator = "aeration"
)

// PowerState is the desired or observed state of an actuator
type PowerState string

const (
	PowerOn  PowerState = "on"
	PowerOff PowerState = "off"
)

// Bool reports whether the state is on
func (s PowerState) Bool() bool {
	return s == PowerOn
}

// Flip returns the opposite state
func (s PowerState) Flip() PowerState {
	if s == PowerOn {
		return PowerOff
	}
	return PowerOn
}

// StateFromBool converts an on/off flag into a PowerState
func StateFromBool(on bool) PowerState {
	if on {
		return PowerOn
	}
	return PowerOff
}

// HistoricalRecord is one past diagnosis, normalized from whichever store supplied it
type HistoricalRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	SubjectID         string    `json:"subject_id"` // image name
	Health            string    `json:"health"`
	GrowthTrend       string    `json:"growth_trend,omitempty"`
	RecommendedAction string    `json:"recommended_action,omitempty"`
	Reasoning         string    `json:"reasoning,omitempty"`
	PersonaFeeling    string    `json:"persona_feeling,omitempty"`
	PersonaNeeds      string    `json:"persona_needs,omitempty"`
	PersonaConcerns   string    `json:"persona_concerns,omitempty"`
	Temperature       *float64  `json:"temperature,omitempty"` // nil when the sensor had no reading
	Humidity          *float64  `json:"humidity,omitempty"`
	Score             float64   `json:"score,omitempty"`  // relevance, semantic hits only
	Source            string    `json:"source,omitempty"` // "analysis_log", "mem0", "vector"
	Raw               string    `json:"raw,omitempty"`
}

// DigestSource tags which history path supplied a digest
type DigestSource string

const (
	SourceSemantic DigestSource = "semantic"
	SourceRecent   DigestSource = "recent"
	SourceNone     DigestSource = "none"
)

// ContextDigest is the bounded summary of recent history fed to the reasoning call
type ContextDigest struct {
	Narrative          string       `json:"narrative"`
	StructuredTrend    []string     `json:"structured_trend"`
	LastRecommendation string       `json:"last_recommendation"`
	CommonPatterns     []string     `json:"common_patterns"`
	Source             DigestSource `json:"source"`
	RecordCount        int          `json:"record_count"`
}

// ScheduleDecision is the state an actuator should hold absent any override
type ScheduleDecision struct {
	Actuator     Actuator   `json:"actuator"`
	DesiredState PowerState `json:"desired_state"`
	Reason       string     `json:"reason"`
}

// Decision is the resolved command for one actuator in one cycle
type Decision struct {
	Actuator     Actuator   `json:"actuator"`
	DesiredState PowerState `json:"desired_state"`
	IsOverride   bool       `json:"is_override"`
	Refined      bool       `json:"refined,omitempty"` // flipped by the learning loop
	Reason       string     `json:"reason"`
}

// Outcome of a previous cycle, filled in by the next evaluation
type Outcome string

const (
	OutcomeUnset    Outcome = ""
	OutcomePositive Outcome = "Positive outcome - plant health improved"
	OutcomeNegative Outcome = "Negative outcome - plant health did not improve"
)

// ReflectionRecord stores one cycle's decisions for evaluation on the next cycle
type ReflectionRecord struct {
	ID              string                `json:"id"`
	Timestamp       time.Time             `json:"timestamp"`
	SubjectID       string                `json:"subject_id,omitempty"`
	AnalysisSummary string                `json:"analysis_summary"`
	Decisions       map[Actuator]Decision `json:"decisions"`
	Outcome         Outcome               `json:"outcome,omitempty"`
}

// Effectiveness of the previous cycle's decisions
type Effectiveness string

const (
	EffectivenessPositive Effectiveness = "positive"
	EffectivenessNegative Effectiveness = "negative"
	EffectivenessUnknown  Effectiveness = "unknown"
)

// Outcome maps an effectiveness onto the reflection outcome text
func (e Effectiveness) Outcome() Outcome {
	switch e {
	case EffectivenessPositive:
		return OutcomePositive
	case EffectivenessNegative:
		return OutcomeNegative
	default:
		return OutcomeUnset
	}
}

// LearningAction is the direction of a past override
type LearningAction string

const (
	ActionIncreased LearningAction = "increased" // override forced ON
	ActionDecreased LearningAction = "decreased" // override forced OFF
)

// ActionFor returns the learning action matching a desired state
func ActionFor(state PowerState) LearningAction {
	if state == PowerOn {
		return ActionIncreased
	}
	return ActionDecreased
}

// LearningOutcome labels a past override
type LearningOutcome string

const (
	LearningBeneficial  LearningOutcome = "beneficial"
	LearningDetrimental LearningOutcome = "detrimental"
)

// Learning tags one previous override as helpful or harmful
type Learning struct {
	Actuator Actuator        `json:"actuator"`
	Action   LearningAction  `json:"action"`
	Outcome  LearningOutcome `json:"outcome"`
}

// Evaluation is the result of comparing the current diagnosis to the previous reflection
type Evaluation struct {
	Effectiveness Effectiveness `json:"effectiveness"`
	Learnings     []Learning    `json:"learnings"`
}

// Urgency controls how a notification is delivered
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// EnvironmentReading is the latest sensor snapshot
type EnvironmentReading struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// DeviceState is one physical device as reported by the transport
type DeviceState struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Actuator    Actuator `json:"actuator,omitempty"` // empty for sensors
	PowerState  string   `json:"power_state,omitempty"`
	Online      bool     `json:"online"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}
