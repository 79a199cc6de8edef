// Package diagnosis turns the raw reasoning-service reply into a typed result.
package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/vthunder/plantbud/internal/types"
)

// Text decodes JSON strings, numbers, booleans and string arrays into one string
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*t = ""
	case string:
		*t = Text(strings.TrimSpace(v))
	case float64:
		*t = Text(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*t = Text(strconv.FormatBool(v))
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				parts = append(parts, s)
			}
		}
		*t = Text(strings.Join(parts, "; "))
	default:
		b, _ := json.Marshal(v)
		*t = Text(b)
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Summary is the structured part of a diagnosis
type Summary struct {
	ImageName           Text `json:"image_name"`
	AnalysisTimestamp   Text `json:"analysis_timestamp"`
	ModelUsed           Text `json:"model_used"`
	VisualDescription   Text `json:"gemini_visual_description"`
	HealthDiagnosis     Text `json:"gemini_health_diagnosis"`
	GrowthNotes         Text `json:"estimated_growth_notes"`
	LeafStatus          Text `json:"leaf_status_observed"`
	StemCondition       Text `json:"stem_condition_observed"`
	PestDiseaseSigns    Text `json:"pest_disease_signs"`
	PersonaFeeling      Text `json:"plant_persona_feeling"`
	PersonaNeeds        Text `json:"plant_persona_needs"`
	PersonaConcerns     Text `json:"plant_persona_concerns"`
	RecommendedAction   Text `json:"recommended_action_by_ai"`
	Reasoning           Text `json:"reasoning_for_action"`
	ConfidenceDiagnosis Text `json:"confidence_level_diagnosis"`
	ConfidenceAction    Text `json:"confidence_level_action"`
	CriticalAlerts      Text `json:"critical_alerts"`
	TelegramMessage     Text `json:"telegram_message"`
}

// Diagnosis is a validated reasoning result
type Diagnosis struct {
	Message string  `json:"message"` // persona message for the owner
	Summary Summary `json:"summary"`
	Raw     string  `json:"-"`
}

// Health is the diagnosis text used for evaluation
func (d *Diagnosis) Health() string { return d.Summary.HealthDiagnosis.String() }

// ActionPlan is the free text scanned for overrides
func (d *Diagnosis) ActionPlan() string { return d.Summary.RecommendedAction.String() }

// CriticalAlerts returns the alert text, or "" when the model reported none
func (d *Diagnosis) CriticalAlerts() string {
	a := strings.TrimSpace(d.Summary.CriticalAlerts.String())
	switch strings.ToLower(strings.Trim(a, ".")) {
	case "", "none", "n/a", "na", "no", "null", "false":
		return ""
	}
	return a
}

// Record converts the diagnosis into a history record. The caller sets Timestamp.
func (d *Diagnosis) Record(subject string, env types.EnvironmentReading) types.HistoricalRecord {
	return types.HistoricalRecord{
		SubjectID:         subject,
		Health:            d.Health(),
		GrowthTrend:       d.Summary.GrowthNotes.String(),
		RecommendedAction: d.ActionPlan(),
		Reasoning:         d.Summary.Reasoning.String(),
		PersonaFeeling:    d.Summary.PersonaFeeling.String(),
		PersonaNeeds:      d.Summary.PersonaNeeds.String(),
		PersonaConcerns:   d.Summary.PersonaConcerns.String(),
		Temperature:       env.Temperature,
		Humidity:          env.Humidity,
		Source:            "analysis_log",
	}
}

// ParseError reports a reply that could not be turned into a Diagnosis
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "parse diagnosis: " + e.Reason
}

// Unwrap makes parse failures match types.ErrDiagnosisUnavailable
func (e *ParseError) Unwrap() error {
	return types.ErrDiagnosisUnavailable
}

var (
	fenceRe   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")
	part1Re   = regexp.MustCompile(`(?is)PART\s*1\s*:?\s*(?:TELEGRAM_MESSAGE\s*:)?(.*?)(?:PART\s*2|$)`)
	part2Re   = regexp.MustCompile(`(?is)PART\s*2\s*:?\s*(?:SUMMARY_FOR_SHEET\s*:)?(.*)$`)
	errNoJSON = errors.New("no JSON object found")
)

// Parse validates a raw reply. The reply has a persona message (PART 1) and a
// JSON summary (PART 2), or is a bare JSON object, optionally fenced.
func Parse(raw string) (*Diagnosis, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ParseError{Reason: "empty reply", Raw: raw}
	}

	message := ""
	body := raw
	if m := part2Re.FindStringSubmatch(raw); m != nil {
		body = m[1]
		if p1 := part1Re.FindStringSubmatch(raw); p1 != nil {
			message = strings.TrimSpace(p1[1])
		}
	}

	obj, err := extractObject(body)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: raw}
	}

	var s Summary
	if err := json.Unmarshal([]byte(obj), &s); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(obj)
		if rerr != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
		}
		s = Summary{}
		if err := json.Unmarshal([]byte(repaired), &s); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON after repair: %v", err), Raw: raw}
		}
	}

	if strings.TrimSpace(s.HealthDiagnosis.String()) == "" {
		return nil, &ParseError{Reason: "missing gemini_health_diagnosis", Raw: raw}
	}

	if message == "" {
		message = s.TelegramMessage.String()
	}
	if message == "" {
		message = s.PersonaFeeling.String()
	}
	return &Diagnosis{Message: message, Summary: s, Raw: raw}, nil
}

func extractObject(body string) (string, error) {
	if m := fenceRe.FindStringSubmatch(body); m != nil {
		return m[1], nil
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 {
		return "", errNoJSON
	}
	if end < start {
		// Truncated reply; let the repair step close it.
		return body[start:], nil
	}
	return body[start : end+1], nil
}
