package override

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vthunder/plantbud/internal/types"
)

// Intent is the override decided for one actuator in one cycle
type Intent int

const (
	IntentNone Intent = iota
	IntentForceOn
	IntentForceOff
)

func (i Intent) String() string {
	switch i {
	case IntentForceOn:
		return "on"
	case IntentForceOff:
		return "off"
	default:
		return "none"
	}
}

// State returns the power state an intent forces. ok is false for IntentNone.
func (i Intent) State() (types.PowerState, bool) {
	switch i {
	case IntentForceOn:
		return types.PowerOn, true
	case IntentForceOff:
		return types.PowerOff, true
	default:
		return "", false
	}
}

// UnmarshalYAML accepts "on" / "off"
func (i *Intent) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "force_on", "increase":
		*i = IntentForceOn
	case "off", "force_off", "decrease":
		*i = IntentForceOff
	default:
		return fmt.Errorf("unknown intent %q", s)
	}
	return nil
}

// MarshalYAML writes the intent as "on" / "off"
func (i Intent) MarshalYAML() (any, error) {
	return i.String(), nil
}

// Rule maps a phrase in the action plan to an actuator intent
type Rule struct {
	Actuator types.Actuator `yaml:"actuator"`
	Phrase   string         `yaml:"phrase"`
	Intent   Intent         `yaml:"intent"`
	Reason   string         `yaml:"reason"`
}

// ruleFile is the on-disk layout of a rule table
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules is the built-in phrase table
func DefaultRules() []Rule {
	const (
		moreLight = "Plant needs more light based on analysis"
		lessLight = "Plant needs less light based on analysis"
		moreAir   = "Plant needs more aeration based on analysis"
		lessAir   = "Plant needs less aeration based on analysis"
	)
	return []Rule{
		{Actuator: types.ActuatorLighting, Phrase: "increase light", Intent: IntentForceOn, Reason: moreLight},
		{Actuator: types.ActuatorLighting, Phrase: "more light", Intent: IntentForceOn, Reason: moreLight},
		{Actuator: types.ActuatorLighting, Phrase: "reduce light", Intent: IntentForceOff, Reason: lessLight},
		{Actuator: types.ActuatorLighting, Phrase: "less light", Intent: IntentForceOff, Reason: lessLight},
		{Actuator: types.ActuatorAeration, Phrase: "increase aeration", Intent: IntentForceOn, Reason: moreAir},
		{Actuator: types.ActuatorAeration, Phrase: "more oxygen", Intent: IntentForceOn, Reason: moreAir},
		{Actuator: types.ActuatorAeration, Phrase: "more aeration", Intent: IntentForceOn, Reason: moreAir},
		{Actuator: types.ActuatorAeration, Phrase: "reduce aeration", Intent: IntentForceOff, Reason: lessAir},
		{Actuator: types.ActuatorAeration, Phrase: "less oxygen", Intent: IntentForceOff, Reason: lessAir},
		{Actuator: types.ActuatorAeration, Phrase: "less aeration", Intent: IntentForceOff, Reason: lessAir},
	}
}

// LoadRules reads a YAML rule table
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validateRules(f.Rules); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Rules, nil
}

// SaveRules writes a rule table as YAML
func SaveRules(path string, rules []Rule) error {
	data, err := yaml.Marshal(ruleFile{Rules: rules})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func validateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: empty override rule table", types.ErrConfiguration)
	}
	for i, r := range rules {
		if r.Actuator == "" || strings.TrimSpace(r.Phrase) == "" {
			return fmt.Errorf("%w: rule %d: actuator and phrase required", types.ErrConfiguration, i)
		}
		if r.Intent == IntentNone {
			return fmt.Errorf("%w: rule %d (%q): intent must be on or off", types.ErrConfiguration, i, r.Phrase)
		}
	}
	return nil
}
