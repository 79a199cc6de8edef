// Package gemini asks a multimodal model for a plant diagnosis.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/diagnosis"
	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// Generator produces text from a prompt and an optional image
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	Model() string
}

// Request is everything the model sees for one image
type Request struct {
	Item         types.WorkItem
	Image        []byte
	Digest       types.ContextDigest
	Environment  types.EnvironmentReading
	Assessment   string // environment assessment from the summarizer
	Devices      []types.DeviceState
	Requirements string // product requirement document, optional
	PlantName    string
	Now          time.Time
}

// Reasoner wraps a Generator with prompt building and strict parsing
type Reasoner struct {
	gen Generator
}

// NewReasoner creates a reasoner
func NewReasoner(gen Generator) *Reasoner {
	return &Reasoner{gen: gen}
}

// Diagnose runs one reasoning call. Every failure, including an unparseable
// reply, wraps types.ErrDiagnosisUnavailable.
func (r *Reasoner) Diagnose(ctx context.Context, req Request) (*diagnosis.Diagnosis, error) {
	prompt := BuildPrompt(req, r.gen.Model())
	logging.Debug("gemini", "prompt for %s: %d chars, image %d bytes", req.Item.ID, len(prompt), len(req.Image))

	raw, err := r.gen.Generate(ctx, prompt, req.Image, req.Item.MimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDiagnosisUnavailable, err)
	}
	d, err := diagnosis.Parse(raw)
	if err != nil {
		logging.Warn("gemini", "unparseable reply for %s: %s", req.Item.ID, logging.Truncate(raw, 200))
		return nil, err
	}
	if d.Summary.ImageName == "" {
		d.Summary.ImageName = diagnosis.Text(req.Item.ID)
	}
	if d.Summary.ModelUsed == "" {
		d.Summary.ModelUsed = diagnosis.Text(r.gen.Model())
	}
	if d.Summary.AnalysisTimestamp == "" {
		d.Summary.AnalysisTimestamp = diagnosis.Text(req.Now.Format(time.RFC3339))
	}
	return d, nil
}

// BuildPrompt renders the diagnosis prompt
func BuildPrompt(req Request, model string) string {
	var b strings.Builder
	name := req.PlantName
	if name == "" {
		name = "the plant"
	}

	fmt.Fprintf(&b, "You are an expert botanist monitoring %s through periodic photos.\n", name)
	fmt.Fprintf(&b, "Current time: %s\n", req.Now.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Image: %s\n\n", req.Item.ID)

	b.WriteString("## Environment\n")
	if req.Environment.Temperature != nil {
		fmt.Fprintf(&b, "Temperature: %.1f°C\n", *req.Environment.Temperature)
	} else {
		b.WriteString("Temperature: unavailable\n")
	}
	if req.Environment.Humidity != nil {
		fmt.Fprintf(&b, "Humidity: %.0f%%\n", *req.Environment.Humidity)
	} else {
		b.WriteString("Humidity: unavailable\n")
	}
	if req.Assessment != "" {
		fmt.Fprintf(&b, "Assessment: %s\n", req.Assessment)
	}
	for _, d := range req.Devices {
		if d.Actuator == "" {
			continue
		}
		status := "offline"
		if d.Online {
			status = d.PowerState
		}
		fmt.Fprintf(&b, "Device %s (%s): %s\n", d.Name, d.Actuator, status)
	}

	b.WriteString("\n## History\n")
	b.WriteString(req.Digest.Narrative)
	b.WriteString("\n")

	if strings.TrimSpace(req.Requirements) != "" {
		b.WriteString("\n## Care requirements\n")
		b.WriteString(strings.TrimSpace(req.Requirements))
		b.WriteString("\n")
	}

	b.WriteString(`
## Task
Examine the photo and the context above. Reply in exactly two parts.

PART 1: TELEGRAM_MESSAGE:
A short first-person message from the plant to its owner about how it feels.

PART 2: SUMMARY_FOR_SHEET:
A single JSON object with these string fields:
image_name, analysis_timestamp, model_used, gemini_visual_description,
gemini_health_diagnosis, estimated_growth_notes, leaf_status_observed,
stem_condition_observed, pest_disease_signs, plant_persona_feeling,
plant_persona_needs, plant_persona_concerns, recommended_action_by_ai,
reasoning_for_action, confidence_level_diagnosis, confidence_level_action,
critical_alerts.

In recommended_action_by_ai use phrases like "more light", "less light",
"more oxygen" or "less oxygen" only when the plant needs a change from its
lighting or aeration schedule. Use "None" for critical_alerts when nothing is urgent.
`)
	fmt.Fprintf(&b, "Set model_used to %q.\n", model)
	return b.String()
}
