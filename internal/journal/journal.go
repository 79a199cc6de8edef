// Package journal keeps an append-only JSONL audit trail of decision cycles.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/vthunder/plantbud/internal/types"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntryCycle      EntryType = "cycle"      // Cycle finished
	EntrySelection  EntryType = "selection"  // Work item picked (or none)
	EntryDiagnosis  EntryType = "diagnosis"  // Reasoning service answered
	EntryDecision   EntryType = "decision"   // Final actuator decision
	EntryActuation  EntryType = "actuation"  // Device switched
	EntryEvaluation EntryType = "evaluation" // Previous cycle judged
	EntryNotify     EntryType = "notify"     // Message sent to the owner
	EntryError      EntryType = "error"      // Stage degraded
)

// Entry represents a single journal entry
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Type      EntryType      `json:"type"`
	CycleID   string         `json:"cycle_id,omitempty"`
	Summary   string         `json:"summary,omitempty"`   // Brief description
	Context   string         `json:"context,omitempty"`   // What prompted this
	Reasoning string         `json:"reasoning,omitempty"` // Why this decision
	Outcome   string         `json:"outcome,omitempty"`   // What resulted
	Data      map[string]any `json:"data,omitempty"`
}

// Journal writes entries to <state>/journal.jsonl
type Journal struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// New creates a journal on the real filesystem
func New(statePath string) *Journal {
	return NewWithFs(afero.NewOsFs(), statePath)
}

// NewWithFs creates a journal on fs
func NewWithFs(fs afero.Fs, statePath string) *Journal {
	return &Journal{
		fs:   fs,
		path: filepath.Join(statePath, "journal.jsonl"),
	}
}

// Log writes an entry to the journal
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := j.fs.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogDecision logs one final actuator decision
func (j *Journal) LogDecision(cycleID string, d types.Decision) error {
	return j.Log(Entry{
		Type:      EntryDecision,
		CycleID:   cycleID,
		Summary:   fmt.Sprintf("%s %s", d.Actuator, d.DesiredState),
		Reasoning: d.Reason,
		Data: map[string]any{
			"override": d.IsOverride,
			"refined":  d.Refined,
		},
	})
}

// LogActuation logs a device switch attempt
func (j *Journal) LogActuation(cycleID string, actuator types.Actuator, state types.PowerState, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}
	return j.Log(Entry{
		Type:    EntryActuation,
		CycleID: cycleID,
		Summary: fmt.Sprintf("%s -> %s", actuator, state),
		Outcome: outcome,
	})
}

// LogEvaluation logs the verdict on the previous cycle
func (j *Journal) LogEvaluation(cycleID, reflectionID string, eval types.Evaluation) error {
	data := map[string]any{"reflection_id": reflectionID}
	if len(eval.Learnings) > 0 {
		data["learnings"] = eval.Learnings
	}
	return j.Log(Entry{
		Type:    EntryEvaluation,
		CycleID: cycleID,
		Summary: string(eval.Effectiveness),
		Data:    data,
	})
}

// LogError logs a degraded stage
func (j *Journal) LogError(cycleID string, err error) error {
	e := Entry{Type: EntryError, CycleID: cycleID, Summary: err.Error()}
	var se *types.StageError
	if errors.As(err, &se) {
		e.Context = string(se.Stage)
	}
	return j.Log(e)
}

// Recent returns the last n entries from the journal
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := afero.ReadFile(j.fs, j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}

	if n <= 0 || n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Today returns entries since local midnight of now
func (j *Journal) Today(now time.Time) ([]Entry, error) {
	entries, err := j.Recent(1000)
	if err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var todayEntries []Entry
	for _, e := range entries {
		if !e.Timestamp.Before(today) {
			todayEntries = append(todayEntries, e)
		}
	}
	return todayEntries, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
