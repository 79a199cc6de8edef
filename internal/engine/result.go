package engine

import (
	"errors"
	"time"

	"github.com/vthunder/plantbud/internal/types"
)

// Status is the final state of one cycle
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded" // finished with absorbed errors
	StatusAborted  Status = "aborted"  // data unavailable, nothing actuated
	StatusSkipped  Status = "skipped"  // another cycle was running
)

// CycleResult is what one cycle did. It is always returned, never an error.
type CycleResult struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Status     Status               `json:"status"`
	Item       *types.WorkItem      `json:"item,omitempty"`
	Digest     *types.ContextDigest `json:"digest,omitempty"`
	Health     string               `json:"health,omitempty"`
	Decisions  []types.Decision     `json:"decisions"`
	Evaluation *types.Evaluation    `json:"evaluation,omitempty"`
	Actuated   []types.Actuator     `json:"actuated,omitempty"`
	Notified   []string             `json:"notified,omitempty"`
	Errors     []string             `json:"errors,omitempty"`

	errs []error
}

func (r *CycleResult) degrade(err error) {
	r.errs = append(r.errs, err)
	r.Errors = append(r.Errors, err.Error())
	if r.Status == StatusOK {
		r.Status = StatusDegraded
	}
}

// Err joins every absorbed error, nil for a clean cycle
func (r *CycleResult) Err() error {
	return errors.Join(r.errs...)
}

// Diagnosed reports whether the reasoning service answered this cycle
func (r *CycleResult) Diagnosed() bool {
	return r.Health != ""
}
