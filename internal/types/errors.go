package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means the catalog, ledger or history store could not be read
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrDiagnosisUnavailable means the reasoning call failed, timed out or returned unparseable output
	ErrDiagnosisUnavailable = errors.New("diagnosis unavailable")
	// ErrConfiguration is fatal at startup
	ErrConfiguration = errors.New("configuration error")
	// ErrActuationFailure means a transport call to a device failed
	ErrActuationFailure = errors.New("actuation failure")
)

// Stage names a step of the cycle for error reporting
type Stage string

const (
	StageDevices      Stage = "devices"
	StageSelection    Stage = "selection"
	StageContext      Stage = "context"
	StageDiagnosis    Stage = "diagnosis"
	StageEvaluation   Stage = "evaluation"
	StageActuation    Stage = "actuation"
	StageNotification Stage = "notification"
	StagePersistence  Stage = "persistence"
	StageMemory       Stage = "memory"
	StageStatus       Stage = "status"
)

// StageError carries the stage and actuator an error happened in
type StageError struct {
	Stage    Stage
	Actuator Actuator // empty when not actuator-specific
	Err      error
}

func (e *StageError) Error() string {
	if e.Actuator != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Actuator, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
