// Package model contains the core domain types shared across the application.
package model

import "time"

// MachineState is the regulation state reported by the boiler controller.
// The controller reports free-form state tokens; the values below are the
// ones the stock firmware emits.
type MachineState string

const (
	StateUnknown MachineState = "unknown"
	StateIdle    MachineState = "idle"
	StateHeating MachineState = "heating"
	StateReady   MachineState = "ready"
	StateSteam   MachineState = "steam"
	StateFault   MachineState = "fault"
)

// Reading is one telemetry sample taken from the boiler controller.
type Reading struct {
	ID          int64
	Temperature float64
	Setpoint    float64
	DutyCycle   int
	State       MachineState
	TakenAt     time.Time
}

// ControllerStatus is the live status parsed from a controller response.
// Raw retains the response line the status was parsed from.
type ControllerStatus struct {
	Temperature float64
	Setpoint    float64
	DutyCycle   int
	State       MachineState
	Raw         string
}

// Reading converts a live status into a persistable telemetry sample.
func (s ControllerStatus) Reading(takenAt time.Time) Reading {
	return Reading{
		Temperature: s.Temperature,
		Setpoint:    s.Setpoint,
		DutyCycle:   s.DutyCycle,
		State:       s.State,
		TakenAt:     takenAt,
	}
}

// CommandResponse is the outcome of one command exchange with the controller.
// Lines holds only protocol lines (prefixed ">>" or "<<"); interleaved
// telemetry CSV output is filtered out by the link adapter.
type CommandResponse struct {
	Completed bool
	Lines     []string
}
