package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brewlink/brewlink/internal/adapter/driven/sysinfo"
	"github.com/brewlink/brewlink/internal/application"
	"github.com/brewlink/brewlink/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the JSON representation of the machine status endpoint.
// Stale is set when the controller could not be reached and the payload
// falls back to the newest stored reading.
type StatusResponse struct {
	Temperature float64 `json:"temperature"`
	Setpoint    float64 `json:"setpoint"`
	DutyCycle   int     `json:"duty_cycle"`
	State       string  `json:"state"`
	Stale       bool    `json:"stale"`
	TakenAt     string  `json:"taken_at"`
}

// ReadingResponse is the JSON representation of one stored telemetry sample.
type ReadingResponse struct {
	ID          int64   `json:"id"`
	Temperature float64 `json:"temperature"`
	Setpoint    float64 `json:"setpoint"`
	DutyCycle   int     `json:"duty_cycle"`
	State       string  `json:"state"`
	TakenAt     string  `json:"taken_at"`
}

// CommandRequest is the JSON body for the command endpoint.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse is the JSON representation of a controller exchange.
type CommandResponse struct {
	Completed bool     `json:"completed"`
	Lines     []string `json:"lines"`
}

// CredentialsRequest is the JSON body for the credentials endpoint.
type CredentialsRequest struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
}

// WindowResponse is the JSON representation of the radio window state.
type WindowResponse struct {
	Enabled       bool   `json:"enabled"`
	Active        bool   `json:"active"`
	LocalHour     int    `json:"local_hour"`
	StartHour     int    `json:"start_hour"`
	EndHour       int    `json:"end_hour"`
	ClockOffsetMS int64  `json:"clock_offset_ms"`
	LastSync      string `json:"last_sync,omitempty"`
}

// UpdateResponse is the JSON representation of the firmware update state.
type UpdateResponse struct {
	Checked         bool   `json:"checked"`
	Installed       string `json:"installed,omitempty"`
	Available       string `json:"available,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
	Notes           string `json:"notes,omitempty"`
	CheckedAt       string `json:"checked_at,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string         `json:"status"`
	Time   string         `json:"time"`
	Vitals sysinfo.Vitals `json:"vitals"`
}

// toReadingResponse converts a domain Reading to its JSON representation.
func toReadingResponse(r model.Reading) ReadingResponse {
	return ReadingResponse{
		ID:          r.ID,
		Temperature: r.Temperature,
		Setpoint:    r.Setpoint,
		DutyCycle:   r.DutyCycle,
		State:       string(r.State),
		TakenAt:     r.TakenAt.UTC().Format(time.RFC3339),
	}
}

// toCommandResponse converts a domain CommandResponse to its JSON representation.
func toCommandResponse(resp model.CommandResponse) CommandResponse {
	lines := resp.Lines
	if lines == nil {
		lines = []string{}
	}
	return CommandResponse{Completed: resp.Completed, Lines: lines}
}

// toWindowResponse converts a window status snapshot to its JSON representation.
func toWindowResponse(s application.WindowStatus) WindowResponse {
	resp := WindowResponse{
		Enabled:       s.Enabled,
		Active:        s.Active,
		LocalHour:     s.LocalHour,
		StartHour:     s.StartHour,
		EndHour:       s.EndHour,
		ClockOffsetMS: s.ClockOffset.Milliseconds(),
	}
	if !s.LastSync.IsZero() {
		resp.LastSync = s.LastSync.UTC().Format(time.RFC3339)
	}
	return resp
}

// toUpdateResponse converts an update status and optional release notes to
// the JSON representation.
func toUpdateResponse(status *model.UpdateStatus, release *model.FirmwareRelease) UpdateResponse {
	if status == nil {
		return UpdateResponse{Checked: false}
	}

	resp := UpdateResponse{
		Checked:         true,
		Installed:       status.Installed,
		Available:       status.Available,
		UpdateAvailable: status.UpdateAvailable,
		CheckedAt:       status.CheckedAt.UTC().Format(time.RFC3339),
	}
	if release != nil {
		resp.Notes = release.Notes
	}
	return resp
}
