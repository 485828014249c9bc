// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brewlink/brewlink/internal/adapter/driven/sysinfo"
	"github.com/brewlink/brewlink/internal/application"
	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

const (
	defaultReadingLimit = 50
	maxReadingLimit     = 1000
)

// Handler serves the REST API for machine status, telemetry, commands, the
// radio window, and firmware updates.
type Handler struct {
	telemetrySvc *application.TelemetryService
	commandSvc   *application.CommandService
	windowSvc    *application.WindowService
	updateSvc    *application.UpdateService
	credentials  driven.CredentialStore
	vitals       *sysinfo.Collector
	logger       *slog.Logger
}

// NewHandler creates a Handler. updateSvc may be nil when no firmware
// repository is configured; the update endpoints then return 404. The same
// applies to credentials and the credentials endpoint.
func NewHandler(
	telemetrySvc *application.TelemetryService,
	commandSvc *application.CommandService,
	windowSvc *application.WindowService,
	updateSvc *application.UpdateService,
	credentials driven.CredentialStore,
	vitals *sysinfo.Collector,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		telemetrySvc: telemetrySvc,
		commandSvc:   commandSvc,
		windowSvc:    windowSvc,
		updateSvc:    updateSvc,
		credentials:  credentials,
		vitals:       vitals,
		logger:       logger,
	}
}

// RegisterAPIRoutes registers all REST API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/readings", h.ListReadings)
	mux.HandleFunc("POST /api/v1/command", h.Command)
	mux.HandleFunc("POST /api/v1/telemetry/refresh", h.RefreshTelemetry)
	mux.HandleFunc("GET /api/v1/window", h.Window)
	mux.HandleFunc("GET /api/v1/update", h.UpdateStatus)
	mux.HandleFunc("POST /api/v1/update/check", h.UpdateCheck)
	mux.HandleFunc("POST /api/v1/update/apply", h.UpdateApply)
	mux.HandleFunc("PUT /api/v1/credentials", h.PutCredentials)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ApplyMiddleware wraps a handler with logging and recovery middleware.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoverPanics(logger, next)
	wrapped = logRequests(logger, wrapped)
	return wrapped
}

// Status returns the live controller status, falling back to the newest
// stored reading when the controller cannot be reached.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.commandSvc.Status(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, StatusResponse{
			Temperature: status.Temperature,
			Setpoint:    status.Setpoint,
			DutyCycle:   status.DutyCycle,
			State:       string(status.State),
			TakenAt:     time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	h.logger.Warn("live status failed, serving stored reading", "error", err)

	reading, storeErr := h.telemetrySvc.Latest(r.Context())
	if storeErr != nil {
		h.logger.Error("failed to load latest reading", "error", storeErr)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if reading == nil {
		writeError(w, http.StatusServiceUnavailable, "controller unreachable and no stored readings")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Temperature: reading.Temperature,
		Setpoint:    reading.Setpoint,
		DutyCycle:   reading.DutyCycle,
		State:       string(reading.State),
		Stale:       true,
		TakenAt:     reading.TakenAt.UTC().Format(time.RFC3339),
	})
}

// ListReadings returns stored telemetry samples, newest first.
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	limit := defaultReadingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxReadingLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	readings, err := h.telemetrySvc.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list readings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ReadingResponse, 0, len(readings))
	for _, reading := range readings {
		resp = append(resp, toReadingResponse(reading))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Command validates and forwards one controller command.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.commandSvc.Execute(r.Context(), req.Command)
	switch {
	case errors.Is(err, application.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, driven.ErrControllerFault):
		writeJSON(w, http.StatusBadGateway, toCommandResponse(resp))
		return
	case errors.Is(err, driven.ErrResponseIncomplete):
		writeJSON(w, http.StatusGatewayTimeout, toCommandResponse(resp))
		return
	case err != nil:
		h.logger.Error("command failed", "command", req.Command, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toCommandResponse(resp))
}

// RefreshTelemetry samples the controller immediately and returns the
// stored reading.
func (h *Handler) RefreshTelemetry(w http.ResponseWriter, r *http.Request) {
	reading, err := h.telemetrySvc.Refresh(r.Context())
	if err != nil {
		h.logger.Error("manual telemetry refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "controller unreachable")
		return
	}

	writeJSON(w, http.StatusOK, toReadingResponse(*reading))
}

// Window returns the radio window state.
func (h *Handler) Window(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toWindowResponse(h.windowSvc.Status()))
}

// UpdateStatus returns the result of the most recent firmware check.
func (h *Handler) UpdateStatus(w http.ResponseWriter, _ *http.Request) {
	if h.updateSvc == nil {
		writeError(w, http.StatusNotFound, "no firmware repository configured")
		return
	}

	writeJSON(w, http.StatusOK, toUpdateResponse(h.updateSvc.LastStatus(), h.updateSvc.LastRelease()))
}

// UpdateCheck queries the firmware feed and returns the fresh result.
func (h *Handler) UpdateCheck(w http.ResponseWriter, r *http.Request) {
	if h.updateSvc == nil {
		writeError(w, http.StatusNotFound, "no firmware repository configured")
		return
	}

	status, err := h.updateSvc.Check(r.Context())
	if err != nil {
		h.logger.Error("firmware check failed", "error", err)
		writeError(w, http.StatusBadGateway, "firmware feed unreachable")
		return
	}

	writeJSON(w, http.StatusOK, toUpdateResponse(&status, h.updateSvc.LastRelease()))
}

// UpdateApply downloads and stages the latest firmware release.
func (h *Handler) UpdateApply(w http.ResponseWriter, r *http.Request) {
	if h.updateSvc == nil {
		writeError(w, http.StatusNotFound, "no firmware repository configured")
		return
	}

	// Staging can outlive an impatient client; detach from the request
	// context but keep a bound on the whole operation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Minute)
	defer cancel()

	status, err := h.updateSvc.Apply(ctx)
	switch {
	case errors.Is(err, application.ErrNoUpdate):
		writeError(w, http.StatusConflict, "no firmware update available")
		return
	case errors.Is(err, application.ErrChecksumMismatch):
		h.logger.Error("firmware apply failed", "error", err)
		writeError(w, http.StatusBadGateway, "downloaded image failed checksum verification")
		return
	case err != nil:
		h.logger.Error("firmware apply failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toUpdateResponse(&status, h.updateSvc.LastRelease()))
}

// PutCredentials stores new network credentials. The stored pair takes
// precedence over the credentials file on the next daemon start.
func (h *Handler) PutCredentials(w http.ResponseWriter, r *http.Request) {
	if h.credentials == nil {
		writeError(w, http.StatusNotFound, "no credential store configured")
		return
	}

	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SSID == "" {
		writeError(w, http.StatusBadRequest, "ssid must not be empty")
		return
	}

	if err := h.credentials.Set(r.Context(), model.CredentialWifiSSID, req.SSID); err != nil {
		h.logger.Error("failed to store ssid", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.credentials.Set(r.Context(), model.CredentialWifiPassphrase, req.Passphrase); err != nil {
		h.logger.Error("failed to store passphrase", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a health check response with host vitals.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if h.vitals != nil {
		resp.Vitals = h.vitals.Snapshot(r.Context())
	}

	writeJSON(w, http.StatusOK, resp)
}
