// Package web implements the HTML dashboard driving adapter.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brewlink/brewlink/internal/application"
	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

const recentReadingCount = 12

// Handler is the web driving adapter that serves the HTML dashboard.
type Handler struct {
	telemetrySvc *application.TelemetryService
	commandSvc   *application.CommandService
	windowSvc    *application.WindowService
	updateSvc    *application.UpdateService
	credentials  driven.CredentialStore
	templates    *template.Template
	logger       *slog.Logger
}

// NewHandler creates a Handler. updateSvc and credentials may be nil; the
// dashboard then omits the corresponding panels.
func NewHandler(
	telemetrySvc *application.TelemetryService,
	commandSvc *application.CommandService,
	windowSvc *application.WindowService,
	updateSvc *application.UpdateService,
	credentials driven.CredentialStore,
	logger *slog.Logger,
) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": func(src string) template.HTML {
			return template.HTML(RenderMarkdown(src))
		},
	}).ParseFS(TemplateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Handler{
		telemetrySvc: telemetrySvc,
		commandSvc:   commandSvc,
		windowSvc:    windowSvc,
		updateSvc:    updateSvc,
		credentials:  credentials,
		templates:    tmpl,
		logger:       logger,
	}, nil
}

// dashboardView is the template data for the dashboard page.
type dashboardView struct {
	Title     string
	CSRFToken string
	Flash     string

	Latest   *model.Reading
	Readings []model.Reading
	Window   application.WindowStatus

	CoffeeMin float64
	CoffeeMax float64
	SteamMin  float64
	SteamMax  float64

	ShowUpdate      bool
	UpdateChecked   bool
	Installed       string
	Available       string
	UpdateAvailable bool
	ReleaseNotes    string
	CheckedAt       string

	ShowCredentials bool
	SSID            string
}

// Dashboard renders the main dashboard page.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view := dashboardView{
		Title:     "brewlink",
		CSRFToken: csrfToken(w, r),
		Flash:     r.URL.Query().Get("msg"),
		Window:    h.windowSvc.Status(),
		CoffeeMin: application.MinCoffeeSetpoint,
		CoffeeMax: application.MaxCoffeeSetpoint,
		SteamMin:  application.MinSteamSetpoint,
		SteamMax:  application.MaxSteamSetpoint,
	}

	latest, err := h.telemetrySvc.Latest(ctx)
	if err != nil {
		h.logger.Error("failed to load latest reading", "error", err)
	}
	view.Latest = latest

	readings, err := h.telemetrySvc.Recent(ctx, recentReadingCount)
	if err != nil {
		h.logger.Error("failed to load readings", "error", err)
	}
	view.Readings = readings

	if h.updateSvc != nil {
		view.ShowUpdate = true
		if status := h.updateSvc.LastStatus(); status != nil {
			view.UpdateChecked = true
			view.Installed = status.Installed
			view.Available = status.Available
			view.UpdateAvailable = status.UpdateAvailable
			view.CheckedAt = status.CheckedAt.UTC().Format(time.RFC3339)
		}
		if release := h.updateSvc.LastRelease(); release != nil {
			view.ReleaseNotes = release.Notes
		}
	}

	if h.credentials != nil {
		view.ShowCredentials = true
		ssid, err := h.credentials.Get(ctx, model.CredentialWifiSSID)
		if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			h.logger.Error("failed to load stored ssid", "error", err)
		}
		view.SSID = ssid
	}

	if err := h.templates.ExecuteTemplate(w, "layout.html", view); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// SubmitCommand forwards a raw controller command from the dashboard form.
func (h *Handler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}

	resp, err := h.commandSvc.Execute(r.Context(), r.FormValue("command"))
	if err != nil {
		h.redirect(w, r, trimFlash(err.Error()))
		return
	}

	h.redirect(w, r, "controller: "+strings.Join(resp.Lines, " | "))
}

// SubmitSetpoint handles the coffee and steam setpoint forms.
func (h *Handler) SubmitSetpoint(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}

	kind := r.FormValue("kind")
	if kind != "coffee" && kind != "steam" {
		h.redirect(w, r, "unknown setpoint kind")
		return
	}

	command := "reg " + kind
	if temp := strings.TrimSpace(r.FormValue("temp")); temp != "" {
		command += " " + temp
	}

	if _, err := h.commandSvc.Execute(r.Context(), command); err != nil {
		h.redirect(w, r, trimFlash(err.Error()))
		return
	}

	h.redirect(w, r, kind+" setpoint updated")
}

// RefreshTelemetry samples the controller immediately.
func (h *Handler) RefreshTelemetry(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}

	if _, err := h.telemetrySvc.Refresh(r.Context()); err != nil {
		h.redirect(w, r, trimFlash(err.Error()))
		return
	}

	h.redirect(w, r, "")
}

// CheckUpdate queries the firmware feed from the dashboard.
func (h *Handler) CheckUpdate(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}
	if h.updateSvc == nil {
		http.NotFound(w, r)
		return
	}

	if _, err := h.updateSvc.Check(r.Context()); err != nil {
		h.logger.Error("firmware check failed", "error", err)
		h.redirect(w, r, "firmware feed unreachable")
		return
	}

	h.redirect(w, r, "firmware feed checked")
}

// ApplyUpdate stages the latest firmware release from the dashboard.
func (h *Handler) ApplyUpdate(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}
	if h.updateSvc == nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Minute)
	defer cancel()

	if _, err := h.updateSvc.Apply(ctx); err != nil {
		if errors.Is(err, application.ErrNoUpdate) {
			h.redirect(w, r, "already on the latest firmware")
			return
		}
		h.logger.Error("firmware apply failed", "error", err)
		h.redirect(w, r, "firmware staging failed")
		return
	}

	h.redirect(w, r, "firmware staged")
}

// SaveCredentials stores new network credentials. The stored pair takes
// precedence over the credentials file on the next daemon start.
func (h *Handler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}
	if h.credentials == nil {
		http.NotFound(w, r)
		return
	}

	ssid := strings.TrimSpace(r.FormValue("ssid"))
	if ssid == "" {
		h.redirect(w, r, "ssid must not be empty")
		return
	}

	if err := h.credentials.Set(r.Context(), model.CredentialWifiSSID, ssid); err != nil {
		h.logger.Error("failed to store ssid", "error", err)
		h.redirect(w, r, "failed to store credentials")
		return
	}
	if err := h.credentials.Set(r.Context(), model.CredentialWifiPassphrase, r.FormValue("passphrase")); err != nil {
		h.logger.Error("failed to store passphrase", "error", err)
		h.redirect(w, r, "failed to store credentials")
		return
	}

	h.redirect(w, r, "credentials saved, effective on next start")
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, flash string) {
	target := "/"
	if flash != "" {
		target += "?msg=" + url.QueryEscape(flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// trimFlash keeps flash messages to one readable line.
func trimFlash(msg string) string {
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	if len(msg) > 160 {
		msg = msg[:160]
	}
	return msg
}
