package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// The dashboard is served at /; form actions post to /web/* paths.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Dashboard)

	// Form actions.
	mux.HandleFunc("POST /web/command", h.SubmitCommand)
	mux.HandleFunc("POST /web/setpoint", h.SubmitSetpoint)
	mux.HandleFunc("POST /web/refresh", h.RefreshTelemetry)
	mux.HandleFunc("POST /web/update/check", h.CheckUpdate)
	mux.HandleFunc("POST /web/update/apply", h.ApplyUpdate)
	mux.HandleFunc("POST /web/credentials", h.SaveCredentials)
}
