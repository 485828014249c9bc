// Command brewlinkd is the espresso machine gateway daemon. It polls the
// boiler controller over serial, persists telemetry, gates the wireless
// uplink to a daily window, stages controller firmware updates, and serves
// the local dashboard and REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/brewlink/brewlink/internal/adapter/driven/github"
	mqttadapter "github.com/brewlink/brewlink/internal/adapter/driven/mqtt"
	ntpadapter "github.com/brewlink/brewlink/internal/adapter/driven/ntp"
	serialadapter "github.com/brewlink/brewlink/internal/adapter/driven/serial"
	sqliteadapter "github.com/brewlink/brewlink/internal/adapter/driven/sqlite"
	"github.com/brewlink/brewlink/internal/adapter/driven/sysinfo"
	wifiadapter "github.com/brewlink/brewlink/internal/adapter/driven/wifi"
	httphandler "github.com/brewlink/brewlink/internal/adapter/driving/http"
	webhandler "github.com/brewlink/brewlink/internal/adapter/driving/web"
	"github.com/brewlink/brewlink/internal/application"
	"github.com/brewlink/brewlink/internal/config"
	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"serial_device", cfg.SerialDevice,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// 4. Wire stores.
	readingStore := sqliteadapter.NewReadingRepo(db)
	settingStore := sqliteadapter.NewSettingRepo(db)
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.EncryptionKey)

	// 5. Resolve network credentials: stored credentials take priority over
	// the credentials file. A configured window needs credentials to connect
	// with, so missing credentials are fatal then.
	creds, err := loadCredentials(ctx, cfg, credentialStore)
	if err != nil {
		return err
	}

	// 6. Open the controller link.
	link, err := serialadapter.Open(cfg.SerialDevice, cfg.SerialBaud, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := link.Close(); closeErr != nil {
			slog.Error("error closing serial link", "error", closeErr)
		}
	}()

	// 7. Optional telemetry broker.
	var publisher driven.TelemetryPublisher
	if cfg.MQTTAddr != "" {
		pub := mqttadapter.NewPublisher(cfg.MQTTAddr, cfg.MQTTTopic, cfg.MQTTClientID, slog.Default())
		defer pub.Close()
		publisher = pub
		slog.Info("telemetry broker configured", "addr", cfg.MQTTAddr, "topic", cfg.MQTTTopic)
	}

	// 8. Telemetry loop.
	telemetrySvc := application.NewTelemetryService(link, readingStore, publisher, cfg.PollInterval, cfg.ReadingRetention)
	go telemetrySvc.Start(ctx)

	// 9. Radio window loop.
	var timeSource driven.TimeSource
	if cfg.NTPHost != "" {
		timeSource = ntpadapter.NewTimeSource(cfg.NTPHost, slog.Default())
	}
	radio := wifiadapter.NewManager(cfg.WirelessInterface, slog.Default())
	windowSvc := application.NewWindowService(
		radio,
		timeSource,
		creds,
		cfg.WindowStartHour,
		cfg.WindowEndHour,
		cfg.UTCOffsetHours,
		cfg.NTPSyncInterval,
	)
	go windowSvc.Start(ctx)

	// 10. Firmware updates (optional).
	var updateSvc *application.UpdateService
	if cfg.HasFirmwareRepo() {
		source, err := githubadapter.NewSource(cfg.GitHubToken, cfg.FirmwareRepo, cfg.FirmwareAsset)
		if err != nil {
			return err
		}
		updateSvc = application.NewUpdateService(source, settingStore, cfg.FirmwareDir)
		go updateSvc.StartupCheck(ctx, cfg.UpdateAuto)
		slog.Info("firmware feed configured", "repo", cfg.FirmwareRepo, "asset", cfg.FirmwareAsset)
	}

	commandSvc := application.NewCommandService(link)
	vitals := sysinfo.NewCollector(slog.Default())

	// 11. HTTP API and dashboard.
	mux := http.NewServeMux()

	apiHandler := httphandler.NewHandler(telemetrySvc, commandSvc, windowSvc, updateSvc, credentialStore, vitals, slog.Default())
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webHandler, err := webhandler.NewHandler(telemetrySvc, commandSvc, windowSvc, updateSvc, credentialStore, slog.Default())
	if err != nil {
		return err
	}
	webhandler.RegisterRoutes(mux, webHandler)

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("brewlinkd started",
		"listen_addr", cfg.ListenAddr,
		"window_start", cfg.WindowStartHour,
		"window_end", cfg.WindowEndHour,
	)

	// 12. Wait for shutdown signal, then drain the HTTP server.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadCredentials resolves the network credentials: values stored through
// the dashboard win over the credentials file. When a radio window is
// configured the daemon cannot do its job without credentials, so resolving
// none is an error then.
func loadCredentials(ctx context.Context, cfg *config.Config, store driven.CredentialStore) (model.NetworkCredentials, error) {
	creds, fileErr := config.LoadCredentials(cfg.CredentialsPath)
	if fileErr != nil {
		slog.Warn("credentials file unavailable", "path", cfg.CredentialsPath, "error", fileErr)
	}

	if stored, ok := storedCredentials(ctx, store); ok {
		slog.Info("using stored network credentials", "ssid", stored.SSID)
		creds = stored
	}

	if cfg.HasWindow() && creds.IsZero() {
		if fileErr != nil {
			return model.NetworkCredentials{}, fmt.Errorf("radio window configured but no credentials available: %w", fileErr)
		}
		return model.NetworkCredentials{}, errors.New("radio window configured but no credentials available")
	}
	return creds, nil
}

// storedCredentials fetches the dashboard-saved credential pair. A missing
// pair or an unconfigured store is not an error, just absence.
func storedCredentials(ctx context.Context, store driven.CredentialStore) (model.NetworkCredentials, bool) {
	ssid, err := store.Get(ctx, model.CredentialWifiSSID)
	if err != nil {
		if !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			slog.Warn("stored credentials unavailable", "error", err)
		}
		return model.NetworkCredentials{}, false
	}
	if ssid == "" {
		return model.NetworkCredentials{}, false
	}

	passphrase, err := store.Get(ctx, model.CredentialWifiPassphrase)
	if err != nil {
		slog.Warn("stored passphrase unavailable", "error", err)
		return model.NetworkCredentials{}, false
	}

	return model.NetworkCredentials{SSID: ssid, Passphrase: passphrase}, true
}
