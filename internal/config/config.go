// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the daemon configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	SerialDevice string
	SerialBaud   int

	PollInterval     time.Duration
	ReadingRetention time.Duration

	WindowStartHour int
	WindowEndHour   int
	UTCOffsetHours  int

	WirelessInterface string
	CredentialsPath   string

	FirmwareRepo  string // "owner/name"; empty disables update checks
	FirmwareAsset string
	FirmwareDir   string
	UpdateAuto    bool
	GitHubToken   string

	NTPHost         string
	NTPSyncInterval time.Duration

	MQTTAddr     string // host:port; empty disables publishing
	MQTTTopic    string
	MQTTClientID string

	EncryptionKey []byte // 32-byte AES-256 key; nil disables the credential store
}

// HasFirmwareRepo returns true when a firmware repository is configured and
// update checks can run.
func (c *Config) HasFirmwareRepo() bool {
	return c.FirmwareRepo != ""
}

// HasWindow returns true when the radio window differs from always-off.
// A window is always configured in practice; this guards the degenerate
// "no wireless hardware" deployment where both hours are set to -1.
func (c *Config) HasWindow() bool {
	return c.WindowStartHour >= 0 && c.WindowEndHour >= 0
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional with defaults except that hour values
// must be in 0..23 (or -1 to disable the radio window) and the serial baud
// must be positive.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        "127.0.0.1:8080",
		DBPath:            "brewlink.db",
		SerialDevice:      "/dev/ttyAMA0",
		SerialBaud:        115200,
		PollInterval:      15 * time.Second,
		ReadingRetention:  72 * time.Hour,
		WindowStartHour:   5,
		WindowEndHour:     8,
		UTCOffsetHours:    -8,
		WirelessInterface: "wlan0",
		CredentialsPath:   "credentials.yaml",
		FirmwareAsset:     "firmware.uf2",
		FirmwareDir:       "firmware",
		NTPHost:           "pool.ntp.org",
		NTPSyncInterval:   time.Hour,
		MQTTTopic:         "brewlink/telemetry",
		MQTTClientID:      "brewlinkd",
	}

	if v, ok := os.LookupEnv("BREWLINK_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("BREWLINK_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("BREWLINK_SERIAL_DEVICE"); ok {
		cfg.SerialDevice = v
	}
	if v, ok := os.LookupEnv("BREWLINK_SERIAL_BAUD"); ok {
		baud, err := strconv.Atoi(v)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("BREWLINK_SERIAL_BAUD has invalid value %q", v)
		}
		cfg.SerialBaud = baud
	}

	var err error
	if cfg.PollInterval, err = envDuration("BREWLINK_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.ReadingRetention, err = envDuration("BREWLINK_READING_RETENTION", cfg.ReadingRetention); err != nil {
		return nil, err
	}
	if cfg.NTPSyncInterval, err = envDuration("BREWLINK_NTP_SYNC_INTERVAL", cfg.NTPSyncInterval); err != nil {
		return nil, err
	}

	if cfg.WindowStartHour, err = envHour("BREWLINK_WINDOW_START_HOUR", cfg.WindowStartHour); err != nil {
		return nil, err
	}
	if cfg.WindowEndHour, err = envHour("BREWLINK_WINDOW_END_HOUR", cfg.WindowEndHour); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("BREWLINK_UTC_OFFSET_HOURS"); ok {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < -12 || offset > 14 {
			return nil, fmt.Errorf("BREWLINK_UTC_OFFSET_HOURS has invalid value %q", v)
		}
		cfg.UTCOffsetHours = offset
	}

	if v, ok := os.LookupEnv("BREWLINK_WLAN_INTERFACE"); ok {
		cfg.WirelessInterface = v
	}
	if v, ok := os.LookupEnv("BREWLINK_CREDENTIALS_FILE"); ok {
		cfg.CredentialsPath = v
	}

	if v, ok := os.LookupEnv("BREWLINK_FIRMWARE_REPO"); ok && v != "" {
		if !strings.Contains(v, "/") {
			return nil, fmt.Errorf("BREWLINK_FIRMWARE_REPO must be owner/name, got %q", v)
		}
		cfg.FirmwareRepo = v
	}
	if v, ok := os.LookupEnv("BREWLINK_FIRMWARE_ASSET"); ok {
		cfg.FirmwareAsset = v
	}
	if v, ok := os.LookupEnv("BREWLINK_FIRMWARE_DIR"); ok {
		cfg.FirmwareDir = v
	}
	if v, ok := os.LookupEnv("BREWLINK_UPDATE_AUTO_APPLY"); ok {
		auto, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("BREWLINK_UPDATE_AUTO_APPLY has invalid value %q", v)
		}
		cfg.UpdateAuto = auto
	}
	cfg.GitHubToken = os.Getenv("BREWLINK_GITHUB_TOKEN")

	if v, ok := os.LookupEnv("BREWLINK_NTP_HOST"); ok {
		cfg.NTPHost = v
	}

	if v, ok := os.LookupEnv("BREWLINK_MQTT_ADDR"); ok {
		cfg.MQTTAddr = v
	}
	if v, ok := os.LookupEnv("BREWLINK_MQTT_TOPIC"); ok {
		cfg.MQTTTopic = v
	}
	if v, ok := os.LookupEnv("BREWLINK_MQTT_CLIENT_ID"); ok {
		cfg.MQTTClientID = v
	}

	if v, ok := os.LookupEnv("BREWLINK_ENCRYPTION_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("BREWLINK_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("BREWLINK_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.EncryptionKey = key
	}

	return cfg, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, v)
	}
	return parsed, nil
}

func envHour(name string, fallback int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}
	hour, err := strconv.Atoi(v)
	if err != nil || hour < -1 || hour > 23 {
		return 0, fmt.Errorf("%s must be an hour in 0..23 (or -1 to disable), got %q", name, v)
	}
	return hour, nil
}
