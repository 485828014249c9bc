// Package wifi implements the Radio port for a Linux wireless interface.
//
// Enabling the radio installs a wpa_supplicant configuration rendered from
// the credential record and unblocks RF with rfkill; disabling blocks RF.
// wpa_supplicant itself is expected to run as a system service watching the
// configuration file.
package wifi

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

const defaultConfPath = "/run/wlan/wpa_supplicant.conf"

// Compile-time interface satisfaction check.
var _ driven.Radio = (*Manager)(nil)

// runner executes an external command and returns its combined output.
// Injectable for tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Manager controls one wireless interface.
type Manager struct {
	iface    string
	confPath string
	logger   *slog.Logger
	run      runner
}

// NewManager creates a Manager for the given wireless interface name.
func NewManager(iface string, logger *slog.Logger) *Manager {
	return &Manager{
		iface:    iface,
		confPath: defaultConfPath,
		logger:   logger,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Enable installs the supplicant configuration for creds and unblocks RF.
func (m *Manager) Enable(ctx context.Context, creds model.NetworkCredentials) error {
	if creds.IsZero() {
		return fmt.Errorf("enable radio: no network credentials")
	}

	if err := m.installConfig(creds); err != nil {
		return err
	}

	if err := m.rfkill(ctx, "unblock"); err != nil {
		return err
	}

	m.logger.Info("radio enabled", "interface", m.iface, "ssid", creds.SSID)
	return nil
}

// Disable blocks RF on all wireless devices. The supplicant configuration is
// left in place for the next window.
func (m *Manager) Disable(ctx context.Context) error {
	if err := m.rfkill(ctx, "block"); err != nil {
		return err
	}

	m.logger.Info("radio disabled", "interface", m.iface)
	return nil
}

// Connected reports whether the interface has an operational carrier.
func (m *Manager) Connected(_ context.Context) (bool, error) {
	data, err := os.ReadFile(filepath.Join("/sys/class/net", m.iface, "operstate"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read operstate for %s: %w", m.iface, err)
	}

	return strings.TrimSpace(string(data)) == "up", nil
}

// installConfig renders and atomically installs the wpa_supplicant
// configuration: write to a temp file in the target directory, then rename
// over the final path so the supplicant never sees a partial file.
func (m *Manager) installConfig(creds model.NetworkCredentials) error {
	dir := filepath.Dir(m.confPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "wpa_supplicant.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp supplicant config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod supplicant config: %w", err)
	}

	if _, err := tmp.WriteString(renderConfig(creds)); err != nil {
		tmp.Close()
		return fmt.Errorf("write supplicant config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close supplicant config: %w", err)
	}

	if err := os.Rename(tmp.Name(), m.confPath); err != nil {
		return fmt.Errorf("install supplicant config: %w", err)
	}

	return nil
}

// renderConfig produces the wpa_supplicant network block for creds. An empty
// passphrase yields an open network block.
func renderConfig(creds model.NetworkCredentials) string {
	var b strings.Builder
	b.WriteString("# Generated by brewlinkd; do not edit.\n")
	b.WriteString("ctrl_interface=/run/wpa_supplicant\n\n")
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "        ssid=\"%s\"\n", creds.SSID)
	b.WriteString("        scan_ssid=1\n")
	if creds.Passphrase == "" {
		b.WriteString("        key_mgmt=NONE\n")
	} else {
		b.WriteString("        key_mgmt=WPA-PSK\n")
		fmt.Fprintf(&b, "        psk=\"%s\"\n", creds.Passphrase)
	}
	b.WriteString("}\n")
	return b.String()
}

func (m *Manager) rfkill(ctx context.Context, op string) error {
	out, err := m.run(ctx, "rfkill", op, "wlan")
	if err != nil {
		return fmt.Errorf("rfkill %s wlan: %w (output: %s)", op, err, strings.TrimSpace(string(out)))
	}
	return nil
}
