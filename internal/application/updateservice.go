package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// ErrChecksumMismatch marks a downloaded firmware asset whose sha256 digest
// does not match the release's published checksum.
var ErrChecksumMismatch = errors.New("firmware checksum mismatch")

// ErrNoUpdate marks an apply attempt when the installed firmware already
// matches the latest release.
var ErrNoUpdate = errors.New("no firmware update available")

// UpdateService checks a release feed for new controller firmware and stages
// verified images into the firmware directory. The daemon binary itself is
// never touched; flashing the staged image is the controller's concern.
type UpdateService struct {
	source   driven.FirmwareSource
	settings driven.SettingStore
	dir      string
	now      func() time.Time

	mu         sync.Mutex
	lastStatus *model.UpdateStatus
	lastFound  *model.FirmwareRelease
}

// NewUpdateService creates a new UpdateService staging images into dir.
func NewUpdateService(source driven.FirmwareSource, settings driven.SettingStore, dir string) *UpdateService {
	return &UpdateService{
		source:   source,
		settings: settings,
		dir:      dir,
		now:      time.Now,
	}
}

// Check fetches the latest release and compares it against the installed
// firmware tag.
func (s *UpdateService) Check(ctx context.Context) (model.UpdateStatus, error) {
	release, err := s.source.LatestRelease(ctx)
	if err != nil {
		return model.UpdateStatus{}, fmt.Errorf("checking firmware feed: %w", err)
	}

	installed, err := s.settings.Get(ctx, driven.SettingFirmwareVersion)
	if err != nil {
		return model.UpdateStatus{}, fmt.Errorf("reading installed firmware tag: %w", err)
	}

	status := model.UpdateStatus{
		Installed:       installed,
		Available:       release.Tag,
		UpdateAvailable: release.Tag != "" && release.Tag != installed,
		CheckedAt:       s.now().UTC(),
	}

	s.mu.Lock()
	s.lastStatus = &status
	s.lastFound = release
	s.mu.Unlock()

	slog.Info("firmware check",
		"installed", installed,
		"available", release.Tag,
		"update_available", status.UpdateAvailable,
	)

	return status, nil
}

// Apply downloads the latest firmware release, verifies its checksum, and
// atomically installs it into the firmware directory. Returns ErrNoUpdate
// when the installed tag already matches.
func (s *UpdateService) Apply(ctx context.Context) (model.UpdateStatus, error) {
	status, err := s.Check(ctx)
	if err != nil {
		return model.UpdateStatus{}, err
	}
	if !status.UpdateAvailable {
		return status, ErrNoUpdate
	}

	s.mu.Lock()
	release := s.lastFound
	s.mu.Unlock()

	if err := s.stage(ctx, release); err != nil {
		return status, err
	}

	if err := s.settings.Set(ctx, driven.SettingFirmwareVersion, release.Tag); err != nil {
		return status, fmt.Errorf("recording firmware tag %s: %w", release.Tag, err)
	}

	slog.Info("firmware staged",
		"tag", release.Tag,
		"asset", release.AssetName,
		"path", filepath.Join(s.dir, release.AssetName),
	)

	return s.Check(ctx)
}

// LastStatus returns the most recent check result, or nil before any check.
func (s *UpdateService) LastStatus() *model.UpdateStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

// LastRelease returns the release found by the most recent check, or nil.
func (s *UpdateService) LastRelease() *model.FirmwareRelease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFound
}

// StartupCheck runs one check at boot and, when autoApply is set, stages any
// available update. Failures are logged; boot continues regardless.
func (s *UpdateService) StartupCheck(ctx context.Context, autoApply bool) {
	status, err := s.Check(ctx)
	if err != nil {
		slog.Warn("startup firmware check failed", "error", err)
		return
	}

	if !status.UpdateAvailable || !autoApply {
		return
	}

	if _, err := s.Apply(ctx); err != nil {
		slog.Error("startup firmware apply failed", "error", err)
	}
}

// stage downloads the release asset to a temp file, verifies the sha256
// digest when the release carries one, and renames the file into place so a
// partially written image is never visible under the final name.
func (s *UpdateService) stage(ctx context.Context, release *model.FirmwareRelease) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating firmware dir %s: %w", s.dir, err)
	}

	body, err := s.source.DownloadAsset(ctx, release.AssetID)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", release.AssetName, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(s.dir, release.AssetName+".*.part")
	if err != nil {
		return fmt.Errorf("creating staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	digest := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, digest), body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", release.AssetName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing staging file: %w", err)
	}

	if release.Checksum != "" {
		got := hex.EncodeToString(digest.Sum(nil))
		if got != release.Checksum {
			return fmt.Errorf("%w: asset %s: got %s want %s",
				ErrChecksumMismatch, release.AssetName, got, release.Checksum)
		}
	} else {
		slog.Warn("release carries no checksum, staging unverified", "tag", release.Tag)
	}

	target := filepath.Join(s.dir, release.AssetName)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("installing %s: %w", target, err)
	}

	return nil
}
