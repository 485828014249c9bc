package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

func testFirmwareSource(data []byte) *fakeFirmwareSource {
	digest := sha256.Sum256(data)
	return &fakeFirmwareSource{
		release: &model.FirmwareRelease{
			Tag:         "v2.0.0",
			Notes:       "New steam curve.",
			AssetName:   "firmware.uf2",
			AssetID:     10,
			Checksum:    hex.EncodeToString(digest[:]),
			PublishedAt: time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC),
		},
		assets: map[int64][]byte{10: data},
	}
}

func TestCheck_UpdateAvailable(t *testing.T) {
	source := testFirmwareSource([]byte("image"))
	settings := newFakeSettingStore()
	settings.m[driven.SettingFirmwareVersion] = "v1.0.0"

	svc := NewUpdateService(source, settings, t.TempDir())

	status, err := svc.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1.0.0", status.Installed)
	assert.Equal(t, "v2.0.0", status.Available)
	assert.True(t, status.UpdateAvailable)
	assert.False(t, status.CheckedAt.IsZero())
	require.NotNil(t, svc.LastStatus())
	assert.Equal(t, status, *svc.LastStatus())
}

func TestCheck_AlreadyCurrent(t *testing.T) {
	source := testFirmwareSource([]byte("image"))
	settings := newFakeSettingStore()
	settings.m[driven.SettingFirmwareVersion] = "v2.0.0"

	svc := NewUpdateService(source, settings, t.TempDir())

	status, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, status.UpdateAvailable)
}

func TestApply_StagesVerifiedImage(t *testing.T) {
	data := []byte("firmware-image-bytes")
	source := testFirmwareSource(data)
	settings := newFakeSettingStore()
	dir := t.TempDir()

	svc := NewUpdateService(source, settings, dir)

	status, err := svc.Apply(context.Background())
	require.NoError(t, err)

	staged, err := os.ReadFile(filepath.Join(dir, "firmware.uf2"))
	require.NoError(t, err)
	assert.Equal(t, data, staged)

	assert.Equal(t, "v2.0.0", settings.m[driven.SettingFirmwareVersion])
	assert.Equal(t, "v2.0.0", status.Installed)
	assert.False(t, status.UpdateAvailable)

	// No leftover staging files.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApply_NoUpdate(t *testing.T) {
	source := testFirmwareSource([]byte("image"))
	settings := newFakeSettingStore()
	settings.m[driven.SettingFirmwareVersion] = "v2.0.0"

	svc := NewUpdateService(source, settings, t.TempDir())

	_, err := svc.Apply(context.Background())
	assert.ErrorIs(t, err, ErrNoUpdate)
}

func TestApply_ChecksumMismatch(t *testing.T) {
	source := testFirmwareSource([]byte("image"))
	source.release.Checksum = "deadbeef"
	settings := newFakeSettingStore()
	dir := t.TempDir()

	svc := NewUpdateService(source, settings, dir)

	_, err := svc.Apply(context.Background())
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	_, statErr := os.Stat(filepath.Join(dir, "firmware.uf2"))
	assert.True(t, os.IsNotExist(statErr), "corrupt image must not land under the final name")
	assert.Empty(t, settings.m[driven.SettingFirmwareVersion])
}

func TestApply_UnverifiedWhenNoChecksumPublished(t *testing.T) {
	data := []byte("image")
	source := testFirmwareSource(data)
	source.release.Checksum = ""
	settings := newFakeSettingStore()
	dir := t.TempDir()

	svc := NewUpdateService(source, settings, dir)

	_, err := svc.Apply(context.Background())
	require.NoError(t, err)

	staged, err := os.ReadFile(filepath.Join(dir, "firmware.uf2"))
	require.NoError(t, err)
	assert.Equal(t, data, staged)
}

func TestStartupCheck_AutoApply(t *testing.T) {
	data := []byte("image")
	source := testFirmwareSource(data)
	settings := newFakeSettingStore()
	dir := t.TempDir()

	svc := NewUpdateService(source, settings, dir)
	svc.StartupCheck(context.Background(), true)

	assert.Equal(t, "v2.0.0", settings.m[driven.SettingFirmwareVersion])
}

func TestStartupCheck_NoAutoApply(t *testing.T) {
	source := testFirmwareSource([]byte("image"))
	settings := newFakeSettingStore()

	svc := NewUpdateService(source, settings, t.TempDir())
	svc.StartupCheck(context.Background(), false)

	assert.Empty(t, settings.m[driven.SettingFirmwareVersion])
	require.NotNil(t, svc.LastStatus(), "the check itself must still run")
}
