package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewlink/brewlink/internal/config"
	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// stubCredentialStore is a map-backed CredentialStore for startup tests.
type stubCredentialStore struct {
	values map[string]string
	err    error
}

func (s *stubCredentialStore) Get(_ context.Context, service string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[service], nil
}

func (s *stubCredentialStore) Set(_ context.Context, service, plaintext string) error {
	if s.err != nil {
		return s.err
	}
	s.values[service] = plaintext
	return nil
}

func (s *stubCredentialStore) List(_ context.Context) ([]model.Credential, error) {
	return nil, s.err
}

func (s *stubCredentialStore) Delete(_ context.Context, service string) error {
	delete(s.values, service)
	return s.err
}

func writeCredentialsFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func windowConfig(credsPath string) *config.Config {
	return &config.Config{
		WindowStartHour: 5,
		WindowEndHour:   8,
		CredentialsPath: credsPath,
	}
}

func TestLoadCredentials_FromFile(t *testing.T) {
	path := writeCredentialsFile(t, "ssid: homenet\npassphrase: hunter2\n")
	store := &stubCredentialStore{values: map[string]string{}}

	creds, err := loadCredentials(context.Background(), windowConfig(path), store)

	require.NoError(t, err)
	assert.Equal(t, model.NetworkCredentials{SSID: "homenet", Passphrase: "hunter2"}, creds)
}

func TestLoadCredentials_StoredOverrideFile(t *testing.T) {
	path := writeCredentialsFile(t, "ssid: homenet\npassphrase: hunter2\n")
	store := &stubCredentialStore{values: map[string]string{
		model.CredentialWifiSSID:       "workshop",
		model.CredentialWifiPassphrase: "espresso",
	}}

	creds, err := loadCredentials(context.Background(), windowConfig(path), store)

	require.NoError(t, err)
	assert.Equal(t, model.NetworkCredentials{SSID: "workshop", Passphrase: "espresso"}, creds)
}

func TestLoadCredentials_WindowWithoutCredentialsFails(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	store := &stubCredentialStore{err: driven.ErrEncryptionKeyNotSet}

	_, err := loadCredentials(context.Background(), windowConfig(missing), store)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "radio window configured")
}

func TestLoadCredentials_MalformedFileWithWindowFails(t *testing.T) {
	path := writeCredentialsFile(t, "ssid: [unterminated\n")
	store := &stubCredentialStore{values: map[string]string{}}

	_, err := loadCredentials(context.Background(), windowConfig(path), store)

	require.Error(t, err)
}

func TestLoadCredentials_NoWindowToleratesMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	store := &stubCredentialStore{values: map[string]string{}}

	cfg := &config.Config{
		WindowStartHour: -1,
		WindowEndHour:   -1,
		CredentialsPath: missing,
	}

	creds, err := loadCredentials(context.Background(), cfg, store)

	require.NoError(t, err)
	assert.True(t, creds.IsZero())
}

func TestLoadCredentials_StoredSatisfyWindowWithoutFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	store := &stubCredentialStore{values: map[string]string{
		model.CredentialWifiSSID:       "workshop",
		model.CredentialWifiPassphrase: "espresso",
	}}

	creds, err := loadCredentials(context.Background(), windowConfig(missing), store)

	require.NoError(t, err)
	assert.Equal(t, "workshop", creds.SSID)
}
