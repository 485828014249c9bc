package driven

import (
	"context"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// ReadingStore persists controller telemetry samples.
type ReadingStore interface {
	Insert(ctx context.Context, reading model.Reading) error
	Recent(ctx context.Context, limit int) ([]model.Reading, error)
	Latest(ctx context.Context) (*model.Reading, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingFirmwareVersion keys the installed controller firmware tag.
const SettingFirmwareVersion = "firmware.version"

// SettingStore persists daemon key/value settings, e.g. the installed
// firmware tag. Get returns ("", nil) for an absent key.
type SettingStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// CredentialStore persists encrypted secrets keyed by service name.
// Get returns ("", nil) when no credential exists for the service.
type CredentialStore interface {
	Get(ctx context.Context, service string) (string, error)
	Set(ctx context.Context, service, plaintext string) error
	List(ctx context.Context) ([]model.Credential, error)
	Delete(ctx context.Context, service string) error
}
