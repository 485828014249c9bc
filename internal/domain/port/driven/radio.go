package driven

import (
	"context"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// Radio controls the wireless uplink. Enable installs the supplicant
// configuration for the given credentials and unblocks RF; Disable blocks RF.
// Connected reports whether the wireless interface currently has a carrier.
type Radio interface {
	Enable(ctx context.Context, creds model.NetworkCredentials) error
	Disable(ctx context.Context) error
	Connected(ctx context.Context) (bool, error)
}

// TimeSource reports the offset between the local clock and a reference
// clock. The window scheduler applies the offset when computing the local
// hour rather than stepping the system clock.
type TimeSource interface {
	ClockOffset(ctx context.Context) (time.Duration, error)
}

// TelemetryPublisher pushes telemetry samples to an external broker.
type TelemetryPublisher interface {
	Publish(ctx context.Context, reading model.Reading) error
	Close() error
}
