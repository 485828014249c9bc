package driven

import (
	"context"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// ControllerLink is the serial command channel to the boiler controller.
// Exchange sends a single newline-terminated command and collects the
// response up to the completion marker. Implementations must drain any
// pending input before sending so stale telemetry cannot contaminate the
// response.
type ControllerLink interface {
	Exchange(ctx context.Context, command string) (model.CommandResponse, error)
	// Status queries the controller and parses its reply into a
	// ControllerStatus. Partial replies still yield a status when a
	// telemetry line can be parsed from them.
	Status(ctx context.Context) (*model.ControllerStatus, error)
	Close() error
}
