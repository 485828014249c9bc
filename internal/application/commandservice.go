package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// ErrInvalidCommand marks a controller command that failed validation and
// was never sent over the link.
var ErrInvalidCommand = errors.New("invalid controller command")

// Setpoint bounds enforced before a regulation command reaches the
// controller, in degrees Celsius.
const (
	MinCoffeeSetpoint     = 80.0
	MaxCoffeeSetpoint     = 120.0
	DefaultCoffeeSetpoint = 108.0

	MinSteamSetpoint     = 120.0
	MaxSteamSetpoint     = 160.0
	DefaultSteamSetpoint = 145.0
)

// CommandService validates controller commands and forwards them over the
// link. Only the known command vocabulary passes; everything else is
// rejected before it can reach the controller.
type CommandService struct {
	link driven.ControllerLink
}

// NewCommandService creates a new CommandService.
func NewCommandService(link driven.ControllerLink) *CommandService {
	return &CommandService{link: link}
}

// Execute validates raw and sends its canonical form to the controller.
//
// Accepted commands:
//
//	status
//	temp
//	reg on | reg off
//	reg coffee [temp]   (80..120, default 108)
//	reg steam [temp]    (120..160, default 145)
//	heater on | heater off
func (s *CommandService) Execute(ctx context.Context, raw string) (model.CommandResponse, error) {
	command, err := canonicalize(raw)
	if err != nil {
		return model.CommandResponse{}, err
	}
	return s.link.Exchange(ctx, command)
}

// Status queries and parses the controller state.
func (s *CommandService) Status(ctx context.Context) (*model.ControllerStatus, error) {
	return s.link.Status(ctx)
}

// canonicalize validates a raw command and returns the exact string to send.
func canonicalize(raw string) (string, error) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	switch fields[0] {
	case "status", "temp":
		if len(fields) != 1 {
			return "", fmt.Errorf("%w: %q takes no arguments", ErrInvalidCommand, fields[0])
		}
		return fields[0], nil

	case "heater":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return "", fmt.Errorf("%w: expected heater on|off", ErrInvalidCommand)
		}
		return "heater " + fields[1], nil

	case "reg":
		if len(fields) < 2 {
			return "", fmt.Errorf("%w: reg needs a subcommand", ErrInvalidCommand)
		}
		switch fields[1] {
		case "on", "off":
			if len(fields) != 2 {
				return "", fmt.Errorf("%w: reg %s takes no arguments", ErrInvalidCommand, fields[1])
			}
			return "reg " + fields[1], nil
		case "coffee":
			return setpointCommand("reg coffee", fields[2:], MinCoffeeSetpoint, MaxCoffeeSetpoint, DefaultCoffeeSetpoint)
		case "steam":
			return setpointCommand("reg steam", fields[2:], MinSteamSetpoint, MaxSteamSetpoint, DefaultSteamSetpoint)
		default:
			return "", fmt.Errorf("%w: unknown reg subcommand %q", ErrInvalidCommand, fields[1])
		}

	default:
		return "", fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, fields[0])
	}
}

// setpointCommand validates an optional temperature argument against
// [minimum, maximum] and falls back to fallback when absent.
func setpointCommand(prefix string, args []string, minimum, maximum, fallback float64) (string, error) {
	temp := fallback
	switch len(args) {
	case 0:
	case 1:
		parsed, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", fmt.Errorf("%w: temperature %q is not a number", ErrInvalidCommand, args[0])
		}
		temp = parsed
	default:
		return "", fmt.Errorf("%w: %s takes at most one temperature", ErrInvalidCommand, prefix)
	}

	if temp < minimum || temp > maximum {
		return "", fmt.Errorf("%w: temperature %g outside %g..%g", ErrInvalidCommand, temp, minimum, maximum)
	}

	return fmt.Sprintf("%s %g", prefix, temp), nil
}
