// Package serial implements the ControllerLink port over a serial device.
//
// The boiler controller speaks a line protocol at 115200 baud: commands are
// newline-terminated, response lines are prefixed ">>" (data) or "<<"
// (acknowledgement), and an exchange completes on "<<OK" or "<<ERROR".
// The controller also streams bare CSV telemetry lines continuously; those
// are filtered out of command responses.
package serial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	bugst "go.bug.st/serial"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// Port is the subset of the serial port surface the link needs. It is
// satisfied by go.bug.st/serial.Port and by test fakes.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// readPollInterval is the blocking granularity of port reads; short enough
// that response latency stays negligible against the exchange timeout.
const readPollInterval = 50 * time.Millisecond

// defaultExchangeTimeout bounds one command/response exchange.
const defaultExchangeTimeout = 2 * time.Second

// Compile-time interface satisfaction check.
var _ driven.ControllerLink = (*Link)(nil)

// Link is the serial implementation of the ControllerLink port. Exchanges
// are serialized with a mutex; the controller handles one command at a time.
type Link struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
	logger  *slog.Logger
}

// Open opens the serial device at the given baud rate and returns a Link.
func Open(device string, baud int, logger *slog.Logger) (*Link, error) {
	port, err := bugst.Open(device, &bugst.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", device, err)
	}

	if err := port.SetReadTimeout(readPollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}

	logger.Info("serial link opened", "device", device, "baud", baud)
	return NewLink(port, defaultExchangeTimeout, logger), nil
}

// NewLink wraps an already-open port. Intended for tests and for callers
// that configure the port themselves.
func NewLink(port Port, timeout time.Duration, logger *slog.Logger) *Link {
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}
	return &Link{port: port, timeout: timeout, logger: logger}
}

// Close closes the underlying port.
func (l *Link) Close() error {
	return l.port.Close()
}

// Status runs a status exchange and parses the reply. An incomplete reply is
// still parsed since the continuous telemetry stream carries usable samples
// even when the acknowledgement never arrives.
func (l *Link) Status(ctx context.Context) (*model.ControllerStatus, error) {
	resp, err := l.Exchange(ctx, "status")
	if err != nil && !errors.Is(err, driven.ErrResponseIncomplete) {
		return nil, err
	}

	status := ParseStatus(resp)
	if status == nil {
		return nil, fmt.Errorf("status reply had no parseable line (%d lines)", len(resp.Lines))
	}
	return status, nil
}

// Exchange sends one command and collects its response. The input buffer is
// drained before sending so responses to earlier commands and buffered
// telemetry cannot contaminate this exchange.
func (l *Link) Exchange(ctx context.Context, command string) (model.CommandResponse, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return model.CommandResponse{}, fmt.Errorf("empty command")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.port.ResetInputBuffer(); err != nil {
		return model.CommandResponse{}, fmt.Errorf("drain input before %q: %w", command, err)
	}

	payload := []byte(command + "\n")
	n, err := l.port.Write(payload)
	if err != nil {
		return model.CommandResponse{}, fmt.Errorf("write command %q: %w", command, err)
	}
	if n != len(payload) {
		return model.CommandResponse{}, fmt.Errorf("write command %q: short write %d/%d bytes", command, n, len(payload))
	}
	l.logger.Debug("serial tx", "command", command)

	allLines, completed, err := l.readResponse(ctx)
	if err != nil {
		return model.CommandResponse{}, err
	}

	if len(allLines) == 0 {
		return model.CommandResponse{}, fmt.Errorf("command %q: no response received", command)
	}

	// Keep only protocol lines; bare CSV telemetry is not part of the
	// command response. Fall back to the raw lines when the controller
	// answered without any protocol prefix at all.
	lines := filterProtocolLines(allLines)
	if len(lines) == 0 {
		lines = allLines
	}

	resp := model.CommandResponse{Completed: completed, Lines: lines}

	if !completed {
		l.logger.Warn("serial response incomplete", "command", command, "timeout", l.timeout)
		return resp, fmt.Errorf("command %q: %w", command, driven.ErrResponseIncomplete)
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "<<ERROR") {
			return resp, fmt.Errorf("command %q: %w: %s", command, driven.ErrControllerFault, line)
		}
	}

	return resp, nil
}

// readResponse accumulates lines from the port until a completion marker,
// the exchange timeout, or context cancellation.
func (l *Link) readResponse(ctx context.Context) (lines []string, completed bool, err error) {
	deadline := time.Now().Add(l.timeout)
	buf := make([]byte, 256)
	var pending []byte

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		n, err := l.port.Read(buf)
		if err != nil {
			return nil, false, fmt.Errorf("read response: %w", err)
		}
		if n == 0 {
			// Read timeout tick; keep waiting until the deadline.
			continue
		}

		pending = append(pending, buf[:n]...)
		for {
			idx := indexNewline(pending)
			if idx < 0 {
				break
			}
			raw := pending[:idx]
			pending = pending[idx+1:]

			if !utf8.Valid(raw) {
				return nil, false, fmt.Errorf("read response: invalid utf-8 line %q", raw)
			}
			line := strings.TrimRight(string(raw), "\r")
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			l.logger.Debug("serial rx", "line", line)
			lines = append(lines, line)

			// Only <<OK and <<ERROR complete an exchange; <<CMD echoes do not.
			if strings.HasPrefix(line, "<<OK") || strings.HasPrefix(line, "<<ERROR") {
				return lines, true, nil
			}
		}
	}

	return lines, false, nil
}

// filterProtocolLines keeps lines that belong to the command protocol.
func filterProtocolLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "<<") || strings.HasPrefix(line, ">>") {
			out = append(out, line)
		}
	}
	return out
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}
