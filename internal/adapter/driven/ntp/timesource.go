// Package ntp implements the TimeSource port against an NTP pool host.
package ntp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/ntp"

	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

const (
	queryAttempts = 3
	retryBackoff  = 2 * time.Second
	queryTimeout  = 5 * time.Second
)

// Compile-time interface satisfaction check.
var _ driven.TimeSource = (*TimeSource)(nil)

// TimeSource measures the offset between the local clock and an NTP server.
type TimeSource struct {
	host    string
	logger  *slog.Logger
	backoff time.Duration
	query   func(host string) (*ntp.Response, error)
}

// NewTimeSource creates a TimeSource querying the given NTP host.
func NewTimeSource(host string, logger *slog.Logger) *TimeSource {
	return &TimeSource{
		host:    host,
		logger:  logger,
		backoff: retryBackoff,
		query: func(host string) (*ntp.Response, error) {
			return ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: queryTimeout})
		},
	}
}

// ClockOffset returns the measured offset of the local clock against the NTP
// host. Transient failures are retried with a short backoff before giving up.
func (s *TimeSource) ClockOffset(ctx context.Context) (time.Duration, error) {
	var lastErr error

	for attempt := 1; attempt <= queryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		resp, err := s.query(s.host)
		if err == nil {
			err = resp.Validate()
		}
		if err == nil {
			s.logger.Debug("ntp sync",
				"host", s.host,
				"offset", resp.ClockOffset.Round(time.Millisecond),
				"stratum", resp.Stratum,
			)
			return resp.ClockOffset, nil
		}

		lastErr = err
		s.logger.Warn("ntp query failed", "host", s.host, "attempt", attempt, "error", err)

		if attempt < queryAttempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(s.backoff):
			}
		}
	}

	return 0, fmt.Errorf("querying %s after %d attempts: %w", s.host, queryAttempts, lastErr)
}
