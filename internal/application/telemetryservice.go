// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// refreshRequest represents a manual telemetry refresh trigger.
type refreshRequest struct {
	done chan refreshResult
}

type refreshResult struct {
	reading *model.Reading
	err     error
}

// TelemetryService orchestrates periodic controller polling, persistence,
// broker publishing, and retention pruning.
type TelemetryService struct {
	link      driven.ControllerLink
	readings  driven.ReadingStore
	publisher driven.TelemetryPublisher
	interval  time.Duration
	retention time.Duration
	refreshCh chan refreshRequest
	now       func() time.Time
}

// NewTelemetryService creates a new TelemetryService. publisher may be nil
// when no broker is configured.
func NewTelemetryService(
	link driven.ControllerLink,
	readings driven.ReadingStore,
	publisher driven.TelemetryPublisher,
	interval time.Duration,
	retention time.Duration,
) *TelemetryService {
	return &TelemetryService{
		link:      link,
		readings:  readings,
		publisher: publisher,
		interval:  interval,
		retention: retention,
		refreshCh: make(chan refreshRequest),
		now:       time.Now,
	}
}

// Start begins the polling loop. It runs an immediate sample, then samples on
// the configured interval. It also listens for manual refresh requests.
// Start blocks until the context is canceled.
func (s *TelemetryService) Start(ctx context.Context) {
	if _, err := s.sample(ctx); err != nil {
		slog.Error("initial telemetry sample failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("telemetry service stopped")
			return
		case <-ticker.C:
			if _, err := s.sample(ctx); err != nil {
				slog.Error("telemetry sample failed", "error", err)
			}
		case req := <-s.refreshCh:
			reading, err := s.sample(ctx)
			req.done <- refreshResult{reading: reading, err: err}
		}
	}
}

// Refresh triggers an immediate sample, bypassing the polling interval. It
// blocks until the sample completes or the context is canceled.
func (s *TelemetryService) Refresh(ctx context.Context) (*model.Reading, error) {
	req := refreshRequest{done: make(chan refreshResult, 1)}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.reading, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Latest returns the most recent stored reading, or nil when none exists.
func (s *TelemetryService) Latest(ctx context.Context) (*model.Reading, error) {
	return s.readings.Latest(ctx)
}

// Recent returns up to limit stored readings, newest first.
func (s *TelemetryService) Recent(ctx context.Context, limit int) ([]model.Reading, error) {
	return s.readings.Recent(ctx, limit)
}

// sample queries the controller once, stores the reading, publishes it, and
// prunes readings past the retention horizon. Publish and prune failures are
// logged but do not fail the sample.
func (s *TelemetryService) sample(ctx context.Context) (*model.Reading, error) {
	start := s.now()

	status, err := s.link.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying controller: %w", err)
	}

	reading := status.Reading(start.UTC())
	if err := s.readings.Insert(ctx, reading); err != nil {
		return nil, fmt.Errorf("storing reading: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, reading); err != nil {
			slog.Warn("telemetry publish failed", "error", err)
		}
	}

	if s.retention > 0 {
		cutoff := start.UTC().Add(-s.retention)
		pruned, err := s.readings.PruneBefore(ctx, cutoff)
		if err != nil {
			slog.Warn("reading prune failed", "error", err)
		} else if pruned > 0 {
			slog.Debug("pruned readings", "count", pruned, "cutoff", cutoff)
		}
	}

	slog.Debug("telemetry sample stored",
		"temperature", reading.Temperature,
		"state", reading.State,
		"duration", s.now().Sub(start).Round(time.Millisecond),
	)

	return &reading, nil
}
