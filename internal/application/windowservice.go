package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// checkInterval is how often the window state is re-evaluated.
const checkInterval = time.Minute

// WindowStatus is a snapshot of the radio window state.
type WindowStatus struct {
	Enabled     bool          `json:"enabled"`
	Active      bool          `json:"active"`
	LocalHour   int           `json:"local_hour"`
	StartHour   int           `json:"start_hour"`
	EndHour     int           `json:"end_hour"`
	ClockOffset time.Duration `json:"-"`
	LastSync    time.Time     `json:"last_sync,omitzero"`
}

// WindowService keeps the wireless radio enabled only during the configured
// daily local-hour window. Local time is derived from UTC plus a fixed base
// offset, advanced one hour during US daylight saving, and corrected by the
// measured NTP clock offset.
type WindowService struct {
	radio        driven.Radio
	timeSource   driven.TimeSource
	creds        model.NetworkCredentials
	startHour    int
	endHour      int
	utcOffset    int
	syncInterval time.Duration
	now          func() time.Time

	mu          sync.Mutex
	clockOffset time.Duration
	lastSync    time.Time
	active      bool
	applied     bool // whether the radio state has been driven at least once
}

// NewWindowService creates a WindowService. timeSource may be nil to run on
// the local clock alone. Passing a negative start or end hour disables the
// window, leaving the radio always on.
func NewWindowService(
	radio driven.Radio,
	timeSource driven.TimeSource,
	creds model.NetworkCredentials,
	startHour, endHour, utcOffset int,
	syncInterval time.Duration,
) *WindowService {
	return &WindowService{
		radio:        radio,
		timeSource:   timeSource,
		creds:        creds,
		startHour:    startHour,
		endHour:      endHour,
		utcOffset:    utcOffset,
		syncInterval: syncInterval,
		now:          time.Now,
	}
}

// Start drives the radio window until the context is canceled. The clock is
// synced immediately, then once per sync interval; the window is evaluated
// every minute. On shutdown the radio is left in its current state.
func (s *WindowService) Start(ctx context.Context) {
	s.syncClock(ctx)
	s.apply(ctx)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("window service stopped")
			return
		case <-ticker.C:
			if s.timeSource != nil && s.now().Sub(s.lastSyncTime()) >= s.syncInterval {
				s.syncClock(ctx)
			}
			s.apply(ctx)
		}
	}
}

// Status reports the current window state.
func (s *WindowService) Status() WindowStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return WindowStatus{
		Enabled:     s.enabled(),
		Active:      s.active,
		LocalHour:   s.localHourLocked(now),
		StartHour:   s.startHour,
		EndHour:     s.endHour,
		ClockOffset: s.clockOffset,
		LastSync:    s.lastSync,
	}
}

// InWindow reports whether t falls inside the radio window. With the window
// disabled every instant qualifies.
func (s *WindowService) InWindow(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inWindowLocked(t)
}

func (s *WindowService) enabled() bool {
	return s.startHour >= 0 && s.endHour >= 0
}

func (s *WindowService) inWindowLocked(t time.Time) bool {
	if !s.enabled() {
		return true
	}

	hour := s.localHourLocked(t)
	if s.startHour < s.endHour {
		return hour >= s.startHour && hour < s.endHour
	}
	// Wrapped window, e.g. 22..6 spans midnight. An end at or before the
	// start means the window runs through the day boundary.
	return hour >= s.startHour || hour < s.endHour
}

// localHourLocked computes the local hour for t: UTC corrected by the NTP
// offset, shifted by the base UTC offset, plus one during US daylight saving.
func (s *WindowService) localHourLocked(t time.Time) int {
	utc := t.UTC().Add(s.clockOffset)

	offset := s.utcOffset
	if usDaylightSaving(utc) {
		offset++
	}

	return ((utc.Hour()+offset)%24 + 24) % 24
}

// apply evaluates the window and drives the radio when the state changes.
func (s *WindowService) apply(ctx context.Context) {
	s.mu.Lock()
	want := s.inWindowLocked(s.now())
	changed := !s.applied || want != s.active
	s.mu.Unlock()

	if !changed {
		return
	}

	var err error
	if want {
		err = s.radio.Enable(ctx, s.creds)
	} else {
		err = s.radio.Disable(ctx)
	}
	if err != nil {
		slog.Error("radio state change failed", "enable", want, "error", err)
		return
	}

	s.mu.Lock()
	s.active = want
	s.applied = true
	s.mu.Unlock()

	slog.Info("radio window transition", "active", want)

	if want {
		if up, err := s.radio.Connected(ctx); err != nil {
			slog.Warn("link state probe failed", "error", err)
		} else if !up {
			slog.Info("radio enabled, waiting for association")
		}
	}
}

// syncClock measures the NTP clock offset and stores it for hour
// computation. The system clock is never stepped.
func (s *WindowService) syncClock(ctx context.Context) {
	if s.timeSource == nil {
		return
	}

	offset, err := s.timeSource.ClockOffset(ctx)
	if err != nil {
		slog.Warn("clock sync failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clockOffset = offset
	s.lastSync = s.now()
	s.mu.Unlock()

	slog.Debug("clock synced", "offset", offset.Round(time.Millisecond))
}

func (s *WindowService) lastSyncTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// usDaylightSaving reports whether t falls in US daylight saving time:
// from the second Sunday of March through the first Sunday of November.
func usDaylightSaving(t time.Time) bool {
	switch {
	case t.Month() < time.March || t.Month() > time.November:
		return false
	case t.Month() > time.March && t.Month() < time.November:
		return true
	case t.Month() == time.March:
		return t.Day() >= nthSunday(t.Year(), time.March, 2)
	default:
		return t.Day() < nthSunday(t.Year(), time.November, 1)
	}
}

// nthSunday returns the day of the month of the nth Sunday.
func nthSunday(year int, month time.Month, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstSunday := 1 + (7-int(first.Weekday()))%7
	return firstSunday + 7*(n-1)
}
