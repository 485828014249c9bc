package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewlink/brewlink/internal/domain/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUSDaylightSaving(t *testing.T) {
	cases := []struct {
		name string
		date time.Time
		want bool
	}{
		{"january", time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC), false},
		{"july", time.Date(2026, time.July, 4, 12, 0, 0, 0, time.UTC), true},
		{"december", time.Date(2026, time.December, 25, 12, 0, 0, 0, time.UTC), false},
		// 2026: first March Sunday is the 1st, so DST starts March 8.
		{"day before spring forward", time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC), false},
		{"spring forward", time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC), true},
		{"late march", time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC), true},
		// 2026: first November Sunday is the 1st, so DST ends November 1.
		{"day before fall back", time.Date(2026, time.October, 31, 12, 0, 0, 0, time.UTC), true},
		{"fall back", time.Date(2026, time.November, 1, 12, 0, 0, 0, time.UTC), false},
		// 2025: DST ran March 9 through November 2.
		{"2025 spring forward", time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC), true},
		{"2025 day before fall back", time.Date(2025, time.November, 1, 12, 0, 0, 0, time.UTC), true},
		{"2025 fall back", time.Date(2025, time.November, 2, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usDaylightSaving(tc.date))
		})
	}
}

func TestNthSunday(t *testing.T) {
	assert.Equal(t, 1, nthSunday(2026, time.March, 1))
	assert.Equal(t, 8, nthSunday(2026, time.March, 2))
	assert.Equal(t, 1, nthSunday(2026, time.November, 1))
	assert.Equal(t, 9, nthSunday(2025, time.March, 2))
	assert.Equal(t, 2, nthSunday(2025, time.November, 1))
}

func TestLocalHour_BaseOffset(t *testing.T) {
	svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, 5, 8, -8, time.Hour)

	// Winter: no DST adjustment.
	jan := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, svc.localHourLocked(jan))

	// Summer: one extra hour.
	jul := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, svc.localHourLocked(jul))

	// Negative hours wrap into the previous day.
	early := time.Date(2026, time.January, 10, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, 19, svc.localHourLocked(early))
}

func TestLocalHour_ClockOffsetApplied(t *testing.T) {
	svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, 5, 8, 0, time.Hour)
	svc.clockOffset = 45 * time.Minute

	// 11:30 UTC plus a 45 minute correction crosses into hour 12.
	at := time.Date(2026, time.January, 10, 11, 30, 0, 0, time.UTC)
	assert.Equal(t, 12, svc.localHourLocked(at))
}

func TestInWindow(t *testing.T) {
	// Winter dates with a zero base offset keep UTC hour == local hour.
	at := func(hour int) time.Time {
		return time.Date(2026, time.January, 10, hour, 30, 0, 0, time.UTC)
	}

	t.Run("plain window", func(t *testing.T) {
		svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, 5, 8, 0, time.Hour)
		assert.False(t, svc.InWindow(at(4)))
		assert.True(t, svc.InWindow(at(5)))
		assert.True(t, svc.InWindow(at(7)))
		assert.False(t, svc.InWindow(at(8)))
	})

	t.Run("wrapped window", func(t *testing.T) {
		svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, 22, 6, 0, time.Hour)
		assert.True(t, svc.InWindow(at(23)))
		assert.True(t, svc.InWindow(at(3)))
		assert.False(t, svc.InWindow(at(6)))
		assert.False(t, svc.InWindow(at(12)))
	})

	t.Run("start equals end wraps whole day", func(t *testing.T) {
		svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, 6, 6, 0, time.Hour)
		assert.True(t, svc.InWindow(at(6)))
		assert.True(t, svc.InWindow(at(18)))
	})

	t.Run("disabled window", func(t *testing.T) {
		svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, -1, -1, 0, time.Hour)
		assert.True(t, svc.InWindow(at(3)))
		assert.True(t, svc.InWindow(at(15)))
	})
}

func TestApply_DrivesRadioOnTransitions(t *testing.T) {
	radio := &fakeRadio{}
	creds := model.NetworkCredentials{SSID: "espresso-net", Passphrase: "pw"}
	svc := NewWindowService(radio, nil, creds, 5, 8, 0, time.Hour)

	inside := time.Date(2026, time.January, 10, 6, 0, 0, 0, time.UTC)
	outside := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

	svc.now = fixedClock(inside)
	svc.apply(context.Background())
	svc.apply(context.Background())

	assert.Equal(t, 1, radio.enables, "repeated checks inside the window must not re-enable")
	assert.Equal(t, "espresso-net", radio.lastCreds.SSID)

	svc.now = fixedClock(outside)
	svc.apply(context.Background())

	assert.Equal(t, 1, radio.disables)
	assert.False(t, svc.Status().Active)
}

func TestApply_FirstEvaluationOutsideWindowDisables(t *testing.T) {
	radio := &fakeRadio{}
	svc := NewWindowService(radio, nil, model.NetworkCredentials{SSID: "s"}, 5, 8, 0, time.Hour)
	svc.now = fixedClock(time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC))

	svc.apply(context.Background())

	assert.Equal(t, 1, radio.disables, "radio state must be driven on the first check")
	assert.Equal(t, 0, radio.enables)
}

func TestSyncClock_StoresOffset(t *testing.T) {
	ts := &fakeTimeSource{offset: 300 * time.Millisecond}
	svc := NewWindowService(&fakeRadio{}, ts, model.NetworkCredentials{}, 5, 8, 0, time.Hour)

	svc.syncClock(context.Background())

	require.Equal(t, 1, ts.calls)
	assert.Equal(t, 300*time.Millisecond, svc.Status().ClockOffset)
	assert.False(t, svc.Status().LastSync.IsZero())
}

func TestStatus_Snapshot(t *testing.T) {
	svc := NewWindowService(&fakeRadio{}, nil, model.NetworkCredentials{}, 5, 8, 0, time.Hour)
	svc.now = fixedClock(time.Date(2026, time.January, 10, 6, 0, 0, 0, time.UTC))

	status := svc.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, 6, status.LocalHour)
	assert.Equal(t, 5, status.StartHour)
	assert.Equal(t, 8, status.EndHour)
}
