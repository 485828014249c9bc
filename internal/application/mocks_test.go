package application

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// fakeLink is a scripted ControllerLink.
type fakeLink struct {
	mu          sync.Mutex
	status      *model.ControllerStatus
	statusErr   error
	resp        model.CommandResponse
	exchangeErr error
	commands    []string
}

func (f *fakeLink) Exchange(_ context.Context, command string) (model.CommandResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	return f.resp, f.exchangeErr
}

func (f *fakeLink) Status(context.Context) (*model.ControllerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeLink) Close() error { return nil }

func (f *fakeLink) sentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// fakeReadingStore records inserts and prune calls in memory.
type fakeReadingStore struct {
	mu        sync.Mutex
	readings  []model.Reading
	pruneCut  time.Time
	insertErr error
}

func (f *fakeReadingStore) Insert(_ context.Context, reading model.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.readings = append(f.readings, reading)
	return nil
}

func (f *fakeReadingStore) Recent(_ context.Context, limit int) ([]model.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.readings) {
		limit = len(f.readings)
	}
	out := make([]model.Reading, 0, limit)
	for i := len(f.readings) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.readings[i])
	}
	return out, nil
}

func (f *fakeReadingStore) Latest(context.Context) (*model.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readings) == 0 {
		return nil, nil
	}
	r := f.readings[len(f.readings)-1]
	return &r, nil
}

func (f *fakeReadingStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneCut = cutoff
	return 0, nil
}

func (f *fakeReadingStore) stored() []model.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Reading(nil), f.readings...)
}

// fakePublisher records published readings.
type fakePublisher struct {
	mu         sync.Mutex
	published  []model.Reading
	publishErr error
}

func (f *fakePublisher) Publish(_ context.Context, reading model.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, reading)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// fakeRadio counts enable and disable transitions.
type fakeRadio struct {
	mu        sync.Mutex
	enables   int
	disables  int
	lastCreds model.NetworkCredentials
	up        bool
	err       error
}

func (f *fakeRadio) Enable(_ context.Context, creds model.NetworkCredentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.enables++
	f.lastCreds = creds
	f.up = true
	return nil
}

func (f *fakeRadio) Disable(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.disables++
	f.up = false
	return nil
}

func (f *fakeRadio) Connected(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up, nil
}

// fakeTimeSource reports a fixed clock offset.
type fakeTimeSource struct {
	offset time.Duration
	err    error
	calls  int
}

func (f *fakeTimeSource) ClockOffset(context.Context) (time.Duration, error) {
	f.calls++
	return f.offset, f.err
}

// fakeFirmwareSource serves one scripted release and its asset bytes.
type fakeFirmwareSource struct {
	release     *model.FirmwareRelease
	releaseErr  error
	assets      map[int64][]byte
	downloadErr error
}

func (f *fakeFirmwareSource) LatestRelease(context.Context) (*model.FirmwareRelease, error) {
	if f.releaseErr != nil {
		return nil, f.releaseErr
	}
	release := *f.release
	return &release, nil
}

func (f *fakeFirmwareSource) DownloadAsset(_ context.Context, assetID int64) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return io.NopCloser(bytes.NewReader(f.assets[assetID])), nil
}

// fakeSettingStore is an in-memory SettingStore.
type fakeSettingStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakeSettingStore() *fakeSettingStore {
	return &fakeSettingStore{m: make(map[string]string)}
}

func (f *fakeSettingStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[key], nil
}

func (f *fakeSettingStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = value
	return nil
}
