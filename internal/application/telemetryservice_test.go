package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewlink/brewlink/internal/domain/model"
)

func testStatus() *model.ControllerStatus {
	return &model.ControllerStatus{
		Temperature: 93.5,
		Setpoint:    108.0,
		DutyCycle:   42,
		State:       model.StateHeating,
		Raw:         ">>STATUS,93.5,108.0,42,heating",
	}
}

func TestSample_StoresAndPublishes(t *testing.T) {
	link := &fakeLink{status: testStatus()}
	store := &fakeReadingStore{}
	pub := &fakePublisher{}

	svc := NewTelemetryService(link, store, pub, time.Minute, 72*time.Hour)
	at := time.Date(2026, time.August, 20, 7, 0, 0, 0, time.UTC)
	svc.now = fixedClock(at)

	reading, err := svc.sample(context.Background())
	require.NoError(t, err)

	require.NotNil(t, reading)
	assert.InDelta(t, 93.5, reading.Temperature, 0.001)
	assert.Equal(t, model.StateHeating, reading.State)
	assert.Equal(t, at, reading.TakenAt)

	require.Len(t, store.stored(), 1)
	require.Len(t, pub.published, 1)
	assert.Equal(t, at.Add(-72*time.Hour), store.pruneCut)
}

func TestSample_LinkFailure(t *testing.T) {
	link := &fakeLink{statusErr: errors.New("port gone")}
	store := &fakeReadingStore{}

	svc := NewTelemetryService(link, store, nil, time.Minute, time.Hour)

	_, err := svc.sample(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.stored())
}

func TestSample_PublishFailureIsNotFatal(t *testing.T) {
	link := &fakeLink{status: testStatus()}
	store := &fakeReadingStore{}
	pub := &fakePublisher{publishErr: errors.New("broker down")}

	svc := NewTelemetryService(link, store, pub, time.Minute, time.Hour)

	_, err := svc.sample(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.stored(), 1)
}

func TestSample_NilPublisher(t *testing.T) {
	link := &fakeLink{status: testStatus()}
	store := &fakeReadingStore{}

	svc := NewTelemetryService(link, store, nil, time.Minute, time.Hour)

	_, err := svc.sample(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.stored(), 1)
}

func TestRefresh_RunsThroughTheLoop(t *testing.T) {
	link := &fakeLink{status: testStatus()}
	store := &fakeReadingStore{}

	svc := NewTelemetryService(link, store, nil, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Start(ctx)

	refreshCtx, refreshCancel := context.WithTimeout(ctx, 5*time.Second)
	defer refreshCancel()

	reading, err := svc.Refresh(refreshCtx)
	require.NoError(t, err)
	assert.NotNil(t, reading)

	// One reading from the startup sample plus one from the refresh.
	assert.Len(t, store.stored(), 2)
}

func TestRefresh_ContextCanceled(t *testing.T) {
	svc := NewTelemetryService(&fakeLink{}, &fakeReadingStore{}, nil, time.Hour, time.Hour)

	// No Start loop is running, so the request can never be delivered.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
