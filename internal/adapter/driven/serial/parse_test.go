package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewlink/brewlink/internal/domain/model"
)

func TestParseStatus_PrefixedFormat(t *testing.T) {
	resp := model.CommandResponse{
		Completed: true,
		Lines:     []string{">>STATUS,93.5,108.0,42,heating", "<<OK"},
	}

	status := ParseStatus(resp)
	require.NotNil(t, status)

	assert.InDelta(t, 93.5, status.Temperature, 0.001)
	assert.InDelta(t, 108.0, status.Setpoint, 0.001)
	assert.Equal(t, 42, status.DutyCycle)
	assert.Equal(t, model.StateHeating, status.State)
	assert.Equal(t, ">>STATUS,93.5,108.0,42,heating", status.Raw)
}

func TestParseStatus_BareStatusFormat(t *testing.T) {
	resp := model.CommandResponse{
		Completed: true,
		Lines:     []string{"STATUS,99.1,145.0,100,steam", "<<OK"},
	}

	status := ParseStatus(resp)
	require.NotNil(t, status)
	assert.Equal(t, model.StateSteam, status.State)
	assert.Equal(t, 100, status.DutyCycle)
}

func TestParseStatus_CSVFallback(t *testing.T) {
	// No protocol prefix at all: temp,duty,setpoint with the last line
	// being the most recent sample.
	resp := model.CommandResponse{
		Completed: false,
		Lines:     []string{"92.8,40,108.0", "93.1,41,108.0"},
	}

	status := ParseStatus(resp)
	require.NotNil(t, status)

	assert.InDelta(t, 93.1, status.Temperature, 0.001)
	assert.Equal(t, 41, status.DutyCycle)
	assert.InDelta(t, 108.0, status.Setpoint, 0.001)
	assert.Equal(t, model.StateUnknown, status.State)
}

func TestParseStatus_MalformedStatusLineSkipped(t *testing.T) {
	resp := model.CommandResponse{
		Completed: true,
		Lines:     []string{">>STATUS,not-a-number,108.0,42,heating", "<<OK"},
	}

	// The malformed STATUS line is skipped; "<<OK" does not parse as CSV.
	assert.Nil(t, ParseStatus(resp))
}

func TestParseStatus_NoLines(t *testing.T) {
	assert.Nil(t, ParseStatus(model.CommandResponse{}))
}

func TestParseTemperature(t *testing.T) {
	temp, ok := ParseTemperature(model.CommandResponse{
		Completed: true,
		Lines:     []string{">>TEMP,93.7", "<<OK"},
	})
	require.True(t, ok)
	assert.InDelta(t, 93.7, temp, 0.001)

	_, ok = ParseTemperature(model.CommandResponse{Lines: []string{"<<OK"}})
	assert.False(t, ok)

	_, ok = ParseTemperature(model.CommandResponse{Lines: []string{"TEMP,garbage"}})
	assert.False(t, ok)
}
