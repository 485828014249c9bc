package serial

import (
	"strconv"
	"strings"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// ParseStatus extracts a controller status from a command response.
//
// Two formats are recognized, in order:
//
//	STATUS,<temp>,<setpoint>,<duty>,<state>   (optionally prefixed ">>")
//	<temp>,<duty>,<setpoint>                  (bare CSV, newest line wins)
//
// Returns nil when no line parses.
func ParseStatus(resp model.CommandResponse) *model.ControllerStatus {
	for _, line := range resp.Lines {
		if !strings.HasPrefix(line, ">>STATUS") && !strings.HasPrefix(line, "STATUS") {
			continue
		}

		parts := strings.Split(strings.TrimPrefix(line, ">>"), ",")
		if len(parts) < 5 {
			continue
		}

		temp, err1 := strconv.ParseFloat(parts[1], 64)
		setpoint, err2 := strconv.ParseFloat(parts[2], 64)
		duty, err3 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		return &model.ControllerStatus{
			Temperature: temp,
			Setpoint:    setpoint,
			DutyCycle:   duty,
			State:       model.MachineState(strings.TrimSpace(parts[4])),
			Raw:         line,
		}
	}

	// Bare CSV fallback: temp,duty,setpoint with no prefix. The last line
	// is the most recent sample.
	if len(resp.Lines) == 0 {
		return nil
	}
	line := resp.Lines[len(resp.Lines)-1]
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return nil
	}

	temp, err1 := strconv.ParseFloat(parts[0], 64)
	duty, err2 := strconv.Atoi(parts[1])
	setpoint, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}

	return &model.ControllerStatus{
		Temperature: temp,
		Setpoint:    setpoint,
		DutyCycle:   duty,
		State:       model.StateUnknown,
		Raw:         line,
	}
}

// ParseTemperature extracts a "TEMP,<value>" reading from a command
// response. The second return is false when no TEMP line parses.
func ParseTemperature(resp model.CommandResponse) (float64, bool) {
	for _, line := range resp.Lines {
		line = strings.TrimPrefix(line, ">>")
		if !strings.HasPrefix(line, "TEMP,") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return 0, false
		}
		temp, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, false
		}
		return temp, true
	}
	return 0, false
}
