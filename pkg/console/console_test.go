package console

import (
	"errors"
	"fmt"
	"testing"

	"github.com/agemfal/Instrumento-virtual/pkg/panel"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Controller = (*panel.Session)(nil)

// recorder logs every controller call as a string
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) error {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return nil
}

func (r *recorder) ScanI2C() error                { return r.add("scan") }
func (r *recorder) SelectOscillator(id int) error { return r.add("osc %d", id) }
func (r *recorder) VFOChangeFreq(d protocol.Direction) error {
	return r.add("vfo change %s", d)
}
func (r *recorder) VFOCycleStep() error             { return r.add("vfo step") }
func (r *recorder) VFOCycleBand() error             { return r.add("vfo band") }
func (r *recorder) VFOSetMode(mode string) error    { return r.add("vfo mode %s", mode) }
func (r *recorder) AD9850SetFrequency(hz int64) error { return r.add("ad9850 freq %d", hz) }
func (r *recorder) AD9850Enable() error             { return r.add("ad9850 enable") }
func (r *recorder) AD9850Disable() error            { return r.add("ad9850 disable") }
func (r *recorder) AD9850ChangeFreq(d protocol.Direction) error {
	return r.add("ad9850 change %s", d)
}
func (r *recorder) AD9850CycleStep() error             { return r.add("ad9850 step") }
func (r *recorder) ADF4351SetFrequency(hz int64) error { return r.add("adf4351 freq %d", hz) }
func (r *recorder) ADF4351Enable() error               { return r.add("adf4351 enable") }
func (r *recorder) ADF4351Disable() error              { return r.add("adf4351 disable") }
func (r *recorder) ADF4351SetPower(level int) error    { return r.add("adf4351 power %d", level) }
func (r *recorder) ADF4351ChangeFreq(d protocol.Direction) error {
	return r.add("adf4351 change %s", d)
}
func (r *recorder) ADF4351CycleStep() error { return r.add("adf4351 step") }
func (r *recorder) ADF4351ToggleRF() error  { return r.add("adf4351 rf") }

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"1000", 1000},
		{"455k", 455_000},
		{"7.1m", 7_100_000},
		{"2.4g", 2_400_000_000},
		{"14.25MHz", 14_250_000},
		{" 10 k ", 10_000},
	}
	for _, tt := range tests {
		got, err := ParseFrequency(tt.input)
		if err != nil {
			t.Errorf("ParseFrequency(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseFrequency(%q): expected %d, got %d", tt.input, tt.expected, got)
		}
	}

	if _, err := ParseFrequency("abc"); err == nil {
		t.Error("Expected error for non-numeric input")
	}
}

func TestConsoleVFO(t *testing.T) {
	c := New()
	ctl := &recorder{}

	for _, line := range []string{"+", "-", "s", "b", "e", "on", "off", "osc 3"} {
		_, err := c.Execute(ctl, line)
		require.NoError(t, err, line)
	}

	assert.Equal(t, []string{
		"vfo change up",
		"vfo change down",
		"vfo step",
		"vfo band",
		"scan",
		"vfo mode tx",
		"vfo mode rx",
		"osc 3",
	}, ctl.calls)

	_, err := c.Execute(ctl, "7.1m")
	assert.True(t, errors.Is(err, ErrUnsupported), "VFO rejects direct frequency entry")
	_, err = c.Execute(ctl, "p")
	assert.True(t, errors.Is(err, ErrUnsupported))
	_, err = c.Execute(ctl, "rf")
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Len(t, ctl.calls, 8)
}

func TestConsoleGenerators(t *testing.T) {
	c := New()
	ctl := &recorder{}

	msg, err := c.Execute(ctl, "use ad9850")
	require.NoError(t, err)
	assert.Equal(t, "Activo: Gen AD9850", msg)
	assert.Equal(t, AD9850, c.Instrument())

	msg, err = c.Execute(ctl, "10M")
	require.NoError(t, err)
	assert.Equal(t, "Set: 10.000 MHz", msg)

	_, err = c.Execute(ctl, "b")
	assert.True(t, errors.Is(err, ErrUnsupported))

	for _, line := range []string{"+", "s", "on", "off"} {
		_, err := c.Execute(ctl, line)
		require.NoError(t, err)
	}

	_, err = c.Execute(ctl, "USE ADF4351")
	require.NoError(t, err)

	_, err = c.Execute(ctl, "20m")
	assert.True(t, errors.Is(err, ErrUnsupported), "ADF4351 minimum is 35 MHz")

	for _, line := range []string{"2.4g", "-", "s", "p", "p", "rf", "on"} {
		_, err := c.Execute(ctl, line)
		require.NoError(t, err, line)
	}

	assert.Equal(t, []string{
		"ad9850 freq 10000000",
		"ad9850 change up",
		"ad9850 step",
		"ad9850 enable",
		"ad9850 disable",
		"adf4351 freq 2400000000",
		"adf4351 change down",
		"adf4351 step",
		"adf4351 power 0",
		"adf4351 power 1",
		"adf4351 rf",
		"adf4351 enable",
	}, ctl.calls)
}

func TestConsoleErrors(t *testing.T) {
	c := New()
	c.Parse("use adf4351")

	for _, line := range []string{"", "xyz", "osc", "osc 9", "use mixer", "0"} {
		if _, err := c.Parse(line); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("Parse(%q): expected ErrUnknownCommand, got %v", line, err)
		}
	}
}

func TestPowerMessage(t *testing.T) {
	c := New()
	c.Parse("use adf4351")

	action, err := c.Parse("p")
	require.NoError(t, err)
	assert.Equal(t, 0, action.PowerLevel)
	assert.Equal(t, "Potencia: -4 dBm", action.Message)

	c.Parse("p")
	action, _ = c.Parse("p")
	assert.Equal(t, "Potencia: +2 dBm", action.Message)
}
