package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command actions sent to the device
const (
	ActionScanI2C          = "escanear_i2c"
	ActionSelectOscillator = "select_oscillator"
	ActionVFO              = "vfo_command"
	ActionAD9850           = "ad9850_command"
	ActionADF4351          = "adf4351_command"
)

// Response actions sent by the device
const (
	ResponseScan      = "respuesta_escaner"
	ResponseVFO       = "respuesta_vfo"
	ResponseAD9850    = "respuesta_ad9850"
	ResponseADF4351   = "respuesta_adf4351"
	ResponseOscSelect = "respuesta_osc_select"
)

// Sub-actions refining the per-instrument commands
const (
	SubChangeFreq = "change_freq"
	SubSetStep    = "set_step"
	SubSetBand    = "set_band"
	SubSetRxTx    = "set_rxtx"
	SubSetFreq    = "set_freq"
	SubEnable     = "enable"
	SubDisable    = "disable"
	SubSetPower   = "set_power"
	SubToggleRF   = "toggle_rf"
	SubGetStatus  = "get_status"
)

// Envelope status values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// VFO modes. The device reports them upper case and accepts them lower case.
const (
	ModeRX = "RX"
	ModeTX = "TX"
)

// Direction of a change_freq command
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Command is an outbound command envelope. Payload fields are pointers so
// that zero values (id 0, 0 Hz, power level 0) still reach the wire.
type Command struct {
	Action      string    `json:"accion"`
	SubAction   string    `json:"sub_accion,omitempty"`
	ID          *int      `json:"id,omitempty"`
	Direction   Direction `json:"direccion,omitempty"`
	Mode        string    `json:"modo,omitempty"`
	FrequencyHz *int64    `json:"frecuencia_hz,omitempty"`
	StepHz      *int64    `json:"paso_hz,omitempty"`
	Power       *int      `json:"potencia,omitempty"`
}

// Marshal serializes the command to its wire form
func (c *Command) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// String returns the JSON form of the command
func (c *Command) String() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// ParseCommand decodes a command frame received by a device
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if cmd.Action == "" {
		return nil, errors.New("command has no accion")
	}
	return &cmd, nil
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

// ScanI2C asks the device to scan its I2C bus
func ScanI2C() *Command {
	return &Command{Action: ActionScanI2C}
}

// SelectOscillator routes the RF switch to the given oscillator
func SelectOscillator(id int) *Command {
	return &Command{Action: ActionSelectOscillator, ID: intPtr(id)}
}

// VFOChangeFreq moves the VFO by its current step
func VFOChangeFreq(dir Direction) *Command {
	return &Command{Action: ActionVFO, SubAction: SubChangeFreq, Direction: dir}
}

// VFOSetStep asks the device to cycle the VFO step
func VFOSetStep() *Command {
	return &Command{Action: ActionVFO, SubAction: SubSetStep}
}

// VFOSetBand asks the device to cycle the VFO band
func VFOSetBand() *Command {
	return &Command{Action: ActionVFO, SubAction: SubSetBand}
}

// VFOSetRxTx switches the VFO between receive and transmit. The mode is
// sent lower case ("rx" or "tx").
func VFOSetRxTx(mode string) *Command {
	m := "rx"
	if mode == ModeTX || mode == "tx" {
		m = "tx"
	}
	return &Command{Action: ActionVFO, SubAction: SubSetRxTx, Mode: m}
}

// AD9850SetFreq builds a DDS set_freq command after validating the range
func AD9850SetFreq(hz int64) (*Command, error) {
	if err := ValidateDDSFrequency(hz); err != nil {
		return nil, err
	}
	return &Command{Action: ActionAD9850, SubAction: SubSetFreq, FrequencyHz: int64Ptr(hz)}, nil
}

// AD9850Enable turns the DDS output on
func AD9850Enable() *Command {
	return &Command{Action: ActionAD9850, SubAction: SubEnable}
}

// AD9850Disable turns the DDS output off
func AD9850Disable() *Command {
	return &Command{Action: ActionAD9850, SubAction: SubDisable}
}

// AD9850ChangeFreq moves the DDS by its current step
func AD9850ChangeFreq(dir Direction) *Command {
	return &Command{Action: ActionAD9850, SubAction: SubChangeFreq, Direction: dir}
}

// AD9850SetStep sets the DDS step to an explicit value
func AD9850SetStep(stepHz int64) *Command {
	return &Command{Action: ActionAD9850, SubAction: SubSetStep, StepHz: int64Ptr(stepHz)}
}

// ADF4351SetFreq builds a PLL set_freq command after validating the range
func ADF4351SetFreq(hz int64) (*Command, error) {
	if err := ValidatePLLFrequency(hz); err != nil {
		return nil, err
	}
	return &Command{Action: ActionADF4351, SubAction: SubSetFreq, FrequencyHz: int64Ptr(hz)}, nil
}

// ADF4351Enable turns the PLL RF output on
func ADF4351Enable() *Command {
	return &Command{Action: ActionADF4351, SubAction: SubEnable}
}

// ADF4351Disable turns the PLL RF output off
func ADF4351Disable() *Command {
	return &Command{Action: ActionADF4351, SubAction: SubDisable}
}

// ADF4351SetPower selects one of the four output power levels
func ADF4351SetPower(level int) (*Command, error) {
	if err := ValidatePowerLevel(level); err != nil {
		return nil, err
	}
	return &Command{Action: ActionADF4351, SubAction: SubSetPower, Power: intPtr(level)}, nil
}

// ADF4351ChangeFreq moves the PLL by its current step
func ADF4351ChangeFreq(dir Direction) *Command {
	return &Command{Action: ActionADF4351, SubAction: SubChangeFreq, Direction: dir}
}

// ADF4351SetStep sets the PLL step to an explicit value
func ADF4351SetStep(stepHz int64) *Command {
	return &Command{Action: ActionADF4351, SubAction: SubSetStep, StepHz: int64Ptr(stepHz)}
}

// ADF4351ToggleRF flips the PLL RF output
func ADF4351ToggleRF() *Command {
	return &Command{Action: ActionADF4351, SubAction: SubToggleRF}
}
