package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agemfal/Instrumento-virtual/pkg/panel"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
)

// Instrument selects which module the shortcuts act on
type Instrument string

const (
	VFO     Instrument = "vfo"
	AD9850  Instrument = "ad9850"
	ADF4351 Instrument = "adf4351"
)

// Name returns the caption shown when the instrument is selected
func (i Instrument) Name() string {
	switch i {
	case VFO:
		return "VFO Si5351"
	case AD9850:
		return "Gen AD9850"
	case ADF4351:
		return "Synth ADF4351"
	default:
		return "Desconocido"
	}
}

// ParseInstrument accepts vfo, ad9850 or adf4351 (case-insensitive)
func ParseInstrument(s string) (Instrument, error) {
	switch Instrument(strings.ToLower(strings.TrimSpace(s))) {
	case VFO:
		return VFO, nil
	case AD9850:
		return AD9850, nil
	case ADF4351:
		return ADF4351, nil
	default:
		return "", fmt.Errorf("unknown instrument %q", s)
	}
}

var (
	// ErrUnknownCommand is returned for input that is not a shortcut
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnsupported is returned for a shortcut the selected instrument lacks
	ErrUnsupported = errors.New("not supported by instrument")
)

// Controller is the part of a panel session the console drives
type Controller interface {
	ScanI2C() error
	SelectOscillator(id int) error
	VFOChangeFreq(dir protocol.Direction) error
	VFOCycleStep() error
	VFOCycleBand() error
	VFOSetMode(mode string) error
	AD9850SetFrequency(hz int64) error
	AD9850Enable() error
	AD9850Disable() error
	AD9850ChangeFreq(dir protocol.Direction) error
	AD9850CycleStep() error
	ADF4351SetFrequency(hz int64) error
	ADF4351Enable() error
	ADF4351Disable() error
	ADF4351SetPower(level int) error
	ADF4351ChangeFreq(dir protocol.Direction) error
	ADF4351CycleStep() error
	ADF4351ToggleRF() error
}

// Kind identifies a parsed shortcut
type Kind int

const (
	KindChangeFreq Kind = iota
	KindCycleStep
	KindCycleBand
	KindScan
	KindCyclePower
	KindEnable
	KindToggleRF
	KindSelectOscillator
	KindUse
	KindSetFrequency
)

// Action is one parsed shortcut bound to an instrument
type Action struct {
	Kind         Kind
	Instrument   Instrument
	Direction    protocol.Direction
	Enable       bool
	OscillatorID int
	FrequencyHz  int64
	PowerLevel   int
	Message      string
}

// Console parses shortcut lines for the selected instrument. It keeps the
// selection and the power cycle position between lines.
type Console struct {
	instrument Instrument
	powerIndex int
}

// New creates a console with the VFO selected
func New() *Console {
	return &Console{instrument: VFO, powerIndex: protocol.PLLMaxPowerLevel}
}

// Instrument returns the selected instrument
func (c *Console) Instrument() Instrument {
	return c.instrument
}

// Parse turns one input line into an Action. Selecting an instrument with
// "use" takes effect immediately.
func (c *Console) Parse(line string) (*Action, error) {
	input := strings.ToLower(strings.TrimSpace(line))
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrUnknownCommand)
	}

	action := &Action{Instrument: c.instrument}

	fields := strings.Fields(input)
	switch fields[0] {
	case "+":
		action.Kind = KindChangeFreq
		action.Direction = protocol.DirectionUp
		action.Message = "Subir Frecuencia"
		return action, nil

	case "-":
		action.Kind = KindChangeFreq
		action.Direction = protocol.DirectionDown
		action.Message = "Bajar Frecuencia"
		return action, nil

	case "e":
		action.Kind = KindScan
		action.Message = "Escaneando I2C..."
		return action, nil

	case "b":
		if c.instrument != VFO {
			return nil, fmt.Errorf("%w: 'b' solo para VFO", ErrUnsupported)
		}
		action.Kind = KindCycleBand
		action.Message = "Ciclar Banda VFO"
		return action, nil

	case "s":
		action.Kind = KindCycleStep
		if c.instrument == VFO {
			action.Message = "VFO: Ciclar Paso"
		} else {
			action.Message = "Ciclar Paso"
		}
		return action, nil

	case "p":
		if c.instrument != ADF4351 {
			return nil, fmt.Errorf("%w: 'p' solo para ADF4351", ErrUnsupported)
		}
		c.powerIndex = (c.powerIndex + 1) % (protocol.PLLMaxPowerLevel + 1)
		action.Kind = KindCyclePower
		action.PowerLevel = c.powerIndex
		action.Message = "Potencia: " + panel.PowerLabel(protocol.PowerLevel{Level: c.powerIndex, Known: true})
		return action, nil

	case "on", "off":
		action.Kind = KindEnable
		action.Enable = fields[0] == "on"
		switch {
		case c.instrument == VFO && action.Enable:
			action.Message = "VFO: TX (Transmision)"
		case c.instrument == VFO:
			action.Message = "VFO: RX (Recepcion)"
		case action.Enable:
			action.Message = "Salida: HABILITADA"
		default:
			action.Message = "Salida: APAGADA"
		}
		return action, nil

	case "rf":
		if c.instrument != ADF4351 {
			return nil, fmt.Errorf("%w: 'rf' solo para ADF4351", ErrUnsupported)
		}
		action.Kind = KindToggleRF
		action.Message = "Conmutar salida RF"
		return action, nil

	case "osc":
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: uso: osc <id>", ErrUnknownCommand)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil || id < 0 || id > 7 {
			return nil, fmt.Errorf("%w: oscilador inválido %q", ErrUnknownCommand, fields[1])
		}
		action.Kind = KindSelectOscillator
		action.OscillatorID = id
		action.Message = fmt.Sprintf("Oscilador HW: %d", id)
		return action, nil

	case "use":
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: uso: use vfo|ad9850|adf4351", ErrUnknownCommand)
		}
		inst, err := ParseInstrument(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownCommand, err)
		}
		c.instrument = inst
		action.Kind = KindUse
		action.Instrument = inst
		action.Message = "Activo: " + inst.Name()
		return action, nil
	}

	return c.parseFrequency(input, action)
}

// parseFrequency handles a number with an optional k, m or g suffix
func (c *Console) parseFrequency(input string, action *Action) (*Action, error) {
	if c.instrument == VFO {
		return nil, fmt.Errorf("%w: VFO no admite Freq directa", ErrUnsupported)
	}

	hz, err := ParseFrequency(input)
	if err != nil || hz <= 0 {
		return nil, fmt.Errorf("%w: CMD desconocido: %s", ErrUnknownCommand, input)
	}
	if c.instrument == ADF4351 && hz < protocol.PLLMinFrequencyHz {
		return nil, fmt.Errorf("%w: Min ADF4351 es 35MHz", ErrUnsupported)
	}

	action.Kind = KindSetFrequency
	action.FrequencyHz = hz
	action.Message = "Set: " + panel.FormatFrequency(hz)
	return action, nil
}

// ParseFrequency reads "7.1m", "455k", "2.4g" or a plain number of Hz.
// A trailing "hz" is accepted.
func ParseFrequency(s string) (int64, error) {
	text := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "hz")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "g"):
		multiplier = 1e9
	case strings.HasSuffix(text, "m"):
		multiplier = 1e6
	case strings.HasSuffix(text, "k"):
		multiplier = 1e3
	}
	if multiplier != 1.0 {
		text = text[:len(text)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	return int64(value*multiplier + 0.5), nil
}

// Apply runs the action against a controller
func (a *Action) Apply(ctl Controller) error {
	switch a.Kind {
	case KindScan:
		return ctl.ScanI2C()

	case KindSelectOscillator:
		return ctl.SelectOscillator(a.OscillatorID)

	case KindUse:
		return nil

	case KindChangeFreq:
		switch a.Instrument {
		case VFO:
			return ctl.VFOChangeFreq(a.Direction)
		case AD9850:
			return ctl.AD9850ChangeFreq(a.Direction)
		default:
			return ctl.ADF4351ChangeFreq(a.Direction)
		}

	case KindCycleStep:
		switch a.Instrument {
		case VFO:
			return ctl.VFOCycleStep()
		case AD9850:
			return ctl.AD9850CycleStep()
		default:
			return ctl.ADF4351CycleStep()
		}

	case KindCycleBand:
		return ctl.VFOCycleBand()

	case KindCyclePower:
		return ctl.ADF4351SetPower(a.PowerLevel)

	case KindToggleRF:
		return ctl.ADF4351ToggleRF()

	case KindEnable:
		switch {
		case a.Instrument == VFO && a.Enable:
			return ctl.VFOSetMode("tx")
		case a.Instrument == VFO:
			return ctl.VFOSetMode("rx")
		case a.Instrument == AD9850 && a.Enable:
			return ctl.AD9850Enable()
		case a.Instrument == AD9850:
			return ctl.AD9850Disable()
		case a.Enable:
			return ctl.ADF4351Enable()
		default:
			return ctl.ADF4351Disable()
		}

	case KindSetFrequency:
		if a.Instrument == AD9850 {
			return ctl.AD9850SetFrequency(a.FrequencyHz)
		}
		return ctl.ADF4351SetFrequency(a.FrequencyHz)

	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownCommand, a.Kind)
	}
}

// Execute parses a line and applies it, returning the feedback message
func (c *Console) Execute(ctl Controller, line string) (string, error) {
	action, err := c.Parse(line)
	if err != nil {
		return "", err
	}
	if err := action.Apply(ctl); err != nil {
		return action.Message, err
	}
	return action.Message, nil
}
