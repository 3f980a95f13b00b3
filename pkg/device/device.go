package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
)

// Band is one entry of the VFO band plan
type Band struct {
	Name        string
	FrequencyHz int64
}

// Bands is the VFO band plan, cycled by set_band
var Bands = []Band{
	{"GEN", 100_000},
	{"MW", 800_000},
	{"160m", 1_800_000},
	{"80m", 3_650_000},
	{"60m", 4_985_000},
	{"49m", 6_180_000},
	{"40m", 7_200_000},
	{"31m", 10_000_000},
	{"25m", 11_780_000},
	{"22m", 13_630_000},
	{"20m", 14_100_000},
	{"19m", 15_000_000},
	{"16m", 17_655_000},
	{"13m", 21_525_000},
	{"11m", 27_015_000},
	{"10m", 28_400_000},
	{"6m", 50_000_000},
	{"WFM", 100_000_000},
	{"AIR", 130_000_000},
	{"2m", 144_000_000},
	{"1m", 220_000_000},
}

// VFOSteps is the step cycle of set_step on the VFO
var VFOSteps = []int64{1, 10, 1_000, 5_000, 10_000, 1_000_000}

// ADF4351Steps are the only steps the PLL accepts
var ADF4351Steps = []int64{10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000}

// Hardware limits and power-on state
const (
	VFOMinHz        int64 = 10_000
	VFOMaxHz        int64 = 225_000_000
	VFOIFKHz        int64 = 455
	vfoStartBand          = 6
	vfoStartStepIdx       = 3
	vfoStartStepHz  int64 = 1_000

	AD9850MaxHz     int64 = 40_000_000
	ad9850StartHz   int64 = 1_000_000
	ad9850StartStep int64 = 1_000

	ADF4351MinHz     int64 = 35_000_000
	ADF4351MaxHz     int64 = 4_400_000_000
	adf4351StartHz   int64 = 1_000_000_000
	adf4351StartStep int64 = 1_000
	adf4351StartPwr        = 3

	// OLEDAddress is the bus address of the device's own display; scans skip it
	OLEDAddress = 0x3C
	// MaxOscillatorID is the highest position of the 3-bit RF switch
	MaxOscillatorID = 7
)

// Si5351MissingMessage is the error returned for VFO commands when the
// synthesizer did not initialize
const Si5351MissingMessage = "Si5351 no encontrado. No se pueden procesar comandos de VFO."

// VFOData is the datos object of respuesta_vfo
type VFOData struct {
	FrequencyHz int64  `json:"frecuencia_hz"`
	StepHz      int64  `json:"paso_hz"`
	BandName    string `json:"banda_nombre"`
	Mode        string `json:"modo"`
	IFKHz       int64  `json:"if_khz"`
}

// AD9850Data is the datos object of respuesta_ad9850
type AD9850Data struct {
	FrequencyHz int64 `json:"frecuencia_hz"`
	StepHz      int64 `json:"paso_hz"`
	Enabled     bool  `json:"habilitado"`
}

// ADF4351Data is the datos object of respuesta_adf4351. The frequency goes
// out as a string because it may not fit a 32-bit integer.
type ADF4351Data struct {
	FrequencyHz int64 `json:"frecuencia_hz,string"`
	Power       int   `json:"potencia"`
	Enabled     bool  `json:"habilitado"`
	StepHz      int64 `json:"paso_hz"`
}

// Device is an in-memory model of the instrument controller firmware
type Device struct {
	mutex sync.RWMutex

	si5351Present bool
	busDevices    []int

	vfoFreq      int64
	vfoStep      int64
	vfoStepIndex int
	vfoBand      int
	vfoTX        bool

	ddsFreq    int64
	ddsStep    int64
	ddsEnabled bool

	pllFreq    int64
	pllStep    int64
	pllPower   int
	pllEnabled bool

	oscillator int
}

// NewDevice creates a device in its power-on state with the given
// addresses answering on the I2C bus
func NewDevice(busDevices []int) *Device {
	d := &Device{
		si5351Present: true,
		vfoBand:       vfoStartBand,
		vfoFreq:       Bands[vfoStartBand].FrequencyHz,
		vfoStep:       vfoStartStepHz,
		vfoStepIndex:  vfoStartStepIdx,
		ddsFreq:       ad9850StartHz,
		ddsStep:       ad9850StartStep,
		pllFreq:       adf4351StartHz,
		pllStep:       adf4351StartStep,
		pllPower:      adf4351StartPwr,
	}
	d.SetBusDevices(busDevices)
	return d
}

// SetBusDevices replaces the addresses that answer a scan
func (d *Device) SetBusDevices(addrs []int) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.busDevices = append([]int(nil), addrs...)
	sort.Ints(d.busDevices)
}

// SetSi5351Present simulates a missing VFO synthesizer
func (d *Device) SetSi5351Present(present bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.si5351Present = present
}

// Oscillator returns the RF switch position
func (d *Device) Oscillator() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.oscillator
}

// HandleFrame decodes and executes one command frame
func (d *Device) HandleFrame(data []byte) *protocol.Reply {
	cmd, err := protocol.ParseCommand(data)
	if err != nil {
		return protocol.NewErrorReply("", fmt.Sprintf("JSON inválido: %v", err))
	}
	return d.HandleCommand(cmd)
}

// HandleCommand executes a command and returns the reply for the sender
func (d *Device) HandleCommand(cmd *protocol.Command) *protocol.Reply {
	switch cmd.Action {
	case protocol.ActionScanI2C:
		return d.handleScan()

	case protocol.ActionSelectOscillator:
		return d.handleSelectOscillator(cmd)

	case protocol.ActionVFO:
		return d.handleVFO(cmd)

	case protocol.ActionAD9850:
		return d.handleAD9850(cmd)

	case protocol.ActionADF4351:
		return d.handleADF4351(cmd)

	default:
		return protocol.NewErrorReply("", fmt.Sprintf("Acción desconocida: %s", cmd.Action))
	}
}

func (d *Device) handleScan() *protocol.Reply {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	found := make([]int, 0, len(d.busDevices))
	for _, addr := range d.busDevices {
		if addr < 1 || addr > 126 || addr == OLEDAddress {
			continue
		}
		found = append(found, addr)
	}
	logging.Infof("device", "I2C scan found %d devices", len(found))

	reply := protocol.NewReply(protocol.ResponseScan, nil)
	reply.Devices = found
	return reply
}

func (d *Device) handleSelectOscillator(cmd *protocol.Command) *protocol.Reply {
	if cmd.ID == nil || *cmd.ID < 0 || *cmd.ID > MaxOscillatorID {
		return protocol.NewErrorReply(protocol.ResponseOscSelect, "ID de oscilador inválido")
	}

	d.mutex.Lock()
	d.oscillator = *cmd.ID
	d.mutex.Unlock()

	logging.Infof("device", "RF switch set to oscillator %d", *cmd.ID)
	id := *cmd.ID
	reply := protocol.NewReply(protocol.ResponseOscSelect, nil)
	reply.SelectedID = &id
	return reply
}

func (d *Device) handleVFO(cmd *protocol.Command) *protocol.Reply {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.si5351Present {
		return protocol.NewErrorReply("", Si5351MissingMessage)
	}

	switch cmd.SubAction {
	case protocol.SubChangeFreq:
		switch cmd.Direction {
		case protocol.DirectionUp:
			d.vfoFreq += d.vfoStep
			if d.vfoFreq > VFOMaxHz {
				d.vfoFreq = VFOMaxHz
			}
		case protocol.DirectionDown:
			d.vfoFreq -= d.vfoStep
			if d.vfoFreq < VFOMinHz {
				d.vfoFreq = VFOMinHz
			}
		}
	case protocol.SubSetStep:
		d.vfoStepIndex = (d.vfoStepIndex + 1) % len(VFOSteps)
		d.vfoStep = VFOSteps[d.vfoStepIndex]
	case protocol.SubSetBand:
		d.vfoBand = (d.vfoBand + 1) % len(Bands)
		d.vfoFreq = Bands[d.vfoBand].FrequencyHz
	case protocol.SubSetRxTx:
		d.vfoTX = cmd.Mode == "tx"
	}

	return protocol.NewReply(protocol.ResponseVFO, d.vfoDataLocked())
}

func (d *Device) vfoDataLocked() VFOData {
	mode := protocol.ModeRX
	if d.vfoTX {
		mode = protocol.ModeTX
	}
	return VFOData{
		FrequencyHz: d.vfoFreq,
		StepHz:      d.vfoStep,
		BandName:    Bands[d.vfoBand].Name,
		Mode:        mode,
		IFKHz:       VFOIFKHz,
	}
}

// VFOState returns the current VFO snapshot
func (d *Device) VFOState() VFOData {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.vfoDataLocked()
}

func (d *Device) handleAD9850(cmd *protocol.Command) *protocol.Reply {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch cmd.SubAction {
	case protocol.SubSetFreq:
		if cmd.FrequencyHz != nil && *cmd.FrequencyHz >= 0 && *cmd.FrequencyHz <= AD9850MaxHz {
			d.ddsFreq = *cmd.FrequencyHz
		}
	case protocol.SubChangeFreq:
		switch cmd.Direction {
		case protocol.DirectionUp:
			d.ddsFreq += d.ddsStep
			if d.ddsFreq > AD9850MaxHz {
				d.ddsFreq = AD9850MaxHz
			}
		case protocol.DirectionDown:
			d.ddsFreq -= d.ddsStep
			if d.ddsFreq < 0 {
				d.ddsFreq = 0
			}
		}
	case protocol.SubSetStep:
		if cmd.StepHz != nil && *cmd.StepHz > 0 {
			d.ddsStep = *cmd.StepHz
		}
	case protocol.SubEnable:
		d.ddsEnabled = true
	case protocol.SubDisable:
		d.ddsEnabled = false
	}

	return protocol.NewReply(protocol.ResponseAD9850, AD9850Data{
		FrequencyHz: d.ddsFreq,
		StepHz:      d.ddsStep,
		Enabled:     d.ddsEnabled,
	})
}

func (d *Device) handleADF4351(cmd *protocol.Command) *protocol.Reply {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	switch cmd.SubAction {
	case protocol.SubSetFreq:
		if cmd.FrequencyHz != nil && *cmd.FrequencyHz >= ADF4351MinHz && *cmd.FrequencyHz <= ADF4351MaxHz {
			d.pllFreq = *cmd.FrequencyHz
		}
	case protocol.SubSetPower:
		if cmd.Power != nil && *cmd.Power >= 0 && *cmd.Power <= 3 {
			d.pllPower = *cmd.Power
		}
	case protocol.SubEnable:
		d.pllEnabled = true
	case protocol.SubDisable:
		d.pllEnabled = false
	case protocol.SubToggleRF:
		d.pllEnabled = !d.pllEnabled
	case protocol.SubSetStep:
		if cmd.StepHz != nil && validADF4351Step(*cmd.StepHz) {
			d.pllStep = *cmd.StepHz
		}
	case protocol.SubChangeFreq:
		switch cmd.Direction {
		case protocol.DirectionUp:
			if d.pllFreq <= ADF4351MaxHz-d.pllStep {
				d.pllFreq += d.pllStep
			}
		case protocol.DirectionDown:
			if d.pllFreq-d.pllStep >= ADF4351MinHz {
				d.pllFreq -= d.pllStep
			}
		}
	case protocol.SubGetStatus:
	}

	return protocol.NewReply(protocol.ResponseADF4351, ADF4351Data{
		FrequencyHz: d.pllFreq,
		Power:       d.pllPower,
		Enabled:     d.pllEnabled,
		StepHz:      d.pllStep,
	})
}

func validADF4351Step(step int64) bool {
	for _, s := range ADF4351Steps {
		if s == step {
			return true
		}
	}
	return false
}
