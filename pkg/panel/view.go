package panel

import (
	"fmt"
	"time"

	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
)

// Connection indicator texts
const (
	StatusConnected    = "Conectado"
	StatusDisconnected = "Desconectado"
	ClassConnected     = "status-connected"
	ClassDisconnected  = "status-disconnected"
	ButtonConnect      = "Conectar"
	ButtonDisconnect   = "Desconectar"
)

// Enabled indicator texts of the DDS and PLL panels
const (
	StatusEnabled  = "Habilitado"
	StatusDisabled = "Deshabilitado"
	ClassEnabled   = "status-on"
	ClassDisabled  = "status-off"
)

// NoDevicesText is shown when an I2C scan finds nothing
const NoDevicesText = "No se detectaron dispositivos"

// ConnectionView is the connection indicator and its toggle button
type ConnectionView struct {
	Connected   bool   `json:"connected"`
	Status      string `json:"status"`
	StatusClass string `json:"status_class"`
	ButtonLabel string `json:"button_label"`
	URL         string `json:"url,omitempty"`
}

// VFOView holds the VFO display elements
type VFOView struct {
	Frequency string `json:"frequency"`
	Step      string `json:"step"`
	Band      string `json:"band"`
	Mode      string `json:"mode"`
	RxTxLabel string `json:"rxtx_label"`
	IF        string `json:"if,omitempty"`
}

// GeneratorView holds the display elements shared by the DDS and PLL
// panels. Power and PowerSelect are only filled for the ADF4351.
type GeneratorView struct {
	Frequency   string `json:"frequency"`
	Status      string `json:"status"`
	StatusClass string `json:"status_class"`
	Step        string `json:"step"`
	Power       string `json:"power,omitempty"`
	PowerSelect string `json:"power_select,omitempty"`
}

// DeviceEntry is one line of the I2C scan list
type DeviceEntry struct {
	Address int    `json:"address"`
	Hex     string `json:"hex"`
	Text    string `json:"text"`
}

// ScanView is the rendered I2C scan list
type ScanView struct {
	Devices []DeviceEntry `json:"devices"`
	Message string        `json:"message,omitempty"`
}

// CarouselView is the visible module of an instrument group
type CarouselView struct {
	Index int    `json:"index"`
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// View is a snapshot of every display element of the panel
type View struct {
	Connection  ConnectionView `json:"connection"`
	VFO         VFOView        `json:"vfo"`
	AD9850      GeneratorView  `json:"ad9850"`
	ADF4351     GeneratorView  `json:"adf4351"`
	Scan        ScanView       `json:"scan"`
	Generators  CarouselView   `json:"generators"`
	Oscillators CarouselView   `json:"oscillators"`
}

func initialView() View {
	return View{
		Connection: disconnectedView(),
		VFO: VFOView{
			Frequency: Placeholder,
			Step:      Placeholder,
			Band:      Placeholder,
			Mode:      Placeholder,
			RxTxLabel: RxTxLabel(protocol.ModeRX),
		},
		AD9850: GeneratorView{
			Frequency:   Placeholder,
			Status:      StatusDisabled,
			StatusClass: ClassDisabled,
			Step:        FormatStep(DDSSteps[DDSStartIndex]),
		},
		ADF4351: GeneratorView{
			Frequency:   Placeholder,
			Status:      StatusDisabled,
			StatusClass: ClassDisabled,
			Step:        FormatStep(PLLSteps[PLLStartIndex]),
			Power:       Placeholder,
		},
	}
}

func connectedView(url string) ConnectionView {
	return ConnectionView{
		Connected:   true,
		Status:      StatusConnected,
		StatusClass: ClassConnected,
		ButtonLabel: ButtonDisconnect,
		URL:         url,
	}
}

func disconnectedView() ConnectionView {
	return ConnectionView{
		Status:      StatusDisconnected,
		StatusClass: ClassDisconnected,
		ButtonLabel: ButtonConnect,
	}
}

func enabledStatus(enabled bool) (string, string) {
	if enabled {
		return StatusEnabled, ClassEnabled
	}
	return StatusDisabled, ClassDisabled
}

func scanView(addrs []int) ScanView {
	if len(addrs) == 0 {
		return ScanView{Message: NoDevicesText}
	}
	entries := make([]DeviceEntry, 0, len(addrs))
	for _, addr := range addrs {
		hex := FormatAddress(addr)
		entries = append(entries, DeviceEntry{
			Address: addr,
			Hex:     hex,
			Text:    fmt.Sprintf("%s (Decimal: %d)", hex, addr),
		})
	}
	return ScanView{Devices: entries}
}

// LogLevel classifies panel log lines
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one line of the panel log
type LogEntry struct {
	Time  time.Time `json:"time"`
	Level LogLevel  `json:"level"`
	Text  string    `json:"text"`
}

// String renders the entry the way the panel shows it
func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Text)
}

// eventLog is the append-only panel log. When limit is positive only the
// newest limit entries are kept in memory.
type eventLog struct {
	entries []LogEntry
	limit   int
}

func (l *eventLog) append(entry LogEntry) {
	l.entries = append(l.entries, entry)
	if l.limit > 0 && len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		l.entries = append(l.entries[:0:0], l.entries[drop:]...)
	}
}

// tail returns a copy of the newest n entries, or all of them when n <= 0
func (l *eventLog) tail(n int) []LogEntry {
	start := 0
	if n > 0 && n < len(l.entries) {
		start = len(l.entries) - n
	}
	return append([]LogEntry(nil), l.entries[start:]...)
}
