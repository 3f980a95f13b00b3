package panel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
)

// Placeholder shown for a value the device has not reported
const Placeholder = "--"

// FormatFrequency picks the largest unit (GHz, MHz, kHz, Hz) the value
// reaches. Zero renders as the placeholder.
func FormatFrequency(hz int64) string {
	switch {
	case hz == 0:
		return Placeholder
	case hz >= 1_000_000_000:
		return fmt.Sprintf("%.4f GHz", float64(hz)/1e9)
	case hz >= 1_000_000:
		return fmt.Sprintf("%.3f MHz", float64(hz)/1e6)
	case hz >= 1_000:
		return fmt.Sprintf("%.2f kHz", float64(hz)/1e3)
	default:
		return fmt.Sprintf("%d Hz", hz)
	}
}

// FormatStep renders a step size without decimals
func FormatStep(hz int64) string {
	switch {
	case hz == 0:
		return Placeholder
	case hz >= 1_000_000:
		return fmt.Sprintf("%.0f MHz", float64(hz)/1e6)
	case hz >= 1_000:
		return fmt.Sprintf("%.0f kHz", float64(hz)/1e3)
	default:
		return fmt.Sprintf("%d Hz", hz)
	}
}

// FormatVFOFrequency renders the VFO frequency in MHz with 3 decimals and
// no unit, e.g. 14250000 -> "14.250"
func FormatVFOFrequency(hz int64) string {
	return fmt.Sprintf("%.3f", float64(hz)/1e6)
}

// FormatVFOStep renders steps below 1 kHz in Hz and the rest in kHz
func FormatVFOStep(hz int64) string {
	if hz < 1000 {
		return fmt.Sprintf("%d Hz", hz)
	}
	return strconv.FormatFloat(float64(hz)/1000, 'f', -1, 64) + " kHz"
}

// PowerLabel maps the ADF4351 power index to its output level
func PowerLabel(p protocol.PowerLevel) string {
	if !p.Known {
		return "Desconocido"
	}
	switch p.Level {
	case 0:
		return "-4 dBm"
	case 1:
		return "-1 dBm"
	case 2:
		return "+2 dBm"
	case 3:
		return "+5 dBm"
	default:
		return "Desconocido"
	}
}

// FormatAddress renders an I2C address as upper-case hex without padding.
// 7-bit addresses never need more than two digits.
func FormatAddress(addr int) string {
	return "0x" + strings.ToUpper(strconv.FormatInt(int64(addr), 16))
}

// RxTxLabel is the caption of the button that flips the VFO mode
func RxTxLabel(mode string) string {
	if mode == protocol.ModeRX {
		return "Cambiar a TX"
	}
	return "Cambiar a RX"
}
