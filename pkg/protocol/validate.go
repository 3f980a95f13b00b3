package protocol

import "fmt"

// Frequency and power limits enforced before a command reaches the wire
const (
	DDSMinFrequencyHz int64 = 0
	DDSMaxFrequencyHz int64 = 40_000_000
	PLLMinFrequencyHz int64 = 35_000_000
	PLLMaxFrequencyHz int64 = 4_400_000_000
	PLLMinPowerLevel        = 0
	PLLMaxPowerLevel        = 3
)

// RangeError reports a client-side validation failure. Such values are
// never sent to the device.
type RangeError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
	alert string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// Alert returns the operator-facing message for the rejected value
func (e *RangeError) Alert() string {
	return e.alert
}

// ValidateDDSFrequency checks an AD9850 frequency against 0..40 MHz
func ValidateDDSFrequency(hz int64) error {
	if hz < DDSMinFrequencyHz || hz > DDSMaxFrequencyHz {
		return &RangeError{
			Field: "ad9850 frequency",
			Value: hz,
			Min:   DDSMinFrequencyHz,
			Max:   DDSMaxFrequencyHz,
			alert: "Frecuencia para AD9850 debe estar entre 0 y 40,000,000 Hz.",
		}
	}
	return nil
}

// ValidatePLLFrequency checks an ADF4351 frequency against 35 MHz..4.4 GHz
func ValidatePLLFrequency(hz int64) error {
	if hz < PLLMinFrequencyHz || hz > PLLMaxFrequencyHz {
		return &RangeError{
			Field: "adf4351 frequency",
			Value: hz,
			Min:   PLLMinFrequencyHz,
			Max:   PLLMaxFrequencyHz,
			alert: "Frecuencia para ADF4351 debe estar entre 35 MHz y 4400 MHz.",
		}
	}
	return nil
}

// ValidatePowerLevel checks an ADF4351 power level index
func ValidatePowerLevel(level int) error {
	if level < PLLMinPowerLevel || level > PLLMaxPowerLevel {
		return &RangeError{
			Field: "adf4351 power level",
			Value: int64(level),
			Min:   PLLMinPowerLevel,
			Max:   PLLMaxPowerLevel,
			alert: "Potencia para ADF4351 debe estar entre 0 y 3.",
		}
	}
	return nil
}
