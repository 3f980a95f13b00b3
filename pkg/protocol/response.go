package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed marks an inbound frame that could not be decoded
var ErrMalformed = errors.New("malformed payload")

// Hz is a frequency in hertz. The device sends it either as a JSON number
// or, for the ADF4351, as a string of digits; both decode the same way.
// A null value decodes to 0.
type Hz int64

// UnmarshalJSON accepts numbers, numeric strings and null. Negative values
// and values beyond int64 are rejected.
func (h *Hz) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if text == "null" {
		*h = 0
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return fmt.Errorf("invalid frequency %s: %w", text, err)
		}
		text = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid frequency %s", string(data))
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	f = math.Round(f)
	if f < 0 || f >= float64(math.MaxInt64) {
		return fmt.Errorf("frequency %s out of range", string(data))
	}
	*h = Hz(f)
	return nil
}

// PowerLevel is the ADF4351 output power index as reported by the device.
// Known is false when the field is absent or not an integer.
type PowerLevel struct {
	Level int
	Known bool
}

// UnmarshalJSON never fails; unexpected values leave the level unknown
func (p *PowerLevel) UnmarshalJSON(data []byte) error {
	*p = PowerLevel{}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil
	}
	p.Level = int(f)
	p.Known = true
	return nil
}

// MarshalJSON writes the level as a number, or null when unknown
func (p PowerLevel) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(p.Level)), nil
}

// Envelope is an inbound frame before its payload is interpreted
type Envelope struct {
	Action     string          `json:"accion"`
	Status     string          `json:"status,omitempty"`
	Message    string          `json:"mensaje,omitempty"`
	Data       json.RawMessage `json:"datos,omitempty"`
	Devices    json.RawMessage `json:"dispositivos,omitempty"`
	SelectedID json.RawMessage `json:"selected_id,omitempty"`
}

// IsError reports whether the device flagged the envelope as a failure
func (e *Envelope) IsError() bool {
	return e.Status == StatusError
}

// Response is implemented by every decoded response payload
type Response interface {
	ResponseAction() string
}

// ScanResult lists the addresses that answered on the I2C bus
type ScanResult struct {
	Addresses []int
}

func (ScanResult) ResponseAction() string { return ResponseScan }

// VFOState is the VFO snapshot carried by respuesta_vfo
type VFOState struct {
	FrequencyHz Hz     `json:"frecuencia_hz"`
	StepHz      Hz     `json:"paso_hz"`
	BandName    string `json:"banda_nombre"`
	Mode        string `json:"modo"`
	IFKHz       *int64 `json:"if_khz,omitempty"`
}

// VFOResponse wraps a VFO snapshot; State is nil when datos was absent
type VFOResponse struct {
	State *VFOState
}

func (VFOResponse) ResponseAction() string { return ResponseVFO }

// AD9850State is the DDS snapshot. StepHz is 0 when the device omits it.
type AD9850State struct {
	FrequencyHz Hz   `json:"frecuencia_hz"`
	Enabled     bool `json:"habilitado"`
	StepHz      Hz   `json:"paso_hz,omitempty"`
}

// AD9850Response wraps a DDS snapshot; State is nil when datos was absent
type AD9850Response struct {
	State *AD9850State
}

func (AD9850Response) ResponseAction() string { return ResponseAD9850 }

// ADF4351State is the PLL snapshot. StepHz is 0 when the device omits it.
type ADF4351State struct {
	FrequencyHz Hz         `json:"frecuencia_hz"`
	Enabled     bool       `json:"habilitado"`
	StepHz      Hz         `json:"paso_hz,omitempty"`
	Power       PowerLevel `json:"potencia"`
}

// ADF4351Response wraps a PLL snapshot; State is nil when datos was absent
type ADF4351Response struct {
	State *ADF4351State
}

func (ADF4351Response) ResponseAction() string { return ResponseADF4351 }

// OscillatorSelected confirms an RF switch change
type OscillatorSelected struct {
	ID string
}

func (OscillatorSelected) ResponseAction() string { return ResponseOscSelect }

// Decode parses an inbound frame. The returned Response is nil for
// actions this package does not know; that is not an error.
func Decode(data []byte) (*Envelope, Response, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	resp, err := env.Payload()
	if err != nil {
		return &env, nil, err
	}
	return &env, resp, nil
}

// Payload interprets the envelope according to its action
func (e *Envelope) Payload() (Response, error) {
	switch e.Action {
	case ResponseScan:
		return ScanResult{Addresses: e.addresses()}, nil

	case ResponseVFO:
		var state *VFOState
		if err := e.decodeData(&state); err != nil {
			return nil, err
		}
		return VFOResponse{State: state}, nil

	case ResponseAD9850:
		var state *AD9850State
		if err := e.decodeData(&state); err != nil {
			return nil, err
		}
		return AD9850Response{State: state}, nil

	case ResponseADF4351:
		var state *ADF4351State
		if err := e.decodeData(&state); err != nil {
			return nil, err
		}
		return ADF4351Response{State: state}, nil

	case ResponseOscSelect:
		return OscillatorSelected{ID: rawText(e.SelectedID)}, nil

	default:
		return nil, nil
	}
}

// decodeData leaves *target nil when datos is absent or null
func (e *Envelope) decodeData(target interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("%w: %s datos: %v", ErrMalformed, e.Action, err)
	}
	return nil
}

// addresses returns nil unless dispositivos is an array of integers
func (e *Envelope) addresses() []int {
	if len(e.Devices) == 0 {
		return nil
	}
	var addrs []int
	if err := json.Unmarshal(e.Devices, &addrs); err != nil {
		return nil
	}
	return addrs
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Reply is an outbound response envelope, as produced by a device
type Reply struct {
	Status     string      `json:"status,omitempty"`
	Action     string      `json:"accion,omitempty"`
	Message    string      `json:"mensaje,omitempty"`
	Data       interface{} `json:"datos,omitempty"`
	Devices    []int       `json:"dispositivos,omitempty"`
	SelectedID *int        `json:"selected_id,omitempty"`
}

// String returns the JSON form of the reply
func (r *Reply) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewReply creates a successful reply for the given response action
func NewReply(action string, data interface{}) *Reply {
	return &Reply{
		Status: StatusOK,
		Action: action,
		Data:   data,
	}
}

// NewErrorReply creates a failure reply
func NewErrorReply(action, message string) *Reply {
	return &Reply{
		Status:  StatusError,
		Action:  action,
		Message: message,
	}
}
