package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScan(t *testing.T) {
	env, resp, err := Decode([]byte(`{"status":"ok","accion":"respuesta_escaner","dispositivos":[60,104]}`))
	require.NoError(t, err)
	require.NotNil(t, env)

	scan, ok := resp.(ScanResult)
	require.True(t, ok, "expected ScanResult, got %T", resp)
	assert.Equal(t, []int{0x3C, 0x68}, scan.Addresses)
	assert.False(t, env.IsError())
}

func TestDecodeScanNonArrayDevices(t *testing.T) {
	_, resp, err := Decode([]byte(`{"accion":"respuesta_escaner","dispositivos":"none"}`))
	require.NoError(t, err)
	assert.Empty(t, resp.(ScanResult).Addresses)

	_, resp, err = Decode([]byte(`{"accion":"respuesta_escaner"}`))
	require.NoError(t, err)
	assert.Empty(t, resp.(ScanResult).Addresses)
}

func TestDecodeVFO(t *testing.T) {
	_, resp, err := Decode([]byte(`{"accion":"respuesta_vfo","datos":{"frecuencia_hz":14250000,"paso_hz":1000,"banda_nombre":"20m","modo":"RX","if_khz":455}}`))
	require.NoError(t, err)

	vfo, ok := resp.(VFOResponse)
	require.True(t, ok)
	require.NotNil(t, vfo.State)
	assert.Equal(t, Hz(14250000), vfo.State.FrequencyHz)
	assert.Equal(t, Hz(1000), vfo.State.StepHz)
	assert.Equal(t, "20m", vfo.State.BandName)
	assert.Equal(t, ModeRX, vfo.State.Mode)
	require.NotNil(t, vfo.State.IFKHz)
	assert.Equal(t, int64(455), *vfo.State.IFKHz)
}

func TestDecodeMissingData(t *testing.T) {
	for _, frame := range []string{
		`{"accion":"respuesta_vfo"}`,
		`{"accion":"respuesta_vfo","datos":null}`,
	} {
		_, resp, err := Decode([]byte(frame))
		require.NoError(t, err, frame)
		assert.Nil(t, resp.(VFOResponse).State, frame)
	}
}

func TestDecodeADF4351StringFrequency(t *testing.T) {
	_, resp, err := Decode([]byte(`{"status":"ok","accion":"respuesta_adf4351","datos":{"frecuencia_hz":"1000000000","potencia":3,"habilitado":false,"paso_hz":1000}}`))
	require.NoError(t, err)

	pll := resp.(ADF4351Response)
	require.NotNil(t, pll.State)
	assert.Equal(t, Hz(1_000_000_000), pll.State.FrequencyHz)
	assert.Equal(t, PowerLevel{Level: 3, Known: true}, pll.State.Power)
	assert.Equal(t, Hz(1000), pll.State.StepHz)
	assert.False(t, pll.State.Enabled)
}

func TestDecodePowerLevelVariants(t *testing.T) {
	testCases := []struct {
		frame    string
		expected PowerLevel
	}{
		{`{"accion":"respuesta_adf4351","datos":{"potencia":2}}`, PowerLevel{Level: 2, Known: true}},
		{`{"accion":"respuesta_adf4351","datos":{"potencia":9}}`, PowerLevel{Level: 9, Known: true}},
		{`{"accion":"respuesta_adf4351","datos":{"potencia":"2"}}`, PowerLevel{}},
		{`{"accion":"respuesta_adf4351","datos":{"potencia":1.5}}`, PowerLevel{}},
		{`{"accion":"respuesta_adf4351","datos":{}}`, PowerLevel{}},
	}

	for _, tc := range testCases {
		_, resp, err := Decode([]byte(tc.frame))
		require.NoError(t, err, tc.frame)
		assert.Equal(t, tc.expected, resp.(ADF4351Response).State.Power, tc.frame)
	}
}

func TestDecodeOscillatorSelected(t *testing.T) {
	_, resp, err := Decode([]byte(`{"accion":"respuesta_osc_select","selected_id":3}`))
	require.NoError(t, err)
	assert.Equal(t, OscillatorSelected{ID: "3"}, resp)
}

func TestDecodeUnknownAction(t *testing.T) {
	env, resp, err := Decode([]byte(`{"accion":"respuesta_misterio","status":"error","mensaje":"boom"}`))
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.True(t, env.IsError())
	assert.Equal(t, "boom", env.Message)
}

func TestDecodeErrorWithoutAction(t *testing.T) {
	env, resp, err := Decode([]byte(`{"status":"error","mensaje":"Si5351 no encontrado."}`))
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.True(t, env.IsError())
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		``,
		`null`,
		`{"accion":"respuesta_vfo","datos":{"frecuencia_hz":"abc"}}`,
		`{"accion":"respuesta_ad9850","datos":{"habilitado":"yes"}}`,
	} {
		_, _, err := Decode([]byte(frame))
		require.Error(t, err, frame)
		assert.True(t, errors.Is(err, ErrMalformed), "frame %q: %v", frame, err)
	}
}

func TestHzUnmarshal(t *testing.T) {
	var h Hz
	require.NoError(t, h.UnmarshalJSON([]byte(`7100000`)))
	assert.Equal(t, Hz(7100000), h)

	require.NoError(t, h.UnmarshalJSON([]byte(`" 35000000 "`)))
	assert.Equal(t, Hz(35000000), h)

	require.NoError(t, h.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, Hz(0), h)

	assert.Error(t, h.UnmarshalJSON([]byte(`true`)))

	t.Run("OutOfRange", func(t *testing.T) {
		for _, raw := range []string{`1e20`, `"1e20"`, `9223372036854775808`, `-5`} {
			var h Hz
			if err := h.UnmarshalJSON([]byte(raw)); err == nil {
				t.Errorf("Expected error for %s, got %d", raw, h)
			}
		}

		var h Hz
		require.NoError(t, h.UnmarshalJSON([]byte(`4400000000`)))
		assert.Equal(t, Hz(4_400_000_000), h)
	})

	t.Run("HugeFrameIsMalformed", func(t *testing.T) {
		_, _, err := Decode([]byte(`{"accion":"respuesta_adf4351","datos":{"frecuencia_hz":1e20,"habilitado":true}}`))
		assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
	})
}
