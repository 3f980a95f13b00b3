package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeMap(t *testing.T, cmd *Command) map[string]interface{} {
	t.Helper()
	data, err := cmd.Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal command: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	return parsed
}

func TestCommandConstructors(t *testing.T) {
	t.Run("Scan I2C Has Only Action", func(t *testing.T) {
		parsed := decodeMap(t, ScanI2C())
		if parsed["accion"] != ActionScanI2C {
			t.Errorf("Expected accion %s, got %v", ActionScanI2C, parsed["accion"])
		}
		if len(parsed) != 1 {
			t.Errorf("Expected a single field, got %v", parsed)
		}
	})

	t.Run("Select Oscillator Zero Keeps ID", func(t *testing.T) {
		parsed := decodeMap(t, SelectOscillator(0))
		if parsed["accion"] != ActionSelectOscillator {
			t.Errorf("Expected accion %s, got %v", ActionSelectOscillator, parsed["accion"])
		}
		if id, ok := parsed["id"]; !ok || id.(float64) != 0 {
			t.Errorf("Expected id 0 on the wire, got %v", parsed)
		}
	})

	t.Run("VFO Commands", func(t *testing.T) {
		testCases := []struct {
			cmd       *Command
			subAction string
			extraKey  string
			extraVal  interface{}
		}{
			{VFOChangeFreq(DirectionUp), SubChangeFreq, "direccion", "up"},
			{VFOChangeFreq(DirectionDown), SubChangeFreq, "direccion", "down"},
			{VFOSetStep(), SubSetStep, "", nil},
			{VFOSetBand(), SubSetBand, "", nil},
			{VFOSetRxTx(ModeTX), SubSetRxTx, "modo", "tx"},
			{VFOSetRxTx("rx"), SubSetRxTx, "modo", "rx"},
		}

		for _, tc := range testCases {
			parsed := decodeMap(t, tc.cmd)
			if parsed["accion"] != ActionVFO {
				t.Errorf("Expected accion %s, got %v", ActionVFO, parsed["accion"])
			}
			if parsed["sub_accion"] != tc.subAction {
				t.Errorf("Expected sub_accion %s, got %v", tc.subAction, parsed["sub_accion"])
			}
			if tc.extraKey != "" && parsed[tc.extraKey] != tc.extraVal {
				t.Errorf("Expected %s=%v, got %v", tc.extraKey, tc.extraVal, parsed[tc.extraKey])
			}
		}
	})

	t.Run("AD9850 Set Freq Zero Is Sent", func(t *testing.T) {
		cmd, err := AD9850SetFreq(0)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		parsed := decodeMap(t, cmd)
		if v, ok := parsed["frecuencia_hz"]; !ok || v.(float64) != 0 {
			t.Errorf("Expected frecuencia_hz 0, got %v", parsed)
		}
		if parsed["sub_accion"] != SubSetFreq {
			t.Errorf("Expected sub_accion set_freq, got %v", parsed["sub_accion"])
		}
	})

	t.Run("AD9850 Set Freq Out Of Range", func(t *testing.T) {
		cmd, err := AD9850SetFreq(40_000_001)
		if err == nil {
			t.Fatal("Expected range error, got nil")
		}
		if cmd != nil {
			t.Errorf("Expected no command, got %v", cmd)
		}
		var rangeErr *RangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("Expected *RangeError, got %T", err)
		}
		if !strings.Contains(rangeErr.Alert(), "AD9850") {
			t.Errorf("Expected AD9850 alert text, got %s", rangeErr.Alert())
		}
	})

	t.Run("ADF4351 Set Freq Upper Bound Fits", func(t *testing.T) {
		cmd, err := ADF4351SetFreq(PLLMaxFrequencyHz)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !strings.Contains(cmd.String(), `"frecuencia_hz":4400000000`) {
			t.Errorf("Expected 4400000000 on the wire, got %s", cmd.String())
		}
	})

	t.Run("ADF4351 Power", func(t *testing.T) {
		cmd, err := ADF4351SetPower(0)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !strings.Contains(cmd.String(), `"potencia":0`) {
			t.Errorf("Expected potencia 0 on the wire, got %s", cmd.String())
		}

		if _, err := ADF4351SetPower(4); err == nil {
			t.Error("Expected error for power level 4, got nil")
		}
		if _, err := ADF4351SetPower(-1); err == nil {
			t.Error("Expected error for power level -1, got nil")
		}
	})

	t.Run("Step Commands Carry Value", func(t *testing.T) {
		if !strings.Contains(AD9850SetStep(100).String(), `"paso_hz":100`) {
			t.Errorf("Expected paso_hz 100, got %s", AD9850SetStep(100).String())
		}
		if !strings.Contains(ADF4351SetStep(10_000_000).String(), `"paso_hz":10000000`) {
			t.Errorf("Expected paso_hz 10000000, got %s", ADF4351SetStep(10_000_000).String())
		}
	})

	t.Run("Toggle RF", func(t *testing.T) {
		parsed := decodeMap(t, ADF4351ToggleRF())
		if parsed["accion"] != ActionADF4351 || parsed["sub_accion"] != SubToggleRF {
			t.Errorf("Unexpected toggle command: %v", parsed)
		}
	})
}

func TestParseCommand(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		cmd, err := ParseCommand([]byte(`{"accion":"ad9850_command","sub_accion":"set_freq","frecuencia_hz":7100000}`))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Action != ActionAD9850 || cmd.SubAction != SubSetFreq {
			t.Errorf("Unexpected command: %+v", cmd)
		}
		if cmd.FrequencyHz == nil || *cmd.FrequencyHz != 7100000 {
			t.Errorf("Expected frequency 7100000, got %v", cmd.FrequencyHz)
		}
	})

	t.Run("Missing Action", func(t *testing.T) {
		if _, err := ParseCommand([]byte(`{"sub_accion":"enable"}`)); err == nil {
			t.Error("Expected error for missing accion, got nil")
		}
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		_, err := ParseCommand([]byte(`{not json`))
		if err == nil {
			t.Fatal("Expected error for invalid JSON, got nil")
		}
		if !strings.Contains(err.Error(), "parse error") {
			t.Errorf("Expected parse error, got: %v", err)
		}
	})
}

func TestReply(t *testing.T) {
	t.Run("Success Reply JSON", func(t *testing.T) {
		reply := NewReply(ResponseAD9850, map[string]interface{}{"frecuencia_hz": 1000000})
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(reply.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["status"] != StatusOK {
			t.Errorf("Expected status ok, got %v", parsed["status"])
		}
		if parsed["accion"] != ResponseAD9850 {
			t.Errorf("Expected accion %s, got %v", ResponseAD9850, parsed["accion"])
		}
		if parsed["datos"] == nil {
			t.Error("Expected datos in JSON")
		}
	})

	t.Run("Error Reply JSON", func(t *testing.T) {
		reply := NewErrorReply("", "Si5351 no encontrado")
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(reply.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["status"] != StatusError {
			t.Errorf("Expected status error, got %v", parsed["status"])
		}
		if parsed["mensaje"] != "Si5351 no encontrado" {
			t.Errorf("Expected mensaje in JSON, got %v", parsed["mensaje"])
		}
		if _, ok := parsed["accion"]; ok {
			t.Errorf("Expected no accion, got %v", parsed["accion"])
		}
	})
}
