package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary directory for test files
	tempDir, err := os.MkdirTemp("", "rfpanel-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Config", func(t *testing.T) {
		configContent := `
device:
  host: "192.168.4.1"
  port: 8181
  handshake_timeout_ms: 2500

panel:
  generators: ["DDS", "PLL"]
  oscillators: ["Si5351", "Cristal 10 MHz"]
  log_limit: 200

web:
  port: 9090
  bind_address: "127.0.0.1"

storage:
  database_path: "/tmp/rfpanel.db"
  max_entries: 5000

logging:
  level: "debug"
  file: "/var/log/rfpanel.log"
  console: true

simulator:
  port: 8282
  i2c_devices: [60, 104]
`
		configPath := filepath.Join(tempDir, "valid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Device.Host != "192.168.4.1" {
			t.Errorf("Expected device host 192.168.4.1, got %s", config.Device.Host)
		}
		if config.Device.Port != 8181 {
			t.Errorf("Expected device port 8181, got %d", config.Device.Port)
		}
		if config.HandshakeTimeout() != 2500*time.Millisecond {
			t.Errorf("Expected handshake timeout 2.5s, got %v", config.HandshakeTimeout())
		}
		if len(config.Panel.Oscillators) != 2 || config.Panel.Oscillators[1] != "Cristal 10 MHz" {
			t.Errorf("Expected two oscillators, got %v", config.Panel.Oscillators)
		}
		if config.Panel.LogLimit != 200 {
			t.Errorf("Expected log limit 200, got %d", config.Panel.LogLimit)
		}
		if config.GetWebAddress() != "127.0.0.1:9090" {
			t.Errorf("Expected web address 127.0.0.1:9090, got %s", config.GetWebAddress())
		}
		if config.Storage.MaxEntries != 5000 {
			t.Errorf("Expected max entries 5000, got %d", config.Storage.MaxEntries)
		}
		if config.Logging.Level != "debug" {
			t.Errorf("Expected log level debug, got %s", config.Logging.Level)
		}
		if len(config.Simulator.I2CDevices) != 2 || config.Simulator.I2CDevices[1] != 104 {
			t.Errorf("Expected simulated devices [60 104], got %v", config.Simulator.I2CDevices)
		}
	})

	t.Run("Config With Defaults", func(t *testing.T) {
		configContent := `
device:
  host: "esp32.local"
`
		configPath := filepath.Join(tempDir, "minimal.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Device.Port != 81 {
			t.Errorf("Expected default device port 81, got %d", config.Device.Port)
		}
		if config.Device.HandshakeTimeoutMs != 5000 {
			t.Errorf("Expected default handshake timeout 5000, got %d", config.Device.HandshakeTimeoutMs)
		}
		if len(config.Panel.Generators) != 2 {
			t.Errorf("Expected two default generators, got %v", config.Panel.Generators)
		}
		if config.Panel.LogLimit != 500 {
			t.Errorf("Expected default log limit 500, got %d", config.Panel.LogLimit)
		}
		if config.Web.Port != 8081 {
			t.Errorf("Expected default web port 8081, got %d", config.Web.Port)
		}
		if config.Web.BindAddress != "0.0.0.0" {
			t.Errorf("Expected default bind address 0.0.0.0, got %s", config.Web.BindAddress)
		}
		if config.Storage.DatabasePath != "" {
			t.Errorf("Expected storage disabled by default, got %s", config.Storage.DatabasePath)
		}
		if config.Logging.Level != "info" {
			t.Errorf("Expected default log level info, got %s", config.Logging.Level)
		}
		if config.Simulator.Port != 81 {
			t.Errorf("Expected default simulator port 81, got %d", config.Simulator.Port)
		}
	})

	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("Expected error for nonexistent file, got nil")
		}
		if !strings.Contains(err.Error(), "failed to read config file") {
			t.Errorf("Expected 'failed to read config file' error, got: %v", err)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		configContent := `
device:
  host: [invalid yaml structure
`
		configPath := filepath.Join(tempDir, "invalid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		_, err := LoadConfig(configPath)
		if err == nil {
			t.Fatal("Expected error for invalid YAML, got nil")
		}
		if !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected 'failed to parse config file' error, got: %v", err)
		}
	})

	t.Run("Empty File", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "empty.yaml")
		if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
			t.Fatalf("Failed to write empty config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error for empty file, got: %v", err)
		}
		if config.Device.Port != 81 {
			t.Errorf("Expected default device port for empty file, got %d", config.Device.Port)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Defaults Are Valid", func(t *testing.T) {
		if err := Default().Validate(); err != nil {
			t.Errorf("Expected no error for default config, got: %v", err)
		}
	})

	t.Run("Device Port Out Of Range", func(t *testing.T) {
		config := Default()
		config.Device.Port = 70000

		err := config.Validate()
		if err == nil {
			t.Fatal("Expected error for device port, got nil")
		}
		if !strings.Contains(err.Error(), "device port") {
			t.Errorf("Expected device port error, got: %v", err)
		}
	})

	t.Run("Web Port Out Of Range", func(t *testing.T) {
		config := Default()
		config.Web.Port = -1

		if err := config.Validate(); err == nil {
			t.Error("Expected error for web port, got nil")
		}
	})

	t.Run("Negative Handshake Timeout", func(t *testing.T) {
		config := Default()
		config.Device.HandshakeTimeoutMs = -5

		if err := config.Validate(); err == nil {
			t.Error("Expected error for negative timeout, got nil")
		}
	})

	t.Run("Simulated Address Beyond 7 Bits", func(t *testing.T) {
		config := Default()
		config.Simulator.I2CDevices = []int{0x3C, 0x80}

		err := config.Validate()
		if err == nil {
			t.Fatal("Expected error for 8-bit address, got nil")
		}
		if !strings.Contains(err.Error(), "7-bit") {
			t.Errorf("Expected 7-bit address error, got: %v", err)
		}
	})
}

func TestConfigIntegration(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "rfpanel-config-integration")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configContent := `
device:
  host: "192.168.1.50"

web:
  port: 8080

logging:
  level: "info"
  console: true
`

	configPath := filepath.Join(tempDir, "integration.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if err := config.Validate(); err != nil {
		t.Fatalf("Failed to validate config: %v", err)
	}

	if config.Device.Host != "192.168.1.50" {
		t.Errorf("Expected host 192.168.1.50, got %s", config.Device.Host)
	}
	if config.Storage.MaxEntries != 10000 {
		t.Errorf("Expected default max entries, got %d", config.Storage.MaxEntries)
	}
}
