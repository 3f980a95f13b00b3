package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the rfpanel configuration
type Config struct {
	Device struct {
		// Host is used when the operator leaves the IP field blank
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"`
	} `yaml:"device"`

	Panel struct {
		Generators  []string `yaml:"generators"`
		Oscillators []string `yaml:"oscillators"`
		LogLimit    int      `yaml:"log_limit"`
	} `yaml:"panel"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxEntries   int    `yaml:"max_entries"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	Simulator struct {
		Port       int   `yaml:"port"`
		I2CDevices []int `yaml:"i2c_devices"`
	} `yaml:"simulator"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

// Default returns a configuration with every default applied, for tools
// that run without a config file.
func Default() *Config {
	var config Config
	config.setDefaults()
	return &config
}

func (c *Config) setDefaults() {
	if c.Device.Port == 0 {
		c.Device.Port = 81
	}
	if c.Device.HandshakeTimeoutMs == 0 {
		c.Device.HandshakeTimeoutMs = 5000
	}
	if len(c.Panel.Generators) == 0 {
		c.Panel.Generators = []string{"AD9850 DDS", "ADF4351 PLL"}
	}
	if len(c.Panel.Oscillators) == 0 {
		c.Panel.Oscillators = []string{"VFO Si5351"}
	}
	if c.Panel.LogLimit == 0 {
		c.Panel.LogLimit = 500
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8081
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.Storage.MaxEntries == 0 {
		c.Storage.MaxEntries = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
	if c.Simulator.Port == 0 {
		c.Simulator.Port = 81
	}
	if c.Simulator.I2CDevices == nil {
		c.Simulator.I2CDevices = []int{0x60}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		return fmt.Errorf("device port %d out of range", c.Device.Port)
	}
	if c.Device.HandshakeTimeoutMs < 0 {
		return fmt.Errorf("device handshake timeout must not be negative")
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	if c.Simulator.Port < 1 || c.Simulator.Port > 65535 {
		return fmt.Errorf("simulator port %d out of range", c.Simulator.Port)
	}
	if c.Panel.LogLimit < 0 {
		return fmt.Errorf("panel log limit must not be negative")
	}
	for _, addr := range c.Simulator.I2CDevices {
		if addr < 1 || addr > 0x7F {
			return fmt.Errorf("simulated I2C address %d is not a 7-bit address", addr)
		}
	}
	return nil
}

// HandshakeTimeout returns the device dial timeout as a duration
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Device.HandshakeTimeoutMs) * time.Millisecond
}

// GetWebAddress returns the listen address of the panel web server
func (c *Config) GetWebAddress() string {
	return fmt.Sprintf("%s:%d", c.Web.BindAddress, c.Web.Port)
}
