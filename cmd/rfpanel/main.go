package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/agemfal/Instrumento-virtual/pkg/config"
	"github.com/agemfal/Instrumento-virtual/pkg/logging"
)

const (
	Version = "0.1.0-dev"
	Build   = "development"

	defaultConfigPath = "config.yaml"
)

// overrides are command line values that win over the config file
type overrides struct {
	device string
	listen int
	dbPath string
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Configuration file path")
	showVersion := flag.Bool("version", false, "Show version information")
	var ov overrides
	flag.StringVar(&ov.device, "device", "", "Default ESP32 address (overrides config)")
	flag.IntVar(&ov.listen, "listen", 0, "Web port (overrides config)")
	flag.StringVar(&ov.dbPath, "db", "", "History database path (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("rfpanel version %s (%s)\n", Version, Build)
		return
	}

	if err := run(*configPath, ov); err != nil {
		fmt.Fprintf(os.Stderr, "rfpanel: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the overrides. A missing
// file at the default path yields the built-in defaults.
func loadConfig(path string, ov overrides) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if path != defaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}

	if ov.device != "" {
		cfg.Device.Host = ov.device
	}
	if ov.listen != 0 {
		cfg.Web.Port = ov.listen
	}
	if ov.dbPath != "" {
		cfg.Storage.DatabasePath = ov.dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(configPath string, ov overrides) error {
	cfg, err := loadConfig(configPath, ov)
	if err != nil {
		return err
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logging.CloseGlobalLogger()

	logging.Infof("main", "rfpanel %s, panel at http://%s", Version, cfg.GetWebAddress())
	if cfg.Device.Host != "" {
		logging.Infof("main", "Default device %s:%d", cfg.Device.Host, cfg.Device.Port)
	}

	daemon, err := NewPanelDaemon(cfg)
	if err != nil {
		return err
	}
	if err := daemon.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logging.Infof("main", "Received %s, shutting down", sig)

	return daemon.Stop()
}
