package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agemfal/Instrumento-virtual/pkg/config"
	"github.com/agemfal/Instrumento-virtual/pkg/device"
	"github.com/agemfal/Instrumento-virtual/pkg/logging"
)

var (
	configPath = flag.String("config", "", "Configuration file path (optional)")
	bind       = flag.String("bind", "0.0.0.0", "Listen address")
	port       = flag.Int("port", 0, "WebSocket port (overrides config, default 81)")
	i2c        = flag.String("i2c", "", "Comma separated I2C addresses on the simulated bus (e.g. 0x3C,0x60)")
	noSi5351   = flag.Bool("no-si5351", false, "Simulate a missing Si5351 (VFO commands fail)")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Simulator.Port = *port
	}
	if *i2c != "" {
		addrs, err := parseAddresses(*i2c)
		if err != nil {
			log.Fatalf("Invalid -i2c: %v", err)
		}
		cfg.Simulator.I2CDevices = addrs
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.SetGlobalLogger(logging.NewWriterLogger(os.Stdout, logging.ParseLogLevel(*logLevel), false))

	dev := device.NewDevice(cfg.Simulator.I2CDevices)
	if *noSi5351 {
		dev.SetSi5351Present(false)
	}

	server := device.NewServer(dev)
	addr := fmt.Sprintf("%s:%d", *bind, cfg.Simulator.Port)
	if err := server.Start(addr); err != nil {
		logging.Errorf("main", "Failed to start simulator: %v", err)
		os.Exit(1)
	}
	logging.Infof("main", "ESP32 simulator started, I2C bus %v, Si5351 present: %t", cfg.Simulator.I2CDevices, !*noSi5351)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logging.Info("main", "Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Errorf("main", "Error during shutdown: %v", err)
	}
}

// parseAddresses reads "0x3C,96" style lists
func parseAddresses(s string) ([]int, error) {
	var addrs []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseInt(field, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad address %q", field)
		}
		addrs = append(addrs, int(v))
	}
	return addrs, nil
}
