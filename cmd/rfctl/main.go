package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/agemfal/Instrumento-virtual/pkg/config"
	"github.com/agemfal/Instrumento-virtual/pkg/console"
	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	"github.com/agemfal/Instrumento-virtual/pkg/panel"
)

var (
	configPath = flag.String("config", "", "Configuration file path (optional)")
	host       = flag.String("host", "", "ESP32 address (overrides config)")
	port       = flag.Int("port", 0, "ESP32 WebSocket port (overrides config)")
	command    = flag.String("cmd", "", "Shortcuts to run, separated by ';' (e.g. 'use ad9850; 10m; on')")
	wait       = flag.Duration("wait", time.Second, "Time to wait for replies after the last command")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *host != "" {
		cfg.Device.Host = *host
	}
	if *port != 0 {
		cfg.Device.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *command == "" && len(flag.Args()) > 0 {
		*command = strings.Join(flag.Args(), " ")
	}
	if cfg.Device.Host == "" {
		showHelp()
		os.Exit(1)
	}

	// Panel lines are printed from events; the component logger only reports errors
	logging.SetGlobalLogger(logging.NewWriterLogger(os.Stderr, logging.LevelError, false))

	session := panel.NewSession(cfg)
	session.SetAlertHandler(func(text string) {
		fmt.Fprintf(os.Stderr, "Alerta: %s\n", text)
	})
	defer session.Close()

	events := session.Subscribe()
	go printEvents(os.Stdout, events)

	if err := session.Connect(context.Background(), ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	con := console.New()
	if *command != "" {
		code := 0
		for _, line := range strings.Split(*command, ";") {
			if err := runLine(con, session, line); err != nil {
				code = 1
			}
		}
		time.Sleep(*wait)
		session.Close()
		os.Exit(code)
	}

	repl(con, session, os.Stdin)
}

// repl reads shortcut lines until EOF or "q"
func repl(con *console.Console, session *panel.Session, in io.Reader) {
	showShortcuts()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Printf("%s> ", con.Instrument())
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "q", "quit", "exit":
			return
		case "?", "help":
			showShortcuts()
			continue
		}
		runLine(con, session, line)
		if !session.Connected() {
			fmt.Fprintln(os.Stderr, "Conexión perdida")
			return
		}
	}
}

func runLine(con *console.Console, session *panel.Session, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	msg, err := con.Execute(session, line)
	if msg != "" {
		fmt.Println(msg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// printEvents writes every panel log line as it arrives
func printEvents(w io.Writer, events <-chan panel.Event) {
	for ev := range events {
		if ev.Kind == panel.EventLog && ev.Entry != nil {
			fmt.Fprintln(w, ev.Entry.String())
		}
	}
}

func showShortcuts() {
	fmt.Println("Atajos:")
	fmt.Println("  +  -          Subir / bajar frecuencia")
	fmt.Println("  s             Ciclar paso")
	fmt.Println("  b             Ciclar banda (VFO)")
	fmt.Println("  e             Escanear I2C")
	fmt.Println("  on  off       Salida on/off (VFO: TX/RX)")
	fmt.Println("  p             Ciclar potencia (ADF4351)")
	fmt.Println("  rf            Conmutar salida RF (ADF4351)")
	fmt.Println("  osc <0-7>     Seleccionar oscilador")
	fmt.Println("  use <inst>    vfo | ad9850 | adf4351")
	fmt.Println("  7.1m 455k 2.4g  Fijar frecuencia (AD9850, ADF4351)")
	fmt.Println("  q             Salir")
}

func showHelp() {
	fmt.Println("rfctl - ESP32 RF instrument console")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s -host <ip> [options] [shortcuts]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -host <ip>        ESP32 address")
	fmt.Println("  -port <port>      WebSocket port (default: 81)")
	fmt.Println("  -config <path>    Configuration file")
	fmt.Println("  -cmd <shortcuts>  Run shortcuts separated by ';' and exit")
	fmt.Println("  -wait <duration>  Wait for replies before exiting (default: 1s)")
	fmt.Println()
	fmt.Println("Without -cmd an interactive console is started.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s -host 192.168.4.1\n", os.Args[0])
	fmt.Printf("  %s -host 192.168.4.1 -cmd 'use adf4351; 2.4g; on'\n", os.Args[0])
	fmt.Printf("  %s -host 192.168.4.1 e\n", os.Args[0])
}
