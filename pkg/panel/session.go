package panel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agemfal/Instrumento-virtual/pkg/client"
	"github.com/agemfal/Instrumento-virtual/pkg/config"
	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
)

var (
	// ErrNotConnected is returned when a command is sent without an open connection
	ErrNotConnected = errors.New("not connected")
	// ErrNoHost is returned by Connect when neither an IP nor a default host is known
	ErrNoHost = errors.New("no device host given")
	// ErrUnknownGroup is returned for a carousel group other than generators or oscillators
	ErrUnknownGroup = errors.New("unknown instrument group")
	// ErrClosed is returned by Connect after Close
	ErrClosed = errors.New("session closed")
	// ErrConnectCanceled is returned by Connect when Disconnect or Close
	// interrupted the dial
	ErrConnectCanceled = errors.New("connect canceled")
)

// Instrument names used for snapshots and history
const (
	InstrumentVFO     = "vfo"
	InstrumentAD9850  = "ad9850"
	InstrumentADF4351 = "adf4351"
	InstrumentI2C     = "i2c"
)

// Carousel groups
const (
	GroupGenerators  = "generators"
	GroupOscillators = "oscillators"
)

// Transport is an open connection to a device
type Transport interface {
	Send(data []byte) error
	ReadLoop(onMessage func([]byte)) error
	Close() error
}

// DialFunc opens a Transport to a ws:// URL
type DialFunc func(ctx context.Context, url string, timeout time.Duration) (Transport, error)

// Recorder persists log lines and instrument snapshots. Implementations
// are called with the session lock held and should not call back into it.
type Recorder interface {
	RecordLog(t time.Time, level, text string) error
	RecordSnapshot(t time.Time, instrument string, payload []byte) error
}

// EventKind tells what changed
type EventKind string

const (
	EventLog  EventKind = "log"
	EventView EventKind = "view"
)

// Event is delivered to subscribers after every state change
type Event struct {
	Kind  EventKind `json:"kind"`
	Entry *LogEntry `json:"entry,omitempty"`
	View  View      `json:"view"`
}

const subscriberBuffer = 64

// Session is the controller of one panel: it owns the device connection,
// renders inbound responses into the view and sends user commands.
type Session struct {
	mu sync.Mutex

	defaultHost string
	port        int
	timeout     time.Duration

	dial     DialFunc
	recorder Recorder
	alert    func(string)
	logger   *logging.Logger

	conn      Transport
	connected bool
	closed    bool
	host      string

	// dialCancel is set while a dial is in flight; dialGen changes when
	// Disconnect or Close abandons it
	dialCancel context.CancelFunc
	dialGen    uint64

	vfoMode     string
	generators  *Carousel
	oscillators *Carousel
	ddsSteps    *StepTable
	pllSteps    *StepTable

	view View
	log  eventLog

	subscribers map[chan Event]struct{}
}

// NewSession creates a disconnected session from the device and panel
// sections of cfg
func NewSession(cfg *config.Config) *Session {
	s := &Session{
		defaultHost: cfg.Device.Host,
		port:        cfg.Device.Port,
		timeout:     cfg.HandshakeTimeout(),
		dial:        dialWebSocket,
		vfoMode:     protocol.ModeRX,
		generators:  NewCarousel("Generador", cfg.Panel.Generators),
		oscillators: NewCarousel("Oscilador", cfg.Panel.Oscillators),
		ddsSteps:    NewStepTable(DDSSteps, DDSStartIndex),
		pllSteps:    NewStepTable(PLLSteps, PLLStartIndex),
		view:        initialView(),
		log:         eventLog{limit: cfg.Panel.LogLimit},
		subscribers: make(map[chan Event]struct{}),
	}
	s.view.Generators = s.generators.view()
	s.view.Oscillators = s.oscillators.view()
	return s
}

func dialWebSocket(ctx context.Context, url string, timeout time.Duration) (Transport, error) {
	conn, err := client.Dial(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SetDialer replaces the transport used by Connect
func (s *Session) SetDialer(dial DialFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dial = dial
}

// SetRecorder attaches a history sink
func (s *Session) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// SetAlertHandler sets the hook fired for rejected user input
func (s *Session) SetAlertHandler(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = fn
}

// SetLogger sets the component logger panel lines are mirrored to
func (s *Session) SetLogger(l *logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

func (s *Session) getLogger() *logging.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.GetGlobalLogger()
}

// Connect opens the connection to the device at ip, or at the configured
// default host when ip is empty. It is a no-op while connected or dialing.
// Disconnect during the dial abandons it and Connect returns
// ErrConnectCanceled.
func (s *Session) Connect(ctx context.Context, ip string) error {
	host := strings.TrimSpace(ip)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if host == "" {
		host = s.defaultHost
	}
	if host == "" {
		s.logLocked(LogWarn, "Por favor, ingresa una dirección IP.")
		s.mu.Unlock()
		return ErrNoHost
	}
	if s.conn != nil || s.dialCancel != nil {
		s.mu.Unlock()
		return nil
	}
	url := client.DeviceURL(host, s.port)
	dial := s.dial
	timeout := s.timeout
	dialCtx, cancel := context.WithCancel(ctx)
	s.dialCancel = cancel
	gen := s.dialGen
	s.host = host
	s.logLocked(LogInfo, fmt.Sprintf("Intentando conectar a %s...", url))
	s.mu.Unlock()

	conn, err := dial(dialCtx, url, timeout)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.dialGen || s.closed {
		if conn != nil {
			conn.Close()
		}
		if s.closed {
			return ErrClosed
		}
		return ErrConnectCanceled
	}
	s.dialCancel = nil

	if err != nil {
		s.logLocked(LogError, "Error en la conexión: "+err.Error())
		s.host = ""
		return err
	}

	s.conn = conn
	s.connected = true
	s.view.Connection = connectedView(url)
	s.logLocked(LogInfo, "Conectado al ESP32.")
	s.emitViewLocked()

	go s.readPump(conn)
	return nil
}

// Toggle disconnects when connected or dialing and connects otherwise,
// like the panel's single connection button
func (s *Session) Toggle(ctx context.Context, ip string) error {
	s.mu.Lock()
	busy := s.conn != nil || s.dialCancel != nil
	s.mu.Unlock()

	if busy {
		return s.Disconnect()
	}
	return s.Connect(ctx, ip)
}

// Disconnect closes the connection if there is one, or abandons a dial in
// progress
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.dialCancel != nil {
		s.abortDialLocked()
		s.markDisconnectedLocked()
	}
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.markDisconnectedLocked()
	s.mu.Unlock()

	return conn.Close()
}

func (s *Session) abortDialLocked() {
	s.dialCancel()
	s.dialCancel = nil
	s.dialGen++
}

// Close disconnects and releases every subscriber
func (s *Session) Close() error {
	err := s.Disconnect()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.dialCancel != nil {
		s.abortDialLocked()
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	return err
}

func (s *Session) markDisconnectedLocked() {
	s.conn = nil
	s.connected = false
	s.view.Connection = disconnectedView()
	s.logLocked(LogInfo, "Desconectado del ESP32")
	s.host = ""
	s.emitViewLocked()
}

func (s *Session) readPump(conn Transport) {
	err := conn.ReadLoop(func(data []byte) {
		s.handleFrame(conn, data)
	})

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.logLocked(LogError, "Error en la conexión: "+err.Error())
	}
	s.markDisconnectedLocked()
	s.mu.Unlock()

	conn.Close()
}

// Connected reports whether the connection is open
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// View returns a snapshot of the display elements
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Log returns the newest n log entries, or all of them when n <= 0
func (s *Session) Log(n int) []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.tail(n)
}

// VFOMode returns the last mode the VFO reported
func (s *Session) VFOMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfoMode
}

// Subscribe returns a channel receiving an Event after every state change.
// Events are dropped for subscribers that do not keep up.
func (s *Session) Subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe releases a channel returned by Subscribe
func (s *Session) Unsubscribe(sub <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		if ch == sub {
			delete(s.subscribers, ch)
			close(ch)
			return
		}
	}
}

func (s *Session) emitLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) emitViewLocked() {
	s.emitLocked(Event{Kind: EventView, View: s.view})
}

func (s *Session) logLocked(level LogLevel, text string) {
	entry := LogEntry{Time: time.Now(), Level: level, Text: text}
	s.log.append(entry)

	logger := s.getLogger()
	fields := logger.WithFields(nil)
	if s.host != "" {
		fields = logger.WithFields(logging.Fields{"host": s.host})
	}
	switch level {
	case LogError:
		fields.Errorf("panel", "%s", text)
	case LogWarn:
		fields.Warnf("panel", "%s", text)
	default:
		fields.Infof("panel", "%s", text)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordLog(entry.Time, string(level), text); err != nil {
			logger.Warnf("storage", "Failed to record log line: %v", err)
		}
	}

	s.emitLocked(Event{Kind: EventLog, Entry: &entry, View: s.view})
}

func (s *Session) recordSnapshotLocked(instrument string, payload []byte) {
	if s.recorder == nil || len(payload) == 0 {
		return
	}
	if err := s.recorder.RecordSnapshot(time.Now(), instrument, payload); err != nil {
		s.getLogger().Warnf("storage", "Failed to record %s snapshot: %v", instrument, err)
	}
}

// handleFrame dispatches one inbound frame. Frames from a connection that
// is no longer current are dropped.
func (s *Session) handleFrame(conn Transport, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != conn {
		return
	}
	s.dispatchLocked(data)
}

func (s *Session) dispatchLocked(data []byte) {
	raw := string(data)
	s.logLocked(LogInfo, "Recibido: "+raw)

	env, resp, err := protocol.Decode(data)
	if env == nil {
		s.logLocked(LogWarn, "Mensaje recibido no es JSON: "+raw)
		return
	}
	if err != nil {
		s.logLocked(LogWarn, fmt.Sprintf("Datos inválidos en %s: %v", env.Action, err))
	}

	switch r := resp.(type) {
	case protocol.ScanResult:
		s.logLocked(LogInfo, "Procesando resultado del escaneo I2C...")
		s.view.Scan = scanView(r.Addresses)
		s.recordSnapshotLocked(InstrumentI2C, env.Devices)
		s.emitViewLocked()

	case protocol.VFOResponse:
		if r.State != nil {
			s.renderVFOLocked(r.State)
			s.recordSnapshotLocked(InstrumentVFO, env.Data)
			s.emitViewLocked()
		}

	case protocol.AD9850Response:
		if r.State != nil {
			s.renderAD9850Locked(r.State)
			s.recordSnapshotLocked(InstrumentAD9850, env.Data)
			s.emitViewLocked()
		}

	case protocol.ADF4351Response:
		if r.State != nil {
			s.renderADF4351Locked(r.State)
			s.recordSnapshotLocked(InstrumentADF4351, env.Data)
			s.emitViewLocked()
		}

	case protocol.OscillatorSelected:
		s.logLocked(LogInfo, fmt.Sprintf("Confirmación: Switch RF activado para Oscilador %s.", r.ID))
	}

	if env.IsError() {
		s.logLocked(LogError, "Error desde ESP32: "+env.Message)
	}
}

func (s *Session) renderVFOLocked(st *protocol.VFOState) {
	s.vfoMode = st.Mode
	v := VFOView{
		Frequency: FormatVFOFrequency(int64(st.FrequencyHz)),
		Step:      FormatVFOStep(int64(st.StepHz)),
		Band:      st.BandName,
		Mode:      st.Mode,
		RxTxLabel: RxTxLabel(st.Mode),
	}
	if st.IFKHz != nil {
		v.IF = strconv.FormatInt(*st.IFKHz, 10) + " kHz"
	}
	s.view.VFO = v
}

func (s *Session) renderAD9850Locked(st *protocol.AD9850State) {
	g := &s.view.AD9850
	g.Frequency = FormatFrequency(int64(st.FrequencyHz))
	g.Status, g.StatusClass = enabledStatus(st.Enabled)
	if st.StepHz != 0 {
		g.Step = FormatStep(int64(st.StepHz))
		s.ddsSteps.Sync(int64(st.StepHz))
	}
}

func (s *Session) renderADF4351Locked(st *protocol.ADF4351State) {
	g := &s.view.ADF4351
	g.Frequency = FormatFrequency(int64(st.FrequencyHz))
	g.Status, g.StatusClass = enabledStatus(st.Enabled)
	if st.StepHz != 0 {
		g.Step = FormatStep(int64(st.StepHz))
		s.pllSteps.Sync(int64(st.StepHz))
	}
	g.Power = PowerLabel(st.Power)
	g.PowerSelect = ""
	if st.Power.Known {
		g.PowerSelect = strconv.Itoa(st.Power.Level)
	}
}

// Dispatch processes a frame as if it had arrived on the connection
func (s *Session) Dispatch(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(data)
}

// Send writes a command to the device. Without an open connection the
// command is dropped and ErrNotConnected returned.
func (s *Session) Send(cmd *protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(cmd)
}

func (s *Session) sendLocked(cmd *protocol.Command) error {
	if s.conn == nil || !s.connected {
		s.logLocked(LogWarn, "No conectado. No se pudo enviar el comando.")
		return ErrNotConnected
	}

	data, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	if err := s.conn.Send(data); err != nil {
		s.logLocked(LogError, "Error al enviar: "+err.Error())
		return err
	}
	s.logLocked(LogInfo, "Enviado: "+string(data))
	return nil
}

// reject reports a validation failure through the alert hook
func (s *Session) reject(err error) error {
	var rangeErr *protocol.RangeError
	if !errors.As(err, &rangeErr) {
		return err
	}

	s.mu.Lock()
	alert := s.alert
	logger := s.getLogger()
	s.mu.Unlock()

	logger.Warnf("panel", "Rejected input: %v", err)
	if alert != nil {
		alert(rangeErr.Alert())
	}
	return err
}

// ScanI2C asks the device for the addresses on its I2C bus
func (s *Session) ScanI2C() error {
	return s.Send(protocol.ScanI2C())
}

// SelectOscillator routes the RF switch to oscillator id
func (s *Session) SelectOscillator(id int) error {
	return s.Send(protocol.SelectOscillator(id))
}

// VFOChangeFreq moves the VFO one step in dir
func (s *Session) VFOChangeFreq(dir protocol.Direction) error {
	return s.Send(protocol.VFOChangeFreq(dir))
}

// VFOCycleStep advances the VFO to its next step size
func (s *Session) VFOCycleStep() error {
	return s.Send(protocol.VFOSetStep())
}

// VFOCycleBand advances the VFO to its next band
func (s *Session) VFOCycleBand() error {
	return s.Send(protocol.VFOSetBand())
}

// VFOToggleRxTx requests the mode opposite to the last one reported
func (s *Session) VFOToggleRxTx() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := protocol.ModeRX
	if s.vfoMode == protocol.ModeRX {
		mode = protocol.ModeTX
	}
	return s.sendLocked(protocol.VFOSetRxTx(mode))
}

// VFOSetMode requests an explicit mode, "rx" or "tx"
func (s *Session) VFOSetMode(mode string) error {
	return s.Send(protocol.VFOSetRxTx(mode))
}

// AD9850SetFrequency tunes the DDS after checking the 0..40 MHz range
func (s *Session) AD9850SetFrequency(hz int64) error {
	cmd, err := protocol.AD9850SetFreq(hz)
	if err != nil {
		return s.reject(err)
	}
	return s.Send(cmd)
}

// AD9850Enable turns the DDS output on
func (s *Session) AD9850Enable() error {
	return s.Send(protocol.AD9850Enable())
}

// AD9850Disable turns the DDS output off
func (s *Session) AD9850Disable() error {
	return s.Send(protocol.AD9850Disable())
}

// AD9850ChangeFreq moves the DDS one step in dir
func (s *Session) AD9850ChangeFreq(dir protocol.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.sendLocked(protocol.AD9850ChangeFreq(dir))
	s.logLocked(LogInfo, "Ajustando AD9850: "+signedStep(dir, s.ddsSteps.Current()))
	return err
}

// AD9850CycleStep advances the local DDS step table and sends the new step
func (s *Session) AD9850CycleStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.ddsSteps.Next()
	s.view.AD9850.Step = FormatStep(step)
	s.emitViewLocked()
	err := s.sendLocked(protocol.AD9850SetStep(step))
	s.logLocked(LogInfo, "Paso AD9850 cambiado a: "+FormatStep(step))
	return err
}

// ADF4351SetFrequency tunes the PLL after checking the 35 MHz..4.4 GHz range
func (s *Session) ADF4351SetFrequency(hz int64) error {
	cmd, err := protocol.ADF4351SetFreq(hz)
	if err != nil {
		return s.reject(err)
	}
	return s.Send(cmd)
}

// ADF4351Enable turns the PLL output on
func (s *Session) ADF4351Enable() error {
	return s.Send(protocol.ADF4351Enable())
}

// ADF4351Disable turns the PLL output off
func (s *Session) ADF4351Disable() error {
	return s.Send(protocol.ADF4351Disable())
}

// ADF4351SetPower sets the PLL output power index (0..3)
func (s *Session) ADF4351SetPower(level int) error {
	cmd, err := protocol.ADF4351SetPower(level)
	if err != nil {
		return s.reject(err)
	}
	return s.Send(cmd)
}

// ADF4351ChangeFreq moves the PLL one step in dir
func (s *Session) ADF4351ChangeFreq(dir protocol.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.sendLocked(protocol.ADF4351ChangeFreq(dir))
	s.logLocked(LogInfo, "Ajustando ADF4351: "+signedStep(dir, s.pllSteps.Current()))
	return err
}

// ADF4351CycleStep advances the local PLL step table and sends the new step
func (s *Session) ADF4351CycleStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.pllSteps.Next()
	s.view.ADF4351.Step = FormatStep(step)
	s.emitViewLocked()
	err := s.sendLocked(protocol.ADF4351SetStep(step))
	s.logLocked(LogInfo, "Paso ADF4351 cambiado a: "+FormatStep(step))
	return err
}

// signedStep renders a change_freq adjustment, e.g. "+1 kHz"
func signedStep(dir protocol.Direction, step int64) string {
	if dir == protocol.DirectionUp {
		return "+" + FormatStep(step)
	}
	return "-" + FormatStep(step)
}

// ADF4351ToggleRF flips the PLL RF output
func (s *Session) ADF4351ToggleRF() error {
	return s.Send(protocol.ADF4351ToggleRF())
}

// MoveCarousel shows the next (forward) or previous module of a group
func (s *Session) MoveCarousel(group string, forward bool) (CarouselView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c *Carousel
	switch group {
	case GroupGenerators:
		c = s.generators
	case GroupOscillators:
		c = s.oscillators
	default:
		return CarouselView{}, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}

	if forward {
		c.Next()
	} else {
		c.Prev()
	}

	s.view.Generators = s.generators.view()
	s.view.Oscillators = s.oscillators.view()
	s.emitViewLocked()
	return c.view(), nil
}
