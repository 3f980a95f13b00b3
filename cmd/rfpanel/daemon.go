package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agemfal/Instrumento-virtual/pkg/config"
	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	"github.com/agemfal/Instrumento-virtual/pkg/panel"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
	"github.com/agemfal/Instrumento-virtual/pkg/storage"
)

// PanelDaemon serves one panel session to browsers
type PanelDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	session   *panel.Session
	history   *storage.HistoryStore
	router    *gin.Engine
	webServer *http.Server
}

// NewPanelDaemon creates a daemon with a disconnected session. The history
// store is opened only when a database path is configured.
func NewPanelDaemon(cfg *config.Config) (*PanelDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	daemon := &PanelDaemon{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		session: panel.NewSession(cfg),
	}

	daemon.session.SetAlertHandler(func(text string) {
		logging.Warn("panel", "Alerta: "+text)
	})

	if cfg.Storage.DatabasePath != "" {
		history, err := storage.NewHistoryStore(cfg.Storage.DatabasePath, cfg.Storage.MaxEntries)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		daemon.history = history
		daemon.session.SetRecorder(history)
		logging.Infof("storage", "Recording history to %s", cfg.Storage.DatabasePath)
	}

	daemon.setupWebServer()
	return daemon, nil
}

// Start starts the web server
func (d *PanelDaemon) Start() error {
	logging.Info("daemon", "Starting rfpanel daemon...")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("daemon", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("daemon", "Web server error: %v", err)
		}
	}()

	if d.history != nil {
		d.wg.Add(1)
		go d.historyJanitor()
	}

	return nil
}

// Stop shuts the web server down, closes the device session and the
// history store
func (d *PanelDaemon) Stop() error {
	logging.Info("daemon", "Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Errorf("daemon", "Web server shutdown error: %v", err)
		}
	}

	if err := d.session.Close(); err != nil {
		logging.Warnf("daemon", "Session close error: %v", err)
	}

	d.wg.Wait()

	if d.history != nil {
		if err := d.history.Close(); err != nil {
			logging.Errorf("daemon", "History store close error: %v", err)
		}
	}

	logging.Info("daemon", "Daemon stopped")
	return nil
}

// setupWebServer initializes the router and the HTTP server
func (d *PanelDaemon) setupWebServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.POST("/connect", d.handleConnect)
		api.POST("/disconnect", d.handleDisconnect)
		api.GET("/log", d.handleGetLog)
		api.GET("/history", d.handleGetHistory)
		api.GET("/history/stats", d.handleGetHistoryStats)
		api.GET("/history/log", d.handleGetHistoryLog)
		api.GET("/history/latest/:instrument", d.handleGetLatestSnapshot)

		api.POST("/scan", d.action(d.session.ScanI2C))
		api.POST("/oscillator", d.handleSelectOscillator)

		vfo := api.Group("/vfo")
		vfo.POST("/up", d.direction(d.session.VFOChangeFreq, protocol.DirectionUp))
		vfo.POST("/down", d.direction(d.session.VFOChangeFreq, protocol.DirectionDown))
		vfo.POST("/step", d.action(d.session.VFOCycleStep))
		vfo.POST("/band", d.action(d.session.VFOCycleBand))
		vfo.POST("/rxtx", d.action(d.session.VFOToggleRxTx))

		dds := api.Group("/ad9850")
		dds.POST("/frequency", d.handleFrequency(d.session.AD9850SetFrequency))
		dds.POST("/enable", d.action(d.session.AD9850Enable))
		dds.POST("/disable", d.action(d.session.AD9850Disable))
		dds.POST("/up", d.direction(d.session.AD9850ChangeFreq, protocol.DirectionUp))
		dds.POST("/down", d.direction(d.session.AD9850ChangeFreq, protocol.DirectionDown))
		dds.POST("/step", d.action(d.session.AD9850CycleStep))

		pll := api.Group("/adf4351")
		pll.POST("/frequency", d.handleFrequency(d.session.ADF4351SetFrequency))
		pll.POST("/enable", d.action(d.session.ADF4351Enable))
		pll.POST("/disable", d.action(d.session.ADF4351Disable))
		pll.POST("/up", d.direction(d.session.ADF4351ChangeFreq, protocol.DirectionUp))
		pll.POST("/down", d.direction(d.session.ADF4351ChangeFreq, protocol.DirectionDown))
		pll.POST("/step", d.action(d.session.ADF4351CycleStep))
		pll.POST("/power", d.handleSetPower)
		pll.POST("/toggle_rf", d.action(d.session.ADF4351ToggleRF))

		api.POST("/carousel/:group/next", d.handleCarousel(true))
		api.POST("/carousel/:group/prev", d.handleCarousel(false))
	}

	router.GET("/ws", d.handleEventsWebSocket)

	d.router = router
	d.webServer = &http.Server{
		Addr:    d.config.GetWebAddress(),
		Handler: router,
	}
}

// historyJanitor trims the history tables once an hour
func (d *PanelDaemon) historyJanitor() {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.history.CleanupOldEntries(); err != nil {
				logging.Warnf("storage", "History cleanup failed: %v", err)
			}
		}
	}
}
