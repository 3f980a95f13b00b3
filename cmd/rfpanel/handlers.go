package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agemfal/Instrumento-virtual/pkg/console"
	"github.com/agemfal/Instrumento-virtual/pkg/device"
	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	"github.com/agemfal/Instrumento-virtual/pkg/panel"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
	"github.com/agemfal/Instrumento-virtual/pkg/storage"
)

const eventWriteWait = 5 * time.Second

// respondError maps session errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	var rangeErr *protocol.RangeError
	switch {
	case errors.As(err, &rangeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": rangeErr.Alert()})
	case errors.Is(err, panel.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, panel.ErrNoHost):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, panel.ErrUnknownGroup):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (d *PanelDaemon) respondSent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "sent",
		"view":   d.session.View(),
	})
}

// action wraps a session method that takes no arguments
func (d *PanelDaemon) action(fn func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(); err != nil {
			respondError(c, err)
			return
		}
		d.respondSent(c)
	}
}

// direction wraps a change_freq session method
func (d *PanelDaemon) direction(fn func(protocol.Direction) error, dir protocol.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(dir); err != nil {
			respondError(c, err)
			return
		}
		d.respondSent(c)
	}
}

// handleGetStatus returns the connection state and the display elements
func (d *PanelDaemon) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "running",
		"version":   Version,
		"connected": d.session.Connected(),
		"vfo_mode":  d.session.VFOMode(),
		"history":   d.history != nil,
		"view":      d.session.View(),
	})
}

// handleConnect opens the device connection. An empty ip falls back to the
// configured host.
func (d *PanelDaemon) handleConnect(c *gin.Context) {
	var req struct {
		IP string `json:"ip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := d.session.Connect(c.Request.Context(), req.IP); err != nil {
		switch {
		case errors.Is(err, panel.ErrNoHost):
			respondError(c, err)
		case errors.Is(err, panel.ErrConnectCanceled), errors.Is(err, panel.ErrClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "connected",
		"connection": d.session.View().Connection,
	})
}

// handleDisconnect closes the device connection
func (d *PanelDaemon) handleDisconnect(c *gin.Context) {
	if err := d.session.Disconnect(); err != nil {
		logging.Warnf("daemon", "Disconnect: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "disconnected",
		"connection": d.session.View().Connection,
	})
}

// handleGetLog returns the newest panel log lines
func (d *PanelDaemon) handleGetLog(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		limit = 50
	}

	entries := d.session.Log(limit)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"lines":   lines,
		"count":   len(entries),
	})
}

// handleGetHistory returns stored instrument snapshots
func (d *PanelDaemon) handleGetHistory(c *gin.Context) {
	if d.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	snapshots, err := d.history.GetSnapshots(storage.SnapshotQuery{
		Instrument: c.Query("instrument"),
		Limit:      limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// handleGetHistoryStats returns the history store counters
func (d *PanelDaemon) handleGetHistoryStats(c *gin.Context) {
	if d.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage disabled"})
		return
	}

	stats, err := d.history.GetHistoryStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	instruments, err := d.history.GetInstruments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logCount, err := d.history.GetLogCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	snapshotCount, err := d.history.GetSnapshotCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":          stats,
		"instruments":    instruments,
		"log_count":      logCount,
		"snapshot_count": snapshotCount,
	})
}

// handleGetHistoryLog searches the stored panel log.
// Query: level, search, since and until (RFC3339), limit, offset.
func (d *PanelDaemon) handleGetHistoryLog(c *gin.Context) {
	if d.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage disabled"})
		return
	}

	query := storage.LogQuery{
		Limit:  50,
		Level:  c.Query("level"),
		Search: c.Query("search"),
	}
	switch query.Level {
	case "", "info", "warn", "error":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "level must be info, warn or error"})
		return
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			query.Limit = limit
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			query.Offset = offset
		}
	}
	for _, bound := range []struct {
		name   string
		target **time.Time
	}{{"since", &query.Since}, {"until", &query.Until}} {
		raw := c.Query(bound.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + bound.name + ": " + err.Error()})
			return
		}
		*bound.target = &parsed
	}

	records, err := d.history.GetLogEntries(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": records,
		"count":   len(records),
	})
}

// handleGetLatestSnapshot returns the newest stored state of one instrument
func (d *PanelDaemon) handleGetLatestSnapshot(c *gin.Context) {
	if d.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage disabled"})
		return
	}

	snap, err := d.history.LatestSnapshot(c.Param("instrument"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot stored for " + c.Param("instrument")})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleSelectOscillator routes the RF switch
func (d *PanelDaemon) handleSelectOscillator(c *gin.Context) {
	var req struct {
		ID *int `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.ID < 0 || *req.ID > device.MaxOscillatorID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "oscillator id out of range"})
		return
	}

	if err := d.session.SelectOscillator(*req.ID); err != nil {
		respondError(c, err)
		return
	}
	d.respondSent(c)
}

// handleFrequency accepts {"frequency_hz": 7100000} or {"frequency": "7.1m"}
func (d *PanelDaemon) handleFrequency(set func(int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			FrequencyHz *int64 `json:"frequency_hz"`
			Frequency   string `json:"frequency"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var hz int64
		switch {
		case req.FrequencyHz != nil:
			hz = *req.FrequencyHz
		case req.Frequency != "":
			parsed, err := console.ParseFrequency(req.Frequency)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			hz = parsed
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "frequency_hz or frequency is required"})
			return
		}

		if err := set(hz); err != nil {
			respondError(c, err)
			return
		}
		d.respondSent(c)
	}
}

// handleSetPower sets the ADF4351 output power index
func (d *PanelDaemon) handleSetPower(c *gin.Context) {
	var req struct {
		Level *int `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := d.session.ADF4351SetPower(*req.Level); err != nil {
		respondError(c, err)
		return
	}
	d.respondSent(c)
}

// handleCarousel moves a module carousel one position
func (d *PanelDaemon) handleCarousel(forward bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := d.session.MoveCarousel(c.Param("group"), forward)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsWebSocket streams session events to a browser. The current
// view is sent first.
func (d *PanelDaemon) handleEventsWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("daemon", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := d.session.Subscribe()
	defer d.session.Unsubscribe(events)

	logging.Debug("daemon", "Event WebSocket client connected")

	// The browser sends nothing; reading detects the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, panel.Event{Kind: panel.EventView, View: d.session.View()}); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				logging.Debugf("daemon", "Event WebSocket write error: %v", err)
				return
			}
		case <-done:
			logging.Debug("daemon", "Event WebSocket client disconnected")
			return
		case <-d.ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev panel.Event) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(ev)
}
