package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/agemfal/Instrumento-virtual/pkg/logging"
	"github.com/agemfal/Instrumento-virtual/pkg/protocol"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes a Device over WebSocket at "/". Each command is answered
// to its sender only.
type Server struct {
	device     *Device
	httpServer *http.Server
	listener   net.Listener

	mutex   sync.Mutex
	clients map[*websocket.Conn]struct{}
	running bool
}

// NewServer creates a server for device
func NewServer(device *Device) *Server {
	return &Server{
		device:  device,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", s)

	s.mutex.Lock()
	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}
	s.running = true
	s.mutex.Unlock()

	logging.Infof("device", "Simulator listening on ws://%s/", listener.Addr())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("device", "Simulator server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and closes the open ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	s.running = false
	srv := s.httpServer
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.mutex.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP upgrades the request and serves one panel connection
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("device", "WebSocket upgrade failed: %v", err)
		return
	}

	s.mutex.Lock()
	s.clients[conn] = struct{}{}
	s.mutex.Unlock()

	s.handleConnection(conn)
}

// handleConnection sends the VFO state on connect, then answers frames
// until the peer goes away
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer func() {
		s.mutex.Lock()
		delete(s.clients, conn)
		s.mutex.Unlock()
		conn.Close()
	}()

	logging.Infof("device", "Client connected from %s", conn.RemoteAddr())

	if err := writeReply(conn, s.device.HandleCommand(&protocol.Command{Action: protocol.ActionVFO})); err != nil {
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debugf("device", "Read error: %v", err)
			}
			logging.Infof("device", "Client %s disconnected", conn.RemoteAddr())
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		logging.Debugf("device", "Received: %s", data)
		if err := writeReply(conn, s.device.HandleFrame(data)); err != nil {
			return
		}
	}
}

func writeReply(conn *websocket.Conn, reply *protocol.Reply) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(reply.String())); err != nil {
		logging.Warnf("device", "Write error: %v", err)
		return err
	}
	return nil
}
