package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPort is the port the ESP32 firmware serves its WebSocket on
const DefaultPort = 81

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned by Send after the connection was closed
var ErrClosed = errors.New("connection closed")

// DeviceURL builds the ws:// URL of a device
func DeviceURL(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}

// Conn is a WebSocket connection to a device. Frames are read by a single
// goroutine (ReadLoop), so they are delivered in arrival order. Writes are
// serialized by a mutex.
type Conn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once

	closed bool
}

// Dial opens a WebSocket connection to url
func Dial(ctx context.Context, url string, timeout time.Duration) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Proxy:            nil,
	}

	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	ws.SetReadLimit(maxMessageSize)
	return &Conn{ws: ws}, nil
}

// Send writes one text frame
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send error: %w", err)
	}
	return nil
}

// ReadLoop calls onMessage for every text frame until the connection
// ends. It returns nil after a normal close and the read error otherwise.
func (c *Conn) ReadLoop(onMessage func([]byte)) error {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		onMessage(data)
	}
}

// Close sends a close frame and closes the socket. It is safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
