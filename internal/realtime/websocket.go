package realtime

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSOptions controls socket deadlines and limits.
type WSOptions struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
}

func (o WSOptions) withDefaults() WSOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4096
	}
	return o
}

// pingInterval must stay below the pong timeout so a healthy peer never
// trips the read deadline.
func (o WSOptions) pingInterval() time.Duration {
	return o.PongTimeout * 9 / 10
}

// NewUpgrader builds an upgrader that accepts the listed origins. With no
// list configured, gorilla's same-origin check applies.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) == 0 {
		return u
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}
	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
	return u
}

// WSConn adapts a gorilla websocket to Conn. Writes are serialized and bounded
// by the write timeout.
type WSConn struct {
	id   string
	ws   *websocket.Conn
	opts WSOptions

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewWSConn wraps an upgraded socket and assigns it a fresh connection id.
func NewWSConn(ws *websocket.Conn, opts WSOptions) *WSConn {
	return &WSConn{
		id:   uuid.NewString(),
		ws:   ws,
		opts: opts.withDefaults(),
		done: make(chan struct{}),
	}
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) Send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Run reads client frames until the peer goes away or the connection is
// closed, passing each text frame to handle. A keepalive ping is sent on a
// ticker; a peer that stops answering is timed out by the read deadline.
func (c *WSConn) Run(handle func(frame []byte)) error {
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	go c.keepalive()

	for {
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			if isExpectedClose(err) {
				return nil
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		// Any client frame also counts as liveness.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		handle(frame)
	}
}

func (c *WSConn) keepalive() {
	ticker := time.NewTicker(c.opts.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
