// Package client implements the client side of the session hub: a connector
// that owns one logical connection, reconnects with backoff and detects
// half-open sockets with a heartbeat.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/commhub/backend/internal/backoff"
	"github.com/commhub/backend/internal/ws"
)

// State tracks the connector lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateRecovering
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRecovering:
		return "recovering"
	}
	return "unknown"
}

const (
	// defaultDialTimeout bounds one connection attempt; not reaching the
	// open state within it counts as a failure like any transport error.
	defaultDialTimeout = 5 * time.Second

	// defaultHeartbeatInterval is the outbound ping period once open.
	defaultHeartbeatInterval = 30 * time.Second

	// defaultMaxMissedPings is how many silent heartbeat intervals are
	// tolerated before the socket is declared half-open.
	defaultMaxMissedPings = 3

	// writeWait bounds one write on the transport.
	writeWait = 10 * time.Second
)

// Config holds the connector's tunables.
type Config struct {
	URL               string
	SessionID         string // optional: reattach a previous logical session
	DialTimeout       time.Duration
	HeartbeatInterval time.Duration
	MaxMissedPings    int
	Backoff           backoff.Config
}

// Connector owns a single logical connection to the hub. Connection attempts
// run through a backoff scheduler whose single-flight rule guarantees only
// one reconnect is in flight at a time; heartbeat sending and message
// receipt run concurrently with state changes.
type Connector struct {
	cfg       Config
	scheduler *backoff.Scheduler

	// OnMessage receives every decoded non-control frame.
	OnMessage func(msg *ws.Message)

	// OnStateChange is notified after each lifecycle transition.
	OnStateChange func(state State)

	mu            sync.Mutex
	state         State
	conn          *websocket.Conn
	sessionID     string
	lastInbound   time.Time
	stopHeartbeat chan struct{}
	manual        bool // set by Disconnect; the only bar to auto-reconnect

	writeMu sync.Mutex // serializes writes on the live transport
}

// New creates a connector. Zero config fields fall back to the defaults.
func New(cfg Config) *Connector {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.MaxMissedPings <= 0 {
		cfg.MaxMissedPings = defaultMaxMissedPings
	}
	return &Connector{
		cfg:       cfg,
		scheduler: backoff.New(cfg.Backoff),
		state:     StateIdle,
		sessionID: cfg.SessionID,
	}
}

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the logical session identity, once known. The server
// mints one and delivers it in the welcome frame if none was supplied.
func (c *Connector) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Connector) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	callback := c.OnStateChange
	c.mu.Unlock()

	if callback != nil {
		callback(state)
	}
}

// Connect establishes the connection, retrying with backoff. It is a no-op
// when already open or connecting, and re-arms a connector that was
// previously disconnected. After the attempt cap is exhausted, the last
// dial error is surfaced; the caller owns the terminal "please reload"
// experience.
func (c *Connector) Connect() error {
	return c.connect(true)
}

func (c *Connector) connect(explicit bool) error {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if !explicit && c.manual {
		c.mu.Unlock()
		return nil
	}
	if explicit {
		c.manual = false
		c.scheduler.Reset()
	}
	c.state = StateConnecting
	callback := c.OnStateChange
	c.mu.Unlock()
	if callback != nil {
		callback(StateConnecting)
	}

	err := c.scheduler.Execute(context.Background(), c.dial, func(attempt int, delay time.Duration, err error) {
		log.Printf("Connection attempt %d failed, retrying in %s: %v", attempt, delay, err)
	})
	if errors.Is(err, backoff.ErrAlreadyExecuting) {
		// Another reconnect is already in flight; defer to it.
		return nil
	}
	if err != nil {
		c.setState(StateIdle)
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.scheduler.Reset()
	return nil
}

// dial performs one connection attempt.
func (c *Connector) dial(_ context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.Dial(target, nil)
	if err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error {
		c.touchInbound()
		return nil
	})

	stop := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.lastInbound = time.Now()
	c.stopHeartbeat = stop
	callback := c.OnStateChange
	c.mu.Unlock()
	if callback != nil {
		callback(StateOpen)
	}

	go c.readLoop(conn)
	go c.heartbeat(conn, stop)

	return nil
}

// dialURL appends the sessionId parameter when a previous identity exists.
func (c *Connector) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid hub URL: %w", err)
	}
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID != "" {
		q := u.Query()
		q.Set("sessionId", sessionID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Connector) touchInbound() {
	c.mu.Lock()
	c.lastInbound = time.Now()
	c.mu.Unlock()
}

// readLoop receives frames until the transport fails, then classifies the
// closure and recovers if it was not a deliberate disconnect.
func (c *Connector) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		c.touchInbound()

		msg, derr := ws.DecodeMessage(raw)
		if derr != nil {
			log.Printf("Dropping malformed frame from hub: %v", derr)
			continue
		}

		switch msg.Type {
		case ws.MessageTypeWelcome:
			c.mu.Lock()
			c.sessionID = msg.SessionID
			c.mu.Unlock()
		case ws.MessageTypePing:
			c.writeMessage(conn, ws.NewPong())
			continue
		case ws.MessageTypePong:
			continue
		}

		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

// handleClose tears down the failed transport and schedules a reconnect
// unless the closure was normal or deliberate.
func (c *Connector) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.stopHeartbeat != nil {
			close(c.stopHeartbeat)
			c.stopHeartbeat = nil
		}
	}
	manual := c.manual
	c.mu.Unlock()

	conn.Close()

	if manual || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.setState(StateIdle)
		return
	}

	log.Printf("Connection lost, recovering: %v", err)
	c.setState(StateRecovering)
	go c.connect(false)
}

// heartbeat pings the hub on a fixed interval and force-closes the socket
// once too many intervals pass without any inbound traffic. The forced
// close surfaces in the read loop, which drives the reconnect.
func (c *Connector) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			silent := time.Since(c.lastInbound)
			c.mu.Unlock()

			if silent > c.cfg.HeartbeatInterval*time.Duration(c.cfg.MaxMissedPings) {
				log.Printf("No traffic for %s, forcing reconnect", silent.Round(time.Second))
				conn.Close()
				return
			}

			if err := c.writeMessage(conn, &ws.Message{Type: ws.MessageTypePing, Timestamp: time.Now().UnixMilli()}); err != nil {
				return
			}

		case <-stop:
			return
		}
	}
}

// Send delivers a message to the hub. The transport state is checked just
// before the write; a message is never sent on a transport that has since
// closed.
func (c *Connector) Send(msg *ws.Message) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		return errors.New("client: not connected")
	}
	return c.writeMessage(conn, msg)
}

func (c *Connector) writeMessage(conn *websocket.Conn, msg *ws.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, ws.EncodeMessage(msg))
}

// Disconnect deliberately tears the connection down: it cancels any
// in-flight backoff wait, stops the heartbeat, closes the transport with a
// normal code and bars auto-reconnect until the next explicit Connect.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	c.manual = true
	conn := c.conn
	c.conn = nil
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	c.mu.Unlock()

	c.scheduler.Cancel()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}

	c.setState(StateIdle)
}

// NotifyOnline signals that the environment regained connectivity (the
// process-level stand-in for a page becoming visible or the network coming
// back). It triggers a reconnect when disconnected, unless Disconnect was
// deliberate.
func (c *Connector) NotifyOnline() {
	c.mu.Lock()
	state := c.state
	manual := c.manual
	c.mu.Unlock()

	if manual || state == StateOpen || state == StateConnecting {
		return
	}
	go c.connect(false)
}
