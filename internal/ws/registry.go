package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionState tracks a session's transport lifecycle.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state name for logging.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// closeGrace is how long a graceful close may take before the transport is
// torn down forcibly.
const closeGrace = 2 * time.Second

// Session is one live client connection. The transport handle is owned
// exclusively by this entry; all writes go through the send and probe
// channels so a single writer goroutine touches the connection.
type Session struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	probe chan struct{}

	mu           sync.Mutex
	state        SessionState
	sendClosed   bool
	lastLiveness time.Time
}

// NewSession wraps an accepted transport. A session starts in the
// connecting state and is opened by the registry once registered.
func NewSession(id string, conn *websocket.Conn) *Session {
	return &Session{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, 256),
		probe:        make(chan struct{}, 1),
		state:        StateConnecting,
		lastLiveness: time.Now(),
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	return s.id
}

// Conn returns the underlying transport handle.
func (s *Session) Conn() *websocket.Conn {
	return s.conn
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = state
}

// Touch refreshes the liveness timestamp. Called on every inbound frame,
// including transport-level pings and pongs.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLiveness = time.Now()
}

// LastLiveness returns the time of the last inbound traffic.
func (s *Session) LastLiveness() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLiveness
}

// Send queues data for delivery. It returns false without blocking when the
// session is not open or the outbound buffer is full; a full buffer closes
// the session, as a client that cannot drain its queue is as good as gone.
// The lock is held across the channel send so it never races a close.
func (s *Session) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return false
	}

	select {
	case s.send <- data:
		return true
	default:
		s.closeLocked()
		return false
	}
}

// Probe requests a transport-level ping from the writer goroutine. It does
// not refresh the liveness timestamp; only a response does.
func (s *Session) Probe() {
	if s.State() != StateOpen {
		return
	}
	select {
	case s.probe <- struct{}{}:
	default:
	}
}

// Close starts a graceful shutdown: the send channel is closed so the writer
// goroutine emits a close frame, and a forced teardown fires if the peer
// does not complete the handshake in time. Idempotent and safe to call on a
// transport in any state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.state == StateClosing || s.state == StateClosed {
		return
	}
	s.state = StateClosing
	s.closeSendLocked()

	time.AfterFunc(closeGrace, s.Terminate)
}

// closeSendLocked closes the outbound channel exactly once so the writer
// goroutine drains and exits.
func (s *Session) closeSendLocked() {
	if s.sendClosed {
		return
	}
	s.sendClosed = true
	close(s.send)
}

// Terminate tears the transport down immediately. Errors from an already
// dead transport are swallowed.
func (s *Session) Terminate() {
	s.mu.Lock()
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	s.closeSendLocked()
	s.mu.Unlock()

	if alreadyClosed {
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Registry is the server-side map of live sessions. It is owned by the
// service for the process lifetime and is the only path to the shared
// session state, so concurrency control stays in one place.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Attach registers an accepted transport. A client-supplied sessionID
// reattaches the same logical identity after a reconnect, displacing any
// stale transport still registered under it; an empty ID mints a new one.
func (r *Registry) Attach(conn *websocket.Conn, sessionID string) *Session {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	sess := NewSession(sessionID, conn)

	r.mu.Lock()
	prev := r.sessions[sessionID]
	r.sessions[sessionID] = sess
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	sess.setState(StateOpen)
	return sess
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove drops the session from the registry. Idempotent; a reattached
// session that has taken over the same ID is left alone.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	if current, ok := r.sessions[sess.ID()]; ok && current == sess {
		delete(r.sessions, sess.ID())
	}
	r.mu.Unlock()
}

// Snapshot returns the currently registered sessions.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close shuts down every registered session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
