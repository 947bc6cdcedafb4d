package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// Handler accepts transports and runs the per-connection read/write pumps.
// Inbound frames pass through the codec, then the dedup filter, then the
// collaborator; the optional reply goes back out through the router.
type Handler struct {
	registry     *Registry
	dedup        *DedupFilter
	router       *Router
	collaborator Collaborator
	recorder     ActivityRecorder
}

// NewHandler creates a handler over the shared hub state.
func NewHandler(registry *Registry, dedup *DedupFilter, router *Router, collaborator Collaborator, recorder ActivityRecorder) *Handler {
	if collaborator == nil {
		collaborator = noopCollaborator{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Handler{
		registry:     registry,
		dedup:        dedup,
		router:       router,
		collaborator: collaborator,
		recorder:     recorder,
	}
}

// HandleConnection upgrades the HTTP request, registers the session and
// starts the pumps. A client-supplied sessionId query parameter reattaches
// the same logical session identity after a reconnect.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	sessionID := r.URL.Query().Get("sessionId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sess := h.registry.Attach(conn, sessionID)

	go h.writePump(sess)
	go h.readPump(sess)

	h.router.SendToOne(sess, NewWelcome(sess.ID()))
	h.recorder.RecordActivity(r.Context(), "hub", "session_attached", "ok", sess.ID())

	return nil
}

// readPump pumps frames from the transport through decode, dedup and the
// collaborator. A malformed frame gets an error reply and the connection
// stays open; only a transport failure ends the loop.
func (h *Handler) readPump(sess *Session) {
	defer func() {
		sess.Close()
		h.registry.Remove(sess)
		sess.Terminate()
	}()

	conn := sess.Conn()
	conn.SetReadLimit(maxMessageSize)

	// Transport-level ping/pong refreshes liveness without passing through
	// validation or deduplication.
	conn.SetPongHandler(func(string) error {
		sess.Touch()
		return nil
	})
	pingHandler := conn.PingHandler()
	conn.SetPingHandler(func(appData string) error {
		sess.Touch()
		return pingHandler(appData)
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Session %s read error: %v", sess.ID(), err)
			}
			return
		}

		sess.Touch()

		msg, err := DecodeMessage(raw)
		if err != nil {
			log.Printf("Session %s rejected frame: %v", sess.ID(), err)
			h.router.SendToOne(sess, NewError(err.Error()))
			continue
		}

		// Frames rarely carry their own sessionId; stamp it so the dedup
		// key stays scoped to this session.
		if msg.SessionID == "" {
			msg.SessionID = sess.ID()
		}

		if msg.Type == MessageTypePing {
			h.router.SendToOne(sess, NewPong())
			continue
		}
		if msg.Type == MessageTypePong {
			continue
		}

		if h.dedup.IsDuplicate(msg) {
			// Normal dedup outcome, not an error.
			continue
		}

		h.dispatch(sess, msg)
	}
}

// dispatch hands the message to the collaborator off the read loop and
// routes the optional reply. The hub's responsibility ends at routing.
func (h *Handler) dispatch(sess *Session, msg *Message) {
	go func() {
		reply, err := h.collaborator.Handle(context.Background(), sess.ID(), msg)
		if err != nil {
			log.Printf("Handler failed for session %s: %v", sess.ID(), err)
			h.router.SendToOne(sess, NewError("failed to process message"))
			return
		}
		if reply != nil {
			h.router.SendToOne(sess, reply)
		}
	}()
}

// writePump is the only goroutine that writes to the transport. It drains
// the session's send queue, emits liveness probes on request, and sends the
// close frame when the session shuts down.
func (h *Handler) writePump(sess *Session) {
	conn := sess.Conn()
	defer conn.Close()

	for {
		select {
		case data, ok := <-sess.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Graceful close: tell the peer, then let the read pump
				// (or the forced-teardown timer) finish the job.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-sess.probe:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
