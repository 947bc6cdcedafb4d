package ws

import "log"

// Router delivers encoded messages to one or all live sessions. Every
// outbound message goes through the encoder, so a serialization failure
// degrades to an error frame instead of taking down the sender.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over the registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// SendToOne delivers a message to a single session. It returns false when
// the session's transport is not open or its buffer is full; never an error,
// never a panic.
func (rt *Router) SendToOne(sess *Session, msg *Message) bool {
	if sess == nil {
		return false
	}
	return sess.Send(EncodeMessage(msg))
}

// SendTo delivers a message to the session registered under sessionID.
func (rt *Router) SendTo(sessionID string, msg *Message) bool {
	sess, ok := rt.registry.Get(sessionID)
	if !ok {
		return false
	}
	return rt.SendToOne(sess, msg)
}

// BroadcastAll delivers a message to every registered session and returns
// the number of successful sends. Per-session failures are logged and do
// not stop delivery to the rest; partial success is the normal outcome.
func (rt *Router) BroadcastAll(msg *Message) int {
	data := EncodeMessage(msg)

	count := 0
	for _, sess := range rt.registry.Snapshot() {
		if sess.Send(data) {
			count++
		} else {
			log.Printf("Broadcast skipped session %s (state %s)", sess.ID(), sess.State())
		}
	}
	return count
}
