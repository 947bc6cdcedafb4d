package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	MessageTypeChat         MessageType = "chat"
	MessageTypeStatus       MessageType = "status"
	MessageTypeWelcome      MessageType = "welcome"
	MessageTypeError        MessageType = "error"
	MessageTypeModuleStatus MessageType = "moduleStatus"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
)

var (
	// ErrMalformedFrame is returned when a frame is not valid JSON.
	ErrMalformedFrame = errors.New("ws: malformed frame")

	// ErrMissingType is returned when a frame has no type field.
	ErrMissingType = errors.New("ws: missing message type")

	// ErrUnknownType is returned when a frame carries an unrecognized type.
	ErrUnknownType = errors.New("ws: unknown message type")

	// ErrMissingField is returned when a required type-specific field is absent.
	ErrMissingField = errors.New("ws: missing required field")
)

// Message is one frame on the wire, tagged by Type. Only the fields required
// by the type are guaranteed to be set; everything else is optional.
type Message struct {
	Type      MessageType     `json:"type"`
	Message   string          `json:"message,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	ModuleID  string          `json:"moduleId,omitempty"`
	Status    string          `json:"status,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// NewWelcome builds the server greeting carrying the assigned session ID.
func NewWelcome(sessionID string) *Message {
	return &Message{
		Type:      MessageTypeWelcome,
		SessionID: sessionID,
		Timestamp: nowMillis(),
	}
}

// NewError builds an error-typed message with the given description.
func NewError(text string) *Message {
	return &Message{
		Type:      MessageTypeError,
		Message:   text,
		Timestamp: nowMillis(),
	}
}

// NewPong builds the reply to an explicit ping message.
func NewPong() *Message {
	return &Message{
		Type:      MessageTypePong,
		Timestamp: nowMillis(),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// knownTypes is the closed set of accepted message kinds.
var knownTypes = map[MessageType]bool{
	MessageTypeChat:         true,
	MessageTypeStatus:       true,
	MessageTypeWelcome:      true,
	MessageTypeError:        true,
	MessageTypeModuleStatus: true,
	MessageTypePing:         true,
	MessageTypePong:         true,
}

// DecodeMessage parses an untrusted frame into a Message.
//
// The pipeline is: syntactic parse, type check against the closed kind set,
// then kind-specific required-field checks. Unknown JSON fields are dropped
// by the struct decode rather than carried along. A frame without a timestamp
// is stamped with the receive time. Any failure yields a descriptive error
// and never a panic; the caller decides whether to reply or drop.
func DecodeMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if msg.Type == "" {
		return nil, ErrMissingType
	}
	if !knownTypes[msg.Type] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if msg.Timestamp == 0 {
		msg.Timestamp = nowMillis()
	}

	return &msg, nil
}

// Validate checks the type-specific required fields.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeChat:
		if m.Message == "" {
			return fmt.Errorf("%w: chat requires message", ErrMissingField)
		}
	case MessageTypeStatus, MessageTypeModuleStatus:
		if m.ModuleID == "" {
			return fmt.Errorf("%w: %s requires moduleId", ErrMissingField, m.Type)
		}
		if m.Status == "" {
			return fmt.Errorf("%w: %s requires status", ErrMissingField, m.Type)
		}
	case MessageTypeWelcome:
		if m.SessionID == "" {
			return fmt.Errorf("%w: welcome requires sessionId", ErrMissingField)
		}
	case MessageTypeError, MessageTypePing, MessageTypePong:
		// No required fields beyond the type itself.
	}
	return nil
}

// EncodeMessage serializes a Message for the wire. It never fails: if the
// message cannot be marshaled (e.g. a Details payload holding invalid raw
// JSON), it degrades to a minimal error-typed frame instead.
func EncodeMessage(msg *Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		fallback := Message{
			Type:      MessageTypeError,
			Message:   "failed to encode message",
			Timestamp: nowMillis(),
		}
		data, _ = json.Marshal(&fallback)
	}
	return data
}
