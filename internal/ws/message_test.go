package ws

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeMessageValidKinds(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want MessageType
	}{
		{"chat", `{"type":"chat","message":"hi"}`, MessageTypeChat},
		{"status", `{"type":"status","moduleId":"whatsapp","status":"connected"}`, MessageTypeStatus},
		{"moduleStatus", `{"type":"moduleStatus","moduleId":"email","status":"degraded"}`, MessageTypeModuleStatus},
		{"welcome", `{"type":"welcome","sessionId":"s1"}`, MessageTypeWelcome},
		{"error", `{"type":"error","message":"boom"}`, MessageTypeError},
		{"ping", `{"type":"ping"}`, MessageTypePing},
		{"pong", `{"type":"pong"}`, MessageTypePong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Failed to decode %s: %v", tc.raw, err)
			}
			if msg.Type != tc.want {
				t.Errorf("Expected type %s, got %s", tc.want, msg.Type)
			}
			if msg.Timestamp == 0 {
				t.Error("Decoded message should carry a timestamp")
			}
		})
	}
}

func TestDecodeMessageRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{{{`, ErrMalformedFrame},
		{"missing type", `{"message":"hi"}`, ErrMissingType},
		{"unknown type", `{"type":"shutdown"}`, ErrUnknownType},
		{"chat without message", `{"type":"chat"}`, ErrMissingField},
		{"status without moduleId", `{"type":"status","status":"up"}`, ErrMissingField},
		{"status without status", `{"type":"status","moduleId":"calendar"}`, ErrMissingField},
		{"moduleStatus without status", `{"type":"moduleStatus","moduleId":"ai"}`, ErrMissingField},
		{"welcome without sessionId", `{"type":"welcome"}`, ErrMissingField},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tc.raw))
			if err == nil {
				t.Fatalf("Expected rejection for %s", tc.raw)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecodeMessageDropsUnknownFields(t *testing.T) {
	raw := `{"type":"chat","message":"hi","__proto__":{"x":1},"rogue":"field"}`

	msg, err := DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	data := EncodeMessage(msg)
	if strings.Contains(string(data), "rogue") {
		t.Errorf("Unknown field propagated into encoded output: %s", data)
	}
}

func TestDecodeMessagePreservesTimestamp(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"chat","message":"hi","timestamp":1234}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if msg.Timestamp != 1234 {
		t.Errorf("Expected timestamp 1234, got %d", msg.Timestamp)
	}
}

func TestDecodeMessageKeepsDetails(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"status","moduleId":"whatsapp","status":"connected","details":{"phone":"+15550001111"}}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	var details map[string]string
	if err := json.Unmarshal(msg.Details, &details); err != nil {
		t.Fatalf("Details payload not preserved: %v", err)
	}
	if details["phone"] != "+15550001111" {
		t.Errorf("Unexpected details: %v", details)
	}
}

func TestEncodeMessageNeverFails(t *testing.T) {
	// A Details payload holding invalid raw JSON makes Marshal fail; the
	// encoder must degrade to an error frame instead.
	msg := &Message{
		Type:    MessageTypeChat,
		Message: "hi",
		Details: json.RawMessage(`{invalid`),
	}

	data := EncodeMessage(msg)

	fallback, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("Fallback frame does not decode: %v", err)
	}
	if fallback.Type != MessageTypeError {
		t.Errorf("Expected error fallback frame, got %s", fallback.Type)
	}
}
