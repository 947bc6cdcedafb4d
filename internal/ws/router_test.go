package ws

import (
	"testing"
	"time"
)

func TestSendToOneRequiresOpenTransport(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)

	sess := registry.Attach(nil, "s1")
	if !router.SendToOne(sess, NewWelcome("s1")) {
		t.Error("Send to open session should succeed")
	}

	sess.Close()
	if router.SendToOne(sess, NewWelcome("s1")) {
		t.Error("Send to closing session must report failure, not panic")
	}

	if router.SendToOne(nil, NewWelcome("s1")) {
		t.Error("Send to nil session must report failure")
	}
}

func TestSendToUnknownSession(t *testing.T) {
	router := NewRouter(NewRegistry())

	if router.SendTo("ghost", NewWelcome("ghost")) {
		t.Error("Send to unknown session should report failure")
	}
}

func TestBroadcastPartialSuccess(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)

	registry.Attach(nil, "a")
	registry.Attach(nil, "b")
	dead := registry.Attach(nil, "c")
	dead.Close()

	count := router.BroadcastAll(&Message{Type: MessageTypeStatus, ModuleID: "whatsapp", Status: "up", Timestamp: time.Now().UnixMilli()})
	if count != 2 {
		t.Errorf("Expected 2 successful sends, got %d", count)
	}
}

func TestBroadcastDeliversEncodedFrames(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)

	sess := registry.Attach(nil, "a")

	router.BroadcastAll(&Message{Type: MessageTypeChat, Message: "hello", Timestamp: 1})

	select {
	case data := <-sess.send:
		msg, err := DecodeMessage(data)
		if err != nil {
			t.Fatalf("Broadcast frame does not decode: %v", err)
		}
		if msg.Type != MessageTypeChat || msg.Message != "hello" {
			t.Errorf("Unexpected broadcast payload: %+v", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Broadcast frame was not queued")
	}
}
