package ws

import (
	"testing"
	"time"
)

func TestRegistryAttachMintsSessionID(t *testing.T) {
	registry := NewRegistry()

	sess := registry.Attach(nil, "")
	if sess.ID() == "" {
		t.Error("Attach should mint a session ID when none is supplied")
	}
	if sess.State() != StateOpen {
		t.Errorf("Expected open state after attach, got %s", sess.State())
	}
	if registry.Len() != 1 {
		t.Errorf("Expected 1 registered session, got %d", registry.Len())
	}
}

func TestRegistryReattachDisplacesStaleTransport(t *testing.T) {
	registry := NewRegistry()

	first := registry.Attach(nil, "s1")
	second := registry.Attach(nil, "s1")

	if registry.Len() != 1 {
		t.Errorf("Expected 1 registered session after reattach, got %d", registry.Len())
	}

	current, ok := registry.Get("s1")
	if !ok || current != second {
		t.Error("Reattach should replace the registry entry")
	}
	if first.State() == StateOpen {
		t.Error("Displaced transport should be closing")
	}
	if second.State() != StateOpen {
		t.Error("New transport should be open")
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	sess := registry.Attach(nil, "s1")

	registry.Remove(sess)
	registry.Remove(sess)

	if registry.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", registry.Len())
	}
}

func TestRegistryRemoveLeavesReattachedSessionAlone(t *testing.T) {
	registry := NewRegistry()

	stale := registry.Attach(nil, "s1")
	fresh := registry.Attach(nil, "s1")

	// The stale handler's deferred cleanup must not evict the session that
	// took over the same ID.
	registry.Remove(stale)

	current, ok := registry.Get("s1")
	if !ok || current != fresh {
		t.Error("Removing a displaced session must not evict its successor")
	}
}

func TestSessionSendStateGate(t *testing.T) {
	sess := NewSession("s1", nil)

	if sess.Send([]byte("early")) {
		t.Error("Send should fail while connecting")
	}

	sess.setState(StateOpen)
	if !sess.Send([]byte("data")) {
		t.Error("Send should succeed while open")
	}

	sess.Close()
	if sess.Send([]byte("late")) {
		t.Error("Send should fail after close")
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	sess := NewSession("s1", nil)
	sess.setState(StateOpen)

	sess.Close()
	sess.Close()
	sess.Terminate()
	sess.Terminate()

	if sess.State() != StateClosed {
		t.Errorf("Expected closed state, got %s", sess.State())
	}
}

func TestMonitorEvictsIdleSession(t *testing.T) {
	registry := NewRegistry()
	monitor := NewMonitor(registry, 10*time.Millisecond)

	idle := registry.Attach(nil, "idle")
	idle.mu.Lock()
	idle.lastLiveness = time.Now().Add(-time.Second)
	idle.mu.Unlock()

	registry.Attach(nil, "active")

	monitor.Sweep()

	if _, ok := registry.Get("idle"); ok {
		t.Error("Idle session should be evicted by the sweep")
	}
	if _, ok := registry.Get("active"); !ok {
		t.Error("Active session should survive the sweep")
	}
	if idle.State() == StateOpen {
		t.Error("Evicted session should be closing")
	}
}

func TestMonitorNeverEvictsResponsiveSession(t *testing.T) {
	registry := NewRegistry()
	monitor := NewMonitor(registry, 10*time.Millisecond)

	sess := registry.Attach(nil, "s1")

	// A session that answers every probe keeps refreshing its liveness.
	for i := 0; i < 5; i++ {
		time.Sleep(5 * time.Millisecond)
		sess.Touch()
		monitor.Sweep()
	}

	if _, ok := registry.Get("s1"); !ok {
		t.Error("Responsive session must never be evicted")
	}
}

func TestMonitorRemovesClosedSessionImmediately(t *testing.T) {
	registry := NewRegistry()
	monitor := NewMonitor(registry, time.Minute)

	sess := registry.Attach(nil, "s1")
	sess.Terminate()

	monitor.Sweep()

	if registry.Len() != 0 {
		t.Error("Closed transport should be removed without further action")
	}
}

func TestMonitorProbeDoesNotRefreshLiveness(t *testing.T) {
	registry := NewRegistry()
	monitor := NewMonitor(registry, time.Minute)

	sess := registry.Attach(nil, "s1")
	before := sess.LastLiveness()

	monitor.Sweep()

	if sess.LastLiveness() != before {
		t.Error("A probe must not alter the liveness timestamp")
	}
}
