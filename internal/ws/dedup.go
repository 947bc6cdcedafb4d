package ws

import (
	"strings"
	"sync"
	"time"
)

const (
	// defaultDedupCapacity bounds the number of tracked message keys.
	defaultDedupCapacity = 1000

	// defaultDedupWindow is the trailing interval in which a structurally
	// identical message counts as a repeat.
	defaultDedupWindow = 5 * time.Second

	// dedupSweepInterval is how often stale entries are purged in the
	// background, independent of traffic shape.
	dedupSweepInterval = 30 * time.Second

	// dedupKeyMessageLen is how much of the message body participates in
	// the key. Two messages differing only past this prefix are the same
	// logical event.
	dedupKeyMessageLen = 50
)

// DedupFilter drops messages that were already accepted within a trailing
// time window. The window slides: seeing a duplicate refreshes its entry.
// Safe for concurrent use by connection handlers and the background sweep.
type DedupFilter struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	capacity int
	window   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewDedupFilter creates a filter with the given capacity and window.
// Zero values fall back to the defaults (1000 keys, 5s).
func NewDedupFilter(capacity int, window time.Duration) *DedupFilter {
	if capacity <= 0 {
		capacity = defaultDedupCapacity
	}
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &DedupFilter{
		entries:  make(map[string]time.Time),
		capacity: capacity,
		window:   window,
		stop:     make(chan struct{}),
	}
}

// DedupKey reduces a message to its identity projection: type, session,
// module, status and a truncated message body.
func DedupKey(msg *Message) string {
	body := msg.Message
	if len(body) > dedupKeyMessageLen {
		body = body[:dedupKeyMessageLen]
	}
	return strings.Join([]string{
		string(msg.Type),
		msg.SessionID,
		msg.ModuleID,
		body,
		msg.Status,
	}, "|")
}

// IsDuplicate reports whether an identical message was already accepted
// within the window. Ping and pong frames bypass the filter entirely; they
// are expected to repeat. A duplicate refreshes its entry, so a steady
// stream of repeats keeps being suppressed.
func (f *DedupFilter) IsDuplicate(msg *Message) bool {
	if msg.Type == MessageTypePing || msg.Type == MessageTypePong {
		return false
	}

	key := DedupKey(msg)
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if seen, ok := f.entries[key]; ok {
		if now.Sub(seen) < f.window {
			f.entries[key] = now
			return true
		}
		// Expired entry for the same key: treat as a fresh message.
		f.entries[key] = now
		return false
	}

	if len(f.entries) >= f.capacity {
		f.evictOldestLocked()
	}
	f.entries[key] = now
	return false
}

// evictOldestLocked removes the single globally-oldest entry. Linear scan;
// fine at the default capacity.
func (f *DedupFilter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, seen := range f.entries {
		if oldestKey == "" || seen.Before(oldest) {
			oldestKey = key
			oldest = seen
		}
	}
	if oldestKey != "" {
		delete(f.entries, oldestKey)
	}
}

// Len returns the number of tracked keys.
func (f *DedupFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Start launches the background sweep that purges entries older than twice
// the window.
func (f *DedupFilter) Start() {
	go func() {
		ticker := time.NewTicker(dedupSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.removeExpired()
			case <-f.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweep. Idempotent.
func (f *DedupFilter) Stop() {
	f.stopOnce.Do(func() {
		close(f.stop)
	})
}

func (f *DedupFilter) removeExpired() {
	cutoff := time.Now().Add(-2 * f.window)

	f.mu.Lock()
	defer f.mu.Unlock()

	for key, seen := range f.entries {
		if seen.Before(cutoff) {
			delete(f.entries, key)
		}
	}
}
