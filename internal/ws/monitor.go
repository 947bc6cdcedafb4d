package ws

import (
	"log"
	"sync"
	"time"
)

// defaultSweepInterval is how often the monitor walks the registry.
const defaultSweepInterval = 15 * time.Second

// evictMultiplier scales the sweep interval into the idle threshold: a
// session silent for more than evictMultiplier sweeps is considered dead.
const evictMultiplier = 3

// Monitor periodically probes idle sessions and evicts ones that stopped
// answering. It runs independently of message flow and never blocks a
// connection handler.
type Monitor struct {
	registry *Registry
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor over the registry. A non-positive interval
// falls back to the default (15s).
func NewMonitor(registry *Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Monitor{
		registry: registry,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Sweep walks every registered session once. Transports already closed are
// removed immediately; sessions idle past the threshold get a graceful
// close (with a forced teardown scheduled behind it) and are removed
// regardless of how the close goes; everything else is probed with a
// transport ping, which does not refresh liveness by itself.
func (m *Monitor) Sweep() {
	threshold := time.Duration(evictMultiplier) * m.interval
	now := time.Now()

	for _, sess := range m.registry.Snapshot() {
		switch {
		case sess.State() == StateClosed:
			m.registry.Remove(sess)

		case now.Sub(sess.LastLiveness()) > threshold:
			log.Printf("Evicting session %s: no traffic for %s", sess.ID(), now.Sub(sess.LastLiveness()).Round(time.Second))
			sess.Close()
			m.registry.Remove(sess)

		default:
			sess.Probe()
		}
	}
}
