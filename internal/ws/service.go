package ws

import (
	"context"
	"time"
)

// Collaborator processes a validated, deduplicated inbound message and may
// return a reply to route back to the session. Implementations (AI
// completion, calendar booking, provider webhooks) live outside the hub and
// are expected to do their own blocking work; the hub only routes.
type Collaborator interface {
	Handle(ctx context.Context, sessionID string, msg *Message) (*Message, error)
}

// CollaboratorFunc adapts a function to the Collaborator interface.
type CollaboratorFunc func(ctx context.Context, sessionID string, msg *Message) (*Message, error)

// Handle calls f.
func (f CollaboratorFunc) Handle(ctx context.Context, sessionID string, msg *Message) (*Message, error) {
	return f(ctx, sessionID, msg)
}

type noopCollaborator struct{}

func (noopCollaborator) Handle(context.Context, string, *Message) (*Message, error) {
	return nil, nil
}

// ActivityRecorder receives fire-and-forget activity events from the hub.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, module, event, status, details string)
}

// NopRecorder discards activity events. Useful in tests.
type NopRecorder struct{}

// RecordActivity does nothing.
func (NopRecorder) RecordActivity(context.Context, string, string, string, string) {}

// Config holds the hub's tunables. Zero values fall back to the defaults.
type Config struct {
	SweepInterval time.Duration
	DedupWindow   time.Duration
	DedupCapacity int
}

// Service owns the hub: the connection registry, the liveness monitor, the
// dedup filter and the broadcast router, wired to one collaborator and one
// activity recorder for the process lifetime.
type Service struct {
	registry *Registry
	dedup    *DedupFilter
	monitor  *Monitor
	router   *Router
	handler  *Handler
}

// NewService assembles the hub.
func NewService(cfg Config, collaborator Collaborator, recorder ActivityRecorder) *Service {
	registry := NewRegistry()
	dedup := NewDedupFilter(cfg.DedupCapacity, cfg.DedupWindow)
	router := NewRouter(registry)
	monitor := NewMonitor(registry, cfg.SweepInterval)
	handler := NewHandler(registry, dedup, router, collaborator, recorder)

	return &Service{
		registry: registry,
		dedup:    dedup,
		monitor:  monitor,
		router:   router,
		handler:  handler,
	}
}

// Start launches the background sweeps. Message handling works without them,
// but idle sessions and stale dedup entries only get reclaimed while they
// run.
func (s *Service) Start() {
	s.monitor.Start()
	s.dedup.Start()
}

// Handler returns the connection handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// Router returns the broadcast router.
func (s *Service) Router() *Router {
	return s.router
}

// Registry returns the connection registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// SessionStat describes one live session for the admin surface.
type SessionStat struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	IdleMS    int64  `json:"idleMs"`
}

// Stats reports the currently registered sessions.
func (s *Service) Stats() []SessionStat {
	sessions := s.registry.Snapshot()
	stats := make([]SessionStat, 0, len(sessions))
	for _, sess := range sessions {
		stats = append(stats, SessionStat{
			SessionID: sess.ID(),
			State:     sess.State().String(),
			IdleMS:    time.Since(sess.LastLiveness()).Milliseconds(),
		})
	}
	return stats
}

// Close stops the background sweeps and shuts down every session.
func (s *Service) Close() {
	s.monitor.Stop()
	s.dedup.Stop()
	s.registry.Close()
}
