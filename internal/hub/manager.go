package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/maddox/harmony-api/internal/harmony"
)

// ManagerOptions configures NewManager.
type ManagerOptions struct {
	Intervals Intervals
	Notifier  Notifier
	Logger    Logger

	// OnSessionStarted runs after a session has been registered and started.
	OnSessionStarted func(s *Session)

	// OnSessionLost runs when a hub connection drops on its own, with the
	// discovery key of the hub, so discovery can report it again.
	OnSessionLost func(key string)
}

// Manager creates and destroys sessions in response to discovery events
// and serves the queries and commands of the HTTP and MQTT front ends.
type Manager struct {
	registry *Registry
	dial     DialFunc
	opts     ManagerOptions
	logger   Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	keys map[string]*Session

	wg sync.WaitGroup
}

// NewManager creates a Manager with an empty registry.
func NewManager(dial DialFunc, opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: NewRegistry(),
		dial:     dial,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		keys:     make(map[string]*Session),
	}
}

// Registry returns the hub registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// HubOnline connects to a discovered hub and registers its session.
// A failed connection is logged and returned; the hub is not registered
// and no retry is made.
func (m *Manager) HubOnline(ctx context.Context, info harmony.HubInfo) error {
	id := IdentityFromInfo(info)

	client, err := m.dial(ctx, info)
	if err != nil {
		m.logger.Error("hub connection failed", "hub", id.Slug, "ip", info.IP, "error", err)
		return fmt.Errorf("%w: connecting to %s: %w", ErrUpstream, info.IP, err)
	}

	s := NewSession(id, client, SessionOptions{
		Intervals: m.opts.Intervals,
		Notifier:  m.opts.Notifier,
		Logger:    m.logger,
	})

	if prev := m.registry.Replace(s); prev != nil {
		m.logger.Info("replacing hub session", "hub", id.Slug)
		prev.Stop()
	}

	key := info.Key()
	m.mu.Lock()
	m.keys[key] = s
	m.mu.Unlock()

	s.Start(m.ctx)

	if d, ok := client.(doner); ok {
		m.wg.Add(1)
		go m.watch(key, s, d.Done())
	}

	if m.opts.OnSessionStarted != nil {
		m.opts.OnSessionStarted(s)
	}
	return nil
}

// watch tears a session down when its connection drops.
func (m *Manager) watch(key string, s *Session, done <-chan struct{}) {
	defer m.wg.Done()

	select {
	case <-m.ctx.Done():
		return
	case <-done:
	}

	if !m.registry.Remove(s) {
		return
	}
	m.logger.Warn("hub connection lost", "hub", s.Slug())
	s.Stop()
	m.forgetKey(key, s)

	if m.opts.OnSessionLost != nil {
		m.opts.OnSessionLost(key)
	}
}

func (m *Manager) forgetKey(key string, s *Session) {
	m.mu.Lock()
	if m.keys[key] == s {
		delete(m.keys, key)
	}
	m.mu.Unlock()
}

// HubOffline destroys the session of a hub that stopped answering
// discovery. Later lookups of its slug report not found.
func (m *Manager) HubOffline(info harmony.HubInfo) {
	key := info.Key()

	m.mu.Lock()
	s := m.keys[key]
	delete(m.keys, key)
	m.mu.Unlock()

	if s == nil {
		return
	}
	m.registry.Remove(s)
	s.Stop()
	m.logger.Info("hub offline", "hub", s.Slug())
}

// Close stops every session.
func (m *Manager) Close() {
	m.cancel()
	for _, s := range m.registry.Clear() {
		s.Stop()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.keys = make(map[string]*Session)
	m.mu.Unlock()
}
