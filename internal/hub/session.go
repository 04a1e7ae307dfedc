package hub

import (
	"context"
	"sync"
	"time"

	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/slug"
)

// Default refresh periods. State is polled far more often than the
// catalogs because notifications depend on it.
const (
	DefaultActivitiesInterval = time.Minute
	DefaultDevicesInterval    = time.Minute
	DefaultStateInterval      = 5 * time.Second
)

// Refresh names used in logs and RefreshStatus.
const (
	RefreshActivities = "activities"
	RefreshDevices    = "devices"
	RefreshState      = "state"
)

// Intervals are the periods of a session's three refresh timers.
type Intervals struct {
	Activities time.Duration
	Devices    time.Duration
	State      time.Duration
}

func (i Intervals) withDefaults() Intervals {
	if i.Activities <= 0 {
		i.Activities = DefaultActivitiesInterval
	}
	if i.Devices <= 0 {
		i.Devices = DefaultDevicesInterval
	}
	if i.State <= 0 {
		i.State = DefaultStateInterval
	}
	return i
}

// Identity names a hub.
type Identity struct {
	Slug     string
	Name     string
	IP       string
	RemoteID string
	UUID     string
}

// IdentityFromInfo derives a hub identity from a discovery announcement.
// Hubs without a friendly name are named after their address. A name that
// slugs to nothing falls back to the address, then the UUID.
func IdentityFromInfo(info harmony.HubInfo) Identity {
	name := info.FriendlyName
	if name == "" {
		name = info.IP
	}
	return Identity{
		Slug:     slug.ResolveOr(name, info.IP, info.UUID, "hub"),
		Name:     name,
		IP:       info.IP,
		RemoteID: info.RemoteID,
		UUID:     info.UUID,
	}
}

// SessionOptions configures NewSession.
type SessionOptions struct {
	Intervals Intervals
	Notifier  Notifier
	Logger    Logger
}

// Session owns one hub's client, caches and refresh timers.
type Session struct {
	id          Identity
	client      Client
	intervals   Intervals
	notifier    Notifier
	logger      Logger
	connectedAt time.Time

	sched *scheduler

	mu         sync.RWMutex
	activities []Activity
	devices    []Device
	currentID  string
	state      HubState
	published  string // resolved activity id of the last notified state

	// Refreshes of one kind never interleave.
	activitiesMu sync.Mutex
	devicesMu    sync.Mutex
	stateMu      sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSession creates a stopped session for an already connected client.
func NewSession(id Identity, client Client, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewFanout(nil)
	}
	logger = withHub(logger, id.Slug)

	return &Session{
		id:          id,
		client:      client,
		intervals:   opts.Intervals.withDefaults(),
		notifier:    notifier,
		logger:      logger,
		connectedAt: time.Now(),
		sched:       newScheduler(context.Background(), logger),
		currentID:   OffActivityID,
		state:       HubState{Off: true},
		published:   OffActivityID,
	}
}

// hubLogger prefixes every entry with the hub slug.
type hubLogger struct {
	Logger
	hub string
}

func withHub(l Logger, hubSlug string) Logger {
	return hubLogger{Logger: l, hub: hubSlug}
}

func (l hubLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.args(args)...) }
func (l hubLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.args(args)...) }
func (l hubLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.args(args)...) }
func (l hubLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.args(args)...) }

func (l hubLogger) args(args []any) []any {
	return append([]any{"hub", l.hub}, args...)
}

// Slug returns the hub slug the session is registered under.
func (s *Session) Slug() string { return s.id.Slug }

// Identity returns the hub identity.
func (s *Session) Identity() Identity { return s.id }

// Start performs the initial catalog and state refresh, then arms the
// three recurring timers. Initial refresh failures are logged; the timers
// retry on their next tick. Cancelling ctx stops the timers as Stop does.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		context.AfterFunc(ctx, s.sched.cancelTimers)

		if err := s.RefreshActivities(ctx); err != nil {
			s.logger.Warn("initial activities refresh failed", "error", err)
		}
		if err := s.RefreshDevices(ctx); err != nil {
			s.logger.Warn("initial devices refresh failed", "error", err)
		}
		if err := s.RefreshState(ctx); err != nil {
			s.logger.Warn("initial state refresh failed", "error", err)
		}

		s.sched.every(RefreshActivities, s.intervals.Activities, s.RefreshActivities)
		s.sched.every(RefreshDevices, s.intervals.Devices, s.RefreshDevices)
		s.sched.every(RefreshState, s.intervals.State, s.RefreshState)

		s.logger.Info("hub session started",
			"activities", len(s.Activities()),
			"devices", len(s.Devices()),
		)
	})
}

// cancelTimers stops future refresh ticks without waiting.
func (s *Session) cancelTimers() {
	s.sched.cancelTimers()
}

// Stop cancels the timers, closes the client, waits for in-flight
// refreshes and drops the caches. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.sched.cancelTimers()
		if err := s.client.Close(); err != nil {
			s.logger.Debug("closing hub client", "error", err)
		}
		s.sched.wait()

		s.mu.Lock()
		s.activities = nil
		s.devices = nil
		s.currentID = OffActivityID
		s.state = HubState{Off: true}
		s.published = OffActivityID
		s.mu.Unlock()

		s.logger.Info("hub session stopped")
	})
}

// stopped reports whether Stop (or cancellation of the Start context) has run.
func (s *Session) stopped() bool {
	return s.sched.ctx.Err() != nil
}

// Activities returns the cached activities.
func (s *Session) Activities() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Activity(nil), s.activities...)
}

// Devices returns the cached devices.
func (s *Session) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Device(nil), s.devices...)
}

// Activity looks up a cached activity by slug.
func (s *Session) Activity(activitySlug string) (Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slug.Find(s.activities, activitySlug)
}

// Device looks up a cached device by slug.
func (s *Session) Device(deviceSlug string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slug.Find(s.devices, deviceSlug)
}

// ActivityByLabel looks up a cached activity by its exact label.
func (s *Session) ActivityByLabel(label string) (Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.activities {
		if a.Label == label {
			return a, true
		}
	}
	return Activity{}, false
}

// CurrentActivity returns the running activity, if any is known.
func (s *Session) CurrentActivity() (Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentID == OffActivityID {
		return Activity{}, false
	}
	return activityByID(s.activities, s.currentID)
}

// State returns the last observed hub state.
func (s *Session) State() HubState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RefreshStatus reports the outcome of the recurring refreshes.
func (s *Session) RefreshStatus() map[string]RefreshStatus {
	return s.sched.Status()
}

// View returns a description of the hub for listings.
func (s *Session) View() HubView {
	return HubView{
		Slug:        s.id.Slug,
		Name:        s.id.Name,
		IP:          s.id.IP,
		RemoteID:    s.id.RemoteID,
		UUID:        s.id.UUID,
		ConnectedAt: s.connectedAt,
		State:       s.State(),
		Refresh:     s.RefreshStatus(),
	}
}

func activityByID(activities []Activity, id string) (Activity, bool) {
	for _, a := range activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}
