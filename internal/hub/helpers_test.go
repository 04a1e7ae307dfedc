package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/hub/hubtest"
)

// recordingNotifier collects transitions.
type recordingNotifier struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recordingNotifier) StateChanged(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recordingNotifier) all() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.transitions...)
}

// quiet keeps the recurring timers out of the way of direct refresh calls.
var quiet = Intervals{Activities: time.Hour, Devices: time.Hour, State: time.Hour}

var livingRoom = harmony.HubInfo{IP: "192.168.1.20", FriendlyName: "Living Room", UUID: "uuid-living", RemoteID: "42"}

func newTestSession(t *testing.T, fake *hubtest.FakeClient, n Notifier) *Session {
	t.Helper()
	s := NewSession(IdentityFromInfo(livingRoom), fake, SessionOptions{Intervals: quiet, Notifier: n})
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

// newTestManager returns a Manager whose dial hands out fake.
func newTestManager(t *testing.T, fake *hubtest.FakeClient, opts ManagerOptions) *Manager {
	t.Helper()
	if opts.Intervals == (Intervals{}) {
		opts.Intervals = quiet
	}
	m := NewManager(func(context.Context, harmony.HubInfo) (Client, error) {
		return fake, nil
	}, opts)
	t.Cleanup(m.Close)
	return m
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
