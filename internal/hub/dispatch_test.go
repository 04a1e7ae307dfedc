package hub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/hub/hubtest"
)

func TestParseRepeat(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"0", 1},
		{"-4", 1},
		{"1", 1},
		{"3", 3},
		{" 7 ", 7},
		{"2.5", 1},
		{"100", 100},
		{"5000", MaxRepeat},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseRepeat(tt.raw); got != tt.want {
				t.Errorf("ParseRepeat(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDispatch_NoHubAvailable(t *testing.T) {
	m := NewManager(nil, ManagerOptions{})
	defer m.Close()

	err := m.Dispatch(context.Background(), "living-room", Target{Kind: TargetDevice, Slug: "tv"}, "mute", 1)
	if !errors.Is(err, ErrNoHubAvailable) {
		t.Errorf("Dispatch() error = %v, want ErrNoHubAvailable", err)
	}
}

func TestDispatch_NotFound(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	m := newTestManager(t, fake, ManagerOptions{})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	tests := []struct {
		name    string
		hub     string
		target  Target
		command string
		want    error
	}{
		{"unknown hub", "kitchen", Target{Kind: TargetActivity, Slug: "watch-tv"}, "mute", ErrHubNotFound},
		{"unknown activity", "living-room", Target{Kind: TargetActivity, Slug: "play-game"}, "mute", ErrActivityNotFound},
		{"unknown device", "living-room", Target{Kind: TargetDevice, Slug: "toaster"}, "power-on", ErrDeviceNotFound},
		{"unknown command", "living-room", Target{Kind: TargetActivity, Slug: "watch-tv"}, "self-destruct", ErrCommandNotFound},
		{"hub off", "living-room", Target{Kind: TargetCurrentActivity}, "mute", ErrActivityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Dispatch(context.Background(), tt.hub, tt.target, tt.command, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Dispatch() error = %v should be NotFound-class", err)
			}
		})
	}

	if len(fake.Sent()) != 0 {
		t.Errorf("unresolved dispatch sent %d actions", len(fake.Sent()))
	}
}

func TestDispatch_RepeatSendsPressReleasePairs(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	m := newTestManager(t, fake, ManagerOptions{})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	err := m.Dispatch(context.Background(), "living-room", Target{Kind: TargetDevice, Slug: "living-room-tv"}, "power-on", 3)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	sent := fake.Sent()
	if len(sent) != 6 {
		t.Fatalf("sent %d actions, want 6", len(sent))
	}
	for i, payload := range sent {
		action, status, err := harmony.ParseHoldAction(payload)
		if err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		wantStatus := harmony.StatusPress
		if i%2 == 1 {
			wantStatus = harmony.StatusRelease
		}
		if status != wantStatus {
			t.Errorf("payload %d status = %s, want %s", i, status, wantStatus)
		}
		if !strings.Contains(action, `"PowerOn"`) {
			t.Errorf("payload %d action = %s", i, action)
		}
	}
}

func TestDispatch_TriggersExactlyOneStateRefresh(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	fake.SetCurrent("5")
	m := newTestManager(t, fake, ManagerOptions{})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	before := fake.CallCount(hubtest.MethodGetCurrentActivity)
	err := m.Dispatch(context.Background(), "living-room", Target{Kind: TargetCurrentActivity}, "mute", 1)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := fake.CallCount(hubtest.MethodGetCurrentActivity) - before; got != 1 {
		t.Errorf("state refreshes after dispatch = %d, want 1", got)
	}
}

func TestDispatch_UpstreamFailure(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	m := newTestManager(t, fake, ManagerOptions{})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	fake.SetError(hubtest.MethodSend, errors.New("write: broken pipe"))
	err := m.Dispatch(context.Background(), "living-room", Target{Kind: TargetActivity, Slug: "watch-tv"}, "mute", 1)
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Dispatch() error = %v, want ErrUpstream", err)
	}

	// The session survives a failed dispatch.
	if _, err := m.Status("living-room"); err != nil {
		t.Errorf("Status() after failed dispatch error = %v", err)
	}
}

func TestStartActivity_RefreshesAndNotifies(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	n := &recordingNotifier{}
	m := newTestManager(t, fake, ManagerOptions{Notifier: n})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	if err := m.StartActivity(context.Background(), "living-room", "watch-tv"); err != nil {
		t.Fatalf("StartActivity() error = %v", err)
	}

	state, err := m.Status("living-room")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if state.Off || state.CurrentActivity == nil || state.CurrentActivity.Slug != "watch-tv" {
		t.Errorf("Status() = %+v, want watch-tv", state)
	}
	if got := n.all(); len(got) != 1 || got[0].CurrentID != "5" {
		t.Errorf("transitions = %+v", got)
	}

	if err := m.StartActivity(context.Background(), "living-room", "nope"); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("StartActivity(nope) error = %v", err)
	}
}

func TestStartActivityByName(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	m := newTestManager(t, fake, ManagerOptions{})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	if err := m.StartActivityByName(context.Background(), "living-room", "Listen to Music"); err != nil {
		t.Fatalf("StartActivityByName() error = %v", err)
	}
	if err := m.StartActivityByName(context.Background(), "living-room", "watch tv"); err != nil {
		t.Fatalf("StartActivityByName(slug match) error = %v", err)
	}
	if err := m.StartActivityByName(context.Background(), "living-room", "Karaoke"); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("StartActivityByName(Karaoke) error = %v", err)
	}

	var started []string
	for _, c := range fake.Calls() {
		if c.Method == hubtest.MethodStartActivity {
			started = append(started, c.Args[0])
		}
	}
	if strings.Join(started, ",") != "7,5" {
		t.Errorf("started activities = %v, want [7 5]", started)
	}
}

func TestTurnOff(t *testing.T) {
	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	fake.SetCurrent("5")
	n := &recordingNotifier{}
	m := newTestManager(t, fake, ManagerOptions{Notifier: n})
	if err := m.HubOnline(context.Background(), livingRoom); err != nil {
		t.Fatalf("HubOnline() error = %v", err)
	}

	before := fake.CallCount(hubtest.MethodGetCurrentActivity)
	if err := m.TurnOff(context.Background(), "living-room"); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	if got := fake.CallCount(hubtest.MethodGetCurrentActivity) - before; got != 1 {
		t.Errorf("state refreshes after turn off = %d, want 1", got)
	}

	state, _ := m.Status("living-room")
	if !state.Off {
		t.Errorf("Status() after TurnOff = %+v", state)
	}
	got := n.all()
	if len(got) != 2 || got[1].CurrentSlug() != "off" {
		t.Errorf("transitions = %+v", got)
	}
}
