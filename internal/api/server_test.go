package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/history"
	"github.com/maddox/harmony-api/internal/hub"
	"github.com/maddox/harmony-api/internal/hub/hubtest"
	"github.com/maddox/harmony-api/internal/infrastructure/config"
	"github.com/maddox/harmony-api/internal/infrastructure/logging"
)

var _ hub.Notifier = (*EventHub)(nil)
var _ HubService = (*hub.Manager)(nil)

var quiet = hub.Intervals{Activities: time.Hour, Devices: time.Hour, State: time.Hour}

var livingRoom = harmony.HubInfo{IP: "192.168.1.20", FriendlyName: "Living Room", UUID: "uuid-living", RemoteID: "42"}

type stubHistory struct {
	entries []history.Entry
	err     error
	limit   int
}

func (h *stubHistory) History(_ context.Context, _ string, limit int) ([]history.Entry, error) {
	h.limit = limit
	return h.entries, h.err
}

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	manager *hub.Manager
	fake    *hubtest.FakeClient
}

// newTestEnv serves the API over a manager. With online set, the fake hub
// is registered as "living-room".
func newTestEnv(t *testing.T, online bool, hist HistoryReader) *testEnv {
	t.Helper()

	fake := hubtest.NewFakeClient(hubtest.SampleConfig())
	events := NewEventHub(config.WebSocketConfig{}, logging.Discard())
	m := hub.NewManager(func(context.Context, harmony.HubInfo) (hub.Client, error) {
		return fake, nil
	}, hub.ManagerOptions{Intervals: quiet, Notifier: events})
	t.Cleanup(m.Close)

	if online {
		if err := m.HubOnline(context.Background(), livingRoom); err != nil {
			t.Fatalf("HubOnline() error = %v", err)
		}
	}

	deps := Deps{
		Config:  config.APIConfig{Host: "127.0.0.1"},
		Logger:  logging.Discard(),
		Hubs:    m,
		Events:  events,
		Version: "test",
	}
	if hist != nil {
		deps.History = hist
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, manager: m, fake: fake}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decoding error body %q: %v", data, err)
	}
	return e
}

// ============================================================================
// Construction and gating
// ============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Hubs: hub.NewManager(nil, hub.ManagerOptions{})}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without hub service should fail")
	}
}

func TestPing_NotGated(t *testing.T) {
	env := newTestEnv(t, false, nil)

	resp, body := env.do(t, http.MethodGet, "/_ping", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("GET /_ping = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestNoHubAvailable(t *testing.T) {
	env := newTestEnv(t, false, nil)

	for _, path := range []string{"/hubs", "/hubs/living-room/status", "/activities", "/status"} {
		resp, body := env.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("GET %s status = %d, want 500", path, resp.StatusCode)
			continue
		}
		if e := decodeError(t, body); e.Code != ErrCodeNoHubAvailable {
			t.Errorf("GET %s code = %q", path, e.Code)
		}
	}
}

// ============================================================================
// Queries
// ============================================================================

func TestListHubs(t *testing.T) {
	env := newTestEnv(t, true, nil)

	resp, body := env.do(t, http.MethodGet, "/hubs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Hubs []string `json:"hubs"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Hubs) != 1 || got.Hubs[0] != "living-room" {
		t.Errorf("hubs = %v", got.Hubs)
	}

	resp, body = env.do(t, http.MethodGet, "/hubs_for_index", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ip":"192.168.1.20"`) {
		t.Errorf("GET /hubs_for_index = %d %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"refresh":{"activities":{"consecutive_failures":0,"runs":0}`) {
		t.Errorf("GET /hubs_for_index lacks refresh status: %s", body)
	}
}

func TestActivitiesAndCommands(t *testing.T) {
	env := newTestEnv(t, true, nil)

	resp, body := env.do(t, http.MethodGet, "/hubs/living-room/activities", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activities status = %d", resp.StatusCode)
	}
	var acts struct {
		Activities []hub.ActivityView `json:"activities"`
	}
	if err := json.Unmarshal(body, &acts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(acts.Activities) != 3 || acts.Activities[1].Slug != "watch-tv" {
		t.Errorf("activities = %+v", acts.Activities)
	}
	if strings.Contains(string(body), "VolumeUp") {
		t.Error("activity listing leaks command actions")
	}

	resp, body = env.do(t, http.MethodGet, "/hubs/living-room/activities/watch-tv/commands", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("commands status = %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "deviceId") {
		t.Errorf("command listing leaks actions: %s", body)
	}
	var cmds struct {
		Commands []hub.CommandView `json:"commands"`
	}
	if err := json.Unmarshal(body, &cmds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cmds.Commands) != 2 || cmds.Commands[0].Slug != "volume-up" {
		t.Errorf("commands = %+v", cmds.Commands)
	}

	resp, body = env.do(t, http.MethodGet, "/hubs/living-room/devices", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"slug":"living-room-tv"`) {
		t.Errorf("GET devices = %d %s", resp.StatusCode, body)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, true, nil)

	_, body := env.do(t, http.MethodGet, "/hubs/living-room/status", nil)
	if strings.TrimSpace(string(body)) != `{"off":true}` {
		t.Errorf("status when off = %s", body)
	}

	env.do(t, http.MethodPost, "/hubs/living-room/activities/watch-tv", nil)

	_, body = env.do(t, http.MethodGet, "/status", nil)
	var state hub.HubState
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Off || state.CurrentActivity == nil || state.CurrentActivity.Slug != "watch-tv" {
		t.Errorf("status = %s", body)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, true, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/hubs/kitchen/status"},
		{http.MethodGet, "/hubs/living-room/activities/dance/commands"},
		{http.MethodGet, "/hubs/living-room/devices/fridge/commands"},
		{http.MethodPost, "/hubs/living-room/activities/dance"},
		{http.MethodPost, "/hubs/living-room/devices/living-room-tv/commands/eject"},
		{http.MethodPost, "/hubs/living-room/commands/mute"}, // hub is off
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, nil)
			if resp.StatusCode != http.StatusNotFound {
				t.Fatalf("status = %d, want 404 (%s)", resp.StatusCode, body)
			}
			if e := decodeError(t, body); e.Code != ErrCodeNotFound {
				t.Errorf("code = %q", e.Code)
			}
		})
	}
}

// ============================================================================
// Commands
// ============================================================================

func TestDeviceCommand_Repeat(t *testing.T) {
	env := newTestEnv(t, true, nil)

	resp, body := env.do(t, http.MethodPost, "/hubs/living-room/devices/living-room-tv/commands/power-on?repeat=2", nil)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != `{"message":"ok"}` {
		t.Fatalf("POST command = %d %s", resp.StatusCode, body)
	}
	sent := env.fake.Sent()
	if len(sent) != 4 {
		t.Fatalf("sent %d holdActions, want 4", len(sent))
	}
	if !strings.Contains(sent[0], "press") || !strings.Contains(sent[1], "release") {
		t.Errorf("sent = %v", sent)
	}
}

func TestCurrentActivityCommand(t *testing.T) {
	env := newTestEnv(t, true, nil)
	env.do(t, http.MethodPost, "/hubs/living-room/activities/watch-tv", nil)

	resp, body := env.do(t, http.MethodGet, "/hubs/living-room/commands", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"slug":"mute"`) {
		t.Fatalf("GET current commands = %d %s", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/hubs/living-room/commands/mute", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST current command status = %d", resp.StatusCode)
	}
}

func TestUpstreamError(t *testing.T) {
	env := newTestEnv(t, true, nil)
	env.fake.SetError(hubtest.MethodSend, errors.New("socket closed"))

	resp, body := env.do(t, http.MethodPost, "/hubs/living-room/activities/watch-tv/commands/mute", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if e := decodeError(t, body); e.Code != ErrCodeUpstream {
		t.Errorf("code = %q", e.Code)
	}
}

func TestOffAndStartByName(t *testing.T) {
	env := newTestEnv(t, true, nil)

	form := url.Values{"activity_name": {"Listen to Music"}}.Encode()
	resp, body := env.do(t, http.MethodPost, "/hubs/living-room/start_activity", strings.NewReader(form))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start_activity = %d %s", resp.StatusCode, body)
	}
	if state, _ := env.manager.Status("living-room"); state.CurrentActivity == nil || state.CurrentActivity.Slug != "listen-to-music" {
		t.Errorf("state after start = %+v", state)
	}

	resp, _ = env.do(t, http.MethodPut, "/off", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /off = %d", resp.StatusCode)
	}
	if state, _ := env.manager.Status("living-room"); !state.Off {
		t.Error("hub still on after PUT /off")
	}

	resp, _ = env.do(t, http.MethodPost, "/start_activity", strings.NewReader(""))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("start_activity without name = %d, want 400", resp.StatusCode)
	}

	form = url.Values{"activity_name": {"Karaoke"}}.Encode()
	resp, _ = env.do(t, http.MethodPost, "/start_activity", strings.NewReader(form))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("start unknown activity = %d, want 404", resp.StatusCode)
	}
}

// ============================================================================
// History
// ============================================================================

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		resp, _ := env.do(t, http.MethodGet, "/hubs/living-room/history", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("lists entries", func(t *testing.T) {
		hist := &stubHistory{entries: []history.Entry{{ID: "trn-1", Hub: "living-room", CurrentSlug: "watch-tv"}}}
		env := newTestEnv(t, true, hist)

		resp, body := env.do(t, http.MethodGet, "/hubs/living-room/history?limit=5", nil)
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"trn-1"`) {
			t.Errorf("GET history = %d %s", resp.StatusCode, body)
		}
		if hist.limit != 5 {
			t.Errorf("limit = %d, want 5", hist.limit)
		}

		resp, _ = env.do(t, http.MethodGet, "/hubs/living-room/history?limit=many", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("bad limit status = %d", resp.StatusCode)
		}

		resp, _ = env.do(t, http.MethodGet, "/hubs/kitchen/history", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("unknown hub status = %d", resp.StatusCode)
		}
	})
}

// ============================================================================
// WebSocket
// ============================================================================

func TestWebSocket_StateChangedEvent(t *testing.T) {
	env := newTestEnv(t, true, nil)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for env.srv.Events().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	env.do(t, http.MethodPost, "/hubs/living-room/activities/watch-tv", nil)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck // test
	var msg struct {
		Type      string            `json:"type"`
		EventType string            `json:"event_type"`
		Payload   StateChangedEvent `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != EventStateChanged {
		t.Errorf("message = %+v", msg)
	}
	if msg.Payload.Hub != "living-room" || msg.Payload.CurrentActivity != "5" || msg.Payload.State.Off {
		t.Errorf("payload = %+v", msg.Payload)
	}
}

func TestWebSocket_PingAndUnsubscribe(t *testing.T) {
	env := newTestEnv(t, true, nil)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck // test

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil || pong.Type != WSTypePong || pong.ID != "p1" {
		t.Fatalf("pong = %+v, %v", pong, err)
	}

	unsub := WSMessage{Type: WSTypeUnsubscribe, ID: "u1", Payload: WSSubscribePayload{Channels: []string{EventStateChanged}}}
	if err := conn.WriteJSON(unsub); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != WSTypeResponse || ack.ID != "u1" {
		t.Fatalf("unsubscribe ack = %+v, %v", ack, err)
	}
}

func TestStart_ListensAndCloses(t *testing.T) {
	m := hub.NewManager(nil, hub.ManagerOptions{})
	defer m.Close()

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0, Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		Logger: logging.Discard(),
		Hubs:   m,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/_ping")
	if err != nil {
		t.Fatalf("GET /_ping: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
