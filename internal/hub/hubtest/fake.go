// Package hubtest provides a scriptable hub client for tests.
package hubtest

import (
	"context"
	"sync"

	"github.com/maddox/harmony-api/internal/harmony"
)

// Method names recorded by FakeClient.
const (
	MethodGetActivities        = "GetActivities"
	MethodGetAvailableCommands = "GetAvailableCommands"
	MethodGetCurrentActivity   = "GetCurrentActivity"
	MethodStartActivity        = "StartActivity"
	MethodTurnOff              = "TurnOff"
	MethodSend                 = "Send"
)

// Call is one recorded client call.
type Call struct {
	Method string
	Args   []string
}

// FakeClient implements hub.Client in memory.
//
// GetCurrentActivity walks the scripted sequence set with SetCurrent and
// keeps returning the last entry once it is exhausted. StartActivity and
// TurnOff update that value, like a real hub would.
type FakeClient struct {
	mu sync.Mutex

	config  harmony.Config
	current []string
	errs    map[string]error
	calls   []Call

	// block, when set, makes GetCurrentActivity wait until it is closed,
	// the context ends or the client is closed.
	block chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewFakeClient returns a client serving cfg, reporting the hub as off.
func NewFakeClient(cfg harmony.Config) *FakeClient {
	return &FakeClient{
		config:  cfg,
		current: []string{harmony.OffActivityID},
		errs:    make(map[string]error),
		done:    make(chan struct{}),
	}
}

// SetConfig replaces the served configuration.
func (f *FakeClient) SetConfig(cfg harmony.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = cfg
}

// SetCurrent scripts the ids returned by successive GetCurrentActivity calls.
func (f *FakeClient) SetCurrent(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = append([]string(nil), ids...)
}

// SetError makes method fail with err; nil clears it.
func (f *FakeClient) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// BlockCurrent makes GetCurrentActivity hang until the returned func is called.
func (f *FakeClient) BlockCurrent() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeClient) record(method string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
	return f.errs[method]
}

// Calls returns every recorded call in order.
func (f *FakeClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how often method was called.
func (f *FakeClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Sent returns the payloads passed to Send.
func (f *FakeClient) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Method == MethodSend {
			out = append(out, c.Args[1])
		}
	}
	return out
}

// GetActivities returns the configured activities.
func (f *FakeClient) GetActivities(_ context.Context) ([]harmony.Activity, error) {
	if err := f.record(MethodGetActivities); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]harmony.Activity(nil), f.config.Activity...), nil
}

// GetAvailableCommands returns the configured devices.
func (f *FakeClient) GetAvailableCommands(_ context.Context) (harmony.Config, error) {
	if err := f.record(MethodGetAvailableCommands); err != nil {
		return harmony.Config{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config, nil
}

// GetCurrentActivity returns the next scripted id.
func (f *FakeClient) GetCurrentActivity(ctx context.Context) (string, error) {
	if err := f.record(MethodGetCurrentActivity); err != nil {
		return "", err
	}

	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		case <-f.done:
			return "", harmony.ErrClosed
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.current[0]
	if len(f.current) > 1 {
		f.current = f.current[1:]
	}
	return id, nil
}

// StartActivity records the call and makes id current.
func (f *FakeClient) StartActivity(_ context.Context, id string) error {
	if err := f.record(MethodStartActivity, id); err != nil {
		return err
	}
	f.SetCurrent(id)
	return nil
}

// TurnOff records the call and makes the hub off.
func (f *FakeClient) TurnOff(_ context.Context) error {
	if err := f.record(MethodTurnOff); err != nil {
		return err
	}
	f.SetCurrent(harmony.OffActivityID)
	return nil
}

// Send records the command and payload.
func (f *FakeClient) Send(_ context.Context, command, payload string) error {
	return f.record(MethodSend, command, payload)
}

// Drop simulates the hub closing the connection.
func (f *FakeClient) Drop() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Done is closed by Drop and Close.
func (f *FakeClient) Done() <-chan struct{} {
	return f.done
}

// Close marks the client closed.
func (f *FakeClient) Close() error {
	f.Drop()
	return nil
}

// Closed reports whether Close or Drop has been called.
func (f *FakeClient) Closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// SampleConfig is a small hub with two activities and one device.
func SampleConfig() harmony.Config {
	return harmony.Config{
		Activity: []harmony.Activity{
			{ID: "-1", Label: "PowerOff"},
			{ID: "5", Label: "Watch TV", IsAVActivity: true, ControlGroup: []harmony.ControlGroup{
				{Name: "Volume", Function: []harmony.Function{
					{Name: "VolumeUp", Label: "Volume Up", Action: `{"command":"VolumeUp","deviceId":"100"}`},
					{Name: "Mute", Label: "Mute", Action: `{"command":"Mute","deviceId":"100"}`},
				}},
			}},
			{ID: "7", Label: "Listen to Music", IsAVActivity: true, ControlGroup: []harmony.ControlGroup{
				{Name: "Transport", Function: []harmony.Function{
					{Name: "Play", Label: "Play", Action: `{"command":"Play","deviceId":"200"}`},
				}},
			}},
		},
		Device: []harmony.Device{
			{ID: "100", Label: "Living Room TV", ControlGroup: []harmony.ControlGroup{
				{Name: "Power", Function: []harmony.Function{
					{Name: "PowerOn", Label: "Power On", Action: `{"command":"PowerOn","deviceId":"100"}`},
					{Name: "PowerOff", Label: "Power Off", Action: `{"command":"PowerOff","deviceId":"100"}`},
				}},
			}},
		},
	}
}
