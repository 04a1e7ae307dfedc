package hub

import (
	"fmt"

	"github.com/maddox/harmony-api/internal/slug"
)

var slugOf = slug.Resolve

// Hubs returns the slugs of all registered hubs.
func (m *Manager) Hubs() []string {
	return m.registry.Slugs()
}

// HubViews describes all registered hubs.
func (m *Manager) HubViews() []HubView {
	sessions := m.registry.Sessions()
	out := make([]HubView, len(sessions))
	for i, s := range sessions {
		out[i] = s.View()
	}
	return out
}

// DefaultHub returns the slug the single-hub routes act on.
func (m *Manager) DefaultHub() (string, error) {
	s, ok := m.registry.Default()
	if !ok {
		return "", ErrNoHubAvailable
	}
	return s.Slug(), nil
}

// Status returns the observed state of a hub.
func (m *Manager) Status(hubSlug string) (HubState, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return HubState{}, err
	}
	return s.State(), nil
}

// Activities lists a hub's cached activities.
func (m *Manager) Activities(hubSlug string) ([]ActivityView, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return nil, err
	}
	activities := s.Activities()
	out := make([]ActivityView, len(activities))
	for i, a := range activities {
		out[i] = a.View()
	}
	return out, nil
}

// Devices lists a hub's cached devices.
func (m *Manager) Devices(hubSlug string) ([]DeviceView, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return nil, err
	}
	devices := s.Devices()
	out := make([]DeviceView, len(devices))
	for i, d := range devices {
		out[i] = d.View()
	}
	return out, nil
}

// ActivityCommands lists the commands of one activity.
func (m *Manager) ActivityCommands(hubSlug, activitySlug string) ([]CommandView, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return nil, err
	}
	a, ok := s.Activity(activitySlug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, activitySlug)
	}
	return commandViews(a.Commands), nil
}

// DeviceCommands lists the commands of one device.
func (m *Manager) DeviceCommands(hubSlug, deviceSlug string) ([]CommandView, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return nil, err
	}
	d, ok := s.Device(deviceSlug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceSlug)
	}
	return commandViews(d.Commands), nil
}

// CurrentActivityCommands lists the commands of the running activity.
// An off hub has no commands.
func (m *Manager) CurrentActivityCommands(hubSlug string) ([]CommandView, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return nil, err
	}
	a, ok := s.CurrentActivity()
	if !ok {
		return []CommandView{}, nil
	}
	return commandViews(a.Commands), nil
}

func commandViews(commands []Command) []CommandView {
	out := make([]CommandView, len(commands))
	for i, c := range commands {
		out[i] = c.View()
	}
	return out
}
