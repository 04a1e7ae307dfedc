package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/slug"
)

// RefreshActivities replaces the activity cache with the hub's current
// catalog. Activities missing from the new catalog disappear.
func (s *Session) RefreshActivities(ctx context.Context) error {
	s.activitiesMu.Lock()
	defer s.activitiesMu.Unlock()

	raw, err := s.client.GetActivities(ctx)
	if err != nil {
		return fmt.Errorf("%w: get activities: %w", ErrUpstream, err)
	}
	activities := buildActivities(raw, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped() {
		return ErrSessionStopped
	}
	s.activities = activities
	s.state = stateFor(s.currentID, activities)

	s.logger.Debug("activities refreshed", "count", len(activities))
	return nil
}

// RefreshDevices replaces the device cache with the hub's current catalog.
func (s *Session) RefreshDevices(ctx context.Context) error {
	s.devicesMu.Lock()
	defer s.devicesMu.Unlock()

	cfg, err := s.client.GetAvailableCommands(ctx)
	if err != nil {
		return fmt.Errorf("%w: get devices: %w", ErrUpstream, err)
	}
	devices := buildDevices(cfg.Device, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped() {
		return ErrSessionStopped
	}
	s.devices = devices

	s.logger.Debug("devices refreshed", "count", len(devices))
	return nil
}

// RefreshState polls the current activity, overwrites the cached state
// and notifies once when the running activity changed.
//
// "No activity" and the off activity (-1) are the same state, so an
// initially off hub that stays off never notifies. An unchanged id still
// notifies when it resolves differently than last time, e.g. once the
// catalog loads for an activity that previously read as off.
func (s *Session) RefreshState(ctx context.Context) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	id, err := s.client.GetCurrentActivity(ctx)
	if err != nil {
		return fmt.Errorf("%w: get current activity: %w", ErrUpstream, err)
	}
	if id == "" {
		id = OffActivityID
	}

	s.mu.Lock()
	if s.stopped() {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	previous := s.currentID
	s.currentID = id
	s.state = stateFor(id, s.activities)
	state := s.state
	activities := s.activities
	resolved := state.activityID()
	changed := previous != id || resolved != s.published
	if changed {
		s.published = resolved
	}
	s.mu.Unlock()

	if !changed {
		return nil
	}

	views := make([]ActivityView, len(activities))
	for i, a := range activities {
		views[i] = a.View()
	}

	s.logger.Info("activity changed", "from", previous, "to", id)
	s.notifier.StateChanged(Transition{
		Hub:        s.id.Slug,
		PreviousID: previous,
		CurrentID:  id,
		State:      state,
		Activities: views,
		At:         time.Now(),
	})
	return nil
}

// stateFor derives the public state for a current activity id. An id that
// is not (yet) in the catalog reads as off.
func stateFor(id string, activities []Activity) HubState {
	if id == OffActivityID {
		return HubState{Off: true}
	}
	a, ok := activityByID(activities, id)
	if !ok {
		return HubState{Off: true}
	}
	v := a.View()
	return HubState{Off: false, CurrentActivity: &v}
}

func buildActivities(raw []harmony.Activity, logger Logger) []Activity {
	out := make([]Activity, 0, len(raw))
	seen := make(map[string]string, len(raw))

	for _, a := range raw {
		s := slug.ResolveOr(a.Label, "activity-"+a.ID)
		if prev, dup := seen[s]; dup {
			logger.Warn("dropping activity with duplicate slug", "slug", s, "kept", prev, "dropped", a.Label)
			continue
		}
		seen[s] = a.Label
		out = append(out, Activity{
			ID:           a.ID,
			Slug:         s,
			Label:        a.Label,
			IsAVActivity: a.IsAVActivity,
			Commands:     buildCommands(a.Functions(), logger),
		})
	}
	return out
}

func buildDevices(raw []harmony.Device, logger Logger) []Device {
	out := make([]Device, 0, len(raw))
	seen := make(map[string]string, len(raw))

	for _, d := range raw {
		s := slug.ResolveOr(d.Label, "device-"+d.ID)
		if prev, dup := seen[s]; dup {
			logger.Warn("dropping device with duplicate slug", "slug", s, "kept", prev, "dropped", d.Label)
			continue
		}
		seen[s] = d.Label
		out = append(out, Device{
			ID:       d.ID,
			Slug:     s,
			Label:    d.Label,
			Commands: buildCommands(d.Functions(), logger),
		})
	}
	return out
}

// buildCommands keeps the first command for each slug. Commands without a
// usable label are slugged from their name, then from their position.
func buildCommands(fns []harmony.Function, logger Logger) []Command {
	out := make([]Command, 0, len(fns))
	seen := make(map[string]string, len(fns))

	for i, fn := range fns {
		label := fn.Label
		if label == "" {
			label = fn.Name
		}
		s := slug.ResolveOr(label, fn.Name, fmt.Sprintf("command-%d", i+1))
		if prev, dup := seen[s]; dup {
			logger.Warn("dropping command with duplicate slug", "slug", s, "kept", prev, "dropped", fn.Name)
			continue
		}
		seen[s] = fn.Name
		out = append(out, Command{Name: fn.Name, Slug: s, Label: label, Action: fn.Action})
	}
	return out
}
