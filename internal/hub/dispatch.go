package hub

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/maddox/harmony-api/internal/harmony"
)

// MaxRepeat caps how often one dispatch repeats a command.
const MaxRepeat = 100

// ParseRepeat coerces a repeat argument to [1, MaxRepeat]. Missing,
// non-numeric and non-positive input all mean 1.
func ParseRepeat(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	if n > MaxRepeat {
		return MaxRepeat
	}
	return n
}

// session resolves a hub slug.
func (m *Manager) session(hubSlug string) (*Session, error) {
	if m.registry.Len() == 0 {
		return nil, ErrNoHubAvailable
	}
	s, ok := m.registry.Get(hubSlug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHubNotFound, hubSlug)
	}
	return s, nil
}

// resolveCommand walks hub -> target -> command.
func (m *Manager) resolveCommand(hubSlug string, target Target, commandSlug string) (*Session, Command, error) {
	s, err := m.session(hubSlug)
	if err != nil {
		return nil, Command{}, err
	}

	var commands []Command
	switch target.Kind {
	case TargetActivity:
		a, ok := s.Activity(target.Slug)
		if !ok {
			return nil, Command{}, fmt.Errorf("%w: %s", ErrActivityNotFound, target.Slug)
		}
		commands = a.Commands
	case TargetDevice:
		d, ok := s.Device(target.Slug)
		if !ok {
			return nil, Command{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, target.Slug)
		}
		commands = d.Commands
	case TargetCurrentActivity:
		a, ok := s.CurrentActivity()
		if !ok {
			return nil, Command{}, fmt.Errorf("%w: no current activity", ErrActivityNotFound)
		}
		commands = a.Commands
	default:
		return nil, Command{}, fmt.Errorf("unknown target kind %d", target.Kind)
	}

	for _, c := range commands {
		if c.Slug == commandSlug {
			return s, c, nil
		}
	}
	return nil, Command{}, fmt.Errorf("%w: %s", ErrCommandNotFound, commandSlug)
}

// Dispatch sends a command repeat times, each as a press followed by a
// release, then refreshes the hub state once.
//
// Returns:
//   - error: ErrNoHubAvailable, a NotFound-class error, or ErrUpstream
func (m *Manager) Dispatch(ctx context.Context, hubSlug string, target Target, commandSlug string, repeat int) error {
	s, cmd, err := m.resolveCommand(hubSlug, target, commandSlug)
	if err != nil {
		return err
	}

	if repeat < 1 {
		repeat = 1
	}
	if repeat > MaxRepeat {
		repeat = MaxRepeat
	}

	for i := 0; i < repeat; i++ {
		for _, status := range []string{harmony.StatusPress, harmony.StatusRelease} {
			payload := harmony.EncodeHoldAction(cmd.Action, status)
			if err := s.client.Send(ctx, harmony.CommandHoldAction, payload); err != nil {
				return fmt.Errorf("%w: sending %s: %w", ErrUpstream, cmd.Name, err)
			}
		}
	}

	m.logger.Debug("command sent",
		"hub", hubSlug,
		"target", target.Kind.String(),
		"command", cmd.Slug,
		"repeat", repeat,
	)
	m.refreshAfterCommand(ctx, s)
	return nil
}

// StartActivity starts the activity with the given slug.
func (m *Manager) StartActivity(ctx context.Context, hubSlug, activitySlug string) error {
	s, err := m.session(hubSlug)
	if err != nil {
		return err
	}
	a, ok := s.Activity(activitySlug)
	if !ok {
		return fmt.Errorf("%w: %s", ErrActivityNotFound, activitySlug)
	}
	return m.start(ctx, s, a)
}

// StartActivityByName starts an activity by its exact label, falling back
// to matching the label's slug.
func (m *Manager) StartActivityByName(ctx context.Context, hubSlug, name string) error {
	s, err := m.session(hubSlug)
	if err != nil {
		return err
	}
	a, ok := s.ActivityByLabel(name)
	if !ok {
		a, ok = s.Activity(slugOf(name))
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrActivityNotFound, name)
	}
	return m.start(ctx, s, a)
}

func (m *Manager) start(ctx context.Context, s *Session, a Activity) error {
	if err := s.client.StartActivity(ctx, a.ID); err != nil {
		return fmt.Errorf("%w: starting %s: %w", ErrUpstream, a.Slug, err)
	}
	m.logger.Info("activity started", "hub", s.Slug(), "activity", a.Slug)
	m.refreshAfterCommand(ctx, s)
	return nil
}

// TurnOff powers the hub's current activity off.
func (m *Manager) TurnOff(ctx context.Context, hubSlug string) error {
	s, err := m.session(hubSlug)
	if err != nil {
		return err
	}
	if err := s.client.TurnOff(ctx); err != nil {
		return fmt.Errorf("%w: turning off: %w", ErrUpstream, err)
	}
	m.logger.Info("hub turned off", "hub", hubSlug)
	m.refreshAfterCommand(ctx, s)
	return nil
}

// refreshAfterCommand runs one out-of-cycle state refresh so notifications
// follow a command without waiting for the next tick.
func (m *Manager) refreshAfterCommand(ctx context.Context, s *Session) {
	if err := s.RefreshState(ctx); err != nil {
		m.logger.Warn("state refresh after command failed", "hub", s.Slug(), "error", err)
	}
}
