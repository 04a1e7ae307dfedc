package hub

import (
	"context"

	"github.com/maddox/harmony-api/internal/harmony"
)

// Client is the hub control session a Session drives.
// harmony.Client implements it; hubtest.FakeClient is the test double.
type Client interface {
	GetActivities(ctx context.Context) ([]harmony.Activity, error)
	GetAvailableCommands(ctx context.Context) (harmony.Config, error)
	GetCurrentActivity(ctx context.Context) (string, error)
	StartActivity(ctx context.Context, id string) error
	TurnOff(ctx context.Context) error
	Send(ctx context.Context, command, payload string) error
	Close() error
}

// doner is implemented by clients that can report a dropped connection.
type doner interface {
	Done() <-chan struct{}
}

// DialFunc opens a Client for a discovered hub.
type DialFunc func(ctx context.Context, info harmony.HubInfo) (Client, error)

// Logger is the logging surface of this package.
// Satisfied by logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
