package history

import (
	"context"
	"time"

	"github.com/maddox/harmony-api/internal/hub"
)

const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder appends every transition it is notified of.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// StateChanged implements hub.Notifier. Write failures are logged.
func (r *Recorder) StateChanged(t hub.Transition) {
	e := Entry{
		Hub:              t.Hub,
		PreviousActivity: t.PreviousID,
		CurrentActivity:  t.CurrentID,
		CurrentSlug:      t.CurrentSlug(),
		Off:              t.State.Off,
		OccurredAt:       t.At,
	}
	if a := t.State.CurrentActivity; a != nil {
		e.CurrentLabel = a.Label
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &e); err != nil {
		r.logger.Warn("recording transition failed", "hub", t.Hub, "error", err)
	}
}

// History lists recent transitions of a hub.
func (r *Recorder) History(ctx context.Context, hubSlug string, limit int) ([]Entry, error) {
	return r.repo.List(ctx, hubSlug, limit)
}
