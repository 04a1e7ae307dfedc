package hub

import "sync"

// Notifier receives activity transitions.
//
// StateChanged is called synchronously from the refresh that detected the
// change, once per transition. Implementations must not block for long and
// handle their own errors.
type Notifier interface {
	StateChanged(t Transition)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(t Transition)

// StateChanged calls f(t).
func (f NotifierFunc) StateChanged(t Transition) { f(t) }

// Fanout delivers a transition to several sinks. A panicking sink is
// logged and does not prevent delivery to the others.
//
// Thread Safety: all methods are safe for concurrent use.
type Fanout struct {
	logger Logger

	mu    sync.RWMutex
	sinks []Notifier
}

// NewFanout creates a fan-out over sinks. Nil sinks are skipped.
//
// Parameters:
//   - logger: receives recovered sink panics; nil discards them
//   - sinks: initial sinks, delivered to in order
func NewFanout(logger Logger, sinks ...Notifier) *Fanout {
	if logger == nil {
		logger = noopLogger{}
	}
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add appends a sink.
func (f *Fanout) Add(sink Notifier) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

// StateChanged delivers t to every sink in order.
func (f *Fanout) StateChanged(t Transition) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()

	for i, sink := range sinks {
		f.deliver(i, sink, t)
	}
}

func (f *Fanout) deliver(index int, sink Notifier, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("notifier panic recovered",
				"hub", t.Hub,
				"sink", index,
				"panic", r,
			)
		}
	}()
	sink.StateChanged(t)
}
