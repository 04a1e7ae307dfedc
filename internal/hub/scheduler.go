package hub

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RefreshStatus summarizes one recurring refresh.
type RefreshStatus struct {
	LastRun             time.Time `json:"last_run,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Runs                int64     `json:"runs"`
}

type refreshFunc func(ctx context.Context) error

// scheduler runs a session's recurring refreshes. Cancelling its context
// stops every timer; stop also waits for in-flight runs to return.
type scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger Logger

	mu      sync.RWMutex
	stopped bool
	status  map[string]*RefreshStatus
}

func newScheduler(parent context.Context, logger Logger) *scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		status: make(map[string]*RefreshStatus),
	}
}

// every arms a timer running fn each interval until the scheduler stops.
// The first run happens one interval after arming.
func (s *scheduler) every(name string, interval time.Duration, fn refreshFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.status[name] = &RefreshStatus{}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.run(name, fn)
			}
		}
	}()
}

// run executes one refresh, recording the outcome. Errors and panics are
// logged and never stop the timer.
func (s *scheduler) run(name string, fn refreshFunc) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn(s.ctx)
	}()

	if s.ctx.Err() != nil {
		return
	}

	now := time.Now()
	s.mu.Lock()
	st := s.status[name]
	if st == nil {
		st = &RefreshStatus{}
		s.status[name] = st
	}
	st.LastRun = now
	st.Runs++
	if err != nil {
		st.LastError = err.Error()
		st.ConsecutiveFailures++
	} else {
		st.LastError = ""
		st.LastSuccess = now
		st.ConsecutiveFailures = 0
	}
	failures := st.ConsecutiveFailures
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("refresh failed", "refresh", name, "error", err, "consecutive_failures", failures)
	}
}

// Status returns a copy of the per-refresh status.
func (s *scheduler) Status() map[string]RefreshStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]RefreshStatus, len(s.status))
	for k, v := range s.status {
		out[k] = *v
	}
	return out
}

// cancelTimers stops future ticks without waiting.
func (s *scheduler) cancelTimers() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// wait blocks until every timer goroutine has returned.
func (s *scheduler) wait() {
	s.wg.Wait()
}
