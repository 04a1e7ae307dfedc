package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/maddox/harmony-api/internal/history"
	"github.com/maddox/harmony-api/internal/hub"
	"github.com/maddox/harmony-api/internal/infrastructure/config"
	"github.com/maddox/harmony-api/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// HubService is the hub surface the API serves. *hub.Manager implements it.
type HubService interface {
	Hubs() []string
	HubViews() []hub.HubView
	DefaultHub() (string, error)
	Status(hubSlug string) (hub.HubState, error)
	Activities(hubSlug string) ([]hub.ActivityView, error)
	Devices(hubSlug string) ([]hub.DeviceView, error)
	ActivityCommands(hubSlug, activitySlug string) ([]hub.CommandView, error)
	DeviceCommands(hubSlug, deviceSlug string) ([]hub.CommandView, error)
	CurrentActivityCommands(hubSlug string) ([]hub.CommandView, error)

	StartActivity(ctx context.Context, hubSlug, activitySlug string) error
	StartActivityByName(ctx context.Context, hubSlug, name string) error
	TurnOff(ctx context.Context, hubSlug string) error
	Dispatch(ctx context.Context, hubSlug string, target hub.Target, commandSlug string, repeat int) error
}

// HistoryReader lists recorded activity transitions.
type HistoryReader interface {
	History(ctx context.Context, hubSlug string, limit int) ([]history.Entry, error)
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Hubs    HubService
	History HistoryReader // nil when history is disabled
	Events  *EventHub     // nil to let the server create its own
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	hubs    HubService
	history HistoryReader
	events  *EventHub
	version string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a server. It does not listen until Start.
//
// Returns:
//   - *Server: configured server
//   - error: when the logger or hub service is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Hubs == nil {
		return nil, fmt.Errorf("hub service is required")
	}

	events := deps.Events
	if events == nil {
		events = NewEventHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		hubs:    deps.Hubs,
		history: deps.History,
		events:  events,
		version: deps.Version,
	}, nil
}

// Events returns the WebSocket event hub, to be registered as a notifier.
func (s *Server) Events() *EventHub {
	return s.events
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. A port that is
// already in use is reported here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.events.Run(srvCtx)

	s.cancel = cancel
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// drops the WebSocket clients.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	cancel()

	ctx, stop := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer stop()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
