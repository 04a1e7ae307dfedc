package main

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maddox/harmony-api/internal/api"
	"github.com/maddox/harmony-api/internal/bridge"
	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/history"
	"github.com/maddox/harmony-api/internal/hub"
	"github.com/maddox/harmony-api/internal/infrastructure/config"
	"github.com/maddox/harmony-api/internal/infrastructure/database"
	"github.com/maddox/harmony-api/internal/infrastructure/influxdb"
	"github.com/maddox/harmony-api/internal/infrastructure/logging"
	"github.com/maddox/harmony-api/internal/infrastructure/mqtt"
	"github.com/maddox/harmony-api/migrations"
)

// run starts the gateway and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - configPath: YAML file to load, or "" for defaults and environment only
//
// Returns:
//   - error: nil on clean shutdown, or the startup failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting harmony-api",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("no config file, using defaults and environment")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)

	// sinks receives every activity transition. It is complete before the
	// first hub can come online.
	sinks := hub.NewFanout(log.Component("notify"))

	// History (optional)
	var db *database.DB
	var historyReader api.HistoryReader
	if cfg.History.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		recorder := history.NewRecorder(history.NewSQLiteRepository(db.DB), log.Component("history"))
		sinks.Add(recorder)
		historyReader = recorder
		log.Info("history enabled", "path", db.Path())
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks.Add(hub.NotifierFunc(func(t hub.Transition) {
			influxClient.WriteActivityTransition(telemetry(t))
		}))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"namespace", cfg.MQTT.Namespace,
		)
	}

	events := api.NewEventHub(cfg.WebSocket, log.Component("websocket"))
	sinks.Add(events)

	discovery := harmony.NewDiscovery(harmony.DiscoveryOptions{
		Port:           cfg.Discovery.Port,
		PingInterval:   cfg.Discovery.PingInterval,
		OfflineTimeout: cfg.Discovery.EffectiveOfflineTimeout(),
		Logger:         log.Component("discovery"),
	})

	var stopDiscoveryOnce sync.Once
	manager := hub.NewManager(dialer(cfg.Harmony, log.Component("harmony")), hub.ManagerOptions{
		Intervals: hub.Intervals{
			Activities: cfg.Refresh.Activities,
			Devices:    cfg.Refresh.Devices,
			State:      cfg.Refresh.State,
		},
		Notifier: sinks,
		Logger:   log.Component("hub"),
		OnSessionStarted: func(s *hub.Session) {
			if !cfg.Discovery.SingleHub {
				return
			}
			// Stop waits for the goroutine running this callback.
			stopDiscoveryOnce.Do(func() {
				log.Info("single hub mode, stopping discovery", "hub", s.Slug())
				go discovery.Stop()
			})
		},
		OnSessionLost: discovery.Forget,
	})
	defer func() {
		log.Info("closing hub sessions")
		manager.Close()
	}()

	if mqttClient != nil {
		b, err := bridge.New(bridge.Options{
			MQTT:      mqttClient,
			Commander: manager,
			Topics:    mqttClient.Topics(),
			QoS:       byte(cfg.MQTT.QoS),
			Logger:    log.Component("bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		if err := b.Start(); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			if stopErr := b.Stop(); stopErr != nil {
				log.Error("error stopping MQTT bridge", "error", stopErr)
			}
		}()
		sinks.Add(b)
	}

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Hubs:    manager,
		History: historyReader,
		Events:  events,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	switch {
	case cfg.Harmony.HubIP != "":
		info := harmony.HubInfo{IP: cfg.Harmony.HubIP}
		if err := manager.HubOnline(ctx, info); err != nil {
			return fmt.Errorf("connecting to hub %s: %w", cfg.Harmony.HubIP, err)
		}
		log.Info("static hub connected", "ip", cfg.Harmony.HubIP)
	case cfg.Discovery.Enabled:
		discovery.SetOnOnline(func(info harmony.HubInfo) {
			manager.HubOnline(ctx, info) //nolint:errcheck // logged by HubOnline, never retried
		})
		discovery.SetOnOffline(manager.HubOffline)
		if err := discovery.Start(ctx); err != nil {
			return fmt.Errorf("starting discovery: %w", err)
		}
		defer func() {
			log.Info("stopping discovery")
			discovery.Stop()
		}()
		log.Info("discovery started", "addr", discovery.Addr())
	default:
		log.Warn("discovery disabled and no hub_ip set, no hub will connect")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: discovery, API, bridge, sessions,
	// MQTT, InfluxDB, history.
	log.Info("harmony-api stopped")
	return nil
}

// dialer connects to hubs with the configured request timeout.
func dialer(cfg config.HarmonyConfig, log *logging.Logger) hub.DialFunc {
	return func(ctx context.Context, info harmony.HubInfo) (hub.Client, error) {
		c, err := harmony.Dial(ctx, info.IP, harmony.Options{
			RequestTimeout: cfg.RequestTimeout,
			Logger:         log,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// telemetry converts a transition to its InfluxDB point.
func telemetry(t hub.Transition) influxdb.Transition {
	out := influxdb.Transition{
		Hub:         t.Hub,
		PreviousID:  t.PreviousID,
		CurrentID:   t.CurrentID,
		CurrentSlug: t.CurrentSlug(),
		Off:         t.State.Off,
		At:          t.At,
	}
	if a := t.State.CurrentActivity; a != nil {
		out.CurrentLabel = a.Label
	}
	return out
}

// healthCheck verifies the enabled backends concurrently.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: History database (nil if disabled)
//   - mqttClient: MQTT client (nil if disabled)
//   - influxClient: InfluxDB client (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	g, gctx := errgroup.WithContext(ctx)

	if db != nil {
		g.Go(func() error {
			if err := db.HealthCheck(gctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			return nil
		})
	}
	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("mqtt: %w", err)
			}
			return nil
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
