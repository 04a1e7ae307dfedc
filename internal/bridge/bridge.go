package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maddox/harmony-api/internal/hub"
	"github.com/maddox/harmony-api/internal/infrastructure/mqtt"
)

// commandTimeout bounds one inbound command including its state refresh.
const commandTimeout = 30 * time.Second

// Activity command payloads.
const (
	PayloadOn  = "on"
	PayloadOff = "off"
)

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Commander executes hub commands. *hub.Manager implements it.
type Commander interface {
	StartActivity(ctx context.Context, hubSlug, activitySlug string) error
	TurnOff(ctx context.Context, hubSlug string) error
	Dispatch(ctx context.Context, hubSlug string, target hub.Target, commandSlug string, repeat int) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures New.
type Options struct {
	MQTT      MQTTClient
	Commander Commander
	Topics    mqtt.Topics
	QoS       byte
	Logger    Logger
}

// Bridge translates between hub sessions and MQTT topics.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	commander Commander
	topics    mqtt.Topics
	qos       byte

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	subscribed []string
	inflight   sync.WaitGroup

	loggerMu sync.RWMutex
	logger   Logger
}

// New creates a bridge. Call Start to subscribe to command topics; state
// publishing works without it.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Commander == nil {
		return nil, fmt.Errorf("commander is required")
	}
	topics := opts.Topics
	if topics.Namespace == "" {
		topics = mqtt.NewTopics("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:      opts.MQTT,
		commander: opts.Commander,
		topics:    topics,
		qos:       opts.QoS,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}, nil
}

// SetLogger replaces the bridge logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Start subscribes to the three inbound command trees.
func (b *Bridge) Start() error {
	topics := []string{
		b.topics.AllActivityCommands(),
		b.topics.AllDeviceCommands(),
		b.topics.AllHubCommands(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, topic := range topics {
		if err := b.mqtt.Subscribe(topic, b.qos, b.handleAsync); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		b.subscribed = append(b.subscribed, topic)
		b.log().Info("subscribed to commands", "topic", topic)
	}
	return nil
}

// Stop unsubscribes, aborts in-flight commands and waits for them to return.
func (b *Bridge) Stop() error {
	b.cancel()

	b.mu.Lock()
	if len(b.subscribed) == 0 {
		b.mu.Unlock()
		b.inflight.Wait()
		return ErrNotStarted
	}
	var errs []error
	for _, topic := range b.subscribed {
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			errs = append(errs, err)
		}
	}
	b.subscribed = nil
	b.mu.Unlock()

	b.inflight.Wait()
	return errors.Join(errs...)
}

// handleAsync is the subscription callback. Each message runs on its own
// goroutine so a slow hub never holds up commands for the others.
func (b *Bridge) handleAsync(topic string, payload []byte) error {
	b.mu.Lock()
	if err := b.ctx.Err(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.inflight.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.inflight.Done()
		b.HandleMessage(topic, payload) //nolint:errcheck // logged by HandleMessage
	}()
	return nil
}

// HandleMessage routes one inbound command message. The returned error
// is only informational: the message is dropped either way.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	ct, err := b.topics.ParseCommandTopic(topic)
	if err != nil {
		b.log().Warn("dropping message", "topic", topic, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	body := strings.TrimSpace(string(payload))

	switch ct.Kind {
	case mqtt.CommandActivity:
		err = b.activityCommand(ctx, ct, body)
	case mqtt.CommandDevice:
		err = b.dispatch(ctx, ct.Hub, hub.Target{Kind: hub.TargetDevice, Slug: ct.Target}, body)
	case mqtt.CommandCurrent:
		err = b.dispatch(ctx, ct.Hub, hub.Target{Kind: hub.TargetCurrentActivity}, body)
	}

	if err != nil {
		b.log().Warn("dropping command", "topic", topic, "payload", body, "error", err)
		return err
	}
	b.log().Debug("command executed", "topic", topic, "payload", body)
	return nil
}

func (b *Bridge) activityCommand(ctx context.Context, ct mqtt.CommandTopic, body string) error {
	switch strings.ToLower(body) {
	case PayloadOn:
		return b.commander.StartActivity(ctx, ct.Hub, ct.Target)
	case PayloadOff:
		return b.commander.TurnOff(ctx, ct.Hub)
	default:
		return fmt.Errorf("%w: activity command %q", ErrInvalidPayload, body)
	}
}

func (b *Bridge) dispatch(ctx context.Context, hubSlug string, target hub.Target, body string) error {
	command, repeat, err := ParseCommandPayload(body)
	if err != nil {
		return err
	}
	return b.commander.Dispatch(ctx, hubSlug, target, command, repeat)
}

// ParseCommandPayload splits "{command}[:{repeat}]". The repeat count is
// coerced with hub.ParseRepeat.
func ParseCommandPayload(payload string) (command string, repeat int, err error) {
	command, raw, _ := strings.Cut(strings.TrimSpace(payload), ":")
	command = strings.TrimSpace(command)
	if command == "" {
		return "", 0, fmt.Errorf("%w: empty command", ErrInvalidPayload)
	}
	return command, hub.ParseRepeat(raw), nil
}
